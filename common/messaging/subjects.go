package messaging

import "strings"

// Subjects follow {domain}.{resource}.{qualifier}.
const (
	// SubjectRelayDLQ prefixes dead-lettered deliveries; the reason is appended.
	SubjectRelayDLQ = "relay.dlq"

	// SubjectRelayDLQAll matches every dead-letter subject.
	SubjectRelayDLQAll = SubjectRelayDLQ + ".>"
)

// DLQSubject returns the dead-letter subject for reason, e.g.
// relay.dlq.retries_exhausted. Characters NATS treats specially in a subject
// token are replaced with underscores.
func DLQSubject(reason string) string {
	return SubjectRelayDLQ + "." + subjectToken(reason)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
