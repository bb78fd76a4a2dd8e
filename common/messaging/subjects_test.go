package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLQSubject(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{reason: "retries_exhausted", want: "relay.dlq.retries_exhausted"},
		{reason: "Retries Exhausted", want: "relay.dlq.retries_exhausted"},
		{reason: "sink.rejected", want: "relay.dlq.sink_rejected"},
		{reason: "a*b>c", want: "relay.dlq.a_b_c"},
		{reason: "", want: "relay.dlq.unknown"},
		{reason: "   ", want: "relay.dlq.unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, DLQSubject(tt.reason))
		})
	}
}

func TestDLQSubjectMatchesWildcard(t *testing.T) {
	assert.Equal(t, "relay.dlq.>", SubjectRelayDLQAll)
}
