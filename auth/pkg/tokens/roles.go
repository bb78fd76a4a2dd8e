package tokens

import (
	"fmt"
	"strings"
)

// Role identifies which hop of the relay pipeline a caller plays.
type Role int

const (
	RoleUnknown Role = iota
	RoleProducer
	RoleRelay
	RoleSink
)

// Roles lists every known role in pipeline order.
var Roles = []Role{RoleProducer, RoleRelay, RoleSink}

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleRelay:
		return "relay"
	case RoleSink:
		return "sink"
	case RoleUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText encodes the canonical wire name.
func (r Role) MarshalText() ([]byte, error) {
	if r == RoleUnknown {
		return nil, fmt.Errorf("cannot encode unknown role")
	}
	return []byte(r.String()), nil
}

// UnmarshalText never fails: names it does not recognise decode to RoleUnknown
// so that a correctly signed token carrying a foreign role is rejected as
// forbidden rather than as malformed.
func (r *Role) UnmarshalText(text []byte) error {
	*r = lookupRole(string(text))
	return nil
}

// RoleNames lists the canonical role names, comma separated.
func RoleNames() string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = r.String()
	}
	return strings.Join(names, ", ")
}

// ParseRole parses user input such as a CLI flag.
func ParseRole(s string) (Role, error) {
	role := lookupRole(s)
	if role == RoleUnknown {
		return RoleUnknown, fmt.Errorf("unknown service role %q (want one of %s)", s, RoleNames())
	}
	return role, nil
}

func lookupRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	// legacy names from the first pipeline deployment
	case "producer", "source":
		return RoleProducer
	case "relay", "bridge":
		return RoleRelay
	case "sink", "target":
		return RoleSink
	default:
		return RoleUnknown
	}
}
