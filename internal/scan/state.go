package scan

import "encoding/json"

// State is the scan-lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateFetching
	StateResult
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateFetching:
		return "fetching"
	case StateResult:
		return "result"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Authorization mirrors the host's camera-permission status.
type Authorization int

const (
	AuthorizationUnknown Authorization = iota
	AuthorizationAuthorized
	AuthorizationDenied
	AuthorizationRestricted
)

func (a Authorization) String() string {
	switch a {
	case AuthorizationAuthorized:
		return "authorized"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the authorization as its wire name.
func (a Authorization) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// ParseAuthorization maps a wire name back to an Authorization. Anything
// unrecognized is treated as unknown.
func ParseAuthorization(s string) Authorization {
	switch s {
	case "authorized":
		return AuthorizationAuthorized
	case "denied":
		return AuthorizationDenied
	case "restricted":
		return AuthorizationRestricted
	default:
		return AuthorizationUnknown
	}
}
