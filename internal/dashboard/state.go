package dashboard

import "fmt"

// State is the dashboard lifecycle position
type State int

const (
	Uninitialized State = iota
	LoadingUser
	LoadingData
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case LoadingUser:
		return "loading-user"
	case LoadingData:
		return "loading-data"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return "unknown"
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *State) UnmarshalText(text []byte) error {
	for st := Uninitialized; st <= Error; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown dashboard state %q", text)
}
