package client

// State is the protocol phase of a connection. It decides how the ids of
// inbound frames are interpreted.
type State int32

const (
	// Unknown is the state of a connection that hasn't sent a handshake yet.
	Unknown State = iota
	Handshake
	Status
	Login
	Play
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Handshake:
		return "handshake"
	case Status:
		return "status"
	case Login:
		return "login"
	case Play:
		return "play"
	default:
		return "invalid"
	}
}
