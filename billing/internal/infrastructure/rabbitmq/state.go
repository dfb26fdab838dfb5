package rabbitmq

// State is the connection lifecycle state of a Consumer.
type State int32

const (
	StateDisconnected State = iota
	StateConsuming
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConsuming:
		return "consuming"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

type Event int

const (
	EventConnected Event = iota
	EventConnectFailed
	EventConnectionLost
	EventInterrupted
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventConnectionLost:
		return "connection_lost"
	case EventInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Transition returns the state reached from s on e. Events that do not apply
// to s leave it unchanged; Shutdown is terminal.
func Transition(s State, e Event) State {
	if s == StateShutdown || e == EventInterrupted {
		return StateShutdown
	}
	switch s {
	case StateDisconnected:
		if e == EventConnected {
			return StateConsuming
		}
	case StateConsuming:
		if e == EventConnectionLost {
			return StateDisconnected
		}
	}
	return s
}
