package reconcile

// Status is the coarse connectivity signal for one document stream. It
// reflects only the latest received peer notification, not a derived
// health score.
type Status int

const (
	StatusUnknown Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
