package sim

// A RemotePort names a port somewhere else in the simulation.
type RemotePort string

// A Msg is a piece of information transferred between components.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta is the meta data attached to every message.
type MsgMeta struct {
	ID           string
	Src, Dst     RemotePort
	TrafficBytes int
}

// Rsp is a message that indicates the completion of a request.
type Rsp interface {
	Msg
	GetRspTo() string
}

// SendError marks a failed send or delivery.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	return &SendError{}
}
