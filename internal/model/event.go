package model

// FrameType identifies the payload of a stream frame.
type FrameType string

const (
	FrameTypeMessage FrameType = "message"
)

// Frame is one newline-delimited JSON object on the chat stream.
type Frame struct {
	Type FrameType `json:"type"`
	Data Message   `json:"data"`
}

// NewMessageFrame wraps a message for the wire.
func NewMessageFrame(msg Message) Frame {
	return Frame{Type: FrameTypeMessage, Data: msg}
}
