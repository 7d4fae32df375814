// Package hub fans websocket messages out to connected dashboard clients.
// One goroutine owns the client set; each client has its own writer.
package hub

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
)

// Kind says what a message carries. Frames go out as binary websocket
// messages, status updates as text.
type Kind int

const (
	// StatusKind is a JSON-encoded session status.
	StatusKind Kind = iota
	// FrameKind is one JPEG-encoded camera frame.
	FrameKind
)

func (k Kind) String() string {
	if k == FrameKind {
		return "frame"
	}
	return "status"
}

// Message is one queued websocket write.
type Message struct {
	Kind Kind
	Data []byte
}

// Frame wraps an encoded JPEG. The slice is shared by every client and
// must not be modified afterwards.
func Frame(jpeg []byte) Message {
	return Message{Kind: FrameKind, Data: jpeg}
}

// Status encodes v as a JSON status message.
func Status(v interface{}) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: StatusKind, Data: data}, nil
}

// wsType maps the kind onto the websocket opcode used by writePump.
func (m Message) wsType() int {
	if m.Kind == FrameKind {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
