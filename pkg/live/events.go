// Package live is the typed event channel carried over each websocket
// connection. Every server-to-client push is an Event envelope; the only
// client-to-server frames are the typing relay signals, which are never
// persisted.
package live

import (
	"encoding/json"

	"github.com/valyala/bytebufferpool"
)

// Kind names an event on the wire.
type Kind string

const (
	KindPresenceSnapshot Kind = "presenceSnapshot"
	KindNewMessage       Kind = "newMessage"
	KindMessageDeleted   Kind = "messageDeleted"
	KindMessageReaction  Kind = "messageReaction"
	KindMessagesSeen     Kind = "messagesSeen"
	KindTyping           Kind = "typing"
	KindStopTyping       Kind = "stopTyping"
)

// Event is the wire envelope for one push.
type Event struct {
	Event Kind `json:"event"`
	Data  any  `json:"data,omitempty"`
}

// SeenReceipt is the payload of a messagesSeen event; one event is pushed
// per transitioned message id.
type SeenReceipt struct {
	MessageID string `json:"messageId"`
}

// TypingSignal is the payload of typing/stopTyping relays.
type TypingSignal struct {
	SenderID string `json:"senderId"`
}

// inboundFrame is the shape of client-originated frames. Anything beyond
// the typing relay is ignored.
type inboundFrame struct {
	Event Kind `json:"event"`
	Data  struct {
		ReceiverID string `json:"receiverId"`
	} `json:"data"`
}

// Encode serializes an event through a pooled buffer and returns an owned
// byte slice safe to hand to a session's write pump.
func Encode(ev Event) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(ev); err != nil {
		return nil, err
	}
	b := buf.B
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	return append([]byte(nil), b...), nil
}
