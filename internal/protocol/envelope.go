package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultSender is used when an inbound envelope carries no sender.
const DefaultSender = "unknown"

// BroadcastID is the response id of every server-initiated event.
const BroadcastID = 0

// ErrMalformed is returned for inbound frames that must be dropped.
var ErrMalformed = errors.New("malformed message")

// Inbound is the JSON structure received from clients.
type Inbound struct {
	Sender  string
	Content string
}

// Outbound is the JSON structure sent to clients.
type Outbound struct {
	ID        int    `json:"id"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type rawInbound struct {
	Sender  *string `json:"sender"`
	Content *string `json:"content"`
}

// DecodeInbound parses one client frame. A frame that is not JSON, or whose
// content field is missing or not a string, yields ErrMalformed.
func DecodeInbound(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return Inbound{}, ErrMalformed
	}
	if raw.Content == nil {
		return Inbound{}, ErrMalformed
	}
	in := Inbound{Sender: DefaultSender, Content: *raw.Content}
	if raw.Sender != nil {
		in.Sender = *raw.Sender
	}
	return in, nil
}

// Encode builds the outbound frame for message.
func Encode(id int, message string, at time.Time) []byte {
	data, err := json.Marshal(Outbound{
		ID:        id,
		Message:   message,
		Timestamp: at.UnixMilli(),
	})
	if err != nil {
		// Outbound only holds strings and ints.
		panic(err)
	}
	return data
}

// EncodeEvent builds a server-pushed frame.
func EncodeEvent(message string, at time.Time) []byte {
	return Encode(BroadcastID, message, at)
}
