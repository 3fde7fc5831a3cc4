package models

import "encoding/json"

// Event names carried on the websocket, inbound and outbound.
const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventMessage  = "message"
	EventReaction = "reaction"
	EventStatus   = "status"
)

// Envelope is one inbound websocket frame: a named event plus its
// undecoded payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is one outbound websocket frame.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type JoinData struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type LeaveData struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// MessageData is the message payload as it travels on the wire. The room
// is the actual delivery scope; sender and receiver are metadata within
// the payload.
type MessageData struct {
	Content        string `json:"content"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	Room           string `json:"room"`
	ExpirationTime *int   `json:"expiration_time,omitempty"`
}

type ReactionData struct {
	Content string `json:"content"`
	Target  string `json:"target"`
	Sender  string `json:"sender"`
}

type StatusData struct {
	Msg string `json:"msg"`
}
