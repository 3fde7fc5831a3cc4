package models

// Conn is one live client connection as seen by the registry, the room
// directory and the router. Implemented by the websocket client.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string
	// Send queues an encoded frame without blocking. It returns false
	// when the connection is closed or its queue is full; the frame is
	// dropped in that case.
	Send(frame []byte) bool
}
