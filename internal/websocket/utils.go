package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/tutoria-backend/internal/model"
)

const (
	writeWait = 10 * time.Second
	// PongWait is how long a seat stream stays open without client traffic.
	PongWait = 2 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteSnapshot sends a seat snapshot event.
func WriteSnapshot(conn *websocket.Conn, a model.ClassAvailability) error {
	return WriteTyped(conn, SnapshotResponse{Event: EventSnapshot, Data: a})
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(PongWait))
	return conn.ReadJSON(v)
}
