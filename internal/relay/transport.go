// Package relay pumps frames between a client websocket and a Gemini
// Live connection for the life of one conversation, intercepting tool
// calls along the way. It also keeps the registry of live client
// transports used for notification fan-out.
package relay

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is one duplex stream of JSON frames. Both the client-facing
// websocket and the model-facing connection satisfy it.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// writeJSON marshals v and sends it as one frame.
func writeJSON(t Transport, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.WriteFrame(data)
}

// ClientConn wraps an upgraded client websocket. Writes are serialized
// because the outbound pump and the notification scheduler both push
// frames to the same connection.
type ClientConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NewClientConn wraps an upgraded websocket connection.
func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{ws: ws}
}

// ReadFrame blocks until the next client frame arrives.
func (c *ClientConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// WriteFrame sends one frame of raw JSON to the client.
func (c *ClientConn) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying websocket.
func (c *ClientConn) Close() error {
	return c.ws.Close()
}
