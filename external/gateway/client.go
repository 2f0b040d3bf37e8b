package gateway

import (
	"context"
	"sync"

	"github.com/foxseedlab/zadankai/internal/gateway"
	"github.com/foxseedlab/zadankai/internal/viewer"
	"github.com/gorilla/websocket"
)

// NewDialer returns a viewer dialer for the backend's websocket endpoint.
func NewDialer(url string) viewer.Dialer {
	return func(ctx context.Context) (viewer.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &clientConn{conn: conn}, nil
	}
}

type clientConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *clientConn) Read() (gateway.Envelope, error) {
	var env gateway.Envelope
	err := c.conn.ReadJSON(&env)
	return env, err
}

func (c *clientConn) Send(event string, payload any) error {
	env, err := gateway.Encode(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *clientConn) Close() error {
	return c.conn.Close()
}
