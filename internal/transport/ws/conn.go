package ws

import (
	"time"

	"github.com/Tanner-Eischen/Socrates-sub000/internal/security"

	"github.com/gorilla/websocket"
)

// Conn is what the hub fans out to.
type Conn interface {
	Send(msg Message) error
	Close() error
	UserID() string
}

// wsConn wraps one authenticated socket. The identity is attached by the
// gateway and never changes; roomID is only touched from the connection's
// own read loop, which is the single dispatcher for its events.
type wsConn struct {
	conn     *websocket.Conn
	identity security.Identity
	roomID   string

	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, identity security.Identity) *wsConn {
	return &wsConn{
		conn:     c,
		identity: identity,
		sendMu:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() string { return c.identity.UserID }
