package api

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// pingPeriod is how often the server pings an idle socket.
	pingPeriod = 10 * time.Second
	// pongWait is how long a socket may stay silent before it is dropped.
	pongWait = 20 * time.Second
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// sendBuffer is the per-client outbound queue depth.
	sendBuffer = 256
)

// Client is one connected socket. The socket id is transient; the stable
// identity is the playerID bound by register. playerID and displayName are
// only touched from the client's readPump goroutine.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan outbound
	d    *Dispatcher

	playerID    string
	displayName string
}

func newClient(d *Dispatcher, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan outbound, sendBuffer),
		d:    d,
	}
}

// enqueue queues a message for the writer. A client that cannot drain its
// buffer is dropped rather than allowed to stall the dispatcher.
func (c *Client) enqueue(event string, payload interface{}) {
	select {
	case c.send <- outbound{Event: event, Payload: payload}:
	default:
		log.Printf("client %s send buffer full, dropping connection", c.id)
		c.conn.Close()
	}
}

// readPump decodes inbound envelopes and hands them to the dispatcher. It
// owns the read side of the socket and runs the disconnect handling when the
// socket goes away.
func (c *Client) readPump() {
	defer func() {
		c.d.handleDisconnect(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(32 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("client %s read error: %v", c.id, err)
			}
			return
		}
		c.d.dispatch(c, env)
	}
}

// writePump serializes all writes to the socket: queued messages plus the
// keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
