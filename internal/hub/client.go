package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"eva/internal/logging"
	"eva/internal/protocol"
	"eva/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

// client is one websocket connection attached to a meeting. Outbound
// messages flow through a buffered channel; a consumer that cannot keep up
// is disconnected rather than allowed to stall the lane.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	meeting *session.Meeting

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, meeting *session.Meeting) *client {
	return &client{
		hub:     h,
		conn:    conn,
		meeting: meeting,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Send implements session.Sender for lane replies addressed to this client.
func (c *client) Send(payload any) {
	data := protocol.Marshal(payload)
	if data == nil {
		return
	}
	c.enqueue(data)
}

func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	case c.send <- data:
	default:
		c.hub.logger.Warn("disconnecting slow consumer",
			logging.String(logging.FieldMeetingID, c.meeting.ID()))
		c.close()
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.meeting.HandleMessage(data, c)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
