package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"glasses-cloud-be/internal/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Device sockets carry binary audio frames, so the limit is generous.
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

var ErrSendBufferFull = errors.New("websocket send buffer full")

type outbound struct {
	messageType int
	data        []byte
}

// Client wraps one websocket peer with a buffered write pump. It implements
// session.Conn: writes never block the caller, a full buffer is reported as
// a failed delivery instead.
type Client struct {
	conn *websocket.Conn
	send chan outbound
	log  logger.ILogger

	closeOnce sync.Once
	closing   chan string
	done      chan struct{}
}

func NewClient(conn *websocket.Conn, log logger.ILogger) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan outbound, sendBuffer),
		log:     log,
		closing: make(chan string, 1),
		done:    make(chan struct{}),
	}
}

func (c *Client) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- outbound{messageType: websocket.TextMessage, data: data}:
		return nil
	case <-c.done:
		return errors.New("websocket closed")
	default:
		return ErrSendBufferFull
	}
}

// CloseWithReason asks the write pump to deliver a close frame carrying the
// machine-readable reason and then drop the socket.
func (c *Client) CloseWithReason(reason string) {
	c.closeOnce.Do(func() {
		select {
		case c.closing <- reason:
		default:
		}
	})
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings. Runs until the socket dies or a close is requested.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}

		case reason := <-c.closing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// prepareRead arms the read deadline and pong handler.
func (c *Client) prepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}
