package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vortexis/hackhub/backend/internal/config"
)

// Close codes sent by the gateway.
const (
	CloseForbidden       = 4403
	ClosePolicyViolation = websocket.ClosePolicyViolation
)

// Options bounds one connection's resources and keepalive.
type Options struct {
	PingPeriod    time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	MaxFrameBytes int64
}

func OptionsFromConfig(cfg config.ChatConfig) Options {
	return Options{
		PingPeriod:    cfg.PingPeriod,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		SendBuffer:    cfg.SendBuffer,
		MaxFrameBytes: cfg.MaxFrameBytes,
	}
}

// Connection wraps a websocket and coordinates outbound writes via a buffered channel.
// The write loop owns socket writes; reads happen on the caller's goroutine in ReadLoop.
type Connection struct {
	ID             string
	UserID         uint
	ConversationID uint

	ws   *websocket.Conn
	opts Options
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewConnection(ws *websocket.Conn, userID, conversationID uint, opts Options) *Connection {
	return &Connection{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		ws:             ws,
		opts:           opts,
		send:           make(chan []byte, opts.SendBuffer),
		done:           make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send queues a frame without blocking. A full buffer means the peer cannot keep up;
// the connection is closed with a policy violation rather than stalling the fan-out.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		go c.Close(ClosePolicyViolation, "send buffer overflow")
		return false
	}
}

// Done is closed once the connection starts shutting down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears down the socket. Only the first call has effect.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

// ReadLoop delivers text frames to handle one at a time until the peer goes away or
// stops answering pings. The returned error is the read error that ended the loop.
func (c *Connection) ReadLoop(handle func(frame []byte)) error {
	c.ws.SetReadLimit(c.opts.MaxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}

// IsExpectedClose reports whether err is an ordinary end of a session rather than a fault.
func IsExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
