package session

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/observability/metrics"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

const sendBufferSize = 32

var errSendBufferFull = errors.New("session: send buffer full")

// Conn is one websocket connection. It implements Subscriber; frames are
// queued on a buffered channel and written by a single write pump, so Send
// never blocks a publisher.
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	identity Identity
	cfg      config.SessionConfig
	logger   *zap.Logger

	send      chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once

	// alive flips to 1 on every pong and back to 0 on every ping. Two
	// heartbeat intervals without a pong terminates the connection.
	alive atomic.Int32
}

func NewConn(ws *websocket.Conn, hub *Hub, identity Identity, cfg config.SessionConfig, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{
		ws:       ws,
		hub:      hub,
		identity: identity,
		cfg:      cfg,
		logger:   logger,
		send:     make(chan ServerMessage, sendBufferSize),
		done:     make(chan struct{}),
	}
	c.alive.Store(1)
	return c
}

func (c *Conn) Identity() Identity { return c.identity }

// Send queues a frame for the write pump. A slow consumer whose buffer is
// full loses the frame; the hub treats that as a failed delivery.
func (c *Conn) Send(msg ServerMessage) error {
	select {
	case <-c.done:
		return errors.New("session: connection closed")
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

// Run drives both pumps and blocks until the connection ends.
func (c *Conn) Run() {
	metrics.Get().WSConnectionsActive.Add(context.Background(), 1)
	defer metrics.Get().WSConnectionsActive.Add(context.Background(), -1)

	go c.writePump()
	c.readPump()
	c.close(websocket.CloseNormalClosure, "")
}

// close tears the connection down exactly once. The close frame is written
// best-effort directly, bypassing the send channel.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.hub.Detach(c)
		close(c.done)

		deadline := time.Now().Add(c.cfg.WriteTimeout)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.ws.Close()
	})
}

// Terminate closes the connection with a policy violation. Clients must not
// reconnect after receiving 1008.
func (c *Conn) Terminate(reason string) {
	c.close(ClosePolicy, reason)
}

func (c *Conn) readPump() {
	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.alive.Store(1)
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Websocket read ended", zap.Error(err))
			}
			return
		}
		// Any client frame counts as activity.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Terminate(PolicyInvalidRequest)
			return
		}
		c.handle(msg)
	}
}

func (c *Conn) handle(msg ClientMessage) {
	switch msg.Type {
	case TypeSubscribe:
		reply := c.hub.Subscribe(c, Channel(msg.Channel), msg.RequestID)
		if err := c.Send(reply); err != nil {
			c.logger.Warn("Failed to queue subscribe reply", zap.Error(err))
		}
	case TypeUnsubscribe:
		c.hub.Unsubscribe(c, Channel(msg.Channel), msg.RequestID)
	case TypePing:
		_ = c.Send(NewPong())
	default:
		c.Terminate(PolicyInvalidRequest)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug("Websocket write failed", zap.Error(err))
				c.close(CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			if c.alive.Swap(0) == 0 {
				c.logger.Info("Heartbeat missed, terminating connection",
					zap.String("session_id", c.identity.SessionID),
				)
				c.close(CloseGoingAway, "")
				return
			}
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.close(CloseGoingAway, "")
				return
			}
		}
	}
}
