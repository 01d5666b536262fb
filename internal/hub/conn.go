package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/protocol"
)

// conn is one player's socket. A single reader handles inbound frames in order; a single
// writer drains the bounded send queue.
type conn struct {
	id          string
	login       string
	displayName string
	ws          *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	send   chan protocol.Outbound

	closeOnce sync.Once
}

func newConn(parent context.Context, ws *websocket.Conn, p *domain.Player, queue int) *conn {
	ctx, cancel := context.WithCancel(parent)
	return &conn{
		id:          uuid.NewString(),
		login:       p.Login,
		displayName: p.DisplayName,
		ws:          ws,
		ctx:         ctx,
		cancel:      cancel,
		send:        make(chan protocol.Outbound, queue),
	}
}

// enqueue never blocks. A full queue means the client stopped reading, so it is dropped.
func (c *conn) enqueue(msg protocol.Outbound) {
	if c.ctx.Err() != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		obslog.L().Warn("ws_slow_consumer", zap.String("login", c.login), zap.String("conn_id", c.id), zap.String("type", msg.Type))
		c.close(websocket.StatusPolicyViolation, "send queue overflow")
	}
}

func (c *conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		// Close waits for the peer's close frame, which the reader consumes; cancel after.
		go func() {
			_ = c.ws.Close(code, reason)
			c.cancel()
		}()
	})
}

func (c *conn) readLoop(handle func(c *conn, env protocol.Envelope, err error)) {
	for {
		typ, raw, err := c.ws.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil && websocket.CloseStatus(err) == -1 {
				obslog.L().Debug("ws_read_error", zap.String("login", c.login), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			handle(c, protocol.Envelope{}, protocol.ErrMalformedEnvelope)
			continue
		}
		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			handle(c, protocol.Envelope{}, errors.Join(protocol.ErrMalformedEnvelope, err))
			continue
		}
		handle(c, env, nil)
	}
}

func (c *conn) writeLoop(pingInterval time.Duration) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	pingFailures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(ctx, c.ws, msg)
			cancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("login", c.login), zap.Error(err))
				c.close(websocket.StatusGoingAway, "write failure")
				return
			}
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.ws.Ping(ctx)
			cancel()
			if err == nil {
				pingFailures = 0
				continue
			}
			pingFailures++
			if pingFailures >= 2 {
				c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}
