// Package hub is the session router: it owns one WebSocket per player, dispatches inbound
// messages to the coordinators and fans game events out to participants.
package hub

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/protocol"
)

const (
	defaultSendQueue    = 256
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

type Games interface {
	ApplyMove(ctx context.Context, sessionID, login, token string) (game.MoveResult, error)
	Resign(ctx context.Context, sessionID, login string) (bool, error)
	Session(ctx context.Context, sessionID string) (*domain.GameSession, error)
}

type Matchmaker interface {
	Enter(ctx context.Context, player *domain.Player, tc domain.TimeControl) (*matchmaking.Match, error)
	Exit(login string) bool
}

type Challenges interface {
	Create(ctx context.Context, challenger, challenged string, tc domain.TimeControl) (*domain.Challenge, error)
	Accept(ctx context.Context, id int64, login string) (*domain.GameSession, error)
	Decline(ctx context.Context, id int64, login string) (*domain.Challenge, error)
	PendingFor(ctx context.Context, login string) ([]*domain.Challenge, error)
}

type Hub struct {
	resolver   auth.Resolver
	players    store.PlayerStore
	games      Games
	matcher    Matchmaker
	challenges Challenges
	msgs       *msgcat.Catalog

	sendQueue    int
	pingInterval time.Duration
	origins      []string
	now          func() time.Time

	mu    sync.RWMutex
	conns map[string]*conn
}

var _ game.Notifier = (*Hub)(nil)

type Option func(*Hub)

func WithSendQueue(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendQueue = n
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithOriginPatterns allows cross-origin browser clients matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = append(h.origins, patterns...) }
}

func WithCatalog(c *msgcat.Catalog) Option {
	return func(h *Hub) {
		if c != nil {
			h.msgs = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

func New(resolver auth.Resolver, players store.PlayerStore, games Games, matcher Matchmaker, challenges Challenges, opts ...Option) *Hub {
	h := &Hub{
		resolver:     resolver,
		players:      players,
		games:        games,
		matcher:      matcher,
		challenges:   challenges,
		sendQueue:    defaultSendQueue,
		pingInterval: defaultPingInterval,
		now:          time.Now,
		conns:        make(map[string]*conn),
	}
	for _, o := range opts {
		o(h)
	}
	if h.msgs == nil {
		h.msgs = msgcat.Default()
	}
	return h
}

// ServeHTTP authenticates the token, upgrades the request and runs the connection until it
// closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = auth.BearerToken(r.Header.Get("Authorization"))
	}
	id, err := h.resolver.Resolve(r.Context(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			obslog.L().Warn("ws_auth_error", zap.Error(err))
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("login", id.Login), zap.Error(err))
		return
	}
	h.serve(r.Context(), id, ws)
}

func (h *Hub) serve(reqCtx context.Context, id auth.Identity, ws *websocket.Conn) {
	player, err := h.players.Ensure(reqCtx, id.Login, id.DisplayName)
	if err != nil {
		obslog.L().Error("ws_player_error", zap.String("login", id.Login), zap.Error(err))
		_ = ws.Close(websocket.StatusInternalError, "player unavailable")
		return
	}

	c := newConn(context.WithoutCancel(reqCtx), ws, player, h.sendQueue)
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop(h.pingInterval)

	c.enqueue(protocol.NewOutbound(protocol.TypeConnected, protocol.Notice{Message: h.msgs.Text("session.connected", nil)}))
	h.replayPending(c)
	c.readLoop(h.dispatch)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	old := h.conns[c.login]
	h.conns[c.login] = c
	h.mu.Unlock()

	if old != nil {
		old.close(websocket.StatusPolicyViolation, "superseded by a newer connection")
	}
	if err := h.players.SetOnline(c.ctx, c.login, true, h.now()); err != nil {
		obslog.L().Warn("presence_update_error", zap.String("login", c.login), zap.Error(err))
	}
	obslog.L().Info("ws_connect", zap.String("login", c.login), zap.String("conn_id", c.id), zap.Bool("superseded", old != nil))
}

// unregister runs when a connection ends. A superseded connection leaves presence and
// matchmaking to its replacement.
func (h *Hub) unregister(c *conn) {
	c.close(websocket.StatusNormalClosure, "")

	h.mu.Lock()
	current := h.conns[c.login] == c
	if current {
		delete(h.conns, c.login)
	}
	h.mu.Unlock()

	if !current {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := h.players.SetOnline(ctx, c.login, false, h.now()); err != nil {
		obslog.L().Warn("presence_update_error", zap.String("login", c.login), zap.Error(err))
	}
	h.matcher.Exit(c.login)
	obslog.L().Info("ws_disconnect", zap.String("login", c.login), zap.String("conn_id", c.id))
}

func (h *Hub) replayPending(c *conn) {
	pending, err := h.challenges.PendingFor(c.ctx, c.login)
	if err != nil {
		obslog.L().Warn("challenge_replay_error", zap.String("login", c.login), zap.Error(err))
		return
	}
	for _, ch := range pending {
		c.enqueue(protocol.NewOutbound(protocol.TypeIncomingChallenge, h.incoming(c.ctx, ch)))
	}
}

func (h *Hub) incoming(ctx context.Context, ch *domain.Challenge) protocol.IncomingChallenge {
	name := ch.Challenger
	if p, err := h.players.FindByLogin(ctx, ch.Challenger); err == nil && p != nil {
		name = p.DisplayName
	}
	return protocol.IncomingChallenge{
		ChallengeID:           ch.ID,
		Challenger:            ch.Challenger,
		ChallengerDisplayName: name,
		TimeControl:           string(ch.TimeControl),
	}
}

// sendTo queues msg for login's live connection, if any.
func (h *Hub) sendTo(login string, msg protocol.Outbound) {
	h.mu.RLock()
	c := h.conns[domain.NormalizeLogin(login)]
	h.mu.RUnlock()
	if c != nil {
		c.enqueue(msg)
	}
}

// Online reports whether login has a live connection on this process.
func (h *Hub) Online(login string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[domain.NormalizeLogin(login)]
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown closes every connection with StatusGoingAway.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) GameStarted(data *protocol.GameData) {
	msg := protocol.NewOutbound(protocol.TypeGameStarted, data)
	for _, login := range data.Participants() {
		h.sendTo(login, msg)
	}
}

func (h *Hub) GameUpdated(data *protocol.GameData) {
	msg := protocol.NewOutbound(protocol.TypeGameUpdate, data)
	for _, login := range data.Participants() {
		h.sendTo(login, msg)
	}
}

func (h *Hub) GameEnded(ev *protocol.GameEnded) {
	msg := protocol.NewOutbound(protocol.TypeGameEnded, ev)
	h.sendTo(ev.White, msg)
	h.sendTo(ev.Black, msg)
}
