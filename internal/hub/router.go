package hub

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/challenge"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/protocol"
)

// dispatch handles one inbound frame. Handlers reply only to the sender; events that concern
// both players travel through the Notifier methods.
func (h *Hub) dispatch(c *conn, env protocol.Envelope, err error) {
	if err != nil {
		obslog.L().Debug("ws_malformed", zap.String("login", c.login), zap.Error(err))
		h.fail(c, "protocol.malformed")
		return
	}
	ctx := c.ctx
	switch env.Type {
	case protocol.TypeSearchGame:
		h.handleSearch(ctx, c, env)
	case protocol.TypeCancelSearch:
		h.matcher.Exit(c.login)
		c.enqueue(protocol.NewOutbound(protocol.TypeSearchCancelled, protocol.Notice{Message: h.msgs.Text("search.cancelled", nil)}))
	case protocol.TypeChallenge:
		h.handleChallenge(ctx, c, env)
	case protocol.TypeAcceptChallenge:
		h.handleAccept(ctx, c, env)
	case protocol.TypeDeclineChallenge:
		h.handleDecline(ctx, c, env)
	case protocol.TypeMove:
		h.handleMove(ctx, c, env)
	case protocol.TypeResign:
		h.handleResign(ctx, c, env)
	case protocol.TypeChat:
		h.handleChat(ctx, c, env)
	default:
		obslog.L().Info("ws_unknown_type", zap.String("login", c.login), zap.String("type", env.Type))
	}
}

func (h *Hub) fail(c *conn, key string) {
	h.failAs(c, protocol.TypeError, key)
}

func (h *Hub) failAs(c *conn, typ, key string) {
	c.enqueue(protocol.NewOutbound(typ, protocol.Notice{Message: h.msgs.Text(key, nil)}))
}

func (h *Hub) decode(c *conn, env protocol.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		obslog.L().Debug("ws_bad_payload", zap.String("login", c.login), zap.String("type", env.Type), zap.Error(err))
		h.fail(c, "protocol.malformed")
		return false
	}
	return true
}

func (h *Hub) handleSearch(ctx context.Context, c *conn, env protocol.Envelope) {
	var req protocol.SearchGameRequest
	if !h.decode(c, env, &req) {
		return
	}
	tc, ok := domain.ParseTimeControl(req.TimeControl)
	if !ok {
		h.fail(c, "search.invalid_time_control")
		return
	}
	player, err := h.players.FindByLogin(ctx, c.login)
	if err != nil || player == nil {
		obslog.L().Error("search_player_error", zap.String("login", c.login), zap.Error(err))
		h.fail(c, "search.failed")
		return
	}

	match, err := h.matcher.Enter(ctx, player, tc)
	switch {
	case errors.Is(err, matchmaking.ErrAlreadyInGame):
		h.fail(c, "search.already_in_game")
	case errors.Is(err, matchmaking.ErrInvalidTimeControl):
		h.fail(c, "search.invalid_time_control")
	case err != nil:
		obslog.L().Error("search_error", zap.String("login", c.login), zap.Error(err))
		h.fail(c, "search.failed")
	case match == nil:
		c.enqueue(protocol.NewOutbound(protocol.TypeSearchStarted, protocol.SearchStarted{TimeControl: string(tc)}))
	}
}

func (h *Hub) handleChallenge(ctx context.Context, c *conn, env protocol.Envelope) {
	var req protocol.ChallengeRequest
	if !h.decode(c, env, &req) {
		return
	}
	target := domain.NormalizeLogin(req.TargetLogin)
	if target == "" || strings.TrimSpace(req.TimeControl) == "" {
		h.fail(c, "challenge.missing_params")
		return
	}
	tc, ok := domain.ParseTimeControl(req.TimeControl)
	if !ok {
		h.fail(c, "search.invalid_time_control")
		return
	}
	if target == c.login {
		h.fail(c, "challenge.self")
		return
	}
	other, err := h.players.FindByLogin(ctx, target)
	if err != nil {
		obslog.L().Error("challenge_target_error", zap.String("login", c.login), zap.String("target", target), zap.Error(err))
		h.fail(c, "challenge.failed")
		return
	}
	if other == nil {
		h.fail(c, "challenge.user_not_found")
		return
	}
	if !other.Online {
		h.fail(c, "challenge.user_offline")
		return
	}

	ch, err := h.challenges.Create(ctx, c.login, target, tc)
	switch {
	case errors.Is(err, challenge.ErrSelfChallenge):
		h.fail(c, "challenge.self")
		return
	case errors.Is(err, challenge.ErrChallengerBusy):
		h.fail(c, "challenge.busy")
		return
	case errors.Is(err, challenge.ErrInvalidTimeControl):
		h.fail(c, "search.invalid_time_control")
		return
	case err != nil:
		obslog.L().Error("challenge_create_error", zap.String("login", c.login), zap.String("target", target), zap.Error(err))
		h.fail(c, "challenge.failed")
		return
	}

	c.enqueue(protocol.NewOutbound(protocol.TypeChallengeSent, protocol.ChallengeSent{
		ChallengeID: ch.ID,
		TargetUser:  target,
		TimeControl: string(tc),
	}))
	h.sendTo(target, protocol.NewOutbound(protocol.TypeIncomingChallenge, protocol.IncomingChallenge{
		ChallengeID:           ch.ID,
		Challenger:            c.login,
		ChallengerDisplayName: c.displayName,
		TimeControl:           string(tc),
	}))
}

var acceptErrorKeys = []struct {
	err error
	key string
}{
	{challenge.ErrNotFound, "challenge.not_found"},
	{challenge.ErrWrongPlayer, "challenge.wrong_player"},
	{challenge.ErrExpired, "challenge.expired"},
	{challenge.ErrChallengerBusy, "challenge.challenger_busy"},
	{challenge.ErrChallengedBusy, "challenge.challenged_busy"},
}

func (h *Hub) handleAccept(ctx context.Context, c *conn, env protocol.Envelope) {
	var ref protocol.ChallengeRef
	if err := env.Decode(&ref); err != nil || ref.ChallengeID <= 0 {
		h.fail(c, "challenge.invalid_id")
		return
	}
	_, err := h.challenges.Accept(ctx, ref.ChallengeID.Int64(), c.login)
	if err == nil {
		return
	}
	for _, m := range acceptErrorKeys {
		if errors.Is(err, m.err) {
			h.fail(c, m.key)
			return
		}
	}
	obslog.L().Error("challenge_accept_error", zap.String("login", c.login), zap.Int64("challenge_id", ref.ChallengeID.Int64()), zap.Error(err))
	h.fail(c, "challenge.accept_failed")
}

func (h *Hub) handleDecline(ctx context.Context, c *conn, env protocol.Envelope) {
	var ref protocol.ChallengeRef
	if err := env.Decode(&ref); err != nil || ref.ChallengeID <= 0 {
		h.fail(c, "challenge.invalid_id")
		return
	}
	ch, err := h.challenges.Decline(ctx, ref.ChallengeID.Int64(), c.login)
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		h.fail(c, "challenge.not_found")
		return
	case errors.Is(err, challenge.ErrWrongPlayer):
		h.fail(c, "challenge.wrong_player")
		return
	case err != nil:
		obslog.L().Error("challenge_decline_error", zap.String("login", c.login), zap.Int64("challenge_id", ref.ChallengeID.Int64()), zap.Error(err))
		h.fail(c, "challenge.decline_failed")
		return
	}
	h.sendTo(ch.Challenger, protocol.NewOutbound(protocol.TypeChallengeDeclined, protocol.ChallengeDeclined{
		ChallengeID: ch.ID,
		Message:     h.msgs.Text("challenge.declined", map[string]string{"Name": c.displayName}),
	}))
}

func (h *Hub) handleMove(ctx context.Context, c *conn, env protocol.Envelope) {
	var req protocol.MoveRequest
	if !h.decode(c, env, &req) {
		return
	}
	if strings.TrimSpace(req.GameID) == "" {
		h.fail(c, "game.invalid_id")
		return
	}
	res, err := h.games.ApplyMove(ctx, req.GameID, c.login, req.Move)
	switch res {
	case game.MoveSuccess, game.MoveGameEnded:
	case game.MoveError:
		obslog.L().Error("move_error", zap.String("login", c.login), zap.String("game_id", req.GameID), zap.Error(err))
		h.fail(c, "game.move_failed")
	default:
		h.failAs(c, string(res), "game.invalid_move")
	}
}

func (h *Hub) handleResign(ctx context.Context, c *conn, env protocol.Envelope) {
	var ref protocol.GameRef
	if !h.decode(c, env, &ref) {
		return
	}
	if strings.TrimSpace(ref.GameID) == "" {
		h.fail(c, "game.invalid_id")
		return
	}
	if _, err := h.games.Resign(ctx, ref.GameID, c.login); err != nil {
		obslog.L().Error("resign_error", zap.String("login", c.login), zap.String("game_id", ref.GameID), zap.Error(err))
		h.fail(c, "game.resign_failed")
	}
}

// handleChat relays to the opponent only. Chat is never persisted.
func (h *Hub) handleChat(ctx context.Context, c *conn, env protocol.Envelope) {
	var req protocol.ChatRequest
	if !h.decode(c, env, &req) {
		return
	}
	if strings.TrimSpace(req.GameID) == "" || strings.TrimSpace(req.Message) == "" {
		return
	}
	g, err := h.games.Session(ctx, req.GameID)
	if err != nil {
		if !errors.Is(err, game.ErrGameNotFound) {
			obslog.L().Warn("chat_session_error", zap.String("login", c.login), zap.String("game_id", req.GameID), zap.Error(err))
		}
		return
	}
	if !g.IsParticipant(c.login) {
		return
	}
	h.sendTo(g.Opponent(c.login), protocol.NewOutbound(protocol.TypeChatMessage, protocol.ChatMessage{
		GameID:    g.ID,
		Sender:    c.displayName,
		Message:   req.Message,
		Timestamp: h.now().UnixMilli(),
	}))
}
