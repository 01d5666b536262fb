package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/auth"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/pkg/protocol"
)

const maxDisplayName = 32

type api struct {
	resolver auth.Resolver
	players  store.PlayerStore
}

// routes mounts the REST endpoints and the game socket.
func routes(a *api, ws http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("GET /api/users/profile", a.authed(a.getProfile))
	mux.HandleFunc("PUT /api/users/profile", a.authed(a.putProfile))
	mux.HandleFunc("GET /api/users/online", a.authed(a.listOnline))
	mux.Handle("/ws", ws)
	return mux
}

func (a *api) authed(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolver.Resolve(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				obslog.L().Warn("api_auth_error", zap.String("path", r.URL.Path), zap.Error(err))
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, id)
	}
}

func (a *api) getProfile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	p, err := a.players.Ensure(r.Context(), id.Login, id.DisplayName)
	if err != nil {
		obslog.L().Error("profile_load_error", zap.String("login", id.Login), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(p))
}

func (a *api) putProfile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req protocol.UpdateProfileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayName {
		writeError(w, http.StatusBadRequest, "displayName must be 1-32 characters")
		return
	}
	if _, err := a.players.Ensure(r.Context(), id.Login, id.DisplayName); err != nil {
		obslog.L().Error("profile_load_error", zap.String("login", id.Login), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if err := a.players.SetDisplayName(r.Context(), id.Login, name); err != nil {
		obslog.L().Error("profile_update_error", zap.String("login", id.Login), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	p, err := a.players.FindByLogin(r.Context(), id.Login)
	if err != nil || p == nil {
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(p))
}

func (a *api) listOnline(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	players, err := a.players.ListOnline(r.Context(), id.Login)
	if err != nil {
		obslog.L().Error("online_list_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list players")
		return
	}
	out := make([]protocol.PlayerProfile, 0, len(players))
	for _, p := range players {
		out = append(out, profileOf(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func profileOf(p *domain.Player) protocol.PlayerProfile {
	stats := make(map[string]protocol.Record, len(domain.TimeControls))
	for _, tc := range domain.TimeControls {
		st := p.Standing(tc)
		stats[string(tc)] = protocol.Record{Wins: st.Wins, Losses: st.Losses, Draws: st.Draws}
	}
	prof := protocol.PlayerProfile{
		Login:        p.Login,
		DisplayName:  p.DisplayName,
		BulletRating: p.RatingFor(domain.Bullet),
		BlitzRating:  p.RatingFor(domain.Blitz),
		RapidRating:  p.RatingFor(domain.Rapid),
		IsOnline:     p.Online,
		Stats:        stats,
	}
	if !p.LastSeen.IsZero() {
		prof.LastSeenMilli = p.LastSeen.UnixMilli()
	}
	return prof
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Debug("api_write_error", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
