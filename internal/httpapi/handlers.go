package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"example.com/codenames/internal/store"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (store.User, error)
}

type StatsReader interface {
	Stats(ctx context.Context, userID string) (store.PlayerStats, error)
}

type MarkerReader interface {
	Get(ctx context.Context, userID string) (string, bool, error)
}

type SessionCounter interface {
	Len() int
}

type MeHandler struct {
	Users   UserReader
	Stats   StatsReader
	Markers MarkerReader
	Log     *slog.Logger
}

type StatsResponse struct {
	Games  int `json:"games"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

type MeResponse struct {
	ID          string        `json:"id"`
	DisplayName string        `json:"displayName"`
	CreatedAt   *time.Time    `json:"createdAt,omitempty"`
	ActiveRoom  *string       `json:"activeRoom"`
	Stats       StatsResponse `json:"stats"`
}

// Me returns the caller's profile, the room they are currently in and their
// match record. Users without a profile row (guests) get the name from the
// token.
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}
	ctx := r.Context()

	resp := MeResponse{ID: claims.UserID, DisplayName: claims.DisplayName}

	u, err := h.Users.GetByID(ctx, claims.UserID)
	switch {
	case err == nil:
		resp.DisplayName = u.DisplayName
		resp.CreatedAt = &u.CreatedAt
	case errors.Is(err, store.ErrUserNotFound):
	default:
		h.log().Error("load user", "user", claims.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load user")
		return
	}

	st, err := h.Stats.Stats(ctx, claims.UserID)
	if err != nil {
		h.log().Error("load stats", "user", claims.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	resp.Stats = StatsResponse{Games: st.Games, Wins: st.Wins, Losses: st.Losses}

	// маркер — best effort, Redis может быть недоступен
	if room, ok, err := h.Markers.Get(ctx, claims.UserID); err != nil {
		h.log().Warn("load active room", "user", claims.UserID, "err", err)
	} else if ok {
		resp.ActiveRoom = &room
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *MeHandler) log() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// Health reports liveness and the number of live sessions.
func Health(sessions SessionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": sessions.Len(),
		})
	}
}
