package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lockstep/escaperoom/internal/badges"
)

func handleListEvents(cache *badges.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := cache.Events(r.Context())
		if errors.Is(err, badges.ErrBusy) {
			writeError(w, http.StatusServiceUnavailable, "badge cache is being populated, try again")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func handleUserBadges(cache *badges.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		ub, err := cache.UserBadges(r.Context(), userID)
		if errors.Is(err, badges.ErrBusy) {
			writeError(w, http.StatusServiceUnavailable, "badge cache is being populated, try again")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, ub)
	}
}

// CreateEventRequest defines a new event and its badges.
type CreateEventRequest struct {
	Name   string `json:"name"`
	Date   string `json:"date"` // RFC 3339; empty means now
	Badges []struct {
		FriendlyName string `json:"friendlyName"`
		Animated     bool   `json:"animated"`
		EmojiName    string `json:"emojiName"`
		EmojiID      string `json:"emojiId"`
		Link         string `json:"link"`
	} `json:"badges"`
}

func handleCreateEvent(cache *badges.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateEventRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if len(req.Name) > 120 {
			writeError(w, http.StatusBadRequest, "name is too long")
			return
		}

		date := time.Now().UTC()
		if req.Date != "" {
			parsed, err := time.Parse(time.RFC3339, req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "date must be RFC 3339")
				return
			}
			date = parsed
		}

		bs := make([]badges.Badge, 0, len(req.Badges))
		for _, b := range req.Badges {
			if len(b.FriendlyName) > 32 {
				writeError(w, http.StatusBadRequest, "badge name is too long")
				return
			}
			bs = append(bs, badges.Badge{
				FriendlyName: b.FriendlyName,
				Animated:     b.Animated,
				EmojiName:    b.EmojiName,
				EmojiID:      b.EmojiID,
				Link:         b.Link,
			})
		}

		ev, err := cache.AddEvent(r.Context(), req.Name, date, bs)
		if errors.Is(err, badges.ErrBusy) {
			writeError(w, http.StatusServiceUnavailable, "badge cache is being populated, try again")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, ev)
	}
}

// AwardBadgeRequest grants a user an event's badge.
type AwardBadgeRequest struct {
	Event  string `json:"event"` // event name fragment
	Winner bool   `json:"winner"`
	Kind   string `json:"kind"` // participated, contributed, both
}

func handleAwardBadge(cache *badges.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req AwardBadgeRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		kind, err := badges.ParseKind(req.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		err = cache.AwardBadge(r.Context(), userID, req.Event, req.Winner, kind)
		switch {
		case errors.Is(err, badges.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "no event matches that name")
		case errors.Is(err, badges.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, "badge cache is being populated, try again")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}
	}
}

func handleRevokeBadge(cache *badges.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		event := chi.URLParam(r, "event")

		err := cache.RevokeBadge(r.Context(), userID, event)
		switch {
		case errors.Is(err, badges.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "no event matches that name")
		case errors.Is(err, badges.ErrBadgeNotHeld):
			writeError(w, http.StatusNotFound, "user does not hold this badge")
		case errors.Is(err, badges.ErrBusy):
			writeError(w, http.StatusServiceUnavailable, "badge cache is being populated, try again")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}
	}
}

func handleInvalidateBadges(cache *badges.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache.Invalidate()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
