package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lockstep/escaperoom/internal/platform"
	"github.com/lockstep/escaperoom/internal/room"
)

func handleActivate(rm *room.Room, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		old, err := rm.SetActive(r.Context(), active)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to persist room state")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"active": active, "was": old})
	}
}

func handleProgress(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rm.ProgressList())
	}
}

// SetStageRequest is the operator recovery override.
type SetStageRequest struct {
	Stage           int  `json:"stage"`
	SyncPermissions bool `json:"syncPermissions"`
}

func handleSetStage(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req SetStageRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := rm.AdminSetStage(r.Context(), platform.UserID(userID), req.Stage, req.SyncPermissions)
		if errors.Is(err, room.ErrInvalidStage) {
			writeError(w, http.StatusUnprocessableEntity, "stage out of range")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "could not apply permissions: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "stage": req.Stage})
	}
}

func handleClearError(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		stage, err := rm.ClearErrorFlag(r.Context(), platform.UserID(userID))
		if errors.Is(err, room.ErrNoErrorFlag) {
			writeError(w, http.StatusConflict, "user has no error flag set")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to persist room state")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "stage": stage})
	}
}

// WinnersRequest configures the winner ceremony targets.
type WinnersRequest struct {
	WinnerChannel   string `json:"winnerChannel"`
	WinnerRole      string `json:"winnerRole"`
	FirstWinnerRole string `json:"firstWinnerRole"`
}

func handleSetWinners(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WinnersRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.WinnerChannel == "" {
			writeError(w, http.StatusBadRequest, "winnerChannel is required")
			return
		}
		err := rm.SetWinners(r.Context(), room.Winners{
			WinnerChannel:   platform.ChannelID(req.WinnerChannel),
			WinnerRole:      platform.RoleID(req.WinnerRole),
			FirstWinnerRole: platform.RoleID(req.FirstWinnerRole),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to persist room state")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ChannelsRequest configures the operator alert and analytics channels.
type ChannelsRequest struct {
	ErrorChannel string `json:"errorChannel"`
	LogChannel   string `json:"logChannel"`
}

func handleSetChannels(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChannelsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		err := rm.SetChannels(r.Context(), platform.ChannelID(req.ErrorChannel), platform.ChannelID(req.LogChannel))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to persist room state")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleClearCooldowns(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm.ClearCooldowns(platform.UserID(chi.URLParam(r, "userID")))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleClearAllCooldowns(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm.ClearAllCooldowns()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
