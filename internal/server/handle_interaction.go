package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lockstep/escaperoom/internal/platform"
	"github.com/lockstep/escaperoom/internal/room"
)

// InteractionRequest is one submitted answer, delivered by the platform
// gateway once it has collected the form inputs. An expired or abandoned
// form never reaches us.
type InteractionRequest struct {
	UserID        string   `json:"userId"`
	InteractionID string   `json:"interactionId"`
	Inputs        []string `json:"inputs"`
}

type InteractionResponse struct {
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	// Seconds the user must wait before retrying, for cooldown outcomes.
	RetryAfter int `json:"retryAfter,omitempty"`
}

func handleInteraction(rm *room.Room, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InteractionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		req.InteractionID = strings.TrimSpace(req.InteractionID)
		if req.UserID == "" || req.InteractionID == "" {
			writeError(w, http.StatusBadRequest, "userId and interactionId are required")
			return
		}
		for i := range req.Inputs {
			req.Inputs[i] = strings.TrimSpace(req.Inputs[i])
		}

		// The retry loop inside the engine deliberately outlives the
		// request; detach from the request context so a closed connection
		// doesn't abort durable state repair.
		ctx := r.Context()
		res, err := rm.HandleAnswer(context.WithoutCancel(ctx), platform.UserID(req.UserID), req.InteractionID, req.Inputs)
		if err != nil {
			// The engine already flagged and escalated; the gateway just
			// needs something to show the user.
			writeJSON(w, http.StatusOK, InteractionResponse{
				Outcome: string(res.Outcome),
				Message: "Something went wrong moving you along, the event team has been notified.",
			})
			return
		}

		resp := InteractionResponse{Outcome: string(res.Outcome)}
		switch res.Outcome {
		case room.OutcomeWrong:
			resp.Message = "That was not a right answer!"
			broker.Publish(FeedEvent{Type: "attempt", UserID: req.UserID, Stage: res.Stage})
		case room.OutcomeCooldown:
			resp.RetryAfter = int(res.Remaining / time.Second)
			resp.Message = "You answered recently, wait before trying again."
		case room.OutcomeWrongStage:
			resp.Message = "You are answering the wrong stage; go back to " + string(res.ExpectedChannel) + "."
		case room.OutcomeAdvanced:
			resp.Message = "Correct! Proceed to " + string(res.NextChannel) + "."
			broker.Publish(FeedEvent{Type: "advance", UserID: req.UserID, Stage: res.Stage, Correct: true})
		case room.OutcomeWon:
			resp.Message = "You escaped the room!"
			broker.Publish(FeedEvent{Type: "win", UserID: req.UserID, Stage: res.Stage, Correct: true, First: res.First})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// MemberEventRequest reports a membership change from the platform.
type MemberEventRequest struct {
	UserID string `json:"userId"`
	Event  string `json:"event"` // left, rejoined
}

func handleMemberEvent(rm *room.Room) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MemberEventRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		var err error
		switch req.Event {
		case "left":
			err = rm.MemberLeft(r.Context(), platform.UserID(req.UserID))
		case "rejoined":
			err = rm.MemberRejoined(r.Context(), platform.UserID(req.UserID))
		default:
			writeError(w, http.StatusBadRequest, "unknown member event")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
