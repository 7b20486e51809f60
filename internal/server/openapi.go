package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/lockstep/escaperoom/internal/badges"
	"github.com/lockstep/escaperoom/internal/room"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each backend dependency to its check status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Escape Room API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the escape room progression engine.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /platform/interactions
	postInteraction, _ := r.NewOperationContext(http.MethodPost, "/platform/interactions")
	postInteraction.SetSummary("Submit answer interaction")
	postInteraction.SetDescription("Gateway callback carrying a user's modal answer submission. Requires the platform bearer token.")
	postInteraction.AddReqStructure(InteractionRequest{})
	postInteraction.AddRespStructure(InteractionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postInteraction.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postInteraction.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postInteraction)

	// POST /platform/members
	postMember, _ := r.NewOperationContext(http.MethodPost, "/platform/members")
	postMember.SetSummary("Report membership change")
	postMember.SetDescription("Gateway callback for a member leaving or rejoining the community. Requires the platform bearer token.")
	postMember.AddReqStructure(MemberEventRequest{})
	postMember.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postMember.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postMember.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postMember)

	// GET /api/badges/events
	listBadgeEvents, _ := r.NewOperationContext(http.MethodGet, "/api/badges/events")
	listBadgeEvents.SetSummary("List badge events")
	listBadgeEvents.SetDescription("Returns every recorded event with its badges, newest first.")
	listBadgeEvents.AddRespStructure([]badges.Event{}, openapi.WithHTTPStatus(http.StatusOK))
	listBadgeEvents.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(listBadgeEvents)

	// GET /api/badges/users/{userID}
	getUserBadges, _ := r.NewOperationContext(http.MethodGet, "/api/badges/users/{userID}")
	getUserBadges.SetSummary("List a user's badges")
	getUserBadges.SetDescription("Returns the badges a user has earned, grouped by event.")
	getUserBadges.AddRespStructure([]badges.UserBadge{}, openapi.WithHTTPStatus(http.StatusOK))
	getUserBadges.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getUserBadges)

	// POST /api/admin/activate
	postActivate, _ := r.NewOperationContext(http.MethodPost, "/api/admin/activate")
	postActivate.SetSummary("Activate the room")
	postActivate.SetDescription("Opens the room for answer submissions. Requires the operator bearer token.")
	postActivate.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postActivate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postActivate)

	// POST /api/admin/deactivate
	postDeactivate, _ := r.NewOperationContext(http.MethodPost, "/api/admin/deactivate")
	postDeactivate.SetSummary("Deactivate the room")
	postDeactivate.SetDescription("Closes the room; submissions are ignored until reactivated. Requires the operator bearer token.")
	postDeactivate.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postDeactivate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postDeactivate)

	// GET /api/admin/progress
	getProgress, _ := r.NewOperationContext(http.MethodGet, "/api/admin/progress")
	getProgress.SetSummary("Progress snapshot")
	getProgress.SetDescription("Returns every tracked user's stage, furthest first. Requires the operator bearer token.")
	getProgress.AddRespStructure([]room.UserProgress{}, openapi.WithHTTPStatus(http.StatusOK))
	getProgress.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getProgress)

	// GET /api/admin/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/admin/events")
	getEvents.SetSummary("SSE progression stream")
	getEvents.SetDescription("Server-Sent Events stream of attempts, advances, and wins. Requires the operator bearer token.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// PUT /api/admin/config/winners
	putWinners, _ := r.NewOperationContext(http.MethodPut, "/api/admin/config/winners")
	putWinners.SetSummary("Configure winner ceremony")
	putWinners.SetDescription("Sets the winner channel and the winner and first-winner roles. Requires the operator bearer token.")
	putWinners.AddReqStructure(WinnersRequest{})
	putWinners.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	putWinners.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putWinners.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(putWinners)

	// PUT /api/admin/config/channels
	putChannels, _ := r.NewOperationContext(http.MethodPut, "/api/admin/config/channels")
	putChannels.SetSummary("Configure operator channels")
	putChannels.SetDescription("Sets the operator alert channel and the analytics log channel. Requires the operator bearer token.")
	putChannels.AddReqStructure(ChannelsRequest{})
	putChannels.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	putChannels.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(putChannels)

	// POST /api/admin/users/{userID}/stage
	postStage, _ := r.NewOperationContext(http.MethodPost, "/api/admin/users/{userID}/stage")
	postStage.SetSummary("Override a user's stage")
	postStage.SetDescription("Moves a user to an arbitrary stage and optionally resyncs their channel roles. Requires the operator bearer token.")
	postStage.AddReqStructure(SetStageRequest{})
	postStage.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postStage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	postStage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	postStage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postStage)

	// POST /api/admin/users/{userID}/clear-error
	postClearError, _ := r.NewOperationContext(http.MethodPost, "/api/admin/users/{userID}/clear-error")
	postClearError.SetSummary("Clear a user's error flag")
	postClearError.SetDescription("Acknowledges a failed permission transition after manual repair and advances the user. Requires the operator bearer token.")
	postClearError.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postClearError.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postClearError.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postClearError)

	// DELETE /api/admin/users/{userID}/cooldowns
	delUserCooldowns, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/users/{userID}/cooldowns")
	delUserCooldowns.SetSummary("Clear a user's cooldowns")
	delUserCooldowns.SetDescription("Drops all answer and alert cooldowns for one user. Requires the operator bearer token.")
	delUserCooldowns.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	delUserCooldowns.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(delUserCooldowns)

	// DELETE /api/admin/cooldowns
	delCooldowns, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/cooldowns")
	delCooldowns.SetSummary("Clear all cooldowns")
	delCooldowns.SetDescription("Drops every cooldown for every user. Requires the operator bearer token.")
	delCooldowns.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	delCooldowns.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(delCooldowns)

	// POST /api/admin/badges/events
	postEvent, _ := r.NewOperationContext(http.MethodPost, "/api/admin/badges/events")
	postEvent.SetSummary("Create badge event")
	postEvent.SetDescription("Records a new event and its badge set. Requires the operator bearer token.")
	postEvent.AddReqStructure(CreateEventRequest{})
	postEvent.AddRespStructure(badges.Event{}, openapi.WithHTTPStatus(http.StatusCreated))
	postEvent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postEvent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postEvent)

	// POST /api/admin/badges/users/{userID}
	postAward, _ := r.NewOperationContext(http.MethodPost, "/api/admin/badges/users/{userID}")
	postAward.SetSummary("Award badge")
	postAward.SetDescription("Awards a user a badge for an event, upgrading the kind if one is already held. Requires the operator bearer token.")
	postAward.AddReqStructure(AwardBadgeRequest{})
	postAward.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postAward.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postAward.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postAward)

	// DELETE /api/admin/badges/users/{userID}/{event}
	delAward, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/badges/users/{userID}/{event}")
	delAward.SetSummary("Revoke badge")
	delAward.SetDescription("Removes a user's badge for an event. Requires the operator bearer token.")
	delAward.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	delAward.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	delAward.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(delAward)

	// POST /api/admin/badges/invalidate
	postInvalidate, _ := r.NewOperationContext(http.MethodPost, "/api/admin/badges/invalidate")
	postInvalidate.SetSummary("Invalidate badge cache")
	postInvalidate.SetDescription("Drops the in-memory badge cache; the next read repopulates from the database. Requires the operator bearer token.")
	postInvalidate.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postInvalidate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postInvalidate)

	// GET /ws/progress
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/progress")
	getWS.SetSummary("WebSocket progression feed")
	getWS.SetDescription("Upgrades to a WebSocket connection streaming the progression feed. Pass the operator token as a query parameter.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
