package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lockstep/escaperoom/internal/room"
)

func adminRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAdminRequiresToken(t *testing.T) {
	h, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/progress", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/progress", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", w.Code)
	}

	if w := adminRequest(t, h, http.MethodGet, "/api/admin/progress", ""); w.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", w.Code)
	}
}

func TestAdminActivateDeactivate(t *testing.T) {
	h, rm, _ := testHandler(t)

	if w := adminRequest(t, h, http.MethodPost, "/api/admin/deactivate", "{}"); w.Code != http.StatusOK {
		t.Fatalf("deactivate: status = %d, want 200", w.Code)
	}
	if rm.Active() {
		t.Error("room still active after deactivate")
	}

	// A deactivated room ignores submissions.
	w := postJSON(t, h, "/platform/interactions", testPlatformToken,
		`{"userId":"alice","interactionId":"t1","inputs":["red"]}`)
	if resp := decodeInteraction(t, w); resp.Outcome != "ignored" {
		t.Errorf("outcome = %q, want ignored", resp.Outcome)
	}

	if w := adminRequest(t, h, http.MethodPost, "/api/admin/activate", "{}"); w.Code != http.StatusOK {
		t.Fatalf("activate: status = %d, want 200", w.Code)
	}
	if !rm.Active() {
		t.Error("room not active after activate")
	}
}

func TestAdminProgressList(t *testing.T) {
	h, _, _ := testHandler(t)

	postJSON(t, h, "/platform/interactions", testPlatformToken,
		`{"userId":"alice","interactionId":"t1","inputs":["red"]}`)

	w := adminRequest(t, h, http.MethodGet, "/api/admin/progress", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var list []room.UserProgress
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(list) != 1 || list[0].User != "alice" || list[0].Stage != 2 {
		t.Errorf("progress = %+v, want alice on stage 2", list)
	}
}

func TestAdminSetStage(t *testing.T) {
	h, rm, _ := testHandler(t)

	w := adminRequest(t, h, http.MethodPost, "/api/admin/users/alice/stage",
		`{"stage":3,"syncPermissions":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := rm.Current("alice"); got != 3 {
		t.Errorf("Current = %d, want 3", got)
	}

	w = adminRequest(t, h, http.MethodPost, "/api/admin/users/alice/stage",
		`{"stage":99}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("out of range: status = %d, want 422", w.Code)
	}
}

func TestAdminSetWinners(t *testing.T) {
	h, _, _ := testHandler(t)

	w := adminRequest(t, h, http.MethodPut, "/api/admin/config/winners",
		`{"winnerChannel":"podium","winnerRole":"champion","firstWinnerRole":"trailblazer"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = adminRequest(t, h, http.MethodPut, "/api/admin/config/winners",
		`{"winnerRole":"champion"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing channel: status = %d, want 400", w.Code)
	}

	w = adminRequest(t, h, http.MethodPut, "/api/admin/config/winners", `{`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
}

func TestAdminSetChannels(t *testing.T) {
	h, _, _ := testHandler(t)

	w := adminRequest(t, h, http.MethodPut, "/api/admin/config/channels",
		`{"errorChannel":"ops","logChannel":"analytics"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAdminClearErrorWithoutFlag(t *testing.T) {
	h, _, _ := testHandler(t)

	w := adminRequest(t, h, http.MethodPost, "/api/admin/users/alice/clear-error", "{}")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestAdminClearCooldowns(t *testing.T) {
	h, _, _ := testHandler(t)
	wrong := `{"userId":"alice","interactionId":"t1","inputs":["purple"]}`
	right := `{"userId":"alice","interactionId":"t1","inputs":["red"]}`

	postJSON(t, h, "/platform/interactions", testPlatformToken, wrong)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/alice/cooldowns", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// The throttle is gone; a correct answer goes straight through.
	resp := decodeInteraction(t, postJSON(t, h, "/platform/interactions", testPlatformToken, right))
	if resp.Outcome != "advanced" {
		t.Errorf("outcome after clear = %q, want advanced", resp.Outcome)
	}
}

func TestHealthz(t *testing.T) {
	h, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var checks map[string]struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &checks); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if checks["sqlite"].Status != "ok" {
		t.Errorf("sqlite status = %q, want ok", checks["sqlite"].Status)
	}
}

func TestOpenAPISpecServed(t *testing.T) {
	h, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var spec struct {
		OpenAPI string         `json:"openapi"`
		Paths   map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &spec); err != nil {
		t.Fatalf("decoding spec: %v", err)
	}
	if spec.OpenAPI == "" {
		t.Error("spec missing openapi version")
	}
	for _, path := range []string{"/platform/interactions", "/api/admin/progress", "/api/badges/events"} {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("spec missing path %s", path)
		}
	}
}
