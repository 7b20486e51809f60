package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lockstep/escaperoom/internal/badges"
)

func createTestEvent(t *testing.T, h http.Handler) badges.Event {
	t.Helper()
	w := adminRequest(t, h, http.MethodPost, "/api/admin/badges/events", `{
		"name": "summer escape",
		"date": "2024-07-01T00:00:00Z",
		"badges": [
			{"friendlyName": "escape badge", "emojiName": "trophy", "emojiId": "1001"}
		]
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create event: status = %d, body %s", w.Code, w.Body.String())
	}
	var ev badges.Event
	if err := json.Unmarshal(w.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	return ev
}

func TestCreateEventValidation(t *testing.T) {
	h, _, _ := testHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"empty name", `{"name":"  "}`},
		{"bad date", `{"name":"x","date":"yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := adminRequest(t, h, http.MethodPost, "/api/admin/badges/events", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListEventsIsPublic(t *testing.T) {
	h, _, _ := testHandler(t)
	createTestEvent(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/badges/events", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var events []badges.Event
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(events) != 1 || events[0].Name != "summer escape" {
		t.Errorf("events = %+v, want the created event", events)
	}
	if len(events[0].Badges) != 1 {
		t.Errorf("badges = %d, want 1", len(events[0].Badges))
	}
}

func TestAwardAndListUserBadges(t *testing.T) {
	h, _, _ := testHandler(t)
	createTestEvent(t, h)

	w := adminRequest(t, h, http.MethodPost, "/api/admin/badges/users/alice",
		`{"event":"summer","winner":true,"kind":"both"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("award: status = %d, body %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/badges/users/alice", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d, want 200", rec.Code)
	}
	var got []badges.UserBadge
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(got) != 1 || !got[0].Winner || got[0].Kind != badges.Both {
		t.Errorf("user badges = %+v, want one winner badge of kind both", got)
	}
}

func TestAwardBadgeErrors(t *testing.T) {
	h, _, _ := testHandler(t)
	createTestEvent(t, h)

	w := adminRequest(t, h, http.MethodPost, "/api/admin/badges/users/alice",
		`{"event":"winter","kind":"participated"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown event: status = %d, want 404", w.Code)
	}

	w = adminRequest(t, h, http.MethodPost, "/api/admin/badges/users/alice",
		`{"event":"summer","kind":"champion"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad kind: status = %d, want 400", w.Code)
	}
}

func TestRevokeBadge(t *testing.T) {
	h, _, _ := testHandler(t)
	createTestEvent(t, h)

	adminRequest(t, h, http.MethodPost, "/api/admin/badges/users/alice",
		`{"event":"summer","kind":"participated"}`)

	w := adminRequest(t, h, http.MethodDelete, "/api/admin/badges/users/alice/summer", "")
	if w.Code != http.StatusOK {
		t.Fatalf("revoke: status = %d, want 200", w.Code)
	}

	w = adminRequest(t, h, http.MethodDelete, "/api/admin/badges/users/alice/summer", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second revoke: status = %d, want 404", w.Code)
	}
}

func TestInvalidateBadges(t *testing.T) {
	h, _, cache := testHandler(t)
	createTestEvent(t, h)

	w := adminRequest(t, h, http.MethodPost, "/api/admin/badges/invalidate", "{}")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// The cache refills on the next read.
	n, err := cache.TotalEvents(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if err != nil {
		t.Fatalf("TotalEvents: %v", err)
	}
	if n != 1 {
		t.Errorf("TotalEvents after invalidate = %d, want 1", n)
	}
}
