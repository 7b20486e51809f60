package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lockstep/escaperoom/internal/badges"
	"github.com/lockstep/escaperoom/internal/database"
	"github.com/lockstep/escaperoom/internal/migrations"
	"github.com/lockstep/escaperoom/internal/platform"
	"github.com/lockstep/escaperoom/internal/room"
)

const (
	testPlatformToken = "platform-secret"
	testAdminToken    = "operator-secret"
)

// noopPlatform accepts every permission call and records messages.
type noopPlatform struct {
	mu       sync.Mutex
	messages map[platform.ChannelID][]string
}

func newNoopPlatform() *noopPlatform {
	return &noopPlatform{messages: make(map[platform.ChannelID][]string)}
}

func (p *noopPlatform) CreateOverride(context.Context, platform.ChannelID, platform.Override) error {
	return nil
}
func (p *noopPlatform) DeleteOverride(context.Context, platform.ChannelID, platform.UserID) error {
	return nil
}
func (p *noopPlatform) AddRole(context.Context, platform.UserID, platform.RoleID) error    { return nil }
func (p *noopPlatform) RemoveRole(context.Context, platform.UserID, platform.RoleID) error { return nil }
func (p *noopPlatform) SetRoles(context.Context, platform.UserID, []platform.RoleID) error { return nil }
func (p *noopPlatform) MemberRoles(context.Context, platform.UserID) ([]platform.RoleID, error) {
	return nil, nil
}
func (p *noopPlatform) SendMessage(_ context.Context, ch platform.ChannelID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[ch] = append(p.messages[ch], content)
	return nil
}

const testStagesYAML = `
stages:
  - content: "What color is the door?"
    channel: "c1"
    interaction_id: "t1"
    parts:
      - content: "color"
        answers: ["red"]
  - content: "What color is the key?"
    channel: "c2"
    interaction_id: "t2"
    parts:
      - content: "color"
        answers: ["blue"]
  - content: "What color is the exit sign?"
    channel: "c3"
    interaction_id: "t3"
    parts:
      - content: "color"
        answers: ["green"]
`

// testHandler builds the full route table over an in-memory database and a
// seeded, active three-stage room.
func testHandler(t *testing.T) (http.Handler, *room.Room, *badges.Cache) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rm := room.New(room.Options{
		Store:    room.NewSQLiteDocStore(db),
		Platform: newNoopPlatform(),
		Logger:   logger,
		Sleep:    func(context.Context, time.Duration) {},
	})
	if err := rm.Restore(ctx); err != nil {
		t.Fatalf("restoring room: %v", err)
	}
	stagesPath := filepath.Join(t.TempDir(), "stages.yaml")
	if err := os.WriteFile(stagesPath, []byte(testStagesYAML), 0o644); err != nil {
		t.Fatalf("writing stages file: %v", err)
	}
	if err := rm.SeedStages(ctx, stagesPath); err != nil {
		t.Fatalf("seeding stages: %v", err)
	}
	if _, err := rm.SetActive(ctx, true); err != nil {
		t.Fatalf("activating room: %v", err)
	}
	if err := rm.SetWinners(ctx, room.Winners{
		WinnerChannel: "hall-of-fame",
		WinnerRole:    "winner",
	}); err != nil {
		t.Fatalf("configuring winners: %v", err)
	}

	cache := badges.NewCache(badges.NewStore(db))

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing admin token: %v", err)
	}

	r := chi.NewRouter()
	addRoutes(r, Options{
		Logger:         logger,
		Room:           rm,
		Badges:         cache,
		Broker:         NewBroker(),
		DB:             db,
		PlatformToken:  testPlatformToken,
		AdminTokenHash: string(hash),
	})
	return r, rm, cache
}
