package room

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const stagesYAML = `
stages:
  - content: "What color is the door?"
    parts:
      - content: "color"
        answers: ["red", "crimson"]
        regex_answers: ["(?i)^r.d$"]
  - content: "Two locks, two codes."
    interaction_id: "fixed-token"
    parts:
      - content: "left"
        answers: ["4711"]
      - content: "right"
        answers: ["1337"]
`

func writeStagesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stages.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing stages file: %v", err)
	}
	return path
}

func TestSeedStages(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	r := New(Options{Store: store, Platform: newFakeClient(), Logger: testLogger()})

	if err := r.SeedStages(ctx, writeStagesFile(t, stagesYAML)); err != nil {
		t.Fatalf("SeedStages: %v", err)
	}

	stages := r.Stages()
	if len(stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(stages))
	}
	if stages[0].InteractionID == "" {
		t.Error("missing interaction token was not generated")
	}
	if stages[1].InteractionID != "fixed-token" {
		t.Errorf("explicit token = %q, want fixed-token", stages[1].InteractionID)
	}
	if len(stages[1].Parts) != 2 {
		t.Errorf("stage 2 parts = %d, want 2", len(stages[1].Parts))
	}
	if !stages[0].Matches([]string{"rAd"}) {
		t.Error("regex answer from the seed file does not match")
	}
	if store.doc == nil {
		t.Error("seeded stages were not persisted")
	}
}

func TestSeedStagesSkipsNonEmptyRoom(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(t, newFakeClient(), &memStore{})
	before := len(r.Stages())

	if err := r.SeedStages(ctx, writeStagesFile(t, stagesYAML)); err != nil {
		t.Fatalf("SeedStages: %v", err)
	}
	if got := len(r.Stages()); got != before {
		t.Errorf("stages = %d, want untouched %d", got, before)
	}
}

func TestSeedStagesRejectsBadFiles(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", "stages: []"},
		{"no parts", "stages:\n  - content: \"x\"\n    parts: []"},
		{"invalid yaml", ": not yaml ["},
		{"invalid regex", "stages:\n  - content: \"x\"\n    parts:\n      - answers: [\"a\"]\n        regex_answers: [\"([unclosed\"]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Options{Store: &memStore{}, Platform: newFakeClient(), Logger: testLogger()})
			if err := r.SeedStages(ctx, writeStagesFile(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSeedStagesMissingFile(t *testing.T) {
	r := New(Options{Store: &memStore{}, Platform: newFakeClient(), Logger: testLogger()})
	if err := r.SeedStages(context.Background(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
