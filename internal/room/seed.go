package room

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a stage definition file.
type seedFile struct {
	Stages []*Stage `yaml:"stages"`
}

// SeedStages loads stage definitions from a YAML file into an empty room.
// Stages without an interaction token get a fresh one, so remote controls
// built later correlate back to them. A room that already has stages is
// left untouched.
func (r *Room) SeedStages(ctx context.Context, path string) error {
	r.mu.RLock()
	existing := len(r.doc.Stages)
	r.mu.RUnlock()
	if existing > 0 {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading stages file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing stages file: %w", err)
	}
	if len(f.Stages) == 0 {
		return fmt.Errorf("stages file %s defines no stages", path)
	}
	for i, s := range f.Stages {
		if len(s.Parts) == 0 {
			return fmt.Errorf("stage %d has no parts", i+1)
		}
		if s.InteractionID == "" {
			s.InteractionID = uuid.NewString()
		}
	}

	r.mu.Lock()
	r.doc.Stages = f.Stages
	raw = r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Info("seeded stages", "count", len(f.Stages), "file", path)
	return r.persistSnapshot(ctx, raw)
}
