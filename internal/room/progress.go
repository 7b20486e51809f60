package room

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lockstep/escaperoom/internal/platform"
)

var (
	ErrNoErrorFlag  = errors.New("user has no error flag set")
	ErrInvalidStage = errors.New("invalid stage number")
)

// Current returns the 1-based stage the user is expected to answer next.
// Users with no entry are on stage 1.
func (r *Room) Current(user platform.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentLocked(user)
}

func (r *Room) currentLocked(user platform.UserID) int {
	if n, ok := r.doc.Progress[user]; ok {
		return n
	}
	return 1
}

// advance increments the user's stage index and persists. Only the
// permission synchronizer calls this, after the full transition succeeded,
// so the visible channel and the recorded index never drift apart.
func (r *Room) advance(ctx context.Context, user platform.UserID) int {
	r.mu.Lock()
	n := r.currentLocked(user) + 1
	r.doc.Progress[user] = n
	raw := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.persistSnapshot(ctx, raw); err != nil {
		r.logger.Error("persisting after advance", "user", user, "stage", n, "error", err)
	}
	return n
}

// MemberLeft removes the user's progression entry entirely, so a rejoin
// restarts at stage 1 instead of silently resuming.
func (r *Room) MemberLeft(ctx context.Context, user platform.UserID) error {
	return r.removeProgress(ctx, user)
}

// MemberRejoined mirrors MemberLeft: any stale entry is dropped.
func (r *Room) MemberRejoined(ctx context.Context, user platform.UserID) error {
	return r.removeProgress(ctx, user)
}

func (r *Room) removeProgress(ctx context.Context, user platform.UserID) error {
	r.mu.Lock()
	delete(r.doc.Progress, user)
	r.cooldowns.clearUser(user)
	raw := r.snapshotLocked()
	r.mu.Unlock()

	return r.persistSnapshot(ctx, raw)
}

// AdminSetStage sets the user's stage index directly. With syncPermissions
// the full gate-role set implied by the target stage is recomputed and
// applied in one shot; without it only the bookkeeping changes and the
// operator fixes visibility by hand. No retry machinery here: a failure is
// returned straight to the operator.
func (r *Room) AdminSetStage(ctx context.Context, user platform.UserID, stage int, syncPermissions bool) error {
	r.mu.Lock()
	if stage < 1 || stage > len(r.doc.Stages)+1 {
		r.mu.Unlock()
		return ErrInvalidStage
	}
	r.doc.Progress[user] = stage

	gateRoles := make(map[platform.RoleID]bool)
	var keep platform.RoleID
	for i, s := range r.doc.Stages {
		if s.GateRole == "" {
			continue
		}
		gateRoles[s.GateRole] = true
		if i == stage-1 {
			keep = s.GateRole
		}
	}
	raw := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.persistSnapshot(ctx, raw); err != nil {
		return err
	}

	if !syncPermissions {
		return nil
	}

	roles, err := r.platform.MemberRoles(ctx, user)
	if err != nil {
		return fmt.Errorf("fetching member roles: %w", err)
	}

	next := roles[:0]
	for _, role := range roles {
		if !gateRoles[role] {
			next = append(next, role)
		}
	}
	if keep != "" {
		next = append(next, keep)
	}

	if err := r.platform.SetRoles(ctx, user, next); err != nil {
		return fmt.Errorf("applying member roles: %w", err)
	}
	return nil
}

// ClearErrorFlag is the manual recovery path after a hard-failed permission
// transition: the operator has fixed the platform state by hand, so the
// flag is dropped and the user is advanced without re-attempting anything.
func (r *Room) ClearErrorFlag(ctx context.Context, user platform.UserID) (int, error) {
	r.mu.Lock()
	flag, ok := r.doc.ErrorFlags[user]
	if !ok || flag == FlagNone {
		r.mu.Unlock()
		return 0, ErrNoErrorFlag
	}
	delete(r.doc.ErrorFlags, user)
	n := r.currentLocked(user) + 1
	r.doc.Progress[user] = n
	raw := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.persistSnapshot(ctx, raw); err != nil {
		return n, err
	}
	return n, nil
}

// ErrorFlagFor returns the user's current flag.
func (r *Room) ErrorFlagFor(user platform.UserID) ErrorFlag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.ErrorFlags[user]
}

func (r *Room) setErrorFlag(ctx context.Context, user platform.UserID, flag ErrorFlag) {
	r.mu.Lock()
	if flag == FlagNone {
		delete(r.doc.ErrorFlags, user)
	} else {
		r.doc.ErrorFlags[user] = flag
	}
	raw := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.persistSnapshot(ctx, raw); err != nil {
		r.logger.Error("persisting error flag", "user", user, "flag", flag, "error", err)
	}
}

// UserProgress is one leaderboard row.
type UserProgress struct {
	User  platform.UserID `json:"user"`
	Stage int             `json:"stage"`
	Won   bool            `json:"won"`
}

// ProgressList returns a snapshot of everyone's progress, furthest first.
func (r *Room) ProgressList() []UserProgress {
	r.mu.RLock()
	total := len(r.doc.Stages)
	out := make([]UserProgress, 0, len(r.doc.Progress))
	for user, stage := range r.doc.Progress {
		out = append(out, UserProgress{User: user, Stage: stage, Won: stage > total})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage > out[j].Stage
		}
		return out[i].User < out[j].User
	})
	return out
}
