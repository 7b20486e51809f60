// Package room implements the escape-room progression engine: the per-user
// stage state machine, answer matching, cooldowns, the two-phase permission
// transition against the chat platform, and win resolution.
//
// All mutable state lives in one document guarded by a single RWMutex. The
// lock is held only for in-memory reads and updates, never across platform
// calls, sleeps, or persistence I/O.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lockstep/escaperoom/internal/platform"
)

// ErrorFlag marks an unresolved permission-sync failure for a user.
type ErrorFlag int

const (
	FlagNone ErrorFlag = iota
	FlagPendingRetry
	FlagHardFailed
)

// Winners tracks win state. FirstWinner is set at most once and always
// equals Winners[0].
type Winners struct {
	FirstWinner     platform.UserID   `json:"first_winner,omitempty"`
	Winners         []platform.UserID `json:"winners"`
	WinnerChannel   platform.ChannelID `json:"winner_channel,omitempty"`
	FirstWinnerRole platform.RoleID   `json:"first_winner_role,omitempty"`
	WinnerRole      platform.RoleID   `json:"winner_role,omitempty"`
}

// Span records when a user started and finished the room.
type Span struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// document is the persisted room state. It is rewritten to the store after
// every mutation; cooldowns are deliberately not part of it.
type document struct {
	Active       bool                           `json:"active"`
	Stages       []*Stage                       `json:"stages"`
	Progress     map[platform.UserID]int        `json:"user_progress"`
	Spans        map[platform.UserID]*Span      `json:"start_end_times"`
	Winners      Winners                        `json:"winners"`
	ErrorFlags   map[platform.UserID]ErrorFlag  `json:"error_flags"`
	ErrorChannel platform.ChannelID             `json:"error_channel,omitempty"`
	LogChannel   platform.ChannelID             `json:"log_channel,omitempty"`
}

func newDocument() document {
	return document{
		Progress:   make(map[platform.UserID]int),
		Spans:      make(map[platform.UserID]*Span),
		ErrorFlags: make(map[platform.UserID]ErrorFlag),
	}
}

// Attempt is one submitted answer, published to the attempt log hook.
type Attempt struct {
	User    platform.UserID `json:"user"`
	Stage   int             `json:"stage"`
	Inputs  []string        `json:"inputs"`
	Correct bool            `json:"correct"`
}

// Options configures a Room. Store and Platform are required.
type Options struct {
	Store    DocStore
	Platform platform.Client
	Logger   *slog.Logger

	// Retry and settle timings for the permission synchronizer. Zero values
	// fall back to production defaults.
	RetryDelay  time.Duration
	SettleDelay time.Duration

	// Sleep is injectable so synchronizer tests run without real delays.
	Sleep func(ctx context.Context, d time.Duration)

	// Now is injectable for cooldown tests.
	Now func() time.Time

	// OnAttempt, when set, receives every answer attempt. Called without
	// the room lock held.
	OnAttempt func(Attempt)
}

const (
	defaultRetryDelay  = 30 * time.Second
	defaultSettleDelay = 10 * time.Second
	maxRetries         = 3
)

type Room struct {
	mu  sync.RWMutex
	doc document

	cooldowns cooldowns

	store    DocStore
	platform platform.Client
	logger   *slog.Logger

	retry       retryPolicy
	settleDelay time.Duration
	sleep       func(ctx context.Context, d time.Duration)
	now         func() time.Time
	onAttempt   func(Attempt)
}

// New builds a Room around an empty document. Call Restore to load
// persisted state before serving traffic.
func New(opts Options) *Room {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Room{
		doc:         newDocument(),
		cooldowns:   newCooldowns(),
		store:       opts.Store,
		platform:    opts.Platform,
		logger:      opts.Logger,
		retry:       retryPolicy{maxRetries: maxRetries, delay: opts.RetryDelay},
		settleDelay: opts.SettleDelay,
		sleep:       opts.Sleep,
		now:         opts.Now,
		onAttempt:   opts.OnAttempt,
	}
}

// Restore loads the persisted document. A missing document creates and
// persists an empty default; a document that fails to parse is a fatal
// startup condition and is returned as an error.
func (r *Room) Restore(ctx context.Context) error {
	raw, err := r.store.Load(ctx)
	if errors.Is(err, ErrNoDocument) {
		return r.persistSnapshot(ctx, r.snapshot())
	}
	if err != nil {
		return fmt.Errorf("loading room state: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing room state: %w", err)
	}
	if doc.Progress == nil {
		doc.Progress = make(map[platform.UserID]int)
	}
	if doc.Spans == nil {
		doc.Spans = make(map[platform.UserID]*Span)
	}
	if doc.ErrorFlags == nil {
		doc.ErrorFlags = make(map[platform.UserID]ErrorFlag)
	}

	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
	return nil
}

// Active reports whether the room is accepting answers.
func (r *Room) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.Active
}

// SetActive toggles the room and returns the previous value.
func (r *Room) SetActive(ctx context.Context, active bool) (bool, error) {
	r.mu.Lock()
	old := r.doc.Active
	r.doc.Active = active
	raw := r.snapshotLocked()
	r.mu.Unlock()

	return old, r.persistSnapshot(ctx, raw)
}

// SetWinners configures the winner channel and roles.
func (r *Room) SetWinners(ctx context.Context, w Winners) error {
	r.mu.Lock()
	r.doc.Winners.WinnerChannel = w.WinnerChannel
	r.doc.Winners.FirstWinnerRole = w.FirstWinnerRole
	r.doc.Winners.WinnerRole = w.WinnerRole
	raw := r.snapshotLocked()
	r.mu.Unlock()

	return r.persistSnapshot(ctx, raw)
}

// SetChannels configures the operator error and analytics channels.
func (r *Room) SetChannels(ctx context.Context, errorCh, logCh platform.ChannelID) error {
	r.mu.Lock()
	r.doc.ErrorChannel = errorCh
	r.doc.LogChannel = logCh
	raw := r.snapshotLocked()
	r.mu.Unlock()

	return r.persistSnapshot(ctx, raw)
}

// Stages returns a copy of the stage list.
func (r *Room) Stages() []*Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Stage, len(r.doc.Stages))
	copy(out, r.doc.Stages)
	return out
}

// snapshot marshals the current document under a read lock.
func (r *Room) snapshot() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() []byte {
	raw, err := json.Marshal(&r.doc)
	if err != nil {
		// The document contains only marshal-safe types.
		panic(fmt.Sprintf("marshaling room document: %v", err))
	}
	return raw
}

// persistSnapshot writes a previously taken snapshot. Persistence failures
// are surfaced and logged, never fatal: losing a write must not take the
// session down for every player.
func (r *Room) persistSnapshot(ctx context.Context, raw []byte) error {
	if err := r.store.Save(ctx, raw); err != nil {
		r.logger.Error("persisting room state", "error", err)
		return fmt.Errorf("persisting room state: %w", err)
	}
	return nil
}
