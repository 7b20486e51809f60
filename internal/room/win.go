package room

import (
	"context"
	"fmt"

	"github.com/lockstep/escaperoom/internal/platform"
)

// resolveWin runs when a user answers the last stage correctly. First-winner
// status is claimed with a single check-and-set under the write lock, so
// concurrent completions resolve to exactly one first winner. The permission
// work reuses the synchronizer's retry/escalation machinery.
func (r *Room) resolveWin(ctx context.Context, user platform.UserID, lastChannel platform.ChannelID, isFirstStage bool) (bool, error) {
	r.mu.Lock()
	first := r.doc.Winners.FirstWinner == ""
	if first {
		r.doc.Winners.FirstWinner = user
	}
	already := false
	for _, w := range r.doc.Winners.Winners {
		if w == user {
			already = true
			break
		}
	}
	if !already {
		r.doc.Winners.Winners = append(r.doc.Winners.Winners, user)
	}
	if span, ok := r.doc.Spans[user]; ok && span.End == nil {
		t := r.now()
		span.End = &t
	}
	winnerChannel := r.doc.Winners.WinnerChannel
	firstWinnerRole := r.doc.Winners.FirstWinnerRole
	winnerRole := r.doc.Winners.WinnerRole
	raw := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.persistSnapshot(ctx, raw); err != nil {
		r.logger.Error("persisting win state", "user", user, "error", err)
	}

	if winnerChannel == "" {
		return first, fmt.Errorf("user %s won but no winner channel is configured", user)
	}

	revoke := func(ctx context.Context) error {
		if isFirstStage {
			return r.platform.CreateOverride(ctx, lastChannel, platform.Override{User: user, Allow: false})
		}
		return r.platform.DeleteOverride(ctx, lastChannel, user)
	}
	if err := r.runPhase(ctx, user, lastChannel, phaseRevoke, revoke); err != nil {
		return first, err
	}

	r.sleep(ctx, r.settleDelay)

	grant := func(ctx context.Context) error {
		if err := r.platform.CreateOverride(ctx, winnerChannel, platform.Override{User: user, Allow: true}); err != nil {
			return err
		}
		if winnerRole != "" {
			if err := r.platform.AddRole(ctx, user, winnerRole); err != nil {
				return err
			}
		}
		if first && firstWinnerRole != "" {
			if err := r.platform.AddRole(ctx, user, firstWinnerRole); err != nil {
				return err
			}
		}
		return nil
	}
	if err := r.runPhase(ctx, user, winnerChannel, phaseGrant, grant); err != nil {
		return first, err
	}

	r.advance(ctx, user)
	r.announceWin(ctx, user, winnerChannel, first)
	return first, nil
}

func (r *Room) announceWin(ctx context.Context, user platform.UserID, channel platform.ChannelID, first bool) {
	var msg string
	if first {
		msg = fmt.Sprintf("%s was the first to escape the room! Congratulations!", user)
	} else {
		msg = fmt.Sprintf("Congratulations, %s escaped the room!", user)
	}
	if err := r.platform.SendMessage(ctx, channel, msg); err != nil {
		r.logger.Error("announcing win", "user", user, "error", err)
	}
}
