package room

import (
	"context"
	"fmt"

	"github.com/lockstep/escaperoom/internal/platform"
)

// phase names the two halves of a permission transition, for escalation
// messages.
type phase string

const (
	phaseRevoke phase = "revoking access to the finished stage"
	phaseGrant  phase = "granting access to the next stage"
)

// transition moves a user from oldChannel to newChannel: revoke first,
// settle, then grant. Each half runs its own bounded retry loop; if either
// exhausts its retries the whole transition aborts and the user is left
// flagged for manual repair. advance is only called after both halves
// succeed.
//
// isFirstStage flips the revoke: the first stage is visible to everyone by
// default, so completing it means actively hiding the channel from this
// user rather than deleting a per-user grant.
func (r *Room) transition(ctx context.Context, user platform.UserID, oldChannel, newChannel platform.ChannelID, isFirstStage bool) error {
	revoke := func(ctx context.Context) error {
		if isFirstStage {
			return r.platform.CreateOverride(ctx, oldChannel, platform.Override{User: user, Allow: false})
		}
		return r.platform.DeleteOverride(ctx, oldChannel, user)
	}
	if err := r.runPhase(ctx, user, oldChannel, phaseRevoke, revoke); err != nil {
		return err
	}

	// Give the platform time to propagate the revoke before granting, the
	// two overrides race on the remote side otherwise.
	r.sleep(ctx, r.settleDelay)

	grant := func(ctx context.Context) error {
		return r.platform.CreateOverride(ctx, newChannel, platform.Override{User: user, Allow: true})
	}
	if err := r.runPhase(ctx, user, newChannel, phaseGrant, grant); err != nil {
		return err
	}

	r.advance(ctx, user)
	return nil
}

// runPhase drives one remote operation through the retry loop. The first
// failure marks the user pending-retry; an exhausted bound marks them
// hard-failed, notifies the operator channel, and aborts. Success clears
// the flag. No locks are held across the operation or the sleeps; the loop
// deliberately outlives the triggering interaction, its job is durable
// state repair rather than a user-facing response.
func (r *Room) runPhase(ctx context.Context, user platform.UserID, channel platform.ChannelID, ph phase, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			r.setErrorFlag(ctx, user, FlagNone)
			return nil
		}

		if attempt == 0 {
			r.setErrorFlag(ctx, user, FlagPendingRetry)
		}

		delay, retry := r.retry.nextAction(attempt)
		if !retry {
			r.setErrorFlag(ctx, user, FlagHardFailed)
			r.escalate(ctx, user, channel, ph, err)
			return fmt.Errorf("%s for %s: %w", ph, user, err)
		}

		r.logger.Warn("permission operation failed, retrying",
			"user", user, "channel", channel, "phase", string(ph),
			"attempt", attempt+1, "delay", delay, "error", err)
		r.sleep(ctx, delay)
	}
}

// escalate posts a manual-repair notification to the operator error
// channel. Failures here are only logged; there is nobody left to tell.
func (r *Room) escalate(ctx context.Context, user platform.UserID, channel platform.ChannelID, ph phase, cause error) {
	r.mu.RLock()
	errorChannel := r.doc.ErrorChannel
	r.mu.RUnlock()

	r.logger.Error("permission transition hard-failed",
		"user", user, "channel", channel, "phase", string(ph), "error", cause)

	if errorChannel == "" {
		return
	}

	msg := fmt.Sprintf(
		"Failed %s for user %s on channel %s after repeated attempts: %v\n"+
			"Fix the permissions by hand, then clear the user's error flag.",
		ph, user, channel, cause)
	if err := r.platform.SendMessage(ctx, errorChannel, msg); err != nil {
		r.logger.Error("sending escalation notification", "user", user, "error", err)
	}
}
