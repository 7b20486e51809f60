package room

import (
	"time"

	"github.com/lockstep/escaperoom/internal/platform"
)

const (
	// Window before a user may retry a stage after a wrong answer.
	wrongAnswerWindow = 150 * time.Second
	// Window between operator alerts for a user pressing controls on the
	// wrong stage. Throttles notifications, not the user's own retries.
	wrongStageAlertWindow = 30 * time.Minute
)

type cooldownKey struct {
	user  platform.UserID
	stage int
}

// cooldowns lives next to the document under the same lock but is never
// persisted. Expired entries are swept lazily on record so the maps stay
// bounded over a long deployment.
type cooldowns struct {
	wrongAnswer map[cooldownKey]time.Time
	wrongStage  map[platform.UserID]time.Time
}

func newCooldowns() cooldowns {
	return cooldowns{
		wrongAnswer: make(map[cooldownKey]time.Time),
		wrongStage:  make(map[platform.UserID]time.Time),
	}
}

// wrongAnswerRemaining returns how long the user must still wait before
// retrying the stage, or zero if no cooldown is active.
func (c *cooldowns) wrongAnswerRemaining(user platform.UserID, stage int, now time.Time) time.Duration {
	last, ok := c.wrongAnswer[cooldownKey{user, stage}]
	if !ok {
		return 0
	}
	if remaining := wrongAnswerWindow - now.Sub(last); remaining > 0 {
		return remaining
	}
	return 0
}

func (c *cooldowns) recordWrongAnswer(user platform.UserID, stage int, now time.Time) {
	c.sweep(now)
	c.wrongAnswer[cooldownKey{user, stage}] = now
}

// wrongStageAlertActive reports whether an operator alert for this user
// was already sent within the window.
func (c *cooldowns) wrongStageAlertActive(user platform.UserID, now time.Time) bool {
	last, ok := c.wrongStage[user]
	return ok && now.Sub(last) < wrongStageAlertWindow
}

func (c *cooldowns) recordWrongStageAlert(user platform.UserID, now time.Time) {
	c.sweep(now)
	c.wrongStage[user] = now
}

func (c *cooldowns) clearUser(user platform.UserID) {
	for k := range c.wrongAnswer {
		if k.user == user {
			delete(c.wrongAnswer, k)
		}
	}
	delete(c.wrongStage, user)
}

func (c *cooldowns) clearAll() {
	c.wrongAnswer = make(map[cooldownKey]time.Time)
	c.wrongStage = make(map[platform.UserID]time.Time)
}

func (c *cooldowns) sweep(now time.Time) {
	for k, t := range c.wrongAnswer {
		if now.Sub(t) >= wrongAnswerWindow {
			delete(c.wrongAnswer, k)
		}
	}
	for u, t := range c.wrongStage {
		if now.Sub(t) >= wrongStageAlertWindow {
			delete(c.wrongStage, u)
		}
	}
}

// ClearCooldowns removes all cooldown entries for one user.
func (r *Room) ClearCooldowns(user platform.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldowns.clearUser(user)
}

// ClearAllCooldowns removes every cooldown entry.
func (r *Room) ClearAllCooldowns() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldowns.clearAll()
}
