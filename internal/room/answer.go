package room

import (
	"context"
	"fmt"
	"time"

	"github.com/lockstep/escaperoom/internal/platform"
)

// Outcome classifies what a submitted answer did.
type Outcome string

const (
	// OutcomeIgnored: unknown interaction token or inactive room. A remote
	// duplicate or stale control, not an error.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeWrongStage: the control belongs to a stage the user is not on.
	OutcomeWrongStage Outcome = "wrong_stage"
	// OutcomeCooldown: the user answered this stage wrong too recently.
	OutcomeCooldown Outcome = "cooldown"
	// OutcomeWrong: the answer did not match.
	OutcomeWrong Outcome = "wrong"
	// OutcomeAdvanced: correct, permissions moved, user is on the next stage.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeWon: correct on the last stage.
	OutcomeWon Outcome = "won"
	// OutcomeSyncFailed: correct, but the permission transition hard-failed
	// and the user is flagged for manual repair. Progress is unchanged.
	OutcomeSyncFailed Outcome = "sync_failed"
)

// Result is the user-facing outcome of HandleAnswer.
type Result struct {
	Outcome Outcome
	// Remaining cooldown, for OutcomeCooldown.
	Remaining time.Duration
	// Stage the answer was evaluated against.
	Stage int
	// Channel of the stage the user should actually be on, for
	// OutcomeWrongStage.
	ExpectedChannel platform.ChannelID
	// Channel unlocked by a correct answer.
	NextChannel platform.ChannelID
	// First winner, for OutcomeWon.
	First bool
}

// HandleAnswer is the engine's entry point for a submitted answer. The
// interaction token correlates the remote control to a stage; the decision
// happens under the room lock, and all platform I/O happens after it is
// released.
func (r *Room) HandleAnswer(ctx context.Context, user platform.UserID, interactionID string, inputs []string) (Result, error) {
	type decision struct {
		result      Result
		stage       *Stage
		stageNum    int
		isFirst     bool
		nextChannel platform.ChannelID
		isLast      bool
		correct     bool
		alert       bool
		logChannel  platform.ChannelID
		errChannel  platform.ChannelID
	}

	d := func() decision {
		r.mu.Lock()
		defer r.mu.Unlock()

		if !r.doc.Active {
			return decision{result: Result{Outcome: OutcomeIgnored}}
		}

		idx := -1
		for i, s := range r.doc.Stages {
			if s.InteractionID != "" && s.InteractionID == interactionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return decision{result: Result{Outcome: OutcomeIgnored}}
		}

		stageNum := idx + 1
		expected := r.currentLocked(user)
		r.doc.Progress[user] = expected

		now := r.now()

		if stageNum != expected {
			var expectedChannel platform.ChannelID
			if expected >= 1 && expected <= len(r.doc.Stages) {
				expectedChannel = r.doc.Stages[expected-1].Channel
			}
			alert := !r.cooldowns.wrongStageAlertActive(user, now)
			if alert {
				r.cooldowns.recordWrongStageAlert(user, now)
			}
			return decision{
				result: Result{
					Outcome:         OutcomeWrongStage,
					Stage:           stageNum,
					ExpectedChannel: expectedChannel,
				},
				alert:      alert,
				errChannel: r.doc.ErrorChannel,
			}
		}

		if remaining := r.cooldowns.wrongAnswerRemaining(user, stageNum, now); remaining > 0 {
			return decision{result: Result{
				Outcome:   OutcomeCooldown,
				Stage:     stageNum,
				Remaining: remaining,
			}}
		}

		stage := r.doc.Stages[idx]
		if !stage.Matches(inputs) {
			r.cooldowns.recordWrongAnswer(user, stageNum, now)
			return decision{
				result:     Result{Outcome: OutcomeWrong, Stage: stageNum},
				correct:    false,
				stage:      stage,
				stageNum:   stageNum,
				logChannel: r.doc.LogChannel,
			}
		}

		if stageNum == 1 {
			if _, ok := r.doc.Spans[user]; !ok {
				r.doc.Spans[user] = &Span{Start: now}
			}
		}

		dec := decision{
			stage:      stage,
			stageNum:   stageNum,
			isFirst:    idx == 0,
			correct:    true,
			logChannel: r.doc.LogChannel,
		}
		if idx+1 < len(r.doc.Stages) {
			dec.nextChannel = r.doc.Stages[idx+1].Channel
		} else {
			dec.isLast = true
		}
		return dec
	}()

	if d.stage != nil {
		r.reportAttempt(ctx, Attempt{
			User:    user,
			Stage:   d.stageNum,
			Inputs:  inputs,
			Correct: d.correct,
		}, d.logChannel)
	}

	if d.result.Outcome == OutcomeWrongStage && d.alert {
		r.notifyWrongStage(ctx, user, d.errChannel, d.result)
	}
	if d.result.Outcome != "" {
		return d.result, nil
	}

	if d.isLast {
		first, err := r.resolveWin(ctx, user, d.stage.Channel, d.isFirst)
		if err != nil {
			return Result{Outcome: OutcomeSyncFailed, Stage: d.stageNum}, err
		}
		return Result{Outcome: OutcomeWon, Stage: d.stageNum, First: first}, nil
	}

	if d.nextChannel == "" {
		return Result{Outcome: OutcomeSyncFailed, Stage: d.stageNum},
			fmt.Errorf("stage %d has no channel, cannot move %s", d.stageNum+1, user)
	}

	if err := r.transition(ctx, user, d.stage.Channel, d.nextChannel, d.isFirst); err != nil {
		return Result{Outcome: OutcomeSyncFailed, Stage: d.stageNum}, err
	}

	return Result{
		Outcome:     OutcomeAdvanced,
		Stage:       d.stageNum,
		NextChannel: d.nextChannel,
	}, nil
}

// reportAttempt feeds the attempt hook and the analytics channel. Both are
// best-effort and run without the room lock.
func (r *Room) reportAttempt(ctx context.Context, a Attempt, logChannel platform.ChannelID) {
	if r.onAttempt != nil {
		r.onAttempt(a)
	}
	if logChannel == "" {
		return
	}
	verdict := "incorrectly"
	if a.Correct {
		verdict = "correctly"
	}
	msg := fmt.Sprintf("%s answered stage %d %s.", a.User, a.Stage, verdict)
	if err := r.platform.SendMessage(ctx, logChannel, msg); err != nil {
		r.logger.Debug("posting attempt log", "user", a.User, "error", err)
	}
}

// notifyWrongStage tells the operators a user pressed a control on a stage
// they are not on; rate-limited by the alert cooldown.
func (r *Room) notifyWrongStage(ctx context.Context, user platform.UserID, errChannel platform.ChannelID, res Result) {
	r.logger.Warn("user answered the wrong stage", "user", user, "stage", res.Stage)
	if errChannel == "" {
		return
	}
	msg := fmt.Sprintf("%s managed to answer stage %d while not on it, please investigate.", user, res.Stage)
	if err := r.platform.SendMessage(ctx, errChannel, msg); err != nil {
		r.logger.Error("sending wrong-stage alert", "user", user, "error", err)
	}
}
