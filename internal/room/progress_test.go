package room

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/lockstep/escaperoom/internal/platform"
)

func sameRoles(got, want []platform.RoleID) bool {
	if len(got) != len(want) {
		return false
	}
	set := make(map[platform.RoleID]bool, len(got))
	for _, r := range got {
		set[r] = true
	}
	for _, r := range want {
		if !set[r] {
			return false
		}
	}
	return true
}

func TestMemberLeftResetsProgress(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	r := newTestRoom(t, client, &memStore{})
	advanceTo(t, r, "alice", 3)

	if _, err := r.HandleAnswer(ctx, "alice", "t3", []string{"wrong"}); err != nil {
		t.Fatalf("HandleAnswer: %v", err)
	}

	if err := r.MemberLeft(ctx, "alice"); err != nil {
		t.Fatalf("MemberLeft: %v", err)
	}
	if got := r.Current("alice"); got != 1 {
		t.Errorf("Current after leave = %d, want 1", got)
	}

	// Cooldowns are dropped with the progress entry, so a fresh start is
	// not throttled by the old one.
	res, err := r.HandleAnswer(ctx, "alice", "t1", []string{"red"})
	if err != nil {
		t.Fatalf("HandleAnswer: %v", err)
	}
	if res.Outcome != OutcomeAdvanced {
		t.Errorf("outcome after rejoin = %s, want %s", res.Outcome, OutcomeAdvanced)
	}
}

func TestMemberRejoinedAlsoResets(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(t, newFakeClient(), &memStore{})
	advanceTo(t, r, "alice", 2)

	if err := r.MemberRejoined(ctx, "alice"); err != nil {
		t.Fatalf("MemberRejoined: %v", err)
	}
	if got := r.Current("alice"); got != 1 {
		t.Errorf("Current after rejoin = %d, want 1", got)
	}
}

func TestAdminSetStageValidation(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(t, newFakeClient(), &memStore{})

	for _, stage := range []int{0, -1, 5} {
		if err := r.AdminSetStage(ctx, "alice", stage, false); !errors.Is(err, ErrInvalidStage) {
			t.Errorf("AdminSetStage(%d) = %v, want ErrInvalidStage", stage, err)
		}
	}

	// len(stages)+1 is the won position and is valid.
	if err := r.AdminSetStage(ctx, "alice", 4, false); err != nil {
		t.Errorf("AdminSetStage(4) = %v, want nil", err)
	}
}

func TestAdminSetStageWithoutSync(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	r := newTestRoom(t, client, &memStore{})

	if err := r.AdminSetStage(ctx, "alice", 3, false); err != nil {
		t.Fatalf("AdminSetStage: %v", err)
	}
	if got := r.Current("alice"); got != 3 {
		t.Errorf("Current = %d, want 3", got)
	}
	if len(client.calls) != 0 {
		t.Errorf("platform calls without sync = %v, want none", client.calls)
	}
}

func TestAdminSetStageSyncsRoles(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	r := newTestRoom(t, client, &memStore{})

	// Alice currently holds both gate roles plus an unrelated one.
	client.roles["alice"] = []platform.RoleID{"member", "gate2", "gate3"}

	if err := r.AdminSetStage(ctx, "alice", 3, true); err != nil {
		t.Fatalf("AdminSetStage: %v", err)
	}

	// Stage 3 keeps only its own gate role; unrelated roles survive.
	client.mu.Lock()
	got := client.roles["alice"]
	client.mu.Unlock()
	want := []platform.RoleID{"member", "gate3"}
	if !sameRoles(got, want) {
		t.Errorf("roles after sync = %v, want %v", got, want)
	}
}

func TestClearErrorFlag(t *testing.T) {
	ctx := context.Background()
	r := newTestRoom(t, newFakeClient(), &memStore{})

	if _, err := r.ClearErrorFlag(ctx, "alice"); !errors.Is(err, ErrNoErrorFlag) {
		t.Fatalf("ClearErrorFlag without flag = %v, want ErrNoErrorFlag", err)
	}

	advanceTo(t, r, "alice", 2)
	r.setErrorFlag(ctx, "alice", FlagHardFailed)

	stage, err := r.ClearErrorFlag(ctx, "alice")
	if err != nil {
		t.Fatalf("ClearErrorFlag: %v", err)
	}
	if stage != 3 {
		t.Errorf("stage after clear = %d, want 3", stage)
	}
	if got := r.ErrorFlagFor("alice"); got != FlagNone {
		t.Errorf("flag after clear = %d, want none", got)
	}
}

func TestProgressListOrdering(t *testing.T) {
	r := newTestRoom(t, newFakeClient(), &memStore{})
	advanceTo(t, r, "carol", 2)
	advanceTo(t, r, "alice", 4)
	advanceTo(t, r, "bob", 2)

	got := r.ProgressList()
	want := []UserProgress{
		{User: "alice", Stage: 4, Won: true},
		{User: "bob", Stage: 2},
		{User: "carol", Stage: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ProgressList = %v, want %v", got, want)
	}
}
