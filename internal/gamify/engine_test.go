package gamify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"savequest/internal/badge"
	"savequest/internal/clock"
	"savequest/internal/curriculum"
	"savequest/internal/ledger"
	"savequest/internal/notification"
	"savequest/internal/progression"
	"savequest/internal/store"
	"savequest/internal/taskcheck"
	"savequest/internal/telemetry"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	clock  *clock.FakeClock
	notes  notification.Repository
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.NewFakeClock(t0)
	notes := notification.NewStoreRepo(st)
	return &fixture{
		engine: &Engine{
			Ledger:     ledger.NewRepo(st),
			Progress:   progression.NewStoreRepo(st),
			Curriculum: curriculum.NewStoreRepo(st),
			Plan:       curriculum.Default(),
			Badges:     badge.DefaultCatalog(),
			Notes:      notes,
			Events:     telemetry.NewMemoryRepository(),
			Clock:      clk,
			Policy:     policy,
		},
		clock: clk,
		notes: notes,
	}
}

func (f *fixture) expense(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.engine.RecordTransaction(context.Background(), ledger.TransactionRecord{
		UserID: userID, Flow: ledger.FlowExpense, Category: "Food",
		Amount: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("record expense: %v", err)
	}
}

func (f *fixture) savings(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.engine.RecordTransaction(context.Background(), ledger.TransactionRecord{
		UserID: userID, Flow: ledger.FlowIncome, Category: ledger.CategorySavings,
		Amount: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("record savings: %v", err)
	}
}

func (f *fixture) progress(t *testing.T, userID string) progression.Progress {
	t.Helper()
	p, err := f.engine.Progress.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	return p
}

func TestCompleteTask_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	f.expense(t, "u1", 150) // grants first_transaction (+50 XP), streak 1

	res, err := f.engine.CompleteTask(ctx, "u1", "d1-track")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !res.Outcome.Accepted() {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	if res.XPAwarded != 25 {
		t.Fatalf("xpAwarded = %d, want 25", res.XPAwarded)
	}

	p := f.progress(t, "u1")
	if p.XP != 75 {
		t.Fatalf("xp = %d, want 50 (badge) + 25 (task)", p.XP)
	}
	if !p.HasBadge(badge.IDFirstTransaction) {
		t.Fatalf("first_transaction badge missing: %+v", p.Badges)
	}
	if p.Streak != 1 {
		t.Fatalf("streak = %d", p.Streak)
	}
}

// flakyCurriculum refuses task-state writes on demand so tests can hit the
// branch where XP landed but the completion did not.
type flakyCurriculum struct {
	curriculum.Repository
	refuseWrites bool
}

func (f *flakyCurriculum) SetTaskState(ctx context.Context, userID, taskID string, st curriculum.TaskState) error {
	if f.refuseWrites {
		return errors.New("task state write refused")
	}
	return f.Repository.SetTaskState(ctx, userID, taskID, st)
}

func TestCompleteTask_FailedStateWriteRevertsXP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})
	flaky := &flakyCurriculum{Repository: f.engine.Curriculum, refuseWrites: true}
	f.engine.Curriculum = flaky

	f.expense(t, "u1", 150) // grants first_transaction (+50 XP)

	if _, err := f.engine.CompleteTask(ctx, "u1", "d1-track"); err == nil {
		t.Fatal("expected the refused write to surface as an error")
	}
	if p := f.progress(t, "u1"); p.XP != 50 {
		t.Fatalf("xp = %d after failed completion, want 50", p.XP)
	}

	// The retry must pay exactly once.
	flaky.refuseWrites = false
	res, err := f.engine.CompleteTask(ctx, "u1", "d1-track")
	if err != nil {
		t.Fatalf("CompleteTask retry: %v", err)
	}
	if !res.Outcome.Accepted() {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	if p := f.progress(t, "u1"); p.XP != 75 {
		t.Fatalf("xp = %d after retry, want 75", p.XP)
	}
}

func TestCompleteTask_RejectsWithoutEvidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	res, err := f.engine.CompleteTask(ctx, "u1", "d1-track")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Outcome.Status != taskcheck.StatusRejectedWarning {
		t.Fatalf("status = %s, want rejected_warning", res.Outcome.Status)
	}
	if res.XPAwarded != 0 {
		t.Fatalf("rejected completion paid %d xp", res.XPAwarded)
	}
	if p := f.progress(t, "u1"); p.XP != 0 {
		t.Fatalf("xp = %d after rejection", p.XP)
	}
}

func TestCompleteTask_DoubleCompletionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})
	f.expense(t, "u1", 150)

	if res, _ := f.engine.CompleteTask(ctx, "u1", "d1-track"); !res.Outcome.Accepted() {
		t.Fatalf("first completion rejected: %+v", res.Outcome)
	}
	xpBefore := f.progress(t, "u1").XP

	res, err := f.engine.CompleteTask(ctx, "u1", "d1-track")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Outcome.Status != taskcheck.StatusRejectedInfo {
		t.Fatalf("status = %s, want rejected_info", res.Outcome.Status)
	}
	if f.progress(t, "u1").XP != xpBefore {
		t.Fatal("double completion changed xp")
	}
}

func TestCompleteTask_LockedDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	res, err := f.engine.CompleteTask(ctx, "u1", "d2-goal")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Outcome.Status != taskcheck.StatusRejectedInfo || res.Outcome.Title != "Locked" {
		t.Fatalf("outcome = %+v, want locked rejection", res.Outcome)
	}
}

func TestCompleteTask_UnknownTask(t *testing.T) {
	res, err := newFixture(t, Policy{}).engine.CompleteTask(context.Background(), "u1", "zz-top")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Outcome.Status != taskcheck.StatusRejectedInfo {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
}

func TestCompleteTask_SaveMoneyThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	// Anchor the curriculum at t0, then move to day 3 where d3-save lives.
	if _, _, err := f.engine.Days(ctx, "u1"); err != nil {
		t.Fatalf("Days: %v", err)
	}
	f.clock.Advance(48 * time.Hour)

	f.savings(t, "u1", 499)
	res, err := f.engine.CompleteTask(ctx, "u1", "d3-save")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.Outcome.Status != taskcheck.StatusRejectedWarning {
		t.Fatalf("499 saved: outcome = %+v", res.Outcome)
	}
	if res.Outcome.Current == nil || !res.Outcome.Current.Equal(decimal.NewFromInt(499)) {
		t.Fatalf("current = %v", res.Outcome.Current)
	}

	f.savings(t, "u1", 1)
	res, err = f.engine.CompleteTask(ctx, "u1", "d3-save")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !res.Outcome.Accepted() {
		t.Fatalf("500 saved: outcome = %+v", res.Outcome)
	}
}

func TestCompleteTask_AdvancesDayWhenUnlocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	f.expense(t, "u1", 150)
	if res, _ := f.engine.CompleteTask(ctx, "u1", "d1-track"); !res.Outcome.Accepted() {
		t.Fatal("d1-track rejected")
	}
	if err := f.engine.ReadTip(ctx, "u1", "pay-yourself-first"); err != nil {
		t.Fatalf("ReadTip: %v", err)
	}

	// Day 1 fully done, but day 2 hasn't unlocked yet.
	res, err := f.engine.CompleteTask(ctx, "u1", "d1-tip")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !res.Outcome.Accepted() || res.DayAdvanced {
		t.Fatalf("advanced before unlock: %+v", res)
	}

	// Cancel and redo after the unlock to trigger the advance path.
	f.clock.Advance(24 * time.Hour)
	if out, err := f.engine.CancelTask(ctx, "u1", "d1-tip"); err != nil || !out.Accepted() {
		t.Fatalf("cancel: out=%+v err=%v", out, err)
	}
	res, err = f.engine.CompleteTask(ctx, "u1", "d1-tip")
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !res.DayAdvanced || res.CurrentDay != 1 {
		t.Fatalf("expected advance to day index 1: %+v", res)
	}

	notes, err := f.notes.ListByUser(ctx, "u1", 50)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	found := false
	for _, n := range notes {
		if n.Type == notification.TypeDayUnlocked {
			found = true
		}
	}
	if !found {
		t.Fatal("day_unlocked notification missing")
	}
}

func TestCancelTask_RefusedWhenConditionNoLongerHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	f.expense(t, "u1", 150)
	if res, _ := f.engine.CompleteTask(ctx, "u1", "d1-track"); !res.Outcome.Accepted() {
		t.Fatal("completion rejected")
	}

	// Next day the expense no longer counts as "today", so unchecking is
	// refused.
	f.clock.Advance(24 * time.Hour)
	out, err := f.engine.CancelTask(ctx, "u1", "d1-track")
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if out.Status != taskcheck.StatusRejectedInfo || out.Title != "Can't Uncheck" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestCancelTask_NotCompleted(t *testing.T) {
	out, err := newFixture(t, Policy{}).engine.CancelTask(context.Background(), "u1", "d1-track")
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if out.Accepted() {
		t.Fatal("cancelled a task that was never completed")
	}
}

func TestCancelTask_RevokePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("default keeps xp", func(t *testing.T) {
		f := newFixture(t, Policy{})
		f.expense(t, "u1", 150)
		f.engine.CompleteTask(ctx, "u1", "d1-track")
		xpBefore := f.progress(t, "u1").XP

		out, err := f.engine.CancelTask(ctx, "u1", "d1-track")
		if err != nil || !out.Accepted() {
			t.Fatalf("cancel: out=%+v err=%v", out, err)
		}
		if f.progress(t, "u1").XP != xpBefore {
			t.Fatal("xp changed without revoke policy")
		}
	})

	t.Run("revoke subtracts task xp", func(t *testing.T) {
		f := newFixture(t, Policy{RevokeXPOnCancel: true})
		f.expense(t, "u1", 150)
		f.engine.CompleteTask(ctx, "u1", "d1-track")
		xpBefore := f.progress(t, "u1").XP

		out, err := f.engine.CancelTask(ctx, "u1", "d1-track")
		if err != nil || !out.Accepted() {
			t.Fatalf("cancel: out=%+v err=%v", out, err)
		}
		if got := f.progress(t, "u1").XP; got != xpBefore-25 {
			t.Fatalf("xp = %d, want %d", got, xpBefore-25)
		}
	})
}

func TestTouchStreak_DailyBonusAndReset(t *testing.T) {
	f := newFixture(t, Policy{})

	f.expense(t, "u1", 10)
	if p := f.progress(t, "u1"); p.Streak != 1 {
		t.Fatalf("streak = %d", p.Streak)
	}

	f.clock.Advance(24 * time.Hour)
	f.expense(t, "u1", 10)
	p := f.progress(t, "u1")
	if p.Streak != 2 {
		t.Fatalf("streak = %d, want 2", p.Streak)
	}
	// 50 first-transaction badge + 50 daily bonus
	if p.XP != 100 {
		t.Fatalf("xp = %d, want 100", p.XP)
	}

	// Same-day activity neither extends nor pays again.
	f.expense(t, "u1", 10)
	if p := f.progress(t, "u1"); p.Streak != 2 || p.XP != 100 {
		t.Fatalf("same-day repeat changed state: %+v", p)
	}

	// A three-day gap resets without a bonus.
	f.clock.Advance(3 * 24 * time.Hour)
	f.expense(t, "u1", 10)
	p = f.progress(t, "u1")
	if p.Streak != 1 || p.XP != 100 {
		t.Fatalf("after gap: %+v", p)
	}
}

func TestRecordLogin_CountsAsActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	p, err := f.engine.RecordLogin(ctx, "u1")
	if err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if p.Streak != 1 {
		t.Fatalf("streak = %d", p.Streak)
	}

	f.clock.Advance(24 * time.Hour)
	p, err = f.engine.RecordLogin(ctx, "u1")
	if err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if p.Streak != 2 || p.XP != progression.DefaultDailyLoginXP {
		t.Fatalf("day 2 login: %+v", p)
	}
}

func TestBadgeXPChainsThroughLevelUps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})
	// A huge first-transaction reward pushes the user straight past level 5,
	// so the queued level_up event must also grant level_5 in the same pass.
	f.engine.Badges = badge.NewCatalog([]badge.Badge{
		{ID: badge.IDFirstTransaction, Name: "First Steps", XPReward: 4200},
		{ID: badge.IDLevel5, Name: "Rising Star", XPReward: 200},
		{ID: badge.IDLevel10, Name: "Money Master", XPReward: 400},
	})

	f.expense(t, "u1", 10)

	p := f.progress(t, "u1")
	if !p.HasBadge(badge.IDFirstTransaction) || !p.HasBadge(badge.IDLevel5) {
		t.Fatalf("badges = %+v", p.Badges)
	}
	if p.HasBadge(badge.IDLevel10) {
		t.Fatal("level_10 granted at level 5")
	}
	if p.XP != 4400 {
		t.Fatalf("xp = %d, want 4200 + 200", p.XP)
	}
	if p.Level() != 5 {
		t.Fatalf("level = %d", p.Level())
	}

	// The chain never re-grants: another transaction adds nothing.
	if _, err := f.engine.RecordTransaction(ctx, ledger.TransactionRecord{
		UserID: "u1", Flow: ledger.FlowExpense, Category: "Food", Amount: decimal.NewFromInt(5),
	}); err != nil {
		t.Fatalf("second transaction: %v", err)
	}
	if got := f.progress(t, "u1").XP; got != 4400 {
		t.Fatalf("xp = %d after second transaction", got)
	}
}

func TestContributeToGoal_MirrorsSavingsAndGrantsBadges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	g, err := f.engine.CreateGoal(ctx, ledger.Goal{UserID: "u1", Title: "Phone", Target: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	got, err := f.engine.ContributeToGoal(ctx, "u1", g.ID, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("ContributeToGoal: %v", err)
	}
	if !got.Completed {
		t.Fatalf("goal not completed: %+v", got)
	}

	// The contribution shows up as an income/Savings transaction.
	snap, err := f.engine.Ledger.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.SavingsTotal().Equal(decimal.NewFromInt(500)) {
		t.Fatalf("savings total = %s", snap.SavingsTotal())
	}

	p := f.progress(t, "u1")
	for _, id := range []string{badge.IDFirstTransaction, badge.IDGoalAchiever, badge.IDSaver100} {
		if !p.HasBadge(id) {
			t.Fatalf("missing badge %s: %+v", id, p.Badges)
		}
	}
	if p.HasBadge(badge.IDSaver1000) {
		t.Fatalf("saver_1000 granted at ₦500: %+v", p.Badges)
	}
}

func TestContributeToGoal_RejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})
	g, err := f.engine.CreateGoal(ctx, ledger.Goal{UserID: "u1", Title: "Phone", Target: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if _, err := f.engine.ContributeToGoal(ctx, "u1", g.ID, decimal.Zero); err == nil {
		t.Fatal("zero contribution accepted")
	}
	if _, err := f.engine.ContributeToGoal(ctx, "u1", g.ID, decimal.NewFromInt(-5)); err == nil {
		t.Fatal("negative contribution accepted")
	}
}

func TestDays_LockStateAndCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{})

	f.expense(t, "u1", 100)
	f.engine.CompleteTask(ctx, "u1", "d1-track")

	views, currentDay, err := f.engine.Days(ctx, "u1")
	if err != nil {
		t.Fatalf("Days: %v", err)
	}
	if len(views) != 7 || currentDay != 0 {
		t.Fatalf("views=%d currentDay=%d", len(views), currentDay)
	}
	if !views[0].Unlocked || views[1].Unlocked {
		t.Fatalf("lock state wrong: day1=%v day2=%v", views[0].Unlocked, views[1].Unlocked)
	}
	var tracked *TaskView
	for i := range views[0].Tasks {
		if views[0].Tasks[i].ID == "d1-track" {
			tracked = &views[0].Tasks[i]
		}
	}
	if tracked == nil || !tracked.Completed || tracked.CompletedAt == "" {
		t.Fatalf("d1-track view = %+v", tracked)
	}
}
