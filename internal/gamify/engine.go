package gamify

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"savequest/internal/badge"
	"savequest/internal/clock"
	"savequest/internal/curriculum"
	"savequest/internal/ledger"
	"savequest/internal/notification"
	"savequest/internal/progression"
	"savequest/internal/taskcheck"
	"savequest/internal/telemetry"
)

// Policy holds the product knobs the engine honors.
type Policy struct {
	// RevokeXPOnCancel subtracts a task's XP (floored at zero) when a
	// completed task is cancelled. Off by default: historically the XP
	// stayed earned.
	RevokeXPOnCancel bool
}

// Engine orchestrates one user action end to end: gather evidence,
// validate, award XP, check badges, advance the curriculum. The decision
// functions it calls are pure; all I/O happens here, in order, per action.
type Engine struct {
	Ledger     *ledger.Repo
	Progress   progression.Repository
	Curriculum curriculum.Repository
	Plan       curriculum.Curriculum
	Badges     *badge.Catalog
	Notes      notification.Repository
	Events     telemetry.Repository
	Clock      clock.Clock
	Policy     Policy
}

// TaskView is one curriculum task joined with the user's completion state.
type TaskView struct {
	taskcheck.Task
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// DayView is what the UI needs to render a curriculum day: its tasks, lock
// status and the raw unlock time for countdown math.
type DayView struct {
	Day        int        `json:"day"`
	Unlocked   bool       `json:"unlocked"`
	UnlockTime string     `json:"unlockTime"`
	Current    bool       `json:"current"`
	Tasks      []TaskView `json:"tasks"`
}

// CompleteResult reports everything a completion attempt produced.
type CompleteResult struct {
	Outcome       taskcheck.Outcome `json:"outcome"`
	XPAwarded     int               `json:"xpAwarded"`
	LeveledUp     bool              `json:"leveledUp"`
	NewLevel      int               `json:"newLevel,omitempty"`
	BadgesGranted []badge.Badge     `json:"badgesGranted,omitempty"`
	DayAdvanced   bool              `json:"dayAdvanced"`
	CurrentDay    int               `json:"currentDay"`
}

// CompleteTask runs the Pending→Completed transition for a curriculum task.
// Store failures surface as errors with a Failed outcome; the caller retries
// by re-triggering the action, never automatically.
func (e *Engine) CompleteTask(ctx context.Context, userID, taskID string) (CompleteResult, error) {
	now := e.Clock.Now()

	task, dayIdx, ok := e.Plan.Task(taskID)
	if !ok {
		return CompleteResult{Outcome: taskcheck.RejectedInfo("Unknown Task", "This task is not part of your plan.")}, nil
	}

	uc, err := e.Curriculum.Get(ctx, userID, now)
	if err != nil {
		return failResult(err), err
	}
	if dayIdx > curriculum.CurrentUnlockedDay(e.Plan, uc.StartTime, now) {
		return CompleteResult{
			Outcome:    taskcheck.RejectedInfo("Locked", fmt.Sprintf("Day %d hasn't unlocked yet.", dayIdx+1)),
			CurrentDay: uc.CurrentDay,
		}, nil
	}
	if uc.States[taskID].Completed {
		return CompleteResult{
			Outcome:    taskcheck.RejectedInfo("Already Completed", "You've already completed this task."),
			CurrentDay: uc.CurrentDay,
		}, nil
	}

	ev, err := e.Ledger.Snapshot(ctx, userID)
	if err != nil {
		return failResult(err), err
	}
	out, err := taskcheck.Validate(task, ev, now)
	if err != nil {
		return failResult(err), err
	}
	if !out.Accepted() {
		return CompleteResult{Outcome: out, CurrentDay: uc.CurrentDay}, nil
	}

	p, err := e.Progress.Get(ctx, userID)
	if err != nil {
		return failResult(err), err
	}
	res, err := progression.AwardXP(p, task.XP, "Completed: "+task.Title)
	if err != nil {
		return failResult(err), err
	}
	if err := e.Progress.Apply(ctx, userID, res.Patch); err != nil {
		return failResult(err), err
	}

	completedAt := now
	if err := e.Curriculum.SetTaskState(ctx, userID, taskID, curriculum.TaskState{
		Completed:   true,
		CompletedAt: &completedAt,
	}); err != nil {
		// The XP write already landed but the task stays pending, so a
		// retry would re-validate and pay again. Put the XP back; if
		// this write fails too the overpay window stays open.
		xp, lvl := p.XP, p.Level()
		_ = e.Progress.Apply(ctx, userID, progression.Patch{XP: &xp, Level: &lvl})
		return failResult(err), err
	}
	uc.States[taskID] = curriculum.TaskState{Completed: true, CompletedAt: &completedAt}
	p = res.Updated
	e.notifyXP(ctx, userID, res.Notice)
	e.record(telemetry.EventTaskCompleted, telemetry.EventMetadata{"task_id": taskID, "user_id": userID})

	result := CompleteResult{
		Outcome:   out,
		XPAwarded: task.XP,
		LeveledUp: res.LeveledUp,
		NewLevel:  res.NewLevel,
	}

	var pending []badge.Event
	if res.LeveledUp {
		e.notifyLevelUp(ctx, userID, res.NewLevel)
		pending = append(pending, badge.Event{Type: badge.EventLevelUp, Level: res.NewLevel})
	}
	if curriculum.Finished(e.Plan, uc.States) {
		pending = append(pending, badge.Event{Type: badge.EventCurriculumCompleted})
	}
	granted, p, err := e.fireBadgeEvents(ctx, userID, p, pending)
	if err != nil {
		return failResult(err), err
	}
	result.BadgesGranted = granted

	newDay := curriculum.TryAdvance(e.Plan, uc.States, uc.CurrentDay, uc.StartTime, now)
	if newDay != uc.CurrentDay {
		if err := e.Curriculum.SetCurrentDay(ctx, userID, newDay); err != nil {
			return failResult(err), err
		}
		e.record(telemetry.EventDayUnlocked, telemetry.EventMetadata{"user_id": userID, "day": newDay + 1})
		_ = e.Notes.Add(ctx, notification.Notification{
			UserID:    userID,
			Type:      notification.TypeDayUnlocked,
			Title:     fmt.Sprintf("Day %d Unlocked", newDay+1),
			Message:   "A new set of daily tasks is ready for you.",
			CreatedAt: e.Clock.Now(),
		})
		result.DayAdvanced = true
	}
	result.CurrentDay = newDay
	return result, nil
}

// CancelTask runs Completed→Pending. The underlying action must still
// validate as accepted; otherwise un-marking is refused. XP revocation is
// policy-controlled.
func (e *Engine) CancelTask(ctx context.Context, userID, taskID string) (taskcheck.Outcome, error) {
	now := e.Clock.Now()

	task, _, ok := e.Plan.Task(taskID)
	if !ok {
		return taskcheck.RejectedInfo("Unknown Task", "This task is not part of your plan."), nil
	}
	uc, err := e.Curriculum.Get(ctx, userID, now)
	if err != nil {
		return taskcheck.Failed(err.Error()), err
	}
	if !uc.States[taskID].Completed {
		return taskcheck.RejectedInfo("Not Completed", "This task isn't marked as completed."), nil
	}

	ev, err := e.Ledger.Snapshot(ctx, userID)
	if err != nil {
		return taskcheck.Failed(err.Error()), err
	}
	out, err := taskcheck.Validate(task, ev, now)
	if err != nil {
		return taskcheck.Failed(err.Error()), err
	}
	if !out.Accepted() {
		return taskcheck.RejectedInfo(
			"Can't Uncheck",
			"The task's condition no longer holds, so it can't be unchecked.",
		), nil
	}

	if err := e.Curriculum.SetTaskState(ctx, userID, taskID, curriculum.TaskState{}); err != nil {
		return taskcheck.Failed(err.Error()), err
	}
	if e.Policy.RevokeXPOnCancel {
		p, err := e.Progress.Get(ctx, userID)
		if err != nil {
			return taskcheck.Failed(err.Error()), err
		}
		xp := p.XP - task.XP
		if xp < 0 {
			xp = 0
		}
		lvl := progression.LevelForXP(xp)
		if err := e.Progress.Apply(ctx, userID, progression.Patch{XP: &xp, Level: &lvl}); err != nil {
			return taskcheck.Failed(err.Error()), err
		}
	}
	e.record(telemetry.EventTaskCancelled, telemetry.EventMetadata{"task_id": taskID, "user_id": userID})
	return taskcheck.Accepted(), nil
}

// RecordTransaction persists a transaction and runs the activity rules:
// streak touch, first-transaction badge, savings milestones.
func (e *Engine) RecordTransaction(ctx context.Context, tx ledger.TransactionRecord) (ledger.TransactionRecord, error) {
	now := e.Clock.Now()
	if tx.Date == "" {
		tx.Date = ledger.CivilDate(now)
	}
	tx.CreatedAt = now

	existing, err := e.Ledger.Transactions(ctx, tx.UserID)
	if err != nil {
		return ledger.TransactionRecord{}, err
	}
	first := len(existing) == 0

	saved, err := e.Ledger.AddTransaction(ctx, tx)
	if err != nil {
		return ledger.TransactionRecord{}, err
	}
	e.record(telemetry.EventTransactionRecorded, telemetry.EventMetadata{
		"user_id": tx.UserID, "flow": string(tx.Flow), "category": tx.Category,
	})

	p, err := e.touchStreak(ctx, tx.UserID)
	if err != nil {
		return saved, err
	}

	var pending []badge.Event
	if first {
		pending = append(pending, badge.Event{Type: badge.EventFirstTransaction})
	}
	if tx.Flow == ledger.FlowIncome && tx.Category == ledger.CategorySavings {
		snap, err := e.Ledger.Snapshot(ctx, tx.UserID)
		if err != nil {
			return saved, err
		}
		pending = append(pending, badge.Event{Type: badge.EventSavingsMilestone, Amount: snap.SavingsTotal()})
	}
	if _, _, err := e.fireBadgeEvents(ctx, tx.UserID, p, pending); err != nil {
		return saved, err
	}
	return saved, nil
}

// CreateGoal persists a new goal.
func (e *Engine) CreateGoal(ctx context.Context, g ledger.Goal) (ledger.Goal, error) {
	g.CreatedAt = e.Clock.Now()
	g.Saved = decimal.Zero
	saved, err := e.Ledger.AddGoal(ctx, g)
	if err != nil {
		return ledger.Goal{}, err
	}
	e.record(telemetry.EventGoalCreated, telemetry.EventMetadata{"user_id": g.UserID, "goal_id": saved.ID})
	return saved, nil
}

// ContributeToGoal adds money to a goal, mirrors it as a Savings income
// transaction (so savings tasks and milestones see it), and fires the
// goal-completed badge when the target is crossed.
func (e *Engine) ContributeToGoal(ctx context.Context, userID, goalID string, amount decimal.Decimal) (ledger.Goal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return ledger.Goal{}, fmt.Errorf("gamify: contribution must be positive, got %s", amount)
	}
	g, crossed, err := e.Ledger.AddToGoal(ctx, goalID, amount)
	if err != nil {
		return ledger.Goal{}, err
	}

	if _, err := e.RecordTransaction(ctx, ledger.TransactionRecord{
		UserID:   userID,
		Flow:     ledger.FlowIncome,
		Category: ledger.CategorySavings,
		Amount:   amount,
		Note:     "Goal contribution: " + g.Title,
	}); err != nil {
		return g, err
	}

	if crossed {
		e.record(telemetry.EventGoalCompleted, telemetry.EventMetadata{"user_id": userID, "goal_id": goalID})
		_ = e.Notes.Add(ctx, notification.Notification{
			UserID:    userID,
			Type:      notification.TypeGoalCompleted,
			Title:     "Goal Reached!",
			Message:   fmt.Sprintf("You hit your %q goal.", g.Title),
			CreatedAt: e.Clock.Now(),
		})
		p, err := e.Progress.Get(ctx, userID)
		if err != nil {
			return g, err
		}
		if _, _, err := e.fireBadgeEvents(ctx, userID, p, []badge.Event{{Type: badge.EventGoalCompleted}}); err != nil {
			return g, err
		}
	}
	return g, nil
}

// RecordLogin applies the daily streak rule for a session start.
func (e *Engine) RecordLogin(ctx context.Context, userID string) (progression.Progress, error) {
	return e.touchStreak(ctx, userID)
}

// ReadTip bumps the tips-read counter used by read_tip task validation.
func (e *Engine) ReadTip(ctx context.Context, userID, tipID string) error {
	if err := e.Ledger.IncrementTipsRead(ctx, userID); err != nil {
		return err
	}
	e.record(telemetry.EventTipRead, telemetry.EventMetadata{"user_id": userID, "tip_id": tipID})
	return nil
}

// Days renders the whole curriculum for a user with lock state.
func (e *Engine) Days(ctx context.Context, userID string) ([]DayView, int, error) {
	now := e.Clock.Now()
	uc, err := e.Curriculum.Get(ctx, userID, now)
	if err != nil {
		return nil, 0, err
	}
	unlocked := curriculum.CurrentUnlockedDay(e.Plan, uc.StartTime, now)

	views := make([]DayView, 0, len(e.Plan.Days))
	for i, d := range e.Plan.Days {
		dv := DayView{
			Day:        d.Day,
			Unlocked:   i <= unlocked,
			UnlockTime: curriculum.UnlockTime(uc.StartTime, i).UTC().Format("2006-01-02T15:04:05Z07:00"),
			Current:    i == uc.CurrentDay,
		}
		for _, t := range d.Tasks {
			st := uc.States[t.ID]
			tv := TaskView{Task: t, Completed: st.Completed}
			if st.CompletedAt != nil {
				tv.CompletedAt = st.CompletedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			dv.Tasks = append(dv.Tasks, tv)
		}
		views = append(views, dv)
	}
	return views, uc.CurrentDay, nil
}

// touchStreak runs the consecutive-day rule and pays the daily bonus when
// the streak extends.
func (e *Engine) touchStreak(ctx context.Context, userID string) (progression.Progress, error) {
	now := e.Clock.Now()
	p, err := e.Progress.Get(ctx, userID)
	if err != nil {
		return progression.Progress{}, err
	}
	sr := progression.UpdateStreak(p, now)
	if !sr.Counted {
		return p, nil
	}
	if err := e.Progress.Apply(ctx, userID, sr.Patch); err != nil {
		return progression.Progress{}, err
	}
	p = sr.Updated
	e.record(telemetry.EventStreakUpdated, telemetry.EventMetadata{"user_id": userID, "streak": p.Streak})

	if sr.XPAwarded > 0 {
		res, err := progression.AwardXP(p, sr.XPAwarded, "Daily login bonus")
		if err != nil {
			return progression.Progress{}, err
		}
		if err := e.Progress.Apply(ctx, userID, res.Patch); err != nil {
			return progression.Progress{}, err
		}
		p = res.Updated
		e.notifyXP(ctx, userID, res.Notice)
		if res.LeveledUp {
			e.notifyLevelUp(ctx, userID, res.NewLevel)
			_, p, err = e.fireBadgeEvents(ctx, userID, p, []badge.Event{{Type: badge.EventLevelUp, Level: res.NewLevel}})
			if err != nil {
				return progression.Progress{}, err
			}
		}
	}

	_, p, err = e.fireBadgeEvents(ctx, userID, p, []badge.Event{{Type: badge.EventStreakUpdated, Streak: p.Streak}})
	if err != nil {
		return progression.Progress{}, err
	}
	return p, nil
}

// fireBadgeEvents processes badge events, granting each qualifying badge
// once and chaining its XP reward back through the progression engine. A
// badge XP award that levels the user up queues a further level_up event;
// the queue drains because each badge grants at most once.
func (e *Engine) fireBadgeEvents(ctx context.Context, userID string, p progression.Progress, events []badge.Event) ([]badge.Badge, progression.Progress, error) {
	var granted []badge.Badge

	queue := append([]badge.Event(nil), events...)
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		for _, b := range e.Badges.CheckAndAward(ev, p.OwnedSet()) {
			res, err := progression.AwardXP(p, b.XPReward, "Badge: "+b.Name)
			if err != nil {
				return granted, p, err
			}
			// XP persists first; a badge whose reward failed to commit
			// must not be recorded as granted.
			if err := e.Progress.Apply(ctx, userID, res.Patch); err != nil {
				return granted, p, err
			}
			if err := e.Progress.AddBadge(ctx, userID, b.ID); err != nil {
				return granted, p, err
			}
			p = res.Updated
			p.Badges = append(p.Badges, b.ID)
			granted = append(granted, b)

			e.record(telemetry.EventBadgeEarned, telemetry.EventMetadata{"user_id": userID, "badge_id": b.ID})
			_ = e.Notes.Add(ctx, notification.Notification{
				UserID:    userID,
				Type:      notification.TypeBadgeEarned,
				Title:     "Badge Earned: " + b.Name,
				Message:   b.Description,
				Amount:    b.XPReward,
				CreatedAt: e.Clock.Now(),
			})
			e.notifyXP(ctx, userID, res.Notice)

			if res.LeveledUp {
				e.notifyLevelUp(ctx, userID, res.NewLevel)
				queue = append(queue, badge.Event{Type: badge.EventLevelUp, Level: res.NewLevel})
			}
		}
	}
	return granted, p, nil
}

func (e *Engine) notifyXP(ctx context.Context, userID string, n progression.Notice) {
	if n.Amount == 0 {
		return
	}
	e.record(telemetry.EventXPAwarded, telemetry.EventMetadata{
		"user_id": userID, "amount": n.Amount, "reason": n.Reason,
	})
	_ = e.Notes.Add(ctx, notification.Notification{
		UserID:    userID,
		Type:      notification.TypeXPEarned,
		Title:     fmt.Sprintf("+%d XP", n.Amount),
		Message:   n.Reason,
		Amount:    n.Amount,
		CreatedAt: e.Clock.Now(),
	})
}

func (e *Engine) notifyLevelUp(ctx context.Context, userID string, level int) {
	e.record(telemetry.EventLevelUp, telemetry.EventMetadata{"user_id": userID, "level": level})
	_ = e.Notes.Add(ctx, notification.Notification{
		UserID:    userID,
		Type:      notification.TypeLevelUp,
		Title:     fmt.Sprintf("Level %d!", level),
		Message:   fmt.Sprintf("You reached level %d. Keep it up!", level),
		CreatedAt: e.Clock.Now(),
	})
}

func (e *Engine) record(t telemetry.EventType, md telemetry.EventMetadata) {
	if e.Events == nil {
		return
	}
	_ = e.Events.RecordEvent(t, e.Clock.Now(), md)
}

func failResult(err error) CompleteResult {
	return CompleteResult{Outcome: taskcheck.Failed(err.Error())}
}
