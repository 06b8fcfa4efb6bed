package taskcheck

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"savequest/internal/ledger"
)

// TaskType is a closed enum; decoding an unknown string fails fast instead
// of silently falling through to the auto-pass branch.
type TaskType string

const (
	TypeSaveMoney    TaskType = "save_money"
	TypeTrackExpense TaskType = "track_expense"
	TypeReadTip      TaskType = "read_tip"
	TypeSetGoal      TaskType = "set_goal"
	TypeOther        TaskType = "other"
)

func ParseTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TypeSaveMoney, TypeTrackExpense, TypeReadTip, TypeSetGoal, TypeOther:
		return TaskType(s), nil
	}
	return "", fmt.Errorf("taskcheck: unknown task type %q", s)
}

// Task is a curriculum task definition: what to do and what it pays.
type Task struct {
	ID    string   `json:"id" yaml:"id"`
	Title string   `json:"title" yaml:"title"`
	Type  TaskType `json:"type" yaml:"type"`
	XP    int      `json:"xp" yaml:"xp"`
}

type Status string

const (
	StatusAccepted        Status = "accepted"
	StatusRejectedWarning Status = "rejected_warning"
	StatusRejectedInfo    Status = "rejected_info"
	StatusFailed          Status = "failed"
)

// Outcome is the structured validation result. Rejections are values, not
// errors; Current/Required are set when the UI can draw a progress bar.
type Outcome struct {
	Status   Status           `json:"status"`
	Title    string           `json:"title,omitempty"`
	Message  string           `json:"message,omitempty"`
	Current  *decimal.Decimal `json:"currentAmount,omitempty"`
	Required *decimal.Decimal `json:"requiredAmount,omitempty"`
}

func (o Outcome) Accepted() bool { return o.Status == StatusAccepted }

func Accepted() Outcome { return Outcome{Status: StatusAccepted} }

func RejectedWarning(title, message string) Outcome {
	return Outcome{Status: StatusRejectedWarning, Title: title, Message: message}
}

func RejectedInfo(title, message string) Outcome {
	return Outcome{Status: StatusRejectedInfo, Title: title, Message: message}
}

func Failed(message string) Outcome {
	return Outcome{Status: StatusFailed, Title: "Something went wrong", Message: message}
}

// SaveMoneyTarget is the daily savings threshold for save_money tasks, in
// naira. The message copy below doubles as the acceptance criterion.
var SaveMoneyTarget = decimal.NewFromInt(500)

// Validate decides whether the task's completion criterion holds against
// the given evidence. Pure: same evidence, same outcome. Evidence gathering
// is the caller's I/O step, performed immediately before each call.
func Validate(task Task, ev ledger.Snapshot, today time.Time) (Outcome, error) {
	day := ledger.CivilDate(today)

	switch task.Type {
	case TypeSaveMoney:
		saved := ev.SavingsOnOrAfter(day)
		if saved.GreaterThanOrEqual(SaveMoneyTarget) {
			return Accepted(), nil
		}
		out := RejectedWarning(
			"Not Saved Yet",
			fmt.Sprintf("Save at least ₦%s today to complete this task. You have saved ₦%s so far.",
				SaveMoneyTarget.StringFixed(0), saved.StringFixed(0)),
		)
		cur := saved
		req := SaveMoneyTarget
		out.Current = &cur
		out.Required = &req
		return out, nil

	case TypeTrackExpense:
		if ev.HasExpenseOnOrAfter(day) {
			return Accepted(), nil
		}
		return RejectedWarning(
			"No Expense Tracked",
			"Record at least one expense today to complete this task.",
		), nil

	case TypeReadTip:
		if ev.TipsRead >= 1 {
			return Accepted(), nil
		}
		return RejectedInfo(
			"Read a Tip First",
			"Open any financial tip, then come back and mark this done.",
		), nil

	case TypeSetGoal:
		// Criterion is "has ever created any goal", matching observed
		// product behavior, not "created one today".
		if len(ev.Goals) > 0 {
			return Accepted(), nil
		}
		return RejectedInfo(
			"No Goal Yet",
			"Create a savings goal to complete this task.",
		), nil

	case TypeOther:
		// Product policy: tasks without a mechanical check auto-pass.
		return Accepted(), nil
	}

	return Outcome{}, fmt.Errorf("taskcheck: unknown task type %q", task.Type)
}
