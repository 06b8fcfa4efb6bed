package curriculum

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"savequest/internal/taskcheck"
)

// DayPlan is one day of the starter curriculum. Day is 1-based for display;
// scheduling works on 0-based indexes.
type DayPlan struct {
	Day   int              `yaml:"day" json:"day"`
	Tasks []taskcheck.Task `yaml:"tasks" json:"tasks"`
}

// Curriculum is the ordered, time-gated task plan shared by all users; each
// user anchors it to their own start time.
type Curriculum struct {
	Days []DayPlan `yaml:"days" json:"days"`
}

// Default is the built-in seven-day starter plan.
func Default() Curriculum {
	return Curriculum{Days: []DayPlan{
		{Day: 1, Tasks: []taskcheck.Task{
			{ID: "d1-track", Title: "Track your first expense", Type: taskcheck.TypeTrackExpense, XP: 25},
			{ID: "d1-tip", Title: "Read a money tip", Type: taskcheck.TypeReadTip, XP: 15},
		}},
		{Day: 2, Tasks: []taskcheck.Task{
			{ID: "d2-goal", Title: "Set a savings goal", Type: taskcheck.TypeSetGoal, XP: 30},
			{ID: "d2-track", Title: "Track today's spending", Type: taskcheck.TypeTrackExpense, XP: 25},
		}},
		{Day: 3, Tasks: []taskcheck.Task{
			{ID: "d3-save", Title: "Save ₦500 today", Type: taskcheck.TypeSaveMoney, XP: 50},
			{ID: "d3-tip", Title: "Read another tip", Type: taskcheck.TypeReadTip, XP: 15},
		}},
		{Day: 4, Tasks: []taskcheck.Task{
			{ID: "d4-track", Title: "Keep tracking expenses", Type: taskcheck.TypeTrackExpense, XP: 25},
			{ID: "d4-review", Title: "Review your week so far", Type: taskcheck.TypeOther, XP: 20},
		}},
		{Day: 5, Tasks: []taskcheck.Task{
			{ID: "d5-save", Title: "Save ₦500 again", Type: taskcheck.TypeSaveMoney, XP: 50},
			{ID: "d5-track", Title: "Track today's spending", Type: taskcheck.TypeTrackExpense, XP: 25},
		}},
		{Day: 6, Tasks: []taskcheck.Task{
			{ID: "d6-tip", Title: "Read a budgeting tip", Type: taskcheck.TypeReadTip, XP: 15},
			{ID: "d6-save", Title: "Top up your savings", Type: taskcheck.TypeSaveMoney, XP: 50},
		}},
		{Day: 7, Tasks: []taskcheck.Task{
			{ID: "d7-track", Title: "Track one more expense", Type: taskcheck.TypeTrackExpense, XP: 25},
			{ID: "d7-reflect", Title: "Reflect on your first week", Type: taskcheck.TypeOther, XP: 40},
		}},
	}}
}

// Load reads a curriculum from a YAML file and validates task types.
func Load(path string) (Curriculum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Curriculum{}, fmt.Errorf("read curriculum: %w", err)
	}
	var c Curriculum
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Curriculum{}, fmt.Errorf("parse curriculum: %w", err)
	}
	if len(c.Days) == 0 {
		return Curriculum{}, fmt.Errorf("curriculum %s has no days", path)
	}
	for _, d := range c.Days {
		for _, t := range d.Tasks {
			if _, err := taskcheck.ParseTaskType(string(t.Type)); err != nil {
				return Curriculum{}, fmt.Errorf("day %d task %s: %w", d.Day, t.ID, err)
			}
		}
	}
	return c, nil
}

// Task finds a task by id and returns its 0-based day index.
func (c Curriculum) Task(taskID string) (taskcheck.Task, int, bool) {
	for i, d := range c.Days {
		for _, t := range d.Tasks {
			if t.ID == taskID {
				return t, i, true
			}
		}
	}
	return taskcheck.Task{}, 0, false
}

// UnlockTime is when the given 0-based day opens for a user who started at
// start. Day 0 is open immediately.
func UnlockTime(start time.Time, dayIndex int) time.Time {
	return start.Add(time.Duration(dayIndex) * 24 * time.Hour)
}

// CurrentUnlockedDay returns the largest 0-based day index whose unlock time
// has passed, clamped to the plan length. Never negative: day one is always
// available.
func CurrentUnlockedDay(c Curriculum, start, now time.Time) int {
	idx := 0
	for i := range c.Days {
		if !UnlockTime(start, i).After(now) {
			idx = i
		}
	}
	return idx
}

// TaskState is the per-user, per-task completion record.
type TaskState struct {
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// DayComplete reports whether every task in the day plan is completed in
// the given state map.
func DayComplete(day DayPlan, states map[string]TaskState) bool {
	for _, t := range day.Tasks {
		if !states[t.ID].Completed {
			return false
		}
	}
	return len(day.Tasks) > 0
}

// TryAdvance moves to the next day only when the current day is fully
// complete AND its successor's unlock time has passed. Re-evaluated on every
// tick and on every completion event; both triggers are valid.
func TryAdvance(c Curriculum, states map[string]TaskState, currentDay int, start, now time.Time) int {
	if currentDay < 0 || currentDay >= len(c.Days)-1 {
		return currentDay
	}
	if !DayComplete(c.Days[currentDay], states) {
		return currentDay
	}
	if now.Before(UnlockTime(start, currentDay+1)) {
		return currentDay
	}
	return currentDay + 1
}

// Finished reports whether every task of every day is complete.
func Finished(c Curriculum, states map[string]TaskState) bool {
	for _, d := range c.Days {
		if !DayComplete(d, states) {
			return false
		}
	}
	return len(c.Days) > 0
}
