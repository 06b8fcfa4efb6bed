package telemetry

import "time"

type EventType string

const (
	EventTaskCompleted       EventType = "task_completed"
	EventTaskCancelled       EventType = "task_cancelled"
	EventXPAwarded           EventType = "xp_awarded"
	EventBadgeEarned         EventType = "badge_earned"
	EventLevelUp             EventType = "level_up"
	EventStreakUpdated       EventType = "streak_updated"
	EventDayUnlocked         EventType = "day_unlocked"
	EventTransactionRecorded EventType = "transaction_recorded"
	EventGoalCreated         EventType = "goal_created"
	EventGoalCompleted       EventType = "goal_completed"
	EventTipRead             EventType = "tip_read"
	EventCircleContribution  EventType = "circle_contribution"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
