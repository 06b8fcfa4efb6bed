package telemetry

import (
	"encoding/json"
	"time"
)

type Stats struct {
	Period          string            `json:"period"`
	EventCounts     map[EventType]int `json:"event_counts"`
	TaskCompletions int               `json:"task_completions"`
	TaskCancels     int               `json:"task_cancels"`
	XPAwardedTotal  int               `json:"xp_awarded_total"`
	BadgesEarned    int               `json:"badges_earned"`
	LevelUps        int               `json:"level_ups"`
	DaysUnlocked    int               `json:"days_unlocked"`
	XPByReason      map[string]int    `json:"xp_by_reason"`
}

// CalculateStats summarizes gamification events. The time window is applied
// by GetEvents; since only labels the reporting period.
func CalculateStats(events []Event, since time.Time) (Stats, error) {
	stats := Stats{
		Period:      since.Format("2006-01-02"),
		EventCounts: make(map[EventType]int),
		XPByReason:  make(map[string]int),
	}

	for _, event := range events {
		stats.EventCounts[event.Type]++

		var metadata EventMetadata
		if err := json.Unmarshal([]byte(event.Metadata), &metadata); err != nil {
			continue
		}

		switch event.Type {
		case EventTaskCompleted:
			stats.TaskCompletions++
		case EventTaskCancelled:
			stats.TaskCancels++
		case EventBadgeEarned:
			stats.BadgesEarned++
		case EventLevelUp:
			stats.LevelUps++
		case EventDayUnlocked:
			stats.DaysUnlocked++
		case EventXPAwarded:
			amount, _ := metadata["amount"].(float64)
			stats.XPAwardedTotal += int(amount)
			if reason, ok := metadata["reason"].(string); ok {
				stats.XPByReason[reason] += int(amount)
			}
		}
	}

	return stats, nil
}
