package badge

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Badge ids referenced by the grant rules.
const (
	IDFirstTransaction    = "first_transaction"
	IDGoalAchiever        = "goal_achiever"
	IDTransactionStreak7  = "transaction_streak_7"
	IDTransactionStreak30 = "transaction_streak_30"
	IDSaver100            = "saver_100"
	IDSaver1000           = "saver_1000"
	IDLevel5              = "level_5"
	IDLevel10             = "level_10"
	IDCurriculumFinisher  = "curriculum_finisher"
)

// Badge is an immutable catalog entry. XPReward feeds back into the
// progression engine when the badge is granted.
type Badge struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	XPReward    int    `yaml:"xp_reward" json:"xpReward"`
}

type Catalog struct {
	ordered []Badge
	byID    map[string]Badge
}

func NewCatalog(badges []Badge) *Catalog {
	c := &Catalog{byID: make(map[string]Badge, len(badges))}
	for _, b := range badges {
		if _, dup := c.byID[b.ID]; dup {
			continue
		}
		c.ordered = append(c.ordered, b)
		c.byID[b.ID] = b
	}
	return c
}

// DefaultCatalog is the built-in nine-badge set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Badge{
		{ID: IDFirstTransaction, Name: "First Steps", Description: "Record your first transaction", Icon: "🧾", XPReward: 50},
		{ID: IDGoalAchiever, Name: "Goal Achiever", Description: "Complete a savings goal", Icon: "🎯", XPReward: 100},
		{ID: IDTransactionStreak7, Name: "One Week Strong", Description: "Stay active 7 days in a row", Icon: "🔥", XPReward: 150},
		{ID: IDTransactionStreak30, Name: "Habit Builder", Description: "Stay active 30 days in a row", Icon: "🏆", XPReward: 500},
		{ID: IDSaver100, Name: "Smart Saver", Description: "Save ₦100 in total", Icon: "🪙", XPReward: 75},
		{ID: IDSaver1000, Name: "Super Saver", Description: "Save ₦1,000 in total", Icon: "💰", XPReward: 300},
		{ID: IDLevel5, Name: "Rising Star", Description: "Reach level 5", Icon: "⭐", XPReward: 200},
		{ID: IDLevel10, Name: "Money Master", Description: "Reach level 10", Icon: "🌟", XPReward: 400},
		{ID: IDCurriculumFinisher, Name: "Course Complete", Description: "Finish every day of the starter plan", Icon: "🎓", XPReward: 250},
	})
}

// LoadCatalog reads a badge catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read badge catalog: %w", err)
	}
	var doc struct {
		Badges []Badge `yaml:"badges"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse badge catalog: %w", err)
	}
	if len(doc.Badges) == 0 {
		return nil, fmt.Errorf("badge catalog %s has no badges", path)
	}
	return NewCatalog(doc.Badges), nil
}

func (c *Catalog) Get(id string) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

func (c *Catalog) All() []Badge {
	out := make([]Badge, len(c.ordered))
	copy(out, c.ordered)
	return out
}

type EventType string

const (
	EventFirstTransaction    EventType = "first_transaction"
	EventGoalCompleted       EventType = "goal_completed"
	EventStreakUpdated       EventType = "streak_updated"
	EventSavingsMilestone    EventType = "savings_milestone"
	EventLevelUp             EventType = "level_up"
	EventCurriculumCompleted EventType = "curriculum_completed"
)

// Event is an action the grant rules react to. Only the field relevant to
// the event type is read.
type Event struct {
	Type   EventType
	Streak int
	Amount decimal.Decimal
	Level  int
}

// CheckAndAward returns the badges newly earned by the event, in catalog
// order, excluding anything already owned. It does not mutate owned; the
// caller records grants. A badge is granted at most once per user.
func (c *Catalog) CheckAndAward(ev Event, owned map[string]bool) []Badge {
	var candidates []string
	switch ev.Type {
	case EventFirstTransaction:
		candidates = []string{IDFirstTransaction}
	case EventGoalCompleted:
		candidates = []string{IDGoalAchiever}
	case EventStreakUpdated:
		if ev.Streak == 7 {
			candidates = append(candidates, IDTransactionStreak7)
		}
		if ev.Streak == 30 {
			candidates = append(candidates, IDTransactionStreak30)
		}
	case EventSavingsMilestone:
		if ev.Amount.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			candidates = append(candidates, IDSaver100)
		}
		if ev.Amount.GreaterThanOrEqual(decimal.NewFromInt(1000)) {
			candidates = append(candidates, IDSaver1000)
		}
	case EventLevelUp:
		if ev.Level >= 5 {
			candidates = append(candidates, IDLevel5)
		}
		if ev.Level >= 10 {
			candidates = append(candidates, IDLevel10)
		}
	case EventCurriculumCompleted:
		candidates = []string{IDCurriculumFinisher}
	}

	var granted []Badge
	for _, id := range candidates {
		if owned[id] {
			continue
		}
		if b, ok := c.byID[id]; ok {
			granted = append(granted, b)
		}
	}
	return granted
}
