package progression

import (
	"errors"
	"time"

	"savequest/internal/ledger"
)

// XP thresholds: every 1000 XP is one level, starting at level 1.
const xpPerLevel = 1000

// DefaultDailyLoginXP is the fixed bonus for extending a streak by one day.
const DefaultDailyLoginXP = 50

var ErrNegativeAmount = errors.New("progression: xp amount must not be negative")

// Progress is the per-user progression document. Level is never a stored
// source of truth; it is always derived from XP.
type Progress struct {
	UserID           string   `json:"userId"`
	XP               int      `json:"xp"`
	Streak           int      `json:"streak"`
	LastActivityDate string   `json:"lastActivityDate,omitempty"` // civil date
	Badges           []string `json:"badges,omitempty"`
}

func NewProgress(userID string) Progress {
	return Progress{UserID: userID}
}

func (p Progress) Level() int { return LevelForXP(p.XP) }

func (p Progress) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// OwnedSet returns the badge ids as a set.
func (p Progress) OwnedSet() map[string]bool {
	owned := make(map[string]bool, len(p.Badges))
	for _, b := range p.Badges {
		owned[b] = true
	}
	return owned
}

// LevelForXP maps total XP to a level. Total on all inputs; negative XP
// never occurs in stored state but clamps to level 1 anyway.
func LevelForXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/xpPerLevel + 1
}

// Patch carries the fields a progression change wants merged into the
// stored document. Level rides along for display readers only.
type Patch struct {
	XP               *int
	Level            *int
	Streak           *int
	LastActivityDate *string
}

// Fields converts the patch to a store merge payload.
func (p Patch) Fields() map[string]any {
	out := map[string]any{}
	if p.XP != nil {
		out["xp"] = *p.XP
	}
	if p.Level != nil {
		out["level"] = *p.Level
	}
	if p.Streak != nil {
		out["streak"] = *p.Streak
	}
	if p.LastActivityDate != nil {
		out["lastActivityDate"] = *p.LastActivityDate
	}
	return out
}

// Notice describes a notification the caller should emit; the engine never
// pushes anything itself.
type Notice struct {
	Type   string
	Amount int
	Reason string
}

type AwardResult struct {
	Updated   Progress
	LeveledUp bool
	NewLevel  int
	Patch     Patch
	Notice    Notice
}

// AwardXP adds XP and recomputes the level. A zero amount is a no-op result;
// a negative amount is a caller bug and fails fast.
func AwardXP(cur Progress, amount int, reason string) (AwardResult, error) {
	if amount < 0 {
		return AwardResult{}, ErrNegativeAmount
	}
	if amount == 0 {
		return AwardResult{
			Updated:  cur,
			NewLevel: cur.Level(),
		}, nil
	}

	next := cur
	next.XP = cur.XP + amount
	newLevel := LevelForXP(next.XP)

	xp := next.XP
	lvl := newLevel
	return AwardResult{
		Updated:   next,
		LeveledUp: newLevel > cur.Level(),
		NewLevel:  newLevel,
		Patch:     Patch{XP: &xp, Level: &lvl},
		Notice:    Notice{Type: "xp_earned", Amount: amount, Reason: reason},
	}, nil
}

type StreakResult struct {
	Updated   Progress
	XPAwarded int
	Patch     Patch
	// Counted is true when today extended or restarted the streak, i.e.
	// the first activity of a new day.
	Counted bool
}

// UpdateStreak applies the consecutive-day rule for an activity on today's
// date. Same-day repeats are no-ops; a one-day gap extends the streak and
// earns the login bonus; a longer gap resets it to one with no bonus. A
// negative gap (clock skew or bad data) is treated as same-day so the streak
// can never corrupt backwards.
func UpdateStreak(cur Progress, today time.Time) StreakResult {
	todayStr := ledger.CivilDate(today)

	gap := daysBetween(cur.LastActivityDate, todayStr)
	if cur.LastActivityDate != "" && gap <= 0 {
		return StreakResult{Updated: cur}
	}

	next := cur
	next.LastActivityDate = todayStr
	bonus := 0
	switch {
	case cur.LastActivityDate == "":
		next.Streak = 1
	case gap == 1:
		next.Streak = cur.Streak + 1
		bonus = DefaultDailyLoginXP
	default: // gap > 1
		next.Streak = 1
	}

	streak := next.Streak
	date := next.LastActivityDate
	return StreakResult{
		Updated:   next,
		XPAwarded: bonus,
		Patch:     Patch{Streak: &streak, LastActivityDate: &date},
		Counted:   true,
	}
}

// daysBetween returns whole days from one civil date to another. An empty
// "from" yields a large gap so first-ever activity starts a streak.
func daysBetween(from, to string) int {
	if from == "" {
		return int(1<<31 - 1)
	}
	a, errA := time.Parse(ledger.DateLayout, from)
	b, errB := time.Parse(ledger.DateLayout, to)
	if errA != nil || errB != nil {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}
