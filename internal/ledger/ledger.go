package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Flow is the direction of a transaction.
type Flow string

const (
	FlowIncome  Flow = "income"
	FlowExpense Flow = "expense"
)

// CategorySavings marks the income transactions that count toward savings
// tasks, milestones and circle contributions.
const CategorySavings = "Savings"

// DateLayout is the civil-date format used everywhere a calendar day (not an
// instant) is meant.
const DateLayout = "2006-01-02"

type TransactionRecord struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Flow      Flow            `json:"flow"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	Date      string          `json:"date"` // civil date, DateLayout
	CreatedAt time.Time       `json:"createdAt"`
}

type Goal struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Title     string          `json:"title"`
	Target    decimal.Decimal `json:"target"`
	Saved     decimal.Decimal `json:"saved"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
	Completed bool            `json:"completed"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ProgressPct returns saved/target as a 0-100 percentage, clamped.
func (g Goal) ProgressPct() float64 {
	if g.Target.IsZero() || g.Target.IsNegative() {
		return 0
	}
	pct, _ := g.Saved.Div(g.Target).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Snapshot is the read-only evidence a validation call sees: the user's
// transactions and goals plus the tips-read counter. Gathering it is I/O;
// consuming it is pure.
type Snapshot struct {
	Transactions []TransactionRecord
	Goals        []Goal
	TipsRead     int
}

// CivilDate truncates an instant to its calendar day string.
func CivilDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SavingsTotal sums income transactions in the Savings category, all time.
func (s Snapshot) SavingsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range s.Transactions {
		if tx.Flow == FlowIncome && tx.Category == CategorySavings {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// SavingsOnOrAfter sums income/Savings transactions dated on or after the
// given civil date.
func (s Snapshot) SavingsOnOrAfter(date string) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range s.Transactions {
		if tx.Flow == FlowIncome && tx.Category == CategorySavings && tx.Date >= date {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// HasExpenseOnOrAfter reports whether any expense is dated on or after the
// given civil date.
func (s Snapshot) HasExpenseOnOrAfter(date string) bool {
	for _, tx := range s.Transactions {
		if tx.Flow == FlowExpense && tx.Date >= date {
			return true
		}
	}
	return false
}
