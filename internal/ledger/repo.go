package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"savequest/internal/store"
)

const (
	colTransactions = "transactions"
	colGoals        = "goals"
	colProfiles     = "profiles"
)

var ErrGoalNotFound = errors.New("ledger: goal not found")

// Repo reads and writes the user's ledger documents. It owns no business
// rules; the engines consume what it returns.
type Repo struct {
	store store.Store
}

func NewRepo(s store.Store) *Repo {
	return &Repo{store: s}
}

// Snapshot pulls the user's full evidence set in one read pass.
func (r *Repo) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	txs, err := r.Transactions(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	goals, err := r.Goals(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	tips, err := r.TipsRead(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Transactions: txs, Goals: goals, TipsRead: tips}, nil
}

func (r *Repo) Transactions(ctx context.Context, userID string) ([]TransactionRecord, error) {
	docs, err := r.store.Query(ctx, colTransactions, store.Query{
		Filters:    []store.Filter{{Field: "userId", Op: store.OpEq, Value: userID}},
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]TransactionRecord, 0, len(docs))
	for _, doc := range docs {
		var tx TransactionRecord
		if err := store.Decode(doc, &tx); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *Repo) AddTransaction(ctx context.Context, tx TransactionRecord) (TransactionRecord, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Amount.IsNegative() {
		return TransactionRecord{}, fmt.Errorf("ledger: negative amount %s", tx.Amount)
	}
	doc, err := store.Encode(tx)
	if err != nil {
		return TransactionRecord{}, err
	}
	if err := r.store.Upsert(ctx, colTransactions, tx.ID, doc); err != nil {
		return TransactionRecord{}, fmt.Errorf("save transaction: %w", err)
	}
	return tx, nil
}

func (r *Repo) Goals(ctx context.Context, userID string) ([]Goal, error) {
	docs, err := r.store.Query(ctx, colGoals, store.Query{
		Filters: []store.Filter{{Field: "userId", Op: store.OpEq, Value: userID}},
		OrderBy: "createdAt",
	})
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	out := make([]Goal, 0, len(docs))
	for _, doc := range docs {
		var g Goal
		if err := store.Decode(doc, &g); err != nil {
			return nil, fmt.Errorf("decode goal: %w", err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *Repo) Goal(ctx context.Context, goalID string) (Goal, error) {
	doc, err := r.store.Get(ctx, colGoals, goalID)
	if errors.Is(err, store.ErrNotFound) {
		return Goal{}, ErrGoalNotFound
	}
	if err != nil {
		return Goal{}, err
	}
	var g Goal
	if err := store.Decode(doc, &g); err != nil {
		return Goal{}, err
	}
	return g, nil
}

func (r *Repo) AddGoal(ctx context.Context, g Goal) (Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	doc, err := store.Encode(g)
	if err != nil {
		return Goal{}, err
	}
	if err := r.store.Upsert(ctx, colGoals, g.ID, doc); err != nil {
		return Goal{}, fmt.Errorf("save goal: %w", err)
	}
	return g, nil
}

// AddToGoal merges a contribution into the goal's saved amount and flips
// completed when the target is reached. Returns the updated goal and whether
// this contribution crossed the target.
func (r *Repo) AddToGoal(ctx context.Context, goalID string, amount decimal.Decimal) (Goal, bool, error) {
	g, err := r.Goal(ctx, goalID)
	if err != nil {
		return Goal{}, false, err
	}
	wasCompleted := g.Completed
	g.Saved = g.Saved.Add(amount)
	if g.Saved.GreaterThanOrEqual(g.Target) {
		g.Completed = true
	}
	doc, err := store.Encode(g)
	if err != nil {
		return Goal{}, false, err
	}
	if err := r.store.Upsert(ctx, colGoals, g.ID, doc); err != nil {
		return Goal{}, false, fmt.Errorf("update goal: %w", err)
	}
	return g, g.Completed && !wasCompleted, nil
}

func (r *Repo) TipsRead(ctx context.Context, userID string) (int, error) {
	doc, err := r.store.Get(ctx, colProfiles, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var profile struct {
		TipsRead int `json:"tipsRead"`
	}
	if err := store.Decode(doc, &profile); err != nil {
		return 0, err
	}
	return profile.TipsRead, nil
}

func (r *Repo) IncrementTipsRead(ctx context.Context, userID string) error {
	return r.store.Increment(ctx, colProfiles, userID, "tipsRead", 1)
}
