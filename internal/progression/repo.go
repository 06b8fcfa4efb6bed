package progression

import (
	"context"
	"errors"
	"fmt"

	"savequest/internal/store"
)

const colProgress = "progress"

// Repository persists progression state. Get returns a fresh default for an
// unknown user; the document materializes on the first write.
type Repository interface {
	Get(ctx context.Context, userID string) (Progress, error)
	Apply(ctx context.Context, userID string, patch Patch) error
	AddBadge(ctx context.Context, userID, badgeID string) error
}

type StoreRepo struct {
	store store.Store
}

func NewStoreRepo(s store.Store) *StoreRepo {
	return &StoreRepo{store: s}
}

func (r *StoreRepo) Get(ctx context.Context, userID string) (Progress, error) {
	doc, err := r.store.Get(ctx, colProgress, userID)
	if errors.Is(err, store.ErrNotFound) {
		return NewProgress(userID), nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("get progress: %w", err)
	}
	var p Progress
	if err := store.Decode(doc, &p); err != nil {
		return Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	p.UserID = userID
	return p, nil
}

func (r *StoreRepo) Apply(ctx context.Context, userID string, patch Patch) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}
	fields["userId"] = userID
	if err := r.store.Upsert(ctx, colProgress, userID, fields); err != nil {
		return fmt.Errorf("apply progress patch: %w", err)
	}
	return nil
}

func (r *StoreRepo) AddBadge(ctx context.Context, userID, badgeID string) error {
	if err := r.store.AppendToSet(ctx, colProgress, userID, "badges", badgeID); err != nil {
		return fmt.Errorf("add badge: %w", err)
	}
	return nil
}
