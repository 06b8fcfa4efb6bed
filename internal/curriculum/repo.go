package curriculum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savequest/internal/store"
)

const colCurricula = "curricula"

// UserCurriculum anchors the shared plan to one user: an immutable start
// time plus their completion states and current day.
type UserCurriculum struct {
	UserID     string               `json:"userId"`
	StartTime  time.Time            `json:"startTime"`
	CurrentDay int                  `json:"currentDay"`
	States     map[string]TaskState `json:"states"`
}

type Repository interface {
	// Get returns the user's curriculum state, creating and persisting a
	// fresh one anchored at now for first-time users.
	Get(ctx context.Context, userID string, now time.Time) (UserCurriculum, error)
	SetTaskState(ctx context.Context, userID, taskID string, st TaskState) error
	SetCurrentDay(ctx context.Context, userID string, day int) error
}

type StoreRepo struct {
	store store.Store
}

func NewStoreRepo(s store.Store) *StoreRepo {
	return &StoreRepo{store: s}
}

func (r *StoreRepo) Get(ctx context.Context, userID string, now time.Time) (UserCurriculum, error) {
	doc, err := r.store.Get(ctx, colCurricula, userID)
	if errors.Is(err, store.ErrNotFound) {
		uc := UserCurriculum{
			UserID:    userID,
			StartTime: now,
			States:    map[string]TaskState{},
		}
		fields, encErr := store.Encode(uc)
		if encErr != nil {
			return UserCurriculum{}, encErr
		}
		if err := r.store.Upsert(ctx, colCurricula, userID, fields); err != nil {
			return UserCurriculum{}, fmt.Errorf("init curriculum: %w", err)
		}
		return uc, nil
	}
	if err != nil {
		return UserCurriculum{}, fmt.Errorf("get curriculum: %w", err)
	}
	var uc UserCurriculum
	if err := store.Decode(doc, &uc); err != nil {
		return UserCurriculum{}, fmt.Errorf("decode curriculum: %w", err)
	}
	if uc.States == nil {
		uc.States = map[string]TaskState{}
	}
	uc.UserID = userID
	return uc, nil
}

func (r *StoreRepo) SetTaskState(ctx context.Context, userID, taskID string, st TaskState) error {
	doc, err := r.store.Get(ctx, colCurricula, userID)
	if err != nil {
		return fmt.Errorf("get curriculum: %w", err)
	}
	var uc UserCurriculum
	if err := store.Decode(doc, &uc); err != nil {
		return err
	}
	if uc.States == nil {
		uc.States = map[string]TaskState{}
	}
	uc.States[taskID] = st
	fields, err := store.Encode(uc)
	if err != nil {
		return err
	}
	if err := r.store.Upsert(ctx, colCurricula, userID, fields); err != nil {
		return fmt.Errorf("save task state: %w", err)
	}
	return nil
}

func (r *StoreRepo) SetCurrentDay(ctx context.Context, userID string, day int) error {
	if err := r.store.Upsert(ctx, colCurricula, userID, store.Document{"currentDay": day}); err != nil {
		return fmt.Errorf("save current day: %w", err)
	}
	return nil
}
