package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"savequest/internal/store"
)

const colNotifications = "notifications"

type Type string

const (
	TypeXPEarned      Type = "xp_earned"
	TypeBadgeEarned   Type = "badge_earned"
	TypeLevelUp       Type = "level_up"
	TypeTaskCompleted Type = "task_completed"
	TypeDayUnlocked   Type = "day_unlocked"
	TypeGoalCompleted Type = "goal_completed"
)

// Notification is a persisted record for the UI to render; the engines only
// describe what to emit, this package stores it.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Amount    int       `json:"amount,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Add(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type StoreRepo struct {
	store store.Store
}

func NewStoreRepo(s store.Store) *StoreRepo {
	return &StoreRepo{store: s}
}

func (r *StoreRepo) Add(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	doc, err := store.Encode(n)
	if err != nil {
		return err
	}
	if err := r.store.Upsert(ctx, colNotifications, n.ID, doc); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

func (r *StoreRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	docs, err := r.store.Query(ctx, colNotifications, store.Query{
		Filters:    []store.Filter{{Field: "userId", Op: store.OpEq, Value: userID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]Notification, 0, len(docs))
	for _, doc := range docs {
		var n Notification
		if err := store.Decode(doc, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *StoreRepo) MarkRead(ctx context.Context, id string) error {
	return r.store.Upsert(ctx, colNotifications, id, store.Document{"read": true})
}
