package circle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"savequest/internal/clock"
	"savequest/internal/gamify"
	"savequest/internal/ledger"
	"savequest/internal/store"
	"savequest/internal/telemetry"
)

const (
	colCircles  = "circles"
	colActivity = "circle_activity"
)

var (
	ErrNotFound      = errors.New("circle: not found")
	ErrNotMember     = errors.New("circle: not a member")
	ErrAlreadyMember = errors.New("circle: already a member")
)

type Member struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Contributed decimal.Decimal `json:"contributed"`
	JoinedAt    time.Time       `json:"joinedAt"`
}

// Circle is a shared savings pot. Members contribute toward a common
// target; contributions also land in each member's own ledger as Savings
// income, so personal tasks and milestones count them.
type Circle struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	InviteCode string          `json:"inviteCode"`
	Target     decimal.Decimal `json:"target"`
	CreatedBy  string          `json:"createdBy"`
	CreatedAt  time.Time       `json:"createdAt"`
	Members    []Member        `json:"members"`
}

func (c Circle) Total() decimal.Decimal {
	total := decimal.Zero
	for _, m := range c.Members {
		total = total.Add(m.Contributed)
	}
	return total
}

func (c Circle) ProgressPct() float64 {
	if c.Target.IsZero() || c.Target.IsNegative() {
		return 0
	}
	pct, _ := c.Total().Div(c.Target).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}

func (c Circle) member(userID string) (int, bool) {
	for i, m := range c.Members {
		if m.UserID == userID {
			return i, true
		}
	}
	return 0, false
}

// Activity is one feed entry shown to circle members.
type Activity struct {
	ID        string          `json:"id"`
	CircleID  string          `json:"circleId"`
	UserID    string          `json:"userId"`
	Display   string          `json:"display"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Service owns circle membership and contributions. Personal gamification
// side effects route through the gamify engine; this package never touches
// progression state directly.
type Service struct {
	store       store.Store
	leaderboard Leaderboard
	engine      *gamify.Engine
	events      telemetry.Repository
	clock       clock.Clock
}

func NewService(s store.Store, lb Leaderboard, engine *gamify.Engine, events telemetry.Repository, clk clock.Clock) *Service {
	return &Service{store: s, leaderboard: lb, engine: engine, events: events, clock: clk}
}

// Create starts a circle with the creator as its first member.
func (s *Service) Create(ctx context.Context, name string, target decimal.Decimal, userID, displayName string) (Circle, error) {
	if target.IsNegative() || target.IsZero() {
		return Circle{}, fmt.Errorf("circle: target must be positive, got %s", target)
	}
	code, err := inviteCode()
	if err != nil {
		return Circle{}, err
	}
	now := s.clock.Now()
	c := Circle{
		ID:         uuid.NewString(),
		Name:       name,
		InviteCode: code,
		Target:     target,
		CreatedBy:  userID,
		CreatedAt:  now,
		Members: []Member{{
			UserID:      userID,
			DisplayName: displayName,
			Contributed: decimal.Zero,
			JoinedAt:    now,
		}},
	}
	if err := s.save(ctx, c); err != nil {
		return Circle{}, err
	}
	return c, nil
}

// Join adds a user to the circle behind an invite code.
func (s *Service) Join(ctx context.Context, inviteCode, userID, displayName string) (Circle, error) {
	docs, err := s.store.Query(ctx, colCircles, store.Query{
		Filters: []store.Filter{{Field: "inviteCode", Op: store.OpEq, Value: inviteCode}},
		Limit:   1,
	})
	if err != nil {
		return Circle{}, err
	}
	if len(docs) == 0 {
		return Circle{}, ErrNotFound
	}
	var c Circle
	if err := store.Decode(docs[0], &c); err != nil {
		return Circle{}, err
	}
	if _, ok := c.member(userID); ok {
		return Circle{}, ErrAlreadyMember
	}
	c.Members = append(c.Members, Member{
		UserID:      userID,
		DisplayName: displayName,
		Contributed: decimal.Zero,
		JoinedAt:    s.clock.Now(),
	})
	if err := s.save(ctx, c); err != nil {
		return Circle{}, err
	}
	return c, nil
}

// Contribute records a member's payment into the circle, mirrors it into
// their personal ledger via the gamify engine, and re-ranks the leaderboard.
func (s *Service) Contribute(ctx context.Context, circleID, userID string, amount decimal.Decimal) (Circle, error) {
	if amount.IsNegative() || amount.IsZero() {
		return Circle{}, fmt.Errorf("circle: contribution must be positive, got %s", amount)
	}
	c, err := s.Get(ctx, circleID)
	if err != nil {
		return Circle{}, err
	}
	i, ok := c.member(userID)
	if !ok {
		return Circle{}, ErrNotMember
	}
	c.Members[i].Contributed = c.Members[i].Contributed.Add(amount)
	if err := s.save(ctx, c); err != nil {
		return Circle{}, err
	}

	if _, err := s.engine.RecordTransaction(ctx, ledger.TransactionRecord{
		UserID:   userID,
		Flow:     ledger.FlowIncome,
		Category: ledger.CategorySavings,
		Amount:   amount,
		Note:     "Circle contribution: " + c.Name,
	}); err != nil {
		return c, err
	}

	total, _ := c.Members[i].Contributed.Float64()
	if err := s.leaderboard.SetScore(ctx, circleID, userID, total); err != nil {
		return c, err
	}

	act := Activity{
		ID:        uuid.NewString(),
		CircleID:  circleID,
		UserID:    userID,
		Display:   c.Members[i].DisplayName,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}
	doc, err := store.Encode(act)
	if err != nil {
		return c, err
	}
	if err := s.store.Upsert(ctx, colActivity, act.ID, doc); err != nil {
		return c, err
	}
	if s.events != nil {
		_ = s.events.RecordEvent(telemetry.EventCircleContribution, s.clock.Now(), telemetry.EventMetadata{
			"circle_id": circleID, "user_id": userID,
		})
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, circleID string) (Circle, error) {
	doc, err := s.store.Get(ctx, colCircles, circleID)
	if errors.Is(err, store.ErrNotFound) {
		return Circle{}, ErrNotFound
	}
	if err != nil {
		return Circle{}, err
	}
	var c Circle
	if err := store.Decode(doc, &c); err != nil {
		return Circle{}, err
	}
	return c, nil
}

// ListForUser returns the circles the user belongs to. Membership lives
// inside the circle document, so this is a scan-and-filter.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Circle, error) {
	docs, err := s.store.Query(ctx, colCircles, store.Query{OrderBy: "createdAt"})
	if err != nil {
		return nil, err
	}
	out := make([]Circle, 0)
	for _, doc := range docs {
		var c Circle
		if err := store.Decode(doc, &c); err != nil {
			return nil, err
		}
		if _, ok := c.member(userID); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Top returns the circle's leaderboard, best saver first.
func (s *Service) Top(ctx context.Context, circleID string, n int) ([]Rank, error) {
	return s.leaderboard.Top(ctx, circleID, n)
}

// RecentActivity returns the newest feed entries for a circle.
func (s *Service) RecentActivity(ctx context.Context, circleID string, limit int) ([]Activity, error) {
	docs, err := s.store.Query(ctx, colActivity, store.Query{
		Filters:    []store.Filter{{Field: "circleId", Op: store.OpEq, Value: circleID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(docs))
	for _, doc := range docs {
		var a Activity
		if err := store.Decode(doc, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, c Circle) error {
	doc, err := store.Encode(c)
	if err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, colCircles, c.ID, doc); err != nil {
		return fmt.Errorf("save circle: %w", err)
	}
	return nil
}

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func inviteCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
