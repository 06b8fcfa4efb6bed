package circle

import (
	"context"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Rank is one leaderboard row.
type Rank struct {
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
}

// Leaderboard ranks circle members by total contribution.
type Leaderboard interface {
	SetScore(ctx context.Context, circleID, userID string, score float64) error
	Top(ctx context.Context, circleID string, n int) ([]Rank, error)
}

// RedisLeaderboard keeps one sorted set per circle.
type RedisLeaderboard struct {
	client *redis.Client
}

func NewRedisLeaderboard(client *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{client: client}
}

func leaderboardKey(circleID string) string {
	return "savequest:circle:" + circleID + ":leaderboard"
}

func (l *RedisLeaderboard) SetScore(ctx context.Context, circleID, userID string, score float64) error {
	return l.client.ZAdd(ctx, leaderboardKey(circleID), redis.Z{
		Score:  score,
		Member: userID,
	}).Err()
}

func (l *RedisLeaderboard) Top(ctx context.Context, circleID string, n int) ([]Rank, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey(circleID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Rank, 0, len(rows))
	for _, row := range rows {
		member, _ := row.Member.(string)
		out = append(out, Rank{UserID: member, Score: row.Score})
	}
	return out, nil
}

// MemoryLeaderboard is the fallback when no redis address is configured,
// and the test double.
type MemoryLeaderboard struct {
	mu     sync.RWMutex
	scores map[string]map[string]float64
}

func NewMemoryLeaderboard() *MemoryLeaderboard {
	return &MemoryLeaderboard{scores: map[string]map[string]float64{}}
}

func (l *MemoryLeaderboard) SetScore(ctx context.Context, circleID, userID string, score float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	board, ok := l.scores[circleID]
	if !ok {
		board = map[string]float64{}
		l.scores[circleID] = board
	}
	board[userID] = score
	return nil
}

func (l *MemoryLeaderboard) Top(ctx context.Context, circleID string, n int) ([]Rank, error) {
	if n <= 0 {
		n = 10
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Rank, 0, len(l.scores[circleID]))
	for userID, score := range l.scores[circleID] {
		out = append(out, Rank{UserID: userID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
