package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey    = "orderup:leaderboard"
	historyKeyPrefix  = "orderup:history:"
	matchKeyPrefix    = "orderup:match:"
	playerMatchPrefix = "orderup:matches:"

	historySize = 50
	matchTTL    = 30 * 24 * time.Hour
)

// Redis keeps the leaderboard in a sorted set (best score per player), the
// recent score history in a capped list per player and match results as JSON
// strings indexed per player.
type Redis struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// NewRedisClient connects to url, which may be a redis:// URL or a bare host:port.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", url, err)
	}
	log.Printf("[Store] connected to redis at %s", opts.Addr)
	return client, nil
}

// HealthCheck pings the redis server.
func HealthCheck(client redis.Cmdable) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (r *Redis) SaveScore(ctx context.Context, playerID string, score int) error {
	if err := r.client.ZAddGT(ctx, leaderboardKey, redis.Z{Score: float64(score), Member: playerID}).Err(); err != nil {
		return fmt.Errorf("update leaderboard for %s: %w", playerID, err)
	}
	historyKey := historyKeyPrefix + playerID
	if err := r.client.LPush(ctx, historyKey, score).Err(); err != nil {
		return fmt.Errorf("append score history for %s: %w", playerID, err)
	}
	if err := r.client.LTrim(ctx, historyKey, 0, historySize-1).Err(); err != nil {
		return fmt.Errorf("trim score history for %s: %w", playerID, err)
	}
	return nil
}

func (r *Redis) QueryLeaderboard(ctx context.Context, limit int) ([]Score, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	out := make([]Score, 0, len(rows))
	for _, z := range rows {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Score{PlayerID: member, Score: int(z.Score)})
	}
	return out, nil
}

func (r *Redis) SaveMatchResult(ctx context.Context, result MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", result.ID, err)
	}
	if err := r.client.Set(ctx, matchKeyPrefix+result.ID, string(data), matchTTL).Err(); err != nil {
		return fmt.Errorf("write match %s: %w", result.ID, err)
	}
	for _, p := range result.Rankings {
		key := playerMatchPrefix + p.PlayerID
		if err := r.client.LPush(ctx, key, result.ID).Err(); err != nil {
			return fmt.Errorf("index match %s for %s: %w", result.ID, p.PlayerID, err)
		}
		if err := r.client.LTrim(ctx, key, 0, historySize-1).Err(); err != nil {
			return fmt.Errorf("trim match index for %s: %w", p.PlayerID, err)
		}
	}
	return nil
}
