package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore() (*Redis, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	return NewRedis(db), mock
}

func TestRedis_SaveScore(t *testing.T) {
	s, mock := setupRedisStore()
	ctx := context.Background()

	mock.ExpectZAddGT(leaderboardKey, redis.Z{Score: 40, Member: "alice"}).SetVal(1)
	mock.ExpectLPush(historyKeyPrefix+"alice", 40).SetVal(1)
	mock.ExpectLTrim(historyKeyPrefix+"alice", 0, historySize-1).SetVal("OK")

	require.NoError(t, s.SaveScore(ctx, "alice", 40))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SaveScoreStopsOnError(t *testing.T) {
	s, mock := setupRedisStore()
	ctx := context.Background()

	mock.ExpectZAddGT(leaderboardKey, redis.Z{Score: 7, Member: "bob"}).SetErr(errors.New("connection refused"))

	err := s.SaveScore(ctx, "bob", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_QueryLeaderboard(t *testing.T) {
	s, mock := setupRedisStore()
	ctx := context.Background()

	mock.ExpectZRevRangeWithScores(leaderboardKey, 0, 2).SetVal([]redis.Z{
		{Score: 90, Member: "carol"},
		{Score: 55, Member: "alice"},
	})

	rows, err := s.QueryLeaderboard(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []Score{{PlayerID: "carol", Score: 90}, {PlayerID: "alice", Score: 55}}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_QueryLeaderboardZeroLimit(t *testing.T) {
	s, mock := setupRedisStore()

	rows, err := s.QueryLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_SaveMatchResult(t *testing.T) {
	s, mock := setupRedisStore()
	ctx := context.Background()

	result := MatchResult{
		ID:      "m-1",
		RoomID:  "r-1",
		EndedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Reason:  "time's up",
		Rankings: []Placement{
			{Rank: 1, PlayerID: "alice", Score: 30},
			{Rank: 2, PlayerID: "bob", Score: 10},
		},
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectSet(matchKeyPrefix+"m-1", string(data), matchTTL).SetVal("OK")
	mock.ExpectLPush(playerMatchPrefix+"alice", "m-1").SetVal(1)
	mock.ExpectLTrim(playerMatchPrefix+"alice", 0, historySize-1).SetVal("OK")
	mock.ExpectLPush(playerMatchPrefix+"bob", "m-1").SetVal(1)
	mock.ExpectLTrim(playerMatchPrefix+"bob", 0, historySize-1).SetVal("OK")

	require.NoError(t, s.SaveMatchResult(ctx, result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, HealthCheck(db))

	mock.ExpectPing().SetErr(errors.New("down"))
	assert.Error(t, HealthCheck(db))
}
