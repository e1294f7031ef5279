package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const DefaultKey = "bonusfinder:jobs:heavy"

type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		Addr:     strings.TrimSpace(envutil.String("REDIS_ADDR", "", log)),
		Password: envutil.String("REDIS_PASSWORD", "", nil),
		DB:       envutil.Int("REDIS_DB", 0),
		Key:      envutil.String("JOB_QUEUE_KEY", DefaultKey, log),
	}
}

// RedisQueue is a list-backed job id queue: producers LPUSH, the heavy worker
// BRPOPs, so ids are consumed oldest first.
type RedisQueue struct {
	rdb *redis.Client
	key string
	log *logger.Logger
}

// NewRedisQueue connects and pings. An empty Addr returns (nil, nil) so
// callers can run without a heavy queue.
func NewRedisQueue(cfg Config, baseLog *logger.Logger) (*RedisQueue, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	log := baseLog.With("component", "RedisQueue")
	log.Info("Connected to Redis", "addr", cfg.Addr, "key", cfg.Key)
	return &RedisQueue{rdb: rdb, key: cfg.Key, log: log}, nil
}

func (q *RedisQueue) Push(ctx context.Context, jobID uuid.UUID) error {
	if err := q.rdb.LPush(ctx, q.key, jobID.String()).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Pop blocks up to timeout for the next job id. ok is false on timeout.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (uuid.UUID, bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	// BRPOP answers [key, value].
	if len(res) != 2 {
		return uuid.Nil, false, fmt.Errorf("unexpected brpop reply %v", res)
	}
	id, err := uuid.Parse(res[1])
	if err != nil {
		q.log.Warn("Dropping malformed job id from queue", "value", res[1])
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
