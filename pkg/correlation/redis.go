package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis-backed tracker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// RecordTTL bounds how long a dispatch record is retained. Results that
	// arrive later than this can no longer be paired through the tracker.
	RecordTTL time.Duration
}

// RedisTracker is a Tracker backed by Redis, for deployments where the web
// handlers that dispatch tasks and the ones that serve result lookups run in
// separate processes.
type RedisTracker struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	ttl         time.Duration
}

// NewRedisTracker creates and connects a new RedisTracker. It pings the
// Redis server to ensure connectivity before returning.
func NewRedisTracker(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisTracker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisTracker{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisTracker").Logger(),
		ttl:         cfg.RecordTTL,
	}, nil
}

// Record stores the dispatch record under its correlation id with the
// configured TTL.
func (t *RedisTracker) Record(ctx context.Context, correlationID string, d Dispatch) error {
	jsonData, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch record: %w", err)
	}

	if err := t.redisClient.Set(ctx, trackerKey(correlationID), jsonData, t.ttl).Err(); err != nil {
		t.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to store dispatch record.")
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	t.logger.Debug().Str("correlation_id", correlationID).Msg("Stored dispatch record.")
	return nil
}

// Lookup retrieves the dispatch record for a correlation id.
func (t *RedisTracker) Lookup(ctx context.Context, correlationID string) (Dispatch, error) {
	data, err := t.redisClient.Get(ctx, trackerKey(correlationID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Dispatch{}, fmt.Errorf("correlation id '%s' not found", correlationID)
		}
		t.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Unexpected Redis error during lookup.")
		return Dispatch{}, err
	}

	var d Dispatch
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		t.logger.Error().Err(err).Str("correlation_id", correlationID).Msg("Failed to unmarshal dispatch record.")
		return Dispatch{}, fmt.Errorf("failed to unmarshal dispatch record: %w", err)
	}
	return d, nil
}

// Close closes the Redis client connection.
func (t *RedisTracker) Close() error {
	if t.redisClient != nil {
		t.logger.Info().Msg("Closing Redis client connection...")
		return t.redisClient.Close()
	}
	return nil
}

func trackerKey(correlationID string) string {
	return "dispatch:" + correlationID
}
