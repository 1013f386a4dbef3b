// Package relay forwards status events to message brokers. Relays are
// status subscribers that never report failure, so the sink keeps them
// through broker outages; failures are logged instead.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"firewatch/internal/logger"
	"firewatch/internal/model"
)

const streamMaxLen = 10000

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, logger *logger.Logger, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis", "addr", addr, "db", db)
	return client, nil
}

// RedisRelay appends every event to a capped Redis stream.
type RedisRelay struct {
	logger *logger.Logger
	client *redis.Client
	stream string
}

func NewRedisRelay(logger *logger.Logger, client *redis.Client, stream string) *RedisRelay {
	return &RedisRelay{logger: logger, client: client, stream: stream}
}

func (r *RedisRelay) ID() string { return "redis:" + r.stream }

func (r *RedisRelay) Send(ctx context.Context, ev model.StatusEvent) error {
	values, err := streamValues(ev)
	if err != nil {
		r.logger.Error("Failed to encode status event", "error", err)
		return nil
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		r.logger.Warning("Failed to publish to Redis stream", "stream", r.stream, "camera", ev.Data.CameraID, "error", err)
	}
	return nil
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func streamValues(ev model.StatusEvent) (map[string]interface{}, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"type":          ev.Type,
		"camera_id":     ev.Data.CameraID,
		"fire_detected": ev.Data.FireDetected,
		"payload":       string(payload),
	}, nil
}
