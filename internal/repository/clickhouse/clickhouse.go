// Package clickhouse appends detection history for later analysis.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"firewatch/internal/model"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS fire_detections (
		camera_id String,
		checked_at DateTime64(3),
		fire_detected UInt8,
		confidence Float64,
		error String
	) ENGINE = MergeTree()
	ORDER BY (camera_id, checked_at)
`

type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// EventRepository implements repository.EventRepository.
type EventRepository struct {
	logger *slog.Logger
	conn   driver.Conn
}

func New(ctx context.Context, logger *slog.Logger, opts Options) (*EventRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Username: opts.Username,
			Password: opts.Password,
			Database: opts.Database,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed connect to clickhouse %s: %w", opts.Addr, err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed ping clickhouse %s: %w", opts.Addr, err)
	}

	if err := conn.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create fire_detections: %w", err)
	}

	logger.Info("Clickhouse connection established", "addr", opts.Addr)
	return &EventRepository{logger: logger, conn: conn}, nil
}

// Insert writes one detection row using async insert.
func (r *EventRepository) Insert(ctx context.Context, ev model.DetectionEvent) error {
	var fire uint8
	if ev.FireDetected {
		fire = 1
	}
	err := r.conn.AsyncInsert(ctx,
		`INSERT INTO fire_detections (camera_id, checked_at, fire_detected, confidence, error) VALUES (?, ?, ?, ?, ?)`,
		false, ev.CameraID, ev.CheckedAt, fire, ev.Confidence, ev.Error)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	return nil
}

func (r *EventRepository) Close() error {
	return r.conn.Close()
}
