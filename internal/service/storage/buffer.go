// Package storage keeps JPEG evidence of fire detections on disk.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"firewatch/internal/logger"
	"firewatch/internal/model"
)

const (
	// DefaultBufferLimit limits how many snapshots per camera are buffered between flushes.
	DefaultBufferLimit = 10
	// DefaultFlushInterval defines how often buffered snapshots are written to disk.
	DefaultFlushInterval = 30 * time.Second

	timestampLayout = "2006-01-02_15-04-05.000"
)

type snapshot struct {
	cameraID   string
	data       []byte
	confidence float64
	at         time.Time
}

// BufferService buffers fire snapshots in memory and periodically flushes them to disk.
type BufferService struct {
	dir         string
	limit       int
	logger      *logger.Logger
	mu          sync.Mutex
	images      []snapshot
	bufferCount map[string]int
}

// NewBufferService creates a BufferService writing to dir.
func NewBufferService(dir string, limit int, logger *logger.Logger) *BufferService {
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	return &BufferService{
		dir:         dir,
		limit:       limit,
		logger:      logger,
		bufferCount: make(map[string]int),
	}
}

// Archive buffers the frame of a fire detection. Frames beyond the
// per-camera limit are dropped until the next flush.
func (s *BufferService) Archive(cameraID string, frame model.Frame, res model.DetectionResult) {
	if frame.Empty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[cameraID] >= s.limit {
		return
	}
	s.images = append(s.images, snapshot{
		cameraID:   cameraID,
		data:       frame.Clone().Data,
		confidence: res.Confidence,
		at:         res.Timestamp,
	})
	s.bufferCount[cameraID]++
}

// Run flushes on every tick and once more when ctx is done.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return nil
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush writes buffered snapshots to disk and resets the buffer and
// per-camera counters. It returns the number of files written.
func (s *BufferService) Flush() int {
	s.mu.Lock()
	images := s.images
	s.images = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(images) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating snapshot directory", "dir", s.dir, "error", err)
		return 0
	}

	saved := 0
	for _, img := range images {
		path := filepath.Join(s.dir, Filename(img.cameraID, img.at, img.confidence))
		if err := os.WriteFile(path, img.data, 0644); err != nil {
			s.logger.Error("Error saving snapshot", "file", path, "error", err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed fire snapshots to disk", "count", saved)
	return saved
}

// Filename names a snapshot by time, camera and confidence percentage.
func Filename(cameraID string, at time.Time, confidence float64) string {
	return fmt.Sprintf("%s_%s_fire_%d.jpg", at.UTC().Format(timestampLayout), cameraID, int(confidence*100+0.5))
}
