package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/model"
	"firewatch/internal/repository"
	"firewatch/internal/service/keylock"
)

// maxConcurrentSends bounds the goroutines one Broadcast starts.
const maxConcurrentSends = 64

// ErrStale is returned by Update when the result is older than the stored status.
var ErrStale = errors.New("stale status update")

// Subscriber receives status events. A Send error drops the subscriber.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, ev model.StatusEvent) error
	Close() error
}

// Sink owns the persisted CameraStatus records and the subscriber set.
type Sink struct {
	logger   *logger.Logger
	statuses repository.StatusRepository
	events   repository.EventRepository
	metrics  *metrics.Metrics
	timeout  time.Duration
	locks    *keylock.Map

	subMu sync.RWMutex
	subs  map[string]Subscriber
}

type Option func(*Sink)

// WithEvents records every applied update as detection history.
func WithEvents(events repository.EventRepository) Option {
	return func(s *Sink) { s.events = events }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sink) { s.metrics = m }
}

// WithSendTimeout bounds each subscriber send.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewSink(logger *logger.Logger, statuses repository.StatusRepository, opts ...Option) *Sink {
	s := &Sink{
		logger:   logger,
		statuses: statuses,
		timeout:  2 * time.Second,
		locks:    keylock.New(),
		subs:     make(map[string]Subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update applies res to the status of cam and broadcasts the result if it
// changed. Results older than the stored lastChecked return ErrStale along
// with the stored status.
func (s *Sink) Update(ctx context.Context, cam model.Camera, res model.DetectionResult) (model.CameraStatus, error) {
	unlock := s.locks.Lock(cam.ID)
	defer unlock()

	prev, err := s.statuses.FindOne(ctx, cam.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.CameraStatus{}, fmt.Errorf("failed to load status of %s: %w", cam.ID, err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		prev = nil
	}

	if prev != nil && res.Timestamp.Before(prev.LastChecked) {
		s.metrics.StatusUpdate("stale")
		return *prev, ErrStale
	}

	next := nextStatus(cam.ID, prev, res)
	if err := s.statuses.Upsert(ctx, &next); err != nil {
		return model.CameraStatus{}, fmt.Errorf("failed to store status of %s: %w", cam.ID, err)
	}
	s.metrics.StatusUpdate("applied")

	if s.events != nil {
		ev := model.DetectionEvent{
			CameraID:     next.CameraID,
			CheckedAt:    next.LastChecked,
			FireDetected: next.FireDetected,
			Confidence:   next.Confidence,
			Error:        res.Err,
		}
		if err := s.events.Insert(ctx, ev); err != nil {
			s.logger.Warning("Failed to record detection event", "camera", cam.ID, "error", err)
		}
	}

	if changed(prev, next) {
		s.metrics.StatusUpdate("broadcast")
		s.Broadcast(ctx, model.NewStatusEvent(next, cam.Location))
	}
	return next, nil
}

func nextStatus(cameraID string, prev *model.CameraStatus, res model.DetectionResult) model.CameraStatus {
	next := model.CameraStatus{
		CameraID:     cameraID,
		LastChecked:  res.Timestamp,
		FireDetected: res.IsFire,
		Confidence:   model.ClampConfidence(res.Confidence),
	}
	if res.Err != "" {
		msg := res.Err
		next.Error = &msg
	}
	if prev != nil && prev.LastAlertAt != nil {
		at := *prev.LastAlertAt
		next.LastAlertAt = &at
	}
	// lastAlertAt marks entry into Alerting, not every fire check.
	if res.IsFire && (prev == nil || !prev.FireDetected) {
		at := res.Timestamp
		next.LastAlertAt = &at
	}
	return next
}

func changed(prev *model.CameraStatus, next model.CameraStatus) bool {
	if prev == nil {
		return true
	}
	if prev.FireDetected != next.FireDetected {
		return true
	}
	return errText(prev.Error) != errText(next.Error)
}

func errText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Get returns the stored status of a camera.
func (s *Sink) Get(ctx context.Context, cameraID string) (*model.CameraStatus, error) {
	return s.statuses.FindOne(ctx, cameraID)
}

func (s *Sink) List(ctx context.Context, filter model.StatusFilter) ([]model.CameraStatus, error) {
	return s.statuses.Find(ctx, filter)
}

// Remove deletes the status of a deregistered camera.
func (s *Sink) Remove(ctx context.Context, cameraID string) error {
	unlock := s.locks.Lock(cameraID)
	defer unlock()
	return s.statuses.Delete(ctx, cameraID)
}

// Subscribe adds sub to the broadcast set, replacing any subscriber with the same id.
func (s *Sink) Subscribe(sub Subscriber) {
	s.subMu.Lock()
	old, replaced := s.subs[sub.ID()]
	s.subs[sub.ID()] = sub
	s.subMu.Unlock()

	if replaced {
		old.Close()
	} else {
		s.metrics.SubscriberAdded()
	}
	s.logger.Info("Subscriber added", "subscriber", sub.ID())
}

// Unsubscribe removes and closes the subscriber with the given id.
func (s *Sink) Unsubscribe(id string) {
	s.subMu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	s.subMu.Unlock()

	if ok {
		s.metrics.SubscriberRemoved()
		sub.Close()
		s.logger.Info("Subscriber removed", "subscriber", id)
	}
}

func (s *Sink) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// Broadcast sends ev to every subscriber in parallel and waits for all of
// them, each bounded by the send timeout. Failed subscribers are dropped.
func (s *Sink) Broadcast(ctx context.Context, ev model.StatusEvent) {
	s.subMu.RLock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.RUnlock()

	if len(subs) == 0 {
		return
	}

	// A camera being stopped must not make healthy subscribers look failed.
	base := context.WithoutCancel(ctx)

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []Subscriber
	)
	g.SetLimit(maxConcurrentSends)
	for _, sub := range subs {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(base, s.timeout)
			defer cancel()

			// Failures are collected, not returned, so one slow viewer
			// never cuts the others short.
			if err := sendWithTimeout(sendCtx, sub, ev); err != nil {
				s.logger.Warning("Dropping subscriber", "subscriber", sub.ID(), "error", err)
				mu.Lock()
				failed = append(failed, sub)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, sub := range failed {
		s.drop(sub)
	}
}

// drop removes sub unless it has already been replaced under the same id.
func (s *Sink) drop(sub Subscriber) {
	s.subMu.Lock()
	current, ok := s.subs[sub.ID()]
	if ok && current == sub {
		delete(s.subs, sub.ID())
	}
	s.subMu.Unlock()

	if ok && current == sub {
		s.metrics.SubscriberRemoved()
		sub.Close()
	}
}

// sendWithTimeout returns when Send does or ctx expires, whichever is first,
// so a subscriber ignoring ctx still cannot stall the broadcast.
func sendWithTimeout(ctx context.Context, sub Subscriber, ev model.StatusEvent) error {
	done := make(chan error, 1)
	go func() { done <- sub.Send(ctx, ev) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send timed out: %w", ctx.Err())
	}
}

// Close closes every subscriber.
func (s *Sink) Close() {
	s.subMu.Lock()
	subs := s.subs
	s.subs = make(map[string]Subscriber)
	s.subMu.Unlock()

	for _, sub := range subs {
		s.metrics.SubscriberRemoved()
		sub.Close()
	}
}
