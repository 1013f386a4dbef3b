// Package detect runs the per-camera detection loop: rate cap, debounce via
// the alert state machine, classify, then hand the result to the status sink.
package detect

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/model"
	"firewatch/internal/service/alert"
	"firewatch/internal/service/framebuf"
	"firewatch/internal/service/notify"
	"firewatch/internal/service/status"
)

// Classifier scores one frame. It may be slow and may fail.
type Classifier interface {
	Classify(ctx context.Context, frame model.Frame) (model.Prediction, error)
}

// StatusUpdater persists a result and returns the applied status.
type StatusUpdater interface {
	Update(ctx context.Context, cam model.Camera, res model.DetectionResult) (model.CameraStatus, error)
}

// Archiver keeps the frame of a fire detection.
type Archiver interface {
	Archive(cameraID string, frame model.Frame, res model.DetectionResult)
}

// Notifier accepts notification requests without blocking.
type Notifier interface {
	Submit(req notify.Request) bool
}

// FrameProvider exposes the latest captured frame, used by forced checks
// when the buffer is empty.
type FrameProvider interface {
	CurrentFrame() (model.Frame, bool)
}

type Scheduler struct {
	logger     *logger.Logger
	camera     model.Camera
	buffer     *framebuf.Buffer
	frames     FrameProvider
	machine    *alert.Machine
	classifier Classifier
	sink       StatusUpdater
	notifier   Notifier
	archiver   Archiver
	metrics    *metrics.Metrics
	interval   time.Duration
	now        func() time.Time
	force      chan struct{}
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithFrameProvider sets the fallback frame source for forced checks.
func WithFrameProvider(p FrameProvider) Option {
	return func(s *Scheduler) { s.frames = p }
}

// WithNotifier enables the notification path. Without it, fire results
// only update the status.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithArchiver stores the frames classified as fire.
func WithArchiver(a Archiver) Option {
	return func(s *Scheduler) { s.archiver = a }
}

// New creates a scheduler for one camera. interval is the minimum time
// between two detection cycles.
func New(logger *logger.Logger, camera model.Camera, buffer *framebuf.Buffer, machine *alert.Machine,
	classifier Classifier, sink StatusUpdater, interval time.Duration, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	s := &Scheduler{
		logger:     logger,
		camera:     camera,
		buffer:     buffer,
		machine:    machine,
		classifier: classifier,
		sink:       sink,
		interval:   interval,
		now:        time.Now,
		force:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TriggerCheck makes the next cycle classify regardless of the recheck
// window. Repeated triggers before that cycle collapse into one.
func (s *Scheduler) TriggerCheck() {
	select {
	case s.force <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(s.interval), 1)
	s.logger.Info("Detection started", "camera", s.camera.ID, "interval", s.interval)

	for {
		if err := limiter.Wait(ctx); err != nil {
			s.logger.Info("Detection stopped", "camera", s.camera.ID)
			return nil
		}
		forced := false
		select {
		case <-s.force:
			forced = true
		default:
		}
		s.Cycle(ctx, forced)
	}
}

// Cycle runs one detection step and reports whether the classifier was called.
func (s *Scheduler) Cycle(ctx context.Context, forced bool) bool {
	frame, ok := s.buffer.Take()
	if !ok && forced && s.frames != nil {
		frame, ok = s.frames.CurrentFrame()
	}
	if !ok {
		if forced {
			// Keep the request until a frame arrives.
			s.TriggerCheck()
		}
		return false
	}

	if !forced && !s.machine.ShouldCheck() {
		return false
	}

	start := s.now()
	pred, err := s.classifier.Classify(ctx, frame)
	took := s.now().Sub(start)

	if ctx.Err() != nil {
		// Camera stopped while classifying; the result belongs to no session.
		return true
	}

	var res model.DetectionResult
	if err != nil {
		s.logger.Warning("Classifier failed", "camera", s.camera.ID, "error", err)
		s.metrics.Detection(s.camera.ID, "error", took)
		res = model.FailedDetection(s.now(), err)
	} else {
		result := "clear"
		if pred.IsFire {
			result = "fire"
		}
		s.metrics.Detection(s.camera.ID, result, took)
		res = model.DetectionResult{
			IsFire:     pred.IsFire,
			Confidence: model.ClampConfidence(pred.Confidence),
			Timestamp:  s.now(),
		}
	}

	if res.IsFire && s.archiver != nil {
		s.archiver.Archive(s.camera.ID, frame, res)
	}
	s.Evaluate(ctx, res)
	return true
}

// Evaluate feeds a result through the status sink, the state machine and,
// for fire, the notifier. The machine only sees results the sink accepted.
func (s *Scheduler) Evaluate(ctx context.Context, res model.DetectionResult) {
	st, err := s.sink.Update(ctx, s.camera, res)
	if errors.Is(err, status.ErrStale) {
		s.logger.Warning("Dropped stale result", "camera", s.camera.ID, "checked", res.Timestamp)
		return
	}
	if err != nil {
		s.logger.Error("Failed to update status", "camera", s.camera.ID, "error", err)
		return
	}

	tr := s.machine.Observe(res)
	if tr.Changed() {
		s.logger.Info("Alert state changed", "camera", s.camera.ID, "from", tr.From.String(), "to", tr.To.String())
	}

	if tr.Alert && st.FireDetected && s.notifier != nil {
		s.notifier.Submit(notify.Request{Camera: s.camera, Status: st})
	}
}
