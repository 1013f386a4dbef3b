package capture

import (
	"context"
	"sync"
	"time"

	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/model"
	"firewatch/internal/service/framebuf"
)

// Source owns one camera's acquisition loop. Failures to open or read are
// retried after a fixed delay until the context is cancelled.
type Source struct {
	logger  *logger.Logger
	camera  model.Camera
	dialer  Dialer
	buffer  *framebuf.Buffer
	metrics *metrics.Metrics
	skip    int
	delay   time.Duration

	mu      sync.RWMutex
	current model.Frame
	has     bool
	seq     uint64
}

type Option func(*Source)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Source) { s.metrics = m }
}

// WithSkip offers every nth frame to the buffer.
func WithSkip(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.skip = n
		}
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.delay = d
		}
	}
}

func NewSource(logger *logger.Logger, camera model.Camera, dialer Dialer, buffer *framebuf.Buffer, opts ...Option) *Source {
	s := &Source{
		logger: logger,
		camera: camera,
		dialer: dialer,
		buffer: buffer,
		skip:   2,
		delay:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run acquires frames until ctx is done. It never returns an error.
func (s *Source) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		g, err := s.dialer.Open(ctx, s.camera)
		if err != nil {
			s.logger.Warning("Camera unavailable, retrying", "camera", s.camera.ID, "error", err, "retry_in", s.delay)
			s.metrics.SourceReconnect(s.camera.ID)
			if !sleep(ctx, s.delay) {
				return nil
			}
			continue
		}

		s.logger.Info("Camera connected", "camera", s.camera.ID, "kind", string(s.camera.Kind))
		err = s.readLoop(ctx, g)
		g.Close()

		if ctx.Err() != nil {
			s.logger.Info("Camera stopped", "camera", s.camera.ID)
			return nil
		}
		s.logger.Warning("Camera read failed, reconnecting", "camera", s.camera.ID, "error", err, "retry_in", s.delay)
		s.metrics.SourceReconnect(s.camera.ID)
		if !sleep(ctx, s.delay) {
			return nil
		}
	}
}

func (s *Source) readLoop(ctx context.Context, g Grabber) error {
	var count int
	for {
		data, err := g.Grab(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame := s.store(data)
		s.metrics.FrameCaptured(s.camera.ID)

		count++
		if count%s.skip != 0 {
			continue
		}
		count = 0
		if s.buffer.Offer(frame) {
			s.metrics.FrameDropped(s.camera.ID)
		}
	}
}

func (s *Source) store(data []byte) model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.current = model.Frame{Data: data, CapturedAt: time.Now(), Seq: s.seq}
	s.has = true
	return s.current
}

// CurrentFrame returns a copy of the latest frame, if any.
func (s *Source) CurrentFrame() (model.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.has {
		return model.Frame{}, false
	}
	return s.current.Clone(), true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
