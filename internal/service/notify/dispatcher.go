package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/model"
	"firewatch/internal/service/keylock"
)

var (
	// ErrProviderFailed wraps an error returned by the call provider.
	ErrProviderFailed = errors.New("notification provider failed")
	// ErrNotConfigured means there is no destination to call.
	ErrNotConfigured = errors.New("no notification destination configured")
)

// Call is one emergency call request.
type Call struct {
	Destination string
	Label       string
	Lat         float64
	Lon         float64
}

// Provider places the external call. A nil error means the call was accepted.
type Provider interface {
	PlaceCall(ctx context.Context, call Call) error
}

// Request is queued by Submit and handled by Run.
type Request struct {
	Camera model.Camera
	Status model.CameraStatus

	gen uint64
}

// Dispatcher gates emergency calls per camera: at most one successful call
// per cooldown, lastNotifiedAt recorded only after success, no retries.
type Dispatcher struct {
	logger      *logger.Logger
	provider    Provider
	metrics     *metrics.Metrics
	cooldown    time.Duration
	destination string
	now         func() time.Time
	locks       *keylock.Map
	queue       chan Request

	mu           sync.Mutex
	lastNotified map[string]time.Time
	inFlight     map[string]bool
	// gens is bumped by Forget; work started under an older value is void.
	gens map[string]uint64
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Request, n)
		}
	}
}

// NewDispatcher creates a dispatcher. destination is used for cameras
// without their own contact number.
func NewDispatcher(logger *logger.Logger, provider Provider, cooldown time.Duration, destination string, opts ...Option) *Dispatcher {
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	d := &Dispatcher{
		logger:       logger,
		provider:     provider,
		cooldown:     cooldown,
		destination:  destination,
		now:          time.Now,
		locks:        keylock.New(),
		queue:        make(chan Request, 64),
		lastNotified: make(map[string]time.Time),
		inFlight:     make(map[string]bool),
		gens:         make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaybeNotify places a call for cam if status is on fire and the cooldown
// since the last successful call has elapsed. It reports whether a call was placed.
func (d *Dispatcher) MaybeNotify(ctx context.Context, cam model.Camera, status model.CameraStatus) (bool, error) {
	return d.notify(ctx, cam, status, d.generation(cam.ID))
}

func (d *Dispatcher) notify(ctx context.Context, cam model.Camera, status model.CameraStatus, gen uint64) (bool, error) {
	if !status.FireDetected {
		return false, nil
	}

	unlock := d.locks.Lock(cam.ID)
	defer unlock()

	if d.generation(cam.ID) != gen {
		d.logger.Info("Dropped notification for removed camera", "camera", cam.ID)
		return false, nil
	}

	if last, ok := d.LastNotified(cam.ID); ok && d.now().Sub(last) < d.cooldown {
		d.metrics.Notification("suppressed")
		return false, nil
	}

	dest := cam.Contact
	if dest == "" {
		dest = d.destination
	}
	if dest == "" {
		d.metrics.Notification("failed")
		return false, ErrNotConfigured
	}

	call := Call{Destination: dest, Label: cam.Label(), Lat: cam.Location.Lat, Lon: cam.Location.Lon}
	if err := d.provider.PlaceCall(ctx, call); err != nil {
		d.metrics.Notification("failed")
		return false, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	d.mu.Lock()
	if d.gens[cam.ID] == gen {
		d.lastNotified[cam.ID] = d.now()
	}
	d.mu.Unlock()

	d.metrics.Notification("sent")
	d.logger.Info("Emergency call placed", "camera", cam.ID, "label", call.Label)
	return true, nil
}

// Submit queues a request without blocking. A camera with a request already
// queued or running is not queued again.
func (d *Dispatcher) Submit(req Request) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inFlight[req.Camera.ID] {
		return false
	}

	req.gen = d.gens[req.Camera.ID]
	select {
	case d.queue <- req:
		d.inFlight[req.Camera.ID] = true
		return true
	default:
		d.metrics.Notification("dropped")
		d.logger.Warning("Notification queue full", "camera", req.Camera.ID)
		return false
	}
}

// Run handles queued requests until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.queue:
			if _, err := d.notify(ctx, req.Camera, req.Status, req.gen); err != nil {
				d.logger.Error("Emergency notification failed", "camera", req.Camera.ID, "error", err)
			}
			d.mu.Lock()
			if d.gens[req.Camera.ID] == req.gen {
				delete(d.inFlight, req.Camera.ID)
			}
			d.mu.Unlock()
		}
	}
}

// LastNotified returns the time of the last successful call for a camera.
func (d *Dispatcher) LastNotified(cameraID string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.lastNotified[cameraID]
	return at, ok
}

func (d *Dispatcher) generation(cameraID string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gens[cameraID]
}

// Forget drops the record of a deregistered camera. Requests already
// queued for it are discarded and a call in progress is not recorded.
func (d *Dispatcher) Forget(cameraID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastNotified, cameraID)
	delete(d.inFlight, cameraID)
	d.gens[cameraID]++
}
