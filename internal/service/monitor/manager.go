// Package monitor is the camera registry. Every registered camera runs its
// own acquisition and detection workers; the status sink and notification
// dispatcher are shared.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/model"
	"firewatch/internal/repository"
	"firewatch/internal/service/capture"
	"firewatch/internal/service/detect"
	"firewatch/internal/service/keylock"
	"firewatch/internal/service/notify"
	"firewatch/internal/service/status"
)

var (
	ErrInvalidCamera  = errors.New("invalid camera")
	ErrCameraNotFound = errors.New("camera not found")
	ErrCameraExists   = errors.New("camera with this locator already registered")
)

// RegisterRequest describes a new camera. Kind defaults to a user camera.
type RegisterRequest struct {
	Kind     model.CameraKind `json:"kind"`
	Name     string           `json:"name"`
	Locator  string           `json:"locator"`
	Location model.Location   `json:"location"`
	Owner    string           `json:"owner"`
	Contact  string           `json:"contact"`
}

// CameraUpdate changes the given fields of a camera; nil fields are kept.
type CameraUpdate struct {
	Name     *string         `json:"name"`
	Locator  *string         `json:"locator"`
	Location *model.Location `json:"location"`
	Contact  *string         `json:"contact"`
}

type Manager struct {
	cfg        *config.Config
	logger     *logger.Logger
	cameras    repository.CameraRepository
	sink       *status.Sink
	dispatcher *notify.Dispatcher
	archiver   detect.Archiver
	classifier detect.Classifier
	dialer     capture.Dialer
	metrics    *metrics.Metrics
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	locks  *keylock.Map

	mu        sync.RWMutex
	pipelines map[string]*pipeline
}

type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mg *Manager) { mg.metrics = m }
}

// WithDispatcher enables emergency notifications for fire results.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(mg *Manager) { mg.dispatcher = d }
}

// WithArchiver keeps the frames of fire detections.
func WithArchiver(a detect.Archiver) Option {
	return func(mg *Manager) { mg.archiver = a }
}

func NewManager(cfg *config.Config, logger *logger.Logger, cameras repository.CameraRepository, sink *status.Sink,
	classifier detect.Classifier, dialer capture.Dialer, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		cameras:    cameras,
		sink:       sink,
		classifier: classifier,
		dialer:     dialer,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		locks:      keylock.New(),
		pipelines:  make(map[string]*pipeline),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register validates and stores a camera, then starts monitoring it.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (model.Camera, error) {
	cam := model.Camera{
		Kind:     req.Kind,
		Name:     strings.TrimSpace(req.Name),
		Locator:  strings.TrimSpace(req.Locator),
		Location: req.Location,
		Owner:    req.Owner,
		Contact:  strings.TrimSpace(req.Contact),
	}
	if cam.Kind == "" {
		cam.Kind = model.KindUserCamera
	}
	if err := validate(cam); err != nil {
		return model.Camera{}, err
	}

	unlock := m.locks.Lock("locator:" + cam.Locator)
	defer unlock()

	existing, err := m.cameras.Find(ctx, model.CameraFilter{Locator: cam.Locator})
	if err != nil {
		return model.Camera{}, fmt.Errorf("failed to check locator: %w", err)
	}
	if len(existing) > 0 {
		return existing[0], ErrCameraExists
	}

	cam.ID = uuid.NewString()
	cam.CreatedAt = m.now().UTC()
	if err := m.cameras.Upsert(ctx, &cam); err != nil {
		return model.Camera{}, fmt.Errorf("failed to store camera: %w", err)
	}

	m.start(cam)
	m.logger.Info("Camera registered", "camera", cam.ID, "kind", string(cam.Kind), "name", cam.Name)
	return cam, nil
}

func validate(cam model.Camera) error {
	if !cam.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCamera, cam.Kind)
	}
	if cam.Locator == "" {
		return fmt.Errorf("%w: locator is required", ErrInvalidCamera)
	}
	if cam.Kind == model.KindParkService {
		u, err := url.Parse(cam.Locator)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: park camera locator must be an http(s) URL", ErrInvalidCamera)
		}
	}
	if err := cam.Location.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCamera, err)
	}
	return nil
}

// Deregister stops a camera's workers and removes it with its status.
func (m *Manager) Deregister(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	if _, err := m.cameras.FindOne(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCameraNotFound
		}
		return err
	}

	m.stop(id)

	if err := m.cameras.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	if err := m.sink.Remove(ctx, id); err != nil {
		m.logger.Warning("Failed to delete camera status", "camera", id, "error", err)
	}
	if m.dispatcher != nil {
		m.dispatcher.Forget(id)
	}
	m.metrics.Forget(id)

	m.logger.Info("Camera deregistered", "camera", id)
	return nil
}

// UpdateCamera applies upd and restarts the camera's pipeline, which
// resets its alert state.
func (m *Manager) UpdateCamera(ctx context.Context, id string, upd CameraUpdate) (model.Camera, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	current, err := m.cameras.FindOne(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Camera{}, ErrCameraNotFound
		}
		return model.Camera{}, err
	}

	cam := *current
	if upd.Name != nil {
		cam.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Locator != nil {
		cam.Locator = strings.TrimSpace(*upd.Locator)
	}
	if upd.Location != nil {
		cam.Location = *upd.Location
	}
	if upd.Contact != nil {
		cam.Contact = strings.TrimSpace(*upd.Contact)
	}
	if err := validate(cam); err != nil {
		return model.Camera{}, err
	}
	if cam.Locator != current.Locator {
		unlockLocator := m.locks.Lock("locator:" + cam.Locator)
		defer unlockLocator()
		existing, err := m.cameras.Find(ctx, model.CameraFilter{Locator: cam.Locator})
		if err != nil {
			return model.Camera{}, fmt.Errorf("failed to check locator: %w", err)
		}
		if len(existing) > 0 {
			return existing[0], ErrCameraExists
		}
	}

	if err := m.cameras.Upsert(ctx, &cam); err != nil {
		return model.Camera{}, fmt.Errorf("failed to store camera: %w", err)
	}

	m.stop(id)
	m.start(cam)
	m.logger.Info("Camera updated", "camera", id)
	return cam, nil
}

// GetCamera returns a registered camera.
func (m *Manager) GetCamera(ctx context.Context, id string) (model.Camera, error) {
	cam, err := m.cameras.FindOne(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Camera{}, ErrCameraNotFound
	}
	if err != nil {
		return model.Camera{}, err
	}
	return *cam, nil
}

func (m *Manager) ListCameras(ctx context.Context, filter model.CameraFilter) ([]model.Camera, error) {
	return m.cameras.Find(ctx, filter)
}

// GetStatus returns the status of a camera. A camera that has not been
// checked yet has a status with a zero LastChecked.
func (m *Manager) GetStatus(ctx context.Context, id string) (model.CameraStatus, error) {
	if !m.running(id) {
		return model.CameraStatus{}, ErrCameraNotFound
	}
	st, err := m.sink.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.CameraStatus{CameraID: id}, nil
	}
	if err != nil {
		return model.CameraStatus{}, err
	}
	return *st, nil
}

func (m *Manager) ListStatuses(ctx context.Context, filter model.StatusFilter) ([]model.CameraStatus, error) {
	return m.sink.List(ctx, filter)
}

// TriggerCheckNow makes the camera's next detection cycle classify even
// inside the recheck window.
func (m *Manager) TriggerCheckNow(id string) error {
	m.mu.RLock()
	p, ok := m.pipelines[id]
	m.mu.RUnlock()
	if !ok {
		return ErrCameraNotFound
	}
	p.scheduler.TriggerCheck()
	m.logger.Info("Manual check requested", "camera", id)
	return nil
}

// CurrentFrame returns the latest captured frame of a camera.
func (m *Manager) CurrentFrame(id string) (model.Frame, bool, error) {
	m.mu.RLock()
	p, ok := m.pipelines[id]
	m.mu.RUnlock()
	if !ok {
		return model.Frame{}, false, ErrCameraNotFound
	}
	frame, has := p.source.CurrentFrame()
	return frame, has, nil
}

// Snapshot returns an event for every camera currently on fire.
func (m *Manager) Snapshot(ctx context.Context) ([]model.StatusEvent, error) {
	fire := true
	statuses, err := m.sink.List(ctx, model.StatusFilter{FireDetected: &fire})
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]model.StatusEvent, 0, len(statuses))
	for _, st := range statuses {
		p, ok := m.pipelines[st.CameraID]
		if !ok {
			continue
		}
		events = append(events, model.NewStatusEvent(st, p.camera.Location))
	}
	return events, nil
}

// Restore starts every stored camera and seeds the configured default
// camera when no camera uses its locator.
func (m *Manager) Restore(ctx context.Context) error {
	cams, err := m.cameras.Find(ctx, model.CameraFilter{})
	if err != nil {
		return fmt.Errorf("failed to load cameras: %w", err)
	}
	for _, cam := range cams {
		if m.running(cam.ID) {
			continue
		}
		if err := validate(cam); err != nil {
			m.logger.Warning("Skipping invalid stored camera", "camera", cam.ID, "error", err)
			continue
		}
		m.start(cam)
	}
	m.logger.Info("Cameras restored", "count", len(cams))

	if m.cfg.DefaultCameraURL == "" {
		return nil
	}
	_, err = m.Register(ctx, RegisterRequest{
		Kind:     model.KindUserCamera,
		Name:     m.cfg.DefaultCameraName,
		Locator:  m.cfg.DefaultCameraURL,
		Location: model.Location{Lat: m.cfg.DefaultCameraLat, Lon: m.cfg.DefaultCameraLon},
	})
	if errors.Is(err, ErrCameraExists) {
		return nil
	}
	return err
}

// Running returns the ids of cameras with active pipelines.
func (m *Manager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pipelines))
	for id := range m.pipelines {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) running(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pipelines[id]
	return ok
}

// Stop terminates every pipeline and waits for the workers to exit.
func (m *Manager) Stop() {
	m.cancel()

	m.mu.Lock()
	pipelines := m.pipelines
	m.pipelines = make(map[string]*pipeline)
	m.mu.Unlock()

	for _, p := range pipelines {
		p.wait()
	}
	m.logger.Info("All cameras stopped", "count", len(pipelines))
}
