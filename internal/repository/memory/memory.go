// Package memory is a process-local store, used when no database is configured
// and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"firewatch/internal/model"
	"firewatch/internal/repository"
)

type CameraRepository struct {
	mu      sync.RWMutex
	cameras map[string]model.Camera
}

func NewCameraRepository() *CameraRepository {
	return &CameraRepository{cameras: make(map[string]model.Camera)}
}

func (r *CameraRepository) Upsert(_ context.Context, cam *model.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras[cam.ID] = *cam
	return nil
}

func (r *CameraRepository) FindOne(_ context.Context, id string) (*model.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cam, ok := r.cameras[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cam, nil
}

func (r *CameraRepository) Find(_ context.Context, filter model.CameraFilter) ([]model.Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		if filter.Match(cam) {
			out = append(out, cam)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CameraRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cameras, id)
	return nil
}

type StatusRepository struct {
	mu       sync.RWMutex
	statuses map[string]model.CameraStatus
}

func NewStatusRepository() *StatusRepository {
	return &StatusRepository{statuses: make(map[string]model.CameraStatus)}
}

func (r *StatusRepository) Upsert(_ context.Context, status *model.CameraStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status.CameraID] = copyStatus(*status)
	return nil
}

func (r *StatusRepository) FindOne(_ context.Context, cameraID string) (*model.CameraStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[cameraID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyStatus(s)
	return &out, nil
}

func (r *StatusRepository) Find(_ context.Context, filter model.StatusFilter) ([]model.CameraStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.CameraStatus, 0, len(r.statuses))
	for _, s := range r.statuses {
		if filter.Match(s) {
			out = append(out, copyStatus(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out, nil
}

func (r *StatusRepository) Delete(_ context.Context, cameraID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.statuses, cameraID)
	return nil
}

// copyStatus detaches the pointer fields from the caller's copy.
func copyStatus(s model.CameraStatus) model.CameraStatus {
	if s.LastAlertAt != nil {
		at := *s.LastAlertAt
		s.LastAlertAt = &at
	}
	if s.Error != nil {
		msg := *s.Error
		s.Error = &msg
	}
	return s
}

// NewStore returns an in-memory repository.Store.
func NewStore() repository.Store {
	return repository.Store{
		Cameras:  NewCameraRepository(),
		Statuses: NewStatusRepository(),
		Close:    func() error { return nil },
	}
}
