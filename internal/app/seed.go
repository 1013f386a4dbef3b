package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"firewatch/internal/config"
	"firewatch/internal/model"
	"firewatch/internal/repository"
)

// SeedDefaultCamera stores the camera from DEFAULT_CAMERA_URL unless a
// camera with that locator exists. It reports whether a camera was added.
func SeedDefaultCamera(ctx context.Context, cfg *config.Config, cameras repository.CameraRepository) (bool, error) {
	existing, err := cameras.Find(ctx, model.CameraFilter{Locator: cfg.DefaultCameraURL})
	if err != nil {
		return false, fmt.Errorf("failed to look up default camera: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	cam := model.Camera{
		ID:        uuid.NewString(),
		Kind:      model.KindUserCamera,
		Name:      cfg.DefaultCameraName,
		Locator:   cfg.DefaultCameraURL,
		Location:  model.Location{Lat: cfg.DefaultCameraLat, Lon: cfg.DefaultCameraLon},
		CreatedAt: time.Now().UTC(),
	}
	if err := cam.Location.Validate(); err != nil {
		return false, fmt.Errorf("invalid default camera location: %w", err)
	}
	if err := cameras.Upsert(ctx, &cam); err != nil {
		return false, fmt.Errorf("failed to store default camera: %w", err)
	}
	return true, nil
}
