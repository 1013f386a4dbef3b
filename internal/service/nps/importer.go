package nps

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/repository"
)

type ImportResult struct {
	Added   int
	Skipped int
}

// Import stores every webcam whose page is not registered yet.
func Import(ctx context.Context, logger *logger.Logger, cameras repository.CameraRepository, webcams []Webcam) (ImportResult, error) {
	var res ImportResult
	for _, w := range webcams {
		cam := w.Camera()
		if err := cam.Location.Validate(); err != nil {
			logger.Warning("Skipping webcam", "webcam", w.ID, "error", err)
			res.Skipped++
			continue
		}

		existing, err := cameras.Find(ctx, model.CameraFilter{Locator: cam.Locator})
		if err != nil {
			return res, fmt.Errorf("failed to check webcam %s: %w", w.ID, err)
		}
		if len(existing) > 0 {
			res.Skipped++
			continue
		}

		cam.ID = uuid.NewString()
		cam.CreatedAt = time.Now().UTC()
		if err := cameras.Upsert(ctx, &cam); err != nil {
			return res, fmt.Errorf("failed to store webcam %s: %w", w.ID, err)
		}
		res.Added++
	}
	return res, nil
}
