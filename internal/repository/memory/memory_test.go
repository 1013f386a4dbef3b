package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"firewatch/internal/model"
	"firewatch/internal/repository"
)

func TestCameraRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewCameraRepository()

	cams := []model.Camera{
		{ID: "b", Kind: model.KindUserCamera, Owner: "u1", Locator: "http://10.0.0.2:4747/video"},
		{ID: "a", Kind: model.KindParkService, Locator: "https://www.nps.gov/media/webcam/view.htm?id=1"},
	}
	for i := range cams {
		if err := repo.Upsert(ctx, &cams[i]); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := repo.FindOne(ctx, "b")
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got.Owner != "u1" {
		t.Errorf("Expected owner u1, got %s", got.Owner)
	}

	all, _ := repo.Find(ctx, model.CameraFilter{})
	if len(all) != 2 || all[0].ID != "a" {
		t.Errorf("Expected 2 cameras sorted by id, got %+v", all)
	}

	parks, _ := repo.Find(ctx, model.CameraFilter{Kind: model.KindParkService})
	if len(parks) != 1 || parks[0].ID != "a" {
		t.Errorf("Expected only the park camera, got %+v", parks)
	}

	if err := repo.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.FindOne(ctx, "b"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStatusRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStatusRepository()

	at := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	status := model.CameraStatus{CameraID: "cam-1", LastChecked: at, FireDetected: true, LastAlertAt: &at}
	if err := repo.Upsert(ctx, &status); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, _ := repo.FindOne(ctx, "cam-1")
	*got.LastAlertAt = at.Add(time.Hour)

	again, _ := repo.FindOne(ctx, "cam-1")
	if !again.LastAlertAt.Equal(at) {
		t.Error("Mutating a returned status should not change the stored one")
	}

	fire := true
	onFire, _ := repo.Find(ctx, model.StatusFilter{FireDetected: &fire})
	if len(onFire) != 1 {
		t.Errorf("Expected 1 status on fire, got %d", len(onFire))
	}
}
