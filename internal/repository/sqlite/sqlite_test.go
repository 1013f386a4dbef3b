package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"firewatch/internal/model"
	"firewatch/internal/repository"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return Wrap(conn), mock
}

var cameraColumns = []string{"id", "kind", "name", "locator", "lat", "lon", "owner", "contact", "created_at"}
var statusColumns = []string{"camera_id", "last_checked", "fire_detected", "confidence", "last_alert_at", "error"}

func TestCameraRepository_Upsert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCameraRepository(db)

	cam := &model.Camera{
		ID:        "cam-1",
		Kind:      model.KindUserCamera,
		Name:      "Backyard",
		Locator:   "http://192.168.1.20:4747/video",
		Location:  model.Location{Lat: 34.05, Lon: -118.24},
		CreatedAt: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cameras")).
		WithArgs("cam-1", "user_camera", "Backyard", cam.Locator, 34.05, -118.24, "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Upsert(context.Background(), cam); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestCameraRepository_FindOne(t *testing.T) {
	created := time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		wantErr error
	}{
		{
			name: "found",
			rows: sqlmock.NewRows(cameraColumns).
				AddRow("cam-1", "park_service", "Old Faithful", "https://www.nps.gov/x", 44.46, -110.83, "", "", created),
		},
		{
			name:    "missing",
			rows:    sqlmock.NewRows(cameraColumns),
			wantErr: repository.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewCameraRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta("FROM cameras WHERE id = ?")).
				WithArgs("cam-1").
				WillReturnRows(tt.rows)

			cam, err := repo.FindOne(context.Background(), "cam-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindOne failed: %v", err)
			}
			if cam.Kind != model.KindParkService || cam.Location.Lat != 44.46 {
				t.Errorf("Unexpected camera: %+v", cam)
			}
		})
	}
}

func TestCameraRepository_FindFiltered(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCameraRepository(db)

	mock.ExpectQuery(`AND kind = \? AND owner = \? ORDER BY id`).
		WithArgs("user_camera", "alice").
		WillReturnRows(sqlmock.NewRows(cameraColumns).
			AddRow("a", "user_camera", "", "http://h/video", 1.0, 2.0, "alice", "+15550100", time.Now()).
			AddRow("b", "user_camera", "", "http://i/video", 3.0, 4.0, "alice", "", time.Now()))

	cams, err := repo.Find(context.Background(), model.CameraFilter{Kind: model.KindUserCamera, Owner: "alice"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(cams) != 2 || cams[0].Contact != "+15550100" {
		t.Errorf("Unexpected cameras: %+v", cams)
	}
}

func TestStatusRepository_UpsertAndFind(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatusRepository(db)

	checked := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	status := &model.CameraStatus{CameraID: "cam-1", LastChecked: checked, FireDetected: true, Confidence: 0.93, LastAlertAt: &checked}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO camera_status")).
		WithArgs("cam-1", sqlmock.AnyArg(), true, 0.93, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Upsert(context.Background(), status); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM camera_status WHERE camera_id = ?")).
		WithArgs("cam-1").
		WillReturnRows(sqlmock.NewRows(statusColumns).AddRow("cam-1", checked, true, 0.93, checked, nil))

	got, err := repo.FindOne(context.Background(), "cam-1")
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got.LastAlertAt == nil || !got.LastAlertAt.Equal(checked) {
		t.Errorf("Expected last alert %v, got %v", checked, got.LastAlertAt)
	}
	if got.Error != nil {
		t.Errorf("Expected no error, got %q", *got.Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestStatusRepository_FindOnFire(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatusRepository(db)

	mock.ExpectQuery(`AND fire_detected = \? ORDER BY camera_id`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(statusColumns).
			AddRow("cam-2", time.Now(), true, 0.8, nil, "stream timeout"))

	fire := true
	statuses, err := repo.Find(context.Background(), model.StatusFilter{FireDetected: &fire})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Error == nil || *statuses[0].Error != "stream timeout" {
		t.Errorf("Unexpected statuses: %+v", statuses)
	}
}

func TestStatusRepository_DeleteError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatusRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM camera_status")).
		WithArgs("cam-1").
		WillReturnError(errors.New("disk I/O error"))

	if err := repo.Delete(context.Background(), "cam-1"); err == nil {
		t.Error("Expected error from Delete")
	}
}
