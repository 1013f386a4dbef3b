// Package mongo stores cameras and statuses in MongoDB. Documents use the
// camera id as _id so upserts replace in place.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"firewatch/internal/model"
	"firewatch/internal/repository"
)

const (
	camerasCollection = "cameras"
	statusCollection  = "camera_status"
)

// Connect opens a client and checks it with a ping.
func Connect(ctx context.Context, logger *slog.Logger, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", database)
	return client.Database(database), nil
}

// NewStore connects and returns the repositories backed by db.
func NewStore(ctx context.Context, logger *slog.Logger, uri, database string) (repository.Store, error) {
	db, err := Connect(ctx, logger, uri, database)
	if err != nil {
		return repository.Store{}, err
	}
	return repository.Store{
		Cameras:  NewCameraRepository(db),
		Statuses: NewStatusRepository(db),
		Close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.Client().Disconnect(ctx)
		},
	}, nil
}

type CameraRepository struct {
	coll *mongo.Collection
}

func NewCameraRepository(db *mongo.Database) *CameraRepository {
	return &CameraRepository{coll: db.Collection(camerasCollection)}
}

func (r *CameraRepository) Upsert(ctx context.Context, cam *model.Camera) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": cam.ID}, cam, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert camera: %w", err)
	}
	return nil
}

func (r *CameraRepository) FindOne(ctx context.Context, id string) (*model.Camera, error) {
	var cam model.Camera
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&cam)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return &cam, nil
}

func (r *CameraRepository) Find(ctx context.Context, filter model.CameraFilter) ([]model.Camera, error) {
	cur, err := r.coll.Find(ctx, cameraQuery(filter), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	var cameras []model.Camera
	if err := cur.All(ctx, &cameras); err != nil {
		return nil, fmt.Errorf("failed to decode cameras: %w", err)
	}
	return cameras, nil
}

func (r *CameraRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	return nil
}

func cameraQuery(f model.CameraFilter) bson.M {
	q := bson.M{}
	if f.Kind != "" {
		q["kind"] = string(f.Kind)
	}
	if f.Owner != "" {
		q["owner"] = f.Owner
	}
	if f.Locator != "" {
		q["locator"] = f.Locator
	}
	return q
}

type StatusRepository struct {
	coll *mongo.Collection
}

func NewStatusRepository(db *mongo.Database) *StatusRepository {
	return &StatusRepository{coll: db.Collection(statusCollection)}
}

func (r *StatusRepository) Upsert(ctx context.Context, s *model.CameraStatus) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": s.CameraID}, s, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}
	return nil
}

func (r *StatusRepository) FindOne(ctx context.Context, cameraID string) (*model.CameraStatus, error) {
	var s model.CameraStatus
	err := r.coll.FindOne(ctx, bson.M{"_id": cameraID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &s, nil
}

func (r *StatusRepository) Find(ctx context.Context, filter model.StatusFilter) ([]model.CameraStatus, error) {
	q := bson.M{}
	if filter.FireDetected != nil {
		q["fire_detected"] = *filter.FireDetected
	}
	cur, err := r.coll.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	var statuses []model.CameraStatus
	if err := cur.All(ctx, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode statuses: %w", err)
	}
	return statuses, nil
}

func (r *StatusRepository) Delete(ctx context.Context, cameraID string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": cameraID}); err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}
	return nil
}
