// Package capture owns camera acquisition: opening a source by camera kind,
// reading frames, and reconnecting on failure.
package capture

import (
	"context"
	"fmt"

	"firewatch/internal/model"
)

// Grabber reads JPEG frames from one opened source.
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Grabber for a camera.
type Dialer interface {
	Open(ctx context.Context, cam model.Camera) (Grabber, error)
}

type DialerFunc func(ctx context.Context, cam model.Camera) (Grabber, error)

func (f DialerFunc) Open(ctx context.Context, cam model.Camera) (Grabber, error) {
	return f(ctx, cam)
}

// KindDialer picks the dialer registered for the camera's kind.
type KindDialer map[model.CameraKind]Dialer

func (k KindDialer) Open(ctx context.Context, cam model.Camera) (Grabber, error) {
	d, ok := k[cam.Kind]
	if !ok {
		return nil, fmt.Errorf("no source for camera kind %q", cam.Kind)
	}
	return d.Open(ctx, cam)
}
