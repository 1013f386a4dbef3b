package model

import (
	"fmt"
	"time"
)

// CameraKind tags where a camera's frames come from.
type CameraKind string

const (
	// KindParkService is a public park webcam page polled for still images.
	KindParkService CameraKind = "park_service"
	// KindUserCamera is a live stream added by a user (e.g. a phone camera).
	KindUserCamera CameraKind = "user_camera"
)

// Valid reports whether k is a known camera kind.
func (k CameraKind) Valid() bool {
	return k == KindParkService || k == KindUserCamera
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lon float64 `json:"lon" bson:"lon"`
}

// Validate checks coordinate ranges.
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", l.Lon)
	}
	return nil
}

// Camera is a registered video source.
type Camera struct {
	ID        string     `json:"id" bson:"_id"`
	Kind      CameraKind `json:"kind" bson:"kind"`
	Name      string     `json:"name" bson:"name"`
	Locator   string     `json:"locator" bson:"locator"`
	Location  Location   `json:"location" bson:"location"`
	Owner     string     `json:"owner,omitempty" bson:"owner,omitempty"`
	Contact   string     `json:"contact,omitempty" bson:"contact,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

// Label is the human readable name used in alerts.
func (c Camera) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// CameraFilter narrows camera listings. Zero fields match everything.
type CameraFilter struct {
	Kind    CameraKind
	Owner   string
	Locator string
}

// Match reports whether c satisfies the filter.
func (f CameraFilter) Match(c Camera) bool {
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Owner != "" && c.Owner != f.Owner {
		return false
	}
	if f.Locator != "" && c.Locator != f.Locator {
		return false
	}
	return true
}
