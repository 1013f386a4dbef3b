package model

import "time"

// DetectionResult is the outcome of one classifier run.
type DetectionResult struct {
	IsFire     bool
	Confidence float64
	Timestamp  time.Time
	Err        string
}

// FailedDetection is the non-fire result recorded when the classifier errors.
func FailedDetection(at time.Time, err error) DetectionResult {
	return DetectionResult{Timestamp: at, Err: err.Error()}
}

// ClampConfidence keeps c inside [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c != c: // NaN
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// CameraStatus is the persisted detection state of one camera.
type CameraStatus struct {
	CameraID     string     `json:"camera_id" bson:"_id"`
	LastChecked  time.Time  `json:"last_checked" bson:"last_checked"`
	FireDetected bool       `json:"fire_detected" bson:"fire_detected"`
	Confidence   float64    `json:"confidence" bson:"confidence"`
	LastAlertAt  *time.Time `json:"last_alert_at" bson:"last_alert_at,omitempty"`
	Error        *string    `json:"error" bson:"error,omitempty"`
}

// Equal compares two statuses field by field, treating times by instant.
func (s CameraStatus) Equal(o CameraStatus) bool {
	if s.CameraID != o.CameraID || !s.LastChecked.Equal(o.LastChecked) ||
		s.FireDetected != o.FireDetected || s.Confidence != o.Confidence {
		return false
	}
	if (s.LastAlertAt == nil) != (o.LastAlertAt == nil) {
		return false
	}
	if s.LastAlertAt != nil && !s.LastAlertAt.Equal(*o.LastAlertAt) {
		return false
	}
	if (s.Error == nil) != (o.Error == nil) {
		return false
	}
	return s.Error == nil || *s.Error == *o.Error
}

// StatusFilter narrows status listings.
type StatusFilter struct {
	FireDetected *bool
}

// Match reports whether s satisfies the filter.
func (f StatusFilter) Match(s CameraStatus) bool {
	return f.FireDetected == nil || s.FireDetected == *f.FireDetected
}

// DetectionEvent is one applied status update, kept as history.
type DetectionEvent struct {
	CameraID     string
	CheckedAt    time.Time
	FireDetected bool
	Confidence   float64
	Error        string
}

// Prediction is the raw classifier output for one frame.
type Prediction struct {
	IsFire     bool
	Confidence float64
}
