package model

import "time"

const StatusEventType = "fire_update"

// StatusEvent is the message pushed to subscribers on every status change.
type StatusEvent struct {
	Type string          `json:"type"`
	Data StatusEventData `json:"data"`
}

type StatusEventData struct {
	CameraID     string        `json:"camera_id"`
	FireDetected bool          `json:"fire_detected"`
	Confidence   float64       `json:"confidence"`
	Location     EventLocation `json:"location"`
	Timestamp    time.Time     `json:"timestamp"`
}

// EventLocation uses lat/lng keys as the browser map client expects.
type EventLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewStatusEvent builds the subscriber message for a camera status.
func NewStatusEvent(status CameraStatus, location Location) StatusEvent {
	return StatusEvent{
		Type: StatusEventType,
		Data: StatusEventData{
			CameraID:     status.CameraID,
			FireDetected: status.FireDetected,
			Confidence:   status.Confidence,
			Location:     EventLocation{Lat: location.Lat, Lng: location.Lon},
			Timestamp:    status.LastChecked.UTC(),
		},
	}
}
