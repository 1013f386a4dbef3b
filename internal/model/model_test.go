package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
)

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0.5, 0.5},
		{-0.1, 0},
		{10.4, 1},
		{math.NaN(), 0},
		{1, 1},
	}

	for _, tt := range tests {
		if got := ClampConfidence(tt.input); got != tt.expected {
			t.Errorf("ClampConfidence(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestFrameClone_DoesNotShareData(t *testing.T) {
	f := Frame{Data: []byte{1, 2, 3}, Seq: 4}
	c := f.Clone()
	c.Data[0] = 9

	if f.Data[0] != 1 {
		t.Error("Clone should not share the backing array")
	}
	if c.Seq != 4 {
		t.Errorf("Expected seq 4, got %d", c.Seq)
	}
}

func TestLocationValidate(t *testing.T) {
	tests := []struct {
		loc   Location
		valid bool
	}{
		{Location{Lat: 34.0, Lon: -118.0}, true},
		{Location{Lat: 91, Lon: 0}, false},
		{Location{Lat: 0, Lon: -181}, false},
	}

	for _, tt := range tests {
		err := tt.loc.Validate()
		if (err == nil) != tt.valid {
			t.Errorf("Validate(%+v) error = %v, expected valid=%v", tt.loc, err, tt.valid)
		}
	}
}

func TestCameraFilter_Match(t *testing.T) {
	cam := Camera{ID: "c1", Kind: KindUserCamera, Owner: "u1", Locator: "http://10.0.0.2:4747/video"}

	if !(CameraFilter{}).Match(cam) {
		t.Error("Empty filter should match")
	}
	if (CameraFilter{Kind: KindParkService}).Match(cam) {
		t.Error("Kind filter should not match")
	}
	if !(CameraFilter{Owner: "u1", Kind: KindUserCamera}).Match(cam) {
		t.Error("Owner and kind filter should match")
	}
}

func TestCameraStatus_Equal(t *testing.T) {
	at := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	msg := "boom"
	a := CameraStatus{CameraID: "c1", LastChecked: at, FireDetected: true, Confidence: 0.9, LastAlertAt: &at}
	b := a
	alertCopy := at.In(time.FixedZone("X", 3600))
	b.LastAlertAt = &alertCopy

	if !a.Equal(b) {
		t.Error("Statuses with the same instants should be equal")
	}
	b.Error = &msg
	if a.Equal(b) {
		t.Error("Statuses with different errors should differ")
	}
}

func TestNewStatusEvent_WireFormat(t *testing.T) {
	at := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	ev := NewStatusEvent(CameraStatus{CameraID: "cam-1", LastChecked: at, FireDetected: true, Confidence: 0.92}, Location{Lat: 34, Lon: -118})

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"type":"fire_update"`, `"camera_id":"cam-1"`, `"fire_detected":true`, `"lng":-118`, `"timestamp":"2024-08-01T12:00:00Z"`} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %s in %s", want, s)
		}
	}
}
