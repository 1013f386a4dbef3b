package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"

	"firewatch/internal/logger"
	"firewatch/internal/model"
)

var event = model.NewStatusEvent(
	model.CameraStatus{CameraID: "cam-1", FireDetected: true, Confidence: 0.9, LastChecked: time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)},
	model.Location{Lat: 34, Lon: -118},
)

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTT struct {
	mqtt.Client
	topic   string
	qos     byte
	payload []byte
	token   *fakeToken
	closed  bool
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topic = topic
	f.qos = qos
	f.payload = payload.([]byte)
	return f.token
}

func (f *fakeMQTT) Disconnect(quiesce uint) { f.closed = true }

func TestMQTTRelay_Publish(t *testing.T) {
	client := &fakeMQTT{token: &fakeToken{complete: true}}
	r := NewMQTTRelay(logger.NewDiscard(), client, "firewatch/status")

	if err := r.Send(context.Background(), event); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if client.topic != "firewatch/status/cam-1" || client.qos != 1 {
		t.Errorf("Unexpected publish %s qos %d", client.topic, client.qos)
	}
	var got model.StatusEvent
	if err := json.Unmarshal(client.payload, &got); err != nil || !got.Data.FireDetected {
		t.Errorf("Unexpected payload %s (%v)", client.payload, err)
	}

	r.Close()
	if !client.closed {
		t.Error("Close should disconnect the client")
	}
}

func TestMQTTRelay_FailuresKeepSubscription(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
	}{
		{"timeout", &fakeToken{complete: false}},
		{"broker error", &fakeToken{complete: true, err: errors.New("not connected")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewMQTTRelay(logger.NewDiscard(), &fakeMQTT{token: tt.token}, "t")
			if err := r.Send(context.Background(), event); err != nil {
				t.Errorf("Relay should swallow broker failures, got %v", err)
			}
		})
	}
}

func TestRedisRelay_UnreachableBroker(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	r := NewRedisRelay(logger.NewDiscard(), client, "firewatch:status")
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Send(ctx, event); err != nil {
		t.Errorf("Relay should swallow broker failures, got %v", err)
	}
	if r.ID() != "redis:firewatch:status" {
		t.Errorf("Unexpected id %s", r.ID())
	}
}

func TestStreamValues(t *testing.T) {
	values, err := streamValues(event)
	if err != nil {
		t.Fatalf("streamValues failed: %v", err)
	}
	if values["camera_id"] != "cam-1" || values["fire_detected"] != true {
		t.Errorf("Unexpected values %v", values)
	}
	var decoded model.StatusEvent
	if err := json.Unmarshal([]byte(values["payload"].(string)), &decoded); err != nil {
		t.Errorf("Payload is not valid JSON: %v", err)
	}
}
