package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/middleware"
	"firewatch/internal/model"
	"firewatch/internal/repository/memory"
	"firewatch/internal/service/capture"
	"firewatch/internal/service/monitor"
	"firewatch/internal/service/status"
)

type frameGrabber struct{}

func (frameGrabber) Grab(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(2 * time.Millisecond):
		return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
	}
}

func (frameGrabber) Close() error { return nil }

type fireClassifier struct{}

func (fireClassifier) Classify(ctx context.Context, frame model.Frame) (model.Prediction, error) {
	return model.Prediction{IsFire: true, Confidence: 0.88}, nil
}

type testServer struct {
	manager *monitor.Manager
	sink    *status.Sink
	mux     *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewDiscard()
	cfg := &config.Config{
		Password:          "secret",
		FrameSkip:         1,
		ReconnectDelay:    10 * time.Millisecond,
		DetectionInterval: 5 * time.Millisecond,
		RecheckInterval:   time.Hour,
	}
	sink := status.NewSink(log, memory.NewStatusRepository())
	dialer := capture.DialerFunc(func(ctx context.Context, cam model.Camera) (capture.Grabber, error) {
		return frameGrabber{}, nil
	})
	manager := monitor.NewManager(cfg, log, memory.NewCameraRepository(), sink, fireClassifier{}, dialer)
	t.Cleanup(manager.Stop)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cameras", RegisterCameraHandler(manager, log))
	mux.HandleFunc("GET /api/cameras", ListCamerasHandler(manager, log))
	mux.HandleFunc("PUT /api/cameras/{id}", UpdateCameraHandler(manager, log))
	mux.HandleFunc("DELETE /api/cameras/{id}", DeregisterCameraHandler(manager, log))
	mux.HandleFunc("GET /api/cameras/{id}/status", CameraStatusHandler(manager, log))
	mux.HandleFunc("POST /api/cameras/{id}/check", TriggerCheckHandler(manager, log))
	mux.HandleFunc("GET /api/cameras/{id}/frame", CameraFrameHandler(manager, log))
	mux.HandleFunc("GET /api/statuses", ListStatusesHandler(manager, log))
	mux.HandleFunc("GET /ws", StatusFeedHandler(manager.Snapshot, sink, log))
	mux.HandleFunc("GET /login", LoginPageHandler)
	mux.HandleFunc("POST /auth/login", LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", LogoutHandler)
	return &testServer{manager: manager, sink: sink, mux: mux}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, locator string) model.Camera {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/cameras", `{"name":"Ridge","locator":"`+locator+`","location":{"lat":37.7,"lon":-119.5}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var cam model.Camera
	if err := json.NewDecoder(rec.Body).Decode(&cam); err != nil {
		t.Fatalf("decode camera: %v", err)
	}
	return cam
}

func TestRegisterCameraHandler(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "http://10.0.0.5:4747/video")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing locator", `{"name":"x"}`, http.StatusBadRequest},
		{"bad coordinates", `{"locator":"http://10.0.0.6/video","location":{"lat":100}}`, http.StatusBadRequest},
		{"duplicate locator", `{"locator":"http://10.0.0.5:4747/video"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/cameras", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCameraLifecycle(t *testing.T) {
	s := newTestServer(t)
	cam := s.register(t, "http://10.0.0.5:4747/video")

	rec := s.do(http.MethodGet, "/api/cameras?kind=user_camera", "")
	var cams []model.Camera
	json.NewDecoder(rec.Body).Decode(&cams)
	if rec.Code != http.StatusOK || len(cams) != 1 || cams[0].ID != cam.ID {
		t.Fatalf("list cameras: %d %+v", rec.Code, cams)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = s.do(http.MethodGet, "/api/cameras/"+cam.ID+"/status", "")
		var st model.CameraStatus
		json.NewDecoder(rec.Body).Decode(&st)
		if rec.Code == http.StatusOK && st.FireDetected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("camera never reported fire, last status %d %+v", rec.Code, st)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = s.do(http.MethodGet, "/api/statuses?fire=true", "")
	var statuses []model.CameraStatus
	json.NewDecoder(rec.Body).Decode(&statuses)
	if len(statuses) != 1 {
		t.Errorf("expected 1 fire status, got %+v", statuses)
	}
	if rec := s.do(http.MethodGet, "/api/statuses?fire=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: expected 400, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/cameras/"+cam.ID+"/frame", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("frame: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte{0xff, 0xd8, 0xff, 0xd9}) {
		t.Errorf("unexpected frame bytes %v", rec.Body.Bytes())
	}

	if rec := s.do(http.MethodPost, "/api/cameras/"+cam.ID+"/check", ""); rec.Code != http.StatusAccepted {
		t.Errorf("check: expected 202, got %d", rec.Code)
	}

	rec = s.do(http.MethodPut, "/api/cameras/"+cam.ID, `{"name":"North ridge"}`)
	var updated model.Camera
	json.NewDecoder(rec.Body).Decode(&updated)
	if rec.Code != http.StatusOK || updated.Name != "North ridge" {
		t.Errorf("update: %d %+v", rec.Code, updated)
	}

	if rec := s.do(http.MethodDelete, "/api/cameras/"+cam.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	for _, target := range []struct{ method, path string }{
		{http.MethodGet, "/api/cameras/" + cam.ID + "/status"},
		{http.MethodPost, "/api/cameras/" + cam.ID + "/check"},
		{http.MethodGet, "/api/cameras/" + cam.ID + "/frame"},
		{http.MethodDelete, "/api/cameras/" + cam.ID},
	} {
		if rec := s.do(target.method, target.path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s after delete: expected 404, got %d", target.method, target.path, rec.Code)
		}
	}
}

func TestLoginHandler(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		password   string
		wantCode   int
		wantCookie bool
	}{
		{"wrong password", "guess", http.StatusUnauthorized, false},
		{"correct password", "secret", http.StatusSeeOther, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("password="+tt.password))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			got := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == AuthCookie && middleware.ValidSession("secret", c.Value, time.Now()) {
					got = true
				}
			}
			if got != tt.wantCookie {
				t.Errorf("cookie issued = %v, want %v", got, tt.wantCookie)
			}
		})
	}

	rec := s.do(http.MethodGet, "/auth/logout", "")
	cookies := rec.Result().Cookies()
	if rec.Code != http.StatusSeeOther || len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("logout did not clear the cookie: %d %+v", rec.Code, cookies)
	}

	rec = s.do(http.MethodGet, "/login", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/auth/login"`) {
		t.Errorf("login page not served: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusFeedHandler_SnapshotThenUpdates(t *testing.T) {
	s := newTestServer(t)
	cam := s.register(t, "http://10.0.0.5:4747/video")

	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := s.manager.GetStatus(context.Background(), cam.ID)
		if err == nil && st.FireDetected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("camera never reported fire")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev model.StatusEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if ev.Type != model.StatusEventType || ev.Data.CameraID != cam.ID || !ev.Data.FireDetected {
		t.Errorf("unexpected snapshot event: %+v", ev)
	}
	if ev.Data.Location.Lat != 37.7 || ev.Data.Location.Lng != -119.5 {
		t.Errorf("unexpected location: %+v", ev.Data.Location)
	}

	deadline = time.Now().Add(2 * time.Second)
	for s.sink.SubscriberCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer was never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	deadline = time.Now().Add(2 * time.Second)
	for s.sink.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer was never unsubscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusFeedHandler_BroadcastDuringSnapshot(t *testing.T) {
	log := logger.NewDiscard()
	sink := status.NewSink(log, memory.NewStatusRepository())
	fire := model.NewStatusEvent(model.CameraStatus{CameraID: "cam-1", FireDetected: true, Confidence: 0.9,
		LastChecked: time.Now()}, model.Location{Lat: 34, Lon: -118})

	// The snapshot is taken before the fire is stored; the fire is
	// broadcast while the snapshot is still being sent.
	snapshot := func(ctx context.Context) ([]model.StatusEvent, error) {
		go sink.Broadcast(context.Background(), fire)
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	}

	srv := httptest.NewServer(StatusFeedHandler(snapshot, sink, log))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev model.StatusEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("viewer missed the fire broadcast during the snapshot: %v", err)
	}
	if ev.Data.CameraID != "cam-1" || !ev.Data.FireDetected {
		t.Errorf("unexpected event: %+v", ev)
	}
}
