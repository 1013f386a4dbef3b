package nps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/repository/memory"
)

const webcamsJSON = `{"total":"4","data":[
 {"id":"a","title":"Old Faithful","url":"https://www.nps.gov/media/webcam/view.htm?id=A1","latitude":44.46,"longitude":-110.83},
 {"id":"b","title":"Streaming","url":"https://www.youtube.com/watch?v=x","latitude":36.1,"longitude":-112.1},
 {"id":"c","title":"No coords","url":"https://www.nps.gov/media/webcam/view.htm?id=C3","latitude":"","longitude":""},
 {"id":"d","title":"Glacier Point","url":"https://www.nps.gov/media/webcam/view.htm?id=D4","latitude":"37.73","longitude":"-119.57"}
]}`

func TestCoordinate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Coordinate
		wantErr bool
	}{
		{`44.5`, Coordinate{Value: 44.5, Set: true}, false},
		{`"-110.2"`, Coordinate{Value: -110.2, Set: true}, false},
		{`""`, Coordinate{}, false},
		{`null`, Coordinate{}, false},
		{`"north"`, Coordinate{}, true},
	}

	for _, tt := range tests {
		var c Coordinate
		err := json.Unmarshal([]byte(tt.in), &c)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && c != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, c, tt.want)
		}
	}
}

func TestClient_WebcamsAndImport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webcams" || r.URL.Query().Get("api_key") != "key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(webcamsJSON))
	}))
	defer srv.Close()

	webcams, err := newClient(srv.URL, "key").Webcams(context.Background(), 500)
	if err != nil {
		t.Fatalf("Webcams failed: %v", err)
	}
	if len(webcams) != 4 {
		t.Fatalf("expected 4 webcams, got %d", len(webcams))
	}

	usable := Usable(webcams)
	if len(usable) != 2 || usable[0].ID != "a" || usable[1].ID != "d" {
		t.Fatalf("unexpected usable webcams: %+v", usable)
	}

	cameras := memory.NewCameraRepository()
	ctx := context.Background()
	res, err := Import(ctx, logger.NewDiscard(), cameras, usable)
	if err != nil || res.Added != 2 || res.Skipped != 0 {
		t.Fatalf("first import = %+v, %v", res, err)
	}

	res, err = Import(ctx, logger.NewDiscard(), cameras, usable)
	if err != nil || res.Added != 0 || res.Skipped != 2 {
		t.Fatalf("second import = %+v, %v", res, err)
	}

	stored, _ := cameras.Find(ctx, model.CameraFilter{Kind: model.KindParkService})
	if len(stored) != 2 {
		t.Fatalf("expected 2 park cameras, got %d", len(stored))
	}
	for _, cam := range stored {
		if cam.Location.Lat == 0 || cam.Name == "" {
			t.Errorf("incomplete camera %+v", cam)
		}
	}
}

func TestClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL, "bad").Webcams(context.Background(), 10); err == nil {
		t.Fatal("expected error")
	}
}
