// Package nps imports National Park Service webcams as park cameras.
package nps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"firewatch/internal/model"
)

const (
	baseURL = "https://developer.nps.gov/api/v1"

	// WebcamPagePrefix marks webcams that publish a still image page.
	WebcamPagePrefix = "https://www.nps.gov/media/webcam/view.htm"
)

// Coordinate accepts numbers, numeric strings and empty values.
type Coordinate struct {
	Value float64
	Set   bool
}

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = Coordinate{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*c = Coordinate{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", b, err)
	}
	*c = Coordinate{Value: v, Set: true}
	return nil
}

type Webcam struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
}

type Client struct {
	http *resty.Client
}

func NewClient(apiKey string) *Client {
	return newClient(baseURL, apiKey)
}

func newClient(base, apiKey string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(base).
			SetQueryParam("api_key", apiKey).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
	}
}

// Webcams lists up to limit webcams.
func (c *Client) Webcams(ctx context.Context, limit int) ([]Webcam, error) {
	var result struct {
		Data []Webcam `json:"data"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get("/webcams")
	if err != nil {
		return nil, fmt.Errorf("nps request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("nps returned %s", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode webcams: %w", err)
	}
	return result.Data, nil
}

// Usable keeps webcams with a still image page and coordinates.
func Usable(webcams []Webcam) []Webcam {
	out := make([]Webcam, 0, len(webcams))
	for _, w := range webcams {
		if strings.HasPrefix(w.URL, WebcamPagePrefix) && w.Latitude.Set && w.Longitude.Set {
			out = append(out, w)
		}
	}
	return out
}

// Camera converts a webcam into a park camera registration.
func (w Webcam) Camera() model.Camera {
	return model.Camera{
		Kind:     model.KindParkService,
		Name:     w.Title,
		Locator:  w.URL,
		Location: model.Location{Lat: w.Latitude.Value, Lon: w.Longitude.Value},
	}
}
