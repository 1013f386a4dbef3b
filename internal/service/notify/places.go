package notify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const placesBaseURL = "https://maps.googleapis.com/maps/api/place"

const metersPerMile = 1609.34

// Place is an emergency resource near a camera.
type Place struct {
	Name       string
	Address    string
	Lat        float64
	Lon        float64
	DistanceKm float64
}

// Resources holds the nearest place of each kind, nil when none was found.
type Resources struct {
	Hospital    *Place
	FireStation *Place
	Shelter     *Place
}

// ResourceFinder looks up emergency resources around a point.
type ResourceFinder interface {
	Nearby(ctx context.Context, lat, lon, radiusMiles float64) (Resources, error)
}

// PlacesClient queries the Google Places nearby search API.
type PlacesClient struct {
	http   *resty.Client
	apiKey string
}

func NewPlacesClient(apiKey string) *PlacesClient {
	return newPlacesClient(placesBaseURL, apiKey)
}

func newPlacesClient(baseURL, apiKey string) *PlacesClient {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &PlacesClient{http: r, apiKey: apiKey}
}

type nearbyResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *PlacesClient) Nearby(ctx context.Context, lat, lon, radiusMiles float64) (Resources, error) {
	var res Resources
	lookups := []struct {
		placeType string
		dst       **Place
	}{
		{"hospital", &res.Hospital},
		{"fire_station", &res.FireStation},
		{"shelter", &res.Shelter},
	}

	for _, l := range lookups {
		place, err := c.nearest(ctx, l.placeType, lat, lon, radiusMiles)
		if err != nil {
			return res, err
		}
		*l.dst = place
	}
	return res, nil
}

func (c *PlacesClient) nearest(ctx context.Context, placeType string, lat, lon, radiusMiles float64) (*Place, error) {
	var body nearbyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"location": fmt.Sprintf("%f,%f", lat, lon),
			"radius":   strconv.FormatFloat(radiusMiles*metersPerMile, 'f', 0, 64),
			"type":     placeType,
			"key":      c.apiKey,
		}).
		SetResult(&body).
		Get("/nearbysearch/json")
	if err != nil {
		return nil, fmt.Errorf("places lookup %s: %w", placeType, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("places lookup %s: %s", placeType, resp.Status())
	}

	var best *Place
	for _, r := range body.Results {
		loc := r.Geometry.Location
		d := Haversine(lat, lon, loc.Lat, loc.Lng)
		if best == nil || d < best.DistanceKm {
			best = &Place{Name: r.Name, Address: r.Vicinity, Lat: loc.Lat, Lon: loc.Lng, DistanceKm: d}
		}
	}
	return best, nil
}

// Haversine returns the great-circle distance in kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
