package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"

	"firewatch/internal/model"
)

const webcamImageID = "webcamRefreshImage"

// ParkDialer opens park-service webcam pages. They publish a still image
// that refreshes every few minutes, so grabs are spaced by PollInterval.
type ParkDialer struct {
	HTTP         *resty.Client
	PollInterval time.Duration
}

func NewParkDialer(pollInterval time.Duration) *ParkDialer {
	return &ParkDialer{
		HTTP:         resty.New().SetTimeout(20 * time.Second),
		PollInterval: pollInterval,
	}
}

func (d *ParkDialer) Open(_ context.Context, cam model.Camera) (Grabber, error) {
	page, err := url.Parse(cam.Locator)
	if err != nil || page.Scheme == "" || page.Host == "" {
		return nil, fmt.Errorf("invalid webcam page %q", cam.Locator)
	}
	return &ParkGrabber{http: d.HTTP, page: page, interval: d.PollInterval}, nil
}

type ParkGrabber struct {
	http     *resty.Client
	page     *url.URL
	interval time.Duration
	last     time.Time
}

// Grab waits out the poll interval, then downloads the current webcam image.
func (g *ParkGrabber) Grab(ctx context.Context) ([]byte, error) {
	if !g.last.IsZero() {
		wait := g.interval - time.Since(g.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	g.last = time.Now()

	resp, err := g.http.R().SetContext(ctx).Get(g.page.String())
	if err != nil {
		return nil, fmt.Errorf("couldn't get page: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("couldn't get page: %s", resp.Status())
	}

	src, err := FindWebcamImage(resp.String())
	if err != nil {
		return nil, err
	}
	imgURL, err := g.page.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid image src %q: %w", src, err)
	}

	img, err := g.http.R().SetContext(ctx).Get(imgURL.String())
	if err != nil {
		return nil, fmt.Errorf("couldn't retrieve the image: %w", err)
	}
	if img.IsError() {
		return nil, fmt.Errorf("couldn't retrieve the image: %s", img.Status())
	}
	if len(img.Body()) == 0 {
		return nil, errors.New("webcam image is empty")
	}
	return img.Body(), nil
}

func (g *ParkGrabber) Close() error { return nil }

// FindWebcamImage returns the src of the <img id="webcamRefreshImage"> tag.
func FindWebcamImage(page string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", fmt.Errorf("no image with id %q found", webcamImageID)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "img" {
				continue
			}
			var id, src string
			for _, a := range tok.Attr {
				switch a.Key {
				case "id":
					id = a.Val
				case "src":
					src = a.Val
				}
			}
			if id == webcamImageID && src != "" {
				return src, nil
			}
		}
	}
}
