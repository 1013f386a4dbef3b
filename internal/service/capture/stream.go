package capture

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"firewatch/internal/model"
)

// StreamGrabber reads a live video stream (e.g. http://<ip>:4747/video) with OpenCV.
type StreamGrabber struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

const (
	streamOpenTimeout = 10 * time.Second
	streamReadTimeout = 5 * time.Second
)

// OpenCV CAP_PROP_OPEN_TIMEOUT_MSEC and CAP_PROP_READ_TIMEOUT_MSEC.
const (
	propOpenTimeoutMsec gocv.VideoCaptureProperties = 53
	propReadTimeoutMsec gocv.VideoCaptureProperties = 54
)

// streamParams bounds how long opening and reading a stream may block, so a
// dead camera fails the attempt and the source goes back to reconnecting.
func streamParams(open, read time.Duration) []gocv.VideoCaptureProperties {
	return []gocv.VideoCaptureProperties{
		propOpenTimeoutMsec, gocv.VideoCaptureProperties(open.Milliseconds()),
		propReadTimeoutMsec, gocv.VideoCaptureProperties(read.Milliseconds()),
	}
}

// OpenStream is the Dialer for user cameras.
var OpenStream = DialerFunc(func(_ context.Context, cam model.Camera) (Grabber, error) {
	capture, err := gocv.OpenVideoCaptureWithAPIParams(cam.Locator, gocv.VideoCaptureAny,
		streamParams(streamOpenTimeout, streamReadTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open stream %s: %w", cam.Locator, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("stream %s did not open", cam.Locator)
	}
	// Always read the newest frame instead of a backlog.
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	return &StreamGrabber{capture: capture, mat: gocv.NewMat()}, nil
})

// Grab blocks on the stream read for at most the read timeout; ctx is
// checked before reading.
func (g *StreamGrabber) Grab(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := g.capture.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, fmt.Errorf("failed to read frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, g.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

func (g *StreamGrabber) Close() error {
	g.mat.Close()
	return g.capture.Close()
}
