package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/model"
)

const inputSize = 299

// ErrUnavailable is returned when no fire model could be loaded.
var ErrUnavailable = errors.New("fire classifier unavailable")

// FireClassifier runs a three-class (fire, smoke, neutral) ONNX network.
// Each pooled net serves one frame at a time; cameras share the pool.
type FireClassifier struct {
	logger *logger.Logger
	nets   chan *gocv.Net
	all    []*gocv.Net
}

// NewFireClassifier loads cfg.ClassifierWorkers copies of the model at cfg.ModelPath.
func NewFireClassifier(cfg *config.Config, logger *logger.Logger) (*FireClassifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	workers := cfg.ClassifierWorkers
	if workers < 1 {
		workers = 1
	}

	c := &FireClassifier{logger: logger, nets: make(chan *gocv.Net, workers)}
	for i := 0; i < workers; i++ {
		net := gocv.ReadNet(cfg.ModelPath, "")
		if net.Empty() {
			c.Close()
			return nil, fmt.Errorf("failed to load network %s", cfg.ModelPath)
		}
		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			net.Close()
			c.Close()
			return nil, fmt.Errorf("failed to set preferable backend: %w", err)
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			net.Close()
			c.Close()
			return nil, fmt.Errorf("failed to set preferable target: %w", err)
		}
		n := net
		c.all = append(c.all, &n)
		c.nets <- &n
	}

	logger.Info("Fire classifier initialized", "model", cfg.ModelPath, "workers", workers)
	return c, nil
}

// Classify decodes a JPEG frame and scores it. It waits for a free net or ctx.
func (c *FireClassifier) Classify(ctx context.Context, frame model.Frame) (model.Prediction, error) {
	var net *gocv.Net
	select {
	case net = <-c.nets:
	case <-ctx.Done():
		return model.Prediction{}, ctx.Err()
	}
	defer func() { c.nets <- net }()

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return model.Prediction{}, fmt.Errorf("decoded image is empty")
	}

	// ImageNet normalization; the per-channel std is approximated by its mean.
	blob := gocv.BlobFromImage(mat, 1.0/(255*0.226), image.Pt(inputSize, inputSize),
		gocv.NewScalar(0.485*255, 0.456*255, 0.406*255, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	if output.Total() < 3 {
		return model.Prediction{}, fmt.Errorf("unexpected output size %d", output.Total())
	}
	logits := make([]float32, 3)
	for i := range logits {
		logits[i] = output.GetFloatAt(0, i)
	}
	return Decide(logits), nil
}

func (c *FireClassifier) Close() error {
	for _, n := range c.all {
		n.Close()
	}
	c.all = nil
	return nil
}

// Unavailable stands in when the model cannot be loaded. Every call fails,
// so statuses carry the error instead of a fire verdict.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Classify(context.Context, model.Frame) (model.Prediction, error) {
	if u.Reason != nil {
		return model.Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, u.Reason)
	}
	return model.Prediction{}, ErrUnavailable
}
