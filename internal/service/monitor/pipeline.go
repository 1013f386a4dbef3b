package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"firewatch/internal/model"
	"firewatch/internal/service/alert"
	"firewatch/internal/service/capture"
	"firewatch/internal/service/detect"
	"firewatch/internal/service/framebuf"
)

// pipeline is one camera's monitoring session.
type pipeline struct {
	camera    model.Camera
	source    *capture.Source
	scheduler *detect.Scheduler
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func (p *pipeline) wait() {
	p.cancel()
	p.wg.Wait()
}

func (m *Manager) start(cam model.Camera) {
	ctx, cancel := context.WithCancel(m.ctx)

	skip := m.cfg.FrameSkip
	if cam.Kind == model.KindParkService {
		// Park pages refresh slowly; every image is worth classifying.
		skip = 1
	}

	buffer := framebuf.New()
	source := capture.NewSource(m.logger, cam, m.dialer, buffer,
		capture.WithSkip(skip),
		capture.WithReconnectDelay(m.cfg.ReconnectDelay),
		capture.WithMetrics(m.metrics),
	)

	opts := []detect.Option{detect.WithFrameProvider(source), detect.WithMetrics(m.metrics)}
	if m.dispatcher != nil {
		opts = append(opts, detect.WithNotifier(m.dispatcher))
	}
	if m.archiver != nil {
		opts = append(opts, detect.WithArchiver(m.archiver))
	}
	scheduler := detect.New(m.logger, cam, buffer, alert.NewMachine(m.cfg.RecheckInterval),
		m.classifier, m.sink, m.cfg.DetectionInterval, opts...)

	p := &pipeline{camera: cam, source: source, scheduler: scheduler, cancel: cancel}
	m.mu.Lock()
	if old, ok := m.pipelines[cam.ID]; ok {
		m.mu.Unlock()
		old.wait()
		m.mu.Lock()
	}
	m.pipelines[cam.ID] = p
	m.mu.Unlock()

	m.goSafe(ctx, p, "acquisition", source.Run)
	m.goSafe(ctx, p, "detection", scheduler.Run)
}

// goSafe runs a camera worker and keeps a panic inside it from taking
// down the other cameras.
func (m *Manager) goSafe(ctx context.Context, p *pipeline, name string, run func(context.Context) error) {
	cameraID := p.camera.ID
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("Camera worker crashed", "camera", cameraID, "worker", name,
					"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}()
		if err := run(ctx); err != nil {
			m.logger.Error("Camera worker failed", "camera", cameraID, "worker", name, "error", err)
		}
	}()
}

func (m *Manager) stop(id string) {
	m.mu.Lock()
	p, ok := m.pipelines[id]
	delete(m.pipelines, id)
	m.mu.Unlock()

	if ok {
		p.wait()
	}
}
