// Package engine drives a scene through time: it renders frames in
// parallel and hands them to a sink in order, bakes source values and
// computes fingerprints.
package engine

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scene2video/internal/config"
	"github.com/ivlev/scene2video/internal/fingerprint"
	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/system"
	"github.com/ivlev/scene2video/internal/video"
)

// FrameRenderer turns an evaluated frame into pixels. The image must come
// from the system image pool.
type FrameRenderer interface {
	Render(frame *scene.Frame, index int) (*image.RGBA, error)
}

type Project struct {
	Config   *config.Config
	Scene    *scene.Scene
	Renderer FrameRenderer
	Sink     video.FrameSink

	// Progress, when set, is called after each frame is written
	Progress func(done, total int)

	renderNanos atomic.Int64
	writeNanos  atomic.Int64
}

func NewProject(cfg *config.Config, s *scene.Scene, r FrameRenderer, sink video.FrameSink) *Project {
	return &Project{
		Config:   cfg,
		Scene:    s,
		Renderer: r,
		Sink:     sink,
	}
}

// FrameCount is the number of frames covering [0, duration], both ends included
func (p *Project) FrameCount() int {
	return int(math.Round(p.Scene.Duration*float64(p.Config.FPS))) + 1
}

// FrameTime returns the time of frame i
func (p *Project) FrameTime(i int) float64 {
	return float64(i) / float64(p.Config.FPS)
}

func (p *Project) workers() int {
	if p.Config.Workers > 0 {
		return p.Config.Workers
	}
	return system.DefaultWorkers()
}

// Run renders every frame and writes them to the sink in index order,
// then closes the sink.
func (p *Project) Run(ctx context.Context) error {
	if p.Sink == nil {
		return fmt.Errorf("no frame sink")
	}
	startTime := time.Now()
	n := p.FrameCount()
	workers := p.workers()

	system.Logger().Info("render started", "scene", p.Scene.Name, "frames", n, "fps", p.Config.FPS, "workers", workers)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// У каждого кадра свой слот; window ограничивает число кадров,
	// отрендеренных впереди писателя
	slots := make([]chan *image.RGBA, n)
	for i := range slots {
		slots[i] = make(chan *image.RGBA, 1)
	}
	window := make(chan struct{}, 2*workers)

	written := make(chan error, 1)
	go func() {
		err := p.write(ctx, slots, window)
		if err != nil {
			cancel(err)
		}
		written <- err
	}()

produce:
	for i := 0; i < n; i++ {
		select {
		case window <- struct{}{}:
		case <-gctx.Done():
			break produce
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := p.renderFrame(i)
			if err != nil {
				return err
			}
			slots[i] <- img
			return nil
		})
	}

	renderErr := g.Wait()
	if renderErr != nil {
		cancel(renderErr)
	}
	writeErr := <-written
	closeErr := p.Sink.Close()

	// Писатель возвращает первую ошибку любой из сторон
	switch {
	case writeErr != nil:
		return writeErr
	case renderErr != nil:
		return renderErr
	case closeErr != nil:
		return fmt.Errorf("close sink: %w", closeErr)
	}

	if p.Config.ShowStats {
		p.report(n, time.Since(startTime))
	}
	system.Logger().Info("render finished", "scene", p.Scene.Name, "frames", n, "elapsed", time.Since(startTime))
	return nil
}

func (p *Project) renderFrame(i int) (*image.RGBA, error) {
	start := time.Now()
	defer func() { p.renderNanos.Add(int64(time.Since(start))) }()

	frame, err := p.Scene.Evaluate(p.FrameTime(i))
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", i, err)
	}
	img, err := p.Renderer.Render(frame, i)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", i, err)
	}
	return img, nil
}

func (p *Project) write(ctx context.Context, slots []chan *image.RGBA, window <-chan struct{}) error {
	for i, slot := range slots {
		var img *image.RGBA
		select {
		case img = <-slot:
		case <-ctx.Done():
			return context.Cause(ctx)
		}

		start := time.Now()
		err := p.Sink.WriteFrame(img)
		p.writeNanos.Add(int64(time.Since(start)))
		system.PutImage(img) // кадр записан, буфер обратно в пул
		<-window
		if err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
		if p.Progress != nil {
			p.Progress(i+1, len(slots))
		}
	}
	return nil
}

func (p *Project) report(frames int, total time.Duration) {
	renderTime := time.Duration(p.renderNanos.Load())
	writeTime := time.Duration(p.writeNanos.Load())
	fps := float64(frames) / total.Seconds()
	stats := system.ReadHostStats()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Scene: %s (%d frames)\n"+
			"Total Time: %.2fs\n"+
			"Rendering (CPU, summed): %.2fs\n"+
			"Encoding (sink): %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"%s\n"+
			"----------------------------\n",
		p.Config.BuildVersion, p.Scene.Name, frames, total.Seconds(), renderTime.Seconds(), writeTime.Seconds(), fps, stats,
	)
	fmt.Print(report)

	logEntry := fmt.Sprintf("[%s] Build: %s | Scene: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		p.Scene.Name,
		frames,
		total.Seconds(),
		renderTime.Seconds(),
		writeTime.Seconds(),
		fps,
	)

	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
	}
}

// Fingerprints renders n frames evenly spaced over [0, duration) and hashes them
func (p *Project) Fingerprints(ctx context.Context, n int) ([]fingerprint.Hash, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid keyframe count %d", n)
	}
	hashes := make([]fingerprint.Hash, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			at := float64(i) * p.Scene.Duration / float64(n)
			frame, err := p.Scene.Evaluate(at)
			if err != nil {
				return fmt.Errorf("keyframe %d: %w", i, err)
			}
			img, err := p.Renderer.Render(frame, i)
			if err != nil {
				return fmt.Errorf("keyframe %d: %w", i, err)
			}
			// Кадры считаются независимо, порядок не важен
			hashes[i] = fingerprint.Compute(img)
			system.PutImage(img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}
