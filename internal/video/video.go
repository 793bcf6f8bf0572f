// Package video writes rendered frames to ffmpeg or to PNG files.
package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ivlev/scene2video/internal/system"
)

// FrameSink consumes frames in presentation order
type FrameSink interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// Params describes the encoded stream
type Params struct {
	Width, Height int
	FPS           int
	Encoder       string // ffmpeg video encoder, e.g. libx264
	Quality       int    // CRF / CQ, or bitrate in 100 kbit/s for VideoToolbox
	Filter        string // Optional -vf filter chain
	AudioPath     string // Optional audio track, cut to the video length
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg process
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    logBuffer
	params Params
	path   string
	frames int
	start  time.Time
}

// Open starts ffmpeg writing to path. Cancelling ctx kills the process.
func Open(ctx context.Context, path string, p Params) (*FFmpegEncoder, error) {
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 {
		return nil, fmt.Errorf("invalid stream %dx%d @ %d fps", p.Width, p.Height, p.FPS)
	}
	if p.Encoder == "" {
		p.Encoder = "libx264"
	}

	e := &FFmpegEncoder{params: p, path: path, start: time.Now()}
	e.cmd = exec.CommandContext(ctx, "ffmpeg", buildFFmpegArgs(path, p)...)
	e.cmd.Stdout = &e.out
	e.cmd.Stderr = &e.out

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	system.Logger().Info("ffmpeg started", "path", path, "encoder", p.Encoder,
		"size", fmt.Sprintf("%dx%d", p.Width, p.Height), "fps", p.FPS)
	return e, nil
}

func (e *FFmpegEncoder) WriteFrame(img *image.RGBA) error {
	if b := img.Bounds(); b.Dx() != e.params.Width || b.Dy() != e.params.Height {
		return fmt.Errorf("frame %d is %dx%d, stream is %dx%d", e.frames, b.Dx(), b.Dy(), e.params.Width, e.params.Height)
	}
	if err := writeRawRGBA(e.stdin, img); err != nil {
		return fmt.Errorf("write raw error at frame %d: %w\nLog: %s", e.frames, err, e.out.String())
	}
	e.frames++
	return nil
}

// Close flushes the stream and waits for ffmpeg to exit
func (e *FFmpegEncoder) Close() error {
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w\nLog: %s", err, e.out.String())
	}
	system.Logger().Info("ffmpeg finished", "path", e.path, "frames", e.frames, "elapsed", time.Since(e.start))
	return nil
}

func buildFFmpegArgs(path string, p Params) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}
	if p.AudioPath != "" {
		args = append(args, "-i", p.AudioPath, "-map", "0:v", "-map", "1:a", "-c:a", "aac", "-shortest")
	}
	if p.Filter != "" {
		args = append(args, "-vf", p.Filter)
	}
	args = append(args, "-pix_fmt", "yuv420p", "-c:v", p.Encoder)

	// Качество в зависимости от энкодера
	switch p.Encoder {
	case "h264_videotoolbox":
		bitrate := p.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", p.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-preset", "medium")
	}

	return append(args, path)
}

// writeRawRGBA writes the pixels row by row when img is a sub-image
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if img.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		_, err := w.Write(img.Pix[:b.Dy()*img.Stride])
		return err
	}
	packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(packed, packed.Bounds(), img, b.Min, draw.Src)
	_, err := w.Write(packed.Pix)
	return err
}

// IsPNGTarget reports whether output names a directory for a PNG sequence:
// a trailing slash, or a last path element without an extension.
func IsPNGTarget(output string) bool {
	return strings.HasSuffix(output, "/") || filepath.Ext(filepath.Base(output)) == ""
}

// logBuffer собирает вывод ffmpeg. exec копирует stderr из своей горутины,
// поэтому чтение и запись идут под мьютексом.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
