// Package effects builds the ffmpeg video filter applied to the rendered
// frame stream on its way to the encoder.
package effects

import (
	"fmt"
	"strings"
)

// Params describes the stream the filter runs on
type Params struct {
	Width, Height int
	FPS           int
	Duration      float64 // seconds
}

type Effect interface {
	GenerateFilter(p Params) string
}

// Fade fades from black over In seconds and to black over the last Out seconds
type Fade struct {
	In, Out float64
}

func (e Fade) GenerateFilter(p Params) string {
	var parts []string
	if e.In > 0 {
		parts = append(parts, fmt.Sprintf("fade=t=in:st=0:d=%s", seconds(min(e.In, p.Duration))))
	}
	if e.Out > 0 {
		d := min(e.Out, p.Duration)
		parts = append(parts, fmt.Sprintf("fade=t=out:st=%s:d=%s", seconds(p.Duration-d), seconds(d)))
	}
	return strings.Join(parts, ",")
}

// Scale resizes the stream to Width x Height, padding to keep the aspect ratio
type Scale struct {
	Width, Height int
}

func (e Scale) GenerateFilter(p Params) string {
	if e.Width <= 0 || e.Height <= 0 || (e.Width == p.Width && e.Height == p.Height) {
		return ""
	}
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		e.Width, e.Height, e.Width, e.Height,
	)
}

// Title draws Text in the top left corner for the first Seconds of the video.
// Needs an ffmpeg built with drawtext.
type Title struct {
	Text    string
	Seconds float64
}

func (e Title) GenerateFilter(p Params) string {
	if e.Text == "" {
		return ""
	}
	enable := ""
	if e.Seconds > 0 {
		enable = fmt.Sprintf(":enable='lte(t,%s)'", seconds(e.Seconds))
	}
	return fmt.Sprintf("drawtext=text='%s':x=10:y=10:fontsize=%d:fontcolor=yellow:box=1:boxcolor=black@0.5%s",
		escapeText(e.Text), max(p.Height/30, 12), enable)
}

// Chain joins the filters of its effects, skipping empty ones
type Chain []Effect

func (c Chain) GenerateFilter(p Params) string {
	var parts []string
	for _, e := range c {
		if e == nil {
			continue
		}
		if f := e.GenerateFilter(p); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ",")
}

func seconds(v float64) string {
	return fmt.Sprintf("%.3f", max(v, 0))
}

var textEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`, `,`, `\,`)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
