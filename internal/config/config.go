package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Scene        string // built-in name or scene file
	Output       string // video file, or a directory for PNG frames
	AssetsDir    string // base directory for texture references
	AudioPath    string
	Width        int
	Height       int
	OutWidth     int // размер итогового видео, 0 - как у рендера
	OutHeight    int
	FPS          int
	Workers      int
	Quality      int // 0 picks DefaultQuality for the encoder
	VideoEncoder string
	Preset       string
	FadeIn       float64
	FadeOut      float64
	Title        bool
	NoAudio      bool
	Debug        bool
	ShowStats    bool
	BuildVersion string

	// текстуры с суффиксом ?trim
	Detector   string
	TrimMargin int

	// fingerprint
	Keyframes int
	Tolerance int
	Reference string
	WriteRef  bool
}

// Default returns the settings used when no flag overrides them
func Default() *Config {
	return &Config{
		Output:     "output.mp4",
		Width:      1280,
		Height:     720,
		FPS:        60,
		Detector:   "contrast",
		TrimMargin: 8,
		Keyframes:  20,
		Tolerance:  1,
	}
}

// ApplyPreset sets the frame size from an aspect ratio preset, keeping the
// longer side of the current size.
func (c *Config) ApplyPreset(preset string) error {
	long := max(c.Width, c.Height)
	switch strings.TrimSpace(preset) {
	case "":
		return nil
	case "16:9":
		c.Width, c.Height = long, even(long*9/16)
	case "9:16":
		c.Width, c.Height = even(long*9/16), long
	case "1:1":
		c.Width, c.Height = long, long
	default:
		return fmt.Errorf("unknown preset %q (16:9, 9:16, 1:1)", preset)
	}
	c.Preset = preset
	return nil
}

// Validate rejects settings no subcommand can run with
func (c *Config) Validate() error {
	switch {
	case c.Scene == "":
		return fmt.Errorf("no scene given")
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	case c.Width%2 != 0 || c.Height%2 != 0:
		return fmt.Errorf("size %dx%d must be even for yuv420p", c.Width, c.Height)
	case c.FPS <= 0:
		return fmt.Errorf("invalid fps %d", c.FPS)
	case c.Keyframes < 1:
		return fmt.Errorf("invalid keyframe count %d", c.Keyframes)
	case c.FadeIn < 0 || c.FadeOut < 0:
		return fmt.Errorf("negative fade duration")
	case c.OutWidth < 0 || c.OutHeight < 0 || (c.OutWidth == 0) != (c.OutHeight == 0):
		return fmt.Errorf("output size %dx%d: give both sides or neither", c.OutWidth, c.OutHeight)
	case c.OutWidth%2 != 0 || c.OutHeight%2 != 0:
		return fmt.Errorf("output size %dx%d must be even for yuv420p", c.OutWidth, c.OutHeight)
	case c.TrimMargin < 0:
		return fmt.Errorf("negative trim margin %d", c.TrimMargin)
	}
	return nil
}

// DefaultQuality returns the quality used when none is given for encoder
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // битрейт 7.5 Мбит/с
	case "h264_nvenc":
		return 28
	default:
		return 23 // CRF x264
	}
}

func even(n int) int {
	return n &^ 1
}
