package video

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGSequence writes each frame to Dir as frame_00000.png, frame_00001.png, ...
type PNGSequence struct {
	Dir    string
	frames int
	enc    png.Encoder
}

// NewPNGSequence creates dir if needed
func NewPNGSequence(dir string) (*PNGSequence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &PNGSequence{Dir: dir, enc: png.Encoder{CompressionLevel: png.BestSpeed}}, nil
}

// FramePath returns the file written for frame i
func (s *PNGSequence) FramePath(i int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("frame_%05d.png", i))
}

func (s *PNGSequence) WriteFrame(img *image.RGBA) error {
	path := s.FramePath(s.frames)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := s.enc.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written
func (s *PNGSequence) Frames() int {
	return s.frames
}

func (s *PNGSequence) Close() error {
	return nil
}
