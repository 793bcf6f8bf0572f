// Package fingerprint reduces rendered frames to small perceptual hashes
// so renders can be compared against reference files.
package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"golang.org/x/image/draw"
	"gopkg.in/yaml.v3"
)

// Size is the side of the downscaled image a Hash is taken from
const Size = 8

// Hash holds the 4 most significant bits of each RGB channel of an 8x8
// downscale, one nibble per byte
type Hash [Size * Size * 3]uint8

// Compute downscales img and quantizes it
func Compute(img image.Image) Hash {
	small := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var h Hash
	for i := 0; i < Size*Size; i++ {
		px := small.Pix[i*4 : i*4+3]
		for c := 0; c < 3; c++ {
			h[i*3+c] = px[c] >> 4 // старшие 4 бита канала
		}
	}
	return h
}

// Distance is the sum of the per channel differences
func Distance(a, b Hash) int {
	d := 0
	for i := range a {
		if a[i] > b[i] {
			d += int(a[i] - b[i])
		} else {
			d += int(b[i] - a[i])
		}
	}
	return d
}

func (h Hash) String() string {
	var sb strings.Builder
	sb.Grow(len(h))
	for _, n := range h {
		sb.WriteByte("0123456789abcdef"[n&0xf])
	}
	return sb.String()
}

// Parse reads a hash written by Hash.String
func Parse(s string) (Hash, error) {
	var h Hash
	if len(s) != len(h) {
		return h, fmt.Errorf("fingerprint: hash has %d digits, want %d", len(s), len(h))
	}
	for i := range h {
		b, err := hex.DecodeString("0" + s[i:i+1])
		if err != nil {
			return h, fmt.Errorf("fingerprint: invalid digit %q at %d", s[i], i)
		}
		h[i] = b[0]
	}
	return h, nil
}

func (h Hash) MarshalYAML() (any, error) {
	return h.String(), nil
}

func (h *Hash) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*h = v
	return nil
}

var ErrMismatch = errors.New("fingerprint mismatch")

// MismatchError lists the frames whose distance exceeds the tolerance
type MismatchError struct {
	Frames    []int
	Distances []int
	Tolerance int
}

func (e *MismatchError) Error() string {
	parts := make([]string, len(e.Frames))
	for i, f := range e.Frames {
		parts[i] = fmt.Sprintf("#%d (%d)", f, e.Distances[i])
	}
	return fmt.Sprintf("%d frame(s) above tolerance %d: %s", len(e.Frames), e.Tolerance, strings.Join(parts, ", "))
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

// Compare checks got against ref frame by frame
func Compare(ref, got []Hash, tolerance int) error {
	if len(ref) != len(got) {
		return fmt.Errorf("%w: %d reference frames, %d rendered", ErrMismatch, len(ref), len(got))
	}
	var mm MismatchError
	for i := range ref {
		if d := Distance(ref[i], got[i]); d > tolerance {
			mm.Frames = append(mm.Frames, i)
			mm.Distances = append(mm.Distances, d)
		}
	}
	if len(mm.Frames) > 0 {
		mm.Tolerance = tolerance
		return &mm
	}
	return nil
}

// File is a reference fingerprint file
type File struct {
	Scene  string `yaml:"scene"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Hashes []Hash `yaml:"hashes"`
}

func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func Write(f *File, path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
