package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// ContrastDetector marks pixels where the Sobel gradient of the luma
// exceeds EdgeThreshold, joins nearby edges and reports the connected
// regions of at least MinArea pixels
type ContrastDetector struct {
	MinArea       int
	EdgeThreshold float64
	JoinRadius    int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinArea:       500,
		EdgeThreshold: 30,
		JoinRadius:    4,
	}
}

func (d *ContrastDetector) Detect(img image.Image) ([]Region, error) {
	gray := toGray(img)
	// Края -> расширение, чтобы склеить буквы в блоки -> связные области
	return edges(gray, d.EdgeThreshold).dilate(d.JoinRadius).regions(d.MinArea), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, img, b.Min, draw.Src)
	return g
}

// edges thresholds the Sobel gradient magnitude. The border row and
// column are left unset.
func edges(g *image.Gray, threshold float64) *mask {
	b := g.Bounds()
	m := newMask(b)
	px := func(x, y int) float64 { return float64(g.Pix[g.PixOffset(x, y)]) }

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx := px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1)
			gy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			if math.Hypot(gx, gy) > threshold {
				m.set(x, y)
			}
		}
	}
	return m
}

// BackgroundDetector treats the color of the top left pixel as background
// and marks every pixel differing from it by more than Tolerance in any
// channel (8 bit scale)
type BackgroundDetector struct {
	Tolerance uint8
	MinArea   int
}

func NewBackgroundDetector() *BackgroundDetector {
	return &BackgroundDetector{Tolerance: 16, MinArea: 4}
}

func (d *BackgroundDetector) Detect(img image.Image) ([]Region, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, nil
	}
	bg := color.NRGBAModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.NRGBA)
	m := newMask(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if differs(c.R, bg.R, d.Tolerance) || differs(c.G, bg.G, d.Tolerance) ||
				differs(c.B, bg.B, d.Tolerance) || differs(c.A, bg.A, d.Tolerance) {
				m.set(x, y)
			}
		}
	}
	return m.regions(d.MinArea), nil
}

func differs(a, b, tolerance uint8) bool {
	if a > b {
		return a-b > tolerance
	}
	return b-a > tolerance
}
