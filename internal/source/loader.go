// Package source loads the images used as scene textures: image files,
// PDF pages and generated QR codes.
package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/ivlev/scene2video/internal/analyzer"
)

const (
	qrPrefix   = "qr:"
	trimSuffix = "?trim"
)

// Loader resolves texture references:
//
//	qr:<text>        QR code encoding text
//	file.pdf#<page>  one page of a PDF, counted from 1
//	file.pdf         the first page of a PDF
//	image.png        a PNG or JPEG file
//
// A file reference ending in ?trim is cropped to its content, found by
// Detector, plus Margin pixels. Relative paths are resolved against Dir.
type Loader struct {
	Dir      string
	DPI      int
	QRSize   int
	Detector analyzer.Detector
	Margin   int
}

// NewLoader returns a loader for references relative to dir
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir, DPI: 150, QRSize: 256, Detector: analyzer.NewContrastDetector(), Margin: 8}
}

func (l *Loader) LoadTexture(ref string) (image.Image, error) {
	if text, ok := strings.CutPrefix(ref, qrPrefix); ok {
		return QRCode(text, l.QRSize)
	}
	if base, ok := strings.CutSuffix(ref, trimSuffix); ok {
		img, err := l.LoadTexture(base)
		if err != nil {
			return nil, err
		}
		return l.trim(img)
	}

	path, page, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) && l.Dir != "" {
		path = filepath.Join(l.Dir, path)
	}

	var src Source
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		src, err = NewFitzPDFSource(path)
	} else {
		if page != 0 {
			return nil, fmt.Errorf("%s: only PDF references take a page", ref)
		}
		src, err = NewImageSource(path)
	}
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.RenderPage(page, l.DPI)
}

func (l *Loader) trim(img image.Image) (image.Image, error) {
	d := l.Detector
	if d == nil {
		d = analyzer.NewContrastDetector()
	}
	r, ok, err := analyzer.ContentBounds(d, img, l.Margin)
	if err != nil || !ok {
		return img, err // пустая страница остается как есть
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(out, image.Point{}, img, r, draw.Src, nil)
	return out, nil
}

// parseRef splits "file.pdf#3" into the path and a zero based page index
func parseRef(ref string) (string, int, error) {
	path, frag, found := strings.Cut(ref, "#")
	if path == "" {
		return "", 0, fmt.Errorf("empty texture reference %q", ref)
	}
	if !found {
		return path, 0, nil
	}
	n, err := strconv.Atoi(frag)
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("invalid page %q in %q", frag, ref)
	}
	return path, n - 1, nil
}

// QRCode renders text as a size×size QR code
func QRCode(text string, size int) (image.Image, error) {
	if text == "" {
		return nil, fmt.Errorf("empty QR code text")
	}
	q, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return q.Image(size), nil
}
