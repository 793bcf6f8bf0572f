package source

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/scene2video/internal/analyzer"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref     string
		path    string
		page    int
		wantErr bool
	}{
		{ref: "slides.pdf", path: "slides.pdf", page: 0},
		{ref: "slides.pdf#3", path: "slides.pdf", page: 2},
		{ref: "dir/a.png", path: "dir/a.png", page: 0},
		{ref: "slides.pdf#0", wantErr: true},
		{ref: "slides.pdf#x", wantErr: true},
		{ref: "#2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			path, page, err := parseRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got %s page %d", path, page)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRef failed: %v", err)
			}
			if path != tt.path || page != tt.page {
				t.Errorf("Expected %s page %d, got %s page %d", tt.path, tt.page, path, page)
			}
		})
	}
}

func TestQRTexture(t *testing.T) {
	l := NewLoader("")
	img, err := l.LoadTexture("qr:scene2video")
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("Expected a 256x256 code, got %v", b)
	}

	dark, light := 0, 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r == 0 {
				dark++
			} else {
				light++
			}
		}
	}
	if dark == 0 || light == 0 {
		t.Errorf("Expected both dark and light modules, got %d dark, %d light", dark, light)
	}

	if _, err := l.LoadTexture("qr:"); err == nil {
		t.Error("Expected an error for an empty QR text")
	}
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
}

func TestImageTexture(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), color.RGBA{0, 0, 255, 255})
	writePNG(t, filepath.Join(dir, "a.png"), color.RGBA{255, 0, 0, 255})

	l := NewLoader(dir)
	img, err := l.LoadTexture("b.png")
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if _, _, b, _ := img.At(1, 1).RGBA(); b != 0xffff {
		t.Errorf("Expected a blue texture, got %v", img.At(1, 1))
	}
	if _, err := l.LoadTexture("b.png#2"); err == nil {
		t.Error("Expected an error for a page on an image")
	}
	if _, err := l.LoadTexture("missing.png"); err == nil {
		t.Error("Expected an error for a missing file")
	}

	src, err := NewImageSource(dir)
	if err != nil {
		t.Fatalf("NewImageSource failed: %v", err)
	}
	if src.PageCount() != 2 {
		t.Fatalf("Expected 2 pages, got %d", src.PageCount())
	}
	w, h, err := src.GetPageDimensions(0)
	if err != nil || w != 3 || h != 2 {
		t.Errorf("Expected 3x2, got %gx%g (%v)", w, h, err)
	}
	first, err := src.RenderPage(0, 0)
	if err != nil {
		t.Fatalf("RenderPage failed: %v", err)
	}
	if r, _, _, _ := first.At(0, 0).RGBA(); r != 0xffff {
		t.Errorf("Expected pages in name order, got %v first", first.At(0, 0))
	}
	if _, err := src.RenderPage(2, 0); err == nil {
		t.Error("Expected an error for a page out of range")
	}
}

func TestTrimTexture(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
			if x >= 10 && x < 20 && y >= 5 && y < 15 {
				img.Set(x, y, color.Black)
			}
		}
	}
	f, err := os.Create(filepath.Join(dir, "page.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	l := NewLoader(dir)
	l.Detector = analyzer.NewBackgroundDetector()
	l.Margin = 2

	got, err := l.LoadTexture("page.png?trim")
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if b := got.Bounds(); b.Dx() != 14 || b.Dy() != 14 {
		t.Errorf("Expected a 14x14 crop, got %v", b)
	}
	if r, _, _, _ := got.At(2, 2).RGBA(); r != 0 {
		t.Errorf("Expected the content at the margin, got %v", got.At(2, 2))
	}

	full, err := l.LoadTexture("page.png")
	if err != nil {
		t.Fatalf("LoadTexture failed: %v", err)
	}
	if full.Bounds().Dx() != 40 {
		t.Errorf("Expected the untrimmed page, got %v", full.Bounds())
	}
}
