package system

import (
	"bytes"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindLatestScene(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	files := map[string]time.Duration{
		"old.yaml":  -2 * time.Hour,
		"new.yml":   -time.Minute,
		"other.txt": 0,
	}
	for name, age := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("name: x\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, now.Add(age), now.Add(age)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := FindLatestScene(dir)
	if err != nil {
		t.Fatalf("FindLatestScene failed: %v", err)
	}
	if filepath.Base(got) != "new.yml" {
		t.Errorf("Expected new.yml, got %s", got)
	}

	if _, err := FindLatestAudio(dir); err == nil {
		t.Error("Expected an error for a directory without audio")
	}
}

func TestPickEncoder(t *testing.T) {
	tests := []struct {
		list string
		want string
	}{
		{" V....D h264_nvenc  NVIDIA NVENC\n V....D libx264", "h264_nvenc"},
		{" V....D h264_videotoolbox\n V....D h264_nvenc", "h264_videotoolbox"},
		{" V....D libx264", "libx264"},
		{"", "libx264"},
	}
	for _, tt := range tests {
		if got := pickEncoder(tt.list); got != tt.want {
			t.Errorf("pickEncoder(%q) = %s, want %s", tt.list, got, tt.want)
		}
	}
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 16, 9)

	img := p.Get(rect)
	if img.Bounds() != rect {
		t.Fatalf("Expected %v, got %v", rect, img.Bounds())
	}
	p.Put(img)
	p.Put(nil)
	p.Put(image.NewRGBA(image.Rect(0, 0, 3, 3)))

	if got := p.Get(image.Rect(0, 0, 3, 3)); got.Bounds().Dx() != 3 {
		t.Errorf("Expected a 3x3 frame, got %v", got.Bounds())
	}
}

func TestLogger(t *testing.T) {
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("Expected the default logger to be silent")
	}

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	Logger().Info("frame", "index", 3)
	if !strings.Contains(buf.String(), "index=3") {
		t.Errorf("Expected the record to be written, got %q", buf.String())
	}

	SetLogger(nil)
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("Expected SetLogger(nil) to silence logging")
	}
}

func TestHostStats(t *testing.T) {
	s := ReadHostStats()
	if s.LogicalCPUs < 1 {
		t.Errorf("Expected at least one CPU, got %d", s.LogicalCPUs)
	}
	if DefaultWorkers() < 1 {
		t.Error("Expected at least one worker")
	}
	if !strings.Contains(s.String(), "CPU:") {
		t.Errorf("Unexpected stats line %q", s.String())
	}
	if got := formatBytes(1536); got != "1.5 KiB" {
		t.Errorf("formatBytes(1536) = %s", got)
	}
}

func TestHasFilter(t *testing.T) {
	list := "Filters:\n T.. = Timeline support\n TSC drawtext           V->V       Draw text\n ... fade              V->V       Fade in/out"
	if !hasFilter(list, "drawtext") || !hasFilter(list, "fade") {
		t.Error("Expected drawtext and fade to be found")
	}
	if hasFilter(list, "zoompan") || hasFilter(list, "Timeline") {
		t.Error("Unexpected filter match")
	}
}
