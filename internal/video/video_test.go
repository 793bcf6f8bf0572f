package video

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestBuildFFmpegArgs(t *testing.T) {
	base := Params{Width: 320, Height: 240, FPS: 60, Quality: 23}

	tests := []struct {
		encoder string
		want    []string
	}{
		{encoder: "libx264", want: []string{"-crf 23", "-preset medium"}},
		{encoder: "h264_nvenc", want: []string{"-cq 23"}},
		{encoder: "h264_videotoolbox", want: []string{"-b:v 2300k"}},
	}

	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			p := base
			p.Encoder = tt.encoder
			args := strings.Join(buildFFmpegArgs("out.mp4", p), " ")

			for _, want := range append(tt.want,
				"-f rawvideo", "-pixel_format rgba", "-video_size 320x240",
				"-framerate 60", "-i -", "-c:v "+tt.encoder, "-pix_fmt yuv420p") {
				if !strings.Contains(args, want) {
					t.Errorf("Expected %q in %q", want, args)
				}
			}
			if !strings.HasSuffix(args, " out.mp4") {
				t.Errorf("Expected the output path last, got %q", args)
			}
			if strings.Contains(args, "-vf") || strings.Contains(args, "-map") {
				t.Errorf("Unexpected filter or audio arguments in %q", args)
			}
		})
	}

	p := base
	p.Encoder = "libx264"
	p.Filter = "fade=t=in:st=0:d=1"
	p.AudioPath = "music.mp3"
	args := strings.Join(buildFFmpegArgs("out.mp4", p), " ")
	for _, want := range []string{"-vf fade=t=in:st=0:d=1", "-i music.mp3", "-map 0:v -map 1:a", "-shortest"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected %q in %q", want, args)
		}
	}
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, img); err != nil {
		t.Fatalf("writeRawRGBA failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), img.Pix) {
		t.Error("Expected the pixel buffer as is")
	}

	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	buf.Reset()
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatalf("writeRawRGBA failed: %v", err)
	}
	if buf.Len() != 2*2*4 {
		t.Fatalf("Expected %d bytes, got %d", 2*2*4, buf.Len())
	}
	if got := buf.Bytes()[0]; got != img.Pix[img.PixOffset(1, 1)] {
		t.Errorf("Expected the sub-image origin first, got %d", got)
	}
}

func TestPNGSequence(t *testing.T) {
	dir := t.TempDir()
	seq, err := NewPNGSequence(dir + "/frames")
	if err != nil {
		t.Fatalf("NewPNGSequence failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		img.Set(0, 0, color.RGBA{uint8(i * 100), 0, 0, 255})
		if err := seq.WriteFrame(img); err != nil {
			t.Fatalf("WriteFrame %d failed: %v", i, err)
		}
	}
	if err := seq.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if seq.Frames() != 3 {
		t.Errorf("Expected 3 frames, got %d", seq.Frames())
	}

	f, err := os.Open(seq.FramePath(2))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 200 {
		t.Errorf("Expected frame 2 to be written last, got red %d", r>>8)
	}
}

func TestIsPNGTarget(t *testing.T) {
	for output, want := range map[string]bool{
		"out.mp4":       false,
		"frames/":       true,
		"frames":        true,
		"dir/movie.mov": false,
		"../frames":     true,
		"./frames":      true,
		"frames.d/run":  true,
		"frames.d/":     true,
		"../out.mp4":    false,
	} {
		if got := IsPNGTarget(output); got != want {
			t.Errorf("IsPNGTarget(%q) = %v, want %v", output, got, want)
		}
	}
}

func TestOpenRejectsBadParams(t *testing.T) {
	if _, err := Open(t.Context(), "out.mp4", Params{Width: 0, Height: 10, FPS: 30}); err == nil {
		t.Error("Expected an error for a zero width")
	}
}

func TestLogBufferConcurrent(t *testing.T) {
	var b logBuffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Write([]byte("frame= 1\n"))
		}
	}()
	for i := 0; i < 100; i++ {
		_ = b.String()
	}
	wg.Wait()
	if got := strings.Count(b.String(), "\n"); got != 1000 {
		t.Errorf("Expected 1000 lines, got %d", got)
	}
}
