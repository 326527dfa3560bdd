package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return cfg.Width, cfg.Height
}

func TestPreparePhotoDownscalesWide(t *testing.T) {
	data := encodePNG(t, 400, 100)

	out, err := PreparePhoto(data, 200)
	if err != nil {
		t.Fatal(err)
	}
	w, h := decodeSize(t, out)
	if w != 200 || h != 50 {
		t.Errorf("size = %dx%d, want 200x50", w, h)
	}
}

func TestPreparePhotoDownscalesTall(t *testing.T) {
	data := encodePNG(t, 100, 400)

	out, err := PreparePhoto(data, 200)
	if err != nil {
		t.Fatal(err)
	}
	w, h := decodeSize(t, out)
	if w != 50 || h != 200 {
		t.Errorf("size = %dx%d, want 50x200", w, h)
	}
}

func TestPreparePhotoKeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 120, 80)

	out, err := PreparePhoto(data, 200)
	if err != nil {
		t.Fatal(err)
	}
	w, h := decodeSize(t, out)
	if w != 120 || h != 80 {
		t.Errorf("size = %dx%d, want 120x80", w, h)
	}
}

func TestPreparePhotoRejectsGarbage(t *testing.T) {
	if _, err := PreparePhoto([]byte("not an image"), 200); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"image/gif", true},
		{"image/svg+xml", false},
		{"audio/mpeg", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsImage(tt.mime); got != tt.want {
			t.Errorf("IsImage(%q) = %v", tt.mime, got)
		}
	}
}
