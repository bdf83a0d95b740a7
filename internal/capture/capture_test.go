package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSnapshotFromPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(320, 240, color.RGBA{B: 255, A: 255})); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	snap, err := Snapshot(buf.Bytes())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(snap.JPEG))
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("expected %dx%d, got %dx%d", Width, Height, b.Dx(), b.Dy())
	}
}

func TestSnapshotCropsLargeFrames(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(1280, 720, color.White), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	snap, err := Snapshot(buf.Bytes())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(snap.JPEG))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width != Width || cfg.Height != Height {
		t.Fatalf("expected cropped canvas, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestSnapshotErrors(t *testing.T) {
	if _, err := Snapshot(nil); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
	if _, err := Snapshot([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("frame"))
	for _, in := range []string{payload, "data:image/jpeg;base64," + payload} {
		raw, err := DecodeDataURL(in)
		if err != nil {
			t.Fatalf("decode %q: %v", in, err)
		}
		if string(raw) != "frame" {
			t.Fatalf("unexpected payload %q", raw)
		}
	}
	if _, err := DecodeDataURL("data:image/jpeg;base64,@@@"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
