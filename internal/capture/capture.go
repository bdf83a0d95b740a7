// Package capture turns the latest camera frame into the JPEG snapshot sent
// for classification.
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"strings"
)

const (
	// Width and Height match the offscreen canvas the scanner draws into.
	Width  = 640
	Height = 480

	// Quality matches the browser default for canvas JPEG export.
	Quality = 92
)

// ErrNoFrame is returned when no camera frame is available.
var ErrNoFrame = errors.New("no camera frame available")

// Image is an encoded snapshot. The classifier transport base64-encodes the
// bytes on the wire.
type Image struct {
	JPEG []byte
}

// Snapshot decodes frame (JPEG or PNG), draws it at the origin of a fixed
// 640x480 canvas, and re-encodes it as JPEG. Larger frames are cropped.
func Snapshot(frame []byte) (Image, error) {
	if len(frame) == 0 {
		return Image{}, ErrNoFrame
	}
	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return Image{}, fmt.Errorf("decode frame: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: Quality}); err != nil {
		return Image{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Image{JPEG: buf.Bytes()}, nil
}

// DecodeDataURL accepts either a bare base64 payload or a data URL such as
// "data:image/jpeg;base64,..." and returns the raw bytes.
func DecodeDataURL(v string) ([]byte, error) {
	if strings.HasPrefix(v, "data:") {
		if _, payload, ok := strings.Cut(v, ","); ok {
			v = payload
		}
	}
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("decode base64 frame: %w", err)
	}
	return raw, nil
}
