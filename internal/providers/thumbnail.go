package providers

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // decode sources saved as PNG
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// Platform minimum thumbnail resolution.
const (
	thumbWidth  = 1280
	thumbHeight = 720
)

// CanvasThumbnailRenderer derives the thumbnail from the generated still:
// undersized inputs are upsampled to the platform minimum, then a dark
// caption bar with the video title is drawn along the bottom.
type CanvasThumbnailRenderer struct{}

func (CanvasThumbnailRenderer) Render(_ context.Context, imagePath, title, outPath string) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return &GenerationError{Stage: "thumbnail", Err: err}
	}
	src, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return &GenerationError{Stage: "thumbnail", Err: fmt.Errorf("decode %s: %w", imagePath, err)}
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < thumbWidth || h < thumbHeight {
		w, h = thumbWidth, thumbHeight
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, bounds, xdraw.Src, nil)

	barHeight := int(float64(h) * 0.28)
	bar := image.Rect(0, h-barHeight, w, h)
	fillRect(canvas, bar, color.RGBA{R: 16, G: 16, B: 30, A: 200})

	text := title
	if text == "" {
		text = "Lo-Fi Midnight Café"
	}
	drawCenteredText(canvas, bar, truncate(text, 60), color.RGBA{R: 245, G: 238, B: 219, A: 255})

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &GenerationError{Stage: "thumbnail", Err: err}
	}
	out, err := os.Create(outPath)
	if err != nil {
		return &GenerationError{Stage: "thumbnail", Err: err}
	}
	defer out.Close()
	if err := jpeg.Encode(out, canvas, &jpeg.Options{Quality: 90}); err != nil {
		return &GenerationError{Stage: "thumbnail", Err: err}
	}
	return nil
}
