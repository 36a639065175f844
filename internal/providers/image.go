package providers

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Default 16:9 frame size. The real providers return at least this, so the
// stub matches it and ffmpeg has enough pixels to work with downstream.
const (
	frameWidth  = 1920
	frameHeight = 1080
)

// StubImageGenerator renders a deterministic placeholder illustration:
// a vertical gradient, a warm centerpiece and the prompt as a caption.
// It keeps the contract identical to the external provider so swapping
// them only touches wiring.
type StubImageGenerator struct{}

func (StubImageGenerator) Generate(_ context.Context, prompt, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &GenerationError{Stage: "image", Err: err}
	}

	img := image.NewRGBA(image.Rect(0, 0, frameWidth, frameHeight))
	fillGradient(img, img.Bounds(),
		color.RGBA{R: 20, G: 24, B: 52, A: 255},
		color.RGBA{R: 112, G: 93, B: 198, A: 255},
	)

	// Warm centerpiece, vaguely a table lamp.
	fw, fh := float64(frameWidth), float64(frameHeight)
	radius := int(fh * 0.18)
	cx, cy := int(fw*0.32), int(fh*0.58)
	fillEllipse(img, cx, cy, radius, radius, color.RGBA{R: 255, G: 179, B: 71, A: 255})
	fillEllipse(img, cx, cy, radius/2, radius/2, color.RGBA{R: 90, G: 50, B: 30, A: 255})

	// Caption band along the bottom with the (truncated) prompt.
	bandHeight := int(fh * 0.22)
	band := image.Rect(0, frameHeight-bandHeight, frameWidth, frameHeight)
	fillRect(img, band, color.RGBA{A: 160})

	text := prompt
	if text == "" {
		text = "Lo-Fi Midnight Café"
	}
	drawCenteredText(img, band, truncate(text, 120), color.RGBA{R: 240, G: 240, B: 255, A: 255})

	f, err := os.Create(outPath)
	if err != nil {
		return &GenerationError{Stage: "image", Err: err}
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return &GenerationError{Stage: "image", Err: err}
	}
	return nil
}

// HTTPImageGenerator fetches a generated frame from an external image
// service that accepts the prompt in the URL path. Transient failures are
// retried a few times before giving up.
type HTTPImageGenerator struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
	sleep   func(time.Duration)
}

func NewHTTPImageGenerator(baseURL string, log zerolog.Logger) *HTTPImageGenerator {
	return &HTTPImageGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
		sleep:   time.Sleep,
	}
}

func (g *HTTPImageGenerator) Generate(ctx context.Context, prompt, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &GenerationError{Stage: "image", Err: err}
	}

	imageURL := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true",
		g.baseURL, url.PathEscape(prompt), frameWidth, frameHeight)

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = g.download(ctx, imageURL, outPath)
		if err == nil {
			return nil
		}
		g.log.Warn().Int("attempt", attempt).Err(err).Msg("image fetch failed")
		g.sleep(time.Duration(attempt) * 3 * time.Second)
	}
	return &GenerationError{Stage: "image", Err: fmt.Errorf("after 3 attempts: %w", err)}
}

func (g *HTTPImageGenerator) download(ctx context.Context, imageURL, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from image provider", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	// An HTML error page this small is not an image.
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}
	return os.WriteFile(outPath, data, 0o644)
}
