// Package providers holds the asset provider contracts and both of their
// variants: deterministic local stand-ins and real external-service calls.
// Which variant runs is decided once at wiring time from the configured
// credentials; callers never re-check per call.
package providers

import (
	"context"
	"fmt"
	"time"

	"lofi-pipeline/internal/config"
	"lofi-pipeline/internal/logging"
	"lofi-pipeline/internal/media"
)

// GenerationError reports a failed asset generation (image or animation).
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PublishError reports a failed upload or thumbnail set. Artifacts already
// on disk are left in place for manual recovery.
type PublishError struct {
	Op  string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish (%s): %v", e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ImageGenerator produces the still frame the rest of the run builds on.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, outPath string) error
}

// Animator turns the still into a playable video loop of the requested
// duration (floored at one second).
type Animator interface {
	AnimateToLoop(ctx context.Context, imagePath, outPath string, seconds int) error
}

// ThumbnailRenderer derives the upload thumbnail from the still. Inputs
// below the platform minimum are upsampled, never rejected.
type ThumbnailRenderer interface {
	Render(ctx context.Context, imagePath, title, outPath string) error
}

// Publisher uploads the final video and its thumbnail to the hosting
// platform. The simulated variant returns ids prefixed with "sim-".
type Publisher interface {
	Upload(ctx context.Context, videoPath, title, description string, tags []string) (videoID string, err error)
	SetThumbnail(ctx context.Context, videoID, thumbnailPath string) error
}

// Set bundles one concrete provider per contract, selected at startup.
type Set struct {
	Image     ImageGenerator
	Animator  Animator
	Thumbnail ThumbnailRenderer
	Publisher Publisher
}

// FromConfig wires the provider set. Credentials present selects the real
// YouTube publisher; IMAGE_API_URL present selects the HTTP image
// generator; everything else stays on the deterministic local variants.
func FromConfig(cfg *config.Config, creds config.Credentials, assembler *media.Assembler) Set {
	log := logging.WithComponent("providers")

	var image ImageGenerator
	if url := config.ImageAPIURL(); url != "" {
		image = NewHTTPImageGenerator(url, log)
		log.Info().Str("url", url).Msg("using external image provider")
	} else {
		image = StubImageGenerator{}
		log.Info().Msg("no image provider configured, using deterministic local generator")
	}

	var publisher Publisher
	if creds.Complete() {
		publisher = NewYouTubePublisher(creds, cfg.Upload, log)
		log.Info().Msg("youtube credentials present, real uploads enabled")
	} else {
		publisher = NewSimulatedPublisher(cfg.Paths.MediaRoot, log, time.Now)
		log.Info().Msg("youtube credentials absent, uploads will be simulated")
	}

	return Set{
		Image:     image,
		Animator:  &FFmpegAnimator{Assembler: assembler, FPS: cfg.Video.FPS},
		Thumbnail: CanvasThumbnailRenderer{},
		Publisher: publisher,
	}
}
