package providers

import (
	"context"

	"lofi-pipeline/internal/media"
)

// FFmpegAnimator approximates a real animation provider by looping the
// still with a gentle zoom. Its output is a normal video file, so the
// downstream loop/concat stages behave exactly as with a provider-made
// clip.
type FFmpegAnimator struct {
	Assembler *media.Assembler
	FPS       int
}

func (a *FFmpegAnimator) AnimateToLoop(ctx context.Context, imagePath, outPath string, seconds int) error {
	if err := a.Assembler.AnimateStill(ctx, imagePath, outPath, seconds, a.FPS); err != nil {
		return &GenerationError{Stage: "animation", Err: err}
	}
	return nil
}
