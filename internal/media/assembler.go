// Package media drives the external transcoder: audio concatenation, loop
// stretching, intro/outro splicing and duration probing. Every invocation
// is synchronous and checked for a non-zero exit.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
)

// ProbeError reports an unreadable or unparseable media file.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// TranscodeError reports a failed transcoder invocation.
type TranscodeError struct {
	Op  string
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode (%s): %v", e.Op, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ComposeOptions carries the optional intro/outro segments spliced around
// the loop. Empty strings mean "none".
type ComposeOptions struct {
	Intro string
	Outro string
}

// Assembler sequences ffmpeg/ffprobe calls for one run.
type Assembler struct {
	runner Runner
	log    zerolog.Logger
}

// NewAssembler wires an Assembler over the given runner.
func NewAssembler(runner Runner, log zerolog.Logger) *Assembler {
	return &Assembler{runner: runner, log: log}
}

// ProbeDuration returns the duration of a media file in seconds.
func (a *Assembler) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := a.runner.Output(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}
	dur, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: fmt.Errorf("unexpected ffprobe output %q: %w", out, err)}
	}
	return dur, nil
}

// ConcatAudio joins every manifest entry in order using the concat
// demuxer. The streams are copied, not re-encoded.
func (a *Assembler) ConcatAudio(ctx context.Context, manifestPath, outPath string) error {
	a.log.Info().Str("manifest", manifestPath).Str("out", outPath).Msg("concatenating audio")

	err := a.runner.Run(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outPath,
	)
	if err != nil {
		return &TranscodeError{Op: "concat audio", Err: err}
	}
	return nil
}

// ComposeVideo renders the final video: the loop source stretched to the
// audio duration, muxed with the audio track, with optional intro/outro
// spliced in front of and behind the loop at the video-stream level.
// Output duration follows -shortest semantics.
//
// Temporary intermediates are scoped to this call and removed on every
// exit path, success or failure.
func (a *Assembler) ComposeVideo(ctx context.Context, loopSrc, audioSrc, outPath string, opts ComposeOptions) error {
	dur, err := a.ProbeDuration(ctx, audioSrc)
	if err != nil {
		return err
	}
	durArg := fmt.Sprintf("%.3f", dur)

	a.log.Info().
		Str("loop", loopSrc).
		Str("audio", audioSrc).
		Float64("audio_seconds", dur).
		Bool("intro", opts.Intro != "").
		Bool("outro", opts.Outro != "").
		Msg("composing video")

	if opts.Intro == "" && opts.Outro == "" {
		err := a.runner.Run(ctx, "ffmpeg", "-y",
			"-stream_loop", "-1",
			"-i", loopSrc,
			"-t", durArg,
			"-i", audioSrc,
			"-shortest",
			"-c:v", "libx264",
			"-c:a", "aac",
			"-pix_fmt", "yuv420p",
			outPath,
		)
		if err != nil {
			return &TranscodeError{Op: "loop+mux", Err: err}
		}
		return nil
	}

	workDir := filepath.Dir(outPath)

	// Silent, duration-matched render of the loop.
	tmpLoop, err := tempName(workDir, "loop_*.mp4")
	if err != nil {
		return &TranscodeError{Op: "temp loop", Err: err}
	}
	defer func() { _ = os.Remove(tmpLoop) }()

	if err := a.runner.Run(ctx, "ffmpeg", "-y",
		"-stream_loop", "-1",
		"-i", loopSrc,
		"-t", durArg,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		tmpLoop,
	); err != nil {
		return &TranscodeError{Op: "render loop", Err: err}
	}

	// Video-stream concat of [intro?, loop, outro?].
	tmpConcat, err := tempName(workDir, "concat_*.mp4")
	if err != nil {
		return &TranscodeError{Op: "temp concat", Err: err}
	}
	defer func() { _ = os.Remove(tmpConcat) }()

	args := []string{"-y"}
	n := 0
	if opts.Intro != "" {
		args = append(args, "-i", opts.Intro)
		n++
	}
	args = append(args, "-i", tmpLoop)
	n++
	if opts.Outro != "" {
		args = append(args, "-i", opts.Outro)
		n++
	}
	args = append(args,
		"-filter_complex", fmt.Sprintf("concat=n=%d:v=1:a=0[v]", n),
		"-map", "[v]",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		tmpConcat,
	)
	if err := a.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return &TranscodeError{Op: "concat segments", Err: err}
	}

	// Final mux with the original audio.
	if err := a.runner.Run(ctx, "ffmpeg", "-y",
		"-i", tmpConcat,
		"-i", audioSrc,
		"-shortest",
		"-c:v", "libx264",
		"-c:a", "aac",
		outPath,
	); err != nil {
		return &TranscodeError{Op: "final mux", Err: err}
	}
	return nil
}

// AnimateStill loops a still image into a short video clip with a gentle
// zoom, enough to exercise the downstream loop/concat path when no real
// animation provider is configured.
func (a *Assembler) AnimateStill(ctx context.Context, imagePath, outPath string, seconds, fps int) error {
	if seconds < 1 {
		seconds = 1
	}
	if fps < 1 {
		fps = 30
	}

	err := a.runner.Run(ctx, "ffmpeg", "-y",
		"-loop", "1",
		"-i", imagePath,
		"-vf", fmt.Sprintf("scale=1920:1080,zoompan=z='min(zoom+0.0015,1.1)':d=%d:s=1920x1080:fps=%d", seconds*fps, fps),
		"-t", strconv.Itoa(seconds),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
	if err != nil {
		return &TranscodeError{Op: "animate still", Err: err}
	}
	return nil
}

// tempName reserves a uniquely named file in dir and returns its path.
// The file exists (empty) so concurrent calls cannot collide; ffmpeg -y
// overwrites it.
func tempName(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	_ = f.Close()
	return name, nil
}
