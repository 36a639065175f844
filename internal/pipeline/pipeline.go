// Package pipeline sequences the seven stages of one video run: still
// image, loop video, playlist selection, audio concatenation, final
// render, thumbnail, publish. Stages execute strictly in order; the first
// failure aborts the rest, and every run ends with exactly one event in
// the store whichever way it goes.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lofi-pipeline/internal/config"
	"lofi-pipeline/internal/events"
	"lofi-pipeline/internal/media"
	"lofi-pipeline/internal/playlist"
	"lofi-pipeline/internal/providers"
)

// EventSink is the slice of the event store the orchestrator writes to.
type EventSink interface {
	Append(ctx context.Context, kind, status string, payload any) (events.Event, error)
}

// Selector picks the audio playlist for a run.
type Selector interface {
	Select(poolDir string, minN, maxN int, manifestPath string) (playlist.Selection, error)
}

// Assembler is the slice of the media layer the orchestrator drives.
type Assembler interface {
	ConcatAudio(ctx context.Context, manifestPath, outPath string) error
	ComposeVideo(ctx context.Context, loopSrc, audioSrc, outPath string, opts media.ComposeOptions) error
}

// Result is the outcome surfaced to the external caller.
type Result struct {
	RunID     string   `json:"run_id"`
	Status    string   `json:"status"`
	VideoID   string   `json:"video_id,omitempty"`
	VideoPath string   `json:"file,omitempty"`
	Tracks    []string `json:"tracks,omitempty"`
}

// Orchestrator owns one run at a time. It is safe to share across
// goroutines: all mutable state lives in the per-run runState.
type Orchestrator struct {
	cfg       *config.Config
	sink      EventSink
	selector  Selector
	assembler Assembler
	prov      providers.Set
	log       zerolog.Logger

	now   func() time.Time
	newID func() string
}

// New wires an Orchestrator. now and newID are replaceable for tests via
// the WithClock and WithIDFunc options.
func New(cfg *config.Config, sink EventSink, selector Selector, assembler Assembler, prov providers.Set, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		sink:      sink,
		selector:  selector,
		assembler: assembler,
		prov:      prov,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDFunc substitutes the run id generator.
func WithIDFunc(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// runState accumulates stage outputs. Each field is written by exactly one
// stage and read only by later ones.
type runState struct {
	runID   string
	dateTag string
	workDir string

	imagePath string
	loopPath  string
	selection playlist.Selection
	audioPath string
	videoPath string
	thumbPath string
	videoID   string
}

type stage struct {
	name string
	fn   func(ctx context.Context, st *runState) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{"generate_image", o.stageGenerateImage},
		{"resolve_loop", o.stageResolveLoop},
		{"select_playlist", o.stageSelectPlaylist},
		{"concat_audio", o.stageConcatAudio},
		{"render_video", o.stageRenderVideo},
		{"render_thumbnail", o.stageRenderThumbnail},
		{"publish", o.stagePublish},
	}
}

// RunOnce executes the full pipeline and appends exactly one terminal
// event, win or lose. No retries happen here: re-invoking RunOnce is the
// only recovery path, and it regenerates every asset from scratch.
func (o *Orchestrator) RunOnce(ctx context.Context) (Result, error) {
	runID := o.newID()
	dateTag := o.now().Format("2006-01-02")

	// Work dir carries the run id, not just the date, so two same-day
	// runs cannot overwrite each other's artifacts.
	st := &runState{
		runID:   runID,
		dateTag: dateTag,
		workDir: filepath.Join(o.cfg.Paths.MediaRoot, fmt.Sprintf("%s_%s", dateTag, shortID(runID))),
	}

	log := o.log.With().Str("run_id", runID).Logger()
	log.Info().Str("work_dir", st.workDir).Msg("pipeline run starting")
	started := o.now()

	if err := os.MkdirAll(st.workDir, 0o755); err != nil {
		failure := fmt.Errorf("prepare workspace: %w", err)
		o.recordFailure(ctx, log, failure)
		return Result{RunID: runID, Status: events.StatusError}, failure
	}

	for _, stg := range o.stages() {
		stageStarted := time.Now()
		err := stg.fn(ctx, st)
		stageDuration.WithLabelValues(stg.name).Observe(time.Since(stageStarted).Seconds())

		if err != nil {
			failure := fmt.Errorf("stage %s: %w", stg.name, err)
			log.Error().Err(err).Str("stage", stg.name).Msg("pipeline run failed")
			o.recordFailure(ctx, log, failure)
			return Result{RunID: runID, Status: events.StatusError}, failure
		}
		log.Info().Str("stage", stg.name).Msg("stage complete")
	}

	payload := map[string]any{
		"video_id": st.videoID,
		"file":     st.videoPath,
		"tracks":   st.selection.Tracks,
	}
	if _, err := o.sink.Append(ctx, events.KindPipeline, events.StatusOK, payload); err != nil {
		log.Error().Err(err).Msg("could not append success event")
	}
	runsTotal.WithLabelValues(events.StatusOK).Inc()

	log.Info().
		Str("video_id", st.videoID).
		Str("file", st.videoPath).
		Dur("elapsed", o.now().Sub(started)).
		Msg("pipeline run complete")

	return Result{
		RunID:     runID,
		Status:    events.StatusOK,
		VideoID:   st.videoID,
		VideoPath: st.videoPath,
		Tracks:    st.selection.Tracks,
	}, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, log zerolog.Logger, failure error) {
	if _, err := o.sink.Append(ctx, events.KindPipeline, events.StatusError, map[string]any{"error": failure.Error()}); err != nil {
		log.Error().Err(err).Msg("could not append failure event")
	}
	runsTotal.WithLabelValues(events.StatusError).Inc()
}

func (o *Orchestrator) stageGenerateImage(ctx context.Context, st *runState) error {
	st.imagePath = filepath.Join(st.workDir, fmt.Sprintf("frame_%s.png", st.dateTag))
	return o.prov.Image.Generate(ctx, o.cfg.Video.ImagePrompt, st.imagePath)
}

func (o *Orchestrator) stageResolveLoop(ctx context.Context, st *runState) error {
	if loop := o.cfg.Paths.LoopVideo; loop != "" {
		if _, err := os.Stat(loop); err != nil {
			return fmt.Errorf("configured loop video: %w", err)
		}
		st.loopPath = loop
		return nil
	}
	st.loopPath = filepath.Join(st.workDir, "loop.mp4")
	return o.prov.Animator.AnimateToLoop(ctx, st.imagePath, st.loopPath, o.cfg.Video.LoopSeconds)
}

func (o *Orchestrator) stageSelectPlaylist(_ context.Context, st *runState) error {
	manifest := filepath.Join(st.workDir, "playlist.txt")
	sel, err := o.selector.Select(o.cfg.Paths.AudioDir, o.cfg.Playlist.MinTracks, o.cfg.Playlist.MaxTracks, manifest)
	if err != nil {
		return err
	}
	st.selection = sel
	return nil
}

func (o *Orchestrator) stageConcatAudio(ctx context.Context, st *runState) error {
	st.audioPath = filepath.Join(st.workDir, "audio.mp3")
	return o.assembler.ConcatAudio(ctx, st.selection.ManifestPath, st.audioPath)
}

func (o *Orchestrator) stageRenderVideo(ctx context.Context, st *runState) error {
	st.videoPath = filepath.Join(st.workDir, fmt.Sprintf("lofi_%s.mp4", st.dateTag))
	return o.assembler.ComposeVideo(ctx, st.loopPath, st.audioPath, st.videoPath, media.ComposeOptions{
		Intro: o.cfg.Paths.IntroVideo,
		Outro: o.cfg.Paths.OutroVideo,
	})
}

func (o *Orchestrator) stageRenderThumbnail(ctx context.Context, st *runState) error {
	st.thumbPath = filepath.Join(st.workDir, fmt.Sprintf("thumb_%s.jpg", st.dateTag))
	return o.prov.Thumbnail.Render(ctx, st.imagePath, o.cfg.Upload.Title, st.thumbPath)
}

func (o *Orchestrator) stagePublish(ctx context.Context, st *runState) error {
	title := fmt.Sprintf("%s | %s", o.cfg.Upload.Title, st.dateTag)
	videoID, err := o.prov.Publisher.Upload(ctx, st.videoPath, title, o.cfg.Upload.Description, o.cfg.Upload.Tags)
	if err != nil {
		return err
	}
	st.videoID = videoID
	return o.prov.Publisher.SetThumbnail(ctx, videoID, st.thumbPath)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
