package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lofi-pipeline/internal/config"
	"lofi-pipeline/internal/events"
	"lofi-pipeline/internal/media"
	"lofi-pipeline/internal/playlist"
	"lofi-pipeline/internal/providers"
)

type recordedEvent struct {
	kind    string
	status  string
	payload any
}

type fakeSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *fakeSink) Append(_ context.Context, kind, status string, payload any) (events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{kind: kind, status: status, payload: payload})
	return events.Event{ID: int64(len(s.events))}, nil
}

func (s *fakeSink) all() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.events...)
}

type fakeImage struct {
	err   error
	calls int
}

func (f *fakeImage) Generate(context.Context, string, string) error {
	f.calls++
	return f.err
}

type fakeAnimator struct {
	err   error
	calls int
}

func (f *fakeAnimator) AnimateToLoop(context.Context, string, string, int) error {
	f.calls++
	return f.err
}

type fakeThumbnail struct {
	err   error
	calls int
}

func (f *fakeThumbnail) Render(context.Context, string, string, string) error {
	f.calls++
	return f.err
}

type fakePublisher struct {
	uploadErr    error
	thumbnailErr error
	uploads      int
	thumbnails   int
}

func (f *fakePublisher) Upload(context.Context, string, string, string, []string) (string, error) {
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "sim-42", nil
}

func (f *fakePublisher) SetThumbnail(context.Context, string, string) error {
	f.thumbnails++
	return f.thumbnailErr
}

type fakeSelector struct {
	err   error
	calls int
}

func (f *fakeSelector) Select(_ string, _, _ int, manifestPath string) (playlist.Selection, error) {
	f.calls++
	if f.err != nil {
		return playlist.Selection{}, f.err
	}
	return playlist.Selection{
		ManifestPath: manifestPath,
		Tracks:       []string{"a.mp3", "b.mp3", "c.mp3"},
	}, nil
}

type fakeAssembler struct {
	concatErr   error
	composeErr  error
	concats     int
	composes    int
	composeOpts media.ComposeOptions
}

func (f *fakeAssembler) ConcatAudio(context.Context, string, string) error {
	f.concats++
	return f.concatErr
}

func (f *fakeAssembler) ComposeVideo(_ context.Context, _, _, _ string, opts media.ComposeOptions) error {
	f.composes++
	f.composeOpts = opts
	return f.composeErr
}

type harness struct {
	orch      *Orchestrator
	sink      *fakeSink
	image     *fakeImage
	animator  *fakeAnimator
	thumbnail *fakeThumbnail
	publisher *fakePublisher
	selector  *fakeSelector
	assembler *fakeAssembler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.MediaRoot = t.TempDir()
	cfg.Paths.LoopVideo = "" // force the animator stage
	cfg.Paths.IntroVideo = ""
	cfg.Paths.OutroVideo = ""

	h := &harness{
		sink:      &fakeSink{},
		image:     &fakeImage{},
		animator:  &fakeAnimator{},
		thumbnail: &fakeThumbnail{},
		publisher: &fakePublisher{},
		selector:  &fakeSelector{},
		assembler: &fakeAssembler{},
	}
	prov := providers.Set{
		Image:     h.image,
		Animator:  h.animator,
		Thumbnail: h.thumbnail,
		Publisher: h.publisher,
	}
	h.orch = New(cfg, h.sink, h.selector, h.assembler, prov, zerolog.Nop(),
		WithClock(func() time.Time { return time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC) }),
		WithIDFunc(func() string { return "0123456789abcdef" }),
	)
	return h
}

func payloadJSON(t *testing.T, ev recordedEvent) map[string]any {
	t.Helper()
	raw, err := json.Marshal(ev.payload)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestRunOnceSuccess(t *testing.T) {
	h := newHarness(t)

	result, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, events.StatusOK, result.Status)
	assert.Equal(t, "sim-42", result.VideoID)
	assert.Contains(t, result.VideoPath, "lofi_2026-08-30.mp4")
	assert.Contains(t, result.VideoPath, "2026-08-30_01234567")
	assert.Equal(t, []string{"a.mp3", "b.mp3", "c.mp3"}, result.Tracks)

	recorded := h.sink.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.KindPipeline, recorded[0].kind)
	assert.Equal(t, events.StatusOK, recorded[0].status)

	payload := payloadJSON(t, recorded[0])
	assert.Equal(t, "sim-42", payload["video_id"])
	assert.Contains(t, payload["file"], "lofi_2026-08-30.mp4")
	assert.Len(t, payload["tracks"], 3)

	// Every stage ran exactly once.
	assert.Equal(t, 1, h.image.calls)
	assert.Equal(t, 1, h.animator.calls)
	assert.Equal(t, 1, h.selector.calls)
	assert.Equal(t, 1, h.assembler.concats)
	assert.Equal(t, 1, h.assembler.composes)
	assert.Equal(t, 1, h.thumbnail.calls)
	assert.Equal(t, 1, h.publisher.uploads)
	assert.Equal(t, 1, h.publisher.thumbnails)
}

func TestRunOnceFailFastPerStage(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		stage  string
		inject func(h *harness)
		// laterCalls asserts that nothing after the failed stage ran.
		laterCalls func(t *testing.T, h *harness)
	}{
		{
			stage:  "generate_image",
			inject: func(h *harness) { h.image.err = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.animator.calls)
				assert.Zero(t, h.selector.calls)
				assert.Zero(t, h.assembler.concats)
				assert.Zero(t, h.publisher.uploads)
			},
		},
		{
			stage:  "resolve_loop",
			inject: func(h *harness) { h.animator.err = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.selector.calls)
				assert.Zero(t, h.publisher.uploads)
			},
		},
		{
			stage:  "select_playlist",
			inject: func(h *harness) { h.selector.err = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.assembler.concats)
				assert.Zero(t, h.publisher.uploads)
			},
		},
		{
			stage:  "concat_audio",
			inject: func(h *harness) { h.assembler.concatErr = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.assembler.composes)
				assert.Zero(t, h.publisher.uploads)
			},
		},
		{
			stage:  "render_video",
			inject: func(h *harness) { h.assembler.composeErr = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.thumbnail.calls)
				assert.Zero(t, h.publisher.uploads)
			},
		},
		{
			stage:  "render_thumbnail",
			inject: func(h *harness) { h.thumbnail.err = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.publisher.uploads)
			},
		},
		{
			stage:  "publish",
			inject: func(h *harness) { h.publisher.uploadErr = boom },
			laterCalls: func(t *testing.T, h *harness) {
				assert.Zero(t, h.publisher.thumbnails)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.stage, func(t *testing.T) {
			h := newHarness(t)
			tc.inject(h)

			result, err := h.orch.RunOnce(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "stage "+tc.stage)
			assert.Equal(t, events.StatusError, result.Status)

			recorded := h.sink.all()
			require.Len(t, recorded, 1, "exactly one terminal event per run")
			assert.Equal(t, events.KindPipeline, recorded[0].kind)
			assert.Equal(t, events.StatusError, recorded[0].status)

			payload := payloadJSON(t, recorded[0])
			errText, ok := payload["error"].(string)
			require.True(t, ok, "error payload must carry a message")
			assert.Contains(t, errText, "stage "+tc.stage)
			assert.Contains(t, errText, "boom")

			tc.laterCalls(t, h)
		})
	}
}

func TestRunOnceSetThumbnailFailureIsPublishStage(t *testing.T) {
	h := newHarness(t)
	h.publisher.thumbnailErr = errors.New("quota exceeded")

	_, err := h.orch.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage publish")

	recorded := h.sink.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.StatusError, recorded[0].status)
	// The upload itself succeeded before the thumbnail call failed.
	assert.Equal(t, 1, h.publisher.uploads)
}

func TestRunOnceUsesConfiguredLoopVideo(t *testing.T) {
	h := newHarness(t)

	loop := h.orch.cfg.Paths.MediaRoot + "/loop_seamless.mp4"
	require.NoError(t, writeFile(loop))
	h.orch.cfg.Paths.LoopVideo = loop

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, h.animator.calls, "configured loop short-circuits animation")
}

func TestRunOnceMissingConfiguredLoopFails(t *testing.T) {
	h := newHarness(t)
	h.orch.cfg.Paths.LoopVideo = h.orch.cfg.Paths.MediaRoot + "/does_not_exist.mp4"

	_, err := h.orch.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage resolve_loop")
	assert.Zero(t, h.selector.calls)
}

func TestRunOncePassesIntroOutro(t *testing.T) {
	h := newHarness(t)
	h.orch.cfg.Paths.IntroVideo = "/static/intro.mp4"
	h.orch.cfg.Paths.OutroVideo = "/static/outro.mp4"

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/static/intro.mp4", h.assembler.composeOpts.Intro)
	assert.Equal(t, "/static/outro.mp4", h.assembler.composeOpts.Outro)
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o644)
}
