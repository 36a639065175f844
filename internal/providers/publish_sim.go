package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// SimulatedPublisher stands in for the hosting platform when no
// credentials are configured. Uploads become local metadata records under
// <mediaRoot>/simulated_uploads, and ids carry the "sim-" prefix so they
// are never mistaken for real platform ids.
type SimulatedPublisher struct {
	mediaRoot string
	log       zerolog.Logger
	now       func() time.Time
}

func NewSimulatedPublisher(mediaRoot string, log zerolog.Logger, now func() time.Time) *SimulatedPublisher {
	return &SimulatedPublisher{mediaRoot: mediaRoot, log: log, now: now}
}

type simulatedUpload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	SourceFile  string   `json:"source_file"`
	CreatedAt   string   `json:"created_at"`
}

func (p *SimulatedPublisher) uploadsDir() string {
	return filepath.Join(p.mediaRoot, "simulated_uploads")
}

func (p *SimulatedPublisher) Upload(_ context.Context, videoPath, title, description string, tags []string) (string, error) {
	dir := p.uploadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &PublishError{Op: "simulated upload", Err: err}
	}

	abs, err := filepath.Abs(videoPath)
	if err != nil {
		abs = videoPath
	}
	if tags == nil {
		tags = []string{}
	}

	videoID := fmt.Sprintf("sim-%d", p.now().Unix())
	record := simulatedUpload{
		Title:       title,
		Description: description,
		Tags:        tags,
		SourceFile:  abs,
		CreatedAt:   p.now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", &PublishError{Op: "simulated upload", Err: err}
	}
	if err := os.WriteFile(filepath.Join(dir, videoID+".json"), data, 0o644); err != nil {
		return "", &PublishError{Op: "simulated upload", Err: err}
	}

	p.log.Info().Str("video_id", videoID).Str("file", videoPath).Msg("simulated upload recorded")
	return videoID, nil
}

func (p *SimulatedPublisher) SetThumbnail(_ context.Context, videoID, thumbnailPath string) error {
	dir := p.uploadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PublishError{Op: "simulated thumbnail", Err: err}
	}

	data, err := os.ReadFile(thumbnailPath)
	if err != nil {
		return &PublishError{Op: "simulated thumbnail", Err: err}
	}
	dst := filepath.Join(dir, videoID+"_thumbnail"+filepath.Ext(thumbnailPath))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return &PublishError{Op: "simulated thumbnail", Err: err}
	}
	return nil
}
