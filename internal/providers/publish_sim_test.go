package providers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestSimulatedUploadWritesMetadata(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "lofi.mp4")
	require.NoError(t, os.WriteFile(video, []byte("video"), 0o644))

	p := NewSimulatedPublisher(root, zerolog.Nop(), fixedClock())
	id, err := p.Upload(context.Background(), video, "Lo-Fi Beats", "chill study mix", []string{"lofi", "chill"})
	require.NoError(t, err)

	assert.Regexp(t, `^sim-\d+$`, id)

	data, err := os.ReadFile(filepath.Join(root, "simulated_uploads", id+".json"))
	require.NoError(t, err)

	var record struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
		SourceFile  string   `json:"source_file"`
		CreatedAt   string   `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "Lo-Fi Beats", record.Title)
	assert.Equal(t, "chill study mix", record.Description)
	assert.Equal(t, []string{"lofi", "chill"}, record.Tags)
	assert.True(t, filepath.IsAbs(record.SourceFile))
	assert.NotEmpty(t, record.CreatedAt)
}

func TestSimulatedUploadNilTags(t *testing.T) {
	root := t.TempDir()
	p := NewSimulatedPublisher(root, zerolog.Nop(), fixedClock())

	id, err := p.Upload(context.Background(), filepath.Join(root, "v.mp4"), "t", "d", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "simulated_uploads", id+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tags": []`)
}

func TestSimulatedSetThumbnailCopiesFile(t *testing.T) {
	root := t.TempDir()
	thumb := filepath.Join(root, "thumb.jpg")
	require.NoError(t, os.WriteFile(thumb, []byte("jpeg-bytes"), 0o644))

	p := NewSimulatedPublisher(root, zerolog.Nop(), fixedClock())
	require.NoError(t, p.SetThumbnail(context.Background(), "sim-123", thumb))

	data, err := os.ReadFile(filepath.Join(root, "simulated_uploads", "sim-123_thumbnail.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestSimulatedSetThumbnailMissingSource(t *testing.T) {
	p := NewSimulatedPublisher(t.TempDir(), zerolog.Nop(), fixedClock())

	err := p.SetThumbnail(context.Background(), "sim-123", "/missing.jpg")

	var pubErr *PublishError
	assert.ErrorAs(t, err, &pubErr)
}
