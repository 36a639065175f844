package providers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"lofi-pipeline/internal/config"
)

// YouTubePublisher uploads via the YouTube Data API v3 using an OAuth
// refresh token. Upload is resumable, which the API requires for files
// over 5MB anyway.
type YouTubePublisher struct {
	creds  config.Credentials
	upload config.UploadConfig
	log    zerolog.Logger
}

func NewYouTubePublisher(creds config.Credentials, upload config.UploadConfig, log zerolog.Logger) *YouTubePublisher {
	return &YouTubePublisher{creds: creds, upload: upload, log: log}
}

func (p *YouTubePublisher) service(ctx context.Context) (*youtube.Service, error) {
	conf := &oauth2.Config{
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: p.creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
	return youtube.NewService(ctx, option.WithHTTPClient(client))
}

func (p *YouTubePublisher) Upload(ctx context.Context, videoPath, title, description string, tags []string) (string, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return "", &PublishError{Op: "auth", Err: err}
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        tags,
			CategoryId:  p.upload.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: p.upload.Privacy,
		},
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", &PublishError{Op: "open video", Err: err}
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		p.log.Info().
			Str("title", title).
			Float64("size_mb", float64(fi.Size())/1024/1024).
			Msg("uploading video")
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Media(f)
	uploaded, err := call.Do()
	if err != nil {
		return "", &PublishError{Op: "upload", Err: err}
	}

	p.log.Info().
		Str("video_id", uploaded.Id).
		Str("url", fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id)).
		Msg("upload complete")
	return uploaded.Id, nil
}

func (p *YouTubePublisher) SetThumbnail(ctx context.Context, videoID, thumbnailPath string) error {
	svc, err := p.service(ctx)
	if err != nil {
		return &PublishError{Op: "auth", Err: err}
	}

	f, err := os.Open(thumbnailPath)
	if err != nil {
		return &PublishError{Op: "open thumbnail", Err: err}
	}
	defer f.Close()

	call := svc.Thumbnails.Set(videoID)
	call.Media(f)
	if _, err := call.Do(); err != nil {
		return &PublishError{Op: "set thumbnail", Err: err}
	}
	return nil
}
