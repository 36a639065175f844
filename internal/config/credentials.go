package config

import "os"

// Credentials carries the OAuth values needed for a real YouTube upload.
// All three must be present for the real publisher to be selected; an
// incomplete set silently selects the simulated publisher instead.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// CredentialsFromEnv reads the YouTube OAuth credentials from the
// environment. Missing values are not an error here; completeness is
// checked at wiring time via Complete.
func CredentialsFromEnv() Credentials {
	return Credentials{
		ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		RefreshToken: os.Getenv("YOUTUBE_REFRESH_TOKEN"),
	}
}

// Complete reports whether every credential is set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// ImageAPIURL returns the base URL of the external image generation
// service, or "" when the deterministic local generator should be used.
func ImageAPIURL() string {
	return os.Getenv("IMAGE_API_URL")
}
