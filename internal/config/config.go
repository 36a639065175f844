package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the daemon reads at startup. Credentials are
// deliberately absent here: they live in the environment and are looked up
// through CredentialsFromEnv so a missing key never fails config loading.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Paths    PathsConfig    `yaml:"paths"`
	Playlist PlaylistConfig `yaml:"playlist"`
	Video    VideoConfig    `yaml:"video"`
	Upload   UploadConfig   `yaml:"upload"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type PathsConfig struct {
	MediaRoot  string `yaml:"media_root"`
	AudioDir   string `yaml:"audio_dir"`
	LoopVideo  string `yaml:"loop_video"`
	IntroVideo string `yaml:"intro_video"`
	OutroVideo string `yaml:"outro_video"`
	EventsDB   string `yaml:"events_db"`
}

type PlaylistConfig struct {
	MinTracks int `yaml:"min_tracks"`
	MaxTracks int `yaml:"max_tracks"`
}

type VideoConfig struct {
	LoopSeconds int    `yaml:"loop_seconds"`
	FPS         int    `yaml:"fps"`
	ImagePrompt string `yaml:"image_prompt"`
}

type UploadConfig struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	CategoryID  string   `yaml:"category_id"`
	Privacy     string   `yaml:"privacy"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ValidationError reports a bad configuration value. It is the caller's
// fault and never worth retrying.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Load reads the YAML config file, layers environment overrides on top and
// fills in defaults. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and no file read.
// Used by tests and by `lofid doctor` when no config file exists yet.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Paths.MediaRoot, "MEDIA_ROOT")
	setIfEnv(&c.Paths.AudioDir, "AUDIO_DIR")
	setIfEnv(&c.Paths.LoopVideo, "LOOP_VIDEO")
	setIfEnv(&c.Paths.IntroVideo, "INTRO_VIDEO")
	setIfEnv(&c.Paths.OutroVideo, "OUTRO_VIDEO")
	setIfEnv(&c.Paths.EventsDB, "EVENTS_DB")
	setIfEnv(&c.Upload.Title, "DEFAULT_TITLE")
	setIfEnv(&c.Upload.Description, "DEFAULT_DESCRIPTION")
	setIfEnv(&c.Log.Level, "LOG_LEVEL")
	if tags := os.Getenv("DEFAULT_TAGS"); tags != "" {
		c.Upload.Tags = splitTags(tags)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateLimitPerMinute == 0 {
		c.Server.RateLimitPerMinute = 10
	}
	if c.Paths.MediaRoot == "" {
		c.Paths.MediaRoot = "/data"
	}
	if c.Paths.AudioDir == "" {
		c.Paths.AudioDir = "/data/audio_pool"
	}
	if c.Paths.EventsDB == "" {
		c.Paths.EventsDB = "/data/events.db"
	}
	if c.Playlist.MinTracks == 0 {
		c.Playlist.MinTracks = 80
	}
	if c.Playlist.MaxTracks == 0 {
		c.Playlist.MaxTracks = 120
	}
	if c.Video.LoopSeconds == 0 {
		c.Video.LoopSeconds = 6
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 30
	}
	if c.Video.ImagePrompt == "" {
		c.Video.ImagePrompt = "lofi cafe at night, anime style, warm lights, rain, 16:9"
	}
	if c.Upload.Title == "" {
		c.Upload.Title = "Lo-Fi Midnight Café"
	}
	if c.Upload.CategoryID == "" {
		c.Upload.CategoryID = "10" // Music
	}
	if c.Upload.Privacy == "" {
		c.Upload.Privacy = "public"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the values the pipeline cannot tolerate being wrong.
func (c *Config) Validate() error {
	if c.Playlist.MinTracks < 1 {
		return &ValidationError{Field: "playlist.min_tracks", Reason: "must be at least 1"}
	}
	if c.Playlist.MaxTracks < c.Playlist.MinTracks {
		return &ValidationError{Field: "playlist.max_tracks", Reason: "must be >= min_tracks"}
	}
	if c.Video.LoopSeconds < 1 {
		return &ValidationError{Field: "video.loop_seconds", Reason: "must be at least 1"}
	}
	if c.Paths.MediaRoot == "" {
		return &ValidationError{Field: "paths.media_root", Reason: "must not be empty"}
	}
	return nil
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
