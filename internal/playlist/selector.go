// Package playlist picks a randomized, duration-bounded subset of the
// audio pool and writes the concat-demuxer manifest the media assembler
// consumes.
package playlist

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Eligible audio extensions, lowercase.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
}

// AudioPoolError reports a missing or empty pool directory. An empty pool
// always fails the run; the selector never writes an empty manifest.
type AudioPoolError struct {
	Dir    string
	Reason string
}

func (e *AudioPoolError) Error() string {
	return fmt.Sprintf("audio pool %s: %s", e.Dir, e.Reason)
}

// BoundsError reports invalid track count bounds.
type BoundsError struct {
	Min, Max int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("invalid playlist bounds: min=%d max=%d", e.Min, e.Max)
}

// Selection is the outcome of one pick. It is ephemeral: nothing here is
// persisted beyond the run that produced it.
type Selection struct {
	ManifestPath string
	Tracks       []string // base names of the chosen files, manifest order
}

// Selector samples the audio pool. The zero value is not usable; call New.
type Selector struct {
	rng *rand.Rand
	log zerolog.Logger
}

// New returns a Selector backed by the given RNG. Tests pass a seeded
// source for determinism; production passes rand.NewSource(time).
func New(rng *rand.Rand, log zerolog.Logger) *Selector {
	return &Selector{rng: rng, log: log}
}

// Select picks between minN and maxN tracks from poolDir (clamped to the
// pool size), samples without replacement and writes the manifest to
// manifestPath, overwriting any previous one.
func (s *Selector) Select(poolDir string, minN, maxN int, manifestPath string) (Selection, error) {
	if minN < 1 || maxN < minN {
		return Selection{}, &BoundsError{Min: minN, Max: maxN}
	}

	entries, err := os.ReadDir(poolDir)
	if err != nil {
		return Selection{}, &AudioPoolError{Dir: poolDir, Reason: err.Error()}
	}

	var pool []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			pool = append(pool, e.Name())
		}
	}
	if len(pool) == 0 {
		return Selection{}, &AudioPoolError{Dir: poolDir, Reason: "no eligible audio files"}
	}

	target := minN + s.rng.Intn(maxN-minN+1)
	if target > len(pool) {
		target = len(pool)
	}

	s.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	chosen := pool[:target]

	var b strings.Builder
	for _, name := range chosen {
		fmt.Fprintf(&b, "file '%s'\n", filepath.Join(poolDir, name))
	}
	if err := os.WriteFile(manifestPath, []byte(b.String()), 0o644); err != nil {
		return Selection{}, fmt.Errorf("write manifest: %w", err)
	}

	s.log.Info().
		Int("pool_size", len(pool)).
		Int("chosen", len(chosen)).
		Str("manifest", manifestPath).
		Msg("playlist selected")

	return Selection{ManifestPath: manifestPath, Tracks: chosen}, nil
}
