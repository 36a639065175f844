// lofid is the Lo-Fi video pipeline daemon. It generates a still frame,
// loops it, assembles a long-form audio track from a local pool, renders
// the final video with optional intro/outro, builds a thumbnail and
// publishes the result, recording each run as an auditable event.
//
// Usage:
//
//	lofid serve             start the HTTP facade
//	lofid run               execute one pipeline run and exit
//	lofid events            list recent events
//	lofid doctor            check external tools and configuration
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"

	"lofi-pipeline/internal/api"
	"lofi-pipeline/internal/config"
	"lofi-pipeline/internal/events"
	"lofi-pipeline/internal/logging"
	"lofi-pipeline/internal/media"
	"lofi-pipeline/internal/pipeline"
	"lofi-pipeline/internal/playlist"
	"lofi-pipeline/internal/providers"
)

func main() {
	// .env is local-dev convenience; deployed environments set real env.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	cmd := flag.Arg(0)

	if cmd == "doctor" {
		// doctor tolerates a missing config file; everything else needs one.
		os.Exit(runDoctor(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lofid: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(logging.Config{Level: cfg.Log.Level})
	log := logging.Base()

	store, err := events.Open(cfg.Paths.EventsDB)
	if err != nil {
		log.Fatal().Err(err).Msg("open event store")
	}
	defer func() { _ = store.Close() }()

	assembler := media.NewAssembler(media.ExecRunner{Log: logging.WithComponent("ffmpeg")}, logging.WithComponent("media"))
	selector := playlist.New(rand.New(rand.NewSource(time.Now().UnixNano())), logging.WithComponent("playlist"))
	prov := providers.FromConfig(cfg, config.CredentialsFromEnv(), assembler)
	orch := pipeline.New(cfg, store, selector, assembler, prov, logging.WithComponent("pipeline"))

	switch cmd {
	case "serve":
		server := api.NewServer(cfg, store, orch, logging.WithComponent("api"))
		log.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := http.ListenAndServe(cfg.Server.Addr, server.Routes()); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}

	case "run":
		result, err := orch.RunOnce(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("run failed")
			os.Exit(1)
		}
		fmt.Printf("ok run=%s video_id=%s file=%s tracks=%d\n",
			result.RunID, result.VideoID, result.VideoPath, len(result.Tracks))

	case "events":
		listEvents(store, flag.Args()[1:])

	default:
		usage()
		os.Exit(2)
	}
}

func listEvents(store *events.Store, args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	kind := fs.String("kind", "", "filter by event kind")
	limit := fs.Int("limit", 20, "maximum number of events")
	_ = fs.Parse(args)

	evs, err := store.List(context.Background(), *kind, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lofid: list events: %v\n", err)
		os.Exit(1)
	}
	for _, ev := range evs {
		fmt.Printf("%-5d %s %-10s %-6s %s\n",
			ev.ID, ev.CreatedAt.Format(time.RFC3339), ev.Kind, ev.Status, string(ev.Payload))
	}
}

// runDoctor checks the external prerequisites the pipeline depends on and
// prints one line per finding. Exit code 0 means everything required is
// in place.
func runDoctor(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("config: %v (using defaults)\n", err)
		cfg = config.Default()
	} else {
		fmt.Printf("config: %s ok\n", configPath)
	}

	failures := 0
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if path, err := exec.LookPath(bin); err == nil {
			fmt.Printf("%s: %s\n", bin, path)
		} else {
			fmt.Printf("%s: NOT FOUND\n", bin)
			failures++
		}
	}

	if entries, err := os.ReadDir(cfg.Paths.AudioDir); err != nil {
		fmt.Printf("audio pool: %v\n", err)
		failures++
	} else {
		fmt.Printf("audio pool: %s (%d entries)\n", cfg.Paths.AudioDir, len(entries))
	}

	if config.CredentialsFromEnv().Complete() {
		fmt.Println("youtube credentials: present (real uploads)")
	} else {
		fmt.Println("youtube credentials: absent (uploads will be simulated)")
	}
	if url := config.ImageAPIURL(); url != "" {
		fmt.Printf("image provider: %s\n", url)
	} else {
		fmt.Println("image provider: none (deterministic local generator)")
	}

	if failures > 0 {
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lofid [-config path] <serve|run|events|doctor>")
}
