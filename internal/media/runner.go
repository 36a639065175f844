package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Runner executes an external binary and waits for it to exit. The
// assembler depends on this narrow surface so tests can substitute a fake
// instead of shelling out to ffmpeg.
type Runner interface {
	// Run executes name with args and fails on a non-zero exit.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes name with args and returns trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner shells out via os/exec. Stderr is captured and folded into
// the returned error so a failing ffmpeg invocation is diagnosable from
// the event payload alone.
type ExecRunner struct {
	Log zerolog.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	r.Log.Debug().Str("bin", name).Strs("args", args).Msg("exec")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 500))
	}
	return nil
}

func (r ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	r.Log.Debug().Str("bin", name).Strs("args", args).Msg("exec")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, tail(stderr.String(), 500))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// tail keeps the last n bytes of s; ffmpeg writes its actual error there.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
