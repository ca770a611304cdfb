package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrProbeUnavailable indicates no prober is configured.
var ErrProbeUnavailable = errors.New("media prober unavailable")

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFProbe reads stream durations with the ffprobe CLI so the watch command
// can size the simulated engine to the real content.
type FFProbe struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFProbe constructs a prober that shells out to ffprobe.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FFProbe{
		Binary:  binary,
		Args:    []string{"-v", "error", "-show_entries", "format=duration", "-of", "json"},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Duration returns the content length of the stream at url.
func (p *FFProbe) Duration(ctx context.Context, url string) (time.Duration, error) {
	if p == nil {
		return 0, ErrProbeUnavailable
	}
	if p.Run == nil {
		p.Run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append([]string{}, p.Args...)
	args = append(args, url)

	out, err := p.Run(execCtx, p.Binary, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return 0, fmt.Errorf("parse ffprobe response: %w", err)
	}
	if payload.Format.Duration == "" {
		return 0, errors.New("ffprobe returned no duration")
	}

	seconds, err := strconv.ParseFloat(payload.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("ffprobe returned invalid duration %q", payload.Format.Duration)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
