package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Adder appends a history entry. *Service satisfies it.
type Adder interface {
	Add(ctx context.Context, videoID int64) error
}

// RecorderConfig controls the concurrency characteristics of the recorder.
type RecorderConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds each add request.
	Timeout time.Duration
}

// ErrRecorderClosed is returned by Enqueue after Shutdown.
var ErrRecorderClosed = errors.New("history recorder closed")

// Recorder appends watch history in the background so opening a video never
// waits on, or fails because of, the history endpoint.
type Recorder struct {
	adder    Adder
	loggedIn func() bool
	timeout  time.Duration
	logger   *slog.Logger

	// mu guards closed; Enqueue holds it shared while sending so the
	// channel is never closed under a pending send.
	mu     sync.RWMutex
	closed bool
	jobs   chan int64
	wg     sync.WaitGroup
}

// NewRecorder starts cfg.Workers workers draining a queue of cfg.QueueSize.
// loggedIn is consulted on every Enqueue; a nil func treats everyone as signed in.
func NewRecorder(adder Adder, loggedIn func() bool, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if loggedIn == nil {
		loggedIn = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		adder:    adder,
		loggedIn: loggedIn,
		timeout:  cfg.Timeout,
		logger:   logger,
		jobs:     make(chan int64, cfg.QueueSize),
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}
	return r
}

// Enqueue schedules a history add for videoID. It reports whether the entry
// was queued; anonymous viewers are skipped without error.
func (r *Recorder) Enqueue(ctx context.Context, videoID int64) (bool, error) {
	if !r.loggedIn() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, ErrRecorderClosed
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r.jobs <- videoID:
		return true, nil
	}
}

// Shutdown stops accepting entries and waits for queued ones to be sent.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for videoID := range r.jobs {
		r.record(videoID)
	}
}

func (r *Recorder) record(videoID int64) {
	if r.adder == nil {
		r.logger.Error("history recorder missing adder", "videoId", videoID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.adder.Add(ctx, videoID); err != nil {
		r.logger.Warn("record history failed", "videoId", videoID, "error", err)
		return
	}
	r.logger.Debug("history recorded", "videoId", videoID)
}
