package playback

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrEngineClosed indicates the media engine was already released.
var ErrEngineClosed = errors.New("media engine closed")

// MediaEngine is the narrow capability the player needs from a concrete media
// backend. Subscriptions return a function that removes them.
type MediaEngine interface {
	Play() error
	Pause() error
	Position() float64
	SetPosition(seconds float64) error
	OnTimeUpdate(fn func(position float64)) (unsubscribe func())
	OnSeek(fn func(target float64)) (unsubscribe func())
	Close() error
}

// EngineFactory initialises a media engine for one mount.
type EngineFactory func(ctx context.Context) (MediaEngine, error)

// SimulatedEngine is a clock-driven MediaEngine. Time advances only through
// Advance or Run, and user scrubs go through Seek.
type SimulatedEngine struct {
	mu       sync.Mutex
	duration float64
	position float64
	playing  bool
	closed   bool
	nextID   int
	timeSubs map[int]func(float64)
	seekSubs map[int]func(float64)
}

// NewSimulatedEngine returns a paused engine for content of the given length
// in seconds. A non-positive duration means unbounded.
func NewSimulatedEngine(duration float64) *SimulatedEngine {
	return &SimulatedEngine{
		duration: duration,
		timeSubs: make(map[int]func(float64)),
		seekSubs: make(map[int]func(float64)),
	}
}

func (e *SimulatedEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.playing = true
	return nil
}

func (e *SimulatedEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.playing = false
	return nil
}

func (e *SimulatedEngine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// SetPosition moves the playhead without emitting events.
func (e *SimulatedEngine) SetPosition(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.position = e.clamp(seconds)
	return nil
}

// Playing reports whether the engine is playing.
func (e *SimulatedEngine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Ended reports whether a bounded engine reached the end of its content.
func (e *SimulatedEngine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration > 0 && e.position >= e.duration
}

func (e *SimulatedEngine) OnTimeUpdate(fn func(float64)) func() {
	return e.subscribe(e.timeSubs, fn)
}

func (e *SimulatedEngine) OnSeek(fn func(float64)) func() {
	return e.subscribe(e.seekSubs, fn)
}

// Subscribers returns the number of live subscriptions.
func (e *SimulatedEngine) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timeSubs) + len(e.seekSubs)
}

// Advance moves a playing engine forward by step seconds and emits a time
// update. It reports whether time moved.
func (e *SimulatedEngine) Advance(step float64) bool {
	e.mu.Lock()
	if e.closed || !e.playing {
		e.mu.Unlock()
		return false
	}
	e.position = e.clamp(e.position + step)
	if e.duration > 0 && e.position >= e.duration {
		e.playing = false
	}
	position := e.position
	subs := snapshot(e.timeSubs)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(position)
	}
	return true
}

// Seek performs a user scrub to target and emits a seek event.
func (e *SimulatedEngine) Seek(target float64) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.position = e.clamp(target)
	position := e.position
	subs := snapshot(e.seekSubs)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(position)
	}
	return nil
}

// Run advances the engine by step every interval until ctx is done, the
// engine stops playing, or it is closed. A zero interval runs without waiting.
func (e *SimulatedEngine) Run(ctx context.Context, interval time.Duration, step float64) error {
	if interval <= 0 {
		for e.Advance(step) {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !e.Advance(step) {
				return nil
			}
		}
	}
}

// Close releases the engine and drops every subscription.
func (e *SimulatedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	e.closed = true
	e.playing = false
	clear(e.timeSubs)
	clear(e.seekSubs)
	return nil
}

func (e *SimulatedEngine) subscribe(subs map[int]func(float64), fn func(float64)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *SimulatedEngine) clamp(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	if e.duration > 0 && seconds > e.duration {
		return e.duration
	}
	return seconds
}

func snapshot(subs map[int]func(float64)) []func(float64) {
	out := make([]func(float64), 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

var _ MediaEngine = (*SimulatedEngine)(nil)
