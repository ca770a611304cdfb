package playback

import (
	"errors"
	"math"
	"sync"
	"time"
)

const (
	// TrialCap is the content time a non-entitled viewer may watch.
	TrialCap = 30 * time.Second
	// RewindMargin is how far below the cap "continue trial" resumes.
	RewindMargin = time.Second
)

// ErrNotLimited indicates ContinueTrial was called while no limit was reached.
var ErrNotLimited = errors.New("trial limit not reached")

// Phase is the gate's playback phase.
type Phase int

const (
	Paused Phase = iota
	Playing
	LimitReached
)

func (p Phase) String() string {
	switch p {
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	case LimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

// GateState is a snapshot of one player mount's trial accounting.
type GateState struct {
	Elapsed   float64
	ModalOpen bool
	Entitled  bool
	Phase     Phase
}

// Directive tells the player what to do to the media engine after an event.
// The zero value means "nothing".
type Directive struct {
	Pause  bool
	Play   bool
	Seek   bool
	SeekTo float64
}

// IsZero reports whether the directive asks for nothing.
func (d Directive) IsZero() bool {
	return d == Directive{}
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithCap overrides the trial cap.
func WithCap(limit time.Duration) GateOption {
	return func(g *Gate) {
		if limit > 0 {
			g.limit = limit.Seconds()
		}
	}
}

// WithUpsell registers a callback fired each time the limit is newly reached.
// It runs after the gate's lock is released.
func WithUpsell(fn func()) GateOption {
	return func(g *Gate) { g.upsell = fn }
}

// Gate enforces the trial cap for one player mount. It never touches the media
// engine itself; every handler returns the Directive the caller must apply.
type Gate struct {
	limit  float64
	margin float64
	upsell func()

	mu    sync.Mutex
	state GateState
}

// NewGate builds a gate. Entitled viewers bypass the cap entirely.
func NewGate(entitled bool, opts ...GateOption) *Gate {
	g := &Gate{
		limit:  TrialCap.Seconds(),
		margin: RewindMargin.Seconds(),
		state:  GateState{Entitled: entitled, Phase: Paused},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.margin >= g.limit {
		g.margin = g.limit / 2
	}
	return g
}

// Cap returns the trial cap in seconds.
func (g *Gate) Cap() float64 {
	return g.limit
}

// State returns a snapshot of the gate.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// RemainingSeconds is the whole seconds of trial left, rounded up. Entitled
// gates report -1.
func (g *Gate) RemainingSeconds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Entitled {
		return -1
	}
	left := g.limit - g.state.Elapsed
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left))
}

// HandleTimeUpdate processes a playback position tick. Once the position is at
// or past the cap every tick pauses and clamps, but the modal opens only once
// per crossing.
func (g *Gate) HandleTimeUpdate(position float64) Directive {
	g.mu.Lock()
	if g.state.Entitled || position < g.limit {
		g.state.Elapsed = math.Max(position, 0)
		g.mu.Unlock()
		return Directive{}
	}
	opened := g.reachLimitLocked()
	g.mu.Unlock()

	g.notify(opened)
	return Directive{Pause: true, Seek: true, SeekTo: g.limit}
}

// HandleSeek processes an explicit scrub to target.
func (g *Gate) HandleSeek(target float64) Directive {
	g.mu.Lock()
	if g.state.Entitled || target <= g.limit {
		g.state.Elapsed = math.Max(target, 0)
		g.mu.Unlock()
		return Directive{}
	}
	opened := g.reachLimitLocked()
	g.mu.Unlock()

	g.notify(opened)
	return Directive{Pause: true, Seek: true, SeekTo: g.limit}
}

// HandlePlay records that playback started. While the limit modal is open the
// engine is told to stay paused.
func (g *Gate) HandlePlay() Directive {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Phase == LimitReached {
		return Directive{Pause: true}
	}
	g.state.Phase = Playing
	return Directive{}
}

// HandlePause records that playback paused.
func (g *Gate) HandlePause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Phase == Playing {
		g.state.Phase = Paused
	}
}

// ContinueTrial closes the modal and resumes just below the cap. The cap is
// not extended, so the next crossing reaches the limit again.
func (g *Gate) ContinueTrial() (Directive, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Phase != LimitReached {
		return Directive{}, ErrNotLimited
	}
	resume := g.limit - g.margin
	g.state.ModalOpen = false
	g.state.Phase = Playing
	g.state.Elapsed = resume
	return Directive{Seek: true, SeekTo: resume, Play: true}, nil
}

func (g *Gate) reachLimitLocked() bool {
	g.state.Elapsed = g.limit
	g.state.Phase = LimitReached
	if g.state.ModalOpen {
		return false
	}
	g.state.ModalOpen = true
	return true
}

func (g *Gate) notify(opened bool) {
	if opened && g.upsell != nil {
		g.upsell()
	}
}
