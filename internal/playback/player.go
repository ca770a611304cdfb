package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/navigation"
)

var (
	// ErrInitFailed wraps media engine initialisation failures.
	ErrInitFailed = errors.New("media engine initialisation failed")
	// ErrInert indicates the player has no engine to drive.
	ErrInert = errors.New("player is inert")
)

// Player binds a Gate to a MediaEngine for the lifetime of one mount.
type Player struct {
	gate *Gate

	mu      sync.Mutex
	ctx     context.Context
	engine  MediaEngine
	unsubs  []func()
	mounted bool
}

// NewPlayer returns an unmounted player for gate.
func NewPlayer(gate *Gate) *Player {
	return &Player{gate: gate, ctx: context.Background()}
}

// Gate returns the player's gate.
func (p *Player) Gate() *Gate {
	return p.gate
}

// Mount initialises an engine and wires gate transitions to its events. If the
// factory fails or panics the failure is logged, everything set up so far is
// released, and the player stays inert. Mount never retries.
//
// The engine is published before subscribing and no lock is held while the
// factory or the subscriptions run, so an engine may emit events from inside
// OnTimeUpdate or OnSeek.
func (p *Player) Mount(ctx context.Context, factory EngineFactory) (err error) {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return errors.New("player already mounted")
	}
	p.mounted = true
	p.mu.Unlock()

	logger := logging.FromContext(ctx)
	var (
		engine MediaEngine
		unsubs []func()
	)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrInitFailed, rec)
		}
		if err != nil {
			p.mu.Lock()
			if p.engine == engine {
				p.engine, p.unsubs = nil, nil
			}
			p.mounted = false
			p.mu.Unlock()
			release(logger, engine, unsubs)
			logger.Error("player left inert", slog.String("error", err.Error()))
		}
	}()

	engine, err = factory(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	if engine == nil {
		return fmt.Errorf("%w: factory returned no engine", ErrInitFailed)
	}

	p.mu.Lock()
	p.ctx = ctx
	p.engine = engine
	p.mu.Unlock()

	unsubs = append(unsubs, engine.OnTimeUpdate(func(position float64) {
		p.apply(p.gate.HandleTimeUpdate(position))
	}))
	unsubs = append(unsubs, engine.OnSeek(func(target float64) {
		p.apply(p.gate.HandleSeek(target))
	}))

	p.mu.Lock()
	if p.engine != engine {
		// Unmounted while subscribing.
		p.mu.Unlock()
		release(logger, nil, unsubs)
		return nil
	}
	p.unsubs = unsubs
	p.mu.Unlock()
	return nil
}

// Unmount removes every subscription and releases the engine. It is safe to
// call more than once and on a player whose mount failed.
func (p *Player) Unmount() {
	p.mu.Lock()
	engine, unsubs, ctx := p.engine, p.unsubs, p.ctx
	p.engine, p.unsubs, p.mounted = nil, nil, false
	p.mu.Unlock()

	release(logging.FromContext(ctx), engine, unsubs)
}

// Inert reports whether the player has no engine.
func (p *Player) Inert() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine == nil
}

// Play starts playback unless the limit modal is open.
func (p *Player) Play() error {
	engine := p.current()
	if engine == nil {
		return ErrInert
	}
	if err := engine.Play(); err != nil {
		return err
	}
	p.apply(p.gate.HandlePlay())
	return nil
}

// Pause pauses playback.
func (p *Player) Pause() error {
	engine := p.current()
	if engine == nil {
		return ErrInert
	}
	if err := engine.Pause(); err != nil {
		return err
	}
	p.gate.HandlePause()
	return nil
}

// ContinueTrial dismisses the limit modal and resumes just below the cap.
func (p *Player) ContinueTrial() error {
	if p.current() == nil {
		return ErrInert
	}
	d, err := p.gate.ContinueTrial()
	if err != nil {
		return err
	}
	p.apply(d)
	return nil
}

// Subscribe leaves the player for the membership flow, or for login when the
// viewer has no session.
func (p *Player) Subscribe(nav navigation.Navigator, loggedIn bool) {
	p.Unmount()
	if loggedIn {
		nav.Navigate(navigation.VIP)
		return
	}
	nav.Navigate(navigation.Login)
}

// State returns the gate snapshot.
func (p *Player) State() GateState {
	return p.gate.State()
}

func (p *Player) current() MediaEngine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine
}

func (p *Player) apply(d Directive) {
	if d.IsZero() {
		return
	}
	p.mu.Lock()
	engine, ctx := p.engine, p.ctx
	p.mu.Unlock()
	if engine == nil {
		return
	}

	logger := logging.FromContext(ctx)
	if d.Pause {
		if err := engine.Pause(); err != nil {
			logger.Warn("pause engine", slog.String("error", err.Error()))
		}
	}
	if d.Seek {
		if err := engine.SetPosition(d.SeekTo); err != nil {
			logger.Warn("seek engine", slog.Float64("position", d.SeekTo), slog.String("error", err.Error()))
		}
	}
	if d.Play {
		if err := engine.Play(); err != nil {
			logger.Warn("play engine", slog.String("error", err.Error()))
		}
	}
}

func release(logger *slog.Logger, engine MediaEngine, unsubs []func()) {
	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
	if engine == nil {
		return
	}
	if err := engine.Close(); err != nil && !errors.Is(err, ErrEngineClosed) {
		logger.Warn("close engine", slog.String("error", err.Error()))
	}
}
