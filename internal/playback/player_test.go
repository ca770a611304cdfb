package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weiliu/h5client/internal/navigation"
)

func engineFactory(engine MediaEngine) EngineFactory {
	return func(context.Context) (MediaEngine, error) { return engine, nil }
}

func TestPlayerClampsTicksOnEngine(t *testing.T) {
	engine := NewSimulatedEngine(120)
	upsells := 0
	player := NewPlayer(NewGate(false, WithUpsell(func() { upsells++ })))
	if err := player.Mount(context.Background(), engineFactory(engine)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer player.Unmount()

	if err := player.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	for engine.Advance(1) {
	}

	if engine.Position() != 30 {
		t.Fatalf("expected engine clamped at 30, got %v", engine.Position())
	}
	if engine.Playing() {
		t.Fatal("engine should be paused at the cap")
	}
	if s := player.State(); !s.ModalOpen || s.Phase != LimitReached {
		t.Fatalf("unexpected state %+v", s)
	}
	if upsells != 1 {
		t.Fatalf("expected one upsell got %d", upsells)
	}
}

func TestPlayerSeekPastCap(t *testing.T) {
	engine := NewSimulatedEngine(120)
	player := NewPlayer(NewGate(false))
	if err := player.Mount(context.Background(), engineFactory(engine)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer player.Unmount()

	_ = player.Play()
	if err := engine.Seek(45); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if engine.Position() != 30 || engine.Playing() {
		t.Fatalf("expected paused at 30, got pos %v playing %v", engine.Position(), engine.Playing())
	}
}

func TestPlayerContinueTrial(t *testing.T) {
	engine := NewSimulatedEngine(120)
	player := NewPlayer(NewGate(false))
	if err := player.Mount(context.Background(), engineFactory(engine)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer player.Unmount()

	_ = player.Play()
	for engine.Advance(1) {
	}
	if err := player.ContinueTrial(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if engine.Position() != 29 || !engine.Playing() {
		t.Fatalf("expected playing at 29, got pos %v playing %v", engine.Position(), engine.Playing())
	}
	if player.State().ModalOpen {
		t.Fatal("modal should be closed")
	}

	engine.Advance(1)
	if !player.State().ModalOpen || engine.Playing() {
		t.Fatalf("expected limit to re-trigger, got %+v", player.State())
	}
}

func TestPlayerEntitledWatchesEverything(t *testing.T) {
	engine := NewSimulatedEngine(300)
	player := NewPlayer(NewGate(true))
	if err := player.Mount(context.Background(), engineFactory(engine)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer player.Unmount()

	_ = player.Play()
	if err := engine.Run(context.Background(), 0, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	if engine.Position() != 300 || !engine.Ended() {
		t.Fatalf("expected to reach the end, got %v", engine.Position())
	}
	if player.State().ModalOpen {
		t.Fatal("entitled viewer saw the modal")
	}
}

func TestPlayerInitFailureLeavesInert(t *testing.T) {
	player := NewPlayer(NewGate(false))
	err := player.Mount(context.Background(), func(context.Context) (MediaEngine, error) {
		return nil, errors.New("codec missing")
	})
	if !errors.Is(err, ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed got %v", err)
	}
	if !player.Inert() {
		t.Fatal("expected inert player")
	}
	if err := player.Play(); !errors.Is(err, ErrInert) {
		t.Fatalf("expected ErrInert got %v", err)
	}
	player.Unmount()
	player.Unmount()
}

type panickyEngine struct {
	*SimulatedEngine
}

func (panickyEngine) OnSeek(func(float64)) func() {
	panic("seek events unsupported")
}

func TestPlayerPanicDuringSetupReleasesEngine(t *testing.T) {
	inner := NewSimulatedEngine(60)
	player := NewPlayer(NewGate(false))
	err := player.Mount(context.Background(), engineFactory(panickyEngine{inner}))
	if !errors.Is(err, ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed got %v", err)
	}
	if !player.Inert() {
		t.Fatal("expected inert player")
	}
	if inner.Subscribers() != 0 {
		t.Fatalf("expected subscriptions removed, got %d", inner.Subscribers())
	}
	if err := inner.Play(); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected engine released, got %v", err)
	}
}

// eagerEngine reports its current position as soon as a time listener is
// attached, like media elements that replay their last timeupdate.
type eagerEngine struct {
	*SimulatedEngine
}

func (e eagerEngine) OnTimeUpdate(fn func(float64)) func() {
	unsub := e.SimulatedEngine.OnTimeUpdate(fn)
	fn(e.Position())
	return unsub
}

func TestPlayerMountHandlesEventsDuringSubscribe(t *testing.T) {
	inner := NewSimulatedEngine(120)
	if err := inner.SetPosition(45); err != nil {
		t.Fatalf("set position: %v", err)
	}
	_ = inner.Play()
	player := NewPlayer(NewGate(false))

	done := make(chan error, 1)
	go func() { done <- player.Mount(context.Background(), engineFactory(eagerEngine{inner})) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("mount: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mount did not return while the engine emitted during subscribe")
	}
	defer player.Unmount()

	if inner.Position() != 30 || inner.Playing() {
		t.Fatalf("expected paused at 30, got pos %v playing %v", inner.Position(), inner.Playing())
	}
	if !player.State().ModalOpen {
		t.Fatal("expected the limit modal after the initial update")
	}
	if inner.Subscribers() != 2 {
		t.Fatalf("expected 2 subscriptions got %d", inner.Subscribers())
	}
}

func TestPlayerUnmountReleases(t *testing.T) {
	engine := NewSimulatedEngine(60)
	player := NewPlayer(NewGate(false))
	if err := player.Mount(context.Background(), engineFactory(engine)); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if engine.Subscribers() != 2 {
		t.Fatalf("expected 2 subscriptions got %d", engine.Subscribers())
	}
	if err := player.Mount(context.Background(), engineFactory(engine)); err == nil {
		t.Fatal("expected error mounting twice")
	}

	player.Unmount()
	player.Unmount()
	if engine.Subscribers() != 0 {
		t.Fatalf("expected subscriptions removed, got %d", engine.Subscribers())
	}
	if !player.Inert() {
		t.Fatal("expected inert after unmount")
	}
}

func TestPlayerSubscribeNavigates(t *testing.T) {
	cases := []struct {
		loggedIn bool
		want     string
	}{
		{loggedIn: true, want: navigation.VIP},
		{loggedIn: false, want: navigation.Login},
	}
	for _, tc := range cases {
		engine := NewSimulatedEngine(60)
		player := NewPlayer(NewGate(false))
		if err := player.Mount(context.Background(), engineFactory(engine)); err != nil {
			t.Fatalf("mount: %v", err)
		}
		nav := &navigation.Recorder{}
		player.Subscribe(nav, tc.loggedIn)
		if nav.Last() != tc.want {
			t.Fatalf("expected %s got %v", tc.want, nav.Targets())
		}
		if !player.Inert() {
			t.Fatal("subscribe should unmount the player")
		}
	}
}

func TestSimulatedEngineRunHonoursContext(t *testing.T) {
	engine := NewSimulatedEngine(0)
	_ = engine.Play()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := engine.Run(ctx, time.Millisecond, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if engine.Position() == 0 {
		t.Fatal("expected time to advance")
	}
}

func TestFFProbeDuration(t *testing.T) {
	probe := NewFFProbe("", time.Second)
	probe.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		if args[len(args)-1] != "https://cdn.example.com/v.mp4" {
			t.Fatalf("unexpected args %v", args)
		}
		return []byte(`{"format":{"duration":"52.500000"}}`), nil
	}

	d, err := probe.Duration(context.Background(), "https://cdn.example.com/v.mp4")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if d != 52500*time.Millisecond {
		t.Fatalf("unexpected duration %v", d)
	}
}

func TestFFProbeFailures(t *testing.T) {
	var nilProbe *FFProbe
	if _, err := nilProbe.Duration(context.Background(), "x"); !errors.Is(err, ErrProbeUnavailable) {
		t.Fatalf("expected ErrProbeUnavailable got %v", err)
	}

	for _, out := range []string{`{}`, `{"format":{"duration":"N/A"}}`, `not json`} {
		probe := NewFFProbe("ffprobe", time.Second)
		probe.Run = func(context.Context, string, ...string) ([]byte, error) { return []byte(out), nil }
		if _, err := probe.Duration(context.Background(), "x"); err == nil {
			t.Fatalf("expected error for %s", out)
		}
	}

	probe := NewFFProbe("ffprobe", time.Second)
	probe.Run = func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit 1") }
	if _, err := probe.Duration(context.Background(), "x"); err == nil {
		t.Fatal("expected runner error to propagate")
	}
}
