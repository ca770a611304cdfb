package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/weiliu/h5client/internal/api"
	"github.com/weiliu/h5client/internal/pager"
	"github.com/weiliu/h5client/internal/session"
)

func newClient(t *testing.T, handler http.HandlerFunc) (*api.Client, *session.Context) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	sc := session.NewContext(session.NewMemoryStore())
	if err := sc.SetToken(context.Background(), "Bearer tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	client, err := api.NewClient(server.URL, sc)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, sc
}

func TestListPagesThroughLoader(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history/currenList" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("pageSize") != "5" {
			t.Errorf("unexpected page size %s", r.URL.Query().Get("pageSize"))
		}
		switch r.URL.Query().Get("pageNum") {
		case "1":
			_, _ = io.WriteString(w, `{"code":200,"data":{"totalPage":2,"list":[{"id":1,"videoId":10,"videoName":"a"},{"id":2,"videoId":11,"videoName":"b"}]}}`)
		default:
			_, _ = io.WriteString(w, `{"code":200,"data":{"totalPage":2,"list":[{"id":3,"videoId":12,"videoName":"c"}]}}`)
		}
	})

	loader := pager.New(NewService(client).Fetcher(), DefaultPageSize)
	ctx := context.Background()
	for loader.RequestNext(ctx) {
	}

	var got []int64
	for _, e := range loader.Items() {
		got = append(got, e.VideoID)
	}
	if diff := cmp.Diff([]int64{10, 11, 12}, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if loader.State() != pager.Exhausted {
		t.Fatalf("expected exhausted, got %v", loader.State())
	}
}

func TestAdd(t *testing.T) {
	var body string
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		_, _ = io.WriteString(w, `{"code":200}`)
	})
	svc := NewService(client)
	if err := svc.Add(context.Background(), 42); err != nil {
		t.Fatalf("add: %v", err)
	}
	if body != `{"videoId":42}` {
		t.Fatalf("unexpected body %s", body)
	}
	if err := svc.Add(context.Background(), 0); !errors.Is(err, ErrInvalidVideoID) {
		t.Fatalf("expected ErrInvalidVideoID got %v", err)
	}
}

type adderStub struct {
	mu    sync.Mutex
	added []int64
	err   error
	delay time.Duration
}

func (a *adderStub) Add(ctx context.Context, videoID int64) error {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.added = append(a.added, videoID)
	return a.err
}

func (a *adderStub) snapshot() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.added...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderDrainsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	adder := &adderStub{delay: 5 * time.Millisecond}
	rec := NewRecorder(adder, nil, RecorderConfig{QueueSize: 8, Workers: 1}, quietLogger())
	for id := int64(1); id <= 5; id++ {
		if queued, err := rec.Enqueue(context.Background(), id); err != nil || !queued {
			t.Fatalf("enqueue %d: queued=%v err=%v", id, queued, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3, 4, 5}, adder.snapshot()); diff != "" {
		t.Fatalf("recorded mismatch (-want +got):\n%s", diff)
	}

	if _, err := rec.Enqueue(context.Background(), 6); !errors.Is(err, ErrRecorderClosed) {
		t.Fatalf("expected ErrRecorderClosed got %v", err)
	}
	if err := rec.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestRecorderSkipsAnonymousViewers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	adder := &adderStub{}
	loggedIn := false
	rec := NewRecorder(adder, func() bool { return loggedIn }, RecorderConfig{Workers: 2}, quietLogger())

	queued, err := rec.Enqueue(context.Background(), 7)
	if err != nil || queued {
		t.Fatalf("anonymous viewer was queued: %v %v", queued, err)
	}
	loggedIn = true
	if queued, err := rec.Enqueue(context.Background(), 8); err != nil || !queued {
		t.Fatalf("enqueue: queued=%v err=%v", queued, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if diff := cmp.Diff([]int64{8}, adder.snapshot()); diff != "" {
		t.Fatalf("recorded mismatch (-want +got):\n%s", diff)
	}
}

func TestRecorderSwallowsFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	adder := &adderStub{err: api.Result{Kind: api.KindTransport, Message: api.MessageNetworkError}.Err()}
	rec := NewRecorder(adder, nil, RecorderConfig{}, quietLogger())
	if _, err := rec.Enqueue(context.Background(), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(adder.snapshot()) != 1 {
		t.Fatal("expected the failing add to be attempted")
	}
}

func TestRecorderShutdownHonoursContext(t *testing.T) {
	adder := &adderStub{delay: 200 * time.Millisecond}
	rec := NewRecorder(adder, nil, RecorderConfig{QueueSize: 1, Workers: 1, Timeout: time.Second}, quietLogger())
	if _, err := rec.Enqueue(context.Background(), 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rec.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded got %v", err)
	}

	wait, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	if err := rec.Shutdown(wait); err != nil {
		t.Fatalf("final shutdown: %v", err)
	}
}

var _ Adder = (*Service)(nil)
