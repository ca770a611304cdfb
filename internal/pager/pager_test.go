package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/weiliu/h5client/internal/models"
)

type fakeSource struct {
	mu         sync.Mutex
	totalPages int
	perPage    int
	calls      []int
}

func (f *fakeSource) fetch(_ context.Context, pageNumber, pageSize int, query string) (models.Page[string], error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageNumber)
	f.mu.Unlock()

	items := make([]string, 0, f.perPage)
	for i := 0; i < f.perPage; i++ {
		items = append(items, fmt.Sprintf("%s-%d-%d", query, pageNumber, i))
	}
	return models.Page[string]{Items: items, PageNumber: pageNumber, TotalPages: f.totalPages}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestLoaderConcatenatesPagesInOrder(t *testing.T) {
	src := &fakeSource{totalPages: 3, perPage: 2}
	loader := New(src.fetch, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !loader.RequestNext(ctx) {
			t.Fatalf("trigger %d should fetch", i+1)
		}
	}

	want := []string{"-1-0", "-1-1", "-2-0", "-2-1", "-3-0", "-3-1"}
	if diff := cmp.Diff(want, loader.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if loader.State() != Exhausted {
		t.Fatalf("expected exhausted got %v", loader.State())
	}
}

func TestLoaderStopsAfterExhaustion(t *testing.T) {
	src := &fakeSource{totalPages: 2, perPage: 1}
	loader := New(src.fetch, 1)
	ctx := context.Background()

	loader.RequestNext(ctx)
	loader.RequestNext(ctx)
	for i := 0; i < 5; i++ {
		if loader.RequestNext(ctx) {
			t.Fatal("exhausted loader must not fetch")
		}
	}
	if src.callCount() != 2 {
		t.Fatalf("expected 2 fetches got %d", src.callCount())
	}
}

func TestLoaderEmptyPageStillAdvances(t *testing.T) {
	src := &fakeSource{totalPages: 3, perPage: 0}
	loader := New(src.fetch, 4)
	ctx := context.Background()

	loader.RequestNext(ctx)
	if loader.State() != Idle || loader.PageNumber() != 2 {
		t.Fatalf("expected idle on page 2, got %v page %d", loader.State(), loader.PageNumber())
	}
	if len(loader.Items()) != 0 {
		t.Fatalf("expected no items got %v", loader.Items())
	}
}

func TestLoaderZeroTotalPagesExhausts(t *testing.T) {
	src := &fakeSource{totalPages: 0, perPage: 0}
	loader := New(src.fetch, 4)
	loader.RequestNext(context.Background())
	if loader.State() != Exhausted {
		t.Fatalf("expected exhausted for empty result set, got %v", loader.State())
	}
}

func TestLoaderErrorKeepsItems(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	loader := New(func(_ context.Context, page, _ int, _ string) (models.Page[int], error) {
		calls++
		if page == 2 {
			return models.Page[int]{}, boom
		}
		return models.Page[int]{Items: []int{page}, PageNumber: page, TotalPages: 5}, nil
	}, 1)
	ctx := context.Background()

	loader.RequestNext(ctx)
	loader.RequestNext(ctx)
	if loader.State() != Errored {
		t.Fatalf("expected errored got %v", loader.State())
	}
	if !errors.Is(loader.Err(), boom) {
		t.Fatalf("unexpected err %v", loader.Err())
	}
	if diff := cmp.Diff([]int{1}, loader.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if loader.RequestNext(ctx) {
		t.Fatal("errored loader must not retry on its own")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls got %d", calls)
	}
}

func TestLoaderTriggerWhileLoadingIsNoop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	calls := 0
	loader := New(func(_ context.Context, page, _ int, _ string) (models.Page[int], error) {
		mu.Lock()
		calls++
		mu.Unlock()
		started <- struct{}{}
		<-release
		return models.Page[int]{Items: []int{page}, PageNumber: page, TotalPages: 3}, nil
	}, 1)
	ctx := context.Background()

	done := loader.RequestNextAsync(ctx)
	if done == nil {
		t.Fatal("expected fetch to start")
	}
	<-started
	if loader.State() != Loading {
		t.Fatalf("expected loading got %v", loader.State())
	}
	if loader.RequestNext(ctx) || loader.RequestNextAsync(ctx) != nil {
		t.Fatal("trigger while loading must be dropped")
	}
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls)
	}
	if loader.PageNumber() != 2 {
		t.Fatalf("expected page 2 got %d", loader.PageNumber())
	}
}

func TestLoaderQueryChangeResetsAndDiscardsStale(t *testing.T) {
	type request struct {
		query   string
		page    int
		release chan struct{}
	}
	requests := make(chan request, 4)
	loader := New(func(_ context.Context, page, _ int, query string) (models.Page[string], error) {
		r := request{query: query, page: page, release: make(chan struct{})}
		requests <- r
		<-r.release
		return models.Page[string]{Items: []string{query}, PageNumber: page, TotalPages: 4}, nil
	}, 1)
	ctx := context.Background()

	first := loader.RequestNextAsync(ctx)
	oldReq := <-requests
	if oldReq.query != "" {
		t.Fatalf("unexpected initial query %q", oldReq.query)
	}

	setDone := make(chan bool)
	go func() { setDone <- loader.SetQuery(ctx, "cats") }()
	newReq := <-requests
	if newReq.query != "cats" || newReq.page != 1 {
		t.Fatalf("unexpected request after query change %+v", newReq)
	}
	if len(loader.Items()) != 0 {
		t.Fatalf("accumulator must be empty right after a query change, got %v", loader.Items())
	}

	close(oldReq.release)
	<-first
	if len(loader.Items()) != 0 {
		t.Fatalf("stale response leaked into items: %v", loader.Items())
	}

	close(newReq.release)
	if !<-setDone {
		t.Fatal("SetQuery should issue the first fetch")
	}
	if diff := cmp.Diff([]string{"cats"}, loader.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if loader.PageNumber() != 2 || loader.Query() != "cats" {
		t.Fatalf("unexpected page %d query %q", loader.PageNumber(), loader.Query())
	}
}

func TestLoaderQueryChangeCancelsStaleFetch(t *testing.T) {
	staleErr := make(chan error, 1)
	started := make(chan struct{})
	loader := New(func(ctx context.Context, page, _ int, query string) (models.Page[string], error) {
		if query == "" {
			close(started)
			<-ctx.Done()
			staleErr <- ctx.Err()
			return models.Page[string]{}, ctx.Err()
		}
		return models.Page[string]{Items: []string{query}, PageNumber: page, TotalPages: 1}, nil
	}, 1)
	ctx := context.Background()

	first := loader.RequestNextAsync(ctx)
	<-started
	if !loader.SetQuery(ctx, "dogs") {
		t.Fatal("SetQuery should issue the first fetch")
	}

	if err := <-staleErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("stale fetch saw %v want context.Canceled", err)
	}
	<-first
	if loader.State() != Exhausted || loader.Err() != nil {
		t.Fatalf("stale cancellation leaked into state %v err %v", loader.State(), loader.Err())
	}
	if diff := cmp.Diff([]string{"dogs"}, loader.Items()); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderResetCancelsInFlightFetch(t *testing.T) {
	started := make(chan struct{})
	loader := New(func(ctx context.Context, page, _ int, _ string) (models.Page[string], error) {
		close(started)
		<-ctx.Done()
		return models.Page[string]{}, ctx.Err()
	}, 1)

	done := loader.RequestNextAsync(context.Background())
	<-started
	loader.Reset()
	<-done
	if loader.State() != Idle || loader.PageNumber() != 1 {
		t.Fatalf("unexpected state %v page %d after reset", loader.State(), loader.PageNumber())
	}
}

func TestLoaderOnChange(t *testing.T) {
	src := &fakeSource{totalPages: 1, perPage: 1}
	var states []State
	var loader *Loader[string, string]
	loader = New(src.fetch, 1, OnChange(func() { states = append(states, loader.State()) }))

	loader.RequestNext(context.Background())
	if diff := cmp.Diff([]State{Loading, Exhausted}, states); diff != "" {
		t.Fatalf("state transitions mismatch (-want +got):\n%s", diff)
	}
}
