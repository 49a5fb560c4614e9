package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shopadmin/internal/cache"
	"shopadmin/internal/failure"
	"shopadmin/internal/model"
	"shopadmin/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	next  int

	create func(ctx context.Context, c model.Category) (model.Category, error)
	update func(ctx context.Context, id string, c model.Category) (model.Category, error)
	remove func(ctx context.Context, id string) (model.Category, error)
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Create(ctx context.Context, c model.Category) (model.Category, error) {
	f.record("create " + c.Name)
	if f.create != nil {
		return f.create(ctx, c)
	}
	f.mu.Lock()
	f.next++
	id := fmt.Sprintf("cat-new%04d", f.next)
	f.mu.Unlock()
	return c.WithID(id), nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, c model.Category) (model.Category, error) {
	f.record("update " + id)
	if f.update != nil {
		return f.update(ctx, id, c)
	}
	return c.WithID(id), nil
}

func (f *fakeRemote) Remove(ctx context.Context, id string) (model.Category, error) {
	f.record("delete " + id)
	if f.remove != nil {
		return f.remove(ctx, id)
	}
	return model.Category{ID: id}, nil
}

func seeded(t *testing.T, cats ...model.Category) *cache.Store[model.Category] {
	t.Helper()
	s := cache.New(model.ResourceCategories, func(context.Context) ([]model.Category, error) {
		return append([]model.Category(nil), cats...), nil
	})
	unsub, err := s.Subscribe(context.Background(), func(cache.Collection[model.Category]) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(unsub)
	return s
}

func names(c cache.Collection[model.Category]) []string {
	out := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.Entity.Name)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreate_AppearsPendingThenCommitsWithServerID(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	release := make(chan struct{})
	sawPending := make(chan cache.Collection[model.Category], 1)
	remote := &fakeRemote{create: func(_ context.Context, c model.Category) (model.Category, error) {
		sawPending <- store.Snapshot()
		<-release
		return c.WithID("cat-shoes001"), nil
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	done := make(chan error, 1)
	go func() {
		_, err := co.Create(context.Background(), model.Category{Name: "Shoes"})
		done <- err
	}()

	snap := <-sawPending
	if got := names(snap); !equalStrings(got, []string{"Hats", "Shoes"}) {
		t.Fatalf("want optimistic row appended, got %v", got)
	}
	last := snap.Items[1]
	if !last.Pending || !IsTempID(last.Entity.ID) {
		t.Fatalf("want pending row with temporary id, got %#v", last)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}

	final := store.Snapshot()
	if len(final.Items) != 2 || final.Items[1].Entity.ID != "cat-shoes001" || final.Items[1].Pending {
		t.Fatalf("want committed server row in place, got %#v", final.Items)
	}
	got := rec.All()
	if len(got) != 1 || got[0].Level != notify.LevelSuccess || got[0].Message != "Shoes is created successfully" {
		t.Fatalf("unexpected notifications: %#v", got)
	}
}

func TestCreate_EmptyNameNeverReachesServer(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	remote := &fakeRemote{}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))
	before := store.Snapshot().Version

	_, err := co.Create(context.Background(), model.Category{Name: "   "})
	if !failure.Is(err, failure.KindValidation) {
		t.Fatalf("want validation failure, got %v", err)
	}
	if failure.MessageOf(err) != "Category name is required" {
		t.Fatalf("want %q, got %q", "Category name is required", failure.MessageOf(err))
	}
	if len(remote.Calls()) != 0 {
		t.Fatalf("expected no network call, got %v", remote.Calls())
	}
	if store.Snapshot().Version != before {
		t.Fatalf("expected store untouched")
	}
	if len(rec.All()) != 0 {
		t.Fatalf("expected no notification, got %#v", rec.All())
	}
}

func TestCreate_SendsPayloadWithoutTemporaryID(t *testing.T) {
	t.Parallel()

	store := seeded(t)
	sent := make(chan model.Category, 1)
	remote := &fakeRemote{create: func(_ context.Context, c model.Category) (model.Category, error) {
		sent <- c
		return c.WithID("cat-shoes001"), nil
	}}
	co := New("Category", store, remote)

	if _, err := co.Create(context.Background(), model.Category{Name: "Shoes"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got := <-sent
	if got.ID != "" || got.Name != "Shoes" {
		t.Fatalf("want server to receive only the name, got %#v", got)
	}
	if items := store.Snapshot().Items; len(items) != 1 || items[0].Entity.ID != "cat-shoes001" {
		t.Fatalf("want committed server row, got %#v", items)
	}
}

func TestUpdate_EmptyNameNeverReachesServer(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	remote := &fakeRemote{}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))
	before := store.Snapshot().Version

	_, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: ""})
	if !failure.Is(err, failure.KindValidation) {
		t.Fatalf("want validation failure, got %v", err)
	}
	if len(remote.Calls()) != 0 {
		t.Fatalf("expected no network call, got %v", remote.Calls())
	}
	snap := store.Snapshot()
	if snap.Version != before || !equalStrings(names(snap), []string{"Hats"}) || snap.Items[0].Pending {
		t.Fatalf("expected store untouched, got %#v", snap)
	}
	if co.Pending("cat-aaaaaaaa") {
		t.Fatalf("validation failure must not leave a pending record")
	}
	if _, ok := co.Failed("cat-aaaaaaaa"); ok {
		t.Fatalf("validation failure must not be retained")
	}
	if len(rec.All()) != 0 {
		t.Fatalf("expected no notification, got %#v", rec.All())
	}
}

func TestDelete_FailureRestoresOriginalPosition(t *testing.T) {
	t.Parallel()

	store := seeded(t,
		model.Category{ID: "cat-aaaaaaaa", Name: "A"},
		model.Category{ID: "cat-bbbbbbbb", Name: "B"},
		model.Category{ID: "cat-cccccccc", Name: "C"},
	)
	remote := &fakeRemote{remove: func(context.Context, string) (model.Category, error) {
		return model.Category{}, &failure.Failure{Kind: failure.KindServer, Status: 500}
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	_, err := co.Delete(context.Background(), "cat-bbbbbbbb")
	if !failure.Is(err, failure.KindServer) {
		t.Fatalf("want server failure, got %v", err)
	}
	if got := names(store.Snapshot()); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Fatalf("want original order restored, got %v", got)
	}
	got := rec.All()
	if len(got) != 1 || got[0].Level != notify.LevelError || got[0].Message != "Category deletion failed" {
		t.Fatalf("unexpected notifications: %#v", got)
	}
	if _, ok := co.Failed("cat-bbbbbbbb"); !ok {
		t.Fatalf("expected failed delete to be retained for retry")
	}
}

func TestUpdate_ServerMessageIsShownVerbatim(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	remote := &fakeRemote{update: func(context.Context, string, model.Category) (model.Category, error) {
		return model.Category{}, &failure.Failure{Kind: failure.KindConflict, Status: 409, Message: "Category already exists"}
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	if _, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Caps"}); err == nil {
		t.Fatalf("expected error")
	}
	if got := names(store.Snapshot()); !equalStrings(got, []string{"Hats"}) {
		t.Fatalf("want pre-image restored, got %v", got)
	}
	got := rec.All()
	if len(got) != 1 || got[0].Message != "Category already exists" {
		t.Fatalf("unexpected notifications: %#v", got)
	}
}

func TestUpdate_SecondChangeWhileInFlightConflicts(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	entered := make(chan struct{})
	release := make(chan struct{})
	remote := &fakeRemote{update: func(_ context.Context, id string, c model.Category) (model.Category, error) {
		close(entered)
		<-release
		return c.WithID(id), nil
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	done := make(chan error, 1)
	go func() {
		_, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Caps"})
		done <- err
	}()
	<-entered

	if !co.Pending("cat-aaaaaaaa") {
		t.Fatalf("expected pending mutation")
	}
	_, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Beanies"})
	if !failure.Is(err, failure.KindConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if got := names(store.Snapshot()); !equalStrings(got, []string{"Caps"}) {
		t.Fatalf("want first update committed, got %v", got)
	}
	if len(remote.Calls()) != 1 {
		t.Fatalf("expected a single network call, got %v", remote.Calls())
	}
	if len(rec.All()) != 1 {
		t.Fatalf("expected one notification, got %#v", rec.All())
	}
	if co.Pending("cat-aaaaaaaa") {
		t.Fatalf("expected pending cleared after settlement")
	}
}

func TestDelete_NotFoundCountsAsSuccess(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	remote := &fakeRemote{remove: func(context.Context, string) (model.Category, error) {
		return model.Category{}, &failure.Failure{Kind: failure.KindNotFound, Status: 404}
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	got, err := co.Delete(context.Background(), "cat-aaaaaaaa")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got.Name != "Hats" {
		t.Fatalf("want deleted entity returned, got %#v", got)
	}
	if len(store.Snapshot().Items) != 0 {
		t.Fatalf("expected row to stay removed")
	}
	n := rec.All()
	if len(n) != 1 || n[0].Message != "Hats is deleted successfully" {
		t.Fatalf("unexpected notifications: %#v", n)
	}
}

func TestUpdate_NotFoundRemovesRow(t *testing.T) {
	t.Parallel()

	store := seeded(t,
		model.Category{ID: "cat-aaaaaaaa", Name: "Hats"},
		model.Category{ID: "cat-bbbbbbbb", Name: "Shoes"},
	)
	remote := &fakeRemote{update: func(context.Context, string, model.Category) (model.Category, error) {
		return model.Category{}, &failure.Failure{Kind: failure.KindNotFound, Status: 404}
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	_, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Caps"})
	if !failure.Is(err, failure.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if got := names(store.Snapshot()); !equalStrings(got, []string{"Shoes"}) {
		t.Fatalf("want gone row removed, got %v", got)
	}
	n := rec.All()
	if len(n) != 1 || n[0].Level != notify.LevelError || n[0].Message != "Caps no longer exists" {
		t.Fatalf("unexpected notifications: %#v", n)
	}
	if _, ok := co.Failed("cat-aaaaaaaa"); ok {
		t.Fatalf("gone entity must not be retained for retry")
	}
}

func TestAuthFailure_RollsBackWithoutNotification(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	remote := &fakeRemote{create: func(context.Context, model.Category) (model.Category, error) {
		return model.Category{}, &failure.Failure{Kind: failure.KindUnauthorized, Status: 401}
	}}
	rec := &notify.Recorder{}
	var gotKind atomic.Value
	co := New("Category", store, remote,
		WithNotifier(rec),
		WithAuthFailureHandler(func(k failure.Kind) { gotKind.Store(k) }),
	)

	if _, err := co.Create(context.Background(), model.Category{Name: "Shoes"}); !failure.IsAuth(err) {
		t.Fatalf("want auth failure, got %v", err)
	}
	if got := names(store.Snapshot()); !equalStrings(got, []string{"Hats"}) {
		t.Fatalf("want optimistic create removed, got %v", got)
	}
	if len(rec.All()) != 0 {
		t.Fatalf("expected no notification, got %#v", rec.All())
	}
	if k, _ := gotKind.Load().(failure.Kind); k != failure.KindUnauthorized {
		t.Fatalf("want handler called with %q, got %q", failure.KindUnauthorized, k)
	}
}

func TestRetryAndDiscard(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	var fail atomic.Bool
	fail.Store(true)
	remote := &fakeRemote{update: func(_ context.Context, id string, c model.Category) (model.Category, error) {
		if fail.Load() {
			return model.Category{}, &failure.Failure{Kind: failure.KindNetwork}
		}
		return c.WithID(id), nil
	}}
	co := New("Category", store, remote)

	if _, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Caps"}); err == nil {
		t.Fatalf("expected error")
	}
	m, ok := co.Failed("cat-aaaaaaaa")
	if !ok || m.Status != cache.StatusFailed || m.Payload.Name != "Caps" {
		t.Fatalf("want retained failed update, got %#v (ok=%v)", m, ok)
	}
	if !failure.Retryable(m.Err) {
		t.Fatalf("want retained network failure to be retryable, got %v", m.Err)
	}

	fail.Store(false)
	if _, err := co.Retry(context.Background(), "cat-aaaaaaaa"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := names(store.Snapshot()); !equalStrings(got, []string{"Caps"}) {
		t.Fatalf("want retried update committed, got %v", got)
	}
	if _, err := co.Retry(context.Background(), "cat-aaaaaaaa"); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("want ErrNothingToRetry, got %v", err)
	}

	fail.Store(true)
	_, _ = co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Beanies"})
	if !co.Discard("cat-aaaaaaaa") {
		t.Fatalf("expected discard to drop retained failure")
	}
	if _, ok := co.Failed("cat-aaaaaaaa"); ok {
		t.Fatalf("expected nothing retained after discard")
	}

	_, _ = co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: "Fedoras"})
	co.Reset()
	if _, ok := co.Failed("cat-aaaaaaaa"); ok {
		t.Fatalf("expected reset to drop retained failures")
	}
}

func TestCallerCancellationDoesNotAbortSettlement(t *testing.T) {
	t.Parallel()

	store := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	remote := &fakeRemote{create: func(rctx context.Context, c model.Category) (model.Category, error) {
		cancel()
		if rctx.Err() != nil {
			return model.Category{}, rctx.Err()
		}
		return c.WithID("cat-shoes001"), nil
	}}
	co := New("Category", store, remote)

	if _, err := co.Create(ctx, model.Category{Name: "Shoes"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := store.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].Entity.ID != "cat-shoes001" {
		t.Fatalf("want committed row, got %#v", snap.Items)
	}
}

func TestConcurrentUpdates_AtMostOnePendingPerEntity(t *testing.T) {
	t.Parallel()

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	var inFlight, maxInFlight atomic.Int32
	remote := &fakeRemote{update: func(_ context.Context, id string, c model.Category) (model.Category, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return c.WithID(id), nil
	}}
	co := New("Category", store, remote)

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := co.Update(context.Background(), "cat-aaaaaaaa", model.Category{Name: fmt.Sprintf("v%d", i)})
			switch {
			case err == nil:
				ok.Add(1)
			case failure.Is(err, failure.KindConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Fatalf("want at most one in-flight update, saw %d", maxInFlight.Load())
	}
	if ok.Load()+conflicts.Load() != 32 || ok.Load() == 0 {
		t.Fatalf("unexpected outcome: ok=%d conflicts=%d", ok.Load(), conflicts.Load())
	}
	if int(ok.Load()) != len(remote.Calls()) {
		t.Fatalf("want one call per accepted update, got %d calls for %d", len(remote.Calls()), ok.Load())
	}
}

func TestCreate_MissingServerIDRollsBack(t *testing.T) {
	t.Parallel()

	store := seeded(t)
	remote := &fakeRemote{create: func(_ context.Context, c model.Category) (model.Category, error) {
		return model.Category{Name: c.Name}, nil
	}}
	rec := &notify.Recorder{}
	co := New("Category", store, remote, WithNotifier(rec))

	if _, err := co.Create(context.Background(), model.Category{Name: "Shoes"}); !failure.Is(err, failure.KindServer) {
		t.Fatalf("want server failure, got %v", err)
	}
	if len(store.Snapshot().Items) != 0 {
		t.Fatalf("expected placeholder removed")
	}
	n := rec.All()
	if len(n) != 1 || n[0].Message != "Category creation failed" {
		t.Fatalf("unexpected notifications: %#v", n)
	}
}

func TestMetrics_CountOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	again, err := NewMetrics(reg)
	if err != nil || again.mutations != metrics.mutations {
		t.Fatalf("expected second registration to reuse collectors, err=%v", err)
	}

	store := seeded(t, model.Category{ID: "cat-aaaaaaaa", Name: "Hats"})
	remote := &fakeRemote{remove: func(context.Context, string) (model.Category, error) {
		return model.Category{}, &failure.Failure{Kind: failure.KindServer, Status: 500}
	}}
	co := New("Category", store, remote, WithMetrics(metrics))

	_, _ = co.Create(context.Background(), model.Category{Name: "Shoes"})
	_, _ = co.Create(context.Background(), model.Category{})
	_, _ = co.Delete(context.Background(), "cat-aaaaaaaa")

	if got := testutil.ToFloat64(metrics.mutations.WithLabelValues("category", "create", OutcomeCommitted)); got != 1 {
		t.Fatalf("want 1 committed create, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.mutations.WithLabelValues("category", "create", OutcomeRejected)); got != 1 {
		t.Fatalf("want 1 rejected create, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.mutations.WithLabelValues("category", "delete", OutcomeRolledBack)); got != 1 {
		t.Fatalf("want 1 rolled back delete, got %v", got)
	}
}
