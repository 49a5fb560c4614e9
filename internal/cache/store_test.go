package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shopadmin/internal/model"
)

func staticLoader(list ...model.Category) (Loader[model.Category], *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context) ([]model.Category, error) {
		calls.Add(1)
		out := make([]model.Category, len(list))
		copy(out, list)
		return out, nil
	}, &calls
}

func names(c Collection[model.Category]) []string {
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

func loadedStore(t *testing.T, list ...model.Category) *Store[model.Category] {
	t.Helper()
	load, _ := staticLoader(list...)
	s := New(model.ResourceCategories, load)
	if _, err := s.Subscribe(context.Background(), func(Collection[model.Category]) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return s
}

func TestSubscribe_LazyFetchOnFirstSubscriber(t *testing.T) {
	t.Parallel()

	load, calls := staticLoader(model.Category{ID: "cat-a", Name: "A"})
	s := New(model.ResourceCategories, load)
	if s.Snapshot().Loaded {
		t.Fatalf("expected store to start unloaded")
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no fetch before subscription")
	}

	var got []Collection[model.Category]
	unsub, err := s.Subscribe(context.Background(), func(c Collection[model.Category]) { got = append(got, c) })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if calls.Load() != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls.Load())
	}
	if len(got) != 1 || !equalStrings(names(got[0]), []string{"A"}) {
		t.Fatalf("expected initial snapshot delivered once, got %#v", got)
	}

	// Second subscriber reuses the loaded collection.
	unsub2, err := s.Subscribe(context.Background(), func(Collection[model.Category]) {})
	if err != nil {
		t.Fatalf("subscribe 2: %v", err)
	}
	defer unsub2()
	if calls.Load() != 1 {
		t.Fatalf("expected no refetch for second subscriber, got %d fetches", calls.Load())
	}
}

func TestSubscribe_ConcurrentFirstSubscribersShareOneFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int32
	s := New(model.ResourceCategories, func(ctx context.Context) ([]model.Category, error) {
		calls.Add(1)
		<-release
		return []model.Category{{ID: "cat-a", Name: "A"}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Subscribe(context.Background(), func(Collection[model.Category]) {}); err != nil {
				t.Errorf("subscribe: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single shared fetch, got %d", calls.Load())
	}
}

func TestSubscribe_FetchErrorUnsubscribes(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := New(model.ResourceCategories, func(ctx context.Context) ([]model.Category, error) { return nil, boom })
	if _, err := s.Subscribe(context.Background(), func(Collection[model.Category]) {}); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	s.mu.Lock()
	n := len(s.subs)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected failed subscriber to be removed, got %d", n)
	}
}

func TestLastUnsubscribeTearsDown(t *testing.T) {
	t.Parallel()

	load, calls := staticLoader(model.Category{ID: "cat-a", Name: "A"})
	s := New(model.ResourceCategories, load)
	unsub, err := s.Subscribe(context.Background(), func(Collection[model.Category]) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	unsub()
	unsub() // idempotent

	snap := s.Snapshot()
	if snap.Loaded || len(snap.Items) != 0 {
		t.Fatalf("expected torn-down collection, got %#v", snap)
	}

	if _, err := s.Subscribe(context.Background(), func(Collection[model.Category]) {}); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refetch after teardown, got %d fetches", calls.Load())
	}
}

func TestCreate_CommitSwapsTemporaryIDInPlace(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, model.Category{ID: "cat-a", Name: "A"}, model.Category{ID: "cat-b", Name: "B"})
	m := Mutation[model.Category]{ID: "m1", Op: OpCreate, TargetID: "tmp-1", Payload: model.Category{ID: "tmp-1", Name: "Shoes"}}
	if err := s.ApplyOptimistic(m); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snap := s.Snapshot()
	it, ok := snap.Find("tmp-1")
	if !ok || !it.Pending || snap.Index("tmp-1") != 2 {
		t.Fatalf("expected pending row appended, got %#v", snap.Items)
	}

	// An unrelated entity is created while Shoes is pending.
	if err := s.ApplyOptimistic(Mutation[model.Category]{ID: "m2", Op: OpCreate, TargetID: "tmp-2", Payload: model.Category{ID: "tmp-2", Name: "Hats"}}); err != nil {
		t.Fatalf("apply 2: %v", err)
	}

	res := model.Category{ID: "cat-s", Name: "Shoes"}
	if err := s.Commit("m1", &res); err != nil {
		t.Fatalf("commit: %v", err)
	}
	snap = s.Snapshot()
	if snap.Index("tmp-1") != -1 || snap.Index("cat-s") != 2 {
		t.Fatalf("expected server id at the placeholder position, got %#v", snap.Items)
	}
	if it, _ := snap.Find("cat-s"); it.Pending {
		t.Fatalf("expected committed row to drop the pending marker")
	}
	if !equalStrings(names(snap), []string{"A", "B", "Shoes", "Hats"}) {
		t.Fatalf("unexpected order: %v", names(snap))
	}
}

func TestDelete_RollbackRestoresOriginalPosition(t *testing.T) {
	t.Parallel()

	s := loadedStore(t,
		model.Category{ID: "cat-a", Name: "A"},
		model.Category{ID: "cat-y", Name: "Y"},
		model.Category{ID: "cat-c", Name: "C"},
	)
	if err := s.ApplyOptimistic(Mutation[model.Category]{ID: "m1", Op: OpDelete, TargetID: "cat-y"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := names(s.Snapshot()); !equalStrings(got, []string{"A", "C"}) {
		t.Fatalf("expected optimistic removal, got %v", got)
	}

	// A concurrent delete of A settles first; Y must still return before C.
	if err := s.ApplyOptimistic(Mutation[model.Category]{ID: "m2", Op: OpDelete, TargetID: "cat-a"}); err != nil {
		t.Fatalf("apply 2: %v", err)
	}
	if err := s.Commit("m2", nil); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := s.Rollback("m1"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := names(s.Snapshot()); !equalStrings(got, []string{"Y", "C"}) {
		t.Fatalf("expected Y restored before C, got %v", got)
	}
}

func TestUpdate_RollbackOnlyTouchesTarget(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, model.Category{ID: "cat-a", Name: "A"}, model.Category{ID: "cat-b", Name: "B"})
	_ = s.ApplyOptimistic(Mutation[model.Category]{ID: "m1", Op: OpUpdate, TargetID: "cat-a", Payload: model.Category{ID: "cat-a", Name: "A2"}})
	_ = s.ApplyOptimistic(Mutation[model.Category]{ID: "m2", Op: OpUpdate, TargetID: "cat-b", Payload: model.Category{ID: "cat-b", Name: "B2"}})

	if err := s.Rollback("m1"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	snap := s.Snapshot()
	if !equalStrings(names(snap), []string{"A", "B2"}) {
		t.Fatalf("unexpected names after rollback: %v", names(snap))
	}
	if it, _ := snap.Find("cat-a"); it.Pending {
		t.Fatalf("rolled back row should not be pending")
	}
	if it, _ := snap.Find("cat-b"); !it.Pending {
		t.Fatalf("unaffected pending update should stay pending")
	}
}

func TestUpdate_CommitWithoutResultRemovesRow(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, model.Category{ID: "cat-a", Name: "A"}, model.Category{ID: "cat-b", Name: "B"})
	_ = s.ApplyOptimistic(Mutation[model.Category]{ID: "m1", Op: OpUpdate, TargetID: "cat-a", Payload: model.Category{ID: "cat-a", Name: "A2"}})
	if err := s.Commit("m1", nil); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := names(s.Snapshot()); !equalStrings(got, []string{"B"}) {
		t.Fatalf("expected confirmed-gone row removed, got %v", got)
	}
}

func TestSettleUnknownMutation(t *testing.T) {
	t.Parallel()

	s := loadedStore(t)
	if err := s.Commit("nope", nil); !errors.Is(err, ErrUnknownMutation) {
		t.Fatalf("commit: expected ErrUnknownMutation, got %v", err)
	}
	if err := s.Rollback("nope"); !errors.Is(err, ErrUnknownMutation) {
		t.Fatalf("rollback: expected ErrUnknownMutation, got %v", err)
	}
	m := Mutation[model.Category]{ID: "m1", Op: OpDelete, TargetID: "cat-x"}
	_ = s.ApplyOptimistic(m)
	if err := s.ApplyOptimistic(m); !errors.Is(err, ErrDuplicateMutation) {
		t.Fatalf("expected ErrDuplicateMutation, got %v", err)
	}
}

func TestRefresh_ReappliesPendingMutations(t *testing.T) {
	t.Parallel()

	s := loadedStore(t, model.Category{ID: "cat-a", Name: "A"}, model.Category{ID: "cat-b", Name: "B"})
	_ = s.ApplyOptimistic(Mutation[model.Category]{ID: "m1", Op: OpDelete, TargetID: "cat-a"})
	_ = s.ApplyOptimistic(Mutation[model.Category]{ID: "m2", Op: OpCreate, TargetID: "tmp-1", Payload: model.Category{ID: "tmp-1", Name: "N"}})

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := names(s.Snapshot()); !equalStrings(got, []string{"B", "N"}) {
		t.Fatalf("expected pending mutations re-applied, got %v", got)
	}
	if err := s.Rollback("m1"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := names(s.Snapshot()); !equalStrings(got, []string{"A", "B", "N"}) {
		t.Fatalf("expected A restored after refresh+rollback, got %v", got)
	}
}

func TestClear_DiscardsInFlightFetch(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	s := New(model.ResourceCategories, func(ctx context.Context) ([]model.Category, error) {
		close(started)
		<-release
		return []model.Category{{ID: "cat-old", Name: "previous identity"}}, nil
	})

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()
	<-started
	s.Clear()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap := s.Snapshot(); snap.Loaded || len(snap.Items) != 0 {
		t.Fatalf("expected stale fetch to be dropped, got %#v", snap)
	}
}

func TestSubscribersObserveMonotonicVersions(t *testing.T) {
	t.Parallel()

	load, _ := staticLoader()
	s := New(model.ResourceCategories, load)

	var mu sync.Mutex
	var versions []uint64
	if _, err := s.Subscribe(context.Background(), func(c Collection[model.Category]) {
		mu.Lock()
		versions = append(versions, c.Version)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("tmp-%d", i)
			m := Mutation[model.Category]{ID: "m" + id, Op: OpCreate, TargetID: id, Payload: model.Category{ID: id, Name: id}}
			_ = s.ApplyOptimistic(m)
			res := model.Category{ID: fmt.Sprintf("cat-%d", i), Name: id}
			_ = s.Commit(m.ID, &res)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("non-monotonic delivery at %d: %v", i, versions)
		}
	}
	if got := len(s.Snapshot().Items); got != 50 {
		t.Fatalf("expected 50 committed rows, got %d", got)
	}
}

// Replaying only the committed mutations, in settlement order, must produce the same
// set of entities as the store; rolled-back mutations leave no trace.
func TestSettlementMatchesCommittedReplay(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 40; seed++ {
		rng := rand.New(rand.NewSource(seed))
		initial := []model.Category{
			{ID: "cat-1", Name: "one"},
			{ID: "cat-2", Name: "two"},
			{ID: "cat-3", Name: "three"},
			{ID: "cat-4", Name: "four"},
		}
		s := loadedStore(t, initial...)

		replay := map[string]string{}
		for _, c := range initial {
			replay[c.ID] = c.Name
		}
		live := map[string]bool{"cat-1": true, "cat-2": true, "cat-3": true, "cat-4": true}
		busy := map[string]bool{}

		type inflight struct {
			m      Mutation[model.Category]
			ok     bool
			result model.Category
		}
		var pending []inflight
		next := 0

		settle := func(i int) {
			f := pending[i]
			pending = append(pending[:i], pending[i+1:]...)
			delete(busy, f.m.TargetID)
			if !f.ok {
				if err := s.Rollback(f.m.ID); err != nil {
					t.Fatalf("seed %d rollback: %v", seed, err)
				}
				if f.m.Op == OpCreate {
					delete(live, f.m.TargetID)
				}
				return
			}
			switch f.m.Op {
			case OpCreate:
				replay[f.result.ID] = f.result.Name
				delete(live, f.m.TargetID)
				live[f.result.ID] = true
				if err := s.Commit(f.m.ID, &f.result); err != nil {
					t.Fatalf("seed %d commit: %v", seed, err)
				}
			case OpUpdate:
				replay[f.m.TargetID] = f.result.Name
				if err := s.Commit(f.m.ID, &f.result); err != nil {
					t.Fatalf("seed %d commit: %v", seed, err)
				}
			case OpDelete:
				delete(replay, f.m.TargetID)
				delete(live, f.m.TargetID)
				if err := s.Commit(f.m.ID, nil); err != nil {
					t.Fatalf("seed %d commit: %v", seed, err)
				}
			}
		}

		for step := 0; step < 60; step++ {
			if len(pending) > 0 && rng.Intn(3) == 0 {
				settle(rng.Intn(len(pending)))
				continue
			}
			next++
			ok := rng.Intn(2) == 0
			var candidates []string
			for id := range live {
				if !busy[id] && id[:4] == "cat-" {
					candidates = append(candidates, id)
				}
			}
			op := OpCreate
			if len(candidates) > 0 {
				op = []Op{OpCreate, OpUpdate, OpDelete}[rng.Intn(3)]
			}
			var f inflight
			switch op {
			case OpCreate:
				tmp := fmt.Sprintf("tmp-%d", next)
				name := fmt.Sprintf("new-%d", next)
				f = inflight{
					m:      Mutation[model.Category]{ID: fmt.Sprintf("m%d", next), Op: OpCreate, TargetID: tmp, Payload: model.Category{ID: tmp, Name: name}},
					ok:     ok,
					result: model.Category{ID: fmt.Sprintf("cat-n%d", next), Name: name},
				}
				live[tmp] = true
			case OpUpdate, OpDelete:
				// Deterministic pick for a given seed.
				pick := candidates[0]
				for _, c := range candidates {
					if c < pick {
						pick = c
					}
				}
				if rng.Intn(2) == 0 {
					pick = candidates[rng.Intn(len(candidates))]
				}
				name := fmt.Sprintf("upd-%d", next)
				f = inflight{
					m:      Mutation[model.Category]{ID: fmt.Sprintf("m%d", next), Op: op, TargetID: pick, Payload: model.Category{ID: pick, Name: name}},
					ok:     ok,
					result: model.Category{ID: pick, Name: name},
				}
			}
			busy[f.m.TargetID] = true
			if err := s.ApplyOptimistic(f.m); err != nil {
				t.Fatalf("seed %d apply: %v", seed, err)
			}
			pending = append(pending, f)
		}
		for len(pending) > 0 {
			settle(rng.Intn(len(pending)))
		}

		got := map[string]string{}
		for _, it := range s.Snapshot().Items {
			if it.Pending {
				t.Fatalf("seed %d: row %s still pending after settlement", seed, it.Entity.ID)
			}
			got[it.Entity.ID] = it.Entity.Name
		}
		if len(got) != len(replay) {
			t.Fatalf("seed %d: want %v, got %v", seed, replay, got)
		}
		for id, name := range replay {
			if got[id] != name {
				t.Fatalf("seed %d: entity %s want %q, got %q", seed, id, name, got[id])
			}
		}
	}
}

func TestRegistry_ResetClearsEveryStore(t *testing.T) {
	t.Parallel()

	cats := loadedStore(t, model.Category{ID: "cat-a", Name: "A"})
	prods := New[model.Product](model.ResourceProducts, func(ctx context.Context) ([]model.Product, error) {
		return []model.Product{{ID: "prd-1", Name: "P"}}, nil
	})
	if _, err := prods.Subscribe(context.Background(), func(Collection[model.Product]) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r := NewRegistry()
	r.Register(cats)
	r.Register(prods)
	if len(r.Resources()) != 2 {
		t.Fatalf("expected 2 registered resources, got %v", r.Resources())
	}
	r.Reset()

	if cats.Snapshot().Loaded || len(cats.Snapshot().Items) != 0 {
		t.Fatalf("expected categories cleared")
	}
	if prods.Snapshot().Loaded || len(prods.Snapshot().Items) != 0 {
		t.Fatalf("expected products cleared")
	}
}
