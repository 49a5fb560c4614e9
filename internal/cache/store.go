// Package cache holds the session-lifetime collections rendered by the admin views.
//
// A Store is the single source of truth for one resource collection. Views read it
// through Snapshot and Subscribe; it is mutated only by ApplyOptimistic, Commit,
// Rollback (driven by the mutation coordinator) and by fetches (Subscribe/Refresh).
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"shopadmin/internal/model"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownMutation   = errors.New("cache: unknown mutation")
	ErrDuplicateMutation = errors.New("cache: mutation already applied")
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
)

// Mutation is one create/update/delete against a single entity. For creates TargetID is
// the temporary id carried by Payload until the server assigns the real one.
type Mutation[T model.Entity] struct {
	ID       string
	Op       Op
	TargetID string
	Payload  T
	Status   Status
	// Err is the remote failure of a StatusFailed mutation.
	Err error
}

type Item[T model.Entity] struct {
	Entity  T
	Pending bool
}

// Collection is an immutable snapshot of a Store.
type Collection[T model.Entity] struct {
	Resource string
	Items    []Item[T]
	Version  uint64
	Loaded   bool
}

func (c Collection[T]) Entities() []T {
	out := make([]T, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.Entity)
	}
	return out
}

func (c Collection[T]) Index(id string) int {
	for i, it := range c.Items {
		if it.Entity.EntityID() == id {
			return i
		}
	}
	return -1
}

func (c Collection[T]) Find(id string) (Item[T], bool) {
	if i := c.Index(id); i >= 0 {
		return c.Items[i], true
	}
	return Item[T]{}, false
}

// Loader fetches the authoritative collection.
type Loader[T model.Entity] func(ctx context.Context) ([]T, error)

// applied remembers what an optimistic mutation replaced so it can be reverted
// without touching other entities.
type applied[T model.Entity] struct {
	m       Mutation[T]
	prev    T
	hadPrev bool
	index   int
	nextID  string
}

type subscriber[T model.Entity] struct {
	fn   func(Collection[T])
	last uint64
}

type Store[T model.Entity] struct {
	resource string
	load     Loader[T]

	mu         sync.Mutex
	items      []Item[T]
	loaded     bool
	version    uint64
	generation uint64
	applied    map[string]*applied[T]
	order      []string
	subs       map[uint64]*subscriber[T]
	nextSub    uint64

	// deliverMu serializes subscriber callbacks so a subscriber never sees an older
	// version after a newer one.
	deliverMu sync.Mutex
	fetches   singleflight.Group
}

func New[T model.Entity](resource string, load Loader[T]) *Store[T] {
	return &Store[T]{
		resource: resource,
		load:     load,
		applied:  map[string]*applied[T]{},
		subs:     map[uint64]*subscriber[T]{},
	}
}

func (s *Store[T]) Resource() string { return s.resource }

func (s *Store[T]) Snapshot() Collection[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn and returns its unsubscribe handle. The first subscriber of an
// unloaded store triggers the fetch; concurrent first subscribers share it. fn must not
// call ApplyOptimistic/Commit/Rollback/Clear synchronously.
func (s *Store[T]) Subscribe(ctx context.Context, fn func(Collection[T])) (func(), error) {
	if fn == nil {
		return nil, errors.New("cache: nil subscriber")
	}
	sub := &subscriber[T]{fn: fn}

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = sub
	loaded := s.loaded
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() { once.Do(func() { s.unsubscribe(id) }) }

	if !loaded {
		if err := s.ensureLoaded(ctx); err != nil {
			unsubscribe()
			return nil, err
		}
	}
	// Covers the already-loaded case and a fetch that finished before this subscriber
	// was reachable; the version check drops it when the fetch already delivered.
	s.deliverTo(sub, s.Snapshot())
	return unsubscribe, nil
}

func (s *Store[T]) ensureLoaded(ctx context.Context) error {
	_, err, _ := s.fetches.Do("load", func() (any, error) {
		s.mu.Lock()
		loaded := s.loaded
		s.mu.Unlock()
		if loaded {
			return nil, nil
		}
		return nil, s.Refresh(ctx)
	})
	return err
}

// Refresh replaces the collection with a fresh fetch and re-applies every optimistic
// mutation that is still pending. A fetch that started before Clear or teardown is dropped.
func (s *Store[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	var list []T
	if s.load != nil {
		var err error
		list, err = s.load(ctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", s.resource, err)
		}
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	items := make([]Item[T], 0, len(list))
	for _, e := range list {
		items = append(items, Item[T]{Entity: e})
	}
	s.items = items
	for _, id := range s.order {
		if a, ok := s.applied[id]; ok {
			s.applyLocked(a)
		}
	}
	s.loaded = true
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// ApplyOptimistic makes m visible immediately. Creates append a pending row, updates
// overwrite in place, deletes remove the row.
func (s *Store[T]) ApplyOptimistic(m Mutation[T]) error {
	if m.ID == "" || m.TargetID == "" {
		return errors.New("cache: mutation requires id and target id")
	}
	switch m.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("cache: unknown op %q", m.Op)
	}

	s.mu.Lock()
	if _, dup := s.applied[m.ID]; dup {
		s.mu.Unlock()
		return ErrDuplicateMutation
	}
	m.Status = StatusPending
	a := &applied[T]{m: m, index: -1}
	s.applied[m.ID] = a
	s.order = append(s.order, m.ID)
	if s.loaded {
		s.applyLocked(a)
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Store[T]) applyLocked(a *applied[T]) {
	switch a.m.Op {
	case OpCreate:
		if s.indexLocked(a.m.TargetID) < 0 {
			s.items = append(s.items, Item[T]{Entity: a.m.Payload, Pending: true})
		}
	case OpUpdate:
		if idx := s.indexLocked(a.m.TargetID); idx >= 0 {
			a.prev, a.hadPrev = s.items[idx].Entity, true
			s.items[idx] = Item[T]{Entity: a.m.Payload, Pending: true}
		}
	case OpDelete:
		if idx := s.indexLocked(a.m.TargetID); idx >= 0 {
			a.prev, a.hadPrev = s.items[idx].Entity, true
			a.index = idx
			a.nextID = ""
			if idx+1 < len(s.items) {
				a.nextID = s.items[idx+1].Entity.EntityID()
			}
			s.items = append(s.items[:idx], s.items[idx+1:]...)
		}
	}
}

// Commit settles a mutation with the server's authoritative entity. For updates a nil
// result means the target is confirmed gone and its row is dropped.
func (s *Store[T]) Commit(mutationID string, result *T) error {
	s.mu.Lock()
	a, err := s.takeLocked(mutationID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.loaded {
		target := a.m.TargetID
		switch a.m.Op {
		case OpCreate:
			idx := s.indexLocked(target)
			switch {
			case result == nil:
				s.removeLocked(idx)
			case s.indexLocked((*result).EntityID()) >= 0:
				// A refresh already brought the server row in; drop the placeholder.
				s.removeLocked(idx)
				s.items[s.indexLocked((*result).EntityID())] = Item[T]{Entity: *result}
			case idx >= 0:
				s.items[idx] = Item[T]{Entity: *result}
			default:
				s.items = append(s.items, Item[T]{Entity: *result})
			}
		case OpUpdate:
			idx := s.indexLocked(target)
			if result == nil {
				s.removeLocked(idx)
			} else if idx >= 0 {
				s.items[idx] = Item[T]{Entity: *result}
			}
		case OpDelete:
			s.removeLocked(s.indexLocked(target))
		}
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Rollback reverts a mutation's optimistic change for its own entity only.
func (s *Store[T]) Rollback(mutationID string) error {
	s.mu.Lock()
	a, err := s.takeLocked(mutationID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.loaded {
		target := a.m.TargetID
		switch a.m.Op {
		case OpCreate:
			s.removeLocked(s.indexLocked(target))
		case OpUpdate:
			if idx := s.indexLocked(target); idx >= 0 && a.hadPrev {
				s.items[idx] = Item[T]{Entity: a.prev}
			}
		case OpDelete:
			if a.hadPrev && s.indexLocked(target) < 0 {
				s.insertLocked(s.restoreIndexLocked(a), Item[T]{Entity: a.prev})
			}
		}
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Clear drops the collection and every pending pre-image, e.g. when the signed-in
// identity changes. In-flight fetches started before Clear are discarded.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.items = nil
	s.loaded = false
	s.applied = map[string]*applied[T]{}
	s.order = nil
	s.generation++
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Reset satisfies guard.Resetter.
func (s *Store[T]) Reset() { s.Clear() }

func (s *Store[T]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	if len(s.subs) > 0 {
		return
	}
	// Last view left: tear the collection down. Pending mutations keep their records
	// so a later fetch re-applies them and their settlement still lands.
	s.items = nil
	s.loaded = false
	s.generation++
	s.version++
}

func (s *Store[T]) takeLocked(mutationID string) (*applied[T], error) {
	a, ok := s.applied[mutationID]
	if !ok {
		return nil, ErrUnknownMutation
	}
	delete(s.applied, mutationID)
	for i, id := range s.order {
		if id == mutationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return a, nil
}

func (s *Store[T]) restoreIndexLocked(a *applied[T]) int {
	if a.nextID != "" {
		if idx := s.indexLocked(a.nextID); idx >= 0 {
			return idx
		}
	}
	return min(max(a.index, 0), len(s.items))
}

func (s *Store[T]) indexLocked(id string) int {
	for i, it := range s.items {
		if it.Entity.EntityID() == id {
			return i
		}
	}
	return -1
}

func (s *Store[T]) removeLocked(idx int) {
	if idx < 0 || idx >= len(s.items) {
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}

func (s *Store[T]) insertLocked(idx int, it Item[T]) {
	s.items = append(s.items, Item[T]{})
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = it
}

func (s *Store[T]) snapshotLocked() Collection[T] {
	items := make([]Item[T], len(s.items))
	copy(items, s.items)
	return Collection[T]{
		Resource: s.resource,
		Items:    items,
		Version:  s.version,
		Loaded:   s.loaded,
	}
}

func (s *Store[T]) notify(snap Collection[T]) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	subs := make([]*subscriber[T], 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if snap.Version > sub.last {
			sub.last = snap.Version
			sub.fn(snap)
		}
	}
}

func (s *Store[T]) deliverTo(sub *subscriber[T], snap Collection[T]) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if snap.Version > sub.last {
		sub.last = snap.Version
		sub.fn(snap)
	}
}
