// Package mutate wraps create/update/delete calls with optimistic updates of the
// session cache.
//
// A Coordinator validates locally, rejects a second in-flight change to the same entity,
// applies the change to the cache, issues the remote call and then commits or rolls back.
// Exactly one notification is raised per settled mutation.
package mutate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shopadmin/internal/cache"
	"shopadmin/internal/failure"
	"shopadmin/internal/model"
	"shopadmin/internal/notify"

	"github.com/oklog/ulid/v2"
)

// TempIDPrefix marks ids assigned to optimistic creates. Server ids never start with it.
const TempIDPrefix = "tmp-"

func IsTempID(id string) bool { return strings.HasPrefix(id, TempIDPrefix) }

// Remote is the single-round-trip resource client the coordinator drives.
type Remote[T any] interface {
	Create(ctx context.Context, payload T) (T, error)
	Update(ctx context.Context, id string, payload T) (T, error)
	Remove(ctx context.Context, id string) (T, error)
}

type options struct {
	logger   *slog.Logger
	notifier notify.Notifier
	metrics  *Metrics
	onAuth   func(failure.Kind)
	newID    func() string
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithNotifier(n notify.Notifier) Option { return func(o *options) { o.notifier = n } }

func WithMetrics(m *Metrics) Option { return func(o *options) { o.metrics = m } }

// WithAuthFailureHandler receives Unauthorized/Forbidden failures; those are answered by
// the access guard, not by a notification.
func WithAuthFailureHandler(fn func(failure.Kind)) Option {
	return func(o *options) { o.onAuth = fn }
}

// WithIDSource overrides the generator used for mutation and temporary ids.
func WithIDSource(fn func() string) Option { return func(o *options) { o.newID = fn } }

type Coordinator[T model.Record[T]] struct {
	label  string
	store  *cache.Store[T]
	remote Remote[T]
	opts   options

	mu      sync.Mutex
	pending map[string]cache.Mutation[T]
	failed  map[string]cache.Mutation[T]
}

// New builds a coordinator for one resource. label is the human name used in default
// failure messages ("Category creation failed").
func New[T model.Record[T]](label string, store *cache.Store[T], remote Remote[T], opts ...Option) *Coordinator[T] {
	o := options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		notifier: notify.Discard,
		newID:    func() string { return strings.ToLower(ulid.Make().String()) },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Coordinator[T]{
		label:   label,
		store:   store,
		remote:  remote,
		opts:    o,
		pending: map[string]cache.Mutation[T]{},
		failed:  map[string]cache.Mutation[T]{},
	}
}

func (c *Coordinator[T]) Store() *cache.Store[T] { return c.store }

// Pending reports whether a mutation on id is in flight.
func (c *Coordinator[T]) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Failed returns the retained failed update/delete for id, if any.
func (c *Coordinator[T]) Failed(id string) (cache.Mutation[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.failed[id]
	return m, ok
}

// Discard drops the retained failed mutation for id.
func (c *Coordinator[T]) Discard(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failed[id]
	delete(c.failed, id)
	return ok
}

// Reset forgets retained failures. In-flight mutations still settle.
func (c *Coordinator[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.failed)
}

func (c *Coordinator[T]) Create(ctx context.Context, payload T) (T, error) {
	if err := payload.Validate(); err != nil {
		return c.reject(cache.OpCreate, failure.Validation(err.Error()))
	}
	tmp := TempIDPrefix + c.opts.newID()
	m := cache.Mutation[T]{
		ID:       c.opts.newID(),
		Op:       cache.OpCreate,
		TargetID: tmp,
		Payload:  payload.WithID(tmp),
	}
	return c.run(ctx, m)
}

func (c *Coordinator[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.reject(cache.OpUpdate, failure.Validation(c.label+" id is required"))
	}
	if err := payload.Validate(); err != nil {
		return c.reject(cache.OpUpdate, failure.Validation(err.Error()))
	}
	m := cache.Mutation[T]{
		ID:       c.opts.newID(),
		Op:       cache.OpUpdate,
		TargetID: id,
		Payload:  payload.WithID(id),
	}
	return c.run(ctx, m)
}

func (c *Coordinator[T]) Delete(ctx context.Context, id string) (T, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.reject(cache.OpDelete, failure.Validation(c.label+" id is required"))
	}
	var zero T
	payload := zero.WithID(id)
	if it, ok := c.store.Snapshot().Find(id); ok {
		payload = it.Entity
	}
	m := cache.Mutation[T]{
		ID:       c.opts.newID(),
		Op:       cache.OpDelete,
		TargetID: id,
		Payload:  payload,
	}
	return c.run(ctx, m)
}

// Retry re-issues the retained failed update/delete for id once.
func (c *Coordinator[T]) Retry(ctx context.Context, id string) (T, error) {
	c.mu.Lock()
	m, ok := c.failed[id]
	delete(c.failed, id)
	c.mu.Unlock()
	if !ok {
		var zero T
		return zero, ErrNothingToRetry
	}
	if m.Op == cache.OpDelete {
		return c.Delete(ctx, id)
	}
	return c.Update(ctx, id, m.Payload)
}

func (c *Coordinator[T]) run(ctx context.Context, m cache.Mutation[T]) (T, error) {
	var zero T
	resource := c.store.Resource()

	c.mu.Lock()
	if _, busy := c.pending[m.TargetID]; busy {
		c.mu.Unlock()
		return c.reject(m.Op, failure.Conflict(m.TargetID))
	}
	delete(c.failed, m.TargetID)
	m.Status = cache.StatusPending
	c.pending[m.TargetID] = m
	c.mu.Unlock()

	if err := c.store.ApplyOptimistic(m); err != nil {
		c.finish(m, false)
		return zero, fmt.Errorf("%s %s: %w", m.Op, resource, err)
	}
	c.opts.logger.Debug("mutation applied", "resource", resource, "op", m.Op, "target", m.TargetID, "mutation", m.ID)

	// The call and its settlement outlive the caller: closing a view must not leave the
	// cache half-applied. The client enforces its own timeout.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	var res T
	var err error
	switch m.Op {
	case cache.OpCreate:
		// The temporary id only lives in the cache; the server assigns the real one.
		res, err = c.remote.Create(ctx, m.Payload.WithID(""))
	case cache.OpUpdate:
		res, err = c.remote.Update(ctx, m.TargetID, m.Payload)
	case cache.OpDelete:
		res, err = c.remote.Remove(ctx, m.TargetID)
	}
	if err != nil {
		return c.settleFailure(m, err, start)
	}
	return c.settleSuccess(m, res, start)
}

func (c *Coordinator[T]) settleSuccess(m cache.Mutation[T], res T, start time.Time) (T, error) {
	resource := c.store.Resource()

	var result *T
	switch m.Op {
	case cache.OpCreate:
		if res.EntityID() == "" || IsTempID(res.EntityID()) {
			return c.settleFailure(m, &failure.Failure{
				Kind:    failure.KindServer,
				Op:      "create " + resource,
				Message: c.label + " creation failed",
			}, start)
		}
		result = &res
	case cache.OpUpdate:
		if res.EntityID() == "" {
			res = m.Payload
		}
		result = &res
	case cache.OpDelete:
		if strings.TrimSpace(res.DisplayName()) == "" {
			res = m.Payload
		}
	}

	c.commit(m, result)
	c.finish(m, false)
	c.opts.metrics.settled(resource, string(m.Op), OutcomeCommitted, time.Since(start))
	c.opts.logger.Debug("mutation committed", "resource", resource, "op", m.Op, "target", m.TargetID, "id", res.EntityID())

	name := displayName(res, m.Payload)
	c.notify(notify.LevelSuccess, m.Op, name, successMessage(m.Op, name))
	return res, nil
}

func (c *Coordinator[T]) settleFailure(m cache.Mutation[T], err error, start time.Time) (T, error) {
	var zero T
	resource := c.store.Resource()
	kind := failure.KindOf(err)
	name := displayName(m.Payload, m.Payload)

	// The target is confirmed gone server-side: make the removal permanent instead of
	// restoring a row that no longer exists.
	if kind == failure.KindNotFound && m.Op != cache.OpCreate {
		c.commit(m, nil)
		c.finish(m, false)
		c.opts.metrics.settled(resource, string(m.Op), OutcomeGone, time.Since(start))
		if m.Op == cache.OpDelete {
			c.opts.logger.Debug("delete target already gone", "resource", resource, "target", m.TargetID)
			c.notify(notify.LevelSuccess, m.Op, name, successMessage(m.Op, name))
			return m.Payload, nil
		}
		c.opts.logger.Warn("update target gone", "resource", resource, "target", m.TargetID)
		c.notify(notify.LevelError, m.Op, name, goneMessage(name))
		return zero, err
	}

	if rerr := c.store.Rollback(m.ID); rerr != nil {
		c.opts.logger.Debug("rollback skipped", "resource", resource, "mutation", m.ID, "err", rerr)
	}
	retain := m.Op != cache.OpCreate && !failure.IsAuth(err)
	m.Err = err
	c.finish(m, retain)
	c.opts.metrics.settled(resource, string(m.Op), OutcomeRolledBack, time.Since(start))
	c.opts.logger.Warn("mutation rolled back", "resource", resource, "op", m.Op, "target", m.TargetID, "kind", kind, "err", err)

	if failure.IsAuth(err) {
		if c.opts.onAuth != nil {
			c.opts.onAuth(kind)
		}
		return zero, err
	}

	msg := failure.MessageOf(err)
	if msg == "" {
		msg = defaultFailureMessage(m.Op, c.label)
	}
	c.notify(notify.LevelError, m.Op, name, msg)
	return zero, err
}

func (c *Coordinator[T]) commit(m cache.Mutation[T], result *T) {
	if err := c.store.Commit(m.ID, result); err != nil {
		// The cache was cleared (sign-out) while the call was in flight.
		c.opts.logger.Debug("commit skipped", "resource", c.store.Resource(), "mutation", m.ID, "err", err)
	}
}

// finish clears the pending record, optionally retaining it for one retry-or-discard.
func (c *Coordinator[T]) finish(m cache.Mutation[T], retain bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, m.TargetID)
	if retain {
		m.Status = cache.StatusFailed
		c.failed[m.TargetID] = m
	}
}

func (c *Coordinator[T]) reject(op cache.Op, f *failure.Failure) (T, error) {
	var zero T
	f.Op = string(op) + " " + c.store.Resource()
	c.opts.metrics.rejected(c.store.Resource(), string(op))
	return zero, f
}

func (c *Coordinator[T]) notify(level notify.Level, op cache.Op, name, msg string) {
	c.opts.notifier.Notify(notify.Notification{
		Level:    level,
		Resource: c.store.Resource(),
		Op:       string(op),
		Name:     name,
		Message:  msg,
		At:       time.Now(),
	})
}

func displayName[T model.Entity](primary, fallback T) string {
	if n := strings.TrimSpace(primary.DisplayName()); n != "" {
		return n
	}
	if n := strings.TrimSpace(fallback.DisplayName()); n != "" {
		return n
	}
	return fallback.EntityID()
}
