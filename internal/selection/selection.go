// Package selection tracks which entity an edit dialog is showing.
//
// A Machine is either Closed (nothing selected, dialog hidden) or Editing (one entity
// selected, dialog visible, a working draft primed from the entity). Submissions are
// delegated to a mutation coordinator; closing never cancels a submission in flight.
package selection

import (
	"context"
	"errors"
	"sync"

	"shopadmin/internal/model"
)

var (
	ErrNotEditing = errors.New("selection: no entity selected")
	ErrDialogOpen = errors.New("selection: dialog already open")
)

// Mutator is the subset of mutate.Coordinator a dialog submits through.
type Mutator[T any] interface {
	Update(ctx context.Context, id string, payload T) (T, error)
	Delete(ctx context.Context, id string) (T, error)
}

// State is a snapshot. DialogOpen implies SelectedID != "".
type State[T any] struct {
	SelectedID string
	DialogOpen bool
	Draft      string
	Entity     T
	// Submitting is set while a submission from this dialog is in flight.
	Submitting bool
	// Err holds the last failed submission, cleared by the next edit.
	Err error
}

func (s State[T]) Editing() bool { return s.DialogOpen }

type Machine[T model.Record[T]] struct {
	mut Mutator[T]

	mu    sync.Mutex
	state State[T]
}

func New[T model.Record[T]](mut Mutator[T]) *Machine[T] {
	return &Machine[T]{mut: mut}
}

func (m *Machine[T]) State() State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Select opens the dialog on e and primes the draft with its display name.
func (m *Machine[T]) Select(e T) error {
	id := e.EntityID()
	if id == "" {
		return errors.New("selection: entity has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.DialogOpen {
		return ErrDialogOpen
	}
	m.state = State[T]{
		SelectedID: id,
		DialogOpen: true,
		Draft:      e.DisplayName(),
		Entity:     e,
	}
	return nil
}

func (m *Machine[T]) SetDraft(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.DialogOpen {
		return ErrNotEditing
	}
	m.state.Draft = s
	m.state.Err = nil
	return nil
}

// Close hides the dialog from any state.
func (m *Machine[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State[T]{}
}

// Reset is Close under the name the session uses on identity changes.
func (m *Machine[T]) Reset() { m.Close() }

// SubmitUpdate sends payload for the selected entity. On success the dialog closes if it
// still shows that entity; on failure it stays open with Err set.
func (m *Machine[T]) SubmitUpdate(ctx context.Context, payload T) (T, error) {
	return m.submit(func(id string) (T, error) {
		return m.mut.Update(ctx, id, payload)
	})
}

func (m *Machine[T]) SubmitDelete(ctx context.Context) (T, error) {
	return m.submit(func(id string) (T, error) {
		return m.mut.Delete(ctx, id)
	})
}

func (m *Machine[T]) submit(call func(id string) (T, error)) (T, error) {
	var zero T
	m.mu.Lock()
	if !m.state.DialogOpen {
		m.mu.Unlock()
		return zero, ErrNotEditing
	}
	id := m.state.SelectedID
	m.state.Submitting = true
	m.state.Err = nil
	m.mu.Unlock()

	res, err := call(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.DialogOpen || m.state.SelectedID != id {
		// Closed or moved on while the call was in flight.
		return res, err
	}
	m.state.Submitting = false
	if err != nil {
		m.state.Err = err
		return res, err
	}
	m.state = State[T]{}
	return res, nil
}
