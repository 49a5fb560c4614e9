// Package notify carries the transient, user-visible outcome messages ("toasts") raised
// when a mutation settles.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notification struct {
	Level    Level
	Resource string
	Op       string
	// Name is the display name of the affected entity, when known.
	Name    string
	Message string
	At      time.Time
}

func (n Notification) String() string {
	return fmt.Sprintf("%s: %s", n.Level, n.Message)
}

type Notifier interface {
	Notify(Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Writer prints one line per notification (used by scriptable commands).
type Writer struct {
	mu sync.Mutex
	W  io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{W: w} }

func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintln(w.W, n.String())
}

// Queue buffers notifications for an event loop. Notify never blocks: when the buffer is
// full the oldest queued notification is dropped.
type Queue struct {
	ch chan Notification
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 16
	}
	return &Queue{ch: make(chan Notification, size)}
}

func (q *Queue) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	for {
		select {
		case q.ch <- n:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// C exposes the queue for receive loops.
func (q *Queue) C() <-chan Notification { return q.ch }

// Drain returns everything currently queued without blocking.
func (q *Queue) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-q.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}

// Recorder keeps every notification; handy for tests and for the CLI summary.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}
