// Package session keeps the live task store of one process. It applies
// commands, persists the result, runs deferred hard deletes and follows
// changes other processes make to the same storage.
package session

import (
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/td0m/tasklists/pkg/order"
	"github.com/td0m/tasklists/pkg/persist"
	"github.com/td0m/tasklists/pkg/task"
)

var (
	ErrNotDragging = errors.New("no task is being dragged")
	ErrClosed      = errors.New("session closed")
)

type Options struct {
	Clock  clockwork.Clock
	Logger *slog.Logger
	// Grace is the delay between a soft and a hard delete
	Grace time.Duration
	NewID func() task.ID
	Rand  *rand.Rand
	// CompactSpec is the cron schedule of sort key compaction, empty
	// disables it
	CompactSpec string
	MinGap      float64
}

func (o *Options) defaults() {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Grace <= 0 {
		o.Grace = task.GracePeriod
	}
	if o.NewID == nil {
		o.NewID = task.RandomID
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(o.Clock.Now().UnixNano()))
	}
	if o.MinGap <= 0 {
		o.MinGap = 1e-9
	}
}

// Drag is the task being dragged and the index it would be dropped at
type Drag struct {
	ID     task.ID
	Target int
	// Aimed is false until a target was set
	Aimed bool
}

type Session struct {
	durable *persist.Durable[task.Store]
	opts    Options
	log     *slog.Logger
	cron    *cron.Cron

	mu        sync.Mutex
	store     task.Store
	selected  task.ID
	drag      *Drag
	pending   map[task.Command]clockwork.Timer
	listeners map[int]func()
	next      int
	closed    bool

	unsubscribe func()
}

// New loads the store, falling back to the welcome content, and starts
// following external changes
func New(durable *persist.Durable[task.Store], opts Options) (*Session, error) {
	opts.defaults()
	s := &Session{
		durable:   durable,
		opts:      opts,
		log:       opts.Logger,
		pending:   map[task.Command]clockwork.Timer{},
		listeners: map[int]func(){},
	}

	loaded, err := durable.Initialize(func() task.Store { return task.Welcome(s.env()) })
	if err != nil {
		if !errors.Is(err, persist.ErrCorrupt) {
			return nil, err
		}
		s.log.Warn("stored tasks are corrupt, starting over", "err", err)
	}
	store, repaired := s.validate(loaded)

	s.mu.Lock()
	s.store = store
	if l, ok := store.Current(""); ok {
		s.selected = l.ID
	}
	// mirrors what was loaded, the durable skips it
	s.write()
	if repaired {
		s.write()
	}
	s.mu.Unlock()

	// records soft-deleted by a process that quit before its timers fired
	now := s.opts.Clock.Now()
	if _, err := s.Dispatch(task.Sweep{Before: now.Add(-s.opts.Grace)}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.schedulePending()
	s.mu.Unlock()

	s.unsubscribe, err = durable.Subscribe(s.replace)
	if err != nil {
		s.Close()
		return nil, err
	}

	if opts.CompactSpec != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(opts.CompactSpec, func() {
			if _, err := s.Dispatch(task.Compact{MinGap: s.opts.MinGap}); err != nil {
				s.log.Error("compacting sort keys", "err", err)
			}
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.cron.Start()
	}
	return s, nil
}

func (s *Session) env() task.Env {
	return task.Env{
		Now:   s.opts.Clock.Now(),
		NewID: s.opts.NewID,
		Rand:  s.opts.Rand,
		Grace: s.opts.Grace,
	}
}

// validate repairs a store that breaks its invariants, and replaces it with
// the welcome content when even that fails. The flag reports a change.
func (s *Session) validate(store task.Store) (task.Store, bool) {
	err := store.Check()
	if err == nil {
		return store, false
	}
	s.log.Warn("repairing stored tasks", "err", err)
	store.Repair()
	if err := store.Check(); err != nil {
		s.log.Error("stored tasks cannot be repaired, starting over", "err", err)
		return task.Welcome(s.env()), true
	}
	return store, true
}

// write persists the store, s.mu held
func (s *Session) write() {
	if err := s.durable.Write(s.store); err != nil {
		s.log.Error("persisting tasks", "err", err)
	}
}

// Dispatch applies cmds as a single transition. Either every command applies
// or the store is left untouched.
func (s *Session) Dispatch(cmds ...task.Command) (task.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return task.Result{}, ErrClosed
	}
	next := s.store.Clone()
	r, err := next.Apply(s.env(), cmds...)
	if err != nil || !r.Changed {
		s.mu.Unlock()
		return r, err
	}
	s.store = next
	s.write()
	for _, d := range r.Deferred {
		s.schedule(d)
	}
	if r.Redirect != "" {
		if l, ok := s.store.TaskLists[s.selected]; !ok || l.Deleted() {
			s.selected = r.Redirect
		}
	}
	s.settle()
	listeners := s.callbacks()
	s.mu.Unlock()

	notify(listeners)
	return r, nil
}

// schedule runs d once it is due, against whatever the store is then.
// s.mu held.
func (s *Session) schedule(d task.Deferred) {
	if _, ok := s.pending[d.Command]; ok {
		return
	}
	delay := d.At.Sub(s.opts.Clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.pending[d.Command] = s.opts.Clock.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, d.Command)
		s.mu.Unlock()
		if _, err := s.Dispatch(d.Command); err != nil && !errors.Is(err, ErrClosed) {
			s.log.Error("running deferred command", "err", err)
		}
	})
}

func (s *Session) schedulePending() {
	for _, d := range s.store.Pending(s.opts.Grace) {
		s.schedule(d)
	}
}

// settle fixes the view state after the store changed, s.mu held
func (s *Session) settle() {
	if l, ok := s.store.Current(s.selected); ok {
		s.selected = l.ID
	}
	if s.drag == nil {
		return
	}
	if t, ok := s.store.Tasks[s.drag.ID]; !ok || t.Deleted() {
		s.drag = nil
	}
}

// replace adopts a store written by another process. Nothing is written
// back, the other process already persisted it.
func (s *Session) replace(store task.Store) {
	if err := store.Check(); err != nil {
		s.log.Warn("ignoring inconsistent external change", "err", err)
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.store = store
	s.settle()
	s.schedulePending()
	listeners := s.callbacks()
	s.mu.Unlock()

	s.log.Debug("store changed externally", "lists", len(store.TaskLists), "tasks", len(store.Tasks))
	notify(listeners)
}

func (s *Session) callbacks() []func() {
	out := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// Subscribe calls fn after every change, local or external
func (s *Session) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the store that is safe to read at leisure
func (s *Session) Snapshot() task.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Clone()
}

// Selected returns the list on screen
func (s *Session) Selected() task.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Current returns the selected list
func (s *Session) Current() (task.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Current(s.selected)
}

func (s *Session) Select(id task.ID) error {
	s.mu.Lock()
	l, ok := s.store.TaskLists[id]
	if !ok || l.Deleted() {
		s.mu.Unlock()
		return task.ErrListNotFound
	}
	s.selected = id
	listeners := s.callbacks()
	s.mu.Unlock()
	notify(listeners)
	return nil
}

// Pick starts dragging a task
func (s *Session) Pick(id task.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.store.Tasks[id]
	if !ok {
		return task.ErrNotFound
	}
	if t.Deleted() {
		return task.ErrDeleted
	}
	s.drag = &Drag{ID: id}
	return nil
}

// Aim sets the index the dragged task would be dropped at
func (s *Session) Aim(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return ErrNotDragging
	}
	s.drag.Target = index
	s.drag.Aimed = true
	return nil
}

// Dragging returns the ongoing drag, if any
func (s *Session) Dragging() (Drag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return Drag{}, false
	}
	return *s.drag, true
}

// PlaceholderHidden reports whether the drop placeholder at index must be
// hidden because dropping there leaves the order unchanged
func (s *Session) PlaceholderHidden(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return true
	}
	t, ok := s.store.Tasks[s.drag.ID]
	if !ok {
		return true
	}
	return order.DropHidden(s.store.TaskLists[t.TaskListID].TasksSortIndex, s.drag.ID, index)
}

// Drop moves the dragged task to its target. A drag that was never aimed
// just ends.
func (s *Session) Drop() error {
	s.mu.Lock()
	d := s.drag
	s.drag = nil
	s.mu.Unlock()
	if d == nil {
		return ErrNotDragging
	}
	if !d.Aimed {
		return nil
	}
	_, err := s.Dispatch(task.MoveTask{ID: d.ID, Index: d.Target})
	return err
}

func (s *Session) CancelDrag() {
	s.mu.Lock()
	s.drag = nil
	s.mu.Unlock()
}

// Close stops the timers and the compaction job. The medium is left open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for cmd, t := range s.pending {
		t.Stop()
		delete(s.pending, cmd)
	}
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cron != nil {
		ctx := s.cron.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
	return nil
}
