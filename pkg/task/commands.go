package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/td0m/tasklists/pkg/order"
)

// GracePeriod is how long a soft-deleted record stays visible before it is
// hard deleted
const GracePeriod = 1500 * time.Millisecond

const (
	DefaultListTitle     = "New List"
	ReplacementListTitle = "Tasks"
)

var ErrInvalidColor = errors.New("invalid theme color")

// Command is a single state transition. Every field level change has its own
// command, so an update never touches a field it does not name.
type Command interface {
	apply(s *Store, env Env) (Result, error)
}

// Deferred is a command that has to run once At is reached
type Deferred struct {
	Command Command
	At      time.Time
}

// Result reports what a transition did beyond changing the store
type Result struct {
	// ID of the record the command created, if any
	ID ID
	// Redirect names the list that replaces a deleted selection
	Redirect ID
	Deferred []Deferred
	Changed  bool
}

func (r *Result) merge(o Result) {
	if o.ID != "" {
		r.ID = o.ID
	}
	if o.Redirect != "" {
		r.Redirect = o.Redirect
	}
	r.Deferred = append(r.Deferred, o.Deferred...)
	r.Changed = r.Changed || o.Changed
}

// Apply runs the commands in order. The store is modified in place, so
// callers wanting all-or-nothing semantics apply to a Clone.
func (s *Store) Apply(env Env, cmds ...Command) (Result, error) {
	var out Result
	for _, c := range cmds {
		r, err := c.apply(s, env)
		if err != nil {
			return out, err
		}
		out.merge(r)
	}
	return out, nil
}

// editable returns a task that exists and has not been deleted
func (s *Store) editable(id ID) (Task, error) {
	t, ok := s.Tasks[id]
	if !ok {
		return t, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if t.Deleted() {
		return t, fmt.Errorf("task %s: %w", id, ErrDeleted)
	}
	return t, nil
}

func (s *Store) editableList(id ID) (List, error) {
	l, ok := s.TaskLists[id]
	if !ok {
		return l, fmt.Errorf("list %s: %w", id, ErrListNotFound)
	}
	if l.Deleted() {
		return l, fmt.Errorf("list %s: %w", id, ErrDeleted)
	}
	return l, nil
}

type CreateTask struct {
	ListID ID
	Title  string
}

func (c CreateTask) apply(s *Store, env Env) (Result, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return Result{}, ErrEmptyTitle
	}
	l, err := s.editableList(c.ListID)
	if err != nil {
		return Result{}, err
	}
	t := Task{
		ID:         env.NewID(),
		TaskListID: l.ID,
		Title:      title,
		CreatedAt:  env.Now,
		UpdatedAt:  env.Now,
		SortKey:    sortKeyAt(env.Now),
	}
	s.Tasks[t.ID] = t
	l.TasksSortIndex = append(l.TasksSortIndex, t.ID)
	l.NewTaskTitle = ""
	s.TaskLists[l.ID] = l
	return Result{ID: t.ID, Changed: true}, nil
}

// update applies f to an editable task and bumps UpdatedAt
func (s *Store) update(id ID, env Env, f func(*Task)) (Result, error) {
	t, err := s.editable(id)
	if err != nil {
		return Result{}, err
	}
	f(&t)
	t.UpdatedAt = env.Now
	s.Tasks[id] = t
	return Result{Changed: true}, nil
}

type SetTitle struct {
	ID    ID
	Title string
}

func (c SetTitle) apply(s *Store, env Env) (Result, error) {
	return s.update(c.ID, env, func(t *Task) { t.Title = c.Title })
}

type SetCompleted struct {
	ID        ID
	Completed bool
}

func (c SetCompleted) apply(s *Store, env Env) (Result, error) {
	return s.update(c.ID, env, func(t *Task) { t.Completed = c.Completed })
}

type ToggleCompleted struct {
	ID ID
}

func (c ToggleCompleted) apply(s *Store, env Env) (Result, error) {
	return s.update(c.ID, env, func(t *Task) { t.Completed = !t.Completed })
}

// SetDueAt sets or, with a nil DueAt, clears the due date
type SetDueAt struct {
	ID    ID
	DueAt *time.Time
}

func (c SetDueAt) apply(s *Store, env Env) (Result, error) {
	return s.update(c.ID, env, func(t *Task) {
		if c.DueAt == nil {
			t.DueAt = nil
			return
		}
		due := *c.DueAt
		t.DueAt = &due
	})
}

// SoftDeleteTask marks a task deleted. It stays in its list until the
// HardDeleteTask it defers runs.
type SoftDeleteTask struct {
	ID ID
}

func (c SoftDeleteTask) apply(s *Store, env Env) (Result, error) {
	t, ok := s.Tasks[c.ID]
	if !ok {
		return Result{}, fmt.Errorf("task %s: %w", c.ID, ErrNotFound)
	}
	if t.Deleted() {
		return Result{}, nil
	}
	now := env.Now
	t.DeletedAt = &now
	s.Tasks[c.ID] = t
	return Result{
		Changed:  true,
		Deferred: []Deferred{{Command: HardDeleteTask{ID: c.ID}, At: now.Add(env.grace())}},
	}, nil
}

// HardDeleteTask removes a task and its index entry. A task that is already
// gone is not an error.
type HardDeleteTask struct {
	ID ID
}

func (c HardDeleteTask) apply(s *Store, env Env) (Result, error) {
	t, ok := s.Tasks[c.ID]
	if !ok {
		return Result{}, nil
	}
	delete(s.Tasks, c.ID)
	if l, ok := s.TaskLists[t.TaskListID]; ok {
		l.TasksSortIndex = order.Without(l.TasksSortIndex, c.ID)
		s.TaskLists[l.ID] = l
	}
	return Result{Changed: true}, nil
}

// MoveTask moves a task within its list. Index counts positions in the
// list's index before the move, soft-deleted tasks included.
type MoveTask struct {
	ID    ID
	Index int
}

func (c MoveTask) apply(s *Store, env Env) (Result, error) {
	t, err := s.editable(c.ID)
	if err != nil {
		return Result{}, err
	}
	l, err := s.editableList(t.TaskListID)
	if err != nil {
		return Result{}, err
	}
	r, err := order.Move(l.TasksSortIndex, c.ID, c.Index, s.taskKey)
	if err != nil {
		return Result{}, fmt.Errorf("move task %s: %w", c.ID, err)
	}
	if !r.Moved {
		return Result{}, nil
	}
	l.TasksSortIndex = r.Order
	s.TaskLists[l.ID] = l
	s.setTaskKeys(r.Keys)
	t = s.Tasks[c.ID]
	t.UpdatedAt = env.Now
	s.Tasks[c.ID] = t
	return Result{Changed: true}, nil
}

func (s *Store) setTaskKeys(keys map[ID]float64) {
	for id, k := range keys {
		t := s.Tasks[id]
		t.SortKey = k
		s.Tasks[id] = t
	}
}

// TransferTask moves a task into another list at Index
type TransferTask struct {
	ID     ID
	ListID ID
	Index  int
}

func (c TransferTask) apply(s *Store, env Env) (Result, error) {
	t, err := s.editable(c.ID)
	if err != nil {
		return Result{}, err
	}
	if t.TaskListID == c.ListID {
		return MoveTask{ID: c.ID, Index: c.Index}.apply(s, env)
	}
	dst, err := s.editableList(c.ListID)
	if err != nil {
		return Result{}, err
	}
	r, err := order.Insert(dst.TasksSortIndex, c.ID, c.Index, s.taskKey, sortKeyAt(env.Now))
	if err != nil {
		return Result{}, fmt.Errorf("transfer task %s: %w", c.ID, err)
	}
	if src, ok := s.TaskLists[t.TaskListID]; ok {
		src.TasksSortIndex = order.Without(src.TasksSortIndex, c.ID)
		s.TaskLists[src.ID] = src
	}
	dst.TasksSortIndex = r.Order
	s.TaskLists[dst.ID] = dst

	t.TaskListID = dst.ID
	t.UpdatedAt = env.Now
	s.Tasks[c.ID] = t
	s.setTaskKeys(r.Keys)
	return Result{Changed: true}, nil
}

// CreateList appends a new list. An empty title becomes "New List" and a
// missing color is picked among the colors no other list uses.
type CreateList struct {
	Title      string
	ThemeColor Color
}

func (c CreateList) apply(s *Store, env Env) (Result, error) {
	if c.ThemeColor != "" && !c.ThemeColor.Valid() {
		return Result{}, fmt.Errorf("%q: %w", c.ThemeColor, ErrInvalidColor)
	}
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = DefaultListTitle
	}
	l := s.appendList(title, c.ThemeColor, env)
	return Result{ID: l.ID, Changed: true}, nil
}

func (s *Store) appendList(title string, color Color, env Env) List {
	if color == "" {
		used := []Color{}
		for _, l := range s.Lists() {
			used = append(used, l.ThemeColor)
		}
		color = RandomColor(env.Rand, used)
	}
	l := List{
		ID:             env.NewID(),
		Title:          title,
		ThemeColor:     color,
		CreatedAt:      env.Now,
		UpdatedAt:      env.Now,
		TasksSortIndex: []ID{},
	}
	s.TaskLists[l.ID] = l
	r, err := order.Insert(s.TaskListsSortIndex, l.ID, len(s.TaskListsSortIndex), s.listKey, sortKeyAt(env.Now))
	if err != nil {
		// fresh ids are never part of the index
		panic(err)
	}
	s.TaskListsSortIndex = r.Order
	s.setListKeys(r.Keys)
	return s.TaskLists[l.ID]
}

func (s *Store) setListKeys(keys map[ID]float64) {
	for id, k := range keys {
		l := s.TaskLists[id]
		l.SortKey = k
		s.TaskLists[id] = l
	}
}

func (s *Store) updateList(id ID, env Env, f func(*List)) (Result, error) {
	l, err := s.editableList(id)
	if err != nil {
		return Result{}, err
	}
	f(&l)
	l.UpdatedAt = env.Now
	s.TaskLists[id] = l
	return Result{Changed: true}, nil
}

type SetListTitle struct {
	ID    ID
	Title string
}

func (c SetListTitle) apply(s *Store, env Env) (Result, error) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return Result{}, ErrEmptyTitle
	}
	return s.updateList(c.ID, env, func(l *List) { l.Title = title })
}

type SetListColor struct {
	ID    ID
	Color Color
}

func (c SetListColor) apply(s *Store, env Env) (Result, error) {
	if !c.Color.Valid() {
		return Result{}, fmt.Errorf("%q: %w", c.Color, ErrInvalidColor)
	}
	return s.updateList(c.ID, env, func(l *List) { l.ThemeColor = c.Color })
}

// SetNewTaskTitle stores the title being typed. It is input state, so
// UpdatedAt stays untouched.
type SetNewTaskTitle struct {
	ID    ID
	Title string
}

func (c SetNewTaskTitle) apply(s *Store, env Env) (Result, error) {
	l, err := s.editableList(c.ID)
	if err != nil {
		return Result{}, err
	}
	if l.NewTaskTitle == c.Title {
		return Result{}, nil
	}
	l.NewTaskTitle = c.Title
	s.TaskLists[c.ID] = l
	return Result{Changed: true}, nil
}

// SoftDeleteList marks a list deleted and redirects the selection. Deleting
// the last list creates a replacement in the same transition.
type SoftDeleteList struct {
	ID ID
}

func (c SoftDeleteList) apply(s *Store, env Env) (Result, error) {
	l, ok := s.TaskLists[c.ID]
	if !ok {
		return Result{}, fmt.Errorf("list %s: %w", c.ID, ErrListNotFound)
	}
	if l.Deleted() {
		return Result{}, nil
	}
	now := env.Now
	l.DeletedAt = &now
	s.TaskLists[c.ID] = l

	out := Result{
		Changed:  true,
		Deferred: []Deferred{{Command: HardDeleteList{ID: c.ID}, At: now.Add(env.grace())}},
	}
	out.Redirect = s.ensureList(env)
	return out, nil
}

// ensureList returns the first non-deleted list, creating one when there
// is none left
func (s *Store) ensureList(env Env) ID {
	if lists := s.Lists(); len(lists) > 0 {
		return lists[0].ID
	}
	return s.appendList(ReplacementListTitle, "", env).ID
}

// HardDeleteList removes a list together with all of its tasks
type HardDeleteList struct {
	ID ID
}

func (c HardDeleteList) apply(s *Store, env Env) (Result, error) {
	l, ok := s.TaskLists[c.ID]
	if !ok {
		return Result{}, nil
	}
	for _, id := range l.TasksSortIndex {
		delete(s.Tasks, id)
	}
	for id, t := range s.Tasks {
		if t.TaskListID == c.ID {
			delete(s.Tasks, id)
		}
	}
	delete(s.TaskLists, c.ID)
	s.TaskListsSortIndex = order.Without(s.TaskListsSortIndex, c.ID)
	s.ensureList(env)
	return Result{Changed: true}, nil
}

// MoveList reorders the lists, see MoveTask
type MoveList struct {
	ID    ID
	Index int
}

func (c MoveList) apply(s *Store, env Env) (Result, error) {
	if _, err := s.editableList(c.ID); err != nil {
		return Result{}, err
	}
	r, err := order.Move(s.TaskListsSortIndex, c.ID, c.Index, s.listKey)
	if err != nil {
		return Result{}, fmt.Errorf("move list %s: %w", c.ID, err)
	}
	if !r.Moved {
		return Result{}, nil
	}
	s.TaskListsSortIndex = r.Order
	s.setListKeys(r.Keys)
	return Result{Changed: true}, nil
}

// PlaceList moves a list to Position among the lists that are not deleted.
// Lists still in their grace period keep their place in the index.
type PlaceList struct {
	ID       ID
	Position int
}

func (c PlaceList) apply(s *Store, env Env) (Result, error) {
	if _, err := s.editableList(c.ID); err != nil {
		return Result{}, err
	}
	lists := s.Lists()
	if c.Position < 0 || c.Position >= len(lists) {
		return Result{}, fmt.Errorf("move list %s to %d: %w", c.ID, c.Position, order.ErrOutOfRange)
	}
	current := order.Index(s.TaskListsSortIndex, c.ID)
	index := order.Index(s.TaskListsSortIndex, lists[c.Position].ID)
	if index > current {
		index++
	}
	return MoveList{ID: c.ID, Index: index}.apply(s, env)
}

// Compact respaces the sort keys of every index whose closest neighbours
// are less than MinGap apart
type Compact struct {
	MinGap float64
}

func (c Compact) apply(s *Store, env Env) (Result, error) {
	var out Result
	for _, l := range s.TaskLists {
		if gap, ok := order.MinGap(l.TasksSortIndex, s.taskKey); ok && gap < c.MinGap {
			s.setTaskKeys(order.Respace(l.TasksSortIndex))
			out.Changed = true
		}
	}
	if gap, ok := order.MinGap(s.TaskListsSortIndex, s.listKey); ok && gap < c.MinGap {
		s.setListKeys(order.Respace(s.TaskListsSortIndex))
		out.Changed = true
	}
	return out, nil
}

// Sweep hard deletes every record soft-deleted at or before Before
type Sweep struct {
	Before time.Time
}

func (c Sweep) apply(s *Store, env Env) (Result, error) {
	var out Result
	for _, d := range s.Pending(0) {
		if d.At.After(c.Before) {
			continue
		}
		r, err := d.Command.apply(s, env)
		if err != nil {
			return out, err
		}
		out.merge(r)
	}
	return out, nil
}
