package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/td0m/tasklists/pkg/order"
)

// SchemaVersion of the persisted Store. Blobs with another version are
// discarded on load.
const SchemaVersion = 0

var (
	ErrNotFound     = errors.New("not found")
	ErrListNotFound = errors.New("task list not found")
	ErrDeleted      = errors.New("deleted")
	ErrEmptyTitle   = errors.New("title is empty")
)

// Store is the whole persisted state
type Store struct {
	SchemaVersion      int         `json:"schemaVersion"`
	Tasks              map[ID]Task `json:"tasks"`
	TaskLists          map[ID]List `json:"taskLists"`
	TaskListsSortIndex []ID        `json:"taskListsSortIndex"`
}

func NewStore() Store {
	return Store{
		SchemaVersion: SchemaVersion,
		Tasks:         map[ID]Task{},
		TaskLists:     map[ID]List{},
	}
}

func (s Store) Version() int {
	return s.SchemaVersion
}

// Clone returns a deep copy. A failed transition applied to the copy leaves
// s untouched.
func (s Store) Clone() Store {
	out := Store{
		SchemaVersion:      s.SchemaVersion,
		Tasks:              make(map[ID]Task, len(s.Tasks)),
		TaskLists:          make(map[ID]List, len(s.TaskLists)),
		TaskListsSortIndex: append([]ID{}, s.TaskListsSortIndex...),
	}
	for id, t := range s.Tasks {
		out.Tasks[id] = t
	}
	for id, l := range s.TaskLists {
		l.TasksSortIndex = append([]ID{}, l.TasksSortIndex...)
		out.TaskLists[id] = l
	}
	return out
}

func (s Store) Task(id ID) (Task, bool) {
	t, ok := s.Tasks[id]
	return t, ok
}

func (s Store) List(id ID) (List, bool) {
	l, ok := s.TaskLists[id]
	return l, ok
}

// Lists returns the non-deleted lists in order
func (s Store) Lists() []List {
	out := []List{}
	for _, id := range s.TaskListsSortIndex {
		if l, ok := s.TaskLists[id]; ok && !l.Deleted() {
			out = append(out, l)
		}
	}
	return out
}

// TasksOf returns the tasks of a list in order, soft-deleted ones included
func (s Store) TasksOf(list ID) []Task {
	l, ok := s.TaskLists[list]
	if !ok {
		return nil
	}
	out := make([]Task, 0, len(l.TasksSortIndex))
	for _, id := range l.TasksSortIndex {
		if t, ok := s.Tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Current resolves the selected list. A selection pointing at a missing or
// deleted list falls back to the first non-deleted list.
func (s Store) Current(selected ID) (List, bool) {
	if l, ok := s.TaskLists[selected]; ok && !l.Deleted() {
		return l, true
	}
	lists := s.Lists()
	if len(lists) == 0 {
		return List{}, false
	}
	return lists[0], true
}

func (s Store) taskKey(id ID) float64 {
	return s.Tasks[id].SortKey
}

func (s Store) listKey(id ID) float64 {
	return s.TaskLists[id].SortKey
}

// Check validates the referential invariants of the store
func (s Store) Check() error {
	seen := map[ID]bool{}
	for _, l := range s.TaskLists {
		for _, id := range l.TasksSortIndex {
			t, ok := s.Tasks[id]
			if !ok {
				return fmt.Errorf("list %s: task %s: %w", l.ID, id, ErrNotFound)
			}
			if t.TaskListID != l.ID {
				return fmt.Errorf("list %s: task %s belongs to %s", l.ID, id, t.TaskListID)
			}
			if seen[id] {
				return fmt.Errorf("list %s: task %s indexed twice", l.ID, id)
			}
			seen[id] = true
		}
	}
	for id := range s.Tasks {
		if !seen[id] {
			return fmt.Errorf("task %s is not indexed", id)
		}
	}

	seen = map[ID]bool{}
	for _, id := range s.TaskListsSortIndex {
		if _, ok := s.TaskLists[id]; !ok {
			return fmt.Errorf("list %s: %w", id, ErrListNotFound)
		}
		if seen[id] {
			return fmt.Errorf("list %s indexed twice", id)
		}
		seen[id] = true
	}
	for id := range s.TaskLists {
		if !seen[id] {
			return fmt.Errorf("list %s is not indexed", id)
		}
	}
	if len(s.Lists()) == 0 {
		return errors.New("no task list left")
	}
	return nil
}

// Repair rebuilds every index from the sort keys. Tasks whose list is gone
// are dropped. It is meant for blobs that fail Check.
func (s *Store) Repair() {
	if s.Tasks == nil {
		s.Tasks = map[ID]Task{}
	}
	if s.TaskLists == nil {
		s.TaskLists = map[ID]List{}
	}
	members := map[ID][]ID{}
	for id, t := range s.Tasks {
		if _, ok := s.TaskLists[t.TaskListID]; !ok {
			delete(s.Tasks, id)
			continue
		}
		members[t.TaskListID] = append(members[t.TaskListID], id)
	}
	lists := make([]ID, 0, len(s.TaskLists))
	for id, l := range s.TaskLists {
		ids := order.Sort(members[id], s.taskKey)
		l.TasksSortIndex = stable(l.TasksSortIndex, ids)
		s.TaskLists[id] = l
		lists = append(lists, id)
	}
	s.TaskListsSortIndex = stable(s.TaskListsSortIndex, order.Sort(lists, s.listKey))
}

// stable keeps previous when it still holds exactly the ids of sorted,
// and falls back to sorted otherwise
func stable(previous, sorted []ID) []ID {
	valid := map[ID]bool{}
	for _, id := range sorted {
		valid[id] = true
	}
	kept := []ID{}
	seen := map[ID]bool{}
	for _, id := range previous {
		if valid[id] && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}
	if len(kept) == len(sorted) {
		return kept
	}
	return sorted
}

// Pending returns the hard deletes owed to every soft-deleted record, due
// grace after their deletion
func (s Store) Pending(grace time.Duration) []Deferred {
	out := []Deferred{}
	for _, id := range s.TaskListsSortIndex {
		if l, ok := s.TaskLists[id]; ok && l.DeletedAt != nil {
			out = append(out, Deferred{Command: HardDeleteList{ID: id}, At: l.DeletedAt.Add(grace)})
		}
	}
	for id, t := range s.Tasks {
		if t.DeletedAt != nil {
			out = append(out, Deferred{Command: HardDeleteTask{ID: id}, At: t.DeletedAt.Add(grace)})
		}
	}
	return out
}
