package task

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/td0m/tasklists/pkg/order"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// testEnv hands out ids "1", "2", ... so that tests can refer to them
func testEnv() Env {
	n := 0
	return Env{
		Now: epoch,
		NewID: func() ID {
			n++
			return ID(fmt.Sprint(n))
		},
		Rand: rand.New(rand.NewSource(1)),
	}
}

// fixture builds list L with tasks A, B and C keyed 10, 20 and 30
func fixture() Store {
	s := NewStore()
	s.TaskLists["L"] = List{ID: "L", Title: "L", ThemeColor: "red", TasksSortIndex: []ID{"A", "B", "C"}, SortKey: 1}
	s.TaskListsSortIndex = []ID{"L"}
	for i, id := range []ID{"A", "B", "C"} {
		s.Tasks[id] = Task{ID: id, TaskListID: "L", Title: string(id), SortKey: float64(10 * (i + 1))}
	}
	return s
}

func TestStore_CreateTask(t *testing.T) {
	s := fixture()
	env := testEnv()

	t.Run("appends to the list", func(t *testing.T) {
		is := is.New(t)
		l := s.TaskLists["L"]
		l.NewTaskTitle = "  milk "
		s.TaskLists["L"] = l

		r, err := s.Apply(env, CreateTask{ListID: "L", Title: "  milk "})
		is.NoErr(err)
		is.True(r.Changed)
		created := s.Tasks[r.ID]
		is.Equal(created.Title, "milk")
		is.Equal(created.Completed, false)
		is.Equal(created.CreatedAt, epoch)
		is.Equal(created.UpdatedAt, epoch)
		is.Equal(created.SortKey, float64(epoch.UnixMilli()))
		is.Equal(s.TaskLists["L"].TasksSortIndex, []ID{"A", "B", "C", r.ID})
		is.Equal(s.TaskLists["L"].NewTaskTitle, "")
		is.NoErr(s.Check())
	})

	t.Run("rejects an empty title", func(t *testing.T) {
		is := is.New(t)
		_, err := s.Apply(env, CreateTask{ListID: "L", Title: "   "})
		is.Equal(err, ErrEmptyTitle)
	})

	t.Run("rejects an unknown list", func(t *testing.T) {
		is := is.New(t)
		_, err := s.Apply(env, CreateTask{ListID: "nope", Title: "x"})
		is.True(errors.Is(err, ErrListNotFound))
	})
}

func TestStore_Update(t *testing.T) {
	s := fixture()
	env := testEnv()
	later := epoch.Add(time.Hour)
	env.Now = later

	t.Run("field commands only touch their field", func(t *testing.T) {
		is := is.New(t)
		due := epoch.AddDate(0, 0, 3)
		_, err := s.Apply(env, SetTitle{ID: "A", Title: "apples"}, SetDueAt{ID: "A", DueAt: &due})
		is.NoErr(err)
		a := s.Tasks["A"]
		is.Equal(a.Title, "apples")
		is.Equal(*a.DueAt, due)
		is.Equal(a.Completed, false)
		is.Equal(a.SortKey, 10.0)
		is.Equal(a.UpdatedAt, later)

		_, err = s.Apply(env, SetDueAt{ID: "A"})
		is.NoErr(err)
		is.True(s.Tasks["A"].DueAt == nil)
	})

	t.Run("toggle", func(t *testing.T) {
		is := is.New(t)
		_, err := s.Apply(env, ToggleCompleted{ID: "B"})
		is.NoErr(err)
		is.Equal(s.Tasks["B"].Completed, true)
		_, err = s.Apply(env, ToggleCompleted{ID: "B"})
		is.NoErr(err)
		is.Equal(s.Tasks["B"].Completed, false)
		_, err = s.Apply(env, SetCompleted{ID: "B", Completed: true})
		is.NoErr(err)
		is.Equal(s.Tasks["B"].Completed, true)
	})

	t.Run("missing task is an error, not a panic", func(t *testing.T) {
		is := is.New(t)
		_, err := s.Apply(env, SetTitle{ID: "missing", Title: "x"})
		is.True(errors.Is(err, ErrNotFound))
	})
}

func TestStore_Move(t *testing.T) {
	tests := []struct {
		id    ID
		index int
		want  []ID
		key   float64
	}{
		{"C", 0, []ID{"C", "A", "B"}, 9},
		{"A", 3, []ID{"B", "C", "A"}, 31},
		{"B", 0, []ID{"B", "A", "C"}, 9},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %d", tt.id, tt.index), func(t *testing.T) {
			is := is.New(t)
			s := fixture()
			r, err := s.Apply(testEnv(), MoveTask{ID: tt.id, Index: tt.index})
			is.NoErr(err)
			is.True(r.Changed)
			is.Equal(s.TaskLists["L"].TasksSortIndex, tt.want)
			is.Equal(s.Tasks[tt.id].SortKey, tt.key)
			is.NoErr(s.Check())
		})
	}

	t.Run("no-op at the boundaries", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		r, err := s.Apply(testEnv(), MoveTask{ID: "A", Index: 0}, MoveTask{ID: "C", Index: 3})
		is.NoErr(err)
		is.True(!r.Changed)
		is.Equal(s, fixture())
	})

	t.Run("soft-deleted tasks cannot be moved", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		_, err := s.Apply(testEnv(), SoftDeleteTask{ID: "A"})
		is.NoErr(err)
		_, err = s.Apply(testEnv(), MoveTask{ID: "A", Index: 3})
		is.True(errors.Is(err, ErrDeleted))
	})
}

func TestStore_Delete(t *testing.T) {
	is := is.New(t)
	s := fixture()
	env := testEnv()

	r, err := s.Apply(env, SoftDeleteTask{ID: "B"})
	is.NoErr(err)
	is.Equal(*s.Tasks["B"].DeletedAt, epoch)
	is.Equal(s.TaskLists["L"].TasksSortIndex, []ID{"A", "B", "C"}) // still shown while fading out
	is.Equal(len(r.Deferred), 1)
	is.Equal(r.Deferred[0].Command, HardDeleteTask{ID: "B"})
	is.Equal(r.Deferred[0].At, epoch.Add(GracePeriod))

	// deleting twice changes nothing and schedules nothing
	r, err = s.Apply(env, SoftDeleteTask{ID: "B"})
	is.NoErr(err)
	is.True(!r.Changed)
	is.Equal(len(r.Deferred), 0)

	_, err = s.Apply(env, SetTitle{ID: "B", Title: "x"})
	is.True(errors.Is(err, ErrDeleted))

	_, err = s.Apply(env, HardDeleteTask{ID: "B"})
	is.NoErr(err)
	_, ok := s.Tasks["B"]
	is.True(!ok)
	is.Equal(s.TaskLists["L"].TasksSortIndex, []ID{"A", "C"})
	is.NoErr(s.Check())

	// a late hard delete finds nothing to do
	r, err = s.Apply(env, HardDeleteTask{ID: "B"})
	is.NoErr(err)
	is.True(!r.Changed)
}

func TestStore_Transfer(t *testing.T) {
	is := is.New(t)
	s := fixture()
	env := testEnv()

	r, err := s.Apply(env, CreateList{Title: "Other", ThemeColor: "blue"})
	is.NoErr(err)
	other := r.ID

	_, err = s.Apply(env, TransferTask{ID: "B", ListID: other, Index: 0})
	is.NoErr(err)
	is.Equal(s.Tasks["B"].TaskListID, other)
	is.Equal(s.TaskLists["L"].TasksSortIndex, []ID{"A", "C"})
	is.Equal(s.TaskLists[other].TasksSortIndex, []ID{"B"})
	is.Equal(s.Tasks["B"].SortKey, float64(epoch.UnixMilli()))

	_, err = s.Apply(env, TransferTask{ID: "A", ListID: other, Index: 0})
	is.NoErr(err)
	is.Equal(s.TaskLists[other].TasksSortIndex, []ID{"A", "B"})
	is.Equal(s.Tasks["A"].SortKey, float64(epoch.UnixMilli())-1)
	is.NoErr(s.Check())
}

func TestStore_Lists(t *testing.T) {
	t.Run("create picks an unused color", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		r, err := s.Apply(testEnv(), CreateList{})
		is.NoErr(err)
		l := s.TaskLists[r.ID]
		is.Equal(l.Title, DefaultListTitle)
		is.True(l.ThemeColor.Valid())
		is.True(l.ThemeColor != "red")
		is.Equal(s.TaskListsSortIndex, []ID{"L", r.ID})
		is.Equal(l.SortKey, 2.0)
		is.NoErr(s.Check())
	})

	t.Run("invalid color", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		_, err := s.Apply(testEnv(), CreateList{Title: "x", ThemeColor: "mauve"})
		is.True(errors.Is(err, ErrInvalidColor))
		_, err = s.Apply(testEnv(), SetListColor{ID: "L", Color: "mauve"})
		is.True(errors.Is(err, ErrInvalidColor))
	})

	t.Run("deleting the last list creates a replacement", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		r, err := s.Apply(testEnv(), SoftDeleteList{ID: "L"})
		is.NoErr(err)
		lists := s.Lists()
		is.Equal(len(lists), 1)
		is.Equal(lists[0].Title, ReplacementListTitle)
		is.Equal(r.Redirect, lists[0].ID)
		is.Equal(r.Deferred[0].Command, HardDeleteList{ID: "L"})

		_, err = s.Apply(testEnv(), HardDeleteList{ID: "L"})
		is.NoErr(err)
		is.Equal(len(s.Tasks), 0)
		is.Equal(len(s.TaskLists), 1)
		is.NoErr(s.Check())
	})

	t.Run("deleting redirects to the first other list", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		env := testEnv()
		first, _ := s.Apply(env, CreateList{Title: "first"})
		_, _ = s.Apply(env, CreateList{Title: "second"})
		r, err := s.Apply(env, SoftDeleteList{ID: first.ID})
		is.NoErr(err)
		is.Equal(r.Redirect, ID("L"))
		is.Equal(len(s.TaskLists), 3) // no replacement
	})

	t.Run("reorder", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		env := testEnv()
		r, _ := s.Apply(env, CreateList{Title: "second"})
		_, err := s.Apply(env, MoveList{ID: r.ID, Index: 0})
		is.NoErr(err)
		is.Equal(s.TaskListsSortIndex, []ID{r.ID, "L"})
		is.Equal(s.TaskLists[r.ID].SortKey, 0.0)
	})

	t.Run("place skips lists being deleted", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		env := testEnv()
		b, _ := s.Apply(env, CreateList{Title: "b"})
		c, _ := s.Apply(env, CreateList{Title: "c"})
		_, err := s.Apply(env, SoftDeleteList{ID: b.ID})
		is.NoErr(err)
		is.Equal(len(s.Lists()), 2)

		_, err = s.Apply(env, PlaceList{ID: "L", Position: 1})
		is.NoErr(err)
		is.Equal(s.Lists()[1].ID, ID("L"))
		is.Equal(s.TaskListsSortIndex, []ID{b.ID, c.ID, "L"})

		_, err = s.Apply(env, PlaceList{ID: "L", Position: 0})
		is.NoErr(err)
		is.Equal(s.Lists()[0].ID, ID("L"))

		r, err := s.Apply(env, PlaceList{ID: "L", Position: 0})
		is.NoErr(err)
		is.True(!r.Changed)

		_, err = s.Apply(env, PlaceList{ID: "L", Position: 2})
		is.True(errors.Is(err, order.ErrOutOfRange))
		_, err = s.Apply(env, PlaceList{ID: b.ID, Position: 0})
		is.True(errors.Is(err, ErrDeleted))
		is.NoErr(s.Check())
	})

	t.Run("selection heals", func(t *testing.T) {
		is := is.New(t)
		s := fixture()
		l, ok := s.Current("gone")
		is.True(ok)
		is.Equal(l.ID, ID("L"))
	})
}

func TestStore_Compact(t *testing.T) {
	is := is.New(t)
	s := fixture()
	a := s.Tasks["A"]
	a.SortKey = 19.9999
	s.Tasks["A"] = a

	r, err := s.Apply(testEnv(), Compact{MinGap: 0.001})
	is.NoErr(err)
	is.True(r.Changed)
	is.Equal(s.Tasks["A"].SortKey, 1.0)
	is.Equal(s.Tasks["B"].SortKey, 2.0)
	is.Equal(s.Tasks["C"].SortKey, 3.0)

	r, err = s.Apply(testEnv(), Compact{MinGap: 0.001})
	is.NoErr(err)
	is.True(!r.Changed)
}

func TestStore_Sweep(t *testing.T) {
	is := is.New(t)
	s := fixture()
	env := testEnv()
	_, err := s.Apply(env, SoftDeleteTask{ID: "A"})
	is.NoErr(err)
	env.Now = epoch.Add(time.Minute)
	_, err = s.Apply(env, SoftDeleteTask{ID: "B"})
	is.NoErr(err)

	_, err = s.Apply(env, Sweep{Before: epoch.Add(GracePeriod)})
	is.NoErr(err)
	is.Equal(s.TaskLists["L"].TasksSortIndex, []ID{"B", "C"})
	is.Equal(len(s.Pending(GracePeriod)), 1)
}

func TestStore_Repair(t *testing.T) {
	is := is.New(t)
	s := fixture()
	l := s.TaskLists["L"]
	l.TasksSortIndex = []ID{"C", "ghost"}
	s.TaskLists["L"] = l
	s.Tasks["orphan"] = Task{ID: "orphan", TaskListID: "gone"}
	s.TaskListsSortIndex = nil
	is.True(s.Check() != nil)

	s.Repair()
	is.NoErr(s.Check())
	is.Equal(s.TaskLists["L"].TasksSortIndex, []ID{"A", "B", "C"})
	is.Equal(s.TaskListsSortIndex, []ID{"L"})
}

func TestWelcome(t *testing.T) {
	is := is.New(t)
	s := Welcome(testEnv())
	is.NoErr(s.Check())
	is.Equal(len(s.Lists()), 1)
	tasks := s.TasksOf(s.Lists()[0].ID)
	is.True(len(tasks) > 0)
	for i := 1; i < len(tasks); i++ {
		is.True(tasks[i-1].SortKey < tasks[i].SortKey)
	}
}
