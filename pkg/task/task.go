package task

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type ID string

// RandomID returns a new uuid v4 based ID
func RandomID() ID {
	return ID(uuid.NewString())
}

// Task is a single to-do item, owned by exactly one List
type Task struct {
	ID         ID         `json:"id"`
	TaskListID ID         `json:"taskListId"`
	Title      string     `json:"title"`
	Completed  bool       `json:"completed"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
	SortKey    float64    `json:"sortKey"`
}

func (t Task) Deleted() bool {
	return t.DeletedAt != nil
}

// List is a task list. TasksSortIndex is the authoritative order of its
// tasks; NewTaskTitle holds the title being typed for the next task.
type List struct {
	ID             ID         `json:"id"`
	Title          string     `json:"title"`
	ThemeColor     Color      `json:"themeColor"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	TasksSortIndex []ID       `json:"tasksSortIndex"`
	NewTaskTitle   string     `json:"newTaskTitle"`
	SortKey        float64    `json:"sortKey,omitempty"`
}

func (l List) Deleted() bool {
	return l.DeletedAt != nil
}

type Color string

var Colors = []Color{
	"red", "orange", "amber", "yellow", "lime", "green", "emerald", "teal", "cyan",
	"sky", "blue", "indigo", "violet", "purple", "fuchsia", "pink", "rose",
}

func (c Color) Valid() bool {
	for _, v := range Colors {
		if v == c {
			return true
		}
	}
	return false
}

// RandomColor picks a color not in used. Once every color is taken any
// color will do.
func RandomColor(r *rand.Rand, used []Color) Color {
	taken := map[Color]bool{}
	for _, c := range used {
		taken[c] = true
	}
	free := []Color{}
	for _, c := range Colors {
		if !taken[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		free = Colors
	}
	return free[r.Intn(len(free))]
}

// Env carries everything a command needs from the outside world
type Env struct {
	Now   time.Time
	NewID func() ID
	Rand  *rand.Rand
	// Grace defaults to GracePeriod
	Grace time.Duration
}

func (e Env) grace() time.Duration {
	if e.Grace <= 0 {
		return GracePeriod
	}
	return e.Grace
}

// NewEnv returns an Env using uuids and a time seeded source
func NewEnv(now time.Time) Env {
	return Env{
		Now:   now,
		NewID: RandomID,
		Rand:  rand.New(rand.NewSource(now.UnixNano())),
		Grace: GracePeriod,
	}
}

// sortKeyAt converts a timestamp into the sort key of a fresh record
func sortKeyAt(t time.Time) float64 {
	return float64(t.UnixMilli())
}
