package order

import (
	"fmt"
	"math"
	"testing"

	"github.com/matryer/is"
)

type keys map[string]float64

func (k keys) key(id string) float64 { return k[id] }

func (k keys) apply(r Result[string]) {
	for id, v := range r.Keys {
		k[id] = v
	}
}

func TestMove(t *testing.T) {
	start := []string{"A", "B", "C"}
	tests := []struct {
		id     string
		target int
		want   []string
		key    float64
	}{
		{"C", 0, []string{"C", "A", "B"}, 9},
		{"A", 3, []string{"B", "C", "A"}, 31},
		{"B", 0, []string{"B", "A", "C"}, 9},
		{"A", 2, []string{"B", "A", "C"}, 25},
		{"C", 1, []string{"A", "C", "B"}, 15},
		{"B", 3, []string{"A", "C", "B"}, 31},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s to %d", tt.id, tt.target), func(t *testing.T) {
			is := is.New(t)
			k := keys{"A": 10, "B": 20, "C": 30}
			r, err := Move(start, tt.id, tt.target, k.key)
			is.NoErr(err)
			is.True(r.Moved)
			is.Equal(r.Order, tt.want)
			is.Equal(len(r.Keys), 1)
			is.Equal(r.Keys[tt.id], tt.key)
			is.Equal(start, []string{"A", "B", "C"}) // input untouched
		})
	}
}

func TestMove_NoOp(t *testing.T) {
	k := keys{"A": 10, "B": 20, "C": 30}
	order := []string{"A", "B", "C"}

	t.Run("first to 0", func(t *testing.T) {
		is := is.New(t)
		r, err := Move(order, "A", 0, k.key)
		is.NoErr(err)
		is.True(!r.Moved)
		is.Equal(r.Order, order)
		is.Equal(len(r.Keys), 0)
	})
	t.Run("last to length", func(t *testing.T) {
		is := is.New(t)
		r, err := Move(order, "C", 3, k.key)
		is.NoErr(err)
		is.True(!r.Moved)
		is.Equal(r.Order, order)
	})
	t.Run("right after itself", func(t *testing.T) {
		is := is.New(t)
		r, err := Move(order, "B", 2, k.key)
		is.NoErr(err)
		is.True(!r.Moved)
		is.Equal(r.Order, order)
	})
}

func TestMove_Errors(t *testing.T) {
	k := keys{"A": 1}
	t.Run("unknown id", func(t *testing.T) {
		is := is.New(t)
		_, err := Move([]string{"A"}, "Z", 0, k.key)
		is.Equal(err, ErrNotFound)
	})
	t.Run("target out of range", func(t *testing.T) {
		is := is.New(t)
		_, err := Move([]string{"A"}, "A", 2, k.key)
		is.Equal(err, ErrOutOfRange)
		_, err = Move([]string{"A"}, "A", -1, k.key)
		is.Equal(err, ErrOutOfRange)
	})
}

// every valid target yields a permutation with the element where it was dropped
func TestMove_Permutation(t *testing.T) {
	is := is.New(t)
	ids := []string{"a", "b", "c", "d", "e"}
	for from, id := range ids {
		for target := 0; target <= len(ids); target++ {
			k := keys{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}
			r, err := Move(ids, id, target, k.key)
			is.NoErr(err)
			is.Equal(len(r.Order), len(ids))
			seen := map[string]bool{}
			for _, v := range r.Order {
				seen[v] = true
			}
			is.Equal(len(seen), len(ids))

			want := target
			if target > from {
				want = target - 1
			}
			is.Equal(Index(r.Order, id), want)

			k.apply(r)
			is.Equal(Sort(r.Order, k.key), r.Order) // keys agree with order
		}
	}
}

func TestInsert_SameGap(t *testing.T) {
	is := is.New(t)
	k := keys{"first": 10, "last": 20}
	order := []string{"first", "last"}
	prev := k["last"]
	for i := 0; i < 50; i++ {
		id := fmt.Sprint(i)
		r, err := Insert(order, id, 1, k.key, 0)
		is.NoErr(err)
		is.Equal(len(r.Keys), 1) // no respacing needed within 50 halvings
		k.apply(r)
		is.True(k[id] < prev)
		is.True(k[id] > k["first"])
		prev = k[id]
		order = r.Order
	}
	is.Equal(Sort(order, k.key), order)
}

func TestMove_Respace(t *testing.T) {
	is := is.New(t)
	k := keys{"A": 1, "B": math.Nextafter(1, 2), "C": 3}
	r, err := Move([]string{"A", "B", "C"}, "C", 1, k.key)
	is.NoErr(err)
	is.Equal(r.Order, []string{"A", "C", "B"})
	is.Equal(r.Keys, map[string]float64{"A": 1, "C": 2, "B": 3})
}

func TestInsert(t *testing.T) {
	k := keys{"A": 10, "B": 20}
	t.Run("into empty order uses fallback", func(t *testing.T) {
		is := is.New(t)
		r, err := Insert(nil, "X", 0, k.key, 42)
		is.NoErr(err)
		is.Equal(r.Order, []string{"X"})
		is.Equal(r.Keys["X"], 42.0)
	})
	t.Run("at both ends", func(t *testing.T) {
		is := is.New(t)
		r, err := Insert([]string{"A", "B"}, "X", 0, k.key, 0)
		is.NoErr(err)
		is.Equal(r.Keys["X"], 9.0)
		r, err = Insert([]string{"A", "B"}, "X", 2, k.key, 0)
		is.NoErr(err)
		is.Equal(r.Order, []string{"A", "B", "X"})
		is.Equal(r.Keys["X"], 21.0)
	})
	t.Run("rejects present element", func(t *testing.T) {
		is := is.New(t)
		_, err := Insert([]string{"A", "B"}, "A", 0, k.key, 0)
		is.True(err != nil)
	})
}

func TestDropHidden(t *testing.T) {
	is := is.New(t)
	order := []string{"A", "B", "C"}
	is.Equal(DropHidden(order, "B", 0), false)
	is.Equal(DropHidden(order, "B", 1), true)
	is.Equal(DropHidden(order, "B", 2), true)
	is.Equal(DropHidden(order, "B", 3), false)
	is.Equal(DropHidden(order, "C", 3), true)
	is.Equal(DropHidden(order, "Z", 1), false)
}

func TestMinGap(t *testing.T) {
	is := is.New(t)
	k := keys{"A": 1, "B": 1.5, "C": 4}
	gap, ok := MinGap([]string{"A", "B", "C"}, k.key)
	is.True(ok)
	is.Equal(gap, 0.5)
	_, ok = MinGap([]string{"A"}, k.key)
	is.True(!ok)
}
