package order

import (
	"errors"
	"sort"
)

var (
	ErrNotFound   = errors.New("element not in order")
	ErrOutOfRange = errors.New("target index out of range")
)

// Key returns the sort key of an element
type Key[T comparable] func(T) float64

// Result is the outcome of a reordering. Order is a fresh slice and Keys
// holds every sort key that has to be written back together with it.
type Result[T comparable] struct {
	Order []T
	Keys  map[T]float64
	Moved bool
}

// Move relocates id to target, where target is an index in [0, len(order)]
// counted on the order as it is before the move. The element lands between
// the two elements that straddle target and gets a key halfway between
// theirs.
func Move[T comparable](order []T, id T, target int, key Key[T]) (Result[T], error) {
	current := Index(order, id)
	if current < 0 {
		return Result[T]{}, ErrNotFound
	}
	if target < 0 || target > len(order) {
		return Result[T]{}, ErrOutOfRange
	}
	// dropping an element onto itself or right after itself keeps it in place
	if target == current || target == current+1 {
		return Result[T]{Order: clone(order), Keys: map[T]float64{}}, nil
	}

	next, fits := keyAt(order, target, key)

	out := clone(order)
	if target < current {
		out = remove(out, current)
		out = insert(out, target, id)
	} else {
		out = insert(out, target, id)
		out = remove(out, current)
	}

	if !fits {
		return Result[T]{Order: out, Keys: Respace(out), Moved: true}, nil
	}
	return Result[T]{Order: out, Keys: map[T]float64{id: next}, Moved: true}, nil
}

// Insert places an element that is not part of order at index, computing its
// key with the same rule as Move. fallback is used when order is empty.
func Insert[T comparable](order []T, id T, index int, key Key[T], fallback float64) (Result[T], error) {
	if Index(order, id) >= 0 {
		return Result[T]{}, errors.New("element already in order")
	}
	if index < 0 || index > len(order) {
		return Result[T]{}, ErrOutOfRange
	}
	out := insert(clone(order), index, id)
	if len(order) == 0 {
		return Result[T]{Order: out, Keys: map[T]float64{id: fallback}, Moved: true}, nil
	}
	next, fits := keyAt(order, index, key)
	if !fits {
		return Result[T]{Order: out, Keys: Respace(out), Moved: true}, nil
	}
	return Result[T]{Order: out, Keys: map[T]float64{id: next}, Moved: true}, nil
}

// keyAt computes the key of an element dropped at index i of order.
// fits is false when floating point precision no longer leaves room
// between the two neighbours.
func keyAt[T comparable](order []T, i int, key Key[T]) (next float64, fits bool) {
	switch {
	case i == 0:
		first := key(order[0])
		next = first - 1
		return next, next < first
	case i == len(order):
		last := key(order[len(order)-1])
		next = last + 1
		return next, next > last
	}
	below, above := key(order[i-1]), key(order[i])
	next = (above + below) / 2
	lo, hi := below, above
	if lo > hi {
		lo, hi = hi, lo
	}
	return next, lo < next && next < hi
}

// DropHidden reports whether the drop placeholder at index should be
// suppressed while dragged is picked up, because dropping there would not
// change anything.
func DropHidden[T comparable](order []T, dragged T, index int) bool {
	i := Index(order, dragged)
	if i < 0 {
		return false
	}
	return index == i || index == i+1
}

// Respace assigns the keys 1..n following the given order
func Respace[T comparable](order []T) map[T]float64 {
	keys := make(map[T]float64, len(order))
	for i, id := range order {
		keys[id] = float64(i + 1)
	}
	return keys
}

// Sort derives an order from flat storage, ascending by key.
// Ties keep their relative input position.
func Sort[T comparable](ids []T, key Key[T]) []T {
	out := clone(ids)
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]) < key(out[j])
	})
	return out
}

// MinGap returns the smallest distance between the keys of two adjacent
// elements. It returns false for orders with less than two elements.
func MinGap[T comparable](order []T, key Key[T]) (float64, bool) {
	if len(order) < 2 {
		return 0, false
	}
	gap := -1.0
	for i := 1; i < len(order); i++ {
		d := key(order[i]) - key(order[i-1])
		if d < 0 {
			d = -d
		}
		if gap < 0 || d < gap {
			gap = d
		}
	}
	return gap, true
}

func Index[T comparable](order []T, id T) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of order with id removed
func Without[T comparable](order []T, id T) []T {
	out := make([]T, 0, len(order))
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func clone[T any](a []T) []T {
	out := make([]T, len(a))
	copy(out, a)
	return out
}

func insert[T any](a []T, index int, value T) []T {
	if len(a) == index { // nil or empty slice or after last element
		return append(a, value)
	}
	a = append(a[:index+1], a[index:]...) // index < len(a)
	a[index] = value
	return a
}

func remove[T any](a []T, index int) []T {
	return append(a[:index], a[index+1:]...)
}
