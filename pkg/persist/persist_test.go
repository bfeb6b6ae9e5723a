package persist

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

type doc struct {
	SchemaVersion int      `json:"schemaVersion"`
	Items         []string `json:"items"`
}

func (d doc) Version() int { return d.SchemaVersion }

func welcome() doc {
	return doc{Items: []string{"welcome"}}
}

// eventually polls cond until it holds or a second went by
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDurable_Initialize(t *testing.T) {
	t.Run("writes the default when empty", func(t *testing.T) {
		is := is.New(t)
		m := NewMemory().Tab()
		calls := 0
		v, err := Open[doc](m, "k", 0).Initialize(func() doc {
			calls++
			return welcome()
		})
		is.NoErr(err)
		is.Equal(v, welcome())
		is.Equal(calls, 1)
		bs, err := m.Get("k")
		is.NoErr(err)
		is.Equal(string(bs), `{"schemaVersion":0,"items":["welcome"]}`)
	})

	t.Run("loads a stored value", func(t *testing.T) {
		is := is.New(t)
		m := NewMemory().Tab()
		is.NoErr(m.Set("k", []byte(`{"schemaVersion":0,"items":["a","b"]}`)))
		calls := 0
		v, err := Open[doc](m, "k", 0).Initialize(func() doc {
			calls++
			return welcome()
		})
		is.NoErr(err)
		is.Equal(v.Items, []string{"a", "b"})
		is.Equal(calls, 0) // factory only runs when needed
	})

	t.Run("discards other schema versions", func(t *testing.T) {
		is := is.New(t)
		m := NewMemory().Tab()
		is.NoErr(m.Set("k", []byte(`{"schemaVersion":7,"items":{"old":"shape"}}`)))
		v, err := Open[doc](m, "k", 0).Initialize(welcome)
		is.NoErr(err)
		is.Equal(v, welcome())
	})

	t.Run("reports corrupt values", func(t *testing.T) {
		is := is.New(t)
		m := NewMemory().Tab()
		is.NoErr(m.Set("k", []byte(`{"schemaVersion":0,`)))
		v, err := Open[doc](m, "k", 0).Initialize(welcome)
		is.True(errors.Is(err, ErrCorrupt))
		is.Equal(v, welcome())
		// the corrupt value is left alone
		bs, _ := m.Get("k")
		is.Equal(string(bs), `{"schemaVersion":0,`)
	})
}

func TestDurable_Write(t *testing.T) {
	is := is.New(t)
	m := NewMemory().Tab()
	is.NoErr(m.Set("k", []byte(`{"schemaVersion":0,"items":["stored"]}`)))
	d := Open[doc](m, "k", 0)
	_, err := d.Initialize(welcome)
	is.NoErr(err)

	// the write at mount is skipped
	is.NoErr(d.Write(doc{Items: []string{"in memory default"}}))
	v, err := d.Read()
	is.NoErr(err)
	is.Equal(v.Items, []string{"stored"})

	is.NoErr(d.Write(doc{Items: []string{"edited"}}))
	v, err = d.Read()
	is.NoErr(err)
	is.Equal(v.Items, []string{"edited"})
}

func TestDurable_Subscribe(t *testing.T) {
	is := is.New(t)
	storage := NewMemory()
	a := Open[doc](storage.Tab(), "k", 0)
	b := Open[doc](storage.Tab(), "k", 0)
	_, err := a.Initialize(welcome)
	is.NoErr(err)
	_, err = b.Initialize(welcome)
	is.NoErr(err)

	var got atomic.Value
	var own atomic.Int32
	unsubscribe, err := b.Subscribe(func(v doc) { got.Store(v) })
	is.NoErr(err)
	_, err = a.Subscribe(func(doc) { own.Add(1) })
	is.NoErr(err)

	is.NoErr(a.Write(doc{})) // mount
	is.NoErr(a.Write(doc{Items: []string{"from a"}}))
	eventually(t, func() bool { return got.Load() != nil })
	is.Equal(got.Load().(doc).Items, []string{"from a"})
	is.Equal(own.Load(), int32(0)) // a is not told about its own writes

	unsubscribe()
	got.Store(doc{})
	is.NoErr(a.Write(doc{Items: []string{"again"}}))
	time.Sleep(20 * time.Millisecond)
	is.Equal(len(got.Load().(doc).Items), 0)
}

func TestFile(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	a, err := NewFile(dir)
	is.NoErr(err)
	defer a.Close()
	b, err := NewFile(dir)
	is.NoErr(err)
	defer b.Close()

	_, err = a.Get("store")
	is.Equal(err, ErrNotFound)

	var fromB, fromA atomic.Int32
	_, err = b.Subscribe("store", func() { fromB.Add(1) })
	is.NoErr(err)
	_, err = a.Subscribe("store", func() { fromA.Add(1) })
	is.NoErr(err)

	is.NoErr(a.Set("store", []byte(`{"n":1}`)))
	bs, err := b.Get("store")
	is.NoErr(err)
	is.Equal(string(bs), `{"n":1}`)

	eventually(t, func() bool { return fromB.Load() > 0 })
	time.Sleep(50 * time.Millisecond)
	is.Equal(fromA.Load(), int32(0))

	matches, err := filepath.Glob(filepath.Join(dir, ".store-*"))
	is.NoErr(err)
	is.Equal(len(matches), 0) // no temporary files left behind
}

func TestSQLite(t *testing.T) {
	is := is.New(t)
	dsn := filepath.Join(t.TempDir(), "store.db")
	a, err := NewSQLite(dsn, 10*time.Millisecond)
	is.NoErr(err)
	defer a.Close()
	b, err := NewSQLite(dsn, 10*time.Millisecond)
	is.NoErr(err)
	defer b.Close()

	_, err = a.Get("store")
	is.Equal(err, ErrNotFound)

	var fromB, fromA atomic.Int32
	unsubscribe, err := b.Subscribe("store", func() { fromB.Add(1) })
	is.NoErr(err)
	_, err = a.Subscribe("store", func() { fromA.Add(1) })
	is.NoErr(err)

	is.NoErr(a.Set("store", []byte("one")))
	is.NoErr(a.Set("store", []byte("two")))
	bs, err := b.Get("store")
	is.NoErr(err)
	is.Equal(string(bs), "two")

	eventually(t, func() bool { return fromB.Load() > 0 })
	is.Equal(fromA.Load(), int32(0))

	unsubscribe()
	unsubscribe() // safe to call twice
}
