package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrCorrupt  = errors.New("stored value is corrupt")
	ErrVersion  = errors.New("stored value has another schema version")
)

// Medium is a durable key/value storage shared by several processes.
// Subscribe reports changes to key made through any other handle.
type Medium interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Subscribe(key string, fn func()) (unsubscribe func(), err error)
	Close() error
}

// Versioned values carry the schema version they were written with
type Versioned interface {
	Version() int
}

// Durable keeps a single JSON serialized value of type T under key
type Durable[T Versioned] struct {
	medium  Medium
	key     string
	version int

	mu      sync.Mutex
	mounted bool
}

func Open[T Versioned](m Medium, key string, version int) *Durable[T] {
	return &Durable[T]{medium: m, key: key, version: version}
}

// Initialize loads the stored value. When nothing is stored yet the
// default is written and returned. A value of another schema version is
// ignored in favour of the default, without migration. A corrupt value
// yields the default together with an error wrapping ErrCorrupt.
func (d *Durable[T]) Initialize(def func() T) (T, error) {
	d.mu.Lock()
	d.mounted = false
	d.mu.Unlock()

	v, err := d.Read()
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, ErrNotFound):
		v = def()
		bs, err := json.Marshal(v)
		if err != nil {
			return v, err
		}
		return v, d.medium.Set(d.key, bs)
	case errors.Is(err, ErrVersion):
		slog.Debug("discarding stored value", "key", d.key, "err", err)
		return def(), nil
	default:
		return def(), err
	}
}

// Read loads and decodes the current value
func (d *Durable[T]) Read() (T, error) {
	var v T
	bs, err := d.medium.Get(d.key)
	if err != nil {
		return v, err
	}
	var probe struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(bs, &probe); err != nil {
		return v, fmt.Errorf("%s: %w: %v", d.key, ErrCorrupt, err)
	}
	if probe.SchemaVersion != d.version {
		return v, fmt.Errorf("%s: %w: got %d, want %d", d.key, ErrVersion, probe.SchemaVersion, d.version)
	}
	if err := json.Unmarshal(bs, &v); err != nil {
		return v, fmt.Errorf("%s: %w: %v", d.key, ErrCorrupt, err)
	}
	return v, nil
}

// Write stores v. The first write after Initialize only mirrors what was
// just loaded and is skipped, so it cannot clobber the stored value.
func (d *Durable[T]) Write(v T) error {
	d.mu.Lock()
	first := !d.mounted
	d.mounted = true
	d.mu.Unlock()
	if first {
		return nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.medium.Set(d.key, bs)
}

// Subscribe calls fn with the freshly read value every time another process
// changes it. Values that cannot be read are logged and skipped.
func (d *Durable[T]) Subscribe(fn func(T)) (func(), error) {
	return d.medium.Subscribe(d.key, func() {
		v, err := d.Read()
		if err != nil {
			slog.Warn("ignoring external change", "key", d.key, "err", err)
			return
		}
		fn(v)
	})
}
