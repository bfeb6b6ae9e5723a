package persist

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

const fileExt = ".json"

// File stores every key as <key>.json inside a directory and watches the
// directory for writes made by other processes
type File struct {
	dir     string
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	seen map[string][]byte
	subs map[string]map[int]func()
	next int
	done chan struct{}
}

var _ Medium = &File{}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	f := &File{
		dir:     dir,
		watcher: w,
		seen:    map[string][]byte{},
		subs:    map[string]map[int]func(){},
		done:    make(chan struct{}),
	}
	go f.watch()
	return f, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

func (f *File) Get(key string) ([]byte, error) {
	bs, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return bs, err
}

// Set writes to a temporary file first and renames it into place, so that
// readers never observe a partial write. Writers of the same key take turns
// through a lock file.
func (f *File) Set(key string, value []byte) error {
	lock := flock.New(filepath.Join(f.dir, "."+key+".lock"))
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	f.mu.Lock()
	f.seen[key] = append([]byte{}, value...)
	f.mu.Unlock()

	return os.Rename(tmp.Name(), f.path(key))
}

func (f *File) Subscribe(key string, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[key] == nil {
		f.subs[key] = map[int]func(){}
	}
	id := f.next
	f.next++
	f.subs[key][id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs[key], id)
		f.mu.Unlock()
	}, nil
}

func (f *File) Close() error {
	err := f.watcher.Close()
	<-f.done
	return err
}

func (f *File) watch() {
	defer close(f.done)
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
				continue
			}
			f.changed(strings.TrimSuffix(name, fileExt))
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watching store directory", "dir", f.dir, "err", err)
		}
	}
}

// changed notifies the subscribers of key unless the content is what this
// handle wrote or already reported
func (f *File) changed(key string) {
	bs, err := f.Get(key)
	if err != nil {
		return
	}
	f.mu.Lock()
	if bytes.Equal(bs, f.seen[key]) {
		f.mu.Unlock()
		return
	}
	f.seen[key] = bs
	notify := make([]func(), 0, len(f.subs[key]))
	for _, fn := range f.subs[key] {
		notify = append(notify, fn)
	}
	f.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}
