package persist

import "sync"

// Memory is an in-process storage shared by any number of tabs, each tab
// being a Medium of its own
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	subs   map[int]subscription
	next   int
}

type subscription struct {
	tab *MemoryTab
	key string
	fn  func()
}

func NewMemory() *Memory {
	return &Memory{
		values: map[string][]byte{},
		subs:   map[int]subscription{},
	}
}

// Tab returns a new handle on the storage
func (m *Memory) Tab() *MemoryTab {
	return &MemoryTab{m: m}
}

type MemoryTab struct {
	m *Memory
}

var _ Medium = &MemoryTab{}

func (t *MemoryTab) Get(key string) ([]byte, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	v, ok := t.m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, v...), nil
}

// Set stores the value and notifies the other tabs subscribed to key. Like
// storage events in a browser, notifications are delivered asynchronously.
func (t *MemoryTab) Set(key string, value []byte) error {
	t.m.mu.Lock()
	t.m.values[key] = append([]byte{}, value...)
	notify := []func(){}
	for _, s := range t.m.subs {
		if s.key == key && s.tab != t {
			notify = append(notify, s.fn)
		}
	}
	t.m.mu.Unlock()

	for _, fn := range notify {
		go fn()
	}
	return nil
}

func (t *MemoryTab) Subscribe(key string, fn func()) (func(), error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	id := t.m.next
	t.m.next++
	t.m.subs[id] = subscription{tab: t, key: key, fn: fn}
	return func() {
		t.m.mu.Lock()
		delete(t.m.subs, id)
		t.m.mu.Unlock()
	}, nil
}

// Close drops every subscription of the tab
func (t *MemoryTab) Close() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for id, s := range t.m.subs {
		if s.tab == t {
			delete(t.m.subs, id)
		}
	}
	return nil
}
