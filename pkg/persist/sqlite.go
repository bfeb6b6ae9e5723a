package persist

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entry is a row of the key/value table. Revision grows with every write
// and Writer names the handle that made it.
type entry struct {
	Name     string `gorm:"primaryKey"`
	Value    []byte
	Revision int64
	Writer   string
}

// SQLite stores values in a table of an SQLite database. Other processes'
// writes are noticed by polling the revision of subscribed keys.
type SQLite struct {
	db       *gorm.DB
	writer   string
	interval time.Duration

	mu     sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

var _ Medium = &SQLite{}

// NewSQLite opens the database at dsn, creating the table if needed.
// interval is how often subscribed keys are polled.
func NewSQLite(dsn string, interval time.Duration) (*SQLite, error) {
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}
	dbLogger := logger.New(
		log.New(os.Stderr, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &SQLite{
		db:       db,
		writer:   uuid.NewString(),
		interval: interval,
		stop:     make(chan struct{}),
	}, nil
}

func ensureDirForSQLite(dsn string) error {
	if dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *SQLite) get(key string) (entry, error) {
	var e entry
	err := s.db.Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e, ErrNotFound
	}
	return e, err
}

func (s *SQLite) Get(key string) ([]byte, error) {
	e, err := s.get(key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (s *SQLite) Set(key string, value []byte) error {
	e := entry{Name: key, Value: value, Revision: 1, Writer: s.writer}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":    value,
			"revision": gorm.Expr("revision + 1"),
			"writer":   s.writer,
		}),
	}).Create(&e).Error
}

// Subscribe polls key and calls fn whenever its revision moved because of
// another writer
func (s *SQLite) Subscribe(key string, fn func()) (func(), error) {
	last, err := s.get(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("medium closed")
	}

	cancel := make(chan struct{})
	var once sync.Once
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				e, err := s.get(key)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					slog.Warn("polling store", "key", key, "err", err)
					continue
				}
				if e.Revision == last.Revision {
					continue
				}
				last = e
				if e.Writer != s.writer {
					fn()
				}
			case <-cancel:
				return
			case <-s.stop:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(cancel) }) }, nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()

	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
