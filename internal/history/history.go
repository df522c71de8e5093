package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/glebarez/sqlite"
	"github.com/takeshy/gitlabuploader/internal/events"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const FileName = "history.db"

// Session statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusEmpty     = "empty"
)

// SessionRecord is one finished upload session
type SessionRecord struct {
	ID         string `gorm:"primaryKey"`
	BaseURL    string
	ProjectID  string `gorm:"index"`
	Project    string
	Root       string
	Status     string
	Total      int
	Uploaded   int
	Failed     int
	Error      string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	Files      []FileRecord `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// FileRecord is one file attempt inside a session
type FileRecord struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"index;not null"`
	Path      string `gorm:"not null"`
	Size      int64
	Checksum  string
	Error     string
}

// Store persists session history in sqlite
type Store struct {
	db  *gorm.DB
	log *logging.Logger
}

// Open opens (and migrates) the history database at path
func Open(path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&SessionRecord{}, &FileRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StatusOf maps a session outcome to a status string
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusCompleted
	case errors.Is(err, gitlab.ErrNoFiles):
		return StatusEmpty
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Record stores a finished session with its files
func (s *Store) Record(ev events.SessionFinished) error {
	rec := SessionRecord{
		ID:         ev.ID,
		BaseURL:    ev.BaseURL,
		ProjectID:  ev.ProjectID,
		Project:    ev.Summary.Project,
		Root:       ev.Root,
		Status:     StatusOf(ev.Err),
		Total:      ev.Summary.Total,
		Uploaded:   ev.Summary.Uploaded,
		Failed:     ev.Summary.Failed,
		StartedAt:  ev.StartedAt,
		FinishedAt: ev.FinishedAt,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	for _, f := range ev.Summary.Files {
		rec.Files = append(rec.Files, FileRecord{
			SessionID: ev.ID,
			Path:      f.Path,
			Size:      f.Size,
			Checksum:  f.Checksum,
			Error:     f.Error,
		})
	}

	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to record session %s: %w", ev.ID, err)
	}
	return nil
}

// List returns the most recent sessions first, without their files
func (s *Store) List(limit int) ([]SessionRecord, error) {
	var out []SessionRecord
	q := s.db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

// Get returns the session whose ID starts with prefix, including its files
func (s *Store) Get(prefix string) (*SessionRecord, error) {
	var recs []SessionRecord
	err := s.db.Preload("Files", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where(`id LIKE ? ESCAPE '\'`, likePrefix(prefix)).Limit(2).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("session '%s' not found", prefix)
	case 1:
		return &recs[0], nil
	default:
		return nil, fmt.Errorf("session prefix '%s' is ambiguous", prefix)
	}
}

// EventBus finds handlers to unsubscribe by code pointer, which every
// Store's handler shares. Each bus gets one dispatcher that fans out to
// the stores subscribed through it.
type dispatcher struct {
	mu     sync.Mutex
	stores []*Store
}

var (
	dispatchersMu sync.Mutex
	dispatchers   = map[EventBus.Bus]*dispatcher{}
)

func (d *dispatcher) onFinished(ev events.SessionFinished) {
	d.mu.Lock()
	stores := append([]*Store(nil), d.stores...)
	d.mu.Unlock()

	for _, s := range stores {
		s.onFinished(ev)
	}
}

// Subscribe records every finished session published on bus
func (s *Store) Subscribe(bus EventBus.Bus) error {
	dispatchersMu.Lock()
	defer dispatchersMu.Unlock()

	d, ok := dispatchers[bus]
	if !ok {
		d = &dispatcher{}
		if err := bus.Subscribe(events.TopicSessionFinished, d.onFinished); err != nil {
			return fmt.Errorf("failed to subscribe history: %w", err)
		}
		dispatchers[bus] = d
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.stores {
		if existing == s {
			return nil
		}
	}
	d.stores = append(d.stores, s)
	return nil
}

// Unsubscribe stops recording sessions from bus. Other stores on the same
// bus keep recording.
func (s *Store) Unsubscribe(bus EventBus.Bus) error {
	dispatchersMu.Lock()
	d, ok := dispatchers[bus]
	dispatchersMu.Unlock()

	if ok {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, existing := range d.stores {
			if existing == s {
				d.stores = append(d.stores[:i], d.stores[i+1:]...)
				return nil
			}
		}
	}
	return errors.New("history store is not subscribed to this bus")
}

func (s *Store) onFinished(ev events.SessionFinished) {
	if err := s.Record(ev); err != nil {
		s.log.Warn().Err(err).Msg("history not saved")
		return
	}
	s.log.Debugf("recorded session %s in history", ev.ID)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern that matches prefix literally
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
