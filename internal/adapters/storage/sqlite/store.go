// Package sqlite implements the durable key-value store on a single SQLite
// file through gorm and the pure-Go glebarez driver, so the service builds
// without cgo.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// Name identifies the store in health checks and errors.
const Name = "sqlite"

// entry is one key-value row.
type entry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName pins the table name independently of the struct name.
func (entry) TableName() string {
	return "kv_entries"
}

// Options configures the store.
type Options struct {
	// Path of the database file. Parent directories are created.
	Path string

	// LogLevel for gorm's own logger. Defaults to Warn.
	LogLevel gormlogger.LogLevel

	// Logger receives gorm's messages at warn level. Defaults to slog.Default.
	Logger *slog.Logger
}

// Store is a ports.DurableStore backed by SQLite.
type Store struct {
	db *gorm.DB
}

// Open connects to the database file and migrates the schema.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	level := opts.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.With(slog.String("component", "gorm")).Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, errors.Join(fmt.Errorf("migrating database: %w", err), s.Close())
	}

	return s, nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var e entry

	err := s.db.WithContext(ctx).First(&e, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.NewNotFoundError("key", key)
	}

	if err != nil {
		return "", domain.NewUnavailableError(Name, fmt.Sprintf("reading %q: %v", key, err))
	}

	return e.Value, nil
}

// Set overwrites the value stored under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	e := entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
	if err != nil {
		return domain.NewUnavailableError(Name, fmt.Sprintf("writing %q: %v", key, err))
	}

	return nil
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string {
	return Name
}

// Check implements ports.HealthChecker by pinging the connection.
func (s *Store) Check(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
