package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// entryRecord maps translation_cache_entries.
type entryRecord struct {
	CacheKey   string    `gorm:"column:cache_key;type:text;primaryKey"`
	TargetLang string    `gorm:"column:target_lang;type:text;not null"`
	Payload    []byte    `gorm:"column:payload;type:bytea;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (entryRecord) TableName() string { return "translation_cache_entries" }

// GormStoreConfig carries the database settings the store needs.
type GormStoreConfig struct {
	DatabaseURL string
	MaxConns    int
	LogLevel    string
	Environment string
}

// GormStore persists cache entries in Postgres.
type GormStore struct {
	gdb *gorm.DB
}

func NewGormStore(ctx context.Context, cfg GormStoreConfig) (*GormStore, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := cfg.MaxConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(&entryRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate cache schema: %w", err)
	}

	return &GormStore{gdb: gdb}, nil
}

func (s *GormStore) Load(ctx context.Context) ([]Entry, error) {
	var records []entryRecord
	if err := s.gdb.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load cache rows: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry{
			Key:       rec.CacheKey,
			Language:  rec.TargetLang,
			Payload:   rec.Payload,
			CreatedAt: rec.CreatedAt,
		})
	}
	return entries, nil
}

// Save upserts the batch; the newest payload for a key always wins.
func (s *GormStore) Save(ctx context.Context, entries []Entry) error {
	const q = `
INSERT INTO translation_cache_entries (cache_key, target_lang, payload, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cache_key)
DO UPDATE SET
	target_lang = EXCLUDED.target_lang,
	payload = EXCLUDED.payload,
	created_at = EXCLUDED.created_at
	`

	for _, entry := range entries {
		res := s.gdb.WithContext(ctx).Exec(q, entry.Key, entry.Language, entry.Payload, entry.CreatedAt)
		if res.Error != nil {
			return fmt.Errorf("upsert cache entry: %w", res.Error)
		}
	}
	return nil
}

func (s *GormStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	const q = `DELETE FROM translation_cache_entries WHERE created_at < $1`
	if res := s.gdb.WithContext(ctx).Exec(q, cutoff); res.Error != nil {
		return fmt.Errorf("delete expired cache rows: %w", res.Error)
	}
	return nil
}

func (s *GormStore) Clear(ctx context.Context) error {
	const q = `DELETE FROM translation_cache_entries`
	if res := s.gdb.WithContext(ctx).Exec(q); res.Error != nil {
		return fmt.Errorf("clear cache rows: %w", res.Error)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return fmt.Errorf("get gorm sql db: %w", err)
	}
	return sqlDB.Close()
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
