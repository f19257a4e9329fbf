package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/thenotsodarkknight/based/internal/config"
	"github.com/thenotsodarkknight/based/internal/globaltime"
)

// objectRow is the blob table backing the postgres store.
type objectRow struct {
	Key       string    `gorm:"column:object_key;primaryKey"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (objectRow) TableName() string {
	return "news_objects"
}

// Postgres stores objects in a single auto-migrated blob table.
type Postgres struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

func NewPostgres(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	logLevel := resolveGormLogLevel(cfg.LogLevel, cfg.Environment)

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
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

	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(&objectRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate object table: %w", err)
	}

	return &Postgres{gdb: gdb, sqlDB: sqlDB}, nil
}

func (p *Postgres) List(ctx context.Context, prefix string) ([]Handle, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("postgres store is not initialized")
	}

	var keys []string
	err := p.gdb.WithContext(ctx).
		Model(&objectRow{}).
		Where("object_key LIKE ?", likePrefix(prefix)).
		Order("object_key").
		Pluck("object_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list objects with prefix %q: %w", prefix, err)
	}

	handles := make([]Handle, 0, len(keys))
	for _, key := range keys {
		handles = append(handles, Handle{Key: key})
	}
	return handles, nil
}

func (p *Postgres) Get(ctx context.Context, h Handle) ([]byte, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("postgres store is not initialized")
	}

	var row objectRow
	err := p.gdb.WithContext(ctx).Where("object_key = ?", h.Key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", h.Key, err)
	}
	return row.Data, nil
}

func (p *Postgres) Put(ctx context.Context, key string, data []byte) (Handle, error) {
	if p == nil || p.gdb == nil {
		return Handle{}, fmt.Errorf("postgres store is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return Handle{}, fmt.Errorf("object key is empty")
	}

	row := objectRow{Key: key, Data: data, UpdatedAt: globaltime.UTC()}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "object_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return Handle{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return Handle{Key: key}, nil
}

func (p *Postgres) Delete(ctx context.Context, h Handle) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	// Zero rows affected means the object was already gone.
	res := p.gdb.WithContext(ctx).Where("object_key = ?", h.Key).Delete(&objectRow{})
	if res.Error != nil {
		return fmt.Errorf("delete object %s: %w", h.Key, res.Error)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Postgres) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

// likePrefix escapes LIKE wildcards so prefixes containing % or _ match
// literally.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	level := strings.ToLower(strings.TrimSpace(appLogLevel))
	switch level {
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
