package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ CacheStore = (*GormCache)(nil)

// CachedProviderDTO is a row of the cached_providers table.
type CachedProviderDTO struct {
	Profile    string    `gorm:"column:profile;primaryKey"`
	ProviderID string    `gorm:"column:provider_id;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (CachedProviderDTO) TableName() string {
	return "cached_providers"
}

// GormCache stores the cached provider in a SQL table, one row per profile,
// so several clients can share a database.
type GormCache struct {
	db      *gorm.DB
	profile string
}

// OpenGormCache connects to a sqlite or postgres database and migrates the
// cached_providers table. For sqlite, dsn is a file path; ":memory:" keeps
// the table in memory.
func OpenGormCache(driver, dsn, profile string) (*GormCache, error) {
	var dial gorm.Dialector
	switch driver {
	case "sqlite":
		dial = sqlite.Open(fmt.Sprintf("file:%s?cache=shared", dsn))
	case "postgres":
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported cache database driver: %s", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return NewGormCache(db, profile)
}

// NewGormCache uses an existing connection.
func NewGormCache(db *gorm.DB, profile string) (*GormCache, error) {
	if err := db.AutoMigrate(&CachedProviderDTO{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate cached providers: %w", err)
	}
	return &GormCache{db: db, profile: profile}, nil
}

func (c *GormCache) CachedProvider(ctx context.Context) (string, error) {
	var dto CachedProviderDTO
	err := c.db.WithContext(ctx).Where("profile = ?", c.profile).First(&dto).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read cached provider: %w", err)
	}
	return dto.ProviderID, nil
}

func (c *GormCache) SetCachedProvider(ctx context.Context, id string) error {
	dto := CachedProviderDTO{Profile: c.profile, ProviderID: id, UpdatedAt: time.Now().UTC()}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider_id", "updated_at"}),
	}).Create(&dto).Error
	if err != nil {
		return fmt.Errorf("failed to cache provider: %w", err)
	}
	return nil
}

func (c *GormCache) ClearCachedProvider(ctx context.Context) error {
	if err := c.db.WithContext(ctx).Where("profile = ?", c.profile).Delete(&CachedProviderDTO{}).Error; err != nil {
		return fmt.Errorf("failed to clear cached provider: %w", err)
	}
	return nil
}
