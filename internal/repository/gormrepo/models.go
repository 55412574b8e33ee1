package gormrepo

import (
	"time"

	"shortlink/internal/domain"

	"gorm.io/gorm"
)

// urlModel maps to the same urls table the SQL migrations create.
type urlModel struct {
	ID        int64          `gorm:"primaryKey"`
	Alias     string         `gorm:"not null;index:idx_urls_alias_live,unique,where:deleted_at IS NULL"`
	LongURL   string         `gorm:"column:long_url;not null"`
	HitCount  int64          `gorm:"not null;default:0"`
	CreatedAt time.Time      `gorm:"not null"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (urlModel) TableName() string { return "urls" }

func (m *urlModel) toDomain() *domain.URLRecord {
	rec := &domain.URLRecord{
		ID:        m.ID,
		Alias:     m.Alias,
		LongURL:   m.LongURL,
		HitCount:  m.HitCount,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.DeletedAt.Valid {
		at := m.DeletedAt.Time.UTC()
		rec.DeletedAt = &at
	}
	return rec
}

type usageModel struct {
	ID        int64     `gorm:"primaryKey"`
	URLID     int64     `gorm:"column:url_id;not null;index:idx_url_usages_url_id_agent,priority:1"`
	IP        string    `gorm:"column:ip;not null"`
	UserAgent *string   `gorm:"index:idx_url_usages_url_id_agent,priority:2"`
	CreatedAt time.Time `gorm:"not null"`
}

func (usageModel) TableName() string { return "url_usages" }

type statsRow struct {
	ID        int64
	Alias     string
	LongURL   string
	HitCount  int64
	CreatedAt time.Time
	UserAgent *string
	Cnt       *int64
}
