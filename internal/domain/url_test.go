package domain_test

import (
	"testing"
	"time"

	"shortlink/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestURLRecord_IsDeleted(t *testing.T) {
	deletedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		deletedAt *time.Time
		want      bool
	}{
		{name: "live record", deletedAt: nil, want: false},
		{name: "soft-deleted record", deletedAt: &deletedAt, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &domain.URLRecord{DeletedAt: tt.deletedAt}
			assert.Equal(t, tt.want, record.IsDeleted())
		})
	}
}

func TestURLRecord_Clone(t *testing.T) {
	deletedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	original := &domain.URLRecord{
		ID:        7,
		Alias:     "abc12345",
		LongURL:   "https://example.com",
		CreatedAt: time.Now(),
		HitCount:  42,
		DeletedAt: &deletedAt,
	}

	clone := original.Clone()

	assert.Equal(t, original, clone)

	// Should be independent (modifying clone doesn't affect original)
	clone.HitCount = 100
	*clone.DeletedAt = deletedAt.Add(time.Hour)
	assert.Equal(t, int64(42), original.HitCount)
	assert.Equal(t, deletedAt, *original.DeletedAt)
}

func TestAliasPolicy_String(t *testing.T) {
	assert.Equal(t, "reuse-blocked", domain.AliasReuseBlocked.String())
	assert.Equal(t, "reuse-allowed", domain.AliasReuseAllowed.String())
}
