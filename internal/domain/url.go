package domain

import "time"

// URLRecord represents a shortened URL entry.
type URLRecord struct {
	ID        int64
	Alias     string
	LongURL   string
	HitCount  int64
	CreatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted reports whether the record has been soft-deleted.
func (r *URLRecord) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Clone creates a deep copy of the record.
func (r *URLRecord) Clone() *URLRecord {
	c := *r
	if r.DeletedAt != nil {
		at := *r.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

// UsageRecord is a single access to a short URL.
// URLID is not checked against existing records.
type UsageRecord struct {
	ID        int64
	URLID     int64
	IP        string
	UserAgent *string
	Timestamp time.Time
}

// AliasPolicy controls whether an alias held only by soft-deleted records
// can be handed out again.
type AliasPolicy int

const (
	// AliasReuseBlocked keeps an alias taken forever once used.
	AliasReuseBlocked AliasPolicy = iota
	// AliasReuseAllowed frees an alias when its record is soft-deleted.
	AliasReuseAllowed
)

func (p AliasPolicy) String() string {
	if p == AliasReuseAllowed {
		return "reuse-allowed"
	}
	return "reuse-blocked"
}
