package domain

// UserAgentCount is the number of usages with a given user agent.
// A nil UserAgent groups usages recorded without one.
type UserAgentCount struct {
	UserAgent *string
	Count     int64
}

// URLStatistic summarises the usage of one live URL.
type URLStatistic struct {
	ID               int64
	LongURL          string
	TotalAccessCount int64
	UserAgentCounts  []UserAgentCount
}

// UsageTally counts usages grouped by (URLID, UserAgent).
type UsageTally struct {
	URLID     int64
	UserAgent *string
	Count     int64
}

// StatsSnapshot is a point-in-time read of live URLs and their usage tallies.
// Both slices come from the same read so totals and per-agent counts agree.
type StatsSnapshot struct {
	URLs    []URLRecord
	Tallies []UsageTally
}
