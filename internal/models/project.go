package models

import (
	"time"
)

// Project is a tracked subject whose sources are monitored for narrative signals.
type Project struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Active               bool       `json:"active"`
	RefreshIntervalHours int        `json:"refresh_interval_hours"` // one of 2, 4, 8, 12
	LastRefreshedAt      *time.Time `json:"last_refreshed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ValidRefreshIntervals enumerates the allowed refresh cadences in hours.
var ValidRefreshIntervals = []int{2, 4, 8, 12}

// HasValidInterval reports whether the project's refresh interval is one of
// the supported values.
func (p *Project) HasValidInterval() bool {
	for _, h := range ValidRefreshIntervals {
		if p.RefreshIntervalHours == h {
			return true
		}
	}
	return false
}

// IsDue reports whether the project should be refreshed given the elapsed
// hours since its last successful scrape. A project that has never been
// refreshed is always due.
func (p *Project) IsDue(hoursSinceRefresh float64) bool {
	if p.LastRefreshedAt == nil {
		return true
	}
	return hoursSinceRefresh >= float64(p.RefreshIntervalHours)
}

// DueProject pairs a due project with the elapsed time that made it due.
type DueProject struct {
	Project           Project  `json:"project"`
	HoursSinceRefresh *float64 `json:"hours_since_refresh,omitempty"` // nil when never refreshed
}
