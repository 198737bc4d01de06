package models

import (
	"time"
)

// Source is a monitored URL belonging to a project. Sources are created
// through the configuration surface; the pipeline only reads them and
// advances last_scraped_at.
type Source struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	URL           string     `json:"url"`
	Type          SourceType `json:"type"`
	Active        bool       `json:"active"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SourceType categorizes the platform a source points at. The type decides
// which extraction strategy handles the source.
type SourceType string

const (
	SourceTypeSocialPost SourceType = "social_post"
	SourceTypeForum      SourceType = "forum"
	SourceTypeArticle    SourceType = "article"
)

// DisplayName returns a human-readable identifier for logs.
func (s *Source) DisplayName() string {
	if s.URL != "" {
		return s.URL
	}
	return string(s.Type) + " source " + s.ID
}
