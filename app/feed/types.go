package feed

import (
	"time"
)

// Source registry types

type Source struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Enabled  bool     `yaml:"enabled"`
	Strategy Strategy `yaml:"strategy"`
	Filters  []Filter `yaml:"filters"`
}

// Filter drops items whose field contains an excluded term, or contains
// none of the included terms. Matching is case-insensitive.
type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Strategy describes where a source keeps the fields that vary between feed
// dialects. Field paths are qualified element names such as "content:encoded"
// or "dc:creator"; an empty path means the standard gofeed field is used.
type Strategy struct {
	RichContent    bool   `yaml:"rich_content"`
	ContentField   string `yaml:"content_field"`
	AuthorField    string `yaml:"author_field"`
	CategoryField  string `yaml:"category_field"`
	ExtractContent bool   `yaml:"extract_content"` // fetch the article page when the feed carries no body
}

// usesRawFields reports whether items need the secondary raw XML pass.
func (s Strategy) usesRawFields() bool {
	return s.RichContent || s.ContentField != "" || s.AuthorField != "" || s.CategoryField != ""
}

// Feed processing types

type RawItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
	Description string
	Content     string
	Author      string
	Category    string
}
