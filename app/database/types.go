package database

import (
	"time"
)

// Sentiment labels accepted by the annotations and summaries tables.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

type Article struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Content      string     `json:"content"`
	Description  string     `json:"description"`
	Source       string     `json:"source"`
	PubDate      *time.Time `json:"pub_date"`
	Category     string     `json:"category,omitempty"`      // Category as published by the feed
	NameCategory string     `json:"name_category,omitempty"` // Comma-joined ticker tags; empty means untagged
	Creator      string     `json:"creator,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewArticle is what the ingest pipeline writes; ID and timestamps are
// assigned on insert.
type NewArticle struct {
	Title        string
	URL          string
	Content      string
	Description  string
	Source       string
	PubDate      *time.Time
	Category     string
	NameCategory string
	Creator      string
}

// Annotation is one model analysis of one article under one template. The
// original_* fields are a snapshot so the record stays readable after the
// article is gone.
type Annotation struct {
	ID                   string     `json:"id"`
	ArticleID            string     `json:"article_id"`
	OriginalTitle        string     `json:"original_title"`
	OriginalContent      string     `json:"original_content"`
	OriginalSource       string     `json:"original_source"`
	OriginalURL          string     `json:"original_url"`
	OriginalCategory     string     `json:"original_category,omitempty"`
	OriginalNameCategory string     `json:"original_name_category,omitempty"`
	OriginalPubDate      *time.Time `json:"original_pub_date"`
	SummaryType          string     `json:"summary_type"`
	Summary              string     `json:"ai_summary"`
	Sentiment            string     `json:"ai_sentiment"`
	TrendingScore        int        `json:"trending_score"`
	KeyPoints            []string   `json:"key_points"`
	RelatedCryptos       []string   `json:"related_cryptos"`
	MarketImpactScore    int        `json:"market_impact_score"`
	ProcessingTimeMs     int64      `json:"processing_time_ms"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Summary is the aggregate analysis of a batch of articles.
type Summary struct {
	ID            string    `json:"id"`
	AllSelect     int       `json:"all_select"`
	AllContent    string    `json:"all_content"`
	AllSource     string    `json:"all_source"`
	AllCategory   string    `json:"all_category,omitempty"`
	NameCrypto    string    `json:"name_crypto,omitempty"`
	Summary       string    `json:"summary"`
	Source        string    `json:"source"`
	Sentiment     string    `json:"sentiment"`
	TrendingScore int       `json:"trending_score"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Page bounds a list query. Zero values are replaced by defaults.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page to page >= 1 and 1 <= limit <= MaxPageLimit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TagUntagged selects articles without any ticker tag.
const TagUntagged = "others"

type ArticleFilter struct {
	Source string
	Tag    string
	From   *time.Time
	To     *time.Time
	SortBy string
	Order  string
	Page   Page
}

type AnnotationFilter struct {
	Source      string
	Tag         string
	SummaryType string
	From        *time.Time
	To          *time.Time
	Page        Page
}
