// Package ingest pulls every configured feed into the article store.
package ingest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/feed"
	"github.com/unikonkon/crypto-news-aggregator/app/pipeline"
)

var ErrSourceNotFound = errors.New("source not found")

// AllSources selects every enabled source.
const AllSources = "all"

type SourceRegistry interface {
	Enabled() []feed.Source
	Get(name string) (feed.Source, bool)
}

type FeedFetcher interface {
	Fetch(ctx context.Context, source feed.Source) ([]feed.RawItem, error)
}

type ArticleWriter interface {
	InsertArticle(ctx context.Context, article database.NewArticle) (bool, error)
}

type SourceResult struct {
	Source    string `json:"source"`
	Processed int    `json:"processed"`
	New       int    `json:"new"`
	Existing  int    `json:"existing"`
	Filtered  int    `json:"filtered"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Success   bool           `json:"success"`
	Processed int            `json:"processed"`
	New       int            `json:"new"`
	Existing  int            `json:"existing"`
	Filtered  int            `json:"filtered"`
	Failed    int            `json:"failed"`
	Results   []SourceResult `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
}

// AllFailed reports whether every attempted source errored.
func (r *Report) AllFailed() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if res.Error == "" {
			return false
		}
	}
	return true
}

type Orchestrator struct {
	registry SourceRegistry
	fetcher  FeedFetcher
	filterer *feed.Filterer
	gate     Gate
	writer   ArticleWriter
	delay    time.Duration
	now      func() time.Time

	mu sync.Mutex
}

func NewOrchestrator(registry SourceRegistry, fetcher FeedFetcher, gate Gate, writer ArticleWriter, delay time.Duration) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		fetcher:  fetcher,
		filterer: feed.NewFilterer(),
		gate:     gate,
		writer:   writer,
		delay:    delay,
		now:      time.Now,
	}
}

// Run ingests one source, or every enabled source when sourceName is empty
// or "all". Only one run executes at a time.
func (o *Orchestrator) Run(ctx context.Context, sourceName string) (*Report, error) {
	sources, err := o.selectSources(sourceName)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.now()
	slog.Info("Ingest started", "sources", len(sources))

	results := pipeline.Run(ctx, sources, func(ctx context.Context, _ int, source feed.Source) SourceResult {
		return o.ingestSource(ctx, source)
	}, pipeline.Options{})

	report := &Report{
		Success:   true,
		Results:   results,
		Timestamp: o.now().UTC(),
	}
	for _, r := range results {
		report.Processed += r.Processed
		report.New += r.New
		report.Existing += r.Existing
		report.Filtered += r.Filtered
		report.Failed += r.Failed
	}

	slog.Info("Ingest completed", "processed", report.Processed, "new", report.New,
		"existing", report.Existing, "filtered", report.Filtered, "failed", report.Failed, "duration", o.now().Sub(start))

	return report, nil
}

func (o *Orchestrator) selectSources(name string) ([]feed.Source, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, AllSources) {
		return o.registry.Enabled(), nil
	}

	source, ok := o.registry.Get(name)
	if !ok || !source.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	return []feed.Source{source}, nil
}

func (o *Orchestrator) ingestSource(ctx context.Context, source feed.Source) SourceResult {
	result := SourceResult{Source: source.Name}

	items, err := o.fetcher.Fetch(ctx, source)
	if err != nil {
		slog.Error("Feed fetch failed", "source", source.Name, "error", err)
		result.Error = err.Error()
		return result
	}

	pending := o.screen(ctx, source, items, &result)

	outcomes := pipeline.Run(ctx, pending, func(ctx context.Context, _ int, item feed.RawItem) writeOutcome {
		return o.write(ctx, source, item)
	}, pipeline.Options{Delay: o.delay})

	// Items never written because the run was cancelled are not processed.
	result.Processed = result.Existing + len(outcomes)
	for _, outcome := range outcomes {
		switch outcome {
		case writeInserted:
			result.New++
		case writeExisting:
			result.Existing++
		default:
			result.Failed++
		}
	}

	slog.Info("Source ingested", "source", source.Name, "processed", result.Processed,
		"new", result.New, "existing", result.Existing, "filtered", result.Filtered, "failed", result.Failed)

	return result
}

type writeOutcome int

const (
	writeFailed writeOutcome = iota
	writeInserted
	writeExisting
)

// screen drops incomplete and filtered items and those the gate has already
// seen. The rest are returned in feed order for writing.
func (o *Orchestrator) screen(ctx context.Context, source feed.Source, items []feed.RawItem, result *SourceResult) []feed.RawItem {
	var pending []feed.RawItem
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item.Link = strings.TrimSpace(item.Link)
		if strings.TrimSpace(item.Title) == "" || item.Link == "" {
			continue
		}
		if filtered, reason := o.filterer.Run(item, source.Filters); filtered {
			slog.Debug("Item filtered", "source", source.Name, "link", item.Link, "reason", reason)
			result.Filtered++
			continue
		}

		seen, err := o.gate.Seen(ctx, item.Link)
		if err != nil {
			// The unique constraint still rejects a duplicate.
			slog.Warn("Dedup check failed", "source", source.Name, "link", item.Link, "error", err)
		}
		if seen {
			result.Existing++
			continue
		}
		pending = append(pending, item)
	}
	return pending
}

func (o *Orchestrator) write(ctx context.Context, source feed.Source, item feed.RawItem) writeOutcome {
	inserted, err := o.writer.InsertArticle(ctx, toNewArticle(source, item))
	if err != nil {
		slog.Error("Database error", "operation", "insert_article", "source", source.Name, "link", item.Link, "error", err)
		return writeFailed
	}
	o.gate.Remember(ctx, item.Link)
	if inserted {
		return writeInserted
	}
	return writeExisting
}

func toNewArticle(source feed.Source, item feed.RawItem) database.NewArticle {
	title := feed.NormalizeN(item.Title, 0)
	description := feed.Normalize(item.Description)

	article := database.NewArticle{
		Title:        title,
		URL:          item.Link,
		Content:      cmp.Or(feed.Normalize(item.Content), description),
		Description:  description,
		Source:       source.Name,
		Category:     strings.TrimSpace(item.Category),
		NameCategory: feed.JoinTags(feed.ExtractTags(title)),
		Creator:      strings.TrimSpace(item.Author),
	}
	if !item.PublishedAt.IsZero() {
		pub := item.PublishedAt.UTC()
		article.PubDate = &pub
	}
	return article
}
