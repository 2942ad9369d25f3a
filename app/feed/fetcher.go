package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxBodySize bounds a single feed or article download.
const maxBodySize = 10 << 20

type Fetcher struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	extractor    *ContentExtractor
	userAgent    string
	timeout      time.Duration
	now          func() time.Time
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration, extractor *ContentExtractor) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		extractor:    extractor,
		userAgent:    userAgent,
		timeout:      timeout,
		now:          time.Now,
	}
}

// Fetch downloads and parses one source. Any failure, including a panic in
// a parser, comes back as an empty list and an error describing the reason.
func (f *Fetcher) Fetch(ctx context.Context, source Source) (items []RawItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = []RawItem{}
			err = fmt.Errorf("feed parser panic: %v", r)
		}
	}()

	data, err := f.get(ctx, source.URL, "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if err != nil {
		return []RawItem{}, fmt.Errorf("failed to fetch feed: %w", err)
	}

	items, err = f.Parse(data, source.Strategy)
	if err != nil {
		return []RawItem{}, err
	}

	if source.Strategy.ExtractContent && f.extractor != nil {
		f.fillMissingContent(ctx, source, items)
	}

	slog.Debug("Feed fetched", "source", source.Name, "items", len(items))

	return items, nil
}

// Parse turns a feed document into raw items using the source strategy for
// fields that differ between feed dialects.
func (f *Fetcher) Parse(data []byte, strategy Strategy) ([]RawItem, error) {
	parsed, err := f.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return []RawItem{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	var raw []rawFields
	if strategy.usesRawFields() {
		raw, err = parseRawItems(data)
		if err != nil {
			// The standard fields are still usable.
			slog.Warn("Raw feed pass incomplete", "error", err, "items", len(raw))
		}
	}
	byLink := make(map[string]rawFields, len(raw))
	for _, fields := range raw {
		if link := fields.first("link"); link != "" {
			byLink[link] = fields
		}
	}

	items := make([]RawItem, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if item == nil {
			continue
		}
		var fields rawFields
		if i < len(raw) {
			fields = raw[i]
			if link := fields.first("link"); link != "" && link != strings.TrimSpace(item.Link) {
				fields = byLink[strings.TrimSpace(item.Link)]
			}
		}
		items = append(items, f.normalizeItem(item, fields, strategy))
	}

	return items, nil
}

func (f *Fetcher) normalizeItem(item *gofeed.Item, fields rawFields, strategy Strategy) RawItem {
	normalized := RawItem{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(cmp.Or(item.Link, linkFromGUID(item.GUID))),
		Description: item.Description,
	}

	switch {
	case item.PublishedParsed != nil:
		normalized.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		normalized.PublishedAt = item.UpdatedParsed.UTC()
	default:
		normalized.PublishedAt = f.now().UTC()
	}

	if strategy.RichContent {
		normalized.Content = fields.first(strategy.ContentField)
	}
	normalized.Content = cmp.Or(normalized.Content, item.Content, item.Description)

	normalized.Author = cmp.Or(fields.first(strategy.AuthorField), extractAuthor(item))
	normalized.Category = cmp.Or(fields.joined(strategy.CategoryField), strings.Join(item.Categories, ", "))

	return normalized
}

func (f *Fetcher) fillMissingContent(ctx context.Context, source Source, items []RawItem) {
	for i := range items {
		if items[i].Link == "" || len(Normalize(items[i].Content)) > len(Normalize(items[i].Description)) {
			continue
		}

		page, err := f.get(ctx, items[i].Link, "text/html")
		if err != nil {
			slog.Debug("Article page fetch failed", "source", source.Name, "link", items[i].Link, "error", err)
			continue
		}

		text, err := f.extractor.Run(page, items[i].Link)
		if err != nil {
			slog.Debug("Content extraction failed", "source", source.Name, "link", items[i].Link, "error", err)
			continue
		}
		items[i].Content = text
	}
}

func (f *Fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func linkFromGUID(guid string) string {
	if strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return guid
	}
	return ""
}

func extractAuthor(item *gofeed.Item) string {
	var authors []string
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if s := formatAuthor(author.Name, author.Email); s != "" {
			authors = append(authors, s)
		}
	}
	if len(authors) == 0 && item.Author != nil {
		if s := formatAuthor(item.Author.Name, item.Author.Email); s != "" {
			authors = append(authors, s)
		}
	}
	if len(authors) == 0 && item.DublinCoreExt != nil {
		authors = append(authors, item.DublinCoreExt.Creator...)
	}
	return strings.Join(authors, ", ")
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s (%s)", email, name)
	case name != "":
		return name
	default:
		return email
	}
}
