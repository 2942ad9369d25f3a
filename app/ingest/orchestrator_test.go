package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/feed"
)

type mockFetcher struct {
	items map[string][]feed.RawItem
	errs  map[string]error
	calls []string
}

func (m *mockFetcher) Fetch(ctx context.Context, source feed.Source) ([]feed.RawItem, error) {
	m.calls = append(m.calls, source.Name)
	if err := m.errs[source.Name]; err != nil {
		return []feed.RawItem{}, err
	}
	return m.items[source.Name], nil
}

type mockWriter struct {
	mu       sync.Mutex
	urls     map[string]bool
	articles []database.NewArticle
	failURL  string
}

func newMockWriter(existing ...string) *mockWriter {
	w := &mockWriter{urls: make(map[string]bool)}
	for _, u := range existing {
		w.urls[u] = true
	}
	return w
}

func (m *mockWriter) InsertArticle(ctx context.Context, a database.NewArticle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.URL == m.failURL {
		return false, errors.New("constraint failed")
	}
	if m.urls[a.URL] {
		return false, nil
	}
	m.urls[a.URL] = true
	m.articles = append(m.articles, a)
	return true, nil
}

func (m *mockWriter) ExistsByURL(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urls[url], nil
}

func newTestRegistry(t *testing.T, sources ...feed.Source) *feed.Registry {
	t.Helper()
	registry, err := feed.NewStaticRegistry(sources)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return registry
}

func item(title, link string) feed.RawItem {
	return feed.RawItem{
		Title:       title,
		Link:        link,
		PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Description: "<p>Summary of " + title + "</p>",
	}
}

func TestRunCountsNewAndExisting(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{Name: "CoinDesk", URL: "https://coindesk.test/rss", Enabled: true})
	fetcher := &mockFetcher{items: map[string][]feed.RawItem{
		"CoinDesk": {
			item("SEC approves spot ETH ETF; BTC also rallies", "https://coindesk.test/a"),
			item("Markets wrap", "https://coindesk.test/b"),
			item("Old story", "https://coindesk.test/c"),
		},
	}}
	writer := newMockWriter("https://coindesk.test/c")

	orchestrator := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0)
	report, err := orchestrator.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Processed != 3 || report.New != 2 || report.Existing != 1 {
		t.Errorf("Expected processed=3 new=2 existing=1, got %d/%d/%d", report.Processed, report.New, report.Existing)
	}
	if len(report.Results) != 1 || report.Results[0].Source != "CoinDesk" {
		t.Fatalf("Unexpected results: %+v", report.Results)
	}

	first := writer.articles[0]
	if first.NameCategory != "ETH,BTC" {
		t.Errorf("Expected tags ETH,BTC, got %q", first.NameCategory)
	}
	if first.Content != "Summary of SEC approves spot ETH ETF; BTC also rallies" {
		t.Errorf("Expected content to fall back to normalized description, got %q", first.Content)
	}
	if first.Source != "CoinDesk" || first.PubDate == nil {
		t.Errorf("Unexpected article: %+v", first)
	}
	if writer.articles[1].NameCategory != "" {
		t.Errorf("Expected untagged article, got %q", writer.articles[1].NameCategory)
	}
}

func TestRunReingestInsertsNothing(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{Name: "CoinDesk", URL: "https://coindesk.test/rss", Enabled: true})
	fetcher := &mockFetcher{items: map[string][]feed.RawItem{
		"CoinDesk": {item("a", "https://coindesk.test/a"), item("b", "https://coindesk.test/b")},
	}}
	writer := newMockWriter()
	orchestrator := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0)

	if _, err := orchestrator.Run(context.Background(), "all"); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	report, err := orchestrator.Run(context.Background(), "all")
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if report.New != 0 || report.Existing != 2 {
		t.Errorf("Expected new=0 existing=2, got %d/%d", report.New, report.Existing)
	}
	if len(writer.articles) != 2 {
		t.Errorf("Expected 2 stored articles, got %d", len(writer.articles))
	}
}

func TestRunSourceFailureDoesNotAbort(t *testing.T) {
	registry := newTestRegistry(t,
		feed.Source{Name: "Broken", URL: "https://broken.test/rss", Enabled: true},
		feed.Source{Name: "Working", URL: "https://working.test/rss", Enabled: true},
	)
	fetcher := &mockFetcher{
		items: map[string][]feed.RawItem{"Working": {item("a", "https://working.test/a")}},
		errs:  map[string]error{"Broken": errors.New("failed to fetch feed: HTTP error: 503")},
	}
	writer := newMockWriter()

	report, err := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(report.Results) != 2 {
		t.Fatalf("Expected a result per source, got %d", len(report.Results))
	}
	broken := report.Results[0]
	if broken.Source != "Broken" || broken.Error == "" || broken.Processed != 0 || broken.New != 0 {
		t.Errorf("Unexpected broken result: %+v", broken)
	}
	if report.Results[1].New != 1 {
		t.Errorf("Expected sibling source to ingest, got %+v", report.Results[1])
	}
	if report.AllFailed() {
		t.Error("Expected AllFailed to be false with one working source")
	}
}

func TestRunSkipsIncompleteItemsAndCountsInsertFailures(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{Name: "CoinDesk", URL: "https://coindesk.test/rss", Enabled: true})
	fetcher := &mockFetcher{items: map[string][]feed.RawItem{
		"CoinDesk": {
			item("", "https://coindesk.test/no-title"),
			item("No link", "  "),
			item("Bad", "https://coindesk.test/bad"),
			item("Good", "https://coindesk.test/good"),
		},
	}}
	writer := newMockWriter()
	writer.failURL = "https://coindesk.test/bad"

	report, err := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0).Run(context.Background(), "CoinDesk")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Processed != 2 || report.Failed != 1 || report.New != 1 {
		t.Errorf("Expected processed=2 failed=1 new=1, got %d/%d/%d", report.Processed, report.Failed, report.New)
	}
}

func TestRunAppliesSourceFilters(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{
		Name:    "CoinDesk",
		URL:     "https://coindesk.test/rss",
		Enabled: true,
		Filters: []feed.Filter{{Field: "title", Excludes: []string{"sponsored"}}},
	})
	fetcher := &mockFetcher{items: map[string][]feed.RawItem{
		"CoinDesk": {
			item("Sponsored: win BTC", "https://coindesk.test/ad"),
			item("BTC breaks out", "https://coindesk.test/news"),
		},
	}}
	writer := newMockWriter()

	report, err := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Filtered != 1 || report.Processed != 1 || report.New != 1 {
		t.Errorf("Expected filtered=1 processed=1 new=1, got %d/%d/%d", report.Filtered, report.Processed, report.New)
	}
	if writer.urls["https://coindesk.test/ad"] {
		t.Error("Expected filtered item not to be stored")
	}
}

func TestRunUnknownSource(t *testing.T) {
	registry := newTestRegistry(t,
		feed.Source{Name: "CoinDesk", URL: "https://coindesk.test/rss", Enabled: true},
		feed.Source{Name: "Paused", URL: "https://paused.test/rss", Enabled: false},
	)
	fetcher := &mockFetcher{}
	writer := newMockWriter()
	orchestrator := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0)

	for _, name := range []string{"Nope", "Paused"} {
		if _, err := orchestrator.Run(context.Background(), name); !errors.Is(err, ErrSourceNotFound) {
			t.Errorf("Expected ErrSourceNotFound for %s, got %v", name, err)
		}
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("Expected no fetches, got %v", fetcher.calls)
	}

	// "all" only touches enabled sources.
	if _, err := orchestrator.Run(context.Background(), "ALL"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "CoinDesk" {
		t.Errorf("Expected only enabled source to be fetched, got %v", fetcher.calls)
	}
}

func TestRunAllFailed(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{Name: "Broken", URL: "https://broken.test/rss", Enabled: true})
	fetcher := &mockFetcher{errs: map[string]error{"Broken": errors.New("down")}}
	writer := newMockWriter()

	report, _ := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0).Run(context.Background(), "")
	if !report.AllFailed() {
		t.Error("Expected AllFailed when every source errored")
	}
}

func TestRunWithRealFetcher(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel><title>Test</title>
%s
</channel></rss>`
	items := ""
	for i := 1; i <= 3; i++ {
		items += fmt.Sprintf(`<item><title>Story %d about Solana</title><link>https://feed.test/%d</link><description>d%d</description><content:encoded><![CDATA[<p>Rich <b>body</b> %d</p>]]></content:encoded></item>`, i, i, i, i)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = fmt.Fprintf(w, rss, items)
	}))
	defer server.Close()

	registry := newTestRegistry(t, feed.Source{
		Name:     "CoinGape",
		URL:      server.URL,
		Enabled:  true,
		Strategy: feed.Strategy{RichContent: true, ContentField: "content:encoded"},
	})
	fetcher := feed.NewFetcher(server.Client(), "test-agent", 5*time.Second, nil)
	writer := newMockWriter("https://feed.test/1")

	report, err := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, time.Millisecond).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.Processed != 3 || report.New != 2 {
		t.Errorf("Expected processed=3 new=2, got %d/%d", report.Processed, report.New)
	}
	if len(writer.articles) != 2 {
		t.Fatalf("Expected 2 stored articles, got %d", len(writer.articles))
	}
	if writer.articles[0].Content != "Rich body 2" {
		t.Errorf("Expected rich content, got %q", writer.articles[0].Content)
	}
	if !strings.Contains(writer.articles[0].NameCategory, "SOL") {
		t.Errorf("Expected SOL tag, got %q", writer.articles[0].NameCategory)
	}
}

type mockSeenSet struct {
	seen   map[string]bool
	err    error
	marked []string
}

func (m *mockSeenSet) IsSeen(ctx context.Context, url string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.seen[url], nil
}

func (m *mockSeenSet) MarkSeen(ctx context.Context, url string) error {
	m.marked = append(m.marked, url)
	return m.err
}

type countingGate struct {
	StoreGate
	calls int
}

func (g *countingGate) Seen(ctx context.Context, url string) (bool, error) {
	g.calls++
	return g.StoreGate.Seen(ctx, url)
}

func TestCachedGate(t *testing.T) {
	writer := newMockWriter("https://x/stored")
	inner := &countingGate{StoreGate: *NewStoreGate(writer)}
	cache := &mockSeenSet{seen: map[string]bool{"https://x/cached": true}}
	gate := NewCachedGate(cache, inner)
	ctx := context.Background()

	if seen, _ := gate.Seen(ctx, "https://x/cached"); !seen {
		t.Error("Expected cache hit to be seen")
	}
	if inner.calls != 0 {
		t.Errorf("Expected cache hit to skip the store, got %d calls", inner.calls)
	}

	if seen, _ := gate.Seen(ctx, "https://x/stored"); !seen {
		t.Error("Expected store hit to be seen")
	}
	if len(cache.marked) != 1 || cache.marked[0] != "https://x/stored" {
		t.Errorf("Expected store hit to warm the cache, got %v", cache.marked)
	}

	if seen, _ := gate.Seen(ctx, "https://x/new"); seen {
		t.Error("Expected unknown URL to be unseen")
	}

	gate.Remember(ctx, "https://x/new")
	if cache.marked[len(cache.marked)-1] != "https://x/new" {
		t.Errorf("Expected Remember to mark the URL, got %v", cache.marked)
	}
}

func TestCachedGateFallsThroughOnCacheError(t *testing.T) {
	writer := newMockWriter("https://x/stored")
	cache := &mockSeenSet{err: errors.New("connection refused")}
	gate := NewCachedGate(cache, NewStoreGate(writer))

	seen, err := gate.Seen(context.Background(), "https://x/stored")
	if err != nil {
		t.Fatalf("Expected cache errors to be absorbed, got %v", err)
	}
	if !seen {
		t.Error("Expected the store to answer when the cache is down")
	}
}

type timedWriter struct {
	*mockWriter
	times []time.Time
}

func (w *timedWriter) InsertArticle(ctx context.Context, a database.NewArticle) (bool, error) {
	w.times = append(w.times, time.Now())
	return w.mockWriter.InsertArticle(ctx, a)
}

func TestRunSpacesWritesWithDelay(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{Name: "CoinDesk", URL: "https://coindesk.test/rss", Enabled: true})
	fetcher := &mockFetcher{items: map[string][]feed.RawItem{
		"CoinDesk": {
			item("a", "https://coindesk.test/a"),
			item("known", "https://coindesk.test/known"),
			item("b", "https://coindesk.test/b"),
			item("c", "https://coindesk.test/c"),
		},
	}}
	inner := newMockWriter("https://coindesk.test/known")
	writer := &timedWriter{mockWriter: inner}

	delay := 20 * time.Millisecond
	report, err := NewOrchestrator(registry, fetcher, NewStoreGate(inner), writer, delay).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.New != 3 || report.Existing != 1 || report.Processed != 4 {
		t.Errorf("Expected processed=4 new=3 existing=1, got %d/%d/%d", report.Processed, report.New, report.Existing)
	}
	if len(writer.times) != 3 {
		t.Fatalf("Expected 3 writes, got %d", len(writer.times))
	}
	for i := 1; i < len(writer.times); i++ {
		if gap := writer.times[i].Sub(writer.times[i-1]); gap < delay {
			t.Errorf("Expected writes %d and %d at least %s apart, got %s", i-1, i, delay, gap)
		}
	}
}

func TestRunDuplicateLinkInOneFeed(t *testing.T) {
	registry := newTestRegistry(t, feed.Source{Name: "CoinDesk", URL: "https://coindesk.test/rss", Enabled: true})
	fetcher := &mockFetcher{items: map[string][]feed.RawItem{
		"CoinDesk": {item("a", "https://coindesk.test/a"), item("a again", " https://coindesk.test/a ")},
	}}
	writer := newMockWriter()

	report, err := NewOrchestrator(registry, fetcher, NewStoreGate(writer), writer, 0).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if report.New != 1 || report.Existing != 1 || report.Processed != 2 {
		t.Errorf("Expected processed=2 new=1 existing=1, got %d/%d/%d", report.Processed, report.New, report.Existing)
	}
	if len(writer.articles) != 1 {
		t.Errorf("Expected 1 stored article, got %d", len(writer.articles))
	}
}
