package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
	"github.com/unikonkon/crypto-news-aggregator/app/llm"
	"github.com/unikonkon/crypto-news-aggregator/app/prompt"
)

// MaxDigestContent caps the combined content stored with a summary.
const MaxDigestContent = 10000

// Names searched (case-insensitively) for the summary's primary asset.
var digestCryptoNames = []string{
	"Bitcoin", "BTC",
	"Ethereum", "ETH",
	"Solana", "SOL",
	"Cardano", "ADA",
	"Binance", "BNB",
	"XRP", "Ripple",
	"Dogecoin", "DOGE",
	"Avalanche", "AVAX",
	"Polygon", "MATIC",
	"Chainlink", "LINK",
	"Litecoin", "LTC",
	"Polkadot", "DOT",
	"Tron", "TRX",
	"Shiba", "SHIB",
}

type SummaryStore interface {
	InsertSummary(ctx context.Context, summary *database.Summary) error
}

// Digester writes one aggregate summary for a batch of articles.
type Digester struct {
	generator llm.Generator
	store     SummaryStore
	language  string
}

// NewDigester builds a digester. Without a generator the default analysis
// is stored.
func NewDigester(generator llm.Generator, store SummaryStore, language string) *Digester {
	return &Digester{generator: generator, store: store, language: language}
}

func (d *Digester) Summarize(ctx context.Context, articles []Article) (*database.Summary, error) {
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	contents := make([]prompt.ArticleContent, len(articles))
	for i, a := range articles {
		contents[i] = prompt.ArticleContent{Title: a.Title, Source: a.Source, Content: a.Content}
	}
	combined := prompt.CombineArticles(contents)

	sources := uniqueNonEmpty(articles, func(a Article) string { return a.Source })
	categories := uniqueNonEmpty(articles, func(a Article) string { return a.Category })

	analysis := DefaultAnalysis()
	if d.generator != nil {
		response, err := d.generator.Generate(ctx, prompt.RenderDigest(contents, d.language))
		if err != nil {
			slog.Error("Model call failed", "operation", "digest", "articles", len(articles), "error", err)
		} else if parsed, err := Parse(response); err != nil {
			slog.Error("Failed to parse model response", "operation", "digest", "error", err, "raw", response)
		} else {
			analysis = parsed
		}
	}

	summary := &database.Summary{
		AllSelect:     len(articles),
		AllContent:    truncate(combined, MaxDigestContent),
		AllSource:     strings.Join(sources, ", "),
		AllCategory:   strings.Join(categories, ", "),
		NameCrypto:    primaryCrypto(combined),
		Summary:       analysis.Summary,
		Sentiment:     analysis.Sentiment,
		TrendingScore: Clamp(analysis.TrendingScore),
	}
	if len(sources) > 0 {
		summary.Source = sources[0]
	}

	if err := d.store.InsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to create summary: %w", err)
	}

	return summary, nil
}

// primaryCrypto returns the first listed name that occurs in content.
func primaryCrypto(content string) string {
	upper := strings.ToUpper(content)
	for _, name := range digestCryptoNames {
		if strings.Contains(upper, strings.ToUpper(name)) {
			return name
		}
	}
	return ""
}

func uniqueNonEmpty(articles []Article, field func(Article) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range articles {
		v := strings.TrimSpace(field(a))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
