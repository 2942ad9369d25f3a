package annotation

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
)

var (
	ErrNoJSON        = errors.New("no JSON object found in model response")
	ErrMalformedJSON = errors.New("model response JSON could not be parsed")
)

const (
	DefaultSummary   = "Unable to analyze content at this time."
	DefaultSentiment = database.SentimentNeutral
	DefaultScore     = 50
	MinScore         = 0
	MaxScore         = 100
)

// Analysis is the validated model output for one article.
type Analysis struct {
	Summary           string   `json:"summary"`
	Sentiment         string   `json:"sentiment"`
	TrendingScore     int      `json:"trending_score"`
	KeyPoints         []string `json:"key_points"`
	RelatedCryptos    []string `json:"related_cryptos"`
	MarketImpactScore int      `json:"market_impact_score"`
}

func DefaultAnalysis() Analysis {
	return Analysis{
		Summary:           DefaultSummary,
		Sentiment:         DefaultSentiment,
		TrendingScore:     DefaultScore,
		KeyPoints:         []string{"Analysis unavailable"},
		RelatedCryptos:    []string{},
		MarketImpactScore: DefaultScore,
	}
}

type extractor func(text string) (string, bool)

var (
	greedyBrace = regexp.MustCompile(`(?s)\{.*\}`)
	fencedJSON  = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	looseBrace  = regexp.MustCompile(`(?s)\{.*?\}`)
)

// Tried in order; the first candidate that decodes wins.
var extractors = []extractor{
	func(text string) (string, bool) {
		m := greedyBrace.FindString(text)
		return m, m != ""
	},
	func(text string) (string, bool) {
		m := fencedJSON.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[1], true
	},
	func(text string) (string, bool) {
		m := looseBrace.FindString(text)
		return m, m != ""
	},
}

// Parse extracts the analysis object from free model text. On failure it
// returns DefaultAnalysis together with ErrNoJSON or ErrMalformedJSON.
func Parse(text string) (Analysis, error) {
	found := false
	for _, extract := range extractors {
		candidate, ok := extract(text)
		if !ok {
			continue
		}
		found = true

		var raw map[string]any
		if err := json.Unmarshal([]byte(sanitize(candidate)), &raw); err != nil {
			continue
		}
		return merge(raw), nil
	}

	if !found {
		return DefaultAnalysis(), ErrNoJSON
	}
	return DefaultAnalysis(), ErrMalformedJSON
}

// sanitize turns line breaks and tabs into spaces, drops other control
// characters and collapses runs of whitespace.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func merge(raw map[string]any) Analysis {
	a := DefaultAnalysis()

	if s, ok := raw["summary"].(string); ok && strings.TrimSpace(s) != "" {
		a.Summary = strings.TrimSpace(s)
	}
	if s, ok := raw["sentiment"].(string); ok {
		if label, ok := normalizeSentiment(s); ok {
			a.Sentiment = label
		}
	}
	if n, ok := toScore(raw["trending_score"]); ok {
		a.TrendingScore = n
	}
	if n, ok := toScore(raw["market_impact_score"]); ok {
		a.MarketImpactScore = n
	}
	if list, ok := toStringList(raw["key_points"]); ok {
		a.KeyPoints = list
	}
	if list, ok := toStringList(raw["related_cryptos"]); ok {
		a.RelatedCryptos = list
	}

	return a
}

func normalizeSentiment(s string) (string, bool) {
	for _, label := range []string{database.SentimentPositive, database.SentimentNeutral, database.SentimentNegative} {
		if strings.EqualFold(strings.TrimSpace(s), label) {
			return label, true
		}
	}
	return "", false
}

// toScore accepts numbers and numeric strings; fractions are truncated and
// the result is clamped.
func toScore(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) {
		return 0, false
	}
	return Clamp(int(math.Max(math.Min(math.Trunc(f), MaxScore), MinScore))), true
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(n int) int {
	return max(MinScore, min(MaxScore, n))
}

func toStringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	list := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			list = append(list, strings.TrimSpace(s))
		}
	}
	return list, true
}
