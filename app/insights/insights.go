// Package insights aggregates stored annotations into a market overview.
package insights

import (
	"math"
	"sort"
	"strings"

	"github.com/unikonkon/crypto-news-aggregator/app/database"
)

const (
	RecommendBuy  = "BUY"
	RecommendSell = "SELL"
	RecommendHold = "HOLD"
	RecommendWait = "WAIT"
)

const (
	maxTopCryptos   = 10
	maxRanked       = 3
	minRankMentions = 2
	maxKeyThemes    = 8
)

type Distribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

type CryptoStat struct {
	Crypto        string `json:"crypto"`
	Count         int    `json:"count"`
	PositiveShare int    `json:"avg_sentiment_score"`
	AvgImpact     int    `json:"avg_impact"`
}

type Insight struct {
	Records            int            `json:"records"`
	OverallSentiment   string         `json:"overall_sentiment"`
	Distribution       Distribution   `json:"sentiment_distribution"`
	AvgTrendingScore   int            `json:"average_trending_score"`
	AvgMarketImpact    int            `json:"average_market_impact"`
	TopCryptos         []CryptoStat   `json:"top_cryptos"`
	TopPositiveCryptos []CryptoStat   `json:"top_positive_cryptos"`
	TopNegativeCryptos []CryptoStat   `json:"top_negative_cryptos"`
	KeyThemes          []string       `json:"key_themes"`
	SummaryTypes       map[string]int `json:"summary_types_stats"`
	Recommendation     string         `json:"trading_recommendation"`
	Confidence         int            `json:"confidence_level"`
}

func empty() Insight {
	return Insight{
		OverallSentiment:   database.SentimentNeutral,
		TopCryptos:         []CryptoStat{},
		TopPositiveCryptos: []CryptoStat{},
		TopNegativeCryptos: []CryptoStat{},
		KeyThemes:          []string{},
		SummaryTypes:       map[string]int{},
		Recommendation:     RecommendWait,
	}
}

// Compute builds the overview for records. It never fails; no records
// yields a neutral WAIT with zero confidence.
func Compute(records []database.Annotation) Insight {
	if len(records) == 0 {
		return empty()
	}

	out := empty()
	out.Records = len(records)
	total := float64(len(records))

	var positive, neutral, negative int
	var trendingSum, impactSum int
	seenThemes := make(map[string]bool)

	for _, r := range records {
		switch strings.ToLower(r.Sentiment) {
		case "positive":
			positive++
		case "negative":
			negative++
		default:
			neutral++
		}
		trendingSum += r.TrendingScore
		impactSum += r.MarketImpactScore
		out.SummaryTypes[r.SummaryType]++

		for _, kp := range r.KeyPoints {
			if len(out.KeyThemes) == maxKeyThemes {
				break
			}
			if !seenThemes[kp] {
				seenThemes[kp] = true
				out.KeyThemes = append(out.KeyThemes, kp)
			}
		}
	}

	out.Distribution = Distribution{
		Positive: percent(positive, total),
		Neutral:  percent(neutral, total),
		Negative: percent(negative, total),
	}
	switch {
	case out.Distribution.Positive > 50:
		out.OverallSentiment = database.SentimentPositive
	case out.Distribution.Negative > 50:
		out.OverallSentiment = database.SentimentNegative
	}

	out.AvgTrendingScore = round(float64(trendingSum) / total)
	out.AvgMarketImpact = round(float64(impactSum) / total)

	out.TopCryptos = topCryptos(records)
	out.TopPositiveCryptos = ranked(out.TopCryptos, func(a, b CryptoStat) bool {
		if a.PositiveShare != b.PositiveShare {
			return a.PositiveShare > b.PositiveShare
		}
		return a.AvgImpact > b.AvgImpact
	})
	out.TopNegativeCryptos = ranked(out.TopCryptos, func(a, b CryptoStat) bool {
		if a.PositiveShare != b.PositiveShare {
			return a.PositiveShare < b.PositiveShare
		}
		return a.AvgImpact > b.AvgImpact
	})

	out.Recommendation, out.Confidence = recommend(out.AvgTrendingScore, out.AvgMarketImpact, out.Distribution)

	return out
}

func recommend(trending, impact int, d Distribution) (string, int) {
	switch {
	case trending >= 70 && impact >= 70 && d.Positive >= 60:
		return RecommendBuy, 85
	case trending <= 30 && impact <= 30 && d.Negative >= 60:
		return RecommendSell, 80
	case trending >= 50 && d.Positive >= 40:
		return RecommendHold, 65
	default:
		return RecommendWait, 50
	}
}

type cryptoAcc struct {
	name      string
	count     int
	positive  int
	impactSum int
}

// topCryptos counts the records mentioning each symbol in related_cryptos.
// Ties keep first-seen order.
func topCryptos(records []database.Annotation) []CryptoStat {
	var order []*cryptoAcc
	byName := make(map[string]*cryptoAcc)

	for _, r := range records {
		counted := make(map[string]bool, len(r.RelatedCryptos))
		for _, name := range r.RelatedCryptos {
			if counted[name] {
				continue
			}
			counted[name] = true

			acc, ok := byName[name]
			if !ok {
				acc = &cryptoAcc{name: name}
				byName[name] = acc
				order = append(order, acc)
			}
			acc.count++
			acc.impactSum += r.MarketImpactScore
			if r.Sentiment == database.SentimentPositive {
				acc.positive++
			}
		}
	}

	stats := make([]CryptoStat, 0, len(order))
	for _, acc := range order {
		n := float64(acc.count)
		stats = append(stats, CryptoStat{
			Crypto:        acc.name,
			Count:         acc.count,
			PositiveShare: round(float64(acc.positive) / n * 100),
			AvgImpact:     round(float64(acc.impactSum) / n),
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	if len(stats) > maxTopCryptos {
		stats = stats[:maxTopCryptos]
	}
	return stats
}

func ranked(stats []CryptoStat, less func(a, b CryptoStat) bool) []CryptoStat {
	out := []CryptoStat{}
	for _, s := range stats {
		if s.Count >= minRankMentions {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	if len(out) > maxRanked {
		out = out[:maxRanked]
	}
	return out
}

func percent(n int, total float64) int {
	return round(float64(n) / total * 100)
}

func round(f float64) int {
	return int(math.Round(f))
}
