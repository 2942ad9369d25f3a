package feed

import (
	"sort"
	"strings"
)

// MaxTags caps the symbols kept per title.
const MaxTags = 3

// cryptoKeywords is matched in order; ties on position keep this order.
var cryptoKeywords = []string{
	"BTC", "Bitcoin", "ETH", "Ethereum", "ADA", "Cardano",
	"SOL", "Solana", "DOGE", "Dogecoin", "XRP", "Ripple",
	"DOT", "Polkadot", "MATIC", "Polygon", "AVAX", "Avalanche",
	"LINK", "Chainlink", "UNI", "Uniswap", "LTC", "Litecoin",
	"AI16Z", "HYPE", "MOVE", "BIO", "VINE", "ONDO", "XLM", "Stellar",
	"AIXBT", "PNUT", "SUSHI", "BAT", "WIF", "EIGEN", "RENDER", "MORPHO",
	"TRX", "TRON", "OP", "Optimism", "LDO", "Lido", "KSM", "Kusama",
	"SUI", "ARB", "Arbitrum", "NEAR", "WLD", "Worldcoin", "PYTH", "TON",
}

var tickerByName = map[string]string{
	"Bitcoin":   "BTC",
	"Ethereum":  "ETH",
	"Cardano":   "ADA",
	"Solana":    "SOL",
	"Dogecoin":  "DOGE",
	"Ripple":    "XRP",
	"Polkadot":  "DOT",
	"Polygon":   "MATIC",
	"Avalanche": "AVAX",
	"Chainlink": "LINK",
	"Uniswap":   "UNI",
	"Litecoin":  "LTC",
	"Stellar":   "XLM",
	"TRON":      "TRX",
	"Optimism":  "OP",
	"Lido":      "LDO",
	"Kusama":    "KSM",
	"Arbitrum":  "ARB",
	"Worldcoin": "WLD",
}

type tagMatch struct {
	symbol string
	pos    int
}

// ExtractTags returns up to MaxTags ticker symbols mentioned in title,
// ordered by where they first appear. A title without matches yields nil.
func ExtractTags(title string) []string {
	upper := strings.ToUpper(title)

	var matches []tagMatch
	for _, keyword := range cryptoKeywords {
		pos := strings.Index(upper, strings.ToUpper(keyword))
		if pos < 0 {
			continue
		}
		symbol, ok := tickerByName[keyword]
		if !ok {
			if len(keyword) > 6 {
				continue
			}
			symbol = keyword
		}
		matches = append(matches, tagMatch{symbol: symbol, pos: pos})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].pos < matches[j].pos
	})

	var tags []string
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m.symbol] {
			continue
		}
		seen[m.symbol] = true
		tags = append(tags, m.symbol)
		if len(tags) == MaxTags {
			break
		}
	}

	return tags
}

// JoinTags renders tags for the name_category column; empty means no tag.
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}
