// Package prompt holds the fixed analysis templates sent to the model.
// Every template asks for the same JSON shape so one parser serves all.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownTemplate = errors.New("unknown summary template")

type Template int

const (
	Extractive Template = iota + 1
	Abstractive
	SentimentBased
	ImpactOriented
	ActionableInsights
)

// All lists the templates in presentation order.
var All = []Template{Extractive, Abstractive, SentimentBased, ImpactOriented, ActionableInsights}

// DefaultLanguage is the answer language when none is configured.
const DefaultLanguage = "Thai"

// Key is the public name stored with every annotation record.
func (t Template) Key() string {
	switch t {
	case Extractive:
		return "Extractive Summarization"
	case Abstractive:
		return "Abstractive Summarization"
	case SentimentBased:
		return "Sentiment-Based Summarization"
	case ImpactOriented:
		return "Impact-Oriented Summarization"
	case ActionableInsights:
		return "Actionable Insights Summarization"
	default:
		return ""
	}
}

// Slug is a URL-safe alias of Key.
func (t Template) Slug() string {
	switch t {
	case Extractive:
		return "extractive"
	case Abstractive:
		return "abstractive"
	case SentimentBased:
		return "sentiment"
	case ImpactOriented:
		return "impact"
	case ActionableInsights:
		return "actionable"
	default:
		return ""
	}
}

func (t Template) String() string {
	return t.Key()
}

func (t Template) Valid() bool {
	return t >= Extractive && t <= ActionableInsights
}

// ParseTemplate accepts either the public key or the slug, ignoring case.
func ParseTemplate(s string) (Template, error) {
	s = strings.TrimSpace(s)
	for _, t := range All {
		if strings.EqualFold(s, t.Key()) || strings.EqualFold(s, t.Slug()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
}

// ArticleContent is the part of an article substituted into a template.
type ArticleContent struct {
	Title   string
	Source  string
	Content string
}

func (a ArticleContent) render() string {
	return fmt.Sprintf("Title: %s\nSource: %s\nContent: %s", a.Title, a.Source, a.Content)
}

type definition struct {
	role         string
	steps        [4]string
	trendingBase string
	keyPoints    string
	cryptos      string
	impact       string
	summaryHint  string
	pointNoun    string
	sentiment    string
}

func (t Template) definition() definition {
	switch t {
	case Extractive:
		return definition{
			role: "You are an expert news analyst. Perform EXTRACTIVE summarization by selecting and combining the most important sentences directly from the article without modification.",
			steps: [4]string{
				"Extract 3-5 key sentences directly from the original text",
				"Maintain original wording and structure",
				"Focus on facts, figures, and concrete information",
				"Present in logical order",
			},
			sentiment:    "Positive, Neutral, or Negative",
			trendingBase: "market impact",
			keyPoints:    "3-5 important facts",
			cryptos:      "mentioned cryptocurrencies",
			impact:       "0-100",
			summaryHint:  "extractive summary",
			pointNoun:    "point",
		}
	case Abstractive:
		return definition{
			role: "You are an expert financial news writer. Create ABSTRACTIVE summarization by rewriting and restructuring information in your own words while preserving meaning.",
			steps: [4]string{
				"Rewrite content using new sentence structures",
				"Synthesize and interpret information",
				"Create coherent narrative flow",
				"Add context and implications",
			},
			sentiment:    "Positive, Neutral, or Negative",
			trendingBase: "market impact",
			keyPoints:    "3-5 important interpretations",
			cryptos:      "mentioned cryptocurrencies",
			impact:       "0-100",
			summaryHint:  "abstractive summary",
			pointNoun:    "interpretation",
		}
	case SentimentBased:
		return definition{
			role: "You are a market sentiment analyst. Focus on SENTIMENT ANALYSIS and emotional indicators in the news.",
			steps: [4]string{
				"Analyze emotional tone and market sentiment",
				"Identify positive/negative indicators",
				"Assess market psychology impact",
				"Highlight sentiment-driving factors",
			},
			sentiment:    "Positive, Neutral, or Negative (primary focus)",
			trendingBase: "sentiment strength",
			keyPoints:    "3-5 sentiment indicators",
			cryptos:      "mentioned cryptocurrencies",
			impact:       "0-100 based on sentiment impact",
			summaryHint:  "sentiment-focused summary",
			pointNoun:    "sentiment",
		}
	case ImpactOriented:
		return definition{
			role: "You are a market impact specialist. Focus on MARKET IMPACT and potential consequences of the news.",
			steps: [4]string{
				"Analyze potential market effects",
				"Assess short and long-term implications",
				"Identify affected sectors/projects",
				"Evaluate regulatory/adoption impact",
			},
			sentiment:    "Positive, Neutral, or Negative",
			trendingBase: "potential impact",
			keyPoints:    "3-5 impact factors",
			cryptos:      "affected cryptocurrencies",
			impact:       "0-100 (primary focus)",
			summaryHint:  "impact-focused summary",
			pointNoun:    "impact",
		}
	case ActionableInsights:
		return definition{
			role: "You are an investment advisor. Provide ACTIONABLE INSIGHTS and recommendations based on the news.",
			steps: [4]string{
				"Extract actionable investment insights",
				"Provide strategic recommendations",
				"Identify opportunities and risks",
				"Suggest next steps for investors",
			},
			sentiment:    "Positive, Neutral, or Negative",
			trendingBase: "actionability",
			keyPoints:    "3-5 actionable insights",
			cryptos:      "relevant for action",
			impact:       "0-100",
			summaryHint:  "actionable insights summary",
			pointNoun:    "insight",
		}
	default:
		panic(fmt.Sprintf("prompt: template %d has no definition", int(t)))
	}
}

// Render fills the template with one article. It is a pure function of its
// inputs; an empty language falls back to DefaultLanguage.
func Render(t Template, article ArticleContent, language string) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownTemplate, int(t))
	}
	if language == "" {
		language = DefaultLanguage
	}

	s := t.definition()

	var b strings.Builder
	b.WriteString(s.role)
	b.WriteString("\n\nInstructions:\n")
	for i, step := range s.steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "%d. Respond in %s language\n", len(s.steps)+1, language)

	b.WriteString("\nArticle to analyze:\n")
	b.WriteString(article.render())

	b.WriteString("\n\nAlso provide:\n")
	fmt.Fprintf(&b, "- Sentiment: %s\n", s.sentiment)
	fmt.Fprintf(&b, "- Trending Score: 0-100 based on %s\n", s.trendingBase)
	fmt.Fprintf(&b, "- Key Points: %s\n", s.keyPoints)
	fmt.Fprintf(&b, "- Related Cryptos: %s\n", s.cryptos)
	fmt.Fprintf(&b, "- Market Impact Score: %s\n", s.impact)

	b.WriteString("\nJSON format:\n{\n")
	fmt.Fprintf(&b, "  \"summary\": \"%s in %s\",\n", s.summaryHint, language)
	b.WriteString("  \"sentiment\": \"sentiment\",\n")
	b.WriteString("  \"trending_score\": number,\n")
	fmt.Fprintf(&b, "  \"key_points\": [\"%[1]s1\", \"%[1]s2\", \"%[1]s3\"],\n", s.pointNoun)
	b.WriteString("  \"related_cryptos\": [\"crypto1\", \"crypto2\"],\n")
	b.WriteString("  \"market_impact_score\": number\n}")

	return b.String(), nil
}

// RenderDigest builds the combined prompt used for one aggregate summary of
// several articles.
func RenderDigest(articles []ArticleContent, language string) string {
	if language == "" {
		language = DefaultLanguage
	}

	return fmt.Sprintf(`You are analyzing %d crypto news articles.

Please provide:
1. A comprehensive summary combining all articles (in %s language)
2. Overall sentiment: Positive, Neutral, or Negative
3. Trending score (0-100) based on market impact and relevance

Articles to analyze:
%s

Focus on:
- Market trends and price movements
- Regulatory developments
- Technology updates
- Major partnerships or adoptions
- Risk factors

Output JSON format:
{
  "summary": "...",
  "sentiment": "Positive | Neutral | Negative",
  "trending_score": 0-100
}`, len(articles), language, CombineArticles(articles))
}

// CombineArticles joins rendered articles with a visible separator.
func CombineArticles(articles []ArticleContent) string {
	parts := make([]string, len(articles))
	for i, a := range articles {
		parts[i] = a.render()
	}
	return strings.Join(parts, "\n\n---\n\n")
}
