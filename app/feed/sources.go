package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var richFeedStrategy = Strategy{
	RichContent:   true,
	ContentField:  "content:encoded",
	AuthorField:   "dc:creator",
	CategoryField: "category",
}

// DefaultSources returns the built-in outlets in display order.
func DefaultSources() []Source {
	return []Source{
		{
			Name:     "CoinDesk",
			URL:      "https://www.coindesk.com/arc/outboundfeeds/rss/",
			Enabled:  true,
			Strategy: Strategy{AuthorField: "dc:creator", CategoryField: "category"},
		},
		{
			Name:     "Cointelegraph",
			URL:      "https://cointelegraph.com/rss",
			Enabled:  true,
			Strategy: Strategy{AuthorField: "dc:creator", CategoryField: "category"},
		},
		{
			Name:     "CoinGape",
			URL:      "https://coingape.com/feed/",
			Enabled:  true,
			Strategy: richFeedStrategy,
		},
		{
			Name:     "Bitcoin Magazine",
			URL:      "https://bitcoinmagazine.com/.rss/full/",
			Enabled:  true,
			Strategy: richFeedStrategy,
		},
		{
			Name:     "CryptoSlate",
			URL:      "https://cryptoslate.com/feed/",
			Enabled:  true,
			Strategy: richFeedStrategy,
		},
	}
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// Registry holds the source list loaded at start. It is read-only afterwards.
type Registry struct {
	sources []Source
	index   map[string]int
	mu      sync.RWMutex
}

// NewStaticRegistry builds a registry from an in-memory list.
func NewStaticRegistry(sources []Source) (*Registry, error) {
	if err := validateSources(sources); err != nil {
		return nil, err
	}
	r := &Registry{}
	r.set(sources)
	return r, nil
}

// LoadRegistry reads the sources file at path. A missing file or an empty
// path leaves the built-in defaults in place.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewStaticRegistry(DefaultSources())
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Sources file not found, using built-in sources", "path", path)
		return NewStaticRegistry(DefaultSources())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	r, err := NewStaticRegistry(file.Sources)
	if err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	for _, s := range file.Sources {
		slog.Debug("Source loaded", "source", s.Name, "enabled", s.Enabled, "rich_content", s.Strategy.RichContent)
	}

	return r, nil
}

func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r *Registry) Enabled() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Source
	for _, s := range r.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

func (r *Registry) set(sources []Source) {
	index := make(map[string]int, len(sources))
	for i, s := range sources {
		index[s.Name] = i
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = sources
	r.index = index
}

func validateSources(sources []Source) error {
	if len(sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		requiredFields := map[string]string{
			"source name": s.Name,
			"source URL":  s.URL,
		}
		for fieldName, fieldValue := range requiredFields {
			if fieldValue == "" {
				return fmt.Errorf("%s is required at index %d", fieldName, i)
			}
		}

		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid URL for source %s: %s", s.Name, s.URL)
		}

		if seen[s.Name] {
			return fmt.Errorf("duplicate source name: %s", s.Name)
		}

		for _, filter := range s.Filters {
			if !isFilterField(filter.Field) {
				return fmt.Errorf("invalid filter field for source %s: %q", s.Name, filter.Field)
			}
		}
		seen[s.Name] = true
	}

	return nil
}
