package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultSources(t *testing.T) {
	sources := DefaultSources()
	if len(sources) != 5 {
		t.Fatalf("Expected 5 default sources, got %d", len(sources))
	}

	names := []string{"CoinDesk", "Cointelegraph", "CoinGape", "Bitcoin Magazine", "CryptoSlate"}
	for i, name := range names {
		if sources[i].Name != name {
			t.Errorf("Expected source %d to be %s, got %s", i, name, sources[i].Name)
		}
		if !sources[i].Enabled {
			t.Errorf("Expected %s to be enabled", name)
		}
	}

	if err := validateSources(sources); err != nil {
		t.Errorf("Expected default sources to be valid, got: %v", err)
	}
}

func TestRegistryMissingFileKeepsDefaults(t *testing.T) {
	registry, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if registry.Count() != 5 {
		t.Errorf("Expected 5 sources, got %d", registry.Count())
	}

	source, ok := registry.Get("CoinGape")
	if !ok {
		t.Fatal("Expected CoinGape to be registered")
	}
	if source.Strategy.ContentField != "content:encoded" {
		t.Errorf("Expected content:encoded strategy, got %q", source.Strategy.ContentField)
	}
}

func TestRegistryLoadsOverrideFile(t *testing.T) {
	content := `
sources:
  - name: "Decrypt"
    url: "https://decrypt.co/feed"
    enabled: true
    strategy:
      rich_content: true
      content_field: "content:encoded"
      author_field: "dc:creator"
    filters:
      - field: "title"
        excludes: ["sponsored"]
  - name: "The Block"
    url: "https://www.theblock.co/rss.xml"
    enabled: false
`
	path := filepath.Join(t.TempDir(), "sources.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	registry, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if registry.Count() != 2 {
		t.Fatalf("Expected 2 sources, got %d", registry.Count())
	}

	enabled := registry.Enabled()
	if len(enabled) != 1 || enabled[0].Name != "Decrypt" {
		t.Errorf("Expected only Decrypt enabled, got %+v", enabled)
	}

	decrypt, _ := registry.Get("Decrypt")
	if !decrypt.Strategy.RichContent || decrypt.Strategy.AuthorField != "dc:creator" {
		t.Errorf("Unexpected strategy: %+v", decrypt.Strategy)
	}
	if len(decrypt.Filters) != 1 || decrypt.Filters[0].Excludes[0] != "sponsored" {
		t.Errorf("Unexpected filters: %+v", decrypt.Filters)
	}

	if _, ok := registry.Get("CoinDesk"); ok {
		t.Error("Expected override file to replace built-in sources")
	}
}

func TestRegistryRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "missing url",
			content: "sources:\n  - name: \"A\"\n    enabled: true\n",
			errText: "source URL is required",
		},
		{
			name:    "duplicate name",
			content: "sources:\n  - name: \"A\"\n    url: \"https://a.example/feed\"\n  - name: \"A\"\n    url: \"https://b.example/feed\"\n",
			errText: "duplicate source name",
		},
		{
			name:    "bad scheme",
			content: "sources:\n  - name: \"A\"\n    url: \"ftp://a.example/feed\"\n",
			errText: "invalid URL",
		},
		{
			name:    "empty list",
			content: "sources: []\n",
			errText: "at least one source",
		},
		{
			name:    "broken yaml",
			content: "sources: [\n",
			errText: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sources.yml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := LoadRegistry(path)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got: %v", tt.errText, err)
			}
			if registry.Count() != 5 {
				t.Errorf("Expected defaults to remain after a failed load, got %d sources", registry.Count())
			}
		})
	}
}

func TestRegistryAllReturnsCopy(t *testing.T) {
	registry, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	all := registry.All()
	all[0].Name = "Mutated"

	if _, ok := registry.Get("CoinDesk"); !ok {
		t.Error("Expected registry to be unaffected by changes to All() result")
	}
	if registry.All()[0].Name != "CoinDesk" {
		t.Error("Expected first source to stay CoinDesk")
	}
}
