package feed

import (
	"strings"
	"testing"
)

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	filtered, reason := filterer.Run(RawItem{Title: "Bitcoin hits new high"}, nil)
	if filtered {
		t.Errorf("Item should not be filtered when no filters are configured")
	}
	if reason != "" {
		t.Errorf("Expected empty filter reason, got: %s", reason)
	}
}

func TestFilterer_TitleInclude(t *testing.T) {
	filterer := NewFilterer()
	filters := []Filter{{Field: "title", Includes: []string{"bitcoin", "ETH"}}}

	tests := []struct {
		title    string
		filtered bool
	}{
		{"Bitcoin hits new high", false},
		{"Why eth gas fees dropped", false},
		{"Weekly sports roundup", true},
	}

	for _, tt := range tests {
		filtered, reason := filterer.Run(RawItem{Title: tt.title}, filters)
		if filtered != tt.filtered {
			t.Errorf("%q: expected filtered=%v, got %v", tt.title, tt.filtered, filtered)
		}
		if filtered && reason == "" {
			t.Errorf("%q: expected a filter reason", tt.title)
		}
	}
}

func TestFilterer_ExcludeWinsOverInclude(t *testing.T) {
	filterer := NewFilterer()
	filters := []Filter{{
		Field:    "title",
		Includes: []string{"bitcoin"},
		Excludes: []string{"sponsored"},
	}}

	filtered, reason := filterer.Run(RawItem{Title: "Sponsored: Bitcoin casino bonus"}, filters)
	if !filtered {
		t.Fatal("Expected sponsored item to be filtered")
	}
	if !strings.Contains(reason, "sponsored") {
		t.Errorf("Expected reason to name the excluded term, got: %s", reason)
	}
}

func TestFilterer_MultipleFields(t *testing.T) {
	filterer := NewFilterer()
	filters := []Filter{
		{Field: "category", Excludes: []string{"press release"}},
		{Field: "author", Excludes: []string{"partner"}},
	}

	tests := []struct {
		name     string
		item     RawItem
		filtered bool
	}{
		{"clean", RawItem{Title: "a", Category: "Markets", Author: "Jane Doe"}, false},
		{"press release", RawItem{Title: "b", Category: "Press Release", Author: "Jane Doe"}, true},
		{"partner author", RawItem{Title: "c", Category: "Markets", Author: "Partner Content"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, _ := filterer.Run(tt.item, filters)
			if filtered != tt.filtered {
				t.Errorf("Expected filtered=%v, got %v", tt.filtered, filtered)
			}
		})
	}
}

func TestFilterer_EmptyValueWithInclude(t *testing.T) {
	filterer := NewFilterer()

	filtered, _ := filterer.Run(RawItem{Title: "x"}, []Filter{{Field: "content", Includes: []string{"crypto"}}})
	if !filtered {
		t.Error("Expected item with empty content to be filtered by an include rule")
	}
}

func TestFilterer_GetFieldValue(t *testing.T) {
	filterer := NewFilterer()
	item := RawItem{
		Title:       "Title",
		Description: "Description",
		Content:     "Content",
		Author:      "Author",
		Link:        "https://example.com",
		Category:    "Category",
	}

	tests := map[string]string{
		"title":       "Title",
		"description": "Description",
		"content":     "Content",
		"author":      "Author",
		"link":        "https://example.com",
		"category":    "Category",
		"unknown":     "",
	}

	for field, expected := range tests {
		if got := filterer.getFieldValue(item, field); got != expected {
			t.Errorf("Field %s: expected %q, got %q", field, expected, got)
		}
	}
}

func TestValidateSourcesRejectsUnknownFilterField(t *testing.T) {
	_, err := NewStaticRegistry([]Source{{
		Name:    "CoinDesk",
		URL:     "https://coindesk.test/rss",
		Enabled: true,
		Filters: []Filter{{Field: "authors", Excludes: []string{"x"}}},
	}})
	if err == nil {
		t.Error("Expected error for unknown filter field")
	}
}
