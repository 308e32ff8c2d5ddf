package genai

import (
	"strings"
	"testing"

	"github.com/findhomeng/yard/internal/models"
)

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when no API key is available")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("unexpected error with explicit key: %v", err)
	}
}

func TestSummarizeListings(t *testing.T) {
	listings := []models.Listing{
		{ListingID: "lg-1", Address: "12 Adeola Odeku", Location: "Lagos", Price: 90000, Beds: 2, Baths: 1, Sqft: 800},
		{ListingID: "lg-2", Address: "4 Banana Island Rd", Location: "Lagos", Price: 1250000, Beds: 4, Baths: 3, Sqft: 3200, PropertyType: "villa", Image: "https://cdn.example.com/lg-2.jpg"},
	}
	got := SummarizeListings(listings)

	if !strings.Contains(got, "1. 12 Adeola Odeku, Lagos") || !strings.Contains(got, "2. 4 Banana Island Rd, Lagos") {
		t.Errorf("numbering must follow input order:\n%s", got)
	}
	if !strings.Contains(got, "$90,000") || !strings.Contains(got, "$1,250,000") {
		t.Errorf("prices not grouped:\n%s", got)
	}
	if !strings.Contains(got, "🏠 villa") {
		t.Errorf("property type missing:\n%s", got)
	}
	if strings.Count(got, "🏠") != 1 {
		t.Errorf("type line should only appear when set:\n%s", got)
	}
	if !strings.Contains(got, "🖼️ https://cdn.example.com/lg-2.jpg") {
		t.Errorf("image link missing:\n%s", got)
	}

	if SummarizeListings(nil) != "" {
		t.Error("empty input should summarize to empty string")
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{90000, "90,000"},
		{1250000, "1,250,000"},
	}
	for _, tt := range tests {
		if got := formatPrice(tt.in); got != tt.want {
			t.Errorf("formatPrice(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	want := `{"is_search":true}`
	tests := []string{
		`{"is_search":true}`,
		"```json\n{\"is_search\":true}\n```",
		"```\n{\"is_search\":true}\n```",
		"  ```json\n{\"is_search\":true}\n```  ",
	}
	for _, in := range tests {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
