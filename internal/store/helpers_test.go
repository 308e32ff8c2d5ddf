package store

import (
	"strings"
	"testing"

	"github.com/findhomeng/yard/internal/models"
)

func TestBuildListingQuery(t *testing.T) {
	c := models.SearchCriteria{
		Location:     "Lagos",
		PropertyType: "house",
		Bedrooms:     3,
		MinPrice:     100000,
		MaxPrice:     250000,
	}

	query, args := buildListingQuery(c, dollarPlaceholders)
	for _, want := range []string{"lower(location) = lower($1)", "beds >= $2", "price >= $3", "price <= $4", "lower(property_type) = lower($5)", "LIMIT $6", "ORDER BY price ASC"} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d: %v", len(args), args)
	}
	if args[len(args)-1] != models.DefaultSearchLimit {
		t.Errorf("expected default limit %d, got %v", models.DefaultSearchLimit, args[len(args)-1])
	}

	// Unconstrained criteria only filter on location.
	query, args = buildListingQuery(models.SearchCriteria{Location: "Paris", Limit: 10}, questionPlaceholders)
	if strings.Contains(query, "beds") || strings.Contains(query, "price >=") || strings.Contains(query, "property_type") {
		t.Errorf("unexpected filters in query:\n%s", query)
	}
	if len(args) != 2 || args[1] != 10 {
		t.Errorf("expected location and limit args, got %v", args)
	}
}

func TestEncodeSession(t *testing.T) {
	if _, _, err := encodeSession(nil); err != models.ErrEmptyUserID {
		t.Errorf("expected ErrEmptyUserID for nil session, got %v", err)
	}

	sess := models.NewSession("u1", "LOCATION")
	answers, cached, err := encodeSession(sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answers != "{}" {
		t.Errorf("expected empty answers object, got %q", answers)
	}
	if cached != nil {
		t.Errorf("expected nil cached listings, got %v", cached)
	}

	sess.SetAnswer("location", "Lagos")
	sess.CachedListings = []models.Listing{{ListingID: "lg-1"}}
	answers, cached, err = encodeSession(sess)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answers, `"location":"Lagos"`) {
		t.Errorf("answers not encoded: %q", answers)
	}
	if cached == nil || !strings.Contains(cached.(string), `"lg-1"`) {
		t.Errorf("cached listings not encoded: %v", cached)
	}
}
