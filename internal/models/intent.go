package models

// SearchIntent is the structured search intent extracted from a freeform
// user message. Field semantics mirror SearchCriteria; zero means absent.
type SearchIntent struct {
	IsSearch     bool     `json:"is_search"`
	Location     string   `json:"location,omitempty"`
	Bedrooms     int      `json:"bedrooms,omitempty"`
	Bathrooms    int      `json:"bathrooms,omitempty"`
	MinPrice     int64    `json:"min_price,omitempty"`
	MaxPrice     int64    `json:"max_price,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Features     []string `json:"features,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}
