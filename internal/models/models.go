// Package models defines the core data structures for Yard.
//
// It includes types for listings, search criteria, appointments, and inbound
// WhatsApp messages, which are shared across modules.
package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Validation constants for search criteria.
const (
	// DefaultSearchLimit is the number of listings returned when the user did not ask for more.
	DefaultSearchLimit = 5
	// MaxSearchLimit caps how many listings a single search may return.
	MaxSearchLimit = 10
)

// Error variables for better error handling and testability.
var (
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrEmptyMessageID     = errors.New("message id cannot be empty")
	ErrEmptyLocation      = errors.New("location is required for a search")
	ErrEmptyListingID     = errors.New("listing id cannot be empty")
	ErrEmptyAppointment   = errors.New("appointment is missing required fields")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownScreen      = errors.New("unknown screen id")
	ErrNoCachedListings   = errors.New("no cached listings for selection")
	ErrStoreNotConfigured = errors.New("store not configured")
)

// Listing represents a single property listing.
type Listing struct {
	ListingID    string   `json:"listing_id"`
	Address      string   `json:"address"`
	Location     string   `json:"location"`
	Price        int64    `json:"price"`
	Beds         int      `json:"beds"`
	Baths        int      `json:"baths"`
	Sqft         int      `json:"sqft"`
	PropertyType string   `json:"property_type,omitempty"`
	Features     []string `json:"features,omitempty"`
	Image        string   `json:"image,omitempty"`
}

// SearchCriteria is the normalized search request handed to the listing store.
// Zero values mean "not constrained".
type SearchCriteria struct {
	Location     string `json:"location"`
	PropertyType string `json:"property_type,omitempty"`
	Bedrooms     int    `json:"bedrooms,omitempty"`
	Bathrooms    int    `json:"bathrooms,omitempty"`
	MinPrice     int64  `json:"min_price,omitempty"`
	MaxPrice     int64  `json:"max_price,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Validate checks that the criteria can be executed against the listing store.
func (c *SearchCriteria) Validate() error {
	if strings.TrimSpace(c.Location) == "" {
		return ErrEmptyLocation
	}
	return nil
}

// AppointmentStatus is the lifecycle status of an inspection appointment.
type AppointmentStatus string

const (
	// AppointmentStatusPending marks a freshly created appointment.
	AppointmentStatusPending AppointmentStatus = "pending"
	// AppointmentStatusConfirmed marks an appointment acknowledged by an agent.
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	// AppointmentStatusCancelled marks a cancelled appointment.
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is an inspection booking assembled from wizard answers.
type Appointment struct {
	UserID    string            `json:"user_id"`
	ListingID string            `json:"listing_id"`
	Address   string            `json:"address"`
	Date      string            `json:"date"`     // human display form, e.g. "Sat, 30 Aug"
	DateISO   string            `json:"date_iso"` // canonical form, e.g. "2026-08-30"
	TimeSlot  string            `json:"time_slot"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Status    AppointmentStatus `json:"status"`
}

// Validate performs validation on an Appointment before persistence.
func (a *Appointment) Validate() error {
	if a.UserID == "" {
		return ErrEmptyUserID
	}
	if a.ListingID == "" {
		return ErrEmptyListingID
	}
	if a.DateISO == "" || a.TimeSlot == "" || a.Name == "" {
		return ErrEmptyAppointment
	}
	return nil
}

// IncomingMessage is a single inbound user text extracted from the webhook payload.
type IncomingMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Text string `json:"text"`
	Time int64  `json:"time,omitempty"`
}

// Validate checks the fields required to process a turn.
func (m *IncomingMessage) Validate() error {
	if m.ID == "" {
		return ErrEmptyMessageID
	}
	if m.From == "" {
		return ErrEmptyUserID
	}
	return nil
}

// CoerceCount parses wizard answers like "3" or "4+" into their numeric floor.
// Returns 0 for unparseable or "Any" style answers.
func CoerceCount(answer string) int {
	s := strings.TrimSuffix(strings.TrimSpace(answer), "+")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParsePriceRange parses a canonical "min-max" price range value as stored by
// the PRICE_RANGE screen. Either bound may be 0, meaning unconstrained.
func ParsePriceRange(value string) (min, max int64) {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	min, _ = strconv.ParseInt(parts[0], 10, 64)
	max, _ = strconv.ParseInt(parts[1], 10, 64)
	return min, max
}
