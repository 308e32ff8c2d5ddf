package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/findhomeng/yard/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// placeholderFunc renders the nth (1-based) SQL placeholder for a backend.
type placeholderFunc func(n int) string

func questionPlaceholders(int) string { return "?" }
func dollarPlaceholders(n int) string { return fmt.Sprintf("$%d", n) }

// buildListingQuery assembles the listing search statement for the given
// criteria. Counts are minimums, prices are bounds, and type/location match
// case-insensitively, mirroring the in-memory filters.
func buildListingQuery(c models.SearchCriteria, ph placeholderFunc) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, ph(len(args))))
	}
	add("lower(location) = lower(%s)", c.Location)
	if c.Bedrooms > 0 {
		add("beds >= %s", c.Bedrooms)
	}
	if c.Bathrooms > 0 {
		add("baths >= %s", c.Bathrooms)
	}
	if c.MinPrice > 0 {
		add("price >= %s", c.MinPrice)
	}
	if c.MaxPrice > 0 {
		add("price <= %s", c.MaxPrice)
	}
	if c.PropertyType != "" {
		add("lower(property_type) = lower(%s)", c.PropertyType)
	}
	limit := c.Limit
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	args = append(args, limit)
	query := fmt.Sprintf(
		`SELECT listing_id, address, location, price, beds, baths, sqft, property_type, features, image
		 FROM listings WHERE %s ORDER BY price ASC LIMIT %s`,
		strings.Join(where, " AND "), ph(len(args)))
	return query, args
}

func scanListings(rows *sql.Rows) ([]models.Listing, error) {
	var out []models.Listing
	for rows.Next() {
		var (
			l            models.Listing
			propertyType sql.NullString
			features     sql.NullString
			image        sql.NullString
		)
		if err := rows.Scan(&l.ListingID, &l.Address, &l.Location, &l.Price, &l.Beds, &l.Baths, &l.Sqft, &propertyType, &features, &image); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		l.PropertyType = propertyType.String
		l.Image = image.String
		if features.Valid && features.String != "" {
			if err := json.Unmarshal([]byte(features.String), &l.Features); err != nil {
				return nil, fmt.Errorf("failed to decode listing features: %w", err)
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanAppointments(rows *sql.Rows) ([]models.Appointment, error) {
	var out []models.Appointment
	for rows.Next() {
		var (
			a      models.Appointment
			status string
		)
		if err := rows.Scan(&a.UserID, &a.ListingID, &a.Address, &a.Date, &a.DateISO, &a.TimeSlot, &a.Name, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		a.Status = models.AppointmentStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess    models.Session
		answers string
		cached  sql.NullString
	)
	if err := row.Scan(&sess.UserID, &sess.CurrentScreen, &answers, &cached, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if answers != "" {
		if err := json.Unmarshal([]byte(answers), &sess.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode session answers: %w", err)
		}
	}
	if sess.Answers == nil {
		sess.Answers = make(map[string]string)
	}
	if cached.Valid && cached.String != "" {
		if err := json.Unmarshal([]byte(cached.String), &sess.CachedListings); err != nil {
			return nil, fmt.Errorf("failed to decode cached listings: %w", err)
		}
	}
	return &sess, nil
}

// encodeSession serializes the mutable session fields for SQL storage.
// Cached listings serialize to NULL when absent so the column stays sparse.
func encodeSession(session *models.Session) (answers string, cached any, err error) {
	if session == nil || session.UserID == "" {
		return "", nil, models.ErrEmptyUserID
	}
	a := session.Answers
	if a == nil {
		a = map[string]string{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session answers: %w", err)
	}
	if len(session.CachedListings) == 0 {
		return string(raw), nil, nil
	}
	rawCached, err := json.Marshal(session.CachedListings)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode cached listings: %w", err)
	}
	return string(raw), string(rawCached), nil
}

func encodeCriteria(c models.SearchCriteria) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode search criteria: %w", err)
	}
	return string(raw), nil
}

func encodeFeatures(features []string) (any, error) {
	if len(features) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	return string(raw), nil
}

// appointmentID derives a stable row id from the user and creation time,
// matching the upstream "<user>-<millis>" convention.
func appointmentID(a models.Appointment) string {
	return fmt.Sprintf("%s-%d", a.UserID, a.CreatedAt.UnixMilli())
}
