// Package store provides storage backends for Yard.
//
// It defines narrow per-concern repository contracts (sessions, inbound
// dedup, listings, search history, appointments) plus SQLite, PostgreSQL,
// Redis, and in-memory implementations. The SQL backends share one schema;
// the Redis backend covers only the TTL-shaped concerns (sessions, dedup).
package store

import (
	"context"
	"strings"
	"time"

	"github.com/findhomeng/yard/internal/models"
)

// DedupTTL bounds the idempotency record retention window. It must be no
// shorter than the upstream channel's maximum redelivery window.
const DedupTTL = 24 * time.Hour

// SessionRepo persists per-user conversational state with a bounded expiry.
type SessionRepo interface {
	// GetSession loads the user's session. Returns (nil, nil) when absent or expired.
	GetSession(ctx context.Context, userID string) (*models.Session, error)

	// SaveSession persists the session, refreshing its expiry.
	SaveSession(ctx context.Context, session *models.Session) error

	// DeleteSession removes the user's session. Deleting an absent session is not an error.
	DeleteSession(ctx context.Context, userID string) error
}

// DedupRepo is the at-most-once processing gate keyed by inbound message id.
//
// There is deliberately no lock around the check/mark pair: two genuinely
// concurrent first deliveries of the same id may race it. Redelivery (the
// common retry case) is fully covered.
type DedupRepo interface {
	// IsDuplicate checks if a message id has already been processed.
	IsDuplicate(ctx context.Context, messageID string) (bool, error)

	// MarkProcessed unconditionally records the id with the DedupTTL expiry.
	MarkProcessed(ctx context.Context, messageID string) error
}

// ListingRepo looks up property listings.
type ListingRepo interface {
	// SearchListings returns listings matching the criteria, best first.
	SearchListings(ctx context.Context, criteria models.SearchCriteria) ([]models.Listing, error)
}

// SearchRepo records executed searches for history.
type SearchRepo interface {
	SaveSearch(ctx context.Context, userID string, criteria models.SearchCriteria) error
}

// AppointmentRepo persists inspection appointments.
type AppointmentRepo interface {
	SaveAppointment(ctx context.Context, appointment models.Appointment) error

	// GetAppointments returns the user's appointments, newest first.
	GetAppointments(ctx context.Context, userID string) ([]models.Appointment, error)
}

// Purger removes expired rows from backends without native TTLs.
type Purger interface {
	// PurgeExpired deletes expired sessions and dedup records, returning the
	// number of rows removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Store composes every repository contract.
type Store interface {
	SessionRepo
	DedupRepo
	ListingRepo
	SearchRepo
	AppointmentRepo
	Close() error
}

// Opts holds configuration options for constructing stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths and
// anything not recognizably Postgres count as SQLite.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
