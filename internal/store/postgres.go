// Package store provides storage backends for Yard.
//
// This file implements the PostgreSQL-backed store for production
// deployments. It mirrors the SQLite store's behavior exactly.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/findhomeng/yard/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Purger = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, current_screen, answers::text, cached_listings::text, created_at, updated_at
		 FROM sessions WHERE user_id = $1 AND expires_at > $2`, userID, time.Now())
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	return sess, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, session *models.Session) error {
	answers, cached, err := encodeSession(session)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, current_screen, answers, cached_listings, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   current_screen = EXCLUDED.current_screen,
		   answers = EXCLUDED.answers,
		   cached_listings = EXCLUDED.cached_listings,
		   updated_at = EXCLUDED.updated_at,
		   expires_at = EXCLUDED.expires_at`,
		session.UserID, session.CurrentScreen, answers, cached,
		session.CreatedAt, now, now.Add(models.SessionTTL))
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "user_id", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM processed_messages WHERE message_id = $1 AND expires_at > $2`,
		messageID, time.Now()).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, messageID string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_messages (message_id, received_at, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (message_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		messageID, now, now.Add(DedupTTL))
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) SearchListings(ctx context.Context, criteria models.SearchCriteria) ([]models.Listing, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	query, args := buildListingQuery(criteria, dollarPlaceholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore SearchListings query failed", "error", err, "location", criteria.Location)
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// AddListing inserts or replaces a listing. Used by fixtures and seeding.
func (s *PostgresStore) AddListing(ctx context.Context, l models.Listing) error {
	features, err := encodeFeatures(l.Features)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listings (listing_id, address, location, price, beds, baths, sqft, property_type, features, image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)
		 ON CONFLICT (listing_id) DO UPDATE SET
		   address = EXCLUDED.address, location = EXCLUDED.location, price = EXCLUDED.price,
		   beds = EXCLUDED.beds, baths = EXCLUDED.baths, sqft = EXCLUDED.sqft,
		   property_type = EXCLUDED.property_type, features = EXCLUDED.features, image = EXCLUDED.image`,
		l.ListingID, l.Address, l.Location, l.Price, l.Beds, l.Baths, l.Sqft, l.PropertyType, features, l.Image)
	if err != nil {
		return fmt.Errorf("failed to insert listing %s: %w", l.ListingID, err)
	}
	return nil
}

func (s *PostgresStore) SaveSearch(ctx context.Context, userID string, criteria models.SearchCriteria) error {
	query, err := encodeCriteria(criteria)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (user_id, query, created_at) VALUES ($1, $2::jsonb, $3)`,
		userID, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save search for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) SaveAppointment(ctx context.Context, appointment models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (appointment_id, user_id, listing_id, address, date_display, date_iso, time_slot, name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		appointmentID(appointment), appointment.UserID, appointment.ListingID, appointment.Address,
		appointment.Date, appointment.DateISO, appointment.TimeSlot, appointment.Name,
		string(appointment.Status), appointment.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAppointment failed", "error", err, "user_id", appointment.UserID)
		return fmt.Errorf("failed to save appointment for %s: %w", appointment.UserID, err)
	}
	return nil
}

func (s *PostgresStore) GetAppointments(ctx context.Context, userID string) ([]models.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, listing_id, address, date_display, date_iso, time_slot, name, status, created_at
		 FROM appointments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var purged int64
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return purged, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		purged += n
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE expires_at <= $1`, now)
	if err != nil {
		return purged, fmt.Errorf("failed to purge expired dedup records: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		purged += n
	}
	return purged, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
