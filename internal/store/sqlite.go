// Package store provides storage backends for Yard.
//
// This file implements the SQLite-backed store, the default when the DSN is a
// file path.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/findhomeng/yard/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Purger = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path; the containing directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, current_screen, answers, cached_listings, created_at, updated_at
		 FROM sessions WHERE user_id = ? AND expires_at > ?`, userID, time.Now())
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	return sess, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, session *models.Session) error {
	answers, cached, err := encodeSession(session)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, current_screen, answers, cached_listings, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   current_screen = excluded.current_screen,
		   answers = excluded.answers,
		   cached_listings = excluded.cached_listings,
		   updated_at = excluded.updated_at,
		   expires_at = excluded.expires_at`,
		session.UserID, session.CurrentScreen, answers, cached,
		session.CreatedAt, now, now.Add(models.SessionTTL))
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "user_id", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM processed_messages WHERE message_id = ? AND expires_at > ?`,
		messageID, time.Now()).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, messageID string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO processed_messages (message_id, received_at, expires_at) VALUES (?, ?, ?)`,
		messageID, now, now.Add(DedupTTL))
	if err != nil {
		return fmt.Errorf("mark processed failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SearchListings(ctx context.Context, criteria models.SearchCriteria) ([]models.Listing, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	query, args := buildListingQuery(criteria, questionPlaceholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore SearchListings query failed", "error", err, "location", criteria.Location)
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// AddListing inserts or replaces a listing. Used by fixtures and seeding.
func (s *SQLiteStore) AddListing(ctx context.Context, l models.Listing) error {
	features, err := encodeFeatures(l.Features)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO listings (listing_id, address, location, price, beds, baths, sqft, property_type, features, image)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ListingID, l.Address, l.Location, l.Price, l.Beds, l.Baths, l.Sqft, l.PropertyType, features, l.Image)
	if err != nil {
		return fmt.Errorf("failed to insert listing %s: %w", l.ListingID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveSearch(ctx context.Context, userID string, criteria models.SearchCriteria) error {
	query, err := encodeCriteria(criteria)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (user_id, query, created_at) VALUES (?, ?, ?)`,
		userID, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save search for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveAppointment(ctx context.Context, appointment models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (appointment_id, user_id, listing_id, address, date_display, date_iso, time_slot, name, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appointmentID(appointment), appointment.UserID, appointment.ListingID, appointment.Address,
		appointment.Date, appointment.DateISO, appointment.TimeSlot, appointment.Name,
		string(appointment.Status), appointment.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAppointment failed", "error", err, "user_id", appointment.UserID)
		return fmt.Errorf("failed to save appointment for %s: %w", appointment.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAppointments(ctx context.Context, userID string) ([]models.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, listing_id, address, date_display, date_iso, time_slot, name, status, created_at
		 FROM appointments WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var purged int64
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return purged, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		purged += n
	}
	res, err = s.db.ExecContext(ctx, `DELETE FROM processed_messages WHERE expires_at <= ?`, now)
	if err != nil {
		return purged, fmt.Errorf("failed to purge expired dedup records: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		purged += n
	}
	return purged, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
