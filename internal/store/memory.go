package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/findhomeng/yard/internal/models"
)

// InMemoryStore is a non-persistent Store used when no DSN is configured and
// throughout the test suite. All data is lost on process exit.
type InMemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*models.Session
	processed    map[string]time.Time // message id -> expiry
	listings     []models.Listing
	searches     []searchRecord
	appointments []models.Appointment
	now          func() time.Time
}

type searchRecord struct {
	UserID   string
	Criteria models.SearchCriteria
	At       time.Time
}

var (
	_ Store  = (*InMemoryStore)(nil)
	_ Purger = (*InMemoryStore)(nil)
)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[string]*models.Session),
		processed: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetClock overrides the store's clock. Test hook for expiry behavior.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok || sess.Expired(s.now()) {
		return nil, nil
	}
	copied := *sess
	copied.Answers = copyAnswers(sess.Answers)
	copied.CachedListings = append([]models.Listing(nil), sess.CachedListings...)
	return &copied, nil
}

func (s *InMemoryStore) SaveSession(ctx context.Context, session *models.Session) error {
	if session == nil || session.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	copied.Answers = copyAnswers(session.Answers)
	copied.CachedListings = append([]models.Listing(nil), session.CachedListings...)
	copied.UpdatedAt = s.now()
	s.sessions[session.UserID] = &copied
	return nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *InMemoryStore) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.processed[messageID]
	return ok && s.now().Before(expiry), nil
}

func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[messageID] = s.now().Add(DedupTTL)
	return nil
}

// SeedListings loads listings into the store (fixtures and tests).
func (s *InMemoryStore) SeedListings(listings []models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = append(s.listings, listings...)
}

func (s *InMemoryStore) SearchListings(ctx context.Context, criteria models.SearchCriteria) ([]models.Listing, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Listing
	for _, l := range s.listings {
		if matchesCriteria(l, criteria) {
			out = append(out, l)
		}
	}
	limit := criteria.Limit
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SaveSearch(ctx context.Context, userID string, criteria models.SearchCriteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, searchRecord{UserID: userID, Criteria: criteria, At: s.now()})
	return nil
}

// SearchCount returns how many searches have been recorded. Test hook.
func (s *InMemoryStore) SearchCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.searches)
}

func (s *InMemoryStore) SaveAppointment(ctx context.Context, appointment models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments = append(s.appointments, appointment)
	return nil
}

func (s *InMemoryStore) GetAppointments(ctx context.Context, userID string) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var purged int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	for id, expiry := range s.processed {
		if !now.Before(expiry) {
			delete(s.processed, id)
			purged++
		}
	}
	return purged, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// matchesCriteria applies the original listing filters: counts are minimums,
// prices are bounds, property type matches the backend's stored casing.
func matchesCriteria(l models.Listing, c models.SearchCriteria) bool {
	if !strings.EqualFold(l.Location, c.Location) {
		return false
	}
	if c.Bedrooms > 0 && l.Beds < c.Bedrooms {
		return false
	}
	if c.Bathrooms > 0 && l.Baths < c.Bathrooms {
		return false
	}
	if c.MinPrice > 0 && l.Price < c.MinPrice {
		return false
	}
	if c.MaxPrice > 0 && l.Price > c.MaxPrice {
		return false
	}
	if c.PropertyType != "" && !strings.EqualFold(l.PropertyType, c.PropertyType) {
		return false
	}
	return true
}

func copyAnswers(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
