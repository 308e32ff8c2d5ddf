// Package models defines session state structures for Yard conversations.
package models

import "time"

// SessionTTL bounds how long an abandoned session stays resumable.
// Expired sessions read back as absent, matching the dedup retention window.
const SessionTTL = 24 * time.Hour

// Session represents the persisted per-user conversational state.
type Session struct {
	UserID         string            `json:"user_id"`
	CurrentScreen  string            `json:"current_screen"`
	Answers        map[string]string `json:"answers,omitempty"`
	CachedListings []Listing         `json:"cached_listings,omitempty"` // kept only while a numeric selection is pending
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewSession creates a fresh session positioned at the given screen.
func NewSession(userID, screen string) *Session {
	now := time.Now()
	return &Session{
		UserID:        userID,
		CurrentScreen: screen,
		Answers:       make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Reset moves the session back to the given screen and discards all
// accumulated answers and cached listings.
func (s *Session) Reset(screen string) {
	s.CurrentScreen = screen
	s.Answers = make(map[string]string)
	s.CachedListings = nil
	s.UpdatedAt = time.Now()
}

// SetAnswer records a resolved wizard answer under the given key.
func (s *Session) SetAnswer(key, value string) {
	if s.Answers == nil {
		s.Answers = make(map[string]string)
	}
	s.Answers[key] = value
}

// Answer returns the stored answer for key, or "" when absent.
func (s *Session) Answer(key string) string {
	if s.Answers == nil {
		return ""
	}
	return s.Answers[key]
}

// Expired reports whether the session has outlived the TTL relative to now.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.UpdatedAt) > SessionTTL
}
