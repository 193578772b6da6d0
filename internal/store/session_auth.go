package store

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/manasetna/exams/internal/model"
)

const (
	authSessionTTL    = 24 * time.Hour
	currentUserPrefix = "current_user/"
	themePrefix       = "theme/"
)

// CreateAuthSession makes u the current user of a fresh session token.
func (s *Store) CreateAuthSession(u model.User) (model.AuthSession, error) {
	token, err := generateToken()
	if err != nil {
		return model.AuthSession{}, err
	}
	now := time.Now().UTC()
	sess := model.AuthSession{
		Token:     token,
		User:      u,
		CreatedAt: now,
		ExpiresAt: now.Add(authSessionTTL),
	}
	if err := s.SetSlot(currentUserPrefix+token, sess); err != nil {
		return model.AuthSession{}, err
	}
	return sess, nil
}

// GetAuthSession returns the session for token, or nil if not found/expired.
func (s *Store) GetAuthSession(token string) (*model.AuthSession, error) {
	if token == "" {
		return nil, nil
	}
	var sess model.AuthSession
	ok, err := s.GetSlot(currentUserPrefix+token, &sess)
	if err != nil || !ok {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteAuthSession(token)
		return nil, nil
	}
	return &sess, nil
}

// DeleteAuthSession clears the current-user slot for token.
func (s *Store) DeleteAuthSession(token string) error {
	return s.SetSlot(currentUserPrefix+token, nil)
}

// CleanupExpiredSessions removes every expired or undecodable current-user slot.
func (s *Store) CleanupExpiredSessions() (int, error) {
	keys, err := s.slotKeys(currentUserPrefix)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, key := range keys {
		var sess model.AuthSession
		ok, err := s.GetSlot(key, &sess)
		if err != nil {
			return removed, err
		}
		if ok && now.Before(sess.ExpiresAt) {
			continue
		}
		if err := s.SetSlot(key, nil); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Theme returns the user's display preference, light when unset.
func (s *Store) Theme(userID string) (model.Theme, error) {
	var t model.Theme
	ok, err := s.GetSlot(themePrefix+userID, &t)
	if err != nil {
		return model.ThemeLight, err
	}
	if !ok || (t != model.ThemeLight && t != model.ThemeDark) {
		return model.ThemeLight, nil
	}
	return t, nil
}

// SetTheme stores the user's display preference.
func (s *Store) SetTheme(userID string, t model.Theme) error {
	return s.SetSlot(themePrefix+userID, t)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
