package store

import (
	"log/slog"

	"github.com/manasetna/exams/internal/model"
)

// Users returns all registered users in registration order.
func (s *Store) Users() ([]model.User, error) {
	return List[model.User](s, UsersCollection)
}

// AppendUser stores a new user. The caller has already checked the username
// is free.
func (s *Store) AppendUser(u model.User) error {
	if err := Append(s, UsersCollection, u); err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return err
	}
	slog.Info("created user", "id", u.ID, "username", u.Username, "role", u.Role)
	return nil
}

// UserByUsername returns the user with the exact (case-sensitive) username, or
// nil if none exists.
func (s *Store) UserByUsername(username string) (*model.User, error) {
	users, err := s.Users()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, nil
}

// UserByID returns a user by ID, or nil if none exists.
func (s *Store) UserByID(id string) (*model.User, error) {
	users, err := s.Users()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	users, err := s.Users()
	return len(users), err
}
