package memstore

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/Tetsu-is/crate-digger/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, userID, name, password string) (*domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return nil, domain.ErrDuplicateUser
	}
	now := s.now()
	u := domain.User{ID: userID, Name: name, DisplayName: name, CreatedAt: now, UpdatedAt: now}
	s.users[userID] = u
	s.names[name] = userID
	s.passwords[userID] = hashed
	return &u, nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) Authenticate(_ context.Context, name, password string) (*domain.User, error) {
	s.mu.RLock()
	id, ok := s.names[name]
	u := s.users[id]
	hashed := s.passwords[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hashed, []byte(password)); err != nil {
		return nil, domain.ErrBadCredentials
	}
	return &u, nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if req.DisplayName != nil {
		u.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
	}
	if req.IsPrivate != nil {
		u.IsPrivate = *req.IsPrivate
	}
	u.UpdatedAt = s.now()
	s.users[userID] = u
	return &u, nil
}
