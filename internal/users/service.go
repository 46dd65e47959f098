package users

import (
	"context"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetCurrentSchool(ctx context.Context, userID, schoolID int64) error
}

// Service handles user business logic. It also serves as the guard's
// principal source.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// PrincipalByID implements rbac.UserSource.
func (s *Service) PrincipalByID(ctx context.Context, id int64) (rbac.Principal, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		// Deactivated accounts behave like unknown ones: back to login.
		return nil, shared.ErrNotFound
	}
	return u, nil
}

// RememberSchool persists the user's current school choice.
func (s *Service) RememberSchool(ctx context.Context, userID, schoolID int64) error {
	return s.repo.SetCurrentSchool(ctx, userID, schoolID)
}
