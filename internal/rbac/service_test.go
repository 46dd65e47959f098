package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	_ "github.com/akada-sms/akada/testing"
)

// stubAdminStore records membership mutations so tests can assert the school
// scope travels with them.
type stubAdminStore struct {
	roles map[int64]rbac.Role

	reassigned  [][3]int64
	deactivated [][2]int64
	missing     bool
}

func (s *stubAdminStore) ListRoles(ctx context.Context, schoolID int64) ([]rbac.Role, error) {
	return nil, nil
}

func (s *stubAdminStore) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (s *stubAdminStore) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	return role, nil
}

func (s *stubAdminStore) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	return role, nil
}

func (s *stubAdminStore) DeactivateRole(ctx context.Context, id int64) error { return nil }

func (s *stubAdminStore) ListMemberships(ctx context.Context, schoolID int64) ([]rbac.Membership, error) {
	return nil, nil
}

func (s *stubAdminStore) CreateMembership(ctx context.Context, userID, schoolID, roleID int64) (int64, error) {
	return 1, nil
}

func (s *stubAdminStore) ReassignMembership(ctx context.Context, membershipID, roleID, schoolID int64) error {
	if s.missing {
		return shared.ErrNotFound
	}
	s.reassigned = append(s.reassigned, [3]int64{membershipID, roleID, schoolID})
	return nil
}

func (s *stubAdminStore) DeactivateMembership(ctx context.Context, membershipID, schoolID int64) error {
	if s.missing {
		return shared.ErrNotFound
	}
	s.deactivated = append(s.deactivated, [2]int64{membershipID, schoolID})
	return nil
}

func newAdminService(store *stubAdminStore) *rbac.Service {
	return rbac.NewService(store, nil, nil)
}

func TestRemoveMembershipScopesToSchool(t *testing.T) {
	store := &stubAdminStore{}
	svc := newAdminService(store)

	if err := svc.RemoveMembership(context.Background(), 4, 90); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != [2]int64{90, 4} {
		t.Fatalf("expected deactivation scoped to school 4, got %v", store.deactivated)
	}
}

func TestRemoveMembershipOtherSchoolIsNotFound(t *testing.T) {
	// A membership id from another tenant behaves exactly like a missing one.
	store := &stubAdminStore{missing: true}
	svc := newAdminService(store)

	err := svc.RemoveMembership(context.Background(), 4, 90)
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReassignRoleScopesToSchool(t *testing.T) {
	store := &stubAdminStore{roles: map[int64]rbac.Role{
		10: {ID: 10, SchoolID: 4},
	}}
	svc := newAdminService(store)

	if err := svc.ReassignRole(context.Background(), 4, 90, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.reassigned) != 1 || store.reassigned[0] != [3]int64{90, 10, 4} {
		t.Fatalf("expected reassignment scoped to school 4, got %v", store.reassigned)
	}
}

func TestReassignRoleRejectsForeignRole(t *testing.T) {
	store := &stubAdminStore{roles: map[int64]rbac.Role{
		10: {ID: 10, SchoolID: 99},
	}}
	svc := newAdminService(store)

	err := svc.ReassignRole(context.Background(), 4, 90, 10)
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("a role of another school must read as not found, got %v", err)
	}
	if len(store.reassigned) != 0 {
		t.Fatal("no reassignment should reach the store")
	}
}

func TestReassignRoleOtherSchoolMembershipIsNotFound(t *testing.T) {
	store := &stubAdminStore{
		roles:   map[int64]rbac.Role{10: {ID: 10, SchoolID: 4}},
		missing: true,
	}
	svc := newAdminService(store)

	err := svc.ReassignRole(context.Background(), 4, 90, 10)
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
