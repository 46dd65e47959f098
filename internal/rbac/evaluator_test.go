package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	_ "github.com/akada-sms/akada/testing"
)

type stubPrincipal struct {
	id    int64
	super bool
}

func (p stubPrincipal) GetID() int64      { return p.id }
func (p stubPrincipal) IsSuperUser() bool { return p.super }

// stubStore serves memberships keyed by (user, school).
type stubStore struct {
	memberships map[[2]int64]*rbac.Membership
	remembered  map[int64]int64
	err         error
}

func (s *stubStore) MembershipFor(ctx context.Context, userID, schoolID int64) (*rbac.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	if m, ok := s.memberships[[2]int64{userID, schoolID}]; ok {
		return m, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubStore) FirstMembership(ctx context.Context, userID int64) (*rbac.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	var first *rbac.Membership
	for _, m := range s.memberships {
		if m.UserID != userID {
			continue
		}
		if first == nil || m.ID < first.ID {
			first = m
		}
	}
	if first == nil {
		return nil, shared.ErrNotFound
	}
	return first, nil
}

func (s *stubStore) RememberedSchool(ctx context.Context, userID int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.remembered[userID], nil
}

type stubDirectory struct {
	active map[int64]bool
	err    error
}

func (d *stubDirectory) IsActiveSchool(ctx context.Context, schoolID int64) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.active[schoolID], nil
}

func newEvaluator(store *stubStore, dir *stubDirectory) *rbac.Evaluator {
	return rbac.NewEvaluator(rbac.NewResolver(store, dir, nil), nil)
}

func membershipWith(id, userID, schoolID int64, role *rbac.Role) *rbac.Membership {
	return &rbac.Membership{ID: id, UserID: userID, SchoolID: schoolID, RoleID: role.ID, Role: role, IsActive: true}
}

func TestEvaluatorGrantsThroughMembershipRole(t *testing.T) {
	role := &rbac.Role{ID: 10, SchoolID: 1, CanManageStudents: true}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 1}: membershipWith(1, 7, 1, role),
	}}
	ev := newEvaluator(store, &stubDirectory{})

	ok, err := ev.HasCapability(context.Background(), stubPrincipal{id: 7}, 1, rbac.CapManageStudents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("membership role should grant the capability")
	}
}

func TestEvaluatorTenantIsolation(t *testing.T) {
	// Holding a capability in school 1 means nothing in school 2.
	role := &rbac.Role{ID: 10, SchoolID: 1, Permissions: []string{"*"}}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 1}: membershipWith(1, 7, 1, role),
	}}
	ev := newEvaluator(store, &stubDirectory{})

	ok, err := ev.HasCapability(context.Background(), stubPrincipal{id: 7}, 2, rbac.CapManageStudents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("wildcard in one school must not leak into another")
	}
}

func TestEvaluatorSuperuserBypassesMembership(t *testing.T) {
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{}}
	ev := newEvaluator(store, &stubDirectory{})

	ok, err := ev.HasCapability(context.Background(), stubPrincipal{id: 7, super: true}, 99, rbac.CapManageFinances)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("superuser should pass without any membership")
	}
}

func TestEvaluatorNoMembershipIsDenyNotError(t *testing.T) {
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{}}
	ev := newEvaluator(store, &stubDirectory{})

	ok, err := ev.HasCapability(context.Background(), stubPrincipal{id: 7}, 1, rbac.CapViewReports)
	if err != nil {
		t.Fatalf("absence must not surface as an error, got %v", err)
	}
	if ok {
		t.Fatal("no membership must evaluate to deny")
	}
}

func TestEvaluatorFailsClosedOnStorageError(t *testing.T) {
	boom := errors.New("connection reset")
	store := &stubStore{err: boom}
	ev := newEvaluator(store, &stubDirectory{})

	ok, err := ev.HasCapability(context.Background(), stubPrincipal{id: 7}, 1, rbac.CapViewReports)
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
	if ok {
		t.Fatal("storage failure must never grant")
	}
}

func TestGrantedCapabilitiesListsFlagAndTokenGrants(t *testing.T) {
	role := &rbac.Role{
		ID: 10, SchoolID: 1,
		Permissions:    []string{"communicate"},
		CanViewReports: true,
	}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 1}: membershipWith(1, 7, 1, role),
	}}
	ev := newEvaluator(store, &stubDirectory{})

	granted, err := ev.GrantedCapabilities(context.Background(), stubPrincipal{id: 7}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[rbac.Capability]bool{rbac.CapViewReports: true, rbac.CapCommunicate: true}
	if len(granted) != len(want) {
		t.Fatalf("expected %d capabilities, got %v", len(want), granted)
	}
	for _, c := range granted {
		if !want[c] {
			t.Fatalf("unexpected capability %s", c)
		}
	}
}
