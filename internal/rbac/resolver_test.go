package rbac_test

import (
	"context"
	"testing"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	_ "github.com/akada-sms/akada/testing"
)

func newResolver(store *stubStore, dir *stubDirectory) *rbac.Resolver {
	return rbac.NewResolver(store, dir, nil)
}

func TestResolveCurrentSchoolPrefersContextCache(t *testing.T) {
	r := newResolver(&stubStore{}, &stubDirectory{})
	ctx := rbac.ContextWithSchool(context.Background(), 5)

	id, err := r.ResolveCurrentSchool(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 5 {
		t.Fatalf("expected cached school 5, got %d", id)
	}
}

func TestResolveCurrentSchoolUsesSubdomainHint(t *testing.T) {
	dir := &stubDirectory{active: map[int64]bool{3: true}}
	r := newResolver(&stubStore{}, dir)
	ctx := shared.ContextWithSchoolHint(context.Background(), 3)

	id, err := r.ResolveCurrentSchool(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 3 {
		t.Fatalf("expected hinted school 3, got %d", id)
	}
}

func TestResolveCurrentSchoolSkipsInactiveHint(t *testing.T) {
	role := &rbac.Role{ID: 1, SchoolID: 9}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 9}: membershipWith(1, 7, 9, role),
	}}
	dir := &stubDirectory{active: map[int64]bool{}}
	r := newResolver(store, dir)
	ctx := shared.ContextWithSchoolHint(context.Background(), 3)

	id, err := r.ResolveCurrentSchool(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 9 {
		t.Fatalf("inactive hint should fall through to first membership, got %d", id)
	}
}

func TestResolveCurrentSchoolUsesSessionSchool(t *testing.T) {
	dir := &stubDirectory{active: map[int64]bool{4: true}}
	r := newResolver(&stubStore{}, dir)

	sess := &shared.Session{}
	sess.SetSchool("4")
	ctx := shared.ContextWithSession(context.Background(), sess)

	id, err := r.ResolveCurrentSchool(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 4 {
		t.Fatalf("expected session school 4, got %d", id)
	}
}

func TestResolveCurrentSchoolUsesRememberedSchool(t *testing.T) {
	// The persisted selection outlives the session and beats the
	// first-membership fallback.
	role := &rbac.Role{ID: 1, SchoolID: 2}
	store := &stubStore{
		memberships: map[[2]int64]*rbac.Membership{
			{7, 2}: membershipWith(3, 7, 2, role),
		},
		remembered: map[int64]int64{7: 6},
	}
	dir := &stubDirectory{active: map[int64]bool{6: true}}
	r := newResolver(store, dir)

	id, err := r.ResolveCurrentSchool(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 6 {
		t.Fatalf("expected remembered school 6, got %d", id)
	}
}

func TestResolveCurrentSchoolSkipsInactiveRememberedSchool(t *testing.T) {
	role := &rbac.Role{ID: 1, SchoolID: 2}
	store := &stubStore{
		memberships: map[[2]int64]*rbac.Membership{
			{7, 2}: membershipWith(3, 7, 2, role),
		},
		remembered: map[int64]int64{7: 6},
	}
	r := newResolver(store, &stubDirectory{active: map[int64]bool{}})

	id, err := r.ResolveCurrentSchool(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 2 {
		t.Fatalf("inactive remembered school should fall through to first membership, got %d", id)
	}
}

func TestResolveCurrentSchoolClearsStaleSessionSelection(t *testing.T) {
	role := &rbac.Role{ID: 1, SchoolID: 9}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 9}: membershipWith(1, 7, 9, role),
	}}
	r := newResolver(store, &stubDirectory{active: map[int64]bool{9: true}})

	sess := &shared.Session{}
	sess.SetSchool("4")
	ctx := shared.ContextWithSession(context.Background(), sess)

	id, err := r.ResolveCurrentSchool(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 9 {
		t.Fatalf("stale selection should fall through to first membership, got %d", id)
	}
	if sess.School() != "" {
		t.Fatalf("stale selection should be cleared from the session, still %q", sess.School())
	}
}

func TestResolveCurrentSchoolFallsBackToFirstMembership(t *testing.T) {
	roleA := &rbac.Role{ID: 1, SchoolID: 8}
	roleB := &rbac.Role{ID: 2, SchoolID: 2}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 8}: membershipWith(20, 7, 8, roleA),
		{7, 2}: membershipWith(3, 7, 2, roleB),
	}}
	r := newResolver(store, &stubDirectory{})

	id, err := r.ResolveCurrentSchool(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 2 {
		t.Fatalf("expected oldest membership's school 2, got %d", id)
	}
}

func TestResolveCurrentSchoolNoneIsZeroNotError(t *testing.T) {
	r := newResolver(&stubStore{}, &stubDirectory{})

	id, err := r.ResolveCurrentSchool(context.Background(), 7)
	if err != nil {
		t.Fatalf("a user without schools is a deniable state, not an error: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected zero school, got %d", id)
	}
}

func TestResolveMembershipAbsenceIsOkFalse(t *testing.T) {
	r := newResolver(&stubStore{}, &stubDirectory{})

	m, ok, err := r.ResolveMembership(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || m != nil {
		t.Fatal("missing membership must come back as ok=false, nil")
	}
}

func TestResolveMembershipFindsUniqueRecord(t *testing.T) {
	role := &rbac.Role{ID: 10, SchoolID: 1, CanCommunicate: true}
	store := &stubStore{memberships: map[[2]int64]*rbac.Membership{
		{7, 1}: membershipWith(1, 7, 1, role),
	}}
	r := newResolver(store, &stubDirectory{})

	m, ok, err := r.ResolveMembership(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || m == nil || m.Role == nil {
		t.Fatal("expected membership with role attached")
	}
	if m.SchoolID != 1 || m.UserID != 7 {
		t.Fatalf("wrong membership returned: %+v", m)
	}
}
