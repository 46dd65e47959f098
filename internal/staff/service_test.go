package staff_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/staff"
	"github.com/akada-sms/akada/jobs"
	_ "github.com/akada-sms/akada/testing"
)

// stubStaffStore keeps invitations in memory and records which mutations ran.
type stubStaffStore struct {
	invitations map[string]staff.Invitation
	members     []staff.Member

	createErr    error
	acceptedIDs  []int64
	linkedPairs  [][2]int64
	revokedPairs [][2]int64
}

func (s *stubStaffStore) GetMember(ctx context.Context, id int64) (staff.Member, error) {
	return staff.Member{}, shared.ErrNotFound
}

func (s *stubStaffStore) SchoolOf(ctx context.Context, id int64) (int64, error) {
	return 0, shared.ErrNotFound
}

func (s *stubStaffStore) ListMembers(ctx context.Context, schoolID int64) ([]staff.Member, error) {
	return s.members, nil
}

func (s *stubStaffStore) CreateMember(ctx context.Context, m staff.Member) (int64, error) {
	return 1, nil
}

func (s *stubStaffStore) LinkUser(ctx context.Context, memberID, userID int64) error {
	s.linkedPairs = append(s.linkedPairs, [2]int64{memberID, userID})
	return nil
}

func (s *stubStaffStore) DeactivateMember(ctx context.Context, id, schoolID int64) error {
	return nil
}

func (s *stubStaffStore) CreateInvitation(ctx context.Context, inv staff.Invitation) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	return 1, nil
}

func (s *stubStaffStore) InvitationByToken(ctx context.Context, token string) (staff.Invitation, error) {
	inv, ok := s.invitations[token]
	if !ok {
		return staff.Invitation{}, shared.ErrNotFound
	}
	return inv, nil
}

func (s *stubStaffStore) ListInvitations(ctx context.Context, schoolID int64) ([]staff.Invitation, error) {
	return nil, nil
}

func (s *stubStaffStore) MarkAccepted(ctx context.Context, id int64, at time.Time) error {
	s.acceptedIDs = append(s.acceptedIDs, id)
	return nil
}

func (s *stubStaffStore) ReapExpiredInvitations(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *stubStaffStore) RevokeInvitation(ctx context.Context, id, schoolID int64) error {
	s.revokedPairs = append(s.revokedPairs, [2]int64{id, schoolID})
	return nil
}

// stubRoleDirectory hands out roles and optionally fails assignments.
type stubRoleDirectory struct {
	roles     map[int64]rbac.Role
	assignErr error
	assigned  [][3]int64
}

func (d *stubRoleDirectory) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	role, ok := d.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (d *stubRoleDirectory) AssignRole(ctx context.Context, userID, schoolID, roleID int64) (int64, error) {
	if d.assignErr != nil {
		return 0, d.assignErr
	}
	d.assigned = append(d.assigned, [3]int64{userID, schoolID, roleID})
	return 50, nil
}

type stubMailer struct {
	sent []jobs.SendEmailPayload
}

func (m *stubMailer) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func newStaffService(store *stubStaffStore, roles *stubRoleDirectory, mailer *stubMailer) *staff.Service {
	return staff.NewService(slog.Default(), store, roles, mailer, "https://akada.test")
}

func openInvitation(token string) staff.Invitation {
	return staff.Invitation{
		ID:        9,
		SchoolID:  4,
		Email:     "ngozi@example.com",
		RoleID:    10,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestAcceptGrantsMembershipAndConsumesToken(t *testing.T) {
	store := &stubStaffStore{invitations: map[string]staff.Invitation{
		"tok": openInvitation("tok"),
	}}
	roles := &stubRoleDirectory{roles: map[int64]rbac.Role{10: {ID: 10, SchoolID: 4}}}
	svc := newStaffService(store, roles, &stubMailer{})

	schoolID, err := svc.Accept(context.Background(), "tok", 7, "NGOZI@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schoolID != 4 {
		t.Fatalf("expected school 4, got %d", schoolID)
	}
	if len(roles.assigned) != 1 || roles.assigned[0] != [3]int64{7, 4, 10} {
		t.Fatalf("expected membership for user 7 in school 4, got %v", roles.assigned)
	}
	if len(store.acceptedIDs) != 1 || store.acceptedIDs[0] != 9 {
		t.Fatalf("expected invitation 9 stamped accepted, got %v", store.acceptedIDs)
	}
}

func TestAcceptFailedAssignmentLeavesInvitationOpen(t *testing.T) {
	// A failed grant must not consume the single-use token.
	store := &stubStaffStore{invitations: map[string]staff.Invitation{
		"tok": openInvitation("tok"),
	}}
	boom := errors.New("connection reset")
	roles := &stubRoleDirectory{assignErr: boom}
	svc := newStaffService(store, roles, &stubMailer{})

	_, err := svc.Accept(context.Background(), "tok", 7, "ngozi@example.com")
	if !errors.Is(err, boom) {
		t.Fatalf("expected assignment error to propagate, got %v", err)
	}
	if len(store.acceptedIDs) != 0 {
		t.Fatal("invitation must stay open when the assignment fails")
	}
}

func TestAcceptExpiredToken(t *testing.T) {
	inv := openInvitation("tok")
	inv.ExpiresAt = time.Now().Add(-time.Hour)
	store := &stubStaffStore{invitations: map[string]staff.Invitation{"tok": inv}}
	svc := newStaffService(store, &stubRoleDirectory{}, &stubMailer{})

	_, err := svc.Accept(context.Background(), "tok", 7, "ngozi@example.com")
	if !errors.Is(err, staff.ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}
}

func TestAcceptEmailMismatch(t *testing.T) {
	store := &stubStaffStore{invitations: map[string]staff.Invitation{
		"tok": openInvitation("tok"),
	}}
	svc := newStaffService(store, &stubRoleDirectory{}, &stubMailer{})

	_, err := svc.Accept(context.Background(), "tok", 7, "someone-else@example.com")
	if !errors.Is(err, staff.ErrInvitationMismatch) {
		t.Fatalf("expected ErrInvitationMismatch, got %v", err)
	}
}

func TestAcceptUsedTokenIsNotFound(t *testing.T) {
	inv := openInvitation("tok")
	at := time.Now().Add(-time.Minute)
	inv.AcceptedAt = &at
	store := &stubStaffStore{invitations: map[string]staff.Invitation{"tok": inv}}
	svc := newStaffService(store, &stubRoleDirectory{}, &stubMailer{})

	_, err := svc.Accept(context.Background(), "tok", 7, "ngozi@example.com")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a used token, got %v", err)
	}
}

func TestInviteRejectsForeignRole(t *testing.T) {
	roles := &stubRoleDirectory{roles: map[int64]rbac.Role{10: {ID: 10, SchoolID: 99}}}
	svc := newStaffService(&stubStaffStore{}, roles, &stubMailer{})

	_, err := svc.Invite(context.Background(), 4, 10, 1, "ngozi@example.com")
	if err == nil {
		t.Fatal("expected error for a role of another school")
	}
}

func TestInviteSurfacesDuplicateOpenInvitation(t *testing.T) {
	store := &stubStaffStore{createErr: shared.ErrDuplicate}
	roles := &stubRoleDirectory{roles: map[int64]rbac.Role{10: {ID: 10, SchoolID: 4}}}
	svc := newStaffService(store, roles, &stubMailer{})

	_, err := svc.Invite(context.Background(), 4, 10, 1, "ngozi@example.com")
	if !errors.Is(err, shared.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestInviteQueuesEmailWithAcceptLink(t *testing.T) {
	mailer := &stubMailer{}
	roles := &stubRoleDirectory{roles: map[int64]rbac.Role{10: {ID: 10, SchoolID: 4, Name: "Teacher"}}}
	svc := newStaffService(&stubStaffStore{}, roles, mailer)

	inv, err := svc.Invite(context.Background(), 4, 10, 1, " Ngozi@Example.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Email != "ngozi@example.com" {
		t.Fatalf("expected normalized email, got %q", inv.Email)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To != "ngozi@example.com" {
		t.Fatalf("email sent to %q", mailer.sent[0].To)
	}
}
