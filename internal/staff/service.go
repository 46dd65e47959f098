package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/jobs"
)

// invitationTTL is how long an invitation token stays valid.
const invitationTTL = 7 * 24 * time.Hour

// ErrInvitationExpired is returned when a token is presented past its expiry.
var ErrInvitationExpired = errors.New("staff: invitation expired")

// ErrInvitationMismatch is returned when the accepting account's email does
// not match the invited address.
var ErrInvitationMismatch = errors.New("staff: invitation was issued to a different email")

// emailEnqueuer submits outbound mail to the job queue.
type emailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Store persists staff records and invitations. *Repository implements it.
type Store interface {
	GetMember(ctx context.Context, id int64) (Member, error)
	SchoolOf(ctx context.Context, id int64) (int64, error)
	ListMembers(ctx context.Context, schoolID int64) ([]Member, error)
	CreateMember(ctx context.Context, m Member) (int64, error)
	LinkUser(ctx context.Context, memberID, userID int64) error
	DeactivateMember(ctx context.Context, id, schoolID int64) error
	CreateInvitation(ctx context.Context, inv Invitation) (int64, error)
	InvitationByToken(ctx context.Context, token string) (Invitation, error)
	ListInvitations(ctx context.Context, schoolID int64) ([]Invitation, error)
	MarkAccepted(ctx context.Context, id int64, at time.Time) error
	ReapExpiredInvitations(ctx context.Context) (int64, error)
	RevokeInvitation(ctx context.Context, id, schoolID int64) error
}

// RoleDirectory looks up and grants the roles invitations carry.
// *rbac.Service implements it.
type RoleDirectory interface {
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	AssignRole(ctx context.Context, userID, schoolID, roleID int64) (int64, error)
}

// Service implements staff management and the invitation lifecycle.
type Service struct {
	logger  *slog.Logger
	repo    Store
	rbac    RoleDirectory
	mailer  emailEnqueuer
	baseURL string
	now     func() time.Time
}

// NewService constructs a Service. baseURL is the public address used to
// build invitation links.
func NewService(logger *slog.Logger, repo Store, rbacService RoleDirectory, mailer emailEnqueuer, baseURL string) *Service {
	return &Service{
		logger:  logger,
		repo:    repo,
		rbac:    rbacService,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// ListMembers returns the active staff of a school.
func (s *Service) ListMembers(ctx context.Context, schoolID int64) ([]Member, error) {
	return s.repo.ListMembers(ctx, schoolID)
}

// ListInvitations returns the open invitations of a school.
func (s *Service) ListInvitations(ctx context.Context, schoolID int64) ([]Invitation, error) {
	return s.repo.ListInvitations(ctx, schoolID)
}

// SchoolOf exposes ownership lookup for access checks.
func (s *Service) SchoolOf(ctx context.Context, id int64) (int64, error) {
	return s.repo.SchoolOf(ctx, id)
}

// AddMember creates a staff record without a linked account.
func (s *Service) AddMember(ctx context.Context, m Member) (int64, error) {
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	if m.SchoolID <= 0 {
		return 0, errors.New("staff: school is required")
	}
	if m.FirstName == "" || m.LastName == "" {
		return 0, errors.New("staff: first and last name are required")
	}
	if m.Email == "" {
		return 0, errors.New("staff: email is required")
	}
	return s.repo.CreateMember(ctx, m)
}

// RemoveMember soft-deletes a staff record.
func (s *Service) RemoveMember(ctx context.Context, id, schoolID int64) error {
	return s.repo.DeactivateMember(ctx, id, schoolID)
}

// Invite creates an invitation and queues the invitation email. The role it
// grants must belong to the inviting school.
func (s *Service) Invite(ctx context.Context, schoolID, roleID, invitedBy int64, email string) (Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Invitation{}, errors.New("staff: email is required")
	}

	role, err := s.rbac.GetRole(ctx, roleID)
	if err != nil {
		return Invitation{}, err
	}
	if role.SchoolID != 0 && role.SchoolID != schoolID {
		return Invitation{}, errors.New("staff: role belongs to another school")
	}

	inv := Invitation{
		SchoolID:  schoolID,
		Email:     email,
		RoleID:    roleID,
		Token:     uuid.NewString(),
		InvitedBy: invitedBy,
		ExpiresAt: s.now().Add(invitationTTL),
	}
	id, err := s.repo.CreateInvitation(ctx, inv)
	if err != nil {
		return Invitation{}, err
	}
	inv.ID = id

	link := fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, inv.Token)
	payload := jobs.SendEmailPayload{
		To:      email,
		Subject: "You have been invited to join a school on Akada",
		Body:    fmt.Sprintf("You were invited to join as %s. Accept within 7 days: %s", role.Name, link),
	}
	if _, err := s.mailer.EnqueueSendEmail(ctx, payload); err != nil {
		// The invitation stands, the admin can re-send the link.
		s.logger.Warn("enqueue invitation email",
			slog.String("email", email),
			slog.Any("error", err))
	}

	s.logger.Info("staff invited",
		slog.Int64("school_id", schoolID),
		slog.Int64("role_id", roleID),
		slog.String("email", email))
	return inv, nil
}

// Revoke withdraws an open invitation.
func (s *Service) Revoke(ctx context.Context, invitationID, schoolID int64) error {
	return s.repo.RevokeInvitation(ctx, invitationID, schoolID)
}

// Accept consumes an invitation token for the signed-in user, creating the
// membership the invitation promised. Tokens are single use.
func (s *Service) Accept(ctx context.Context, token string, userID int64, userEmail string) (int64, error) {
	inv, err := s.repo.InvitationByToken(ctx, token)
	if err != nil {
		return 0, err
	}
	if inv.AcceptedAt != nil {
		return 0, shared.ErrNotFound
	}
	if inv.Expired(s.now()) {
		return 0, ErrInvitationExpired
	}
	if !strings.EqualFold(inv.Email, userEmail) {
		return 0, ErrInvitationMismatch
	}

	// The membership is written before the token is stamped: an assignment
	// failure must leave the invitation open so the user can retry.
	membershipID, err := s.rbac.AssignRole(ctx, userID, inv.SchoolID, inv.RoleID)
	if err != nil {
		return 0, err
	}
	if err := s.repo.MarkAccepted(ctx, inv.ID, s.now()); err != nil {
		return 0, err
	}

	// Link an existing staff record for the same address, if any.
	if members, lerr := s.repo.ListMembers(ctx, inv.SchoolID); lerr == nil {
		for _, m := range members {
			if m.UserID == nil && strings.EqualFold(m.Email, inv.Email) {
				if lerr := s.repo.LinkUser(ctx, m.ID, userID); lerr != nil {
					s.logger.Warn("link staff record", slog.Any("error", lerr))
				}
				break
			}
		}
	}

	s.logger.Info("invitation accepted",
		slog.Int64("school_id", inv.SchoolID),
		slog.Int64("user_id", userID),
		slog.Int64("membership_id", membershipID))
	return inv.SchoolID, nil
}

// ReapExpiredInvitations removes expired invitations, run from the worker.
func (s *Service) ReapExpiredInvitations(ctx context.Context) (int64, error) {
	return s.repo.ReapExpiredInvitations(ctx)
}
