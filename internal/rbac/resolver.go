package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/akada-sms/akada/internal/shared"
)

// Store provides read access to membership and role records.
type Store interface {
	// MembershipFor returns the active membership of a user in a school,
	// shared.ErrNotFound when none exists.
	MembershipFor(ctx context.Context, userID, schoolID int64) (*Membership, error)
	// FirstMembership returns the user's oldest active membership by id,
	// shared.ErrNotFound when the user belongs to no school.
	FirstMembership(ctx context.Context, userID int64) (*Membership, error)
	// RememberedSchool returns the school the user last selected, zero when
	// none is stored.
	RememberedSchool(ctx context.Context, userID int64) (int64, error)
}

// SchoolDirectory answers whether a school exists and is active.
type SchoolDirectory interface {
	IsActiveSchool(ctx context.Context, schoolID int64) (bool, error)
}

type resolvedSchoolKey struct{}

type membershipKey struct{}

// ContextWithSchool caches the resolved school on the request context.
func ContextWithSchool(ctx context.Context, schoolID int64) context.Context {
	return context.WithValue(ctx, resolvedSchoolKey{}, schoolID)
}

// SchoolFromContext returns the resolved school ID, zero when none.
func SchoolFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(resolvedSchoolKey{}).(int64)
	return id
}

// ContextWithMembership caches the resolved membership on the request context.
func ContextWithMembership(ctx context.Context, m *Membership) context.Context {
	return context.WithValue(ctx, membershipKey{}, m)
}

// MembershipFromContext returns the membership cached by the guard, nil when
// the request did not pass a membership-resolving guard.
func MembershipFromContext(ctx context.Context) *Membership {
	m, _ := ctx.Value(membershipKey{}).(*Membership)
	return m
}

// Resolver locates the school a request operates in and the user's
// membership within it.
type Resolver struct {
	store   Store
	schools SchoolDirectory
	logger  *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, schools SchoolDirectory, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, schools: schools, logger: logger}
}

// ResolveCurrentSchool picks the school for the current request. First match
// wins: school already resolved on this request, school hinted by upstream
// subdomain detection, school selected in the session, school remembered on
// the user record, school of the user's first membership. Zero means no
// school could be determined, which is a deniable state rather than an
// error. Re-resolving within one request returns the same value because the
// first resolution is cached on the context by the guard.
func (r *Resolver) ResolveCurrentSchool(ctx context.Context, userID int64) (int64, error) {
	if id := SchoolFromContext(ctx); id != 0 {
		return id, nil
	}

	if hint := shared.SchoolHintFromContext(ctx); hint != 0 {
		active, err := r.schools.IsActiveSchool(ctx, hint)
		if err != nil {
			return 0, err
		}
		if active {
			return hint, nil
		}
	}

	if sess := shared.SessionFromContext(ctx); sess != nil {
		if raw := sess.School(); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err == nil && id > 0 {
				active, aerr := r.schools.IsActiveSchool(ctx, id)
				if aerr != nil {
					return 0, aerr
				}
				if active {
					return id, nil
				}
			}
			// The selection no longer points at a usable school; clear it so
			// the next sources stop being shadowed on every request.
			sess.ClearSchool()
		}
	}

	if userID > 0 {
		remembered, err := r.store.RememberedSchool(ctx, userID)
		if err != nil {
			return 0, err
		}
		if remembered > 0 {
			active, aerr := r.schools.IsActiveSchool(ctx, remembered)
			if aerr != nil {
				return 0, aerr
			}
			if active {
				return remembered, nil
			}
		}

		m, err := r.store.FirstMembership(ctx, userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return m.SchoolID, nil
	}

	return 0, nil
}

// ResolveMembership looks up the unique membership of a user in a school.
// Absence is reported through ok=false, never as an error.
func (r *Resolver) ResolveMembership(ctx context.Context, userID, schoolID int64) (*Membership, bool, error) {
	if userID <= 0 || schoolID <= 0 {
		return nil, false, nil
	}
	m, err := r.store.MembershipFor(ctx, userID, schoolID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			if r.logger != nil {
				r.logger.Warn("no membership for user in school",
					slog.Int64("user_id", userID),
					slog.Int64("school_id", schoolID))
			}
			return nil, false, nil
		}
		return nil, false, err
	}
	return m, true, nil
}
