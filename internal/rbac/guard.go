package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akada-sms/akada/internal/platform/httpx"
	"github.com/akada-sms/akada/internal/shared"
)

// UserSource loads the authenticated principal referenced by the session.
type UserSource interface {
	PrincipalByID(ctx context.Context, id int64) (Principal, error)
}

// ResourceLookup resolves a resource identifier to the school owning it.
// Implementations return shared.ErrNotFound for unknown ids.
type ResourceLookup func(ctx context.Context, id int64) (schoolID int64, err error)

// Guard enforces authentication, school resolution, membership resolution and
// capability checks ahead of protected handlers. Each variant runs the full
// chain in a fixed order; a deny short-circuits before the wrapped handler
// executes, so denied operations have no side effects.
type Guard struct {
	resolver   *Resolver
	users      UserSource
	translator Translator
	logger     *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(resolver *Resolver, users UserSource, logger *slog.Logger) *Guard {
	return &Guard{resolver: resolver, users: users, logger: logger}
}

// SetDenyObserver registers a callback invoked for every refused request.
func (g *Guard) SetDenyObserver(fn func(kind DenyKind)) {
	g.translator.OnDeny = fn
}

// RequireAuthenticated admits only logged-in users.
func (g *Guard) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := g.principal(w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequireSchoolContext resolves the current school and attaches it to the
// request context. Users without any resolvable school are sent to school
// selection.
func (g *Guard) RequireSchoolContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := g.principal(w, r)
			if !ok {
				return
			}
			ctx, ok := g.schoolContext(w, r, p)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability admits users holding the capability in their current
// school. Superusers bypass school scoping entirely.
func (g *Guard) RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := g.admit(w, r, func(m *Membership) Outcome {
				if m.Role.HasCapability(c) {
					return Allow()
				}
				return Deny(DenyMissingCapability, fmt.Sprintf("You don't have permission to %s.", humanize(string(c))))
			})
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyCapability admits users holding at least one of the capabilities,
// used for combined admin screens.
func (g *Guard) RequireAnyCapability(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := g.admit(w, r, func(m *Membership) Outcome {
				for _, c := range caps {
					if m.Role.HasCapability(c) {
						return Allow()
					}
				}
				names := make([]string, len(caps))
				for i, c := range caps {
					names[i] = humanize(string(c))
				}
				return Deny(DenyMissingCapability, fmt.Sprintf("You don't have permission to %s.", strings.Join(names, " or ")))
			})
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoleType admits only users whose role carries the given system tag.
func (g *Guard) RequireRoleType(t SystemRoleType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := g.admit(w, r, func(m *Membership) Outcome {
				if m.Role.SystemRoleType == t {
					return Allow()
				}
				g.logw("role mismatch",
					slog.String("required", string(t)),
					slog.String("actual", string(m.Role.SystemRoleType)))
				return Deny(DenyRoleMismatch, fmt.Sprintf("This page is only accessible to %s staff.", humanize(string(t))))
			})
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSchoolOwnership confirms the resource named by the URL parameter
// belongs to the resolved school. Unknown ids and cross-school ids produce
// the same outcome, so the existence of other schools' records never leaks.
func (g *Guard) RequireSchoolOwnership(param string, lookup ResourceLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := g.principal(w, r)
			if !ok {
				return
			}
			ctx, ok := g.schoolContext(w, r, p)
			if !ok {
				return
			}
			schoolID := SchoolFromContext(ctx)

			denied := Deny(DenyNotFound, "Not found or access denied.")
			id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || id <= 0 {
				g.translator.Respond(w, r.WithContext(ctx), denied)
				return
			}
			owner, err := lookup(ctx, id)
			if err != nil {
				if isNotFound(err) {
					g.translator.Respond(w, r.WithContext(ctx), denied)
					return
				}
				g.fail(w, r, err)
				return
			}
			if owner != schoolID {
				g.logw("cross-school resource access blocked",
					slog.Int64("school_id", schoolID),
					slog.Int64("owner_school_id", owner),
					slog.Int64("resource_id", id))
				g.translator.Respond(w, r.WithContext(ctx), denied)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// admit runs the shared pipeline: authentication, school resolution,
// membership resolution, then the supplied decision against the member's
// role. Superusers skip membership resolution and are always admitted.
func (g *Guard) admit(w http.ResponseWriter, r *http.Request, decide func(*Membership) Outcome) (context.Context, bool) {
	p, ok := g.principal(w, r)
	if !ok {
		return nil, false
	}
	ctx, ok := g.schoolContext(w, r, p)
	if !ok {
		return nil, false
	}

	if p.IsSuperUser() {
		return ctx, true
	}

	schoolID := SchoolFromContext(ctx)
	m, ok, err := g.resolver.ResolveMembership(ctx, p.GetID(), schoolID)
	if err != nil {
		g.fail(w, r, err)
		return nil, false
	}
	if !ok || m.Role == nil {
		g.translator.Respond(w, r.WithContext(ctx), Deny(DenyNoMembership, "No role assigned for this school. Please select a school."))
		return nil, false
	}
	ctx = ContextWithMembership(ctx, m)

	outcome := decide(m)
	if !outcome.Allowed {
		g.logw("access denied",
			slog.Int64("user_id", p.GetID()),
			slog.Int64("school_id", schoolID),
			slog.String("kind", string(outcome.Kind)),
			slog.String("path", r.URL.Path))
		g.translator.Respond(w, r.WithContext(ctx), outcome)
		return nil, false
	}
	return ctx, true
}

// principal extracts and loads the logged-in user; a missing or stale session
// turns into a login redirect.
func (g *Guard) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	if p := principalFromContext(r.Context()); p != nil {
		return p, true
	}

	denied := Deny(DenyNotAuthenticated, "Please login to access this page.")
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		g.translator.Respond(w, r, denied)
		return nil, false
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil || id <= 0 {
		g.translator.Respond(w, r, denied)
		return nil, false
	}
	p, err := g.users.PrincipalByID(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			g.translator.Respond(w, r, denied)
			return nil, false
		}
		g.fail(w, r, err)
		return nil, false
	}
	return p, true
}

// schoolContext resolves the current school once per request and caches it on
// the returned context.
func (g *Guard) schoolContext(w http.ResponseWriter, r *http.Request, p Principal) (context.Context, bool) {
	ctx := contextWithPrincipal(r.Context(), p)
	if SchoolFromContext(ctx) != 0 {
		return ctx, true
	}
	schoolID, err := g.resolver.ResolveCurrentSchool(ctx, p.GetID())
	if err != nil {
		g.fail(w, r, err)
		return nil, false
	}
	if schoolID == 0 {
		if p.IsSuperUser() {
			// Superusers may operate without a school, e.g. on platform admin
			// screens; capability checks still pass via the superuser bypass.
			return ctx, true
		}
		g.translator.Respond(w, r, Deny(DenyNoSchool, "Please select a school to continue."))
		return nil, false
	}
	return ContextWithSchool(ctx, schoolID), true
}

// fail handles storage errors: never grant, never redirect, log loudly.
func (g *Guard) fail(w http.ResponseWriter, r *http.Request, err error) {
	if g.logger != nil {
		g.logger.Error("guard storage failure", slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func (g *Guard) logw(msg string, attrs ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, attrs...)
	}
}

type principalContextKey struct{}

func contextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func principalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}

// PrincipalFromContext returns the principal attached by the guard.
func PrincipalFromContext(ctx context.Context) Principal {
	return principalFromContext(ctx)
}

func humanize(token string) string {
	return strings.ReplaceAll(token, "_", " ")
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
