package staff

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/view"
)

// Handler serves staff management pages and the invitation flow.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	roles       *rbac.Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, roles *rbac.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, roles: roles, templates: templates, csrfManager: csrf}
}

// MountRoutes registers staff routes. The caller guards them with the staff
// management capability.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listStaff)
	r.Post("/", h.handleAddMember)
	r.Post("/{memberID}/remove", h.handleRemoveMember)
	r.Post("/invitations", h.handleInvite)
	r.Post("/invitations/{invitationID}/revoke", h.handleRevoke)
}

// MountAcceptRoute registers the invitation acceptance endpoint. It needs
// only an authenticated user, not a school context.
func (h *Handler) MountAcceptRoute(r chi.Router) {
	r.Get("/accept", h.handleAccept)
}

// OwnershipLookup adapts the service for access checks on staff routes.
func (h *Handler) OwnershipLookup() rbac.ResourceLookup {
	return h.service.SchoolOf
}

type staffPageData struct {
	Staff       []Member
	Roles       []rbac.Role
	Invitations []Invitation
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	schoolID := rbac.SchoolFromContext(r.Context())

	members, err := h.service.ListMembers(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("list staff", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	roles, err := h.roles.ListRoles(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("list roles for staff page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	invitations, err := h.service.ListInvitations(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("list invitations", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.render(w, r, staffPageData{Staff: members, Roles: roles, Invitations: invitations})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	schoolID := rbac.SchoolFromContext(r.Context())

	member := Member{
		SchoolID:  schoolID,
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Phone:     strings.TrimSpace(r.PostFormValue("phone")),
		Position:  strings.TrimSpace(r.PostFormValue("position")),
	}
	if _, err := h.service.AddMember(r.Context(), member); err != nil {
		h.logger.Warn("add staff rejected", slog.Any("error", err))
		h.flash(r, "error", "Could not add staff member")
	} else {
		h.flash(r, "success", "Staff member added")
	}
	http.Redirect(w, r, "/staff", http.StatusSeeOther)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	schoolID := rbac.SchoolFromContext(r.Context())
	if err := h.service.RemoveMember(r.Context(), id, schoolID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("remove staff", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.flash(r, "success", "Staff member removed")
	http.Redirect(w, r, "/staff", http.StatusSeeOther)
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	schoolID := rbac.SchoolFromContext(r.Context())
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	roleID, err := strconv.ParseInt(r.PostFormValue("role_id"), 10, 64)
	if err != nil || roleID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	_, err = h.service.Invite(r.Context(), schoolID, roleID, principal.GetID(), r.PostFormValue("email"))
	switch {
	case errors.Is(err, shared.ErrDuplicate):
		h.flash(r, "error", "An open invitation for that email already exists")
	case err != nil:
		h.logger.Warn("invite rejected", slog.Any("error", err))
		h.flash(r, "error", "Could not send invitation")
	default:
		h.flash(r, "success", "Invitation sent")
	}
	http.Redirect(w, r, "/staff", http.StatusSeeOther)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invitationID"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	schoolID := rbac.SchoolFromContext(r.Context())
	if err := h.service.Revoke(r.Context(), id, schoolID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("revoke invitation", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.flash(r, "success", "Invitation revoked")
	http.Redirect(w, r, "/staff", http.StatusSeeOther)
}

// emailedPrincipal is implemented by principals that expose their login
// email, needed to match an invitation to the signed-in account.
type emailedPrincipal interface {
	GetEmail() string
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		http.NotFound(w, r)
		return
	}

	email := ""
	if ep, ok := principal.(emailedPrincipal); ok {
		email = ep.GetEmail()
	}

	schoolID, err := h.service.Accept(r.Context(), token, principal.GetID(), email)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrInvitationExpired):
		h.flash(r, "error", "That invitation has expired")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	case errors.Is(err, ErrInvitationMismatch):
		h.flash(r, "error", "That invitation was sent to a different email address")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	case err != nil:
		h.logger.Error("accept invitation", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetSchool(strconv.FormatInt(schoolID, 10))
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome aboard"})
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data staffPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Staff",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/staff.html", viewData); err != nil {
		h.logger.Error("render staff page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
