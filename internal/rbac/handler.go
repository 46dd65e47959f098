package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akada-sms/akada/internal/platform/httpx"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/view"
)

// Handler wires HTTP endpoints for role and membership administration.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	evaluator   *Evaluator
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, evaluator *Evaluator, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		evaluator:   evaluator,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers role administration routes relative to the mount
// point. The caller is expected to wrap them with the manage_roles guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showRoles)
	r.Post("/", h.handleCreateRole)
	r.Post("/{roleID}", h.handleUpdateRole)
	r.Post("/{roleID}/delete", h.handleDeleteRole)
	r.Post("/memberships", h.handleAssign)
	r.Post("/memberships/{membershipID}/reassign", h.handleReassign)
	r.Post("/memberships/{membershipID}/remove", h.handleRemove)
}

// MountAPIRoutes registers JSON endpoints used by partial updates.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Get("/capabilities", h.handleCapabilities)
}

type roleForm struct {
	Name        string `validate:"required,min=2,max=100"`
	Description string `validate:"max=500"`
}

type rolesPageData struct {
	Roles        []Role
	Memberships  []Membership
	Capabilities []Capability
}

func (h *Handler) showRoles(w http.ResponseWriter, r *http.Request) {
	schoolID := SchoolFromContext(r.Context())
	roles, err := h.service.ListRoles(r.Context(), schoolID)
	if err != nil {
		h.renderError(w, r, err, "list roles")
		return
	}
	memberships, err := h.service.ListMemberships(r.Context(), schoolID)
	if err != nil {
		h.renderError(w, r, err, "list memberships")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       "Roles",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data: rolesPageData{
			Roles:        roles,
			Memberships:  memberships,
			Capabilities: Capabilities(),
		},
	}
	if err := h.templates.Render(w, "pages/roles.html", data); err != nil {
		h.logger.Error("render roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := roleForm{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.flashAndBack(w, r, "error", "Role name must be between 2 and 100 characters.")
		return
	}

	role := Role{
		SchoolID:    SchoolFromContext(r.Context()),
		Name:        form.Name,
		Description: form.Description,
		Permissions: splitTokens(r.PostFormValue("permissions")),
	}
	applyCapabilityFlags(&role, r.PostForm["capabilities"])

	if _, err := h.service.CreateRole(r.Context(), role); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			h.flashAndBack(w, r, "error", "A role with this name already exists.")
			return
		}
		h.renderError(w, r, err, "create role")
		return
	}
	h.flashAndBack(w, r, "success", "Role created.")
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role, err := h.service.GetRole(r.Context(), roleID)
	if err != nil {
		h.renderError(w, r, err, "load role")
		return
	}
	if role.SchoolID != SchoolFromContext(r.Context()) {
		h.flashAndBack(w, r, "error", "Not found or access denied.")
		return
	}

	role.Name = r.PostFormValue("name")
	role.Description = r.PostFormValue("description")
	role.Permissions = splitTokens(r.PostFormValue("permissions"))
	applyCapabilityFlags(&role, r.PostForm["capabilities"])

	if _, err := h.service.UpdateRole(r.Context(), role); err != nil {
		h.renderError(w, r, err, "update role")
		return
	}
	h.flashAndBack(w, r, "success", "Role updated.")
}

func (h *Handler) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	role, err := h.service.GetRole(r.Context(), roleID)
	if err != nil {
		h.renderError(w, r, err, "load role")
		return
	}
	if role.SchoolID != SchoolFromContext(r.Context()) || role.IsSystemRole {
		h.flashAndBack(w, r, "error", "This role cannot be removed.")
		return
	}
	if err := h.service.DeactivateRole(r.Context(), roleID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flashAndBack(w, r, "error", "Role still has active members.")
			return
		}
		h.renderError(w, r, err, "delete role")
		return
	}
	h.flashAndBack(w, r, "success", "Role removed.")
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	userID, _ := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
	roleID, _ := strconv.ParseInt(r.PostFormValue("role_id"), 10, 64)
	if userID <= 0 || roleID <= 0 {
		h.flashAndBack(w, r, "error", "User and role are required.")
		return
	}
	if _, err := h.service.AssignRole(r.Context(), userID, SchoolFromContext(r.Context()), roleID); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			h.flashAndBack(w, r, "error", "This user already has a role in this school.")
			return
		}
		h.renderError(w, r, err, "assign role")
		return
	}
	h.flashAndBack(w, r, "success", "Role assigned.")
}

func (h *Handler) handleReassign(w http.ResponseWriter, r *http.Request) {
	membershipID, err := strconv.ParseInt(chi.URLParam(r, "membershipID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	roleID, _ := strconv.ParseInt(r.PostFormValue("role_id"), 10, 64)
	if roleID <= 0 {
		h.flashAndBack(w, r, "error", "A role is required.")
		return
	}
	if err := h.service.ReassignRole(r.Context(), SchoolFromContext(r.Context()), membershipID, roleID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flashAndBack(w, r, "error", "Not found or access denied.")
			return
		}
		h.renderError(w, r, err, "reassign membership")
		return
	}
	h.flashAndBack(w, r, "success", "Role changed.")
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	membershipID, err := strconv.ParseInt(chi.URLParam(r, "membershipID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveMembership(r.Context(), SchoolFromContext(r.Context()), membershipID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flashAndBack(w, r, "error", "Not found or access denied.")
			return
		}
		h.renderError(w, r, err, "remove membership")
		return
	}
	h.flashAndBack(w, r, "success", "Membership removed.")
}

// handleCapabilities serves the granted capability list for the current user,
// used by partial updates to show or hide controls. It exercises the same
// evaluator the guard enforces with, so display and enforcement never drift.
func (h *Handler) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	granted, err := h.evaluator.GrantedCapabilities(r.Context(), p, SchoolFromContext(r.Context()))
	if err != nil {
		h.logger.Error("granted capabilities", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"capabilities": granted})
}

func (h *Handler) flashAndBack(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/roles", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error, op string) {
	h.logger.Error(op, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func splitTokens(raw string) []string {
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func applyCapabilityFlags(role *Role, selected []string) {
	chosen := make(map[Capability]bool, len(selected))
	for _, s := range selected {
		chosen[Capability(s)] = true
	}
	role.CanManageRoles = chosen[CapManageRoles]
	role.CanManageStaff = chosen[CapManageStaff]
	role.CanManageStudents = chosen[CapManageStudents]
	role.CanManageAcademics = chosen[CapManageAcademics]
	role.CanManageFinances = chosen[CapManageFinances]
	role.CanViewReports = chosen[CapViewReports]
	role.CanCommunicate = chosen[CapCommunicate]
	role.CanManageAttendance = chosen[CapManageAttendance]
}
