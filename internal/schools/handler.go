package schools

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/view"
)

// schoolRememberer persists the user's last selected school.
type schoolRememberer interface {
	RememberSchool(ctx context.Context, userID, schoolID int64) error
}

// Handler serves school selection and onboarding pages.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	users       schoolRememberer
	resolver    *rbac.Resolver
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, users schoolRememberer, resolver *rbac.Resolver, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		users:       users,
		resolver:    resolver,
		templates:   templates,
		csrfManager: csrf,
	}
}

// MountRoutes registers school routes. The caller guards them with an
// authentication check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/select", h.showSelection)
	r.Post("/switch", h.handleSwitch)
	r.Get("/new", h.showOnboarding)
	r.Post("/new", h.handleOnboarding)
}

type schoolChoice struct {
	ID       int64
	Name     string
	RoleName string
}

type selectionPageData struct {
	Schools []schoolChoice
}

func (h *Handler) showSelection(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	options, err := h.service.SchoolsForUser(r.Context(), principal.GetID())
	if err != nil {
		h.logger.Error("list schools for user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	choices := make([]schoolChoice, 0, len(options))
	for _, opt := range options {
		choices = append(choices, schoolChoice{ID: opt.School.ID, Name: opt.School.Name, RoleName: opt.RoleName})
	}

	h.render(w, r, "pages/school_select.html", "Select a school", selectionPageData{Schools: choices})
}

func (h *Handler) handleSwitch(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	schoolID, err := strconv.ParseInt(r.PostFormValue("school_id"), 10, 64)
	if err != nil || schoolID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Switching is only allowed into schools the user is a member of.
	_, ok, err := h.resolver.ResolveMembership(r.Context(), principal.GetID(), schoolID)
	if err != nil {
		h.logger.Error("resolve membership for switch", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !ok && !principal.IsSuperUser() {
		http.Redirect(w, r, "/schools/select", http.StatusSeeOther)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetSchool(strconv.FormatInt(schoolID, 10))
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Switched school"})
	}
	if err := h.users.RememberSchool(r.Context(), principal.GetID(), schoolID); err != nil {
		h.logger.Warn("remember school", slog.Any("error", err))
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

type onboardingForm struct {
	Name      string
	Subdomain string
	Address   string
	Phone     string
	Email     string
}

type onboardingPageData struct {
	Form  onboardingForm
	Error string
}

func (h *Handler) showOnboarding(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/school_new.html", "Register a school", onboardingPageData{})
}

func (h *Handler) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := onboardingForm{
		Name:      strings.TrimSpace(r.PostFormValue("name")),
		Subdomain: strings.TrimSpace(r.PostFormValue("subdomain")),
		Address:   strings.TrimSpace(r.PostFormValue("address")),
		Phone:     strings.TrimSpace(r.PostFormValue("phone")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
	}

	schoolID, err := h.service.Onboard(r.Context(), School{
		Name:      form.Name,
		Subdomain: form.Subdomain,
		Address:   form.Address,
		Phone:     form.Phone,
		Email:     form.Email,
	}, principal.GetID())
	if err != nil {
		h.logger.Warn("school onboarding rejected", slog.Any("error", err))
		w.WriteHeader(http.StatusBadRequest)
		h.render(w, r, "pages/school_new.html", "Register a school", onboardingPageData{Form: form, Error: err.Error()})
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetSchool(strconv.FormatInt(schoolID, 10))
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "School registered"})
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render school page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
