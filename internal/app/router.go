package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/akada-sms/akada/internal/attendance"
	"github.com/akada-sms/akada/internal/auth"
	"github.com/akada-sms/akada/internal/billing"
	"github.com/akada-sms/akada/internal/observability"
	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/schools"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/staff"
	"github.com/akada-sms/akada/internal/students"
	"github.com/akada-sms/akada/internal/view"
	"github.com/akada-sms/akada/jobs"
	"github.com/akada-sms/akada/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	Guard     *rbac.Guard
	Evaluator *rbac.Evaluator

	AuthHandler       *auth.Handler
	SchoolsHandler    *schools.Handler
	RolesHandler      *rbac.Handler
	StudentsHandler   *students.Handler
	StaffHandler      *staff.Handler
	AttendanceHandler *attendance.Handler
	BillingHandler    *billing.Handler
	JobHandler        *jobs.Handler

	SubdomainMiddleware func(http.Handler) http.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Akada defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		Subdomain:      params.SubdomainMiddleware,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	guard := params.Guard

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated users
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:     "Akada",
			CSRFToken: csrfToken,
			Flash:     flash,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAuthenticated())
		r.Route("/schools", params.SchoolsHandler.MountRoutes)
		r.Route("/invitations", params.StaffHandler.MountAcceptRoute)
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.RequireSchoolContext())
		r.Get("/dashboard", dashboardHandler(params))
	})

	r.Route("/roles", func(r chi.Router) {
		r.Use(guard.RequireCapability(rbac.CapManageRoles))
		params.RolesHandler.MountRoutes(r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(guard.RequireSchoolContext())
		params.RolesHandler.MountAPIRoutes(r)
	})

	r.Route("/students", func(r chi.Router) {
		r.Use(guard.RequireCapability(rbac.CapManageStudents))
		params.StudentsHandler.MountRoutes(r)
		r.Route("/{studentID}", func(r chi.Router) {
			r.Use(guard.RequireSchoolOwnership("studentID", params.StudentsHandler.OwnershipLookup()))
			params.StudentsHandler.MountDetailRoutes(r)
		})
	})

	// Legacy entry point kept for bookmarked admissions links.
	r.With(guard.RequireCapability(rbac.CapManageAdmissions)).
		Get("/admissions", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/students", http.StatusMovedPermanently)
		})

	r.Route("/staff", func(r chi.Router) {
		r.Use(guard.RequireCapability(rbac.CapManageStaff))
		params.StaffHandler.MountRoutes(r)
	})

	r.Route("/attendance", func(r chi.Router) {
		r.Use(guard.RequireCapability(rbac.CapManageAttendance))
		params.AttendanceHandler.MountRoutes(r)
	})

	r.Route("/billing", func(r chi.Router) {
		r.Use(guard.RequireCapability(rbac.CapManageFinances))
		params.BillingHandler.MountRoutes(r)
		r.Route("/invoices/{invoiceID}", func(r chi.Router) {
			r.Use(guard.RequireSchoolOwnership("invoiceID", params.BillingHandler.OwnershipLookup()))
			params.BillingHandler.MountDetailRoutes(r)
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

type dashboardSection struct {
	Path  string
	Label string
}

type dashboardData struct {
	Capabilities []rbac.Capability
	Sections     []dashboardSection
}

// dashboardHandler renders the module navigation filtered to what the user
// may actually open.
func dashboardHandler(params RouterParams) http.HandlerFunc {
	sections := []struct {
		section    dashboardSection
		capability rbac.Capability
	}{
		{dashboardSection{Path: "/students", Label: "Students"}, rbac.CapManageStudents},
		{dashboardSection{Path: "/staff", Label: "Staff"}, rbac.CapManageStaff},
		{dashboardSection{Path: "/attendance", Label: "Attendance"}, rbac.CapManageAttendance},
		{dashboardSection{Path: "/roles", Label: "Roles"}, rbac.CapManageRoles},
		{dashboardSection{Path: "/billing/invoices", Label: "Billing"}, rbac.CapManageFinances},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		principal := rbac.PrincipalFromContext(r.Context())
		schoolID := rbac.SchoolFromContext(r.Context())

		granted, err := params.Evaluator.GrantedCapabilities(r.Context(), principal, schoolID)
		if err != nil {
			params.Logger.Error("load capabilities for dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		grantedSet := make(map[rbac.Capability]struct{}, len(granted))
		for _, c := range granted {
			grantedSet[c] = struct{}{}
		}

		data := dashboardData{Capabilities: granted}
		for _, entry := range sections {
			if _, ok := grantedSet[entry.capability]; ok {
				data.Sections = append(data.Sections, entry.section)
			}
		}

		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		viewData := view.TemplateData{
			Title:       "Dashboard",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
			Data:        data,
		}
		if err := params.Templates.Render(w, "pages/dashboard.html", viewData); err != nil {
			params.Logger.Error("render dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// assets stay cached for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
