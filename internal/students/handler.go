package students

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/view"
)

// Handler serves the student roster.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrfManager: csrf}
}

// MountRoutes registers student routes. The caller wraps detail routes with
// an ownership check keyed on the studentID parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listStudents)
	r.Post("/", h.handleAdmit)
}

// MountDetailRoutes registers routes addressing a single student.
func (h *Handler) MountDetailRoutes(r chi.Router) {
	r.Get("/", h.showStudent)
	r.Post("/", h.handleUpdate)
	r.Post("/withdraw", h.handleWithdraw)
}

// OwnershipLookup adapts the service for access checks on student routes.
func (h *Handler) OwnershipLookup() rbac.ResourceLookup {
	return h.service.SchoolOf
}

type listPageData struct {
	Students   []Student
	Pagination shared.Pagination
}

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	schoolID := rbac.SchoolFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	list, pagination, err := h.service.ListStudents(r.Context(), schoolID, page)
	if err != nil {
		h.logger.Error("list students", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/students.html", "Students", listPageData{Students: list, Pagination: pagination})
}

func (h *Handler) handleAdmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	schoolID := rbac.SchoolFromContext(r.Context())

	student := Student{
		SchoolID:        schoolID,
		AdmissionNumber: r.PostFormValue("admission_number"),
		FirstName:       r.PostFormValue("first_name"),
		LastName:        r.PostFormValue("last_name"),
		ClassName:       strings.TrimSpace(r.PostFormValue("class_name")),
		GuardianName:    strings.TrimSpace(r.PostFormValue("guardian_name")),
		GuardianPhone:   strings.TrimSpace(r.PostFormValue("guardian_phone")),
	}
	if raw := r.PostFormValue("date_of_birth"); raw != "" {
		if dob, err := time.Parse("2006-01-02", raw); err == nil {
			student.DateOfBirth = &dob
		}
	}

	if _, err := h.service.Admit(r.Context(), student); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			h.flash(r, "error", "Admission number already in use")
		} else {
			h.logger.Warn("admit student rejected", slog.Any("error", err))
			h.flash(r, "error", "Could not enrol student")
		}
		http.Redirect(w, r, "/students", http.StatusSeeOther)
		return
	}

	h.flash(r, "success", "Student enrolled")
	http.Redirect(w, r, "/students", http.StatusSeeOther)
}

type detailPageData struct {
	Student Student
}

func (h *Handler) showStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/student_detail.html", student.FullName(), detailPageData{Student: student})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	student.FirstName = r.PostFormValue("first_name")
	student.LastName = r.PostFormValue("last_name")
	student.ClassName = strings.TrimSpace(r.PostFormValue("class_name"))
	student.GuardianName = strings.TrimSpace(r.PostFormValue("guardian_name"))
	student.GuardianPhone = strings.TrimSpace(r.PostFormValue("guardian_phone"))
	if raw := r.PostFormValue("date_of_birth"); raw != "" {
		if dob, err := time.Parse("2006-01-02", raw); err == nil {
			student.DateOfBirth = &dob
		}
	}

	if err := h.service.Update(r.Context(), student); err != nil {
		h.logger.Warn("update student rejected", slog.Any("error", err))
		h.flash(r, "error", "Could not update student")
	} else {
		h.flash(r, "success", "Student updated")
	}
	http.Redirect(w, r, "/students/"+strconv.FormatInt(student.ID, 10), http.StatusSeeOther)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	if err := h.service.Withdraw(r.Context(), student.ID, student.SchoolID); err != nil {
		h.logger.Warn("withdraw student rejected", slog.Any("error", err))
		h.flash(r, "error", "Could not withdraw student")
	} else {
		h.flash(r, "success", "Student withdrawn")
	}
	http.Redirect(w, r, "/students", http.StatusSeeOther)
}

func (h *Handler) loadStudent(w http.ResponseWriter, r *http.Request) (Student, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return Student{}, false
	}
	schoolID := rbac.SchoolFromContext(r.Context())
	student, err := h.service.GetStudent(r.Context(), id, schoolID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return Student{}, false
		}
		h.logger.Error("load student", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return Student{}, false
	}
	return student, true
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
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
		h.logger.Error("render students page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
