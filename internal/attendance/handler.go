package attendance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akada-sms/akada/internal/rbac"
	"github.com/akada-sms/akada/internal/shared"
	"github.com/akada-sms/akada/internal/students"
	"github.com/akada-sms/akada/internal/view"
)

const dateLayout = "2006-01-02"

// rosterSource lists the students a sheet is marked against.
type rosterSource interface {
	ListStudents(ctx context.Context, schoolID int64, page int) ([]students.Student, shared.Pagination, error)
}

// Handler wires HTTP endpoints for daily attendance.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	roster      rosterSource
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roster rosterSource, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, roster: roster, templates: templates, csrfManager: csrf}
}

// MountRoutes registers attendance routes relative to the mount point. The
// caller is expected to wrap them with the manage_attendance guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showSheet)
	r.Post("/", h.handleMark)
}

type sheetRow struct {
	Student students.Student
	Record  *Record
}

type sheetPageData struct {
	Date       string
	Rows       []sheetRow
	Statuses   []Status
	Pagination shared.Pagination
}

func (h *Handler) showSheet(w http.ResponseWriter, r *http.Request) {
	schoolID := rbac.SchoolFromContext(r.Context())

	date := h.service.now().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("date"); raw != "" {
		if parsed, err := time.Parse(dateLayout, raw); err == nil {
			date = parsed
		}
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	roster, pagination, err := h.roster.ListStudents(r.Context(), schoolID, page)
	if err != nil {
		h.renderError(w, err, "list students")
		return
	}
	records, err := h.service.SheetForDate(r.Context(), schoolID, date)
	if err != nil {
		h.renderError(w, err, "load attendance")
		return
	}
	byStudent := make(map[int64]*Record, len(records))
	for i := range records {
		byStudent[records[i].StudentID] = &records[i]
	}

	rows := make([]sheetRow, 0, len(roster))
	for _, s := range roster {
		rows = append(rows, sheetRow{Student: s, Record: byStudent[s.ID]})
	}

	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       "Attendance",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data: sheetPageData{
			Date:       date.Format(dateLayout),
			Rows:       rows,
			Statuses:   Statuses(),
			Pagination: pagination,
		},
	}
	if err := h.templates.Render(w, "pages/attendance.html", data); err != nil {
		h.logger.Error("render attendance", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	studentID, _ := strconv.ParseInt(r.PostFormValue("student_id"), 10, 64)
	rawDate := r.PostFormValue("date")
	date, err := time.Parse(dateLayout, rawDate)
	if err != nil || studentID <= 0 {
		h.flashAndBack(w, r, rawDate, "error", "Student and date are required.")
		return
	}

	rec := Record{
		SchoolID:  rbac.SchoolFromContext(r.Context()),
		StudentID: studentID,
		Date:      date,
		Status:    Status(r.PostFormValue("status")),
		Remarks:   r.PostFormValue("remarks"),
	}
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		rec.RecordedBy = p.GetID()
	}

	if _, err := h.service.Mark(r.Context(), rec); err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			h.flashAndBack(w, r, rawDate, "error", "Unknown attendance status.")
		case errors.Is(err, ErrFutureDate):
			h.flashAndBack(w, r, rawDate, "error", "Attendance cannot be marked for a future date.")
		case errors.Is(err, shared.ErrNotFound):
			h.flashAndBack(w, r, rawDate, "error", "Not found or access denied.")
		default:
			h.renderError(w, err, "mark attendance")
		}
		return
	}
	h.flashAndBack(w, r, rawDate, "success", "Attendance saved.")
}

func (h *Handler) flashAndBack(w http.ResponseWriter, r *http.Request, date, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	target := "/attendance"
	if date != "" {
		target += "?date=" + date
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, err error, op string) {
	h.logger.Error(op, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
