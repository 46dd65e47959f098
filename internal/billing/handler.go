package billing

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

// Handler serves invoice pages.
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

// MountRoutes registers invoice routes. The caller guards them with the
// finance capability.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.listInvoices)
	r.Post("/invoices", h.handleIssue)
}

// MountDetailRoutes registers routes addressing a single invoice.
func (h *Handler) MountDetailRoutes(r chi.Router) {
	r.Get("/", h.showInvoice)
	r.Post("/settle", h.handleSettle)
	r.Post("/void", h.handleVoid)
}

// OwnershipLookup adapts the service for access checks on invoice routes.
func (h *Handler) OwnershipLookup() rbac.ResourceLookup {
	return h.service.SchoolOf
}

type listPageData struct {
	Invoices   []Invoice
	Pagination shared.Pagination
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	schoolID := rbac.SchoolFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	list, pagination, err := h.service.ListInvoices(r.Context(), schoolID, page)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/billing.html", "Invoices", listPageData{Invoices: list, Pagination: pagination})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	schoolID := rbac.SchoolFromContext(r.Context())

	studentID, err := strconv.ParseInt(r.PostFormValue("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	amountMinor, err := parseAmount(r.PostFormValue("amount"))
	if err != nil {
		h.flash(r, "error", "Invalid amount")
		http.Redirect(w, r, "/billing/invoices", http.StatusSeeOther)
		return
	}

	inv := Invoice{
		SchoolID:    schoolID,
		StudentID:   studentID,
		Description: strings.TrimSpace(r.PostFormValue("description")),
		AmountMinor: amountMinor,
	}
	if raw := r.PostFormValue("due_date"); raw != "" {
		if due, derr := time.Parse("2006-01-02", raw); derr == nil {
			inv.DueDate = &due
		}
	}

	if _, err := h.service.Issue(r.Context(), inv); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flash(r, "error", "Unknown student")
		} else {
			h.logger.Warn("issue invoice rejected", slog.Any("error", err))
			h.flash(r, "error", "Could not issue invoice")
		}
		http.Redirect(w, r, "/billing/invoices", http.StatusSeeOther)
		return
	}

	h.flash(r, "success", "Invoice issued")
	http.Redirect(w, r, "/billing/invoices", http.StatusSeeOther)
}

type detailPageData struct {
	Invoice Invoice
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/invoice_detail.html", "Invoice "+inv.Number, detailPageData{Invoice: inv})
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	if err := h.service.Settle(r.Context(), inv.ID, inv.SchoolID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flash(r, "error", "Invoice is not open")
		} else {
			h.logger.Error("settle invoice", slog.Any("error", err))
			h.flash(r, "error", "Could not settle invoice")
		}
	} else {
		h.flash(r, "success", "Invoice settled")
	}
	http.Redirect(w, r, "/billing/invoices/"+strconv.FormatInt(inv.ID, 10), http.StatusSeeOther)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	if err := h.service.Void(r.Context(), inv.ID, inv.SchoolID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.flash(r, "error", "Invoice is not open")
		} else {
			h.logger.Error("void invoice", slog.Any("error", err))
			h.flash(r, "error", "Could not void invoice")
		}
	} else {
		h.flash(r, "success", "Invoice voided")
	}
	http.Redirect(w, r, "/billing/invoices", http.StatusSeeOther)
}

func (h *Handler) loadInvoice(w http.ResponseWriter, r *http.Request) (Invoice, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return Invoice{}, false
	}
	schoolID := rbac.SchoolFromContext(r.Context())
	inv, err := h.service.GetInvoice(r.Context(), id, schoolID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			http.NotFound(w, r)
			return Invoice{}, false
		}
		h.logger.Error("load invoice", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return Invoice{}, false
	}
	return inv, true
}

// parseAmount converts a "1250.50" style form value to minor units.
func parseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, errors.New("billing: amount must be positive")
	}
	return int64(value*100 + 0.5), nil
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
		h.logger.Error("render billing page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
