package rbac

import (
	"net/http"

	"github.com/akada-sms/akada/internal/platform/httpx"
	"github.com/akada-sms/akada/internal/shared"
)

// DenyKind classifies why a guarded request was refused.
type DenyKind string

const (
	DenyNotAuthenticated  DenyKind = "not_authenticated"
	DenyNoSchool          DenyKind = "no_school"
	DenyNoMembership      DenyKind = "no_membership"
	DenyMissingCapability DenyKind = "missing_capability"
	DenyRoleMismatch      DenyKind = "role_mismatch"
	DenyNotFound          DenyKind = "not_found"
)

// Outcome is the result of a guard decision.
type Outcome struct {
	Allowed bool
	Kind    DenyKind
	Message string
}

// Allow marks the operation as permitted.
func Allow() Outcome {
	return Outcome{Allowed: true}
}

// Deny refuses the operation with a reason.
func Deny(kind DenyKind, message string) Outcome {
	return Outcome{Kind: kind, Message: message}
}

// Redirect targets per deny kind.
const (
	loginPath           = "/auth/login"
	schoolSelectionPath = "/schools/select"
	dashboardPath       = "/dashboard"
)

type denyPayload struct {
	Error string   `json:"error"`
	Kind  DenyKind `json:"kind,omitempty"`
}

// Translator maps deny outcomes onto transport responses: a JSON error for
// HTMX and programmatic clients, a flash message plus redirect for browsers.
type Translator struct {
	// OnDeny, when set, observes every refused request, e.g. for metrics.
	OnDeny func(kind DenyKind)
}

// IsPartialRequest reports whether the client expects a structured error
// instead of a redirect.
func IsPartialRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return r.Header.Get("Accept") == "application/json"
}

// Respond writes the transport response for a deny outcome. Allowed outcomes
// produce no output; the guard invokes the wrapped handler instead.
func (t Translator) Respond(w http.ResponseWriter, r *http.Request, o Outcome) {
	if o.Allowed {
		return
	}
	if t.OnDeny != nil {
		t.OnDeny(o.Kind)
	}

	if IsPartialRequest(r) {
		status := http.StatusForbidden
		if o.Kind == DenyNoSchool || o.Kind == DenyNoMembership {
			status = http.StatusBadRequest
		}
		httpx.JSON(w, status, denyPayload{Error: o.Message, Kind: o.Kind})
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		kind := "error"
		if o.Kind == DenyNoSchool || o.Kind == DenyNoMembership {
			kind = "warning"
		}
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: o.Message})
	}

	http.Redirect(w, r, t.target(o.Kind), http.StatusSeeOther)
}

func (t Translator) target(kind DenyKind) string {
	switch kind {
	case DenyNotAuthenticated:
		return loginPath
	case DenyNoSchool, DenyNoMembership:
		return schoolSelectionPath
	default:
		return dashboardPath
	}
}
