package schools

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/akada-sms/akada/internal/shared"
)

// SubdomainMiddleware detects the tenant from the request host and records it
// as a hint for school resolution. Hosts outside the configured base domain,
// bare base-domain requests and unknown subdomains pass through without a
// hint.
func SubdomainMiddleware(service *Service, baseDomain string, logger *slog.Logger) func(http.Handler) http.Handler {
	baseDomain = strings.ToLower(strings.TrimSpace(baseDomain))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := subdomainOf(r.Host, baseDomain)
			if sub == "" {
				next.ServeHTTP(w, r)
				return
			}

			schoolID, err := service.SchoolIDForSubdomain(r.Context(), sub)
			if err != nil {
				// Losing the hint only degrades to session based
				// resolution, so the request proceeds.
				logger.Warn("subdomain lookup failed",
					slog.String("subdomain", sub),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if schoolID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := shared.ContextWithSchoolHint(r.Context(), schoolID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func subdomainOf(host, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if host == baseDomain {
		return ""
	}
	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	// Nested subdomains are not tenants.
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}
