package schools

import (
	"context"
	"log/slog"
	"testing"

	_ "github.com/akada-sms/akada/testing"
)

func newValidationService(t *testing.T) *Service {
	t.Helper()
	// Validation failures return before any repository or pool access, so a
	// bare service is enough here.
	return NewService(slog.Default(), nil, nil, nil)
}

func TestOnboardRejectsEmptyName(t *testing.T) {
	svc := newValidationService(t)

	_, err := svc.Onboard(context.Background(), School{Name: "  ", Subdomain: "greenfield"}, 1)
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestOnboardRejectsInvalidSubdomain(t *testing.T) {
	svc := newValidationService(t)

	for _, subdomain := range []string{"", "a", "-leading", "trailing-", "has spaces", "UPPER!"} {
		if _, err := svc.Onboard(context.Background(), School{Name: "Greenfield", Subdomain: subdomain}, 1); err == nil {
			t.Fatalf("expected error for subdomain %q", subdomain)
		}
	}
}

func TestOnboardRejectsReservedSubdomain(t *testing.T) {
	svc := newValidationService(t)

	for _, subdomain := range []string{"www", "api", "admin", "static", "mail", "WWW"} {
		if _, err := svc.Onboard(context.Background(), School{Name: "Greenfield", Subdomain: subdomain}, 1); err == nil {
			t.Fatalf("expected error for reserved subdomain %q", subdomain)
		}
	}
}

func TestSchoolIDForSubdomainSkipsReserved(t *testing.T) {
	svc := newValidationService(t)

	id, err := svc.SchoolIDForSubdomain(context.Background(), "admin")
	if err != nil {
		t.Fatalf("SchoolIDForSubdomain: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected 0 for reserved subdomain, got %d", id)
	}
}

func TestSchoolIDForSubdomainEmpty(t *testing.T) {
	svc := newValidationService(t)

	id, err := svc.SchoolIDForSubdomain(context.Background(), "")
	if err != nil {
		t.Fatalf("SchoolIDForSubdomain: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected 0 for empty subdomain, got %d", id)
	}
}
