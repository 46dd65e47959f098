package schools

import (
	"testing"

	_ "github.com/akada-sms/akada/testing"
)

func TestSubdomainOf(t *testing.T) {
	cases := []struct {
		name string
		host string
		base string
		want string
	}{
		{"tenant subdomain", "greenfield.akada.test", "akada.test", "greenfield"},
		{"tenant with port", "greenfield.akada.test:8080", "akada.test", "greenfield"},
		{"bare base domain", "akada.test", "akada.test", ""},
		{"uppercase host", "Greenfield.Akada.Test", "akada.test", "greenfield"},
		{"foreign host", "example.com", "akada.test", ""},
		{"nested subdomain", "a.b.akada.test", "akada.test", ""},
		{"suffix lookalike", "notakada.test", "akada.test", ""},
		{"empty base", "greenfield.akada.test", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := subdomainOf(tc.host, tc.base); got != tc.want {
				t.Fatalf("subdomainOf(%q, %q) = %q, want %q", tc.host, tc.base, got, tc.want)
			}
		})
	}
}
