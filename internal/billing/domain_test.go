package billing

import (
	"testing"

	_ "github.com/akada-sms/akada/testing"
)

func TestAmountDisplay(t *testing.T) {
	cases := []struct {
		name  string
		minor int64
		want  string
	}{
		{"whole amount", 125000, "₦1,250.00"},
		{"with kobo", 125050, "₦1,250.50"},
		{"below one naira", 50, "₦0.50"},
		{"large amount", 1234567890, "₦12,345,678.90"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := Invoice{AmountMinor: tc.minor}
			if got := inv.AmountDisplay(); got != tc.want {
				t.Fatalf("AmountDisplay() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"1250.50", 125050},
		{"1,250.50", 125050},
		{" 100 ", 10000},
		{"0.5", 50},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.raw)
		if err != nil {
			t.Fatalf("parseAmount(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseAmount(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"", "abc", "0", "-10"} {
		if _, err := parseAmount(raw); err == nil {
			t.Fatalf("parseAmount(%q) should fail", raw)
		}
	}
}
