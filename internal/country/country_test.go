package country_test

import (
	"testing"

	"seller-export-service/internal/country"
)

func TestIsAllowed(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"US", true},
		{"USA", true},
		{"United States", true},
		{"U.S.A", true},
		{"united kingdom (uk)", true},
		{"UNITED KINGDOM OF GREAT BRITAIN AND NORTHERN IRELAND", true},
		{"England", true},
		{"Northern Ireland", true},
		{"London UK", true},
		{"Springfield United Kingdom", false},
		{"Germany", false},
		{"FR", false},
		{"", false},
		{"   ", false},
	}
	for _, tc := range cases {
		if got := country.IsAllowed(tc.in); got != tc.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsAllowedStable(t *testing.T) {
	for _, in := range []string{"US", "Germany", "united kingdom (uk)", ""} {
		first := country.IsAllowed(in)
		second := country.IsAllowed(in)
		if first != second {
			t.Fatalf("IsAllowed(%q) not stable: %v then %v", in, first, second)
		}
	}
}

func TestFromBusinessAddress(t *testing.T) {
	got := country.FromBusinessAddress(map[string]string{
		"Business Address": "123 Main St|Springfield, IL|United States",
	})
	if got != "United States" {
		t.Fatalf("expected %q, got %q", "United States", got)
	}

	got = country.FromBusinessAddress(map[string]string{
		"business address:": "Flat 2, 10 High St, London, UK",
	})
	if got != "UK" {
		t.Fatalf("expected %q, got %q", "UK", got)
	}
}

func TestFromBusinessAddressFullwidthColon(t *testing.T) {
	got := country.FromBusinessAddress(map[string]string{
		"Business Address：": "1-2-3 Ginza|Tokyo|Japan.",
	})
	if got != "Japan" {
		t.Fatalf("expected %q, got %q", "Japan", got)
	}
}

func TestFromBusinessAddressMissing(t *testing.T) {
	if got := country.FromBusinessAddress(nil); got != "" {
		t.Fatalf("nil details: expected empty, got %q", got)
	}
	if got := country.FromBusinessAddress(map[string]string{"VAT number": "GB123"}); got != "" {
		t.Fatalf("no address key: expected empty, got %q", got)
	}
	if got := country.FromBusinessAddress(map[string]string{"Business Address": "   "}); got != "" {
		t.Fatalf("blank address: expected empty, got %q", got)
	}
}

func TestExtractThenClassify(t *testing.T) {
	details := map[string]string{
		"Business Address": "742 Evergreen Terrace|Springfield|U.S.A.",
	}
	if !country.IsAllowed(country.FromBusinessAddress(details)) {
		t.Fatal("expected US address to be allowed")
	}

	details = map[string]string{
		"Business Address": "Hauptstrasse 5|Berlin|Germany",
	}
	if country.IsAllowed(country.FromBusinessAddress(details)) {
		t.Fatal("expected German address to be rejected")
	}
}
