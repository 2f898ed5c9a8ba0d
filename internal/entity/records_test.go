package entity

import "testing"

func TestSellerIDResolution(t *testing.T) {
	cases := []struct {
		name string
		item ProductItem
		want string
	}{
		{"direct field", ProductItem{SellerIDField: "S1"}, "S1"},
		{"nested handle", ProductItem{Seller: &SellerHandle{ID: "S2"}}, "S2"},
		{"direct beats nested", ProductItem{SellerIDField: "S1", Seller: &SellerHandle{ID: "S2"}}, "S1"},
		{"none", ProductItem{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.SellerID(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
	var nilItem *ProductItem
	if got := nilItem.SellerID(); got != "" {
		t.Fatalf("nil item: expected empty, got %q", got)
	}
}

func TestBestURLFallbackChain(t *testing.T) {
	cases := []struct {
		name string
		item ProductItem
		want string
	}{
		{
			"product url first",
			ProductItem{URL: "https://a", SellerProfileURL: "https://b", Seller: &SellerHandle{ProfileURL: "https://c"}},
			"https://a",
		},
		{
			"flat profile url second",
			ProductItem{SellerProfileURL: "https://b", Seller: &SellerHandle{ProfileURL: "https://c"}},
			"https://b",
		},
		{
			"nested handle profile url last",
			ProductItem{Seller: &SellerHandle{ProfileURL: "https://c"}},
			"https://c",
		},
		{"nothing", ProductItem{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.BestURL(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
