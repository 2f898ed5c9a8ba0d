package merge_test

import (
	"encoding/json"
	"testing"

	"seller-export-service/internal/entity"
	"seller-export-service/internal/merge"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool      { return &b }

func TestRowsOnePerProductInOrder(t *testing.T) {
	products := []entity.ProductItem{
		{Title: "Lamp A", ASIN: "B00A", SellerIDField: "S1", URL: "https://www.amazon.com/dp/B00A"},
		{Title: "Lamp B", ASIN: "B00B", URL: "https://www.amazon.co.uk/dp/B00B"},
		{Title: "Lamp C", ASIN: "B00C", Seller: &entity.SellerHandle{ID: "S2"}},
	}
	sellers := []entity.SellerDetail{
		{SellerID: "S1", DomainCode: "com", SellerName: strPtr("Alpha Traders")},
	}

	rows := merge.Rows(products, sellers)
	if len(rows) != len(products) {
		t.Fatalf("expected %d rows, got %d", len(products), len(rows))
	}
	for i, r := range rows {
		if r.Title != products[i].Title || r.ASIN != products[i].ASIN {
			t.Fatalf("row %d product fields changed: %+v", i, r)
		}
	}
}

func TestRowsJoin(t *testing.T) {
	products := []entity.ProductItem{
		{Title: "Matched", SellerIDField: "S1", URL: "https://www.amazon.com/dp/1", Price: &entity.Price{Value: f64Ptr(19.99), Currency: strPtr("USD")}, InStock: boolPtr(true)},
		{Title: "Unmatched", SellerIDField: "S9", URL: "https://www.amazon.com/dp/2"},
	}
	sellers := []entity.SellerDetail{
		{
			SellerID:         "S1",
			DomainCode:       "com",
			SellerName:       strPtr("Alpha Traders"),
			Rating:           f64Ptr(4.7),
			PercentageRating: f64Ptr(96),
			CountRating:      f64Ptr(1234),
			AboutSeller:      strPtr("We sell lamps."),
			StorefrontURL:    strPtr("/s?me=S1"),
		},
	}

	rows := merge.Rows(products, sellers)

	m := rows[0]
	if m.SellerName == nil || *m.SellerName != "Alpha Traders" {
		t.Fatalf("matched row seller name: %+v", m.SellerName)
	}
	if m.Rating == nil || *m.Rating != 4.7 {
		t.Fatalf("matched row rating: %+v", m.Rating)
	}
	if m.Price == nil || *m.Price != 19.99 || m.Currency == nil || *m.Currency != "USD" {
		t.Fatalf("price/currency not carried: %+v", m)
	}
	if m.StoreURL != "https://www.amazon.com/s?me=S1" {
		t.Fatalf("store url synthesis: %q", m.StoreURL)
	}

	u := rows[1]
	if u.Seller != nil {
		t.Fatal("unmatched row should have no seller")
	}
	if u.SellerName != nil || u.Rating != nil || u.AboutSeller != nil {
		t.Fatalf("unmatched row seller fields should be nil: %+v", u)
	}
	if u.SellerID != "S9" {
		t.Fatalf("unmatched row keeps resolved seller id, got %q", u.SellerID)
	}
}

func TestRowsDirectFieldBeatsNested(t *testing.T) {
	products := []entity.ProductItem{
		{SellerIDField: "DIRECT", Seller: &entity.SellerHandle{ID: "NESTED"}},
	}
	rows := merge.Rows(products, nil)
	if rows[0].SellerID != "DIRECT" {
		t.Fatalf("expected direct field to win, got %q", rows[0].SellerID)
	}
}

func TestRowsDuplicateSellersLastWins(t *testing.T) {
	products := []entity.ProductItem{{SellerIDField: "S1"}}
	sellers := []entity.SellerDetail{
		{SellerID: "S1", SellerName: strPtr("First")},
		{SellerID: "S1", SellerName: strPtr("Second")},
	}
	rows := merge.Rows(products, sellers)
	if rows[0].SellerName == nil || *rows[0].SellerName != "Second" {
		t.Fatalf("expected last seller to win, got %+v", rows[0].SellerName)
	}
}

func TestRowsDomainCodeFallsBackToURL(t *testing.T) {
	products := []entity.ProductItem{
		{SellerIDField: "S1", URL: "https://www.amazon.co.uk/dp/1"},
		{SellerIDField: "S2"},
	}
	sellers := []entity.SellerDetail{
		{SellerID: "S2", DomainCode: "de"},
	}
	rows := merge.Rows(products, sellers)
	if rows[0].DomainCode != "co.uk" {
		t.Fatalf("unmatched seller: domain code from URL, got %q", rows[0].DomainCode)
	}
	if rows[1].DomainCode != "de" {
		t.Fatalf("matched seller's stored code wins, got %q", rows[1].DomainCode)
	}
}

func TestFeedbackCounts(t *testing.T) {
	summary := json.RawMessage(`{
		"thirtyDays":   {"oneStar": 1, "twoStar": "2", "threeStar": "1,250", "fourStar": 4, "fiveStar": 5},
		"NinetyDays":   {"oneStar": 10, "fiveStar": "50"},
		"twelveMonths": {"threeStar": null, "fourStar": "n/a"},
		"lifetime":     {"fiveStar": 99999}
	}`)
	products := []entity.ProductItem{{SellerIDField: "S1"}}
	sellers := []entity.SellerDetail{{SellerID: "S1", FeedbackSummary: summary}}

	fb := merge.Rows(products, sellers)[0].Feedback

	want30 := []int64{1, 2, 1250, 4, 5}
	for i, w := range want30 {
		if fb[0][i] == nil || *fb[0][i] != w {
			t.Fatalf("30d star %d: got %v, want %d", i+1, fb[0][i], w)
		}
	}
	if fb[1][0] == nil || *fb[1][0] != 10 {
		t.Fatalf("90d one-star (case-insensitive window key): got %v", fb[1][0])
	}
	if fb[1][4] == nil || *fb[1][4] != 50 {
		t.Fatalf("90d five-star numeric string: got %v", fb[1][4])
	}
	if fb[1][1] != nil {
		t.Fatal("90d two-star absent: expected nil")
	}
	if fb[2][2] != nil || fb[2][3] != nil {
		t.Fatal("null and unparseable values should stay nil")
	}
	if fb[3][4] == nil || *fb[3][4] != 99999 {
		t.Fatalf("lifetime five-star: got %v", fb[3][4])
	}
}

func TestRowsMalformedFeedbackSummary(t *testing.T) {
	products := []entity.ProductItem{{SellerIDField: "S1"}}
	sellers := []entity.SellerDetail{{SellerID: "S1", FeedbackSummary: json.RawMessage(`"just a string"`)}}
	fb := merge.Rows(products, sellers)[0].Feedback
	for wi := range fb {
		for si := range fb[wi] {
			if fb[wi][si] != nil {
				t.Fatalf("malformed summary should yield all nil, got %v at [%d][%d]", *fb[wi][si], wi, si)
			}
		}
	}
}
