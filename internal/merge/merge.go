// Package merge joins the stage-1 product rows with the stage-2 seller
// profiles into flat export rows.
package merge

import (
	"encoding/json"
	"strconv"
	"strings"

	"seller-export-service/internal/entity"
	"seller-export-service/internal/marketplace"
)

// Windows and star tiers of the feedback breakdown, in column order.
var (
	FeedbackWindows = []string{"thirtyDays", "ninetyDays", "twelveMonths", "lifetime"}
	feedbackStars   = []string{"oneStar", "twoStar", "threeStar", "fourStar", "fiveStar"}
)

// Row is one export line: every product field plus the matched seller's
// fields, nil where no seller matched.
type Row struct {
	Title      string
	ASIN       string
	URL        string
	Brand      string
	Price      *float64
	Currency   *string
	InStock    *bool
	Categories string

	SellerID         string
	SellerName       *string
	DomainCode       string
	Rating           *float64
	PercentageRating *float64
	CountRating      *float64
	AboutSeller      *string
	StoreURL         string
	SellerDetails    string

	// Feedback[w][s]: count for window w (30d/90d/12m/lifetime) and star
	// tier s (1..5). nil when absent or unparseable.
	Feedback [4][5]*int64

	// Seller is the matched profile, kept for downstream filtering. Not a
	// spreadsheet column.
	Seller *entity.SellerDetail
}

// Rows joins products with sellers: one output row per product, in product
// order, outer-join semantics. Duplicate seller IDs resolve last-write-wins.
func Rows(products []entity.ProductItem, sellers []entity.SellerDetail) []Row {
	byID := make(map[string]*entity.SellerDetail, len(sellers))
	for i := range sellers {
		if id := sellers[i].SellerID; id != "" {
			byID[id] = &sellers[i]
		}
	}

	rows := make([]Row, 0, len(products))
	for i := range products {
		p := &products[i]
		sellerID := p.SellerID()

		var seller *entity.SellerDetail
		if sellerID != "" {
			seller = byID[sellerID]
		}

		dc := marketplace.DomainCodeFromURL(p.BestURL())
		if seller != nil && seller.DomainCode != "" {
			dc = seller.DomainCode
		}

		row := Row{
			Title:      p.Title,
			ASIN:       p.ASIN,
			URL:        p.URL,
			Brand:      p.Brand,
			InStock:    p.InStock,
			Categories: strings.Join(p.Categories, " > "),
			SellerID:   sellerID,
			DomainCode: dc,
			Seller:     seller,
		}
		if p.Price != nil {
			row.Price = p.Price.Value
			row.Currency = p.Price.Currency
		}
		if seller != nil {
			row.SellerName = seller.SellerName
			row.Rating = seller.Rating
			row.PercentageRating = seller.PercentageRating
			row.CountRating = seller.CountRating
			row.AboutSeller = seller.AboutSeller
			if seller.StorefrontURL != nil {
				row.StoreURL = marketplace.StoreURL(*seller.StorefrontURL, dc)
			}
			if len(seller.SellerDetails) > 0 {
				if raw, err := json.Marshal(seller.SellerDetails); err == nil {
					row.SellerDetails = string(raw)
				}
			}
			row.Feedback = feedbackCounts(seller.FeedbackSummary)
		}
		rows = append(rows, row)
	}
	return rows
}

// feedbackCounts pulls the 4x5 count grid out of the free-form feedback
// summary. Keys match case-insensitively; values may be numbers or numeric
// strings with thousands separators. Anything else stays nil.
func feedbackCounts(raw json.RawMessage) [4][5]*int64 {
	var out [4][5]*int64
	if len(raw) == 0 {
		return out
	}
	var summary map[string]any
	if err := json.Unmarshal(raw, &summary); err != nil {
		return out
	}
	for wi, window := range FeedbackWindows {
		obj, ok := lookupFold(summary, window).(map[string]any)
		if !ok {
			continue
		}
		for si, star := range feedbackStars {
			out[wi][si] = asCount(lookupFold(obj, star))
		}
	}
	return out
}

func lookupFold(obj map[string]any, key string) any {
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func asCount(v any) *int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		return &n
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		s = strings.ReplaceAll(s, " ", "")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}
