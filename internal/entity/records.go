package entity

import "encoding/json"

// ProductItem is one scraped product from the stage-1 dataset. The scraper
// reports the seller either as a flat sellerId or as a nested seller object,
// so both forms are kept and resolved through SellerID().
type ProductItem struct {
	Title      string   `json:"title,omitempty"`
	URL        string   `json:"url,omitempty"`
	ASIN       string   `json:"asin,omitempty"`
	Brand      string   `json:"brand,omitempty"`
	InStock    *bool    `json:"inStock,omitempty"`
	Price      *Price   `json:"price,omitempty"`
	Categories []string `json:"categories,omitempty"`

	SellerIDField     string        `json:"sellerId,omitempty"`
	Seller            *SellerHandle `json:"seller,omitempty"`
	SellerProfileURL  string        `json:"sellerProfileUrl,omitempty"`
	SellerStorefront  string        `json:"sellerStorefrontUrl,omitempty"`
	SellerIDSource    string        `json:"sellerIdSource,omitempty"`
}

type Price struct {
	Value    *float64 `json:"value"`
	Currency *string  `json:"currency"`
}

type SellerHandle struct {
	Name       string `json:"name,omitempty"`
	ID         string `json:"id,omitempty"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

// SellerID resolves the seller identifier with a fixed priority: the flat
// field wins over the nested handle. Empty string means no seller.
func (p *ProductItem) SellerID() string {
	if p == nil {
		return ""
	}
	if p.SellerIDField != "" {
		return p.SellerIDField
	}
	if p.Seller != nil {
		return p.Seller.ID
	}
	return ""
}

// BestURL picks the URL to derive a marketplace domain from: product URL
// first, then the flat seller profile URL, then the nested handle's.
func (p *ProductItem) BestURL() string {
	if p == nil {
		return ""
	}
	if p.URL != "" {
		return p.URL
	}
	if p.SellerProfileURL != "" {
		return p.SellerProfileURL
	}
	if p.Seller != nil {
		return p.Seller.ProfileURL
	}
	return ""
}

// SellerDetail is one scraped seller profile from the stage-2 dataset.
// SellerDetails is a free-form key/value block (business address, VAT
// number, ...); FeedbackSummary is kept raw because its shape varies
// between marketplaces.
type SellerDetail struct {
	SellerID         string            `json:"sellerId"`
	DomainCode       string            `json:"domainCode,omitempty"`
	SellerName       *string           `json:"sellerName,omitempty"`
	StorefrontURL    *string           `json:"storefrontUrl,omitempty"`
	Rating           *float64          `json:"rating,omitempty"`
	PercentageRating *float64          `json:"percentageRating,omitempty"`
	CountRating      *float64          `json:"countRating,omitempty"`
	AboutSeller      *string           `json:"aboutSeller,omitempty"`
	SellerDetails    map[string]string `json:"sellerDetails,omitempty"`
	FeedbackSummary  json.RawMessage   `json:"feedbackSummary,omitempty"`
}
