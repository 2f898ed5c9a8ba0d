// Package marketplace maps product/seller URLs to Amazon domain codes and
// builds storefront URLs from relative paths.
package marketplace

import (
	"net/url"
	"regexp"
	"strings"
)

const DefaultDomainCode = "com"

var domainRe = regexp.MustCompile(`(?i)amazon\.([a-z.]+)`)

// DomainCodeFromURL derives the marketplace domain code ("com", "co.uk",
// "de", ...) from a product or seller URL. Unrecognized or unparsable input
// falls back to the default; the function never fails.
func DomainCodeFromURL(rawurl string) string {
	if rawurl == "" {
		return DefaultDomainCode
	}
	u, err := url.Parse(rawurl)
	if err != nil || u.Hostname() == "" {
		return DefaultDomainCode
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "amazon.co.uk"):
		return "co.uk"
	case strings.HasSuffix(host, "amazon.de"):
		return "de"
	case strings.HasSuffix(host, "amazon.com"):
		return "com"
	}
	if m := domainRe.FindStringSubmatch(host); m != nil {
		return m[1]
	}
	return DefaultDomainCode
}

// StoreURL resolves a seller's storefront path against its marketplace.
// Absolute URLs pass through verbatim; relative paths get the marketplace
// host prefixed.
func StoreURL(storefront, domainCode string) string {
	if storefront == "" {
		return ""
	}
	if strings.HasPrefix(storefront, "http://") || strings.HasPrefix(storefront, "https://") {
		return storefront
	}
	if domainCode == "" {
		domainCode = DefaultDomainCode
	}
	path := storefront
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "https://www.amazon." + domainCode + path
}
