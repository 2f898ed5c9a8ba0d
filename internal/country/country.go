// Package country decides which sellers are kept, based on the country
// found in their free-text business address. Only US and UK variants are
// allowed.
package country

import (
	"regexp"
	"strings"
)

var allowed = map[string]struct{}{
	"US": {}, "USA": {}, "UNITED STATES": {}, "UNITED STATES OF AMERICA": {},
	"UK": {}, "GB": {}, "GBR": {}, "UNITED KINGDOM": {}, "GREAT BRITAIN": {},
	"ENGLAND": {}, "SCOTLAND": {}, "WALES": {}, "NORTHERN IRELAND": {},
}

var synonyms = map[string]string{
	"U K": "UK",
	"U S": "US",
	"UNITED KINGDOM OF GREAT BRITAIN AND NORTHERN IRELAND": "UNITED KINGDOM",
}

var (
	spacesRe        = regexp.MustCompile(`\s+`)
	trailingParenRe = regexp.MustCompile(`\([^)]*\)$`)
)

// IsAllowed reports whether a free-text country string names an allowed
// country. It is total: any input, including empty, yields a boolean.
func IsAllowed(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}

	s := trailingParenRe.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if canon, ok := synonyms[s]; ok {
		s = canon
	}
	if _, ok := allowed[s]; ok {
		return true
	}

	// "LONDON UK" style values: judge the last token too. Multi-word
	// country names only match when they are the whole string.
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return false
	}
	_, ok := allowed[tokens[len(tokens)-1]]
	return ok
}

// businessAddressKey matches "Business Address" ignoring case, surrounding
// whitespace and a trailing ASCII or fullwidth colon.
func businessAddressKey(k string) bool {
	k = strings.TrimSpace(strings.ToLower(k))
	k = strings.TrimSuffix(k, ":")
	k = strings.TrimSuffix(k, "：")
	return strings.TrimSpace(k) == "business address"
}

// FromBusinessAddress extracts the country from a seller-details block. The
// address value packs several fields delimited by "|" or, failing that, by
// ","; the last non-empty segment is taken as the country. Returns "" when
// nothing usable is present.
func FromBusinessAddress(details map[string]string) string {
	if details == nil {
		return ""
	}
	var addr string
	var found bool
	for k, v := range details {
		if businessAddressKey(k) {
			addr = v
			found = true
			break
		}
	}
	if !found {
		return ""
	}
	raw := strings.TrimSpace(addr)
	if raw == "" {
		return ""
	}

	base := lastNonEmpty(strings.Split(raw, "|"))
	if base == "" {
		base = raw
	}
	last := lastNonEmpty(strings.Split(base, ","))
	if last == "" {
		last = base
	}

	cleaned := strings.TrimRight(last, " \t")
	cleaned = strings.TrimRight(cleaned, ".,;")
	return strings.TrimSpace(cleaned)
}

func lastNonEmpty(parts []string) string {
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}
