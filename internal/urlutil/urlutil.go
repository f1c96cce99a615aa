package urlutil

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	PageTypeCategory = "category"
	PageTypeProduct  = "product"
	PageTypeOther    = "other"
)

// ErrNoCategoryID is returned when a locator carries no numeric category id.
var ErrNoCategoryID = errors.New("no category id in url")

var (
	categoryIDPattern   = regexp.MustCompile(`catalog/(\d+)`)
	categorySlugPattern = regexp.MustCompile(`catalog/\d+/([^/?#]+)`)
	productIDPattern    = regexp.MustCompile(`product/([^/?#]+)`)
)

// CategoryID extracts the numeric id from a locator such as
// https://www.vprok.ru/catalog/7382/pomidory-i-ovoschnye-nabory.
func CategoryID(raw string) (string, error) {
	m := categoryIDPattern.FindStringSubmatch(raw)
	if len(m) < 2 || m[1] == "" {
		return "", ErrNoCategoryID
	}
	return m[1], nil
}

// CategorySlug returns the human-readable path segment after the category id.
func CategorySlug(raw string) string {
	m := categorySlugPattern.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ProductID returns the product slug of a product link, or "".
func ProductID(href string) string {
	m := productIDPattern.FindStringSubmatch(href)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Resolve makes href absolute against base. mailto/tel links resolve to "".
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil && base != "" {
		u = b.ResolveReference(u)
	}
	if u.Scheme == "" && u.Host != "" {
		u.Scheme = "https"
	}
	return u.String()
}

// SlugTitle turns "pomidory-i-ovoschnye-nabory" into "Pomidory I Ovoschnye Nabory".
func SlugTitle(slug string) string {
	p := strings.TrimSpace(slug)
	if p == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = strings.ReplaceAll(p, "-", " ")
	p = strings.ReplaceAll(p, "_", " ")
	return cases.Title(language.Und).String(strings.Join(strings.Fields(p), " "))
}

func Normalize(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Fragment = ""
	u.Host = normalizeHost(u.Host)
	u.Path = normalizePath(u.Path)
	u.RawQuery = normalizeQuery(u.RawQuery)
	return u.String(), u.Hostname(), nil
}

// DetectPageType classifies a locator as a category listing, a product page or neither.
func DetectPageType(raw string) string {
	normalized, host, err := Normalize(raw)
	if err != nil || host == "" {
		return PageTypeOther
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return PageTypeOther
	}
	segs := splitPath(u.Path)
	for i, seg := range segs {
		switch seg {
		case "product":
			if i+1 < len(segs) {
				return PageTypeProduct
			}
		case "catalog":
			if i+1 < len(segs) && isNumeric(segs[i+1]) {
				return PageTypeCategory
			}
		}
	}
	return PageTypeOther
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	if clean != "/" && strings.HasSuffix(clean, "/") {
		clean = strings.TrimSuffix(clean, "/")
	}
	return clean
}

func normalizeQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	for key := range values {
		lk := strings.ToLower(key)
		if strings.HasPrefix(lk, "utm_") || lk == "gclid" || lk == "fbclid" || lk == "ref" || lk == "source" {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	normalized := url.Values{}
	for _, k := range keys {
		normalized[k] = values[k]
	}
	return normalized.Encode()
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	return parts
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
