// Package image recognizes, extracts and renders image references found in
// bitable record values and free text.
package image

import (
	"regexp"
	"strings"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".svg"}

// attachmentURLKeys is the fixed preference order for resolving a remote
// location out of an attachment object.
var attachmentURLKeys = []string{"url", "file_url", "src", "tmp_url"}

var urlSeparators = regexp.MustCompile(`[,;\n]+`)

// keyGetter is satisfied by ticket.Record, so attachment objects decoded
// from webhook payloads resolve without converting back to plain maps.
type keyGetter interface {
	Get(key string) (any, bool)
}

// ExtractURLs pulls image URLs out of a record value of unknown shape:
// a single URL string, a comma/semicolon/newline separated string, a list
// of URL strings or attachment objects, or a single attachment object.
// Unknown shapes yield nothing. Input order is preserved and duplicates
// are kept.
func ExtractURLs(value any) []string {
	var urls []string

	switch v := value.(type) {
	case string:
		for _, part := range urlSeparators.Split(v, -1) {
			u := strings.TrimSpace(part)
			if u != "" && IsImageURL(u) {
				urls = append(urls, u)
			}
		}

	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				if IsImageURL(it) {
					urls = append(urls, it)
				}
			default:
				if u := attachmentURL(it); u != "" && IsImageURL(u) {
					urls = append(urls, u)
				}
			}
		}

	default:
		if u := attachmentURL(v); u != "" && IsImageURL(u) {
			urls = append(urls, u)
		}
	}

	return urls
}

// IsImageURL reports whether a URL plausibly points at an image: it must be
// http(s), and either end with a known image extension (query string
// stripped, case-insensitive) or contain "image" anywhere in the lowered
// URL. The substring check intentionally over-accepts so CDN links without
// a clean extension still make it into the ticket.
func IsImageURL(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}

	lower := strings.ToLower(url)
	if i := strings.Index(lower, "?"); i >= 0 {
		lower = lower[:i]
	}

	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return strings.Contains(lower, "image")
}

// attachmentURL resolves the first present, non-empty string among the
// candidate URL keys of an attachment object. Non-object values resolve to
// the empty string.
func attachmentURL(value any) string {
	switch obj := value.(type) {
	case keyGetter:
		for _, key := range attachmentURLKeys {
			if v, ok := obj.Get(key); ok {
				if s, ok := v.(string); ok && s != "" {
					return s
				}
			}
		}
	case map[string]any:
		for _, key := range attachmentURLKeys {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
