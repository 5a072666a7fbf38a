package image

import (
	"fmt"
	"regexp"
	"strings"
)

// textURLPattern matches bare image URLs inside free text. Only URLs ending
// in a known image extension qualify here; the looser "contains image"
// heuristic of IsImageURL would match far too much inside prose.
var textURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"']+?\.(?:png|jpg|jpeg|gif|bmp|webp|svg)(\?[^\s<>"']*)?`)

// ExtractURLsFromText scans free text for image URLs. Results keep first
// occurrence order with duplicates removed.
func ExtractURLsFromText(text string) []string {
	if text == "" {
		return nil
	}

	matches := textURLPattern.FindAllString(text, -1)

	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, u := range matches {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// AutoConvertURLs wraps bare image URLs found in text with <img> tags so
// TAPD renders them inline. Text that already contains image markup is
// returned untouched to avoid double-wrapping a URL that is already inside
// an <img src="..."> tag.
func AutoConvertURLs(text string) string {
	if text == "" {
		return text
	}
	if strings.Contains(text, "<img") && strings.Contains(text, "src=") {
		return text
	}

	return textURLPattern.ReplaceAllStringFunc(text, func(url string) string {
		return fmt.Sprintf(`<img src="%s" alt="image" style="max-width: %s;" />`, url, defaultMaxWidth)
	})
}
