package image

import (
	"fmt"
	"strings"
)

const defaultMaxWidth = "800px"

// ImgTag renders a single image URL as an HTML img element.
func ImgTag(url, alt string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	return fmt.Sprintf(`<img src="%s" alt="%s" style="max-width: %s;" />`, url, alt, defaultMaxWidth)
}

// RenderBlocks renders image URLs as numbered blocks ("Image N:" caption
// followed by the image), joined with line breaks. This is the markup the
// ticket builder appends to descriptions.
func RenderBlocks(urls []string) string {
	if len(urls) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(urls))
	for i, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		alt := fmt.Sprintf("Image %d", i+1)
		blocks = append(blocks, fmt.Sprintf("<p>%s:</p>%s", alt, ImgTag(url, alt)))
	}

	return strings.Join(blocks, "<br/>")
}
