package image

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// feishuDomains are CDN hosts that require browser-like headers and, for
// private files, a tenant access token.
var feishuDomains = []string{
	"feishu.cn",
	"feishu-boe.cn",
	"feishucdn.com",
	"pstatp.com",
	"larksuite.com",
	"larkoffice.com",
}

var contentTypeExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/gif":     ".gif",
	"image/bmp":     ".bmp",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// TokenSource supplies a bearer token for fetching private Feishu images.
// May return an empty token when none is configured.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Downloader fetches extracted image URLs to local files so they can be
// re-uploaded to TAPD as attachments.
type Downloader struct {
	client *http.Client
	tokens TokenSource
}

func NewDownloader(tokens TokenSource) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
	}
}

// DownloadResult reports the outcome of one fetch.
type DownloadResult struct {
	URL       string
	LocalPath string
	Err       error
}

// Download fetches one image to dir (the system temp dir when empty) and
// returns the local file path.
func (d *Downloader) Download(ctx context.Context, imageURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	// Feishu's CDN rejects bare clients without browser headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")

	if isFeishuURL(imageURL) {
		req.Header.Set("Referer", "https://www.feishu.cn/")
		req.Header.Set("Origin", "https://www.feishu.cn")
		if d.tokens != nil {
			token, err := d.tokens.Token(ctx)
			if err != nil {
				slog.WarnContext(ctx, "fetching feishu token for image download", "error", err)
			} else if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fetching image: status %d: %s", resp.StatusCode, string(body))
	}

	if dir == "" {
		dir = os.TempDir()
	}

	ext := extensionFor(resp.Header.Get("Content-Type"), imageURL)
	path := filepath.Join(dir, fmt.Sprintf("bridge_img_%d%s", urlHash(imageURL), ext))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// DownloadAll fetches every URL, continuing past individual failures.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, dir string) []DownloadResult {
	results := make([]DownloadResult, 0, len(urls))
	for _, u := range urls {
		path, err := d.Download(ctx, u, dir)
		if err != nil {
			slog.WarnContext(ctx, "image download failed", "url", u, "error", err)
		}
		results = append(results, DownloadResult{URL: u, LocalPath: path, Err: err})
	}
	return results
}

func isFeishuURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, domain := range feishuDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func extensionFor(contentType, imageURL string) string {
	mainType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if ext, ok := contentTypeExtensions[mainType]; ok {
		return ext
	}

	lower := strings.ToLower(imageURL)
	if i := strings.Index(lower, "?"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ".png"
}

func urlHash(u string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(u))
	return h.Sum32()
}
