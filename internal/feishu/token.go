package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tapdbridge.app/bridge/core/config"
)

const (
	tokenEndpoint = "https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal"

	// refreshMargin renews the token this long before expiry so in-flight
	// downloads never race the deadline.
	refreshMargin = 60 * time.Second

	redisTokenKey = "bridge:feishu:tenant_access_token"
)

// TokenProvider fetches and caches the Feishu tenant access token. The
// cache is in-process; when a Redis client is supplied the token is also
// shared across replicas so each one doesn't burn a fetch on restart.
type TokenProvider struct {
	cfg    config.FeishuConfig
	client *http.Client
	rdb    *redis.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenProvider(cfg config.FeishuConfig, rdb *redis.Client) *TokenProvider {
	return &TokenProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		rdb:    rdb,
	}
}

// Token returns a valid tenant access token, refreshing it when the cached
// one is missing or near expiry. Returns "" without error when no app
// credentials are configured.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.cfg.AppID == "" || p.cfg.AppSecret == "" {
		return "", nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt.Add(-refreshMargin)) {
		return p.token, nil
	}

	if token := p.fromRedis(ctx); token != "" {
		return token, nil
	}

	token, expiresIn, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiresAt = time.Now().Add(expiresIn)
	p.toRedis(ctx, token, expiresIn)

	return token, nil
}

func (p *TokenProvider) fetch(ctx context.Context) (string, time.Duration, error) {
	payload, err := json.Marshal(map[string]string{
		"app_id":     p.cfg.AppID,
		"app_secret": p.cfg.AppSecret,
	})
	if err != nil {
		return "", 0, fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetching feishu token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, fmt.Errorf("fetching feishu token: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("decoding feishu token response: %w", err)
	}
	if result.Code != 0 {
		return "", 0, fmt.Errorf("feishu token request rejected (code %d): %s", result.Code, result.Msg)
	}

	expiresIn := time.Duration(result.Expire) * time.Second
	if expiresIn == 0 {
		expiresIn = 2 * time.Hour
	}
	return result.TenantAccessToken, expiresIn, nil
}

func (p *TokenProvider) fromRedis(ctx context.Context) string {
	if p.rdb == nil {
		return ""
	}
	token, err := p.rdb.Get(ctx, redisTokenKey).Result()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "reading feishu token from redis", "error", err)
		}
		return ""
	}
	ttl, err := p.rdb.TTL(ctx, redisTokenKey).Result()
	if err != nil || ttl <= 0 {
		return ""
	}
	p.token = token
	p.expiresAt = time.Now().Add(ttl)
	return token
}

func (p *TokenProvider) toRedis(ctx context.Context, token string, expiresIn time.Duration) {
	if p.rdb == nil {
		return
	}
	// Redis expiry already accounts for the refresh margin so a replica
	// never reads a token about to lapse.
	if err := p.rdb.Set(ctx, redisTokenKey, token, expiresIn-refreshMargin).Err(); err != nil {
		slog.WarnContext(ctx, "caching feishu token in redis", "error", err)
	}
}
