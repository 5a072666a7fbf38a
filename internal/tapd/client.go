// Package tapd is a thin client for the TAPD REST API. TAPD speaks
// form-encoded requests with basic auth and wraps entities in a
// status/info/data envelope.
package tapd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/ticket"
)

// Entity is a single TAPD object (Story/Bug/Task) as returned by the API.
type Entity map[string]any

// ID returns the entity's id field, or "" when the API response carried
// none.
func (e Entity) ID() string {
	id, _ := e["id"].(string)
	return id
}

// APIError is a TAPD-level failure: the HTTP exchange worked but the API
// envelope reported a non-success status.
type APIError struct {
	Status int
	Info   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tapd api error (status %d): %s", e.Status, e.Info)
}

type Client struct {
	cfg    config.TAPDConfig
	client *http.Client
}

func NewClient(cfg config.TAPDConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateStory submits a story and returns the created entity.
func (c *Client) CreateStory(ctx context.Context, fields ticket.Fields) (Entity, error) {
	data, err := c.postForm(ctx, "/stories", fields)
	if err != nil {
		return nil, err
	}
	return unwrapEntity(data, "Story"), nil
}

// CreateBug submits a bug and returns the created entity.
func (c *Client) CreateBug(ctx context.Context, fields ticket.Fields) (Entity, error) {
	data, err := c.postForm(ctx, "/bugs", fields)
	if err != nil {
		return nil, err
	}
	return unwrapEntity(data, "Bug"), nil
}

// CreateTask submits a task and returns the created entity.
func (c *Client) CreateTask(ctx context.Context, fields ticket.Fields) (Entity, error) {
	data, err := c.postForm(ctx, "/tasks", fields)
	if err != nil {
		return nil, err
	}
	return unwrapEntity(data, "Task"), nil
}

func (c *Client) GetStory(ctx context.Context, storyID string) (Entity, error) {
	data, err := c.get(ctx, "/stories", storyID)
	if err != nil {
		return nil, err
	}
	return unwrapEntity(data, "Story"), nil
}

func (c *Client) GetBug(ctx context.Context, bugID string) (Entity, error) {
	data, err := c.get(ctx, "/bugs", bugID)
	if err != nil {
		return nil, err
	}
	return unwrapEntity(data, "Bug"), nil
}

// UploadAttachment attaches a local file to an existing ticket. entryType
// is the TAPD entity kind: "story", "bug" or "task".
func (c *Client) UploadAttachment(ctx context.Context, entryType, entryID, filePath string) (Entity, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	var body strings.Builder
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filePath, err)
	}
	_ = writer.WriteField("workspace_id", c.cfg.WorkspaceID)
	_ = writer.WriteField("entry_type", entryType)
	_ = writer.WriteField("entry_id", entryID)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/attachments", strings.NewReader(body.String()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return unwrapEntity(data, "Attachment"), nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, fields ticket.Fields) (any, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	// TAPD expects form encoding, not JSON.
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) get(ctx context.Context, endpoint, entityID string) (any, error) {
	params := url.Values{}
	params.Set("workspace_id", c.cfg.WorkspaceID)
	params.Set("id", entityID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (any, error) {
	req.SetBasicAuth(c.cfg.APIUser, c.cfg.APIPassword)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling tapd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("calling tapd: status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Status int    `json:"status"`
		Info   string `json:"info"`
		Data   any    `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding tapd response: %w", err)
	}

	if envelope.Status != 1 {
		return nil, &APIError{Status: envelope.Status, Info: envelope.Info}
	}
	return envelope.Data, nil
}

// unwrapEntity digs the named entity out of TAPD's inconsistent response
// shapes: {"Story": {...}}, [{"Story": {...}}], {"Story": [{...}]}, or the
// bare entity itself.
func unwrapEntity(data any, key string) Entity {
	switch v := data.(type) {
	case map[string]any:
		inner, ok := v[key]
		if !ok {
			return Entity(v)
		}
		return unwrapEntity(inner, key)
	case []any:
		if len(v) == 0 {
			return Entity{}
		}
		return unwrapEntity(v[0], key)
	default:
		return Entity{}
	}
}
