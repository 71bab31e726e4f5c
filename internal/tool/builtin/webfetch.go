package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clewhq/clew/internal/security"
	"github.com/clewhq/clew/internal/tool"
)

// DefaultFetchTimeout bounds one web_fetch request.
const DefaultFetchTimeout = 30 * time.Second

// WebFetchTool fetches a URL over HTTP(S), gated by the URL filter.
type WebFetchTool struct {
	filter *security.URLFilter
	client *http.Client
}

// NewWebFetchTool creates the web_fetch builtin. A nil filter allows every
// URL.
func NewWebFetchTool(filter *security.URLFilter) *WebFetchTool {
	return &WebFetchTool{
		filter: filter,
		client: &http.Client{Timeout: DefaultFetchTimeout},
	}
}

func (t *WebFetchTool) Name() string        { return "web_fetch" }
func (t *WebFetchTool) DisplayName() string { return "WebFetch" }
func (t *WebFetchTool) Description() string {
	return "Fetches a URL and returns the response body as text."
}

func (t *WebFetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The http or https URL to fetch"}
		},
		"required": ["url"]
	}`)
}

// ShouldConfirmExecute rejects filtered URLs outright and asks before any
// other fetch.
func (t *WebFetchTool) ShouldConfirmExecute(_ context.Context, args json.RawMessage) (*tool.Confirmation, error) {
	rawURL, err := decodeURL(args)
	if err != nil {
		return nil, err
	}
	if t.filter != nil {
		if err := t.filter.Check(rawURL); err != nil {
			return nil, err
		}
	}
	return &tool.Confirmation{
		Kind:      tool.ConfirmFetch,
		Title:     fmt.Sprintf("Fetch URL: %s", rawURL),
		ToolName:  t.Name(),
		OnConfirm: func(tool.Outcome) {},
	}, nil
}

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	rawURL, err := decodeURL(args)
	if err != nil {
		return tool.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return tool.Result{Err: fmt.Sprintf("fetch %s: %v", rawURL, err)}, nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return tool.Result{Err: fmt.Sprintf("fetch %s: %v", rawURL, err)}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxOutputBytes+1))
	if err != nil {
		return tool.Result{Err: fmt.Sprintf("fetch %s: read body: %v", rawURL, err)}, nil
	}

	content := truncate(string(body))
	if resp.StatusCode >= 400 {
		detail := fmt.Sprintf("fetch %s: status %s\n%s", rawURL, resp.Status, content)
		return tool.Result{LLMContent: detail, ReturnDisplay: detail, Err: detail}, nil
	}

	return tool.Result{
		LLMContent:    content,
		ReturnDisplay: fmt.Sprintf("Fetched %s (%s, %d bytes)", rawURL, resp.Status, len(body)),
	}, nil
}

func decodeURL(args json.RawMessage) (string, error) {
	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("web_fetch: decode arguments: %w", err)
	}
	if strings.TrimSpace(params.URL) == "" {
		return "", errors.New("web_fetch: url is required")
	}
	return params.URL, nil
}

var _ tool.Tool = (*WebFetchTool)(nil)
