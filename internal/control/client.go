// internal/control/client.go
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Client talks to the agent server's management REST API. The event
// reducers never touch this; it serves commands and the presentation layer.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a management client for the given server base URL
// (e.g. "http://localhost:8000").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Tool is one server-side tool registration.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Skill is one loaded skill bundle.
type Skill struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Scripts     []string       `json:"scripts,omitempty"`
}

// MCP is one optional external tool integration with its toggle state.
type MCP struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// SystemPrompt is the single editable system-prompt document.
type SystemPrompt struct {
	Content   string `json:"content"`
	Path      string `json:"path"`
	UpdatedAt string `json:"updated_at"`
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Tools lists the server's registered tools.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	var resp struct {
		Tools []Tool `json:"tools"`
	}
	if err := c.getJSON(ctx, "/api/tools", &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// Skills lists the server's loaded skills.
func (c *Client) Skills(ctx context.Context) ([]Skill, error) {
	var resp struct {
		Skills []Skill `json:"skills"`
	}
	if err := c.getJSON(ctx, "/api/skills", &resp); err != nil {
		return nil, err
	}
	return resp.Skills, nil
}

// SkillDoc fetches a skill's documentation text. Docs served as HTML are
// converted to markdown so terminal output stays readable.
func (c *Client) SkillDoc(ctx context.Context, name string) (string, error) {
	var resp struct {
		Name string `json:"name"`
		Doc  string `json:"doc"`
	}
	if err := c.getJSON(ctx, "/api/skills/"+name+"/doc", &resp); err != nil {
		return "", err
	}
	doc := resp.Doc
	if looksLikeHTML(doc) {
		if md, err := htmltomarkdown.ConvertString(doc); err == nil {
			doc = md
		}
	}
	return doc, nil
}

func looksLikeHTML(s string) bool {
	t := strings.TrimSpace(strings.ToLower(s))
	return strings.HasPrefix(t, "<!doctype html") || strings.HasPrefix(t, "<html")
}

// SystemPrompt fetches the editable system-prompt document.
func (c *Client) SystemPrompt(ctx context.Context) (*SystemPrompt, error) {
	var resp SystemPrompt
	if err := c.getJSON(ctx, "/api/prompts/system", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSystemPrompt stores a new system-prompt document.
func (c *Client) UpdateSystemPrompt(ctx context.Context, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/prompts/system", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// MCPs lists the optional external integrations and their toggle state.
func (c *Client) MCPs(ctx context.Context) ([]MCP, error) {
	var resp struct {
		MCPs []MCP `json:"mcps"`
	}
	if err := c.getJSON(ctx, "/api/mcp", &resp); err != nil {
		return nil, err
	}
	return resp.MCPs, nil
}

// SetMCPEnabled toggles one integration.
func (c *Client) SetMCPEnabled(ctx context.Context, id string, enabled bool) error {
	body, err := json.Marshal(map[string]bool{"enabled": enabled})
	if err != nil {
		return fmt.Errorf("marshal toggle: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/api/mcp/"+id+"/enabled", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}
