// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package renderapi is the HTTP client for the rendering service. It renders
// page previews and serves template descriptions.
package renderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"webtoprint/internal/personalization"
)

// Form key prefixes understood by the rendering service.
const (
	paramPrefix   = "zetaprints-"
	fieldPrefix   = paramPrefix + "_"
	imagePrefix   = paramPrefix + "#"
	metaPrefix    = paramPrefix + "*"
	paramTemplate = paramPrefix + "TemplateID"
	paramPage     = paramPrefix + "Page"
)

// maxErrorBody caps how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

// Config holds the service endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout is the HTTP client timeout. Per-render deadlines come from
	// the caller's context.
	Timeout time.Duration
}

// Client talks to the rendering service. It implements
// personalization.Renderer and personalization.TemplateSource.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Render posts one page's state and returns the new preview.
func (c *Client) Render(ctx context.Context, r *personalization.RenderRequest) (*personalization.RenderResult, error) {
	form, err := EncodeForm(r)
	if err != nil {
		return nil, &personalization.RenderError{Page: r.Page, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/preview", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &personalization.RenderError{Page: r.Page, Err: fmt.Errorf("render request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &personalization.RenderError{Page: r.Page, Err: fmt.Errorf("render http: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &personalization.RenderError{
			Page:    r.Page,
			Status:  resp.StatusCode,
			Message: errorMessage(resp.Body),
		}
	}

	var result personalization.RenderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &personalization.RenderError{Page: r.Page, Err: fmt.Errorf("render decode: %w", err)}
	}
	if result.PreviewURL == "" {
		return nil, &personalization.RenderError{Page: r.Page, Message: "response has no preview_url"}
	}
	return &result, nil
}

// Description fetches the raw template description for guid.
func (c *Client) Description(ctx context.Context, guid string) ([]byte, error) {
	u := c.baseURL + "/templates/" + url.PathEscape(guid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("template request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("template http: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &personalization.NotFoundError{Kind: "template", Name: guid}
	default:
		return nil, fmt.Errorf("template API error (status %d): %s", resp.StatusCode, errorMessage(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("template read body: %w", err)
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// EncodeForm serializes a render request into the service's form format.
// Names have spaces replaced with underscores; values use CRLF line breaks.
func EncodeForm(r *personalization.RenderRequest) (url.Values, error) {
	form := url.Values{}
	form.Set(paramTemplate, r.TemplateID)
	form.Set(paramPage, strconv.Itoa(r.Page))

	for name, v := range r.Fields {
		form.Set(fieldPrefix+wireName(name), crlf(v))
	}
	for name, v := range r.Images {
		form.Set(imagePrefix+wireName(name), v)
	}

	names := make([]string, 0, len(r.Metadata))
	for name := range r.Metadata {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := json.Marshal(r.Metadata[name])
		if err != nil {
			return nil, fmt.Errorf("encoding metadata of %q: %w", name, err)
		}
		form.Set(metaPrefix+wireName(name), string(raw))
	}
	return form, nil
}

func wireName(name string) string { return strings.ReplaceAll(name, " ", "_") }

func crlf(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, "\r\n", "\n"), "\n", "\r\n")
}

// errorMessage extracts {"error": "..."} from a failed response, falling
// back to the raw body.
func errorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
