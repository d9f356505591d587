// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package assets is the HTTP client for a remote image asset service.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"webtoprint/internal/models"
	"webtoprint/internal/personalization"
)

// Config points the client at the asset service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements personalization.AssetService over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// uploadResult is the service's answer to both upload kinds.
type uploadResult struct {
	GUID         string `json:"guid"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// UploadURL asks the service to fetch the image at imageURL.
func (c *Client) UploadURL(ctx context.Context, imageURL string) (models.AssetRef, error) {
	form := url.Values{"url": {imageURL}}
	return c.upload(ctx, "upload-url", "/upload-by-url", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
}

// Upload sends a file as multipart form data in the "file" part.
func (c *Client) Upload(ctx context.Context, filename, contentType string, body io.Reader) (models.AssetRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload", Err: err}
	}
	if _, err := io.Copy(part, body); err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload", Err: fmt.Errorf("reading upload: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload", Err: err}
	}
	return c.upload(ctx, "upload", "/upload", mw.FormDataContentType(), &buf)
}

// Delete removes an uploaded image.
func (c *Client) Delete(ctx context.Context, id string) error {
	form := url.Values{
		"zetaprints-action":  {"img-delete"},
		"zetaprints-ImageID": {id},
	}
	resp, err := c.post(ctx, "/image", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return &personalization.AssetError{Op: "delete", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError("delete", resp)
	}
	return nil
}

func (c *Client) upload(ctx context.Context, op, path, contentType string, body io.Reader) (models.AssetRef, error) {
	resp, err := c.post(ctx, path, contentType, body)
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return models.AssetRef{}, statusError(op, resp)
	}

	var res uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	if res.GUID == "" {
		return models.AssetRef{}, &personalization.AssetError{Op: op, Message: "response has no guid"}
	}
	return models.AssetRef{ID: res.GUID, ThumbnailURL: res.ThumbnailURL}, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &personalization.AssetError{
		Op:      op,
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(raw)),
	}
}
