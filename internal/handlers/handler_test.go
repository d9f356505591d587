// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests:
// in-memory collaborators and a helper serving one route through chi.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"webtoprint/internal/models"
	"webtoprint/internal/personalization"
	"webtoprint/internal/session"
)

const testDescription = `{
  "guid": "tpl-1",
  "pages_number": 2,
  "pages": {
    "1": {
      "fields": [
        {"name": "name", "value": "", "palette": "brand", "colour-picker": "RGB", "title": "Your **name**"},
        {"name": "title", "value": "Hello"}
      ],
      "images": [{"name": "logo", "value": "", "palette": "brand"}]
    },
    "2": {
      "fields": [{"name": "footer", "value": ""}]
    }
  }
}`

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, req *personalization.RenderRequest) (*personalization.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &personalization.RenderResult{
		PreviewURL: fmt.Sprintf("https://render.test/%s/%d.png", req.TemplateID, req.Page),
		ShareLink:  fmt.Sprintf("https://share.test/%s/%d", req.TemplateID, req.Page),
	}, nil
}

func (f *fakeRenderer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeAssets struct {
	mu     sync.Mutex
	nextID int
	got    []string // filename or URL of each upload
	err    error
}

func (f *fakeAssets) ref() models.AssetRef {
	f.nextID++
	id := fmt.Sprintf("asset-%d", f.nextID)
	return models.AssetRef{ID: id, ThumbnailURL: "https://assets.test/" + id + ".jpg"}
}

func (f *fakeAssets) UploadURL(_ context.Context, url string) (models.AssetRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.AssetRef{}, f.err
	}
	f.got = append(f.got, url)
	return f.ref(), nil
}

func (f *fakeAssets) Upload(_ context.Context, filename, _ string, body io.Reader) (models.AssetRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.AssetRef{}, f.err
	}
	io.Copy(io.Discard, body)
	f.got = append(f.got, filename)
	return f.ref(), nil
}

func (f *fakeAssets) Delete(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

type staticTemplates map[string]string

func (s staticTemplates) Description(_ context.Context, guid string) ([]byte, error) {
	raw, ok := s[guid]
	if !ok {
		return nil, &personalization.NotFoundError{Kind: "template", Name: guid}
	}
	return []byte(raw), nil
}

type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]*personalization.Snapshot
	saves int
}

func (m *memorySnapshots) Save(_ context.Context, snap *personalization.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snaps == nil {
		m.snaps = make(map[uuid.UUID]*personalization.Snapshot)
	}
	m.snaps[snap.ID] = snap
	m.saves++
	return nil
}

func (m *memorySnapshots) Load(_ context.Context, id uuid.UUID) (*personalization.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[id], nil
}

func (m *memorySnapshots) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

type testEnv struct {
	h        *Sessions
	renderer *fakeRenderer
	assets   *fakeAssets
	snaps    *memorySnapshots
	manager  *personalization.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{renderer: &fakeRenderer{}, assets: &fakeAssets{}, snaps: &memorySnapshots{}}
	cfg := personalization.Config{
		Renderer: env.renderer,
		Assets:   env.assets,
		Options:  personalization.Options{UpdateFirstPreviewOnLoad: true, ShareLinks: true},
	}
	env.manager = personalization.NewManager(cfg, staticTemplates{"tpl-1": testDescription}, env.snaps)
	env.h = NewSessions(env.manager, session.NewStore(nil, false))
	return env
}

// open starts a session through the handler and returns its id.
func (e *testEnv) open(t *testing.T) string {
	t.Helper()
	rr := serve(e.h.Open, http.MethodPost, "/sessions", "/sessions", `{"template_id":"tpl-1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open: status %d: %s", rr.Code, rr.Body.String())
	}
	return decodeState(t, rr).ID.String()
}

// serve runs one request against handler mounted at pattern.
func serve(handler http.HandlerFunc, method, pattern, path, body string) *httptest.ResponseRecorder {
	return serveRequest(handler, pattern, jsonRequest(method, path, body))
}

func serveRequest(handler http.HandlerFunc, pattern string, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(req.Method, pattern, handler)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, path, body string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

type decodedState struct {
	personalization.Snapshot
	CartParameters map[string]string `json:"cart_parameters"`
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) *decodedState {
	t.Helper()
	var st decodedState
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, rr.Body.String())
	}
	return &st
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rr.Body.String())
	}
	return e
}
