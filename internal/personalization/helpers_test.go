// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"webtoprint/internal/models"
)

// Page 1 has a palette shared by name1 and logo, a colour picker on name1
// with a shipped colour, and a grouped shape over name1 and logo.
const testDescription = `{
  "guid": "tpl-1",
  "pages_number": 2,
  "pages": {
    "1": {
      "fields": [
        {"name": "name1", "value": "", "palette": 5, "colour-picker": "RGB", "metadata": {"col-f": "#112233"}},
        {"name": "title", "value": "Hello"}
      ],
      "images": [{"name": "logo", "value": "", "palette": "5"}],
      "shapes": [{"name": "name1"}, {"name": "name1; logo"}]
    },
    "2": {
      "fields": [{"name": "footer", "value": "", "palette": "5"}]
    }
  }
}`

func newTestTemplate(t *testing.T) *models.Template {
	t.Helper()
	tmpl, err := models.NewTemplate([]byte(testDescription))
	if err != nil {
		t.Fatalf("NewTemplate: %v", err)
	}
	return tmpl
}

type fakeRenderer struct {
	mu     sync.Mutex
	calls  []*RenderRequest
	render func(ctx context.Context, req *RenderRequest) (*RenderResult, error)
}

func (f *fakeRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.render
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &RenderResult{
		PreviewURL: fmt.Sprintf("https://render.test/%s/%d.png", req.TemplateID, req.Page),
		ShareLink:  fmt.Sprintf("https://share.test/%s/%d", req.TemplateID, req.Page),
	}, nil
}

func (f *fakeRenderer) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Page)
	}
	return out
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAssets struct {
	mu      sync.Mutex
	nextID  int
	deleted []string
	err     error
}

func (f *fakeAssets) newRef() models.AssetRef {
	f.nextID++
	id := fmt.Sprintf("asset-%d", f.nextID)
	return models.AssetRef{ID: id, ThumbnailURL: "https://assets.test/" + id + "_thumb.png"}
}

func (f *fakeAssets) UploadURL(_ context.Context, _ string) (models.AssetRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.AssetRef{}, f.err
	}
	return f.newRef(), nil
}

func (f *fakeAssets) Upload(_ context.Context, _, _ string, body io.Reader) (models.AssetRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.AssetRef{}, f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return models.AssetRef{}, err
	}
	return f.newRef(), nil
}

func (f *fakeAssets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type recordingDataset struct {
	mu      sync.Mutex
	changes [][2]string
}

func (d *recordingDataset) FieldChanged(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, [2]string{name, value})
}

func newTestSession(t *testing.T, r *fakeRenderer, opts Options) *Session {
	t.Helper()
	s, err := New(context.Background(), newTestTemplate(t), Config{
		Renderer: r,
		Assets:   &fakeAssets{},
		Options:  opts,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func accept(context.Context) bool  { return true }
func decline(context.Context) bool { return false }
