// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"webtoprint/internal/personalization"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string]string // key -> content type
	failOn  string
}

func newMemStore() *memStore { return &memStore{objects: make(map[string]string)} }

func (m *memStore) Upload(_ context.Context, key, contentType string, body io.Reader, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && strings.HasSuffix(key, m.failOn) {
		return errors.New("bucket unavailable")
	}
	n, _ := io.Copy(io.Discard, body)
	if n != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = contentType
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) FileURL(key string) string { return "https://cdn.test/" + key }

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 640, 480))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAssetsUploadAndDelete(t *testing.T) {
	store := newMemStore()
	a := NewAssets(store)
	ctx := context.Background()

	ref, err := a.Upload(ctx, "me.png", "image/png", bytes.NewReader(testPNG(t)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []string{"assets/" + ref.ID, "assets/" + ref.ID + "_thumb.jpg"}
	if diff := cmp.Diff(want, store.keys()); diff != "" {
		t.Errorf("stored keys mismatch (-want +got):\n%s", diff)
	}
	if ref.ThumbnailURL != "https://cdn.test/assets/"+ref.ID+"_thumb.jpg" {
		t.Errorf("ThumbnailURL = %q", ref.ThumbnailURL)
	}
	if store.objects["assets/"+ref.ID] != "image/png" {
		t.Errorf("original stored as %q", store.objects["assets/"+ref.ID])
	}

	if err := a.Delete(ctx, ref.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.keys()) != 0 {
		t.Errorf("keys left after delete: %v", store.keys())
	}
}

func TestAssetsRejectsNonImages(t *testing.T) {
	a := NewAssets(newMemStore())
	_, err := a.Upload(context.Background(), "notes.txt", "text/plain", strings.NewReader("hello"))
	var ae *personalization.AssetError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnsupportedMediaType {
		t.Errorf("error = %v, want 415 AssetError", err)
	}
}

func TestAssetsThumbnailFailureCleansUp(t *testing.T) {
	store := newMemStore()
	store.failOn = "_thumb.jpg"
	a := NewAssets(store)

	if _, err := a.Upload(context.Background(), "me.png", "", bytes.NewReader(testPNG(t))); !errors.Is(err, personalization.ErrAssetFailed) {
		t.Fatalf("error = %v, want ErrAssetFailed", err)
	}
	if len(store.keys()) != 0 {
		t.Errorf("orphaned objects: %v", store.keys())
	}
}

func TestAssetsUploadURL(t *testing.T) {
	img := testPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(img)
	}))
	defer srv.Close()

	store := newMemStore()
	a := NewAssets(store)
	// The test server listens on loopback, which the default fetcher refuses.
	a.fetcher = srv.Client()
	ctx := context.Background()

	ref, err := a.UploadURL(ctx, srv.URL+"/me.png")
	if err != nil {
		t.Fatalf("UploadURL: %v", err)
	}
	if _, ok := store.objects["assets/"+ref.ID]; !ok {
		t.Error("fetched image not stored")
	}

	_, err = a.UploadURL(ctx, srv.URL+"/missing.png")
	var ae *personalization.AssetError
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
		t.Errorf("error = %v, want 404 AssetError", err)
	}
}

func TestAssetsUploadURLRefusesInternalAddresses(t *testing.T) {
	img := testPNG(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(img)
	}))
	defer srv.Close()

	store := newMemStore()
	a := NewAssets(store)
	ctx := context.Background()

	for _, url := range []string{
		srv.URL + "/me.png",
		"http://127.0.0.1:1/me.png",
		"http://[::1]:1/me.png",
		"http://localhost:1/me.png",
	} {
		if _, err := a.UploadURL(ctx, url); !errors.Is(err, personalization.ErrValidation) {
			t.Errorf("UploadURL(%s) = %v, want ErrValidation", url, err)
		}
	}

	// Redirect targets go through the same dialer.
	redirect := http.RedirectHandler(srv.URL+"/me.png", http.StatusFound)
	a.fetcher.Transport = redirectingTransport(redirect, a.fetcher.Transport)
	if _, err := a.UploadURL(ctx, "http://images.example.com/me.png"); !errors.Is(err, personalization.ErrValidation) {
		t.Errorf("redirect into loopback = %v, want ErrValidation", err)
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("internal server was reached %d times", n)
	}
	if len(store.keys()) != 0 {
		t.Errorf("objects stored: %v", store.keys())
	}
}

// redirectingTransport answers requests for images.example.com with h and
// sends every other request to next.
func redirectingTransport(h http.Handler, next http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "images.example.com" {
			return next.RoundTrip(r)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr.Result(), nil
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestPublicAddress(t *testing.T) {
	tests := []struct {
		addr    string
		allowed bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fc00::1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
	}
	for _, tt := range tests {
		err := publicAddress(netip.MustParseAddr(tt.addr))
		if got := err == nil; got != tt.allowed {
			t.Errorf("publicAddress(%s) = %v, allowed want %v", tt.addr, err, tt.allowed)
		}
		if err != nil && !errors.Is(err, errBlockedAddress) {
			t.Errorf("publicAddress(%s) error %v does not wrap errBlockedAddress", tt.addr, err)
		}
	}
}

func TestAssetsDeleteMalformedID(t *testing.T) {
	a := NewAssets(newMemStore())
	if err := a.Delete(context.Background(), "../etc/passwd"); !errors.Is(err, personalization.ErrAssetFailed) {
		t.Errorf("error = %v, want ErrAssetFailed", err)
	}
}
