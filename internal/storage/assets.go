// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"webtoprint/internal/imaging"
	"webtoprint/internal/models"
	"webtoprint/internal/personalization"
)

// MaxUploadSize is the largest accepted shopper image (20 MB).
const MaxUploadSize = 20 << 20

// ObjectStore is the subset of Client used by Assets.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	FileURL(key string) string
}

// Assets implements personalization.AssetService on object storage. Each
// asset is stored under assets/<id> with a JPEG thumbnail next to it, so
// the id alone is enough to delete both.
type Assets struct {
	store   ObjectStore
	fetcher *http.Client
}

// NewAssets creates an object-storage asset service.
func NewAssets(store ObjectStore) *Assets {
	return &Assets{
		store:   store,
		fetcher: newFetcher(),
	}
}

func originalKey(id string) string { return "assets/" + id }
func thumbKey(id string) string    { return "assets/" + id + "_thumb.jpg" }

// Upload validates and stores an image with its thumbnail.
func (a *Assets) Upload(ctx context.Context, filename, _ string, body io.Reader) (models.AssetRef, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxUploadSize+1))
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload", Err: fmt.Errorf("reading upload: %w", err)}
	}
	return a.save(ctx, "upload", filename, data)
}

// UploadURL downloads the image at url and stores it like an upload.
// URLs resolving to loopback or internal networks are refused.
func (a *Assets) UploadURL(ctx context.Context, url string) (models.AssetRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload-url", Err: err}
	}
	resp, err := a.fetcher.Do(req)
	if errors.Is(err, errBlockedAddress) {
		slog.Warn("url upload refused", "url", url, "error", err)
		return models.AssetRef{}, &personalization.ValidationError{Reason: "image url must point to a public address"}
	}
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload-url", Err: fmt.Errorf("fetch: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.AssetRef{}, &personalization.AssetError{
			Op:      "upload-url",
			Status:  resp.StatusCode,
			Message: "fetching " + url + " failed",
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadSize+1))
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: "upload-url", Err: fmt.Errorf("fetch body: %w", err)}
	}
	return a.save(ctx, "upload-url", url, data)
}

// Delete removes the original and its thumbnail.
func (a *Assets) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &personalization.AssetError{Op: "delete", Message: "malformed asset id"}
	}
	if err := a.store.Delete(ctx, originalKey(id)); err != nil {
		return &personalization.AssetError{Op: "delete", Err: err}
	}
	if err := a.store.Delete(ctx, thumbKey(id)); err != nil {
		slog.Warn("thumbnail delete failed", "error", err, "asset", id)
	}
	return nil
}

func (a *Assets) save(ctx context.Context, op, source string, data []byte) (models.AssetRef, error) {
	if len(data) > MaxUploadSize {
		return models.AssetRef{}, &personalization.AssetError{
			Op:      op,
			Status:  http.StatusRequestEntityTooLarge,
			Message: "image too large, maximum size is 20 MB",
		}
	}
	contentType := imaging.DetectContentType(data)
	if !imaging.AllowedTypes[contentType] {
		return models.AssetRef{}, &personalization.AssetError{
			Op:      op,
			Status:  http.StatusUnsupportedMediaType,
			Message: fmt.Sprintf("file type %q is not allowed", contentType),
		}
	}

	thumb, err := imaging.Thumbnail(data, imaging.ThumbWidth)
	if err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: op, Err: fmt.Errorf("thumbnail: %w", err)}
	}

	id := uuid.New().String()
	if err := a.store.Upload(ctx, originalKey(id), contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return models.AssetRef{}, &personalization.AssetError{Op: op, Err: err}
	}
	if err := a.store.Upload(ctx, thumbKey(id), "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
		// Do not leave an original without a thumbnail behind.
		if derr := a.store.Delete(ctx, originalKey(id)); derr != nil {
			slog.Warn("orphaned asset cleanup failed", "error", derr, "asset", id)
		}
		return models.AssetRef{}, &personalization.AssetError{Op: op, Err: err}
	}

	slog.Info("asset stored", "asset", id, "source", source, "type", contentType, "size", len(data))
	return models.AssetRef{ID: id, ThumbnailURL: a.store.FileURL(thumbKey(id))}, nil
}
