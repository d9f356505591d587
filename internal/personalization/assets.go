// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package personalization

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"webtoprint/internal/models"
)

// AssetService is the upload/delete collaborator for shopper images.
type AssetService interface {
	UploadURL(ctx context.Context, url string) (models.AssetRef, error)
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (models.AssetRef, error)
	Delete(ctx context.Context, id string) error
}

// RotateDirection is a quarter turn applied to an image slot.
type RotateDirection string

const (
	RotateLeft  RotateDirection = "left"
	RotateRight RotateDirection = "right"
)

// Degrees returns the signed rotation delta, or false for an unknown value.
func (d RotateDirection) Degrees() (int, bool) {
	switch d {
	case RotateLeft:
		return -90, true
	case RotateRight:
		return 90, true
	default:
		return 0, false
	}
}

// AssetController manages image slot selections, the upload gallery and
// rotation bookkeeping. Methods taking no context operate on the model only
// and expect the caller to hold the session lock; the others perform a
// network call first and take the lock themselves.
type AssetController struct {
	service  AssetService
	locker   sync.Locker
	tracker  Tracker
	shapes   ShapeResolver
	metadata *MetadataStore
}

func NewAssetController(service AssetService, locker sync.Locker, metadata *MetadataStore) *AssetController {
	return &AssetController{service: service, locker: locker, metadata: metadata}
}

// AddImage binds ref to the named image slot.
func (c *AssetController) AddImage(t *models.Template, page int, name string, ref models.AssetRef) error {
	p, img, err := lookupImage(t, page, name)
	if err != nil {
		return err
	}
	img.Value = ref.ID
	c.tracker.FieldOrImageChanged(p)
	c.shapes.DependencyChanged(p, name, ref.ID != "")
	return nil
}

// DeleteImage clears the slot's selection. Confirmation happens upstream.
func (c *AssetController) DeleteImage(t *models.Template, page int, name string) error {
	p, img, err := lookupImage(t, page, name)
	if err != nil {
		return err
	}
	c.clearSlot(p, img)
	return nil
}

// Rotate records a quarter turn on the image slot. The next render picks it
// up from the rotation metadata.
func (c *AssetController) Rotate(t *models.Template, page int, name string, dir RotateDirection) (int, error) {
	delta, ok := dir.Degrees()
	if !ok {
		return 0, &ValidationError{Reason: "unknown rotate direction " + strconv.Quote(string(dir))}
	}
	_, img, err := lookupImage(t, page, name)
	if err != nil {
		return 0, err
	}

	// Rotation follows the metadata sent to the renderer. A cleared slot
	// starts again from 0.
	img.Rotation = normalizeDegrees(rotationOf(img) + delta)
	if img.Rotation == 0 {
		c.metadata.Delete(img, models.MetaRotation, true)
	} else {
		c.metadata.Replace(img, models.Metadata{models.MetaRotation: strconv.Itoa(img.Rotation)}, true)
	}
	return img.Rotation, nil
}

// Upload sends an image to the asset service and adds it to the gallery.
func (c *AssetController) Upload(ctx context.Context, t *models.Template, filename, contentType string, body io.Reader) (models.AssetRef, error) {
	if c.service == nil {
		return models.AssetRef{}, errNoAssetService("upload")
	}
	ref, err := c.service.Upload(ctx, filename, contentType, body)
	if err != nil {
		return models.AssetRef{}, assetError("upload", err)
	}
	c.addToGallery(t, ref)
	return ref, nil
}

// UploadByURL asks the asset service to fetch an image and adds it to the
// gallery.
func (c *AssetController) UploadByURL(ctx context.Context, t *models.Template, url string) (models.AssetRef, error) {
	if c.service == nil {
		return models.AssetRef{}, errNoAssetService("upload-url")
	}
	ref, err := c.service.UploadURL(ctx, url)
	if err != nil {
		return models.AssetRef{}, assetError("upload-url", err)
	}
	c.addToGallery(t, ref)
	return ref, nil
}

// DeleteAsset removes an uploaded image. Every slot holding it is cleared
// and its shapes re-evaluated. A failed request leaves the gallery as is.
func (c *AssetController) DeleteAsset(ctx context.Context, t *models.Template, id string) error {
	c.locker.Lock()
	known := t.HasUserImage(id)
	c.locker.Unlock()
	if !known {
		return &NotFoundError{Kind: "asset", Name: id}
	}

	if c.service == nil {
		return errNoAssetService("delete")
	}
	if err := c.service.Delete(ctx, id); err != nil {
		return assetError("delete", err)
	}

	c.locker.Lock()
	defer c.locker.Unlock()

	gallery := t.UserImages[:0]
	for _, ref := range t.UserImages {
		if ref.ID != id {
			gallery = append(gallery, ref)
		}
	}
	t.UserImages = gallery

	for _, n := range t.PageNumbers() {
		p := t.Pages[n]
		for _, name := range p.SortedImageNames() {
			if img := p.Images[name]; img.Value == id {
				c.clearSlot(p, img)
			}
		}
	}
	slog.Info("asset deleted", "template", t.GUID, "asset", id)
	return nil
}

func (c *AssetController) addToGallery(t *models.Template, ref models.AssetRef) {
	c.locker.Lock()
	defer c.locker.Unlock()
	if !t.HasUserImage(ref.ID) {
		t.UserImages = append(t.UserImages, ref)
	}
}

func (c *AssetController) clearSlot(p *models.Page, img *models.Image) {
	img.Value = ""
	c.metadata.Delete(img, models.MetaImageID, false)
	c.tracker.FieldOrImageChanged(p)
	c.shapes.DependencyChanged(p, img.Name, false)
}

func lookupImage(t *models.Template, page int, name string) (*models.Page, *models.Image, error) {
	p, ok := t.Pages[page]
	if !ok {
		return nil, nil, &NotFoundError{Kind: "page", Name: strconv.Itoa(page)}
	}
	img, ok := p.Images[name]
	if !ok {
		return nil, nil, &NotFoundError{Kind: "image", Name: name, Page: page}
	}
	return p, img, nil
}

func assetError(op string, err error) error {
	var ae *AssetError
	if errors.As(err, &ae) {
		return err
	}
	return &AssetError{Op: op, Err: err}
}

func errNoAssetService(op string) error {
	return &AssetError{Op: op, Message: "no asset service configured"}
}

// rotationOf returns the quarter turn recorded in the image metadata.
func rotationOf(img *models.Image) int {
	d, err := strconv.Atoi(img.Metadata[models.MetaRotation])
	if err != nil {
		return 0
	}
	return normalizeDegrees(d)
}

func normalizeDegrees(d int) int {
	return ((d % 360) + 360) % 360
}
