package systems

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/upload"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be registered at once. */
	MaxTextureCount uint32
}

type textureEntry struct {
	key         string
	handle      bindless.Handle
	texture     renderer.Texture
	placeholder renderer.Texture
	ticketID    uuid.UUID

	pending  bool
	resident bool
	failed   bool
	evicted  bool

	refCount    uint32
	autoRelease bool
}

// TextureSystem binds cooked textures to stable shader-visible indices. An
// entry's bindless index never changes over its lifetime: while the payload
// uploads the index resolves to a placeholder, on failure to the shared
// error texture, and after eviction to the shared fallback texture.
type TextureSystem struct {
	config    *TextureSystemConfig
	gfx       renderer.Graphics
	allocator *bindless.Allocator
	uploads   *upload.Coordinator

	entries map[string]*textureEntry

	fallbackTexture renderer.Texture
	errorTexture    renderer.Texture
}

func NewTextureSystem(config *TextureSystemConfig, gfx renderer.Graphics, allocator *bindless.Allocator, uploads *upload.Coordinator) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		config:    config,
		gfx:       gfx,
		allocator: allocator,
		uploads:   uploads,
		entries:   make(map[string]*textureEntry),
	}, nil
}

// Initialize creates and uploads the shared fallback and error textures.
// Both uploads are waited on; a renderer without them cannot degrade
// gracefully, so failure here is fatal to startup.
func (ts *TextureSystem) Initialize() error {
	fallback, err := ts.createDefaultTexture(metadata.FALLBACK_TEXTURE_NAME, defaultCheckerPixels())
	if err != nil {
		return err
	}
	errTex, err := ts.createDefaultTexture(metadata.ERROR_TEXTURE_NAME, defaultErrorPixels())
	if err != nil {
		return err
	}
	ts.fallbackTexture = fallback
	ts.errorTexture = errTex
	return nil
}

const defaultTextureDim = 16

// defaultCheckerPixels builds the blue and white checkerboard used for the
// fallback texture.
func defaultCheckerPixels() []byte {
	pixels := make([]byte, defaultTextureDim*defaultTextureDim*4)
	for y := 0; y < defaultTextureDim; y++ {
		for x := 0; x < defaultTextureDim; x++ {
			i := (y*defaultTextureDim + x) * 4
			if (x/4+y/4)%2 == 0 {
				pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0x00, 0x00, 0xff, 0xff
			} else {
				pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0xff, 0xff, 0xff, 0xff
			}
		}
	}
	return pixels
}

// defaultErrorPixels builds the solid magenta error texture.
func defaultErrorPixels() []byte {
	pixels := make([]byte, defaultTextureDim*defaultTextureDim*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0xff, 0x00, 0xff, 0xff
	}
	return pixels
}

// defaultPlaceholderPixels builds the solid gray texture bound per entry
// while its payload uploads.
func defaultPlaceholderPixels() []byte {
	pixels := make([]byte, defaultTextureDim*defaultTextureDim*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0x80, 0x80, 0x80, 0xff
	}
	return pixels
}

// createPixelTexture creates a texture from raw RGBA8 pixels and schedules
// its upload without waiting for the fence.
func (ts *TextureSystem) createPixelTexture(name string, pixels []byte) (renderer.Texture, uuid.UUID, error) {
	desc := metadata.TextureDesc{
		Width:     defaultTextureDim,
		Height:    defaultTextureDim,
		MipLevels: 1,
		ArraySize: 1,
		Format:    metadata.FormatRGBA8Unorm,
		Usage:     metadata.TextureUsageSampled | metadata.TextureUsageCopyDest,
		Name:      name,
	}
	layouts, total, err := metadata.ComputeTextureLayout(&desc)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("pixel texture '%s': %s: %w", name, err, core.ErrSystem)
	}
	payload := make([]byte, total)
	rowSize := layouts[0].RowSize
	for row := uint32(0); row < layouts[0].RowCount; row++ {
		src := uint64(row) * rowSize
		dst := layouts[0].Offset + uint64(row)*layouts[0].RowPitch
		copy(payload[dst:dst+rowSize], pixels[src:src+rowSize])
	}

	tex, err := ts.gfx.CreateTexture(&desc)
	if err != nil {
		return nil, uuid.Nil, err
	}
	ticket, err := ts.uploads.SubmitOne(metadata.UploadRequest{
		Kind:    metadata.UploadKindTexture,
		Texture: metadata.TextureUploadDesc{Dst: tex, Layouts: layouts},
		Data:    payload,
		Name:    name,
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	return tex, ticket.ID, nil
}

func (ts *TextureSystem) createDefaultTexture(name string, pixels []byte) (renderer.Texture, error) {
	tex, ticketID, err := ts.createPixelTexture(name, pixels)
	if err != nil {
		return nil, err
	}
	if err := ts.gfx.Queue(renderer.QueueKindTransfer).WaitIdle(); err != nil {
		return nil, err
	}
	ts.uploads.PumpCompletions()
	result, err := ts.uploads.Tracker().TryGetResult(ticketID)
	if err != nil || !result.Success() {
		return nil, fmt.Errorf("default texture '%s' upload failed (%s): %w", name, result.Code, core.ErrSystem)
	}
	return tex, nil
}

// GetOrAllocate registers the cooked texture under key, or bumps the
// reference count of an existing entry. The returned handle is valid
// immediately; until the payload is resident it resolves to a placeholder.
// A previously failed or evicted entry is retried with the new payload.
func (ts *TextureSystem) GetOrAllocate(key string, cooked *metadata.CookedTexture, autoRelease bool) (bindless.Handle, error) {
	if entry, ok := ts.entries[key]; ok {
		entry.refCount++
		if (entry.failed || entry.evicted) && cooked != nil {
			if err := ts.beginUpload(entry, cooked); err != nil {
				core.LogWarn("texture '%s' retry failed: %s", key, err.Error())
			}
		}
		return entry.handle, nil
	}

	if uint32(len(ts.entries)) >= ts.config.MaxTextureCount {
		return bindless.Handle{}, fmt.Errorf("texture table full at %d entries: %w", ts.config.MaxTextureCount, core.ErrCapacityExhausted)
	}
	if cooked == nil {
		return bindless.Handle{}, fmt.Errorf("texture '%s' is not registered and no payload was given: %w", key, core.ErrInvalidArgument)
	}

	handle, err := ts.allocator.Allocate(bindless.ViewTypeSRV, bindless.VisibilityShaderVisible)
	if err != nil {
		return bindless.Handle{}, err
	}
	// Each entry gets its own placeholder so a pending texture and an
	// evicted one stay distinguishable, in shaders and in captures.
	placeholder, _, err := ts.createPixelTexture(metadata.PlaceholderTextureName(key), defaultPlaceholderPixels())
	if err != nil {
		ts.allocator.Release(handle)
		return bindless.Handle{}, err
	}
	entry := &textureEntry{
		key:         key,
		handle:      handle,
		placeholder: placeholder,
		refCount:    1,
		autoRelease: autoRelease,
	}
	if err := ts.gfx.Registry().Register(handle, renderer.ViewDesc{Resource: placeholder}); err != nil {
		ts.allocator.Release(handle)
		return bindless.Handle{}, err
	}
	ts.entries[key] = entry

	if err := ts.validate(cooked); err != nil {
		// Malformed payloads bind the error texture instead of failing the
		// caller; the handle stays usable.
		core.LogWarn("texture '%s' rejected: %s", key, err.Error())
		ts.pointAt(entry, ts.errorTexture)
		entry.failed = true
		return handle, nil
	}
	if err := ts.beginUpload(entry, cooked); err != nil {
		core.LogWarn("texture '%s' upload could not start: %s", key, err.Error())
		ts.pointAt(entry, ts.errorTexture)
		entry.failed = true
	}
	return handle, nil
}

func (ts *TextureSystem) validate(cooked *metadata.CookedTexture) error {
	if !metadata.SupportedTextureFormats[cooked.Desc.Format] {
		return fmt.Errorf("unsupported format %d: %w", cooked.Desc.Format, core.ErrValidation)
	}
	if err := metadata.ValidateTextureLayout(&cooked.Desc, cooked.Layouts, uint64(len(cooked.Payload))); err != nil {
		return fmt.Errorf("%s: %w", err, core.ErrValidation)
	}
	return nil
}

func (ts *TextureSystem) beginUpload(entry *textureEntry, cooked *metadata.CookedTexture) error {
	desc := cooked.Desc
	if desc.Name == "" {
		desc.Name = entry.key
	}
	tex, err := ts.gfx.CreateTexture(&desc)
	if err != nil {
		return err
	}
	ticket, err := ts.uploads.SubmitOne(metadata.UploadRequest{
		Kind:    metadata.UploadKindTexture,
		Texture: metadata.TextureUploadDesc{Dst: tex, Layouts: cooked.Layouts},
		Data:    cooked.Payload,
		Name:    desc.Name,
	})
	if err != nil {
		return err
	}
	// Pending entries resolve to their placeholder until the payload lands.
	ts.pointAt(entry, entry.placeholder)
	entry.texture = tex
	entry.ticketID = ticket.ID
	entry.pending = true
	entry.resident = false
	entry.failed = false
	entry.evicted = false
	return nil
}

func (ts *TextureSystem) pointAt(entry *textureEntry, tex renderer.Texture) {
	if err := ts.gfx.Registry().Update(entry.handle, renderer.ViewDesc{Resource: tex}); err != nil {
		core.LogError("texture '%s' view repoint failed: %s", entry.key, err.Error())
	}
}

// OnFrameStart consumes finished upload tickets and repoints entry views.
// Completions for entries evicted while in flight are discarded.
func (ts *TextureSystem) OnFrameStart() {
	for _, entry := range ts.entries {
		if !entry.pending {
			continue
		}
		if !ts.uploads.Tracker().IsComplete(entry.ticketID) {
			continue
		}
		result, err := ts.uploads.Tracker().TryGetResult(entry.ticketID)
		entry.pending = false
		if entry.evicted {
			entry.texture = nil
			continue
		}
		if err != nil || !result.Success() {
			core.LogWarn("texture '%s' upload failed (%s)", entry.key, result.Code)
			ts.pointAt(entry, ts.errorTexture)
			entry.failed = true
			entry.texture = nil
			continue
		}
		ts.pointAt(entry, entry.texture)
		entry.resident = true
	}
}

// IsResourceReady reports whether the key's own payload is resident, as
// opposed to resolving to a placeholder, fallback or error texture.
func (ts *TextureSystem) IsResourceReady(key string) bool {
	entry, ok := ts.entries[key]
	return ok && entry.resident
}

// ShaderVisibleIndex resolves the key to its stable bindless index, or the
// invalid sentinel when the key is unknown.
func (ts *TextureSystem) ShaderVisibleIndex(key string) uint32 {
	entry, ok := ts.entries[key]
	if !ok {
		return metadata.InvalidID
	}
	return ts.allocator.ShaderVisibleIndex(entry.handle)
}

// Evict detaches the key's GPU texture and repoints its view at the shared
// fallback. The bindless index survives; re-registering the key uploads a
// fresh payload in place.
func (ts *TextureSystem) Evict(key string) error {
	entry, ok := ts.entries[key]
	if !ok {
		return fmt.Errorf("texture '%s': %w", key, core.ErrNotFound)
	}
	if entry.evicted {
		return nil
	}
	entry.evicted = true
	entry.resident = false
	if !entry.pending {
		entry.texture = nil
	}
	ts.pointAt(entry, ts.fallbackTexture)

	ctx := core.EventContext{}
	ctx.Data.C[0] = key
	core.EventFire(core.EVENT_CODE_RESOURCE_EVICTED, ts, ctx)
	return nil
}

// Release drops one reference; auto-release entries are evicted when the
// count reaches zero.
func (ts *TextureSystem) Release(key string) {
	entry, ok := ts.entries[key]
	if !ok {
		return
	}
	if entry.refCount > 0 {
		entry.refCount--
	}
	if entry.refCount == 0 && entry.autoRelease {
		if err := ts.Evict(key); err != nil {
			core.LogError("texture '%s' auto-release eviction failed: %s", key, err.Error())
		}
	}
}

// EntryCount returns the number of registered keys, evicted ones included.
func (ts *TextureSystem) EntryCount() int {
	return len(ts.entries)
}

func (ts *TextureSystem) Shutdown() error {
	for key, entry := range ts.entries {
		ts.gfx.Registry().Unregister(entry.handle)
		if err := ts.allocator.Release(entry.handle); err != nil {
			core.LogWarn("texture '%s' handle release failed: %s", key, err.Error())
		}
	}
	ts.entries = make(map[string]*textureEntry)
	return nil
}
