package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/upload"
)

type textureHarness struct {
	gfx      *headless.Device
	uploads  *upload.Coordinator
	textures *TextureSystem
}

func newTextureHarness(t *testing.T, maxTextures uint32, opts ...headless.Option) *textureHarness {
	t.Helper()
	gfx := headless.NewDevice(opts...)
	allocator, err := bindless.NewAllocator(bindless.NewDefaultStrategy())
	require.NoError(t, err)
	uploads := upload.NewCoordinator(gfx, upload.NewBufferStagingProvider(gfx, 64*1024))
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: maxTextures}, gfx, allocator, uploads)
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())
	return &textureHarness{gfx: gfx, uploads: uploads, textures: ts}
}

// completePending retires every transfer submission and lets the binder
// consume the results.
func (h *textureHarness) completePending() {
	h.gfx.Queue(renderer.QueueKindTransfer).(*headless.Queue).WaitIdle()
	h.uploads.PumpCompletions()
	h.textures.OnFrameStart()
}

func (h *textureHarness) viewTarget(t *testing.T, key string) string {
	t.Helper()
	entry, ok := h.textures.entries[key]
	require.True(t, ok)
	view, err := h.gfx.Registry().Find(entry.handle)
	require.NoError(t, err)
	return view.Resource.DebugName()
}

func cookedTexture(t *testing.T, name string) *metadata.CookedTexture {
	t.Helper()
	desc := metadata.TextureDesc{
		Width:     4,
		Height:    4,
		MipLevels: 1,
		ArraySize: 1,
		Format:    metadata.FormatRGBA8Unorm,
		Usage:     metadata.TextureUsageSampled | metadata.TextureUsageCopyDest,
		Name:      name,
	}
	layouts, total, err := metadata.ComputeTextureLayout(&desc)
	require.NoError(t, err)
	return &metadata.CookedTexture{
		Desc:    desc,
		Payload: make([]byte, total),
		Layouts: layouts,
	}
}

func TestTexturePlaceholderUntilResident(t *testing.T) {
	h := newTextureHarness(t, 8, headless.WithManualFences())

	handle, err := h.textures.GetOrAllocate("textures/brick", cookedTexture(t, "textures/brick"), false)
	require.NoError(t, err)
	require.True(t, handle.IsValid())

	// The index resolves immediately, to the entry's own placeholder so a
	// pending texture never masquerades as an evicted one.
	assert.Equal(t, handle.Index, h.textures.ShaderVisibleIndex("textures/brick"))
	assert.False(t, h.textures.IsResourceReady("textures/brick"))
	assert.Equal(t, metadata.PlaceholderTextureName("textures/brick"), h.viewTarget(t, "textures/brick"))

	// The fence has not retired; polling changes nothing.
	h.uploads.PumpCompletions()
	h.textures.OnFrameStart()
	assert.False(t, h.textures.IsResourceReady("textures/brick"))

	h.completePending()
	assert.True(t, h.textures.IsResourceReady("textures/brick"))
	assert.Equal(t, "textures/brick", h.viewTarget(t, "textures/brick"))
	// The index never moved.
	assert.Equal(t, handle.Index, h.textures.ShaderVisibleIndex("textures/brick"))
}

func TestTextureDedupe(t *testing.T) {
	h := newTextureHarness(t, 8)

	first, err := h.textures.GetOrAllocate("textures/brick", cookedTexture(t, "textures/brick"), false)
	require.NoError(t, err)
	second, err := h.textures.GetOrAllocate("textures/brick", nil, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.textures.EntryCount())
}

func TestTextureUnsupportedFormatBindsErrorTexture(t *testing.T) {
	h := newTextureHarness(t, 8)

	cooked := cookedTexture(t, "textures/exotic")
	cooked.Desc.Format = metadata.FormatD32Float

	handle, err := h.textures.GetOrAllocate("textures/exotic", cooked, false)
	require.NoError(t, err)
	assert.True(t, handle.IsValid())
	assert.False(t, h.textures.IsResourceReady("textures/exotic"))
	assert.Equal(t, metadata.ERROR_TEXTURE_NAME, h.viewTarget(t, "textures/exotic"))
}

func TestTextureEvictionRepointsToFallback(t *testing.T) {
	h := newTextureHarness(t, 8)
	core.EventInitialize()
	defer core.EventShutdown()

	var evictedKey string
	listener := struct{ name string }{"test"}
	core.EventRegister(core.EVENT_CODE_RESOURCE_EVICTED, &listener,
		func(code core.SystemEventCode, sender, inst interface{}, data core.EventContext) bool {
			evictedKey = data.Data.C[0]
			return false
		})

	handle, err := h.textures.GetOrAllocate("textures/brick", cookedTexture(t, "textures/brick"), false)
	require.NoError(t, err)
	h.completePending()
	require.True(t, h.textures.IsResourceReady("textures/brick"))

	require.NoError(t, h.textures.Evict("textures/brick"))
	assert.False(t, h.textures.IsResourceReady("textures/brick"))
	assert.Equal(t, metadata.FALLBACK_TEXTURE_NAME, h.viewTarget(t, "textures/brick"))
	assert.Equal(t, "textures/brick", evictedKey)
	// Eviction keeps the bindless index.
	assert.Equal(t, handle.Index, h.textures.ShaderVisibleIndex("textures/brick"))

	// Re-registering uploads a fresh payload in place.
	again, err := h.textures.GetOrAllocate("textures/brick", cookedTexture(t, "textures/brick"), false)
	require.NoError(t, err)
	assert.Equal(t, handle, again)
	h.completePending()
	assert.True(t, h.textures.IsResourceReady("textures/brick"))

	assert.ErrorIs(t, h.textures.Evict("textures/ghost"), core.ErrNotFound)
}

func TestTextureEvictionWhilePendingDiscardsLateCompletion(t *testing.T) {
	h := newTextureHarness(t, 8, headless.WithManualFences())

	_, err := h.textures.GetOrAllocate("textures/brick", cookedTexture(t, "textures/brick"), false)
	require.NoError(t, err)
	assert.Equal(t, metadata.PlaceholderTextureName("textures/brick"), h.viewTarget(t, "textures/brick"))

	// Evicted before the upload fence retires.
	require.NoError(t, h.textures.Evict("textures/brick"))
	assert.Equal(t, metadata.FALLBACK_TEXTURE_NAME, h.viewTarget(t, "textures/brick"))

	// The late completion must not resurrect the evicted payload.
	h.completePending()
	assert.Equal(t, metadata.FALLBACK_TEXTURE_NAME, h.viewTarget(t, "textures/brick"))
	assert.False(t, h.textures.IsResourceReady("textures/brick"))
}

func TestTextureAutoReleaseEvictsAtZeroRefs(t *testing.T) {
	h := newTextureHarness(t, 8)

	_, err := h.textures.GetOrAllocate("textures/temp", cookedTexture(t, "textures/temp"), true)
	require.NoError(t, err)
	h.completePending()

	h.textures.Release("textures/temp")
	assert.False(t, h.textures.IsResourceReady("textures/temp"))
	assert.Equal(t, metadata.FALLBACK_TEXTURE_NAME, h.viewTarget(t, "textures/temp"))
	// The entry itself survives eviction.
	assert.Equal(t, 1, h.textures.EntryCount())
}

func TestTextureTableFull(t *testing.T) {
	h := newTextureHarness(t, 1)

	_, err := h.textures.GetOrAllocate("one", cookedTexture(t, "one"), false)
	require.NoError(t, err)

	_, err = h.textures.GetOrAllocate("two", cookedTexture(t, "two"), false)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
}

func TestTextureUnknownKey(t *testing.T) {
	h := newTextureHarness(t, 8)

	assert.Equal(t, metadata.InvalidID, h.textures.ShaderVisibleIndex("missing"))
	assert.False(t, h.textures.IsResourceReady("missing"))

	_, err := h.textures.GetOrAllocate("missing", nil, false)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
