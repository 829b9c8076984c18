package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

func newTestCoordinator(t *testing.T, opts ...headless.Option) (*headless.Device, *Coordinator) {
	t.Helper()
	gfx := headless.NewDevice(opts...)
	c := NewCoordinator(gfx, NewBufferStagingProvider(gfx, 4096))
	return gfx, c
}

func defaultBuffer(t *testing.T, gfx *headless.Device, size uint64, name string) renderer.Buffer {
	t.Helper()
	buf, err := gfx.CreateBuffer(&metadata.BufferDesc{
		Size: size,
		Heap: metadata.HeapKindDefault,
		Name: name,
	})
	require.NoError(t, err)
	return buf
}

func TestBufferUploadCopiesPayload(t *testing.T) {
	gfx, c := newTestCoordinator(t)
	dst := defaultBuffer(t, gfx, 64, "vertices")

	payload := []byte("hello, gpu")
	ticket, err := c.SubmitOne(metadata.UploadRequest{
		Kind:   metadata.UploadKindBuffer,
		Buffer: metadata.BufferUploadDesc{Dst: dst, DstOffset: 8},
		Data:   payload,
		Name:   "vertices",
	})
	require.NoError(t, err)

	c.PumpCompletions()
	require.True(t, c.Tracker().IsComplete(ticket.ID))

	r, err := c.Tracker().TryGetResult(ticket.ID)
	require.NoError(t, err)
	assert.True(t, r.Success())
	assert.Equal(t, uint64(len(payload)), r.BytesUploaded)
	assert.Equal(t, payload, dst.(*headless.Buffer).Data()[8:8+len(payload)])
}

func TestTextureUploadUnpacksRows(t *testing.T) {
	gfx, c := newTestCoordinator(t)

	desc := metadata.TextureDesc{
		Width:     4,
		Height:    2,
		MipLevels: 1,
		Format:    metadata.FormatRGBA8Unorm,
		Name:      "tiny",
	}
	tex, err := gfx.CreateTexture(&desc)
	require.NoError(t, err)

	layouts, total, err := metadata.ComputeTextureLayout(&desc)
	require.NoError(t, err)

	payload := make([]byte, total)
	for row := uint64(0); row < 2; row++ {
		for i := uint64(0); i < layouts[0].RowSize; i++ {
			payload[layouts[0].Offset+row*layouts[0].RowPitch+i] = byte(row*16 + i)
		}
	}

	ticket, err := c.SubmitOne(metadata.UploadRequest{
		Kind:    metadata.UploadKindTexture,
		Texture: metadata.TextureUploadDesc{Dst: tex, Layouts: layouts},
		Data:    payload,
		Name:    "tiny",
	})
	require.NoError(t, err)

	c.PumpCompletions()
	r, err := c.Tracker().TryGetResult(ticket.ID)
	require.NoError(t, err)
	require.True(t, r.Success())

	mip0 := tex.(*headless.Texture).Subresource(0)
	require.Len(t, mip0, 4*2*4)
	assert.Equal(t, byte(0), mip0[0])
	assert.Equal(t, byte(16), mip0[16])
}

func TestBatchSharesOneFence(t *testing.T) {
	gfx, c := newTestCoordinator(t, headless.WithManualFences())
	a := defaultBuffer(t, gfx, 32, "a")
	b := defaultBuffer(t, gfx, 32, "b")

	tickets, err := c.Submit(
		metadata.UploadRequest{
			Kind:   metadata.UploadKindBuffer,
			Buffer: metadata.BufferUploadDesc{Dst: a},
			Data:   []byte{1, 2, 3, 4},
			Name:   "a",
		},
		metadata.UploadRequest{
			Kind:   metadata.UploadKindBuffer,
			Buffer: metadata.BufferUploadDesc{Dst: b},
			Data:   []byte{5, 6, 7, 8},
			Name:   "b",
		},
	)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, tickets[0].FenceValue, tickets[1].FenceValue)

	c.PumpCompletions()
	assert.False(t, c.Tracker().IsComplete(tickets[0].ID))

	gfx.Queue(renderer.QueueKindTransfer).(*headless.Queue).CompleteThrough(tickets[0].FenceValue)
	c.PumpCompletions()
	assert.True(t, c.Tracker().IsComplete(tickets[0].ID))
	assert.True(t, c.Tracker().IsComplete(tickets[1].ID))
}

func TestInvalidRequestFailsWithoutCorruptingBatch(t *testing.T) {
	gfx, c := newTestCoordinator(t)
	good := defaultBuffer(t, gfx, 32, "good")

	tickets, err := c.Submit(
		metadata.UploadRequest{
			Kind: metadata.UploadKindBuffer,
			// No destination.
			Data: []byte{1},
			Name: "bad",
		},
		metadata.UploadRequest{
			Kind:   metadata.UploadKindBuffer,
			Buffer: metadata.BufferUploadDesc{Dst: good},
			Data:   []byte{9, 9},
			Name:   "good",
		},
	)
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	c.PumpCompletions()
	bad, err := c.Tracker().TryGetResult(tickets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, CodeValidationFailed, bad.Code)

	goodResult, err := c.Tracker().TryGetResult(tickets[1].ID)
	require.NoError(t, err)
	assert.True(t, goodResult.Success())
	assert.Equal(t, []byte{9, 9}, good.(*headless.Buffer).Data()[:2])
}

func TestStagingFailureYieldsFailedTicket(t *testing.T) {
	gfx, c := newTestCoordinator(t)
	dst := defaultBuffer(t, gfx, 32, "dst")

	gfx.InjectBufferCreateFailures(1)
	ticket, err := c.SubmitOne(metadata.UploadRequest{
		Kind:   metadata.UploadKindBuffer,
		Buffer: metadata.BufferUploadDesc{Dst: dst},
		Data:   []byte{1, 2, 3},
		Name:   "starved",
	})
	require.NoError(t, err)

	r, err := c.Tracker().TryGetResult(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, CodeStagingAllocFailed, r.Code)
}

func TestOnFrameStartRetiresStagingAndTickets(t *testing.T) {
	gfx, c := newTestCoordinator(t)
	dst := defaultBuffer(t, gfx, 32, "dst")

	c.OnFrameStart("frame", 0)
	ticket, err := c.SubmitOne(metadata.UploadRequest{
		Kind:   metadata.UploadKindBuffer,
		Buffer: metadata.BufferUploadDesc{Dst: dst},
		Data:   []byte{1, 2, 3},
		Name:   "short-lived",
	})
	require.NoError(t, err)

	c.OnFrameStart("frame", 1)
	c.OnFrameStart("frame", 0)

	// The slot has wrapped; the ticket is gone.
	_, err = c.Tracker().TryGetResult(ticket.ID)
	assert.Error(t, err)
}
