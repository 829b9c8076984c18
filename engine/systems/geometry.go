package systems

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/upload"
)

type GeometrySystemConfig struct {
	/** @brief The maximum number of geometries that can be resident at once. */
	MaxGeometryCount uint32
}

type geometryEntry struct {
	key metadata.GeometryKey

	vertexBuffer renderer.Buffer
	indexBuffer  renderer.Buffer
	vertexHandle bindless.Handle
	indexHandle  bindless.Handle

	vertexTicket uuid.UUID
	indexTicket  uuid.UUID
	ticketsLeft  int

	pending  bool
	resident bool
	failed   bool

	indexCount uint32
	refCount   uint32
}

// GeometrySystem owns GPU residency for mesh LODs. Entries deduplicate per
// (asset key, LOD index); each resident entry exposes the bindless indices
// of its vertex and index buffer SRVs. Until the uploads land both indices
// read as the invalid sentinel so callers can skip not-yet-ready draws.
type GeometrySystem struct {
	config    *GeometrySystemConfig
	gfx       renderer.Graphics
	allocator *bindless.Allocator
	uploads   *upload.Coordinator

	entries map[metadata.GeometryKey]*geometryEntry
}

func NewGeometrySystem(config *GeometrySystemConfig, gfx renderer.Graphics, allocator *bindless.Allocator, uploads *upload.Coordinator) (*GeometrySystem, error) {
	if config.MaxGeometryCount == 0 {
		err := fmt.Errorf("func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &GeometrySystem{
		config:    config,
		gfx:       gfx,
		allocator: allocator,
		uploads:   uploads,
		entries:   make(map[metadata.GeometryKey]*geometryEntry),
	}, nil
}

// GetOrAllocate ensures a GPU residency entry exists for the LOD and bumps
// its reference count. A new or previously failed entry (re)starts its
// vertex and index uploads.
func (gs *GeometrySystem) GetOrAllocate(key metadata.GeometryKey, lod *metadata.MeshLOD) error {
	if entry, ok := gs.entries[key]; ok {
		entry.refCount++
		if entry.failed && lod != nil {
			if err := gs.beginUpload(entry, lod); err != nil {
				core.LogWarn("geometry %s lod %d retry failed: %s", key.AssetKey, key.LODIndex, err.Error())
			}
		}
		return nil
	}

	if uint32(len(gs.entries)) >= gs.config.MaxGeometryCount {
		return fmt.Errorf("geometry table full at %d entries: %w", gs.config.MaxGeometryCount, core.ErrCapacityExhausted)
	}
	if lod == nil {
		return fmt.Errorf("geometry %s lod %d is not registered and no mesh data was given: %w", key.AssetKey, key.LODIndex, core.ErrInvalidArgument)
	}
	if lod.VertexCount == 0 || len(lod.Indices) == 0 {
		return fmt.Errorf("geometry %s lod %d has no vertices or indices: %w", key.AssetKey, key.LODIndex, core.ErrInvalidArgument)
	}

	vertexHandle, err := gs.allocator.Allocate(bindless.ViewTypeSRV, bindless.VisibilityShaderVisible)
	if err != nil {
		return err
	}
	indexHandle, err := gs.allocator.Allocate(bindless.ViewTypeSRV, bindless.VisibilityShaderVisible)
	if err != nil {
		gs.allocator.Release(vertexHandle)
		return err
	}

	entry := &geometryEntry{
		key:          key,
		vertexHandle: vertexHandle,
		indexHandle:  indexHandle,
		indexCount:   uint32(len(lod.Indices)),
		refCount:     1,
	}
	gs.entries[key] = entry
	if err := gs.beginUpload(entry, lod); err != nil {
		core.LogWarn("geometry %s lod %d upload could not start: %s", key.AssetKey, key.LODIndex, err.Error())
		entry.failed = true
	}
	return nil
}

func (gs *GeometrySystem) beginUpload(entry *geometryEntry, lod *metadata.MeshLOD) error {
	name := fmt.Sprintf("%s[lod %d]", entry.key.AssetKey, entry.key.LODIndex)

	vb, err := gs.gfx.CreateBuffer(&metadata.BufferDesc{
		Size:   uint64(len(lod.VertexData)),
		Usage:  metadata.BufferUsageStructured | metadata.BufferUsageCopyDest,
		Heap:   metadata.HeapKindDefault,
		Stride: lod.VertexStride,
		Name:   name + " VB",
	})
	if err != nil {
		return err
	}
	indexData := make([]byte, len(lod.Indices)*4)
	for i, idx := range lod.Indices {
		binary.LittleEndian.PutUint32(indexData[i*4:], idx)
	}
	ib, err := gs.gfx.CreateBuffer(&metadata.BufferDesc{
		Size:   uint64(len(indexData)),
		Usage:  metadata.BufferUsageStructured | metadata.BufferUsageCopyDest,
		Heap:   metadata.HeapKindDefault,
		Stride: 4,
		Name:   name + " IB",
	})
	if err != nil {
		return err
	}

	tickets, err := gs.uploads.Submit(
		metadata.UploadRequest{
			Kind:   metadata.UploadKindBuffer,
			Buffer: metadata.BufferUploadDesc{Dst: vb, Size: uint64(len(lod.VertexData))},
			Data:   lod.VertexData,
			Name:   name + " VB",
		},
		metadata.UploadRequest{
			Kind:   metadata.UploadKindBuffer,
			Buffer: metadata.BufferUploadDesc{Dst: ib, Size: uint64(len(indexData))},
			Data:   indexData,
			Name:   name + " IB",
		},
	)
	if err != nil {
		return err
	}

	entry.vertexBuffer = vb
	entry.indexBuffer = ib
	entry.vertexTicket = tickets[0].ID
	entry.indexTicket = tickets[1].ID
	entry.ticketsLeft = 2
	entry.pending = true
	entry.resident = false
	entry.failed = false
	return nil
}

// OnFrameStart consumes finished upload tickets. An entry becomes resident
// only when both its buffers landed; any terminal failure, a retired
// (not-found) ticket included, marks the entry failed so the next acquire
// retries.
func (gs *GeometrySystem) OnFrameStart() {
	for _, entry := range gs.entries {
		if !entry.pending {
			continue
		}
		gs.pollTicket(entry, &entry.vertexTicket)
		gs.pollTicket(entry, &entry.indexTicket)
		if entry.ticketsLeft > 0 {
			continue
		}
		entry.pending = false
		if entry.failed {
			core.LogWarn("geometry %s lod %d upload failed", entry.key.AssetKey, entry.key.LODIndex)
			continue
		}
		if err := gs.registerViews(entry); err != nil {
			core.LogError("geometry %s lod %d view registration failed: %s", entry.key.AssetKey, entry.key.LODIndex, err.Error())
			entry.failed = true
			continue
		}
		entry.resident = true
	}
}

func (gs *GeometrySystem) pollTicket(entry *geometryEntry, id *uuid.UUID) {
	if *id == uuid.Nil || !gs.uploads.Tracker().IsComplete(*id) {
		return
	}
	result, err := gs.uploads.Tracker().TryGetResult(*id)
	*id = uuid.Nil
	entry.ticketsLeft--
	if err != nil || !result.Success() {
		entry.failed = true
	}
}

func (gs *GeometrySystem) registerViews(entry *geometryEntry) error {
	registry := gs.gfx.Registry()
	vbView := renderer.ViewDesc{Resource: entry.vertexBuffer}
	if _, err := registry.Find(entry.vertexHandle); err != nil {
		if err := registry.Register(entry.vertexHandle, vbView); err != nil {
			return err
		}
	} else if err := registry.Update(entry.vertexHandle, vbView); err != nil {
		return err
	}
	ibView := renderer.ViewDesc{Resource: entry.indexBuffer}
	if _, err := registry.Find(entry.indexHandle); err != nil {
		return registry.Register(entry.indexHandle, ibView)
	}
	return registry.Update(entry.indexHandle, ibView)
}

// ShaderVisibleIndices resolves the key's vertex and index SRV indices.
// Both read as the invalid sentinel until the entry is resident.
func (gs *GeometrySystem) ShaderVisibleIndices(key metadata.GeometryKey) (uint32, uint32) {
	entry, ok := gs.entries[key]
	if !ok || !entry.resident {
		return metadata.InvalidID, metadata.InvalidID
	}
	return gs.allocator.ShaderVisibleIndex(entry.vertexHandle), gs.allocator.ShaderVisibleIndex(entry.indexHandle)
}

// Has reports whether a residency entry exists for the key, resident or
// not.
func (gs *GeometrySystem) Has(key metadata.GeometryKey) bool {
	_, ok := gs.entries[key]
	return ok
}

// IsResourceReady reports whether both buffers of the key are resident.
func (gs *GeometrySystem) IsResourceReady(key metadata.GeometryKey) bool {
	entry, ok := gs.entries[key]
	return ok && entry.resident
}

// IndexCount returns the entry's index count, or zero for unknown keys.
func (gs *GeometrySystem) IndexCount(key metadata.GeometryKey) uint32 {
	entry, ok := gs.entries[key]
	if !ok {
		return 0
	}
	return entry.indexCount
}

// Release drops one reference and frees the entry when none remain.
func (gs *GeometrySystem) Release(key metadata.GeometryKey) {
	entry, ok := gs.entries[key]
	if !ok {
		return
	}
	if entry.refCount > 0 {
		entry.refCount--
	}
	if entry.refCount > 0 {
		return
	}
	gs.freeEntry(entry)
	delete(gs.entries, key)
}

func (gs *GeometrySystem) freeEntry(entry *geometryEntry) {
	registry := gs.gfx.Registry()
	registry.Unregister(entry.vertexHandle)
	registry.Unregister(entry.indexHandle)
	if err := gs.allocator.Release(entry.vertexHandle); err != nil {
		core.LogWarn("geometry %s vertex handle release failed: %s", entry.key.AssetKey, err.Error())
	}
	if err := gs.allocator.Release(entry.indexHandle); err != nil {
		core.LogWarn("geometry %s index handle release failed: %s", entry.key.AssetKey, err.Error())
	}
}

// EntryCount returns the number of registered geometry entries.
func (gs *GeometrySystem) EntryCount() int {
	return len(gs.entries)
}

func (gs *GeometrySystem) Shutdown() error {
	for key, entry := range gs.entries {
		gs.freeEntry(entry)
		delete(gs.entries, key)
	}
	return nil
}
