package sceneprep

import (
	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/scene"
	"github.com/oxygen3d/oxygen/engine/systems"
)

// CollectInput is the per-frame view state collection runs against.
type CollectInput struct {
	Scene          *scene.Scene
	CameraPosition math.Vec3
	VerticalFovRad float32
	ViewportHeight uint32
	// Frustum enables world-space culling when set.
	Frustum *math.Frustum
}

// Collector walks a scene and emits one RenderItemData per visible submesh
// of every visible renderable node. Geometry residency is requested for the
// selected LOD; items for not-yet-resident geometry carry sentinel SRV
// indices and are skipped by the passes.
type Collector struct {
	geometries *systems.GeometrySystem
	materials  *systems.MaterialSystem
	policy     LODPolicy

	// Last LOD chosen per node, feeding policy hysteresis.
	lastLOD map[scene.NodeHandle]int
}

func NewCollector(geometries *systems.GeometrySystem, materials *systems.MaterialSystem, policy LODPolicy) *Collector {
	if policy == nil {
		policy = FixedLODPolicy{}
	}
	return &Collector{
		geometries: geometries,
		materials:  materials,
		policy:     policy,
		lastLOD:    make(map[scene.NodeHandle]int),
	}
}

// Collect runs one pass over the scene and returns the frame's draw list.
// The returned slice is stable for the duration of the frame.
func (c *Collector) Collect(in *CollectInput) []metadata.RenderItemData {
	ctx := &LODContext{
		CameraPosition: in.CameraPosition,
		VerticalFovRad: in.VerticalFovRad,
		ViewportHeight: in.ViewportHeight,
	}

	var items []metadata.RenderItemData
	seen := make(map[scene.NodeHandle]struct{})

	filter := func(node scene.VisitedNode, parentResult scene.FilterResult) scene.FilterResult {
		if !node.Flags().EffectiveValue(scene.FlagVisible) {
			return scene.FilterReject
		}
		return scene.FilterAccept
	}
	visitor := func(node scene.VisitedNode) scene.VisitResult {
		renderable := node.Renderable()
		transform := node.Transform()
		if renderable == nil || transform == nil {
			return scene.VisitContinue
		}
		world, err := transform.GetWorldMatrix()
		if err != nil {
			// Collection runs after the transform update phase; a missing
			// world matrix here is a scheduling bug.
			core.LogError("collect: node '%s' visited before its transform update: %s", node.Name(), err.Error())
			return scene.VisitContinue
		}
		mesh := renderable.Mesh
		if mesh == nil || mesh.LODCount() == 0 {
			return scene.VisitContinue
		}

		bounds := renderable.Bounds
		if boundsEmpty(bounds) {
			bounds = mesh.LODs[0].Bounds
		}
		worldBounds := bounds.Transformed(world)

		previous, ok := c.lastLOD[node.Handle]
		if !ok {
			previous = -1
		}
		lod := c.policy.SelectLOD(ctx, worldBounds, mesh.LODCount(), previous)
		c.lastLOD[node.Handle] = int(lod)
		seen[node.Handle] = struct{}{}

		key := metadata.GeometryKey{AssetKey: renderable.AssetKey, LODIndex: lod}
		if !c.geometries.Has(key) {
			if err := c.geometries.GetOrAllocate(key, &mesh.LODs[lod]); err != nil {
				core.LogWarn("collect: geometry %s lod %d unavailable: %s", key.AssetKey, key.LODIndex, err.Error())
				return scene.VisitContinue
			}
		}
		vertexSRV, indexSRV := c.geometries.ShaderVisibleIndices(key)

		flags := itemFlags(node.Flags())
		lodData := &mesh.LODs[lod]
		for si := range lodData.Submeshes {
			submesh := &lodData.Submeshes[si]
			if !submesh.Visible {
				continue
			}
			if in.Frustum != nil && !boundsEmpty(submesh.Bounds) {
				if !in.Frustum.IntersectsAABB(submesh.Bounds.Transformed(world)) {
					continue
				}
			}
			material := c.materials.Resolve(mesh.MaterialName(submesh.MaterialIndex))
			items = append(items, metadata.RenderItemData{
				WorldTransform: world,
				GeometryKey:    key,
				SubmeshIndex:   uint32(si),
				Material:       material,
				VertexSRV:      vertexSRV,
				IndexSRV:       indexSRV,
				IndexOffset:    submesh.IndexOffset,
				IndexCount:     submesh.IndexCount,
				Flags:          flags,
				PassMask:       material.PassMask,
			})
		}
		return scene.VisitContinue
	}

	in.Scene.TraverseBFS(filter, visitor)

	// Drop hysteresis state for nodes that left the visible set.
	for handle := range c.lastLOD {
		if _, ok := seen[handle]; !ok {
			delete(c.lastLOD, handle)
		}
	}
	return items
}

func itemFlags(flags *scene.FlagSet) metadata.RenderItemFlags {
	var out metadata.RenderItemFlags
	if flags.EffectiveValue(scene.FlagCastsShadows) {
		out |= metadata.RenderItemCastShadows
	}
	if flags.EffectiveValue(scene.FlagReceivesShadows) {
		out |= metadata.RenderItemReceiveShadows
	}
	return out
}

func boundsEmpty(b math.AABB) bool {
	return b.Min == b.Max
}
