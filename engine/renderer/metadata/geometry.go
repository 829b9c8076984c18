package metadata

import (
	"github.com/oxygen3d/oxygen/engine/math"
)

// GeometryKey identifies one LOD of one mesh asset. The geometry binder
// dedupes on this key.
type GeometryKey struct {
	AssetKey string
	LODIndex uint32
}

// Submesh is a contiguous index range of a LOD with its own material and
// visibility override.
type Submesh struct {
	Name          string
	IndexOffset   uint32
	IndexCount    uint32
	MaterialIndex uint32
	Bounds        math.AABB
	Visible       bool
}

// MeshLOD is one level of detail: interleaved vertex data plus indices,
// split into submeshes.
type MeshLOD struct {
	VertexData   []byte
	VertexCount  uint32
	VertexStride uint32
	Indices      []uint32
	Bounds       math.AABB
	Submeshes    []Submesh
}

// Mesh is a renderable asset with one or more LODs, ordered most to least
// detailed.
type Mesh struct {
	Name string
	LODs []MeshLOD
	// Material names indexed by Submesh.MaterialIndex. An out-of-range or
	// invalid index resolves to DefaultMaterial.
	Materials       []string
	DefaultMaterial string
}

// MaterialName resolves a submesh's material index to a name, falling back
// to the mesh default.
func (m *Mesh) MaterialName(index uint32) string {
	if index == InvalidID || index >= uint32(len(m.Materials)) {
		return m.DefaultMaterial
	}
	return m.Materials[index]
}

// LODCount returns the number of levels of detail.
func (m *Mesh) LODCount() uint32 {
	return uint32(len(m.LODs))
}

// GeometryRef is the input to the geometry binder: which asset/LOD and the
// mesh data backing it.
type GeometryRef struct {
	Key  GeometryKey
	Mesh *Mesh
}
