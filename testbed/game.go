package testbed

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/oxygen3d/oxygen/engine"
	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/scene"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine

	cameraNode scene.NodeHandle
	cubes      []scene.NodeHandle
	glassCube  scene.NodeHandle

	angle  float32
	width  uint32
	height uint32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.State.(*gameState)
	state.engine = e
	state.width, state.height = e.GetFramebufferSize()

	materials := e.Systems().Materials()
	if err := materials.Register(&metadata.Material{
		Name:      "crate",
		BaseColor: math.NewVec4(1, 1, 1, 1),
		Metallic:  0.0,
		Roughness: 0.8,
		Textures: map[metadata.TextureSlot]string{
			metadata.TextureSlotBaseColor: "textures/crate.png",
		},
		PassMask: metadata.PassMaskDepth | metadata.PassMaskOpaque,
	}); err != nil {
		return err
	}
	if err := materials.Register(&metadata.Material{
		Name:        "glass",
		BaseColor:   math.NewVec4(0.4, 0.7, 0.9, 0.35),
		Roughness:   0.1,
		Transparent: true,
		PassMask:    metadata.PassMaskTransparent,
	}); err != nil {
		return err
	}

	sc := e.Scene()

	// Camera looking at the cube grid from slightly above.
	state.cameraNode = sc.CreateNode("camera")
	cameraTransform, err := sc.AddTransform(state.cameraNode)
	if err != nil {
		return err
	}
	eye := math.NewVec3(0, 3, -8)
	cameraTransform.SetPosition(eye)

	camera := &scene.CameraComponent{
		VerticalFovRad: math.DegToRad(45.0),
		ViewportWidth:  state.width,
		ViewportHeight: state.height,
	}
	camera.View = math.NewMat4LookAt(eye, math.NewVec3Zero(), math.NewVec3(0, 1, 0))
	camera.Projection = perspectiveFor(camera.VerticalFovRad, state.width, state.height)
	if err := sc.AddCamera(state.cameraNode, camera); err != nil {
		return err
	}
	if err := e.SetActiveCamera(state.cameraNode); err != nil {
		return err
	}

	crateMesh := cubeMesh("cube", "crate")
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			name := fmt.Sprintf("cube-%d-%d", i, j)
			node := sc.CreateNode(name)
			t, err := sc.AddTransform(node)
			if err != nil {
				return err
			}
			t.SetPosition(math.NewVec3(float32(i-1)*2.0, 0, float32(j-1)*2.0))
			if err := sc.AddRenderable(node, &scene.RenderableComponent{
				AssetKey: "meshes/cube",
				Mesh:     crateMesh,
			}); err != nil {
				return err
			}
			state.cubes = append(state.cubes, node)
		}
	}

	glassMesh := cubeMesh("glass-cube", "glass")
	state.glassCube = sc.CreateNode("glass-cube")
	glassTransform, err := sc.AddTransform(state.glassCube)
	if err != nil {
		return err
	}
	glassTransform.SetPosition(math.NewVec3(0, 2, 0))
	if err := sc.AddRenderable(state.glassCube, &scene.RenderableComponent{
		AssetKey: "meshes/glass-cube",
		Mesh:     glassMesh,
	}); err != nil {
		return err
	}

	return nil
}

func (g *TestGame) Update(fc *engine.FrameContext) error {
	state := g.State.(*gameState)
	state.angle += float32(fc.DeltaTime) * 0.5

	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), state.angle, true)
	for _, node := range state.cubes {
		t, err := fc.Scene().Transform(node)
		if err != nil {
			return err
		}
		t.SetRotation(rotation)
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height

	camera, err := state.engine.Scene().Camera(state.cameraNode)
	if err != nil {
		return err
	}
	camera.ViewportWidth = width
	camera.ViewportHeight = height
	camera.Projection = perspectiveFor(camera.VerticalFovRad, width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}

func perspectiveFor(fovRad float32, width, height uint32) math.Mat4 {
	if height == 0 {
		height = 1
	}
	aspect := float32(width) / float32(height)
	return math.NewMat4Perspective(fovRad, aspect, 0.1, 1000.0)
}

const cubeVertexStride = 60

type cubeFace struct {
	normal  math.Vec3
	tangent math.Vec3
	corners [4]math.Vec3
}

var cubeFaces = []cubeFace{
	{ // +Z
		normal:  math.NewVec3(0, 0, 1),
		tangent: math.NewVec3(1, 0, 0),
		corners: [4]math.Vec3{{X: -0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5}},
	},
	{ // -Z
		normal:  math.NewVec3(0, 0, -1),
		tangent: math.NewVec3(-1, 0, 0),
		corners: [4]math.Vec3{{X: 0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}},
	},
	{ // +X
		normal:  math.NewVec3(1, 0, 0),
		tangent: math.NewVec3(0, 0, -1),
		corners: [4]math.Vec3{{X: 0.5, Y: -0.5, Z: 0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: 0.5, Y: 0.5, Z: 0.5}},
	},
	{ // -X
		normal:  math.NewVec3(-1, 0, 0),
		tangent: math.NewVec3(0, 0, 1),
		corners: [4]math.Vec3{{X: -0.5, Y: -0.5, Z: -0.5}, {X: -0.5, Y: -0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: 0.5}, {X: -0.5, Y: 0.5, Z: -0.5}},
	},
	{ // +Y
		normal:  math.NewVec3(0, 1, 0),
		tangent: math.NewVec3(1, 0, 0),
		corners: [4]math.Vec3{{X: -0.5, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5, Z: -0.5}, {X: -0.5, Y: 0.5, Z: -0.5}},
	},
	{ // -Y
		normal:  math.NewVec3(0, -1, 0),
		tangent: math.NewVec3(1, 0, 0),
		corners: [4]math.Vec3{{X: -0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: -0.5}, {X: 0.5, Y: -0.5, Z: 0.5}, {X: -0.5, Y: -0.5, Z: 0.5}},
	},
}

// cubeMesh builds a unit cube as a single-LOD mesh in the interleaved
// vertex format the geometry binder uploads verbatim.
func cubeMesh(name, material string) *metadata.Mesh {
	uvs := [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	white := math.NewVec4(1, 1, 1, 1)

	data := make([]byte, 0, len(cubeFaces)*4*cubeVertexStride)
	indices := make([]uint32, 0, len(cubeFaces)*6)
	for fi, face := range cubeFaces {
		for ci, corner := range face.corners {
			data = appendFloats(data,
				corner.X, corner.Y, corner.Z,
				face.normal.X, face.normal.Y, face.normal.Z,
				uvs[ci].X, uvs[ci].Y,
				white.X, white.Y, white.Z, white.W,
				face.tangent.X, face.tangent.Y, face.tangent.Z,
			)
		}
		base := uint32(fi * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	bounds := math.NewAABB(math.NewVec3(-0.5, -0.5, -0.5), math.NewVec3(0.5, 0.5, 0.5))
	return &metadata.Mesh{
		Name: name,
		LODs: []metadata.MeshLOD{{
			VertexData:   data,
			VertexCount:  uint32(len(cubeFaces) * 4),
			VertexStride: cubeVertexStride,
			Indices:      indices,
			Bounds:       bounds,
			Submeshes: []metadata.Submesh{{
				Name:          "body",
				IndexOffset:   0,
				IndexCount:    uint32(len(indices)),
				MaterialIndex: 0,
				Bounds:        bounds,
				Visible:       true,
			}},
		}},
		Materials:       []string{material},
		DefaultMaterial: metadata.DEFAULT_MATERIAL_NAME,
	}
}

func appendFloats(data []byte, values ...float32) []byte {
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, gomath.Float32bits(v))
	}
	return data
}
