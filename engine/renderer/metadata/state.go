package metadata

// ResourceState models the D3D12-style usage states the tracker transitions
// resources between.
type ResourceState uint32

const (
	StateUndefined ResourceState = iota
	StateCommon
	StateVertexAndConstantBuffer
	StateIndexBuffer
	StateRenderTarget
	StateUnorderedAccess
	StateDepthWrite
	StateDepthRead
	StateShaderResource
	StateCopyDest
	StateCopySource
	StatePresent
)

func (s ResourceState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateCommon:
		return "Common"
	case StateVertexAndConstantBuffer:
		return "VertexAndConstantBuffer"
	case StateIndexBuffer:
		return "IndexBuffer"
	case StateRenderTarget:
		return "RenderTarget"
	case StateUnorderedAccess:
		return "UnorderedAccess"
	case StateDepthWrite:
		return "DepthWrite"
	case StateDepthRead:
		return "DepthRead"
	case StateShaderResource:
		return "ShaderResource"
	case StateCopyDest:
		return "CopyDest"
	case StateCopySource:
		return "CopySource"
	case StatePresent:
		return "Present"
	default:
		return "Invalid"
	}
}

type BarrierType uint8

const (
	BarrierTypeTransition BarrierType = iota
	BarrierTypeUAV
)

// Barrier is one pending transition accumulated by the state tracker and
// later emitted through a command recorder.
type Barrier struct {
	Type     BarrierType
	Resource GPUResource
	Before   ResourceState
	After    ResourceState
}
