package metadata

// BufferUsage is a bitmask of the ways a buffer may be bound.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageConstant
	BufferUsageStructured
	BufferUsageUnorderedAccess
	BufferUsageCopySource
	BufferUsageCopyDest
)

// HeapKind selects which memory heap a buffer lives in.
type HeapKind uint8

const (
	// Device-local memory, not CPU visible.
	HeapKindDefault HeapKind = iota
	// CPU-writable upload memory, persistently mappable.
	HeapKindUpload
	// CPU-readable readback memory.
	HeapKindReadback
)

type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
	Heap  HeapKind
	// Element stride for structured buffers; 0 otherwise.
	Stride uint32
	Name   string
}
