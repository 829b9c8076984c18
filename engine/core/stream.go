package core

import (
	"fmt"
	"io"
)

// MemoryStream is a seekable read/write view over an in-memory byte buffer.
// Loaders use it to parse cooked payloads without touching the filesystem.
// Writes past the end grow the buffer; reads past the end return io.EOF.
type MemoryStream struct {
	data []byte
	pos  int64
}

func NewMemoryStream(size uint64) *MemoryStream {
	return &MemoryStream{data: make([]byte, size)}
}

func NewMemoryStreamFrom(data []byte) *MemoryStream {
	d := make([]byte, len(data))
	copy(d, data)
	return &MemoryStream{data: d}
}

func (ms *MemoryStream) Size() uint64 {
	return uint64(len(ms.data))
}

func (ms *MemoryStream) Bytes() []byte {
	return ms.data
}

func (ms *MemoryStream) Read(p []byte) (int, error) {
	if ms.pos >= int64(len(ms.data)) {
		return 0, io.EOF
	}
	n := copy(p, ms.data[ms.pos:])
	ms.pos += int64(n)
	return n, nil
}

func (ms *MemoryStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %w", ErrInvalidArgument)
	}
	if off >= int64(len(ms.data)) {
		return 0, io.EOF
	}
	n := copy(p, ms.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (ms *MemoryStream) Write(p []byte) (int, error) {
	if need := ms.pos + int64(len(p)); need > int64(len(ms.data)) {
		grown := make([]byte, need)
		copy(grown, ms.data)
		ms.data = grown
	}
	n := copy(ms.data[ms.pos:], p)
	ms.pos += int64(n)
	return n, nil
}

func (ms *MemoryStream) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = ms.pos + offset
	case io.SeekEnd:
		next = int64(len(ms.data)) + offset
	default:
		return 0, fmt.Errorf("bad whence %d: %w", whence, ErrInvalidArgument)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek before start: %w", ErrInvalidArgument)
	}
	ms.pos = next
	return next, nil
}
