// Package clip performs polygon union, difference and offset through a polygon engine. Polygons are marshalled into a flat buffer of fixed point coordinates in the engine's memory, an exported operation is invoked and the result buffer is read back and nested. Engines are either sandboxed WebAssembly modules or the in-process host engine, and when neither is available the operations run directly on the software clipper.
package clip

import (
	"context"
	"errors"
)

// ErrEngineUnavailable is returned when an engine lacks a required export.
var ErrEngineUnavailable = errors.New("polygon engine unavailable")

// Memory is the linear memory of an engine. It is satisfied by the memory of a WebAssembly module.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	Size() uint32
}

// Engine executes polygon operations on buffers in its memory. Buffers hold count polygon records as written by the wire format, and each operation writes its result right after its input, terminated by a zero count, and returns the result's offset. Distances are in fixed point units.
type Engine interface {
	Memory() Memory
	Alloc(ctx context.Context, size uint32) (uint32, error)
	Offset(ctx context.Context, ptr, count uint32, dist float32) (uint32, error)
	Union(ctx context.Context, ptr, count uint32) (uint32, error)

	// Diff computes A-B when ab is set and B-A when ba is set, written in that order and each terminated by a zero count. Polygons are cleaned with the given distance first when it is positive.
	Diff(ctx context.Context, ptrA, countA, ptrB, countB uint32, ab, ba bool, clean float32) (uint32, error)
	Close(ctx context.Context) error
}
