package clip

import (
	"context"
	"fmt"

	clipper "github.com/ctessum/go.clipper"
)

// hostMemory is a growable byte buffer standing in for engine memory.
type hostMemory struct {
	buf []byte
}

func (m *hostMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint32(len(m.buf)) < offset || uint32(len(m.buf))-offset < byteCount {
		return nil, false
	}
	return m.buf[offset : offset+byteCount], true
}

// Write writes v at offset, growing the memory when needed.
func (m *hostMemory) Write(offset uint32, v []byte) bool {
	if end := int(offset) + len(v); len(m.buf) < end {
		m.grow(end)
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *hostMemory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *hostMemory) grow(n int) {
	if n <= cap(m.buf) {
		m.buf = m.buf[:n]
		return
	}
	buf := make([]byte, n, 2*n)
	copy(buf, m.buf)
	m.buf = buf
}

// HostEngine implements the engine operations in-process on top of the software clipper, using the same buffer layout as WebAssembly engines.
type HostEngine struct {
	mem  hostMemory
	heap uint32
}

// NewHostEngine returns an engine that runs in-process.
func NewHostEngine() *HostEngine {
	return &HostEngine{}
}

func (e *HostEngine) Memory() Memory {
	return &e.mem
}

// Alloc reserves size bytes and returns their offset. Memory is only grown once it is written.
func (e *HostEngine) Alloc(_ context.Context, size uint32) (uint32, error) {
	ptr := e.heap
	e.heap += size
	return ptr, nil
}

func (e *HostEngine) read(ptr, count uint32) (clipper.Paths, uint32, error) {
	data, ok := e.mem.Read(ptr, e.mem.Size()-min(ptr, e.mem.Size()))
	if !ok {
		return nil, 0, fmt.Errorf("read at %d: %w", ptr, ErrShortBuffer)
	}
	r := newBinaryReader(data)
	records, err := readRecords(r, count)
	if err != nil {
		return nil, 0, fmt.Errorf("read %d polygons at %d: %w", count, ptr, err)
	}
	return pathsFromRecords(records), ptr + r.Pos(), nil
}

func (e *HostEngine) write(ptr uint32, seqs ...clipper.Paths) uint32 {
	w := newBinaryWriter(nil)
	for _, paths := range seqs {
		writeRecords(w, recordsFromPaths(paths))
	}
	e.mem.Write(ptr, w.Bytes())
	return ptr
}

// Offset offsets the polygons by dist using mitered joins.
func (e *HostEngine) Offset(_ context.Context, ptr, count uint32, dist float32) (uint32, error) {
	paths, end, err := e.read(ptr, count)
	if err != nil {
		return 0, err
	} else if len(paths) == 0 {
		return e.write(end, nil), nil
	}
	co := clipper.NewClipperOffset()
	co.AddPaths(paths, clipper.JtMiter, clipper.EtClosedPolygon)
	return e.write(end, co.Execute(float64(dist))), nil
}

// Union merges all polygons under the non-zero fill rule.
func (e *HostEngine) Union(_ context.Context, ptr, count uint32) (uint32, error) {
	paths, end, err := e.read(ptr, count)
	if err != nil {
		return 0, err
	}
	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(paths, clipper.PtSubject, true)
	out, _ := c.Execute1(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	return e.write(end, out), nil
}

// Diff subtracts the polygons of B from A and those of A from B.
func (e *HostEngine) Diff(_ context.Context, ptrA, countA, ptrB, countB uint32, ab, ba bool, clean float32) (uint32, error) {
	a, endA, err := e.read(ptrA, countA)
	if err != nil {
		return 0, err
	}
	b, endB, err := e.read(ptrB, countB)
	if err != nil {
		return 0, err
	}
	if 0.0 < clean {
		c := clipper.NewClipper(clipper.IoNone)
		a = c.CleanPolygons(a, float64(clean))
		b = c.CleanPolygons(b, float64(clean))
	}
	var seqs []clipper.Paths
	if ab {
		seqs = append(seqs, difference(a, b))
	}
	if ba {
		seqs = append(seqs, difference(b, a))
	}
	return e.write(max(endA, endB), seqs...), nil
}

func (e *HostEngine) Close(context.Context) error {
	e.mem.buf = nil
	e.heap = 0
	return nil
}

func difference(subject, clip clipper.Paths) clipper.Paths {
	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(subject, clipper.PtSubject, true)
	c.AddPaths(clip, clipper.PtClip, true)
	out, _ := c.Execute1(clipper.CtDifference, clipper.PftNonZero, clipper.PftNonZero)
	return out
}
