package clip

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/tdewolff/slicer"
)

// Counts tallies the operations a bridge executed on its engine.
type Counts struct {
	Offset, Union, Diff int
}

// Bridge marshals polygons into the memory of an engine, invokes its operations and reads back and nests the results. A nil or disabled engine makes the bridge run all operations in software. The scratch region is shared between calls, so operations are serialized.
type Bridge struct {
	mu        sync.Mutex
	engine    Engine
	enabled   bool
	allocated bool
	heap      uint32
	buf       []byte
	counts    Counts
}

// NewBridge returns a bridge to engine, which may be nil.
func NewBridge(engine Engine) *Bridge {
	return &Bridge{engine: engine, enabled: engine != nil}
}

// Enable routes operations to the engine, if there is one.
func (b *Bridge) Enable() {
	b.mu.Lock()
	b.enabled = b.engine != nil
	b.mu.Unlock()
}

// Disable routes all operations to software.
func (b *Bridge) Disable() {
	b.mu.Lock()
	b.enabled = false
	b.mu.Unlock()
}

// Enabled returns true if operations are routed to the engine.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Counts returns the number of operations executed on the engine.
func (b *Bridge) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Close closes the engine.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
	if b.engine == nil {
		return nil
	}
	err := b.engine.Close(ctx)
	b.engine = nil
	return err
}

// prepare writes polygon sets back to back into engine memory and returns the offset and record count of each. It returns false when the engine cannot be used.
func (b *Bridge) prepare(ctx context.Context, sets ...[]*slicer.Polygon) ([]uint32, []uint32, bool, error) {
	if b.engine == nil || !b.enabled {
		return nil, nil, false, nil
	}
	for _, set := range sets {
		if !fitsWire(set) {
			slicer.Logger().Warn("polygon exceeds engine record size, using software", "max", math.MaxUint16)
			return nil, nil, false, nil
		}
	}
	if !b.allocated {
		ptr, err := b.engine.Alloc(ctx, HeapSize)
		if err != nil {
			slicer.Logger().Warn("engine allocation failed, using software", "err", err)
			b.enabled = false
			return nil, nil, false, nil
		}
		b.heap, b.allocated = ptr, true
	}

	w := newBinaryWriter(b.buf)
	ptrs := make([]uint32, 0, len(sets))
	counts := make([]uint32, 0, len(sets))
	for _, set := range sets {
		ptrs = append(ptrs, b.heap+w.Len())
		counts = append(counts, uint32(writePolys(w, set)))
	}
	b.buf = w.Bytes()
	if HeapSize < w.Len() {
		slicer.Logger().Warn("polygons exceed engine heap, using software", "bytes", w.Len(), "heap", HeapSize)
		return nil, nil, false, nil
	} else if !b.engine.Memory().Write(b.heap, w.Bytes()) {
		return nil, nil, false, fmt.Errorf("write %d bytes at %d: %w", w.Len(), b.heap, ErrShortBuffer)
	}
	return ptrs, counts, true, nil
}

// result returns a reader over engine memory starting at offset at.
func (b *Bridge) result(at uint32) (*binaryReader, error) {
	mem := b.engine.Memory()
	data, ok := mem.Read(at, mem.Size()-min(at, mem.Size()))
	if !ok {
		return nil, fmt.Errorf("read result at %d: %w", at, ErrShortBuffer)
	}
	return newBinaryReader(data), nil
}

// Offset offsets closed polygons by dist, outward for positive and inward for negative distances, and returns the nested results at height z.
func (b *Bridge) Offset(ctx context.Context, polys []*slicer.Polygon, dist, z float64) ([]*slicer.Polygon, error) {
	polys = closed(polys)
	b.mu.Lock()
	defer b.mu.Unlock()

	ptrs, counts, ok, err := b.prepare(ctx, polys)
	if err != nil {
		return nil, err
	} else if !ok {
		return software{}.Offset(polys, dist, z), nil
	}
	b.counts.Offset++
	at, err := b.engine.Offset(ctx, ptrs[0], counts[0], float32(dist*Scale))
	if err != nil {
		return nil, err
	}
	r, err := b.result(at)
	if err != nil {
		return nil, err
	}
	out, err := readPolys(r, z)
	if err != nil {
		return nil, fmt.Errorf("offset: %w", err)
	}
	return Nest(out), nil
}

// Union merges closed polygons and returns the nested results at height z, dropping polygons with an area below minArea.
func (b *Bridge) Union(ctx context.Context, polys []*slicer.Polygon, minArea, z float64) ([]*slicer.Polygon, error) {
	polys = closed(polys)
	b.mu.Lock()
	defer b.mu.Unlock()

	ptrs, counts, ok, err := b.prepare(ctx, polys)
	if err != nil {
		return nil, err
	} else if !ok {
		return software{}.Union(polys, z, minArea), nil
	}
	b.counts.Union++
	at, err := b.engine.Union(ctx, ptrs[0], counts[0])
	if err != nil {
		return nil, err
	}
	r, err := b.result(at)
	if err != nil {
		return nil, err
	}
	out, err := readPolys(r, z)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	return filterArea(Nest(out), minArea), nil
}

// Diff returns the closed polygons of A minus those of B when ab is set, and of B minus A when ba is set, nested at height z.
func (b *Bridge) Diff(ctx context.Context, a, bs []*slicer.Polygon, z float64, ab, ba bool) ([]*slicer.Polygon, []*slicer.Polygon, error) {
	a, bs = closed(a), closed(bs)
	b.mu.Lock()
	defer b.mu.Unlock()

	ok := false
	var ptrs, counts []uint32
	if d, isWasm := b.engine.(interface{ HasDiff() bool }); !isWasm || d.HasDiff() {
		var err error
		if ptrs, counts, ok, err = b.prepare(ctx, a, bs); err != nil {
			return nil, nil, err
		}
	}
	if !ok {
		outAB, outBA := software{}.Diff(a, bs, z, slicer.CleanDistance)
		if !ab {
			outAB = nil
		}
		if !ba {
			outBA = nil
		}
		return outAB, outBA, nil
	}

	b.counts.Diff++
	at, err := b.engine.Diff(ctx, ptrs[0], counts[0], ptrs[1], counts[1], ab, ba, float32(slicer.CleanDistance))
	if err != nil {
		return nil, nil, err
	}
	r, err := b.result(at)
	if err != nil {
		return nil, nil, err
	}
	var outAB, outBA []*slicer.Polygon
	if ab {
		if outAB, err = readPolys(r, z); err != nil {
			return nil, nil, fmt.Errorf("diff: %w", err)
		}
		outAB = Nest(outAB)
	}
	if ba {
		if outBA, err = readPolys(r, z); err != nil {
			return nil, nil, fmt.Errorf("diff: %w", err)
		}
		outBA = Nest(outBA)
	}
	return outAB, outBA, nil
}

func closed(polys []*slicer.Polygon) []*slicer.Polygon {
	out := make([]*slicer.Polygon, 0, len(polys))
	for _, poly := range polys {
		if !poly.Open && 2 < len(poly.Points) {
			out = append(out, poly)
		}
	}
	return out
}

func filterArea(polys []*slicer.Polygon, minArea float64) []*slicer.Polygon {
	if minArea <= 0.0 {
		return polys
	}
	out := polys[:0]
	for _, poly := range polys {
		if minArea <= poly.AreaDeep() {
			out = append(out, poly)
		}
	}
	return out
}
