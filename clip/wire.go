package clip

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/tdewolff/slicer"
)

// Scale is the fixed point factor of coordinates in the wire format.
const Scale = 100000.0

// HeapSize is the size of the scratch region reserved in engine memory for polygon buffers.
var HeapSize uint32 = 30 * 1024 * 1024

// ErrShortBuffer is returned when a polygon buffer ends before its terminating zero count.
var ErrShortBuffer = errors.New("short polygon buffer")

type binaryReader struct {
	buf []byte
	pos uint32
	err error
}

func newBinaryReader(buf []byte) *binaryReader {
	return &binaryReader{buf: buf}
}

func (r *binaryReader) ReadBytes(n uint32) []byte {
	if r.err != nil || uint32(len(r.buf))-r.pos < n {
		r.err = ErrShortBuffer
		return make([]byte, n)
	}
	buf := r.buf[r.pos : r.pos+n]
	r.pos += n
	return buf
}

func (r *binaryReader) ReadUint16() uint16 {
	return binary.LittleEndian.Uint16(r.ReadBytes(2))
}

func (r *binaryReader) ReadInt32() int32 {
	return int32(binary.LittleEndian.Uint32(r.ReadBytes(4)))
}

func (r *binaryReader) Pos() uint32 {
	return r.pos
}

func (r *binaryReader) Len() uint32 {
	return uint32(len(r.buf)) - r.pos
}

func (r *binaryReader) Err() error {
	return r.err
}

type binaryWriter struct {
	buf []byte
}

func newBinaryWriter(buf []byte) *binaryWriter {
	return &binaryWriter{buf[:0]}
}

func (w *binaryWriter) Bytes() []byte {
	return w.buf
}

func (w *binaryWriter) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *binaryWriter) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *binaryWriter) Len() uint32 {
	return uint32(len(w.buf))
}

////////////////////////////////////////////////////////////////

// toFixed converts a coordinate to the wire format, truncating toward zero.
func toFixed(v float64) int32 {
	return int32(v * Scale)
}

func fromFixed(v int32) float64 {
	return float64(v) / Scale
}

// fitsWire returns false if a polygon or hole has more points than a record can hold.
func fitsWire(polys []*slicer.Polygon) bool {
	for _, poly := range polys {
		if math.MaxUint16 < len(poly.Points) || !fitsWire(poly.Inner) {
			return false
		}
	}
	return true
}

// writePoly writes a polygon followed by its holes and returns the number of records written. Outer boundaries are written clockwise and holes counter clockwise, the polygon itself is not modified. Polygons must fit the wire format, see fitsWire.
func writePoly(w *binaryWriter, poly *slicer.Polygon, inner bool) int {
	n := len(poly.Points)
	reverse := poly.IsClockwise() == inner
	w.WriteUint16(uint16(n))
	for i := 0; i < n; i++ {
		pt := poly.Points[i]
		if reverse {
			pt = poly.Points[n-1-i]
		}
		w.WriteInt32(toFixed(pt.X))
		w.WriteInt32(toFixed(pt.Y))
	}
	count := 1
	for _, hole := range poly.Inner {
		count += writePoly(w, hole, true)
	}
	return count
}

// writePolys writes polygons with their holes and returns the number of records written.
func writePolys(w *binaryWriter, polys []*slicer.Polygon) int {
	count := 0
	for _, poly := range polys {
		count += writePoly(w, poly, false)
	}
	return count
}

// readPoly reads one polygon record at height z, or returns nil on a zero count.
func readPoly(r *binaryReader, z float64) *slicer.Polygon {
	n := r.ReadUint16()
	if n == 0 || r.err != nil {
		return nil
	}
	poly := &slicer.Polygon{Points: make([]slicer.Point, 0, n), Z: z}
	for i := uint16(0); i < n; i++ {
		x := fromFixed(r.ReadInt32())
		y := fromFixed(r.ReadInt32())
		poly.Points = append(poly.Points, slicer.Point{X: x, Y: y, Z: z})
	}
	return poly
}

// readPolys reads polygon records up to and including the terminating zero count.
func readPolys(r *binaryReader, z float64) ([]*slicer.Polygon, error) {
	polys := []*slicer.Polygon{}
	for {
		poly := readPoly(r, z)
		if r.err != nil {
			return nil, r.err
		} else if poly == nil {
			return polys, nil
		}
		polys = append(polys, poly)
	}
}

// readRecords reads exactly count polygon records, as written by writePolys.
func readRecords(r *binaryReader, count uint32) ([][]point, error) {
	paths := make([][]point, 0, count)
	for i := uint32(0); i < count; i++ {
		n := r.ReadUint16()
		path := make([]point, n)
		for j := range path {
			path[j] = point{r.ReadInt32(), r.ReadInt32()}
		}
		if r.err != nil {
			return nil, r.err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeRecords writes fixed point paths followed by a zero count.
func writeRecords(w *binaryWriter, paths [][]point) {
	for _, path := range paths {
		if len(path) == 0 || math.MaxUint16 < len(path) {
			continue
		}
		w.WriteUint16(uint16(len(path)))
		for _, pt := range path {
			w.WriteInt32(pt.x)
			w.WriteInt32(pt.y)
		}
	}
	w.WriteUint16(0)
}

// point is a coordinate in the wire format.
type point struct {
	x, y int32
}
