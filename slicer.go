package slicer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrBadPoints is returned when a vertex buffer does not hold whole triangles.
var ErrBadPoints = errors.New("vertex buffer must hold 9 numbers per triangle")

// Bounds is an axis aligned bounding box in 3D.
type Bounds struct {
	Min, Max Point
}

// Empty returns true if the bounds contain no point.
func (b Bounds) Empty() bool {
	return b.Max.X < b.Min.X
}

func (b Bounds) extend(p Point) Bounds {
	if b.Empty() {
		return Bounds{p, p}
	}
	b.Min = Point{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)}
	b.Max = Point{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)}
	return b
}

func emptyBounds() Bounds {
	return Bounds{Min: Point{math.Inf(1), math.Inf(1), math.Inf(1)}, Max: Point{math.Inf(-1), math.Inf(-1), math.Inf(-1)}}
}

// triangle returns the three vertices of the i-th triangle of an unrolled vertex buffer.
func triangle(points []float32, i int) (Point, Point, Point) {
	v := points[i*9 : i*9+9 : i*9+9]
	return Point{float64(v[0]), float64(v[1]), float64(v[2])},
		Point{float64(v[3]), float64(v[4]), float64(v[5])},
		Point{float64(v[6]), float64(v[7]), float64(v[8])}
}

////////////////////////////////////////////////////////////////

// FeatureOptions selects which optional statistics ComputeFeatures gathers.
type FeatureOptions struct {
	ZList bool // count vertices per height
	ZLine bool // count triangle edges lying at a height
}

// Slicer cuts an unrolled triangle buffer at given heights. The zero value holds no triangles, use New or SetPoints.
type Slicer struct {
	points []float32
	bounds Bounds
	zFlat  map[ZKey]float64
	zLine  map[ZKey]int
	zList  map[ZKey]int
}

// New returns a slicer for the triangles in points, 9 numbers per triangle, and computes its features.
func New(points []float32, opt FeatureOptions) (*Slicer, error) {
	s := &Slicer{}
	if err := s.SetPoints(points); err != nil {
		return nil, err
	}
	s.ComputeFeatures(opt)
	return s, nil
}

// SetPoints replaces the triangles and resets all features.
func (s *Slicer) SetPoints(points []float32) error {
	if len(points)%9 != 0 {
		return fmt.Errorf("%w: got %d numbers", ErrBadPoints, len(points))
	}
	s.points = points
	s.bounds = emptyBounds()
	s.zFlat = map[ZKey]float64{}
	s.zLine = map[ZKey]int{}
	s.zList = map[ZKey]int{}
	return nil
}

// Points returns the vertex buffer.
func (s *Slicer) Points() []float32 {
	return s.points
}

// Bounds returns the bounding box computed by ComputeFeatures.
func (s *Slicer) Bounds() Bounds {
	return s.bounds
}

// ComputeFeatures expands the bounding box over all triangles and gathers height statistics. Triangles with all three vertices at exactly the same height add their area to the flat area at that height.
func (s *Slicer) ComputeFeatures(opt FeatureOptions) *Slicer {
	s.bounds = emptyBounds()
	n := len(s.points) / 9
	for i := 0; i < n; i++ {
		p1, p2, p3 := triangle(s.points, i)
		s.bounds = s.bounds.extend(p1).extend(p2).extend(p3)
		if opt.ZList {
			s.zList[KeyZ(p1.Z)]++
			s.zList[KeyZ(p2.Z)]++
			s.zList[KeyZ(p3.Z)]++
		}
		if p1.Z == p2.Z && p2.Z == p3.Z {
			s.zFlat[KeyZ(p1.Z)] += math.Abs(area2(p1, p2, p3)) / 2.0
		} else if opt.ZLine {
			if p1.Z == p2.Z {
				s.zLine[KeyZ(p1.Z)]++
			}
			if p2.Z == p3.Z {
				s.zLine[KeyZ(p2.Z)]++
			}
			if p3.Z == p1.Z {
				s.zLine[KeyZ(p3.Z)]++
			}
		}
	}
	return s
}

// FlatArea returns the accumulated area of flat triangles at height z.
func (s *Slicer) FlatArea(z float64) float64 {
	return s.zFlat[KeyZ(z)]
}

// Flats returns the heights that have flat triangles, in ascending order.
func (s *Slicer) Flats() []float64 {
	return sortedKeys(s.zFlat)
}

// LineCount returns the number of triangle edges lying at height z.
func (s *Slicer) LineCount(z float64) int {
	return s.zLine[KeyZ(z)]
}

// Lines returns the heights that have triangle edges lying on them, in ascending order.
func (s *Slicer) Lines() []float64 {
	return sortedKeys(s.zLine)
}

// VertexCount returns the number of vertices at height z.
func (s *Slicer) VertexCount(z float64) int {
	return s.zList[KeyZ(z)]
}

// Heights returns the heights that have vertices, in ascending order.
func (s *Slicer) Heights() []float64 {
	return sortedKeys(s.zList)
}

func sortedKeys[V any](m map[ZKey]V) []float64 {
	zs := make([]float64, 0, len(m))
	for k := range m {
		zs = append(zs, k.Z())
	}
	sort.Float64s(zs)
	return zs
}

////////////////////////////////////////////////////////////////

// ZOptions controls how a single height is sliced.
type ZOptions struct {
	Over      bool    // the solid lies above the plane, implied at or below MinZ
	Edges     bool    // only emit lines for triangle edges lying on the plane
	MinZ      float64 // lowest height of the mesh
	NoDedup   bool    // keep duplicate and collinear lines
	NoConnect bool    // do not connect lines into polygons
	NoLines   bool    // do not return lines
}

// Bucket is a range of heights together with the triangles that can intersect them.
type Bucket struct {
	Zs     []float64
	Points []float32
}

// BucketSlicer slices buckets, for example by handing them to a pool of workers. SliceBucket is called concurrently.
type BucketSlicer interface {
	SliceBucket(context.Context, *Bucket, ZOptions) ([]*Slice, error)
}

// BucketSession is implemented by bucket slicers that need to prepare for and clean up after a batch of buckets. BeginSlice receives the options all buckets of the batch are sliced with.
type BucketSession interface {
	BeginSlice(context.Context, ZOptions) error
	EndSlice(context.Context) error
}

// SliceOptions controls Slice.
type SliceOptions struct {
	ZOptions
	FlatOffset   float64 // distance to move heights that lie on a flat, FlatOffset when zero
	NoFlatOffset bool
	Ascending    bool // sort the results by ascending instead of descending height
	Buckets      int  // number of buckets, BucketCount when zero
	Slicer       BucketSlicer

	Progress func(count, total int)
	Each     func(slice *Slice, i, n int)
}

// Slice cuts the mesh at every height in zs. Heights that coincide with a flat are moved by the flat offset towards the inside of the mesh. The triangles are partitioned into buckets of consecutive heights which are sliced concurrently, either locally or by opt.Slicer. The result holds a slice for every height with at least one line, sorted by height, with tops added for its polygons.
func (s *Slicer) Slice(ctx context.Context, zs []float64, opt SliceOptions) ([]*Slice, error) {
	if len(zs) == 0 {
		return nil, nil
	}
	zs = s.nudgeFlats(zs, opt)
	buckets := s.buckets(zs, opt.Buckets)
	opt.MinZ = s.bounds.Min.Z
	Logger().Debug("slice", "heights", len(zs), "buckets", len(buckets), "triangles", len(s.points)/9)

	bs := opt.Slicer
	if bs == nil {
		bs = localSlicer{}
	}
	if session, ok := bs.(BucketSession); ok {
		if err := session.BeginSlice(ctx, opt.ZOptions); err != nil {
			return nil, err
		}
		defer func() {
			if err := session.EndSlice(context.WithoutCancel(ctx)); err != nil {
				Logger().Warn("slice cleanup", "err", err)
			}
		}()
	}

	var mu sync.Mutex
	count := 0
	results := make([][]*Slice, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	if opt.Slicer == nil {
		g.SetLimit(runtime.GOMAXPROCS(0))
	}
	for i, bucket := range buckets {
		g.Go(func() error {
			slices, err := bs.SliceBucket(gctx, bucket, opt.ZOptions)
			if err != nil {
				return err
			}
			results[i] = slices
			if opt.Progress != nil {
				mu.Lock()
				count += len(bucket.Zs)
				opt.Progress(count, len(zs))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var slices []*Slice
	for _, r := range results {
		slices = append(slices, r...)
	}
	sort.SliceStable(slices, func(i, j int) bool {
		if opt.Ascending {
			return slices[i].Z < slices[j].Z
		}
		return slices[j].Z < slices[i].Z
	})
	for i, slice := range slices {
		slice.Index = i
		slice.Tops = nil
		slice.AddTops(slice.Polys)
		if opt.Each != nil {
			opt.Each(slice, i, len(slices))
		}
	}
	return slices, nil
}

// nudgeFlats returns zs sorted ascending with heights on a flat moved off it.
func (s *Slicer) nudgeFlats(zs []float64, opt SliceOptions) []float64 {
	zs = append([]float64{}, zs...)
	sort.Float64s(zs)
	off := opt.FlatOffset
	if off == 0.0 {
		off = FlatOffset
	}
	if opt.NoFlatOffset || off == 0.0 {
		return zs
	}
	for i, z := range zs {
		if s.zFlat[KeyZ(z)] == 0.0 {
			continue
		} else if z+off <= s.bounds.Max.Z {
			zs[i] = z + off
		} else {
			zs[i] = z - off
		}
	}
	sort.Float64s(zs)
	return zs
}

// buckets partitions ascending heights into at most n buckets of consecutive heights and assigns each triangle to every bucket whose range it touches within BucketEpsilon.
func (s *Slicer) buckets(zs []float64, n int) []*Bucket {
	if n <= 0 {
		n = BucketCount
	}
	step := (len(zs) + n - 1) / n
	buckets := []*Bucket{}
	for b := 0; b < len(zs); b += step {
		buckets = append(buckets, &Bucket{Zs: zs[b:min(b+step, len(zs))]})
	}

	ep := BucketEpsilon
	ntri := len(s.points) / 9
	for i := 0; i < ntri; i++ {
		p1, p2, p3 := triangle(s.points, i)
		zmin := math.Min(p1.Z, math.Min(p2.Z, p3.Z))
		zmax := math.Max(p1.Z, math.Max(p2.Z, p3.Z))
		for _, bucket := range buckets {
			lo, hi := bucket.Zs[0], bucket.Zs[len(bucket.Zs)-1]
			if zmax < lo-ep || hi+ep < zmin {
				continue
			}
			bucket.Points = append(bucket.Points, s.points[i*9:i*9+9]...)
		}
	}
	return buckets
}

type localSlicer struct{}

func (localSlicer) SliceBucket(ctx context.Context, b *Bucket, opt ZOptions) ([]*Slice, error) {
	return SliceBucket(ctx, b, opt)
}

// SliceBucket slices the triangles of a bucket at each of its heights and returns the slices that have lines.
func SliceBucket(ctx context.Context, b *Bucket, opt ZOptions) ([]*Slice, error) {
	slices := []*Slice{}
	for _, z := range b.Zs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if slice := SliceZ(z, b.Points, opt); slice != nil {
			slices = append(slices, slice)
		}
	}
	return slices, nil
}

////////////////////////////////////////////////////////////////

type side int

const (
	under side = iota
	on
	over
)

func classify(p Point, z float64) side {
	delta := p.Z - z
	if math.Abs(delta) < PrecisionSliceZ {
		return on
	} else if delta < 0.0 {
		return under
	}
	return over
}

// SliceZ cuts the triangles in points at height z and returns a slice with the resulting lines and, unless disabled, the polygons connected from them. It returns nil when no triangle intersects the plane.
//
// Triangles with two vertices on the plane yield that edge only when the third vertex lies on the solid side, so that the edge shared by two faces is emitted once. Triangles lying in the plane are skipped, their outline is given by the neighbouring faces. Triangles for which no proper segment can be computed are logged and skipped.
func SliceZ(z float64, points []float32, opt ZOptions) *Slice {
	solidOver := opt.Over || z <= opt.MinZ
	cache := map[Key]Point{}
	cached := func(p Point) Point {
		k := p.Key()
		if q, ok := cache[k]; ok {
			return q
		}
		cache[k] = p
		return p
	}

	var lines []Line
	var ons, unders, overs [3]Point
	n := len(points) / 9
	for i := 0; i < n; i++ {
		p1, p2, p3 := triangle(points, i)
		non, nunder, nover := 0, 0, 0
		for _, p := range [3]Point{p1, p2, p3} {
			switch classify(p, z) {
			case on:
				ons[non] = p
				non++
			case under:
				unders[nunder] = p
				nunder++
			case over:
				overs[nover] = p
				nover++
			}
		}

		if nunder == 3 || nover == 3 || non == 3 {
			continue
		} else if non == 2 {
			if solidOver && nover == 1 || !solidOver && nunder == 1 {
				line := NewOrderedLine(cached(ons[0]), cached(ons[1]))
				line.Edge = true
				lines = append(lines, line)
			}
		} else if nunder == 0 || nover == 0 {
			continue
		} else if !opt.Edges {
			ips := make([]Point, 0, 2)
			for _, po := range overs[:nover] {
				for _, pu := range unders[:nunder] {
					ips = append(ips, po.IntersectZ(pu, z))
				}
			}
			if len(ips) < 2 && non == 1 {
				ips = append(ips, ons[0])
			}
			if len(ips) != 2 {
				Logger().Warn("skip triangle", "z", z, "points", len(ips), "p1", p1, "p2", p2, "p3", p3)
				continue
			}
			lines = append(lines, NewOrderedLine(cached(ips[0]), cached(ips[1])))
		}
	}

	if !opt.NoDedup {
		lines = Dedup(lines)
	}
	if len(lines) == 0 {
		return nil
	}

	slice := NewSlice(z)
	if !opt.NoLines {
		slice.Lines = lines
	}
	if !opt.NoConnect {
		slice.Polys = nestConnected(Connect(lines, z))
	}
	return slice
}

// nestConnected nests the closed polygons and appends the open ones, which never take part in nesting.
func nestConnected(polys []*Polygon) []*Polygon {
	var closed, open []*Polygon
	for _, poly := range polys {
		if poly.Open {
			open = append(open, poly)
		} else {
			closed = append(closed, poly)
		}
	}
	return append(Nest(closed, false, false), open...)
}

////////////////////////////////////////////////////////////////

// IntervalOptions controls Interval.
type IntervalOptions struct {
	Off       float64  // offset from bottom and top, and around flats
	BottomOff float64  // offset from the bottom, Off when zero
	TopOff    float64  // offset from the top, Off when zero
	Min       *float64 // lowest height, bottom of the mesh plus the bottom offset when nil
	Max       *float64 // highest height before the top offset, top of the mesh when nil
	Fit       bool     // adjust the step so that the heights end exactly on the top
	Down      bool     // return heights from top to bottom
	Flats     bool     // add heights Off above and below every flat
}

// Interval returns the heights at which to slice, spaced by step between the bottom and top of the mesh. The heights are rounded to ZPrecision decimals and consecutive duplicates are removed.
func (s *Slicer) Interval(step float64, opt IntervalOptions) []float64 {
	if step <= 0.0 || s.bounds.Empty() {
		return nil
	}
	boff, toff := opt.BottomOff, opt.TopOff
	if boff == 0.0 {
		boff = opt.Off
	}
	if toff == 0.0 {
		toff = opt.Off
	}
	zmin := s.bounds.Min.Z + boff
	if opt.Min != nil {
		zmin = *opt.Min
	}
	zmax := s.bounds.Max.Z
	if opt.Max != nil {
		zmax = *opt.Max
	}
	zmax -= toff
	if zmax < zmin {
		return nil
	}

	steps := (zmax - zmin) / step
	count := int(math.Floor(steps))
	if steps == math.Floor(steps) {
		count++
	}
	if opt.Fit {
		count++
		step = (zmax - zmin) / float64(count)
	}

	zs := make([]float64, 0, count+1)
	for i := 0; i < count; i++ {
		if opt.Down {
			zs = append(zs, zmax-float64(i)*step)
		} else {
			zs = append(zs, zmin+float64(i)*step)
		}
	}
	if opt.Fit {
		if opt.Down {
			zs = append(zs, zmin)
		} else {
			zs = append(zs, zmax)
		}
	}

	if opt.Flats && opt.Off != 0.0 {
		for _, z := range s.Flats() {
			zs = append(zs, z+opt.Off)
			if zmin < z {
				zs = append(zs, z-opt.Off)
			}
		}
		sort.Float64s(zs)
		if opt.Down {
			for i, j := 0, len(zs)-1; i < j; i, j = i+1, j-1 {
				zs[i], zs[j] = zs[j], zs[i]
			}
		}
	}

	out := zs[:0]
	for i, z := range zs {
		z = RoundZ(z)
		if i == 0 || out[len(out)-1] != z {
			out = append(out, z)
		}
	}
	return out
}
