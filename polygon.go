package slicer

import (
	"fmt"
	"math"
	"strings"

	clipper "github.com/ctessum/go.clipper"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Polygon is a list of points that forms a closed loop, or a polyline when Open is set. Inner polygons are holes that point back to their parent through Parent. Depth is the nesting level, where even depths are outer boundaries and odd depths are holes.
type Polygon struct {
	Points []Point
	Open   bool
	Inner  []*Polygon
	Parent *Polygon
	Depth  int
	Z      float64
}

// NewPolygon returns a closed polygon through the given points, taking its height from the first point.
func NewPolygon(points ...Point) *Polygon {
	p := &Polygon{Points: points}
	if 0 < len(points) {
		p.Z = points[0].Z
	}
	return p
}

// Add appends a point.
func (p *Polygon) Add(x, y, z float64) *Polygon {
	if len(p.Points) == 0 {
		p.Z = z
	}
	p.Points = append(p.Points, Point{x, y, z})
	return p
}

// Len returns the number of points.
func (p *Polygon) Len() int {
	return len(p.Points)
}

// SetOpen marks the polygon as an open polyline.
func (p *Polygon) SetOpen() *Polygon {
	p.Open = true
	return p
}

// SetZ moves all points, including those of holes, to height z.
func (p *Polygon) SetZ(z float64) *Polygon {
	p.Z = z
	for i := range p.Points {
		p.Points[i].Z = z
	}
	for _, inner := range p.Inner {
		inner.SetZ(z)
	}
	return p
}

// Area2 returns twice the signed area of the outer boundary, positive when counter clockwise.
func (p *Polygon) Area2() float64 {
	n := len(p.Points)
	if n < 3 {
		return 0.0
	}
	a := 0.0
	for i := 0; i < n; i++ {
		a += p.Points[i].PerpDot(p.Points[(i+1)%n])
	}
	return a
}

// Area returns the unsigned area of the outer boundary, zero for open polygons.
func (p *Polygon) Area() float64 {
	if p.Open {
		return 0.0
	}
	return math.Abs(p.Area2() / 2.0)
}

// AreaDeep returns the area of the outer boundary minus the area of its holes.
func (p *Polygon) AreaDeep() float64 {
	a := p.Area()
	for _, inner := range p.Inner {
		a -= inner.Area()
	}
	return a
}

// Perimeter returns the length of the boundary, including the closing segment for closed polygons.
func (p *Polygon) Perimeter() float64 {
	n := len(p.Points)
	if n < 2 {
		return 0.0
	}
	d := 0.0
	for i := 1; i < n; i++ {
		d += p.Points[i-1].Dist2D(p.Points[i])
	}
	if !p.Open {
		d += p.Points[n-1].Dist2D(p.Points[0])
	}
	return d
}

// IsClockwise returns true if the outer boundary winds clockwise.
func (p *Polygon) IsClockwise() bool {
	return p.Area2() < 0.0
}

// Reverse reverses the point order.
func (p *Polygon) Reverse() *Polygon {
	for i, j := 0, len(p.Points)-1; i < j; i, j = i+1, j-1 {
		p.Points[i], p.Points[j] = p.Points[j], p.Points[i]
	}
	return p
}

// SetClockwise makes the outer boundary wind clockwise.
func (p *Polygon) SetClockwise() *Polygon {
	if !p.IsClockwise() {
		p.Reverse()
	}
	return p
}

// SetCounterClockwise makes the outer boundary wind counter clockwise.
func (p *Polygon) SetCounterClockwise() *Polygon {
	if p.IsClockwise() {
		p.Reverse()
	}
	return p
}

// Bounds returns the bounding box in the XY plane.
func (p *Polygon) Bounds() orb.Bound {
	if len(p.Points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: p.Points[0].Orb(), Max: p.Points[0].Orb()}
	for _, pt := range p.Points[1:] {
		b = b.Extend(pt.Orb())
	}
	return b
}

// Ring returns the outer boundary as a closed ring in the XY plane.
func (p *Polygon) Ring() orb.Ring {
	r := make(orb.Ring, 0, len(p.Points)+1)
	for _, pt := range p.Points {
		r = append(r, pt.Orb())
	}
	if 0 < len(r) && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// AddInner adds a hole and sets its parent.
func (p *Polygon) AddInner(inner *Polygon) *Polygon {
	inner.Parent = p
	p.Inner = append(p.Inner, inner)
	return p
}

// ClearInner removes all holes.
func (p *Polygon) ClearInner() *Polygon {
	for _, inner := range p.Inner {
		if inner.Parent == p {
			inner.Parent = nil
		}
	}
	p.Inner = nil
	return p
}

// Clone returns a copy of the polygon. When deep is set, holes are copied too and point back to the clone.
func (p *Polygon) Clone(deep bool) *Polygon {
	q := &Polygon{
		Points: append([]Point{}, p.Points...),
		Open:   p.Open,
		Depth:  p.Depth,
		Z:      p.Z,
	}
	if deep {
		for _, inner := range p.Inner {
			q.AddInner(inner.Clone(true))
		}
	}
	return q
}

// Contains returns true if pt lies inside the outer boundary in the XY plane.
func (p *Polygon) Contains(pt Point) bool {
	if p.Open || len(p.Points) < 3 {
		return false
	}
	return planar.RingContains(p.Ring(), pt.Orb())
}

// Near returns true if pt lies within squared distance dist2 of any boundary segment.
func (p *Polygon) Near(pt Point, dist2 float64) bool {
	n := len(p.Points)
	for i := 0; i < n; i++ {
		if segmentDistSq(pt, p.Points[i], p.Points[(i+1)%n]) <= dist2 {
			return true
		}
	}
	return false
}

// IsInside returns true if all points, and midpoints of all segments, of P lie inside Q or within squared distance tolerance of its boundary.
func (p *Polygon) IsInside(q *Polygon, tolerance float64) bool {
	if len(p.Points) == 0 || !boundsWithin(p.Bounds(), q.Bounds().Pad(tolerance*3.0)) {
		return false
	}
	n := len(p.Points)
	for i := 0; i < n; i++ {
		if i+1 < n || !p.Open {
			mid := p.Points[i].Midpoint(p.Points[(i+1)%n])
			if !q.Contains(mid) && !q.Near(mid, tolerance) {
				return false
			}
		}
		if !q.Contains(p.Points[i]) && !q.Near(p.Points[i], tolerance) {
			return false
		}
	}
	return true
}

// IsNested returns true if P lies within the bounds of parent and inside it within NestPrecision.
func (p *Polygon) IsNested(parent *Polygon) bool {
	if !boundsWithin(p.Bounds(), parent.Bounds()) {
		return false
	}
	return p.IsInside(parent, NestPrecision)
}

// Clean removes vertices closer than CleanDistance (in clipper units) to their neighbours and collinear vertices. It returns P itself when cleaning would remove all points. When deep is set, holes are cleaned too.
func (p *Polygon) Clean(deep bool) *Polygon {
	path := clipper.NewClipper(clipper.IoNone).CleanPolygon(p.ToClipper(), CleanDistance)
	if len(path) == 0 {
		return p
	}
	q := PolygonFromClipper(path, p.Z)
	q.Open = p.Open
	q.Depth = p.Depth
	q.Parent = p.Parent
	if p.Open {
		// keep the original start point
		start, mi := p.Points[0], 0
		for i := range q.Points {
			if q.Points[i].DistSq2D(start) < q.Points[mi].DistSq2D(start) {
				mi = i
			}
		}
		q.Points = append(q.Points[mi:], q.Points[:mi]...)
	}
	if deep {
		for _, inner := range p.Inner {
			q.AddInner(inner.Clean(false))
		}
	} else {
		q.Inner = p.Inner
	}
	return q
}

// ToClipper converts the outer boundary to integer clipper coordinates scaled by ClipperScale.
func (p *Polygon) ToClipper() clipper.Path {
	path := make(clipper.Path, 0, len(p.Points))
	for _, pt := range p.Points {
		path = append(path, clipper.NewIntPoint(clipper.CInt(math.Round(pt.X*ClipperScale)), clipper.CInt(math.Round(pt.Y*ClipperScale))))
	}
	return path
}

// PolygonFromClipper converts a clipper path back to a polygon at height z.
func PolygonFromClipper(path clipper.Path, z float64) *Polygon {
	p := &Polygon{Points: make([]Point, 0, len(path)), Z: z}
	for _, ip := range path {
		p.Points = append(p.Points, Point{float64(ip.X) / ClipperScale, float64(ip.Y) / ClipperScale, z})
	}
	return p
}

func (p *Polygon) String() string {
	sb := strings.Builder{}
	if p.Open {
		sb.WriteString("open")
	}
	sb.WriteString("{")
	for i, pt := range p.Points {
		if i != 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%g,%g", pt.X, pt.Y)
	}
	sb.WriteString("}")
	if 0 < len(p.Inner) {
		fmt.Fprintf(&sb, "+%d", len(p.Inner))
	}
	return sb.String()
}

////////////////////////////////////////////////////////////////

// boundsWithin returns true if a lies within b, boundaries included.
func boundsWithin(a, b orb.Bound) bool {
	return b.Min[0] <= a.Min[0] && b.Min[1] <= a.Min[1] && a.Max[0] <= b.Max[0] && a.Max[1] <= b.Max[1]
}

// segmentDistSq returns the squared distance in the XY plane between pt and segment AB.
func segmentDistSq(pt, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0.0 {
		return pt.DistSq2D(a)
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / l2
	t = math.Max(0.0, math.Min(1.0, t))
	return pt.DistSq2D(Point{a.X + t*dx, a.Y + t*dy, pt.Z})
}
