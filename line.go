package slicer

import (
	"fmt"
	"math"
)

// Line is a segment between two points. Coplanar lines lie on the slicing plane, edge lines stem from a triangle edge rather than from cutting through a triangle.
type Line struct {
	P1, P2   Point
	Coplanar bool
	Edge     bool
}

// LineKey identifies a line by the keys of its end points.
type LineKey struct {
	P1, P2 Key
}

// Less orders line keys by their first and then their second point.
func (k LineKey) Less(q LineKey) bool {
	if k.P1 != q.P1 {
		return k.P1.Less(q.P1)
	}
	return k.P2.Less(q.P2)
}

// NewOrderedLine returns a line between p1 and p2 where the point with the smallest key comes first, so that the same segment always yields the same line regardless of direction.
func NewOrderedLine(p1, p2 Point) Line {
	if p2.Key().Less(p1.Key()) {
		p1, p2 = p2, p1
	}
	return Line{P1: p1, P2: p2}
}

// Key returns the hashable key of the line.
func (l Line) Key() LineKey {
	return LineKey{l.P1.Key(), l.P2.Key()}
}

// Length returns the length of the line in the XY plane.
func (l Line) Length() float64 {
	return l.P1.Dist2D(l.P2)
}

// IsCollinear returns true if the directions of L and M are parallel in the XY plane.
func (l Line) IsCollinear(m Line) bool {
	d1 := l.P2.Sub(l.P1)
	d2 := m.P2.Sub(m.P1)
	return math.Abs(d2.Y*d1.X-d2.X*d1.Y) < 0.0001
}

func (l Line) String() string {
	return fmt.Sprintf("%v-%v", l.P1, l.P2)
}
