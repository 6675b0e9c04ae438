package slicer

import (
	"fmt"
	"testing"

	"github.com/tdewolff/test"
)

func TestPointKey(t *testing.T) {
	test.T(t, Point{1.0000001, 2, 3}.Key(), Point{1, 2, 3}.Key())
	test.That(t, Point{1.000001, 2, 3}.Key() != Point{1, 2, 3}.Key())
	test.That(t, Point{0, 5, 0}.Key().Less(Point{1, 0, 0}.Key()))
	test.That(t, Point{1, 0, 0}.Key().Less(Point{1, 0, 1}.Key()))
	test.T(t, Point{0, 0, 0}.IntersectZ(Point{2, 4, 2}, 1), Point{1, 2, 1})
	test.T(t, Point{2, 4, 2}.IntersectZ(Point{0, 0, 0}, 1), Point{1, 2, 1})
}

func TestOrderedLine(t *testing.T) {
	l1 := NewOrderedLine(Point{1, 0, 0}, Point{0, 0, 0})
	l2 := NewOrderedLine(Point{0, 0, 0}, Point{1, 0, 0})
	test.T(t, l1.Key(), l2.Key())
	test.T(t, l1.P1, Point{0, 0, 0})
	test.That(t, line(0, 0, 1, 0).IsCollinear(line(1, 0, 3, 0)))
	test.That(t, !line(0, 0, 1, 0).IsCollinear(line(1, 0, 1, 1)))
}

func TestPolygon(t *testing.T) {
	p := square(0, 0, 2)
	test.Float(t, p.Area(), 4.0)
	test.Float(t, p.Area2(), 8.0)
	test.Float(t, p.Perimeter(), 8.0)
	test.That(t, !p.IsClockwise())
	test.That(t, p.SetClockwise().IsClockwise())
	test.Float(t, p.Area(), 4.0)
	test.That(t, !p.SetCounterClockwise().IsClockwise())

	test.That(t, p.Contains(Point{1, 1, 0}))
	test.That(t, !p.Contains(Point{3, 1, 0}))
	test.That(t, p.Near(Point{2.001, 1, 0}, 0.0001))

	b := p.Bounds()
	test.T(t, b.Min[0], 0.0)
	test.T(t, b.Max[1], 2.0)

	open := square(0, 0, 2).SetOpen()
	test.Float(t, open.Area(), 0.0)
	test.Float(t, open.Perimeter(), 6.0)
	test.Float(t, (&Polygon{}).Add(0, 0, 0).Add(1, 0, 0).Area(), 0.0)
}

func TestPolygonInner(t *testing.T) {
	outer := square(0, 0, 10)
	hole := square(2, 2, 2)
	outer.AddInner(hole)
	test.T(t, hole.Parent, outer)
	test.Float(t, outer.AreaDeep(), 96.0)

	clone := outer.Clone(true)
	test.T(t, len(clone.Inner), 1)
	test.T(t, clone.Inner[0].Parent, clone)
	test.That(t, clone.Inner[0] != hole)

	outer.ClearInner()
	test.T(t, len(outer.Inner), 0)
	test.That(t, hole.Parent == nil)

	outer.AddInner(hole).SetZ(3)
	test.T(t, hole.Points[0].Z, 3.0)
}

func TestPolygonClean(t *testing.T) {
	p := NewPolygon(
		Point{0, 0, 0}, Point{0.5, 0, 0}, Point{1, 0, 0}, Point{1, 1, 0},
		Point{1.000001, 1.000001, 0}, Point{0, 1, 0},
	)
	q := p.Clean(false)
	test.T(t, q.Len(), 4)
	test.Float(t, q.Area(), 1.0)
}

func TestPolygonNested(t *testing.T) {
	test.That(t, square(1, 1, 2).IsNested(square(0, 0, 4)))
	test.That(t, !square(0, 0, 4).IsNested(square(1, 1, 2)))
	test.That(t, !square(3, 3, 2).IsNested(square(0, 0, 4)))
	test.That(t, square(0, 0, 4).IsInside(square(0, 0, 4), NestPrecision))
}

func TestNest(t *testing.T) {
	large := square(0, 0, 10)
	medium := square(2, 2, 6)
	small := square(4, 4, 2)
	aside := square(20, 0, 1)

	tops := Nest([]*Polygon{large, small, aside, medium}, false, false)
	test.T(t, len(tops), 3)
	test.T(t, tops[0], aside)
	test.T(t, tops[1], small)
	test.T(t, tops[2], large)

	test.T(t, len(large.Inner), 1)
	test.T(t, large.Inner[0], medium)
	test.T(t, medium.Parent, large)
	test.T(t, len(medium.Inner), 0)
	test.T(t, medium.Depth, 1)
	test.T(t, small.Depth, 2)
	test.That(t, small.Parent == nil)

	tops = Nest([]*Polygon{large, small, medium}, true, false)
	test.T(t, len(tops), 1)
	test.T(t, medium.Inner[0], small)
	test.T(t, small.Parent, medium)
}

func TestNestInvariant(t *testing.T) {
	polys := []*Polygon{square(0, 0, 10), square(1, 1, 8), square(2, 2, 6), square(3, 3, 4), square(4, 4, 2)}
	for _, top := range Nest(polys, false, false) {
		test.That(t, top.Parent == nil)
		for _, inner := range top.Inner {
			test.T(t, inner.Parent, top)
			test.T(t, len(inner.Inner), 0)
		}
	}
}

func TestFlatten(t *testing.T) {
	outer := square(0, 0, 10)
	outer.AddInner(square(1, 1, 1))
	outer.AddInner(square(3, 3, 1))
	polys := Flatten([]*Polygon{outer, square(20, 0, 1)})
	test.T(t, len(polys), 4)
	test.T(t, polys[0], outer)
	test.T(t, CountPoints([]*Polygon{outer}), 12)
}

func TestRoundZ(t *testing.T) {
	tests := []struct {
		z float64
		r float64
	}{
		{0.1 + 0.2, 0.3},
		{1.000004, 1.0},
		{1.000006, 1.00001},
		{-2.5, -2.5},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.z), func(t *testing.T) {
			test.T(t, RoundZ(tt.z), tt.r)
			test.T(t, KeyZ(tt.z), KeyZ(tt.r))
		})
	}
	test.String(t, KeyZ(0.5).String(), "0.50000")
}
