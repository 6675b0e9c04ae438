package work

import (
	"context"
	"math"
	"testing"

	"github.com/tdewolff/slicer"
	"github.com/tdewolff/test"
)

func square(x0, y0, size float64) *slicer.Polygon {
	return slicer.NewPolygon(
		slicer.Point{X: x0, Y: y0},
		slicer.Point{X: x0 + size, Y: y0},
		slicer.Point{X: x0 + size, Y: y0 + size},
		slicer.Point{X: x0, Y: y0 + size},
	)
}

// cube returns the triangles of the unit cube.
func cube() []float32 {
	return sheared(0.0)
}

// sheared returns the triangles of the unit cube with its top face moved by dx along X.
func sheared(dx float32) []float32 {
	v := [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {dx, 0, 1}, {1 + dx, 0, 1}, {1 + dx, 1, 1}, {dx, 1, 1}}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, {4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4}, {1, 2, 6}, {1, 6, 5},
		{2, 3, 7}, {2, 7, 6}, {3, 0, 4}, {3, 4, 7},
	}
	points := []float32{}
	for _, f := range faces {
		for _, i := range f {
			points = append(points, v[i][:]...)
		}
	}
	return points
}

func newPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p, err := New(context.Background(), Options{Workers: workers})
	test.Error(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPoolUnion(t *testing.T) {
	ctx := context.Background()
	chain := []*slicer.Polygon{}
	for i := 0; i < 30; i++ {
		chain = append(chain, square(float64(i)*0.5, 0.0, 1.0))
	}

	for _, workers := range []int{1, 2, 3} {
		p := newPool(t, workers)
		union, err := p.Union(ctx, chain, 0.0, 0.0)
		test.Error(t, err)
		test.T(t, len(union), 1)
		test.That(t, math.Abs(union[0].Area()-15.5) < 1e-6, union[0].Area())

		// small inputs are merged by the pool itself
		union, err = p.Union(ctx, []*slicer.Polygon{square(0, 0, 2), square(1, 1, 2)}, 0.0, 0.0)
		test.Error(t, err)
		test.T(t, len(union), 1)
		test.That(t, math.Abs(union[0].Area()-7.0) < 1e-6)
	}
}

func TestPoolOffsetFill(t *testing.T) {
	ctx := context.Background()
	for _, workers := range []int{1, 2} {
		p := newPool(t, workers)
		inset, err := p.Offset(ctx, []*slicer.Polygon{square(0, 0, 10)}, -1.0, 0.0)
		test.Error(t, err)
		test.T(t, len(inset), 1)
		test.That(t, math.Abs(inset[0].Area()-64.0) < 1e-6)

		fill, err := p.Fill(ctx, []*slicer.Polygon{square(0, 0, 10)}, 90.0, 1.0, 0.0, 0.0)
		test.Error(t, err)
		test.T(t, len(fill), 10)
		for i, line := range fill {
			test.T(t, line.Index, i)
			test.That(t, math.Abs(line.Length()-10.0) < 1e-6)
		}
	}
}

func TestPoolTopShells(t *testing.T) {
	ctx := context.Background()
	for _, workers := range []int{1, 2} {
		p := newPool(t, workers)
		top := &slicer.Top{Poly: square(0, 0, 10)}
		test.Error(t, p.TopShells(ctx, 0.0, top, 2, 0.5, 1.0, 0.5))
		test.T(t, len(top.Shells), 2)
		test.That(t, math.Abs(top.Shells[0].Area()-81.0) < 1e-6)
		test.That(t, math.Abs(top.Shells[1].Area()-49.0) < 1e-6)
		test.T(t, len(top.Last), 1)
		test.That(t, top.Last[0] == top.Shells[1])
		test.T(t, len(top.FillOff), 1)
		test.That(t, math.Abs(top.FillOff[0].Area()-36.0) < 1e-6)

		test.Error(t, p.TopShells(ctx, 0.0, top, 0, 0.5, 1.0, 0.0))
		test.T(t, len(top.Shells), 0)
		test.That(t, top.Last[0] == top.Poly)
	}
}

func TestPoolClip(t *testing.T) {
	ctx := context.Background()
	for _, workers := range []int{1, 2} {
		p := newPool(t, workers)
		outer := square(0, 0, 10)
		outer.AddInner(square(4, 4, 2))
		slice := slicer.NewSlice(0.5).AddTops([]*slicer.Polygon{outer, square(20, 0, 5)})

		lines := [][]slicer.Point{
			{{X: -5, Y: 5}, {X: 30, Y: 5}},
			{{X: -5, Y: 1}, {X: 30, Y: 1}},
		}
		clips, err := p.Clip(ctx, slice, slice.TopPolys(), lines)
		test.Error(t, err)
		test.T(t, len(clips), 5)

		length := 0.0
		for _, poly := range clips {
			test.That(t, poly.Open)
			test.T(t, poly.Z, 0.5)
			length += poly.Points[0].Dist2D(poly.Points[len(poly.Points)-1])
		}
		test.That(t, math.Abs(length-28.0) < 1e-6, length)
		test.T(t, len(slice.Tops[0].FillSparse), 3)
		test.T(t, len(slice.Tops[1].FillSparse), 2)
	}
}

func TestPoolSlice(t *testing.T) {
	ctx := context.Background()
	p := newPool(t, 2)

	slice, err := p.SliceZ(ctx, 0.5, cube(), slicer.ZOptions{})
	test.Error(t, err)
	test.T(t, len(slice.Polys), 1)
	test.That(t, math.Abs(slice.Polys[0].Area()-1.0) < 1e-6)
	test.T(t, len(slice.Lines), 4)

	slice, err = p.SliceZ(ctx, 2.0, cube(), slicer.ZOptions{})
	test.Error(t, err)
	test.T(t, slice, (*slicer.Slice)(nil))

	s, err := slicer.New(cube(), slicer.FeatureOptions{})
	test.Error(t, err)
	zs := s.Interval(0.1, slicer.IntervalOptions{})
	local, err := s.Slice(ctx, zs, slicer.SliceOptions{Buckets: 4})
	test.Error(t, err)
	remote, err := s.Slice(ctx, zs, slicer.SliceOptions{Buckets: 4, Slicer: p})
	test.Error(t, err)
	test.T(t, len(remote), len(local))
	for i := range local {
		test.Float(t, remote[i].Z, local[i].Z)
		test.T(t, remote[i].Index, i)
		test.T(t, len(remote[i].Polys), len(local[i].Polys))
		test.T(t, len(remote[i].Tops), len(local[i].Tops))
	}
	test.T(t, p.Pending(), 0)
}

func TestPoolSliceSlanted(t *testing.T) {
	ctx := context.Background()
	p := newPool(t, 2)

	s, err := slicer.New(sheared(0.37), slicer.FeatureOptions{})
	test.Error(t, err)
	zs := s.Interval(0.1, slicer.IntervalOptions{Off: 0.05})
	local, err := s.Slice(ctx, zs, slicer.SliceOptions{Buckets: 3})
	test.Error(t, err)
	remote, err := s.Slice(ctx, zs, slicer.SliceOptions{Buckets: 3, Slicer: p})
	test.Error(t, err)
	test.T(t, len(remote), len(local))
	for i := range local {
		test.That(t, remote[i].Z == local[i].Z, remote[i].Z, local[i].Z)
		test.T(t, remote[i].Lines, local[i].Lines)
		test.T(t, len(remote[i].Polys), len(local[i].Polys))
		for j, poly := range local[i].Polys {
			test.T(t, remote[i].Polys[j].Points, poly.Points)
			test.That(t, remote[i].Polys[j].Z == poly.Z)
			for _, pt := range remote[i].Polys[j].Points {
				test.That(t, pt.Z == remote[i].Z, pt.Z, remote[i].Z)
			}
		}
	}
}

func TestPoolConfig(t *testing.T) {
	ctx := context.Background()
	p := newPool(t, 2)
	test.Error(t, p.Configure(ctx, 2.0))
	test.Error(t, p.SetEngine(ctx, false, nil))
	test.That(t, !p.bridge.Enabled())

	res, err := p.Do(ctx, "union", mustEncodeJob(t, []*slicer.Polygon{square(0, 0, 10), square(20, 0, 1)}), nil, nil)
	test.Error(t, err)
	test.T(t, len(res["union"].([]any)), 1)

	test.Error(t, p.SetEngine(ctx, true, nil))
	test.That(t, p.bridge.Enabled())
}

func mustEncodeJob(t *testing.T, polys []*slicer.Polygon) map[string]any {
	t.Helper()
	data, _, err := encodeJob(polys, "polys", map[string]any{})
	test.Error(t, err)
	return data
}
