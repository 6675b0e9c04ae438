package slicer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tdewolff/test"
)

func TestSlicerFeatures(t *testing.T) {
	s, err := New(cube(), FeatureOptions{ZList: true, ZLine: true})
	test.Error(t, err)
	test.T(t, s.Bounds().Min, Point{0, 0, 0})
	test.T(t, s.Bounds().Max, Point{1, 1, 1})
	test.Float(t, s.FlatArea(0.0), 1.0)
	test.Float(t, s.FlatArea(1.0), 1.0)
	test.Float(t, s.FlatArea(0.5), 0.0)
	test.T(t, s.Flats(), []float64{0, 1})
	test.T(t, s.Heights(), []float64{0, 1})
	test.T(t, s.VertexCount(0.0), 18)
	test.T(t, s.VertexCount(1.0), 18)
	test.T(t, s.LineCount(0.0), 4)
	test.T(t, s.LineCount(1.0), 4)

	_, err = New(cube()[:10], FeatureOptions{})
	test.That(t, errors.Is(err, ErrBadPoints))
}

func TestSliceZ(t *testing.T) {
	tests := []struct {
		z     float64
		lines int
		edges bool
	}{
		{0.0, 4, true},
		{0.5, 4, false},
		{1.0, 4, true},
		{0.25, 4, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.z), func(t *testing.T) {
			slice := SliceZ(tt.z, cube(), ZOptions{MinZ: 0.0})
			test.That(t, slice != nil)
			test.T(t, len(slice.Lines), tt.lines)
			for _, line := range slice.Lines {
				test.T(t, line.Edge, tt.edges)
			}
			test.T(t, len(slice.Polys), 1)
			poly := slice.Polys[0]
			test.That(t, !poly.Open)
			test.T(t, poly.Len(), 4)
			test.Float(t, poly.Area(), 1.0)
			test.Float(t, poly.Perimeter(), 4.0)
			test.Float(t, poly.Z, tt.z)
		})
	}

	test.That(t, SliceZ(2.0, cube(), ZOptions{}) == nil)
	test.That(t, SliceZ(-1.0, cube(), ZOptions{}) == nil)

	slice := SliceZ(0.5, cube(), ZOptions{NoLines: true, NoConnect: true})
	test.That(t, slice != nil)
	test.T(t, len(slice.Lines), 0)
	test.T(t, len(slice.Polys), 0)

	slice = SliceZ(0.5, cube(), ZOptions{NoDedup: true, NoConnect: true})
	test.T(t, len(slice.Lines), 8)

	test.That(t, SliceZ(0.5, cube(), ZOptions{Edges: true}) == nil)
}

func TestSlice(t *testing.T) {
	s, err := New(cube(), FeatureOptions{})
	test.Error(t, err)

	progress, each := 0, 0
	slices, err := s.Slice(context.Background(), []float64{0.0, 0.5, 1.0}, SliceOptions{
		Progress: func(count, total int) {
			test.T(t, total, 3)
			progress = count
		},
		Each: func(slice *Slice, i, n int) {
			test.T(t, slice.Index, i)
			test.T(t, n, 3)
			each++
		},
	})
	test.Error(t, err)
	test.T(t, progress, 3)
	test.T(t, each, 3)
	test.T(t, len(slices), 3)

	zs := []float64{0.99, 0.5, 0.01}
	for i, slice := range slices {
		test.Float(t, slice.Z, zs[i])
		test.T(t, slice.Index, i)
		test.T(t, len(slice.Tops), 1)
		test.Float(t, slice.Tops[0].Poly.Area(), 1.0)
	}

	slices, err = s.Slice(context.Background(), []float64{0.0, 1.0}, SliceOptions{NoFlatOffset: true, Ascending: true})
	test.Error(t, err)
	test.T(t, len(slices), 2)
	test.Float(t, slices[0].Z, 0.0)
	test.Float(t, slices[1].Z, 1.0)

	slices, err = s.Slice(context.Background(), nil, SliceOptions{})
	test.Error(t, err)
	test.T(t, len(slices), 0)
}

func TestSliceOrder(t *testing.T) {
	s, err := New(cube(), FeatureOptions{})
	test.Error(t, err)
	zs := s.Interval(0.05, IntervalOptions{})
	test.T(t, len(zs), 21)

	for _, n := range []int{1, 2, 5, 25, 100} {
		for _, ascending := range []bool{false, true} {
			t.Run(fmt.Sprintf("%d-%v", n, ascending), func(t *testing.T) {
				slices, err := s.Slice(context.Background(), zs, SliceOptions{Buckets: n, Ascending: ascending})
				test.Error(t, err)
				test.T(t, len(slices), len(zs))
				for i := 1; i < len(slices); i++ {
					if ascending {
						test.That(t, slices[i-1].Z < slices[i].Z)
					} else {
						test.That(t, slices[i].Z < slices[i-1].Z)
					}
					test.T(t, slices[i].Index, i)
				}
			})
		}
	}
}

// delayedSlicer completes buckets of low heights last.
type delayedSlicer struct {
	sync.Mutex
	begin, end, calls int
	err               error
}

func (d *delayedSlicer) SliceBucket(ctx context.Context, b *Bucket, opt ZOptions) ([]*Slice, error) {
	time.Sleep(time.Duration((1.0-b.Zs[0])*20.0) * time.Millisecond)
	d.Lock()
	d.calls++
	d.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return SliceBucket(ctx, b, opt)
}

func (d *delayedSlicer) BeginSlice(context.Context, ZOptions) error {
	d.begin++
	return nil
}

func (d *delayedSlicer) EndSlice(context.Context) error {
	d.end++
	return nil
}

func TestSliceBucketSlicer(t *testing.T) {
	s, err := New(cube(), FeatureOptions{})
	test.Error(t, err)
	zs := s.Interval(0.1, IntervalOptions{})

	d := &delayedSlicer{}
	slices, err := s.Slice(context.Background(), zs, SliceOptions{Buckets: 11, Slicer: d})
	test.Error(t, err)
	test.T(t, d.begin, 1)
	test.T(t, d.end, 1)
	test.T(t, d.calls, 11)
	test.T(t, len(slices), 11)
	for i := 1; i < len(slices); i++ {
		test.That(t, slices[i].Z < slices[i-1].Z)
	}

	d = &delayedSlicer{err: errors.New("worker failed")}
	_, err = s.Slice(context.Background(), zs, SliceOptions{Slicer: d})
	test.T(t, err, d.err)
	test.T(t, d.end, 1)
}

func TestBuckets(t *testing.T) {
	s, err := New(cube(), FeatureOptions{})
	test.Error(t, err)

	buckets := s.buckets([]float64{0.1, 0.2, 0.3, 0.4, 0.5}, 2)
	test.T(t, len(buckets), 2)
	test.T(t, buckets[0].Zs, []float64{0.1, 0.2, 0.3})
	test.T(t, buckets[1].Zs, []float64{0.4, 0.5})
	// the bottom and top faces lie outside both ranges
	test.T(t, len(buckets[0].Points), 8*9)
	test.T(t, len(buckets[1].Points), 8*9)

	buckets = s.buckets([]float64{0.0, 1.0}, 10)
	test.T(t, len(buckets), 2)
	test.T(t, len(buckets[0].Points), 10*9)
}

func TestInterval(t *testing.T) {
	half := 0.5
	tests := []struct {
		name string
		step float64
		opt  IntervalOptions
		zs   []float64
	}{
		{"step", 0.25, IntervalOptions{}, []float64{0, 0.25, 0.5, 0.75, 1}},
		{"down", 0.25, IntervalOptions{Down: true}, []float64{1, 0.75, 0.5, 0.25, 0}},
		{"remainder", 0.3, IntervalOptions{}, []float64{0, 0.3, 0.6}},
		{"fit", 0.3, IntervalOptions{Fit: true}, []float64{0, 0.25, 0.5, 0.75, 1}},
		{"fit down", 0.3, IntervalOptions{Fit: true, Down: true}, []float64{1, 0.75, 0.5, 0.25, 0}},
		{"offset", 0.25, IntervalOptions{Off: 0.25}, []float64{0.25, 0.5, 0.75}},
		{"bottom offset", 0.25, IntervalOptions{BottomOff: 0.5}, []float64{0.5, 0.75, 1}},
		{"flats", 0.25, IntervalOptions{Off: 0.25, Flats: true}, []float64{0.25, 0.5, 0.75, 1.25}},
		{"min", 0.25, IntervalOptions{Min: &half}, []float64{0.5, 0.75, 1}},
		{"max", 0.25, IntervalOptions{Max: &half}, []float64{0, 0.25, 0.5}},
		{"zero step", 0.0, IntervalOptions{}, nil},
		{"inverted", 0.25, IntervalOptions{Off: 0.75}, nil},
	}
	s, err := New(cube(), FeatureOptions{})
	test.Error(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.T(t, s.Interval(tt.step, tt.opt), tt.zs)
		})
	}
}

func TestDedup(t *testing.T) {
	edge := func(l Line) Line {
		l.Edge = true
		return l
	}
	tests := []struct {
		name  string
		lines []Line
		out   []Line
	}{
		{"duplicates", []Line{line(0, 0, 1, 0), line(1, 1, 1, 0), line(1, 0, 0, 0)}, []Line{line(1, 0, 1, 1)}},
		{"duplicate edges", []Line{edge(line(0, 0, 1, 0)), edge(line(1, 0, 0, 0))}, []Line{edge(line(0, 0, 1, 0))}},
		{"collinear", []Line{line(1, 0, 2, 0), line(0, 0, 1, 0)}, []Line{line(0, 0, 2, 0)}},
		{"collinear chain", []Line{line(2, 0, 3, 0), line(1, 0, 2, 0), line(0, 0, 1, 0)}, []Line{line(0, 0, 3, 0)}},
		{"corner", []Line{line(0, 0, 1, 0), line(1, 0, 1, 1)}, []Line{line(0, 0, 1, 0), line(1, 0, 1, 1)}},
		{"fork", []Line{line(0, 0, 1, 0), line(1, 0, 2, 0), line(1, 0, 1, 1)}, []Line{line(0, 0, 1, 0), line(1, 0, 1, 1), line(1, 0, 2, 0)}},
		{"merged edge", []Line{edge(line(0, 0, 1, 0)), line(1, 0, 2, 0)}, []Line{edge(line(0, 0, 2, 0))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test.T(t, Dedup(tt.lines), tt.out)
		})
	}
}

func TestConnect(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		polys := Connect([]Line{line(1, 1, 0, 1), line(0, 0, 1, 0), line(0, 1, 0, 0), line(1, 0, 1, 1)}, 0.5)
		test.T(t, len(polys), 1)
		test.That(t, !polys[0].Open)
		test.T(t, polys[0].Len(), 4)
		test.Float(t, polys[0].Area(), 1.0)
		test.Float(t, polys[0].Points[0].Z, 0.5)
	})

	t.Run("open", func(t *testing.T) {
		polys := Connect([]Line{line(0, 0, 1, 0), line(1, 0, 1, 1)}, 0.0)
		test.T(t, len(polys), 1)
		test.That(t, polys[0].Open)
		test.T(t, polys[0].Len(), 3)
	})

	t.Run("bridge", func(t *testing.T) {
		polys := Connect([]Line{
			{P1: Point{0, 0, 0}, P2: Point{1, 0, 0}},
			{P1: Point{1, 0, 0}, P2: Point{1, 1, 0}},
			{P1: Point{1, 1.001, 0}, P2: Point{0, 1, 0}},
			{P1: Point{0, 1, 0}, P2: Point{0, 0.001, 0}},
		}, 0.0)
		test.T(t, len(polys), 1)
		test.That(t, !polys[0].Open)
		test.That(t, math.Abs(polys[0].Area()-1.0) < 0.01, polys[0].Area())
	})

	t.Run("two squares", func(t *testing.T) {
		lines := []Line{}
		for _, x := range []float64{0, 5} {
			lines = append(lines, line(x, 0, x+1, 0), line(x+1, 0, x+1, 1), line(x+1, 1, x, 1), line(x, 1, x, 0))
		}
		polys := Connect(lines, 0.0)
		test.T(t, len(polys), 2)
		for _, poly := range polys {
			test.Float(t, poly.Area(), 1.0)
		}
	})

	test.T(t, len(Connect(nil, 0.0)), 0)
}

func TestDecimate(t *testing.T) {
	points := []float32{
		0, 0, 0, 0.01, 0, 0, 0, 1, 0,
		0.01, 0, 0, 1, 0, 0, 0.5, 1, 0,
	}
	out := Decimate(points, DecimateOptions{Threshold: 1})
	test.T(t, len(out), 9)
	test.T(t, out[0], float32(0.01)/2.0)
	test.T(t, out[3:], []float32{1, 0, 0, 0.5, 1, 0})

	test.T(t, len(Decimate(points, DecimateOptions{})), len(points))
	test.T(t, len(Decimate(points, DecimateOptions{Threshold: 1, Precision: 0.001})), len(points))

	out = Decimate(cube(), DecimateOptions{Threshold: 1, Precision: 2.0, MaxPass: 1})
	test.That(t, len(out) < len(cube()))
	test.T(t, len(out)%9, 0)
}
