package work

import (
	"context"
	"fmt"

	"github.com/tdewolff/slicer"
	"github.com/tdewolff/slicer/clip"
	"github.com/tdewolff/slicer/codec"
	"golang.org/x/sync/errgroup"
)

var (
	_ slicer.BucketSlicer  = (*Pool)(nil)
	_ slicer.BucketSession = (*Pool)(nil)
)

func encodeJob(v any, key string, data codec.Record) (codec.Record, []any, error) {
	s := codec.NewState()
	enc, err := codec.Encode(v, s)
	if err != nil {
		return nil, nil, err
	}
	data[key] = enc
	return data, s.Zeros, nil
}

// Union merges polygons. Large inputs are split into one chunk per worker, the chunks are merged by the workers and their results once more by the pool. Small inputs are merged by the pool directly.
func (p *Pool) Union(ctx context.Context, polys []*slicer.Polygon, minArea, z float64) ([]*slicer.Polygon, error) {
	n := p.Workers()
	if n < 2 || len(polys) < 2*n || slicer.CountPoints(polys) < 50*n {
		return p.bridge.Union(ctx, polys, minArea, z)
	}

	per := (len(polys) + n - 1) / n
	chunks := make([][]*slicer.Polygon, (len(polys)+per-1)/per)
	g, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		chunk := polys[i*per : min((i+1)*per, len(polys))]
		g.Go(func() error {
			data, buffers, err := encodeJob(chunk, "polys", codec.Record{"min_area": minArea, "z": z})
			if err != nil {
				return err
			}
			res, err := p.Do(gctx, "union", data, buffers, nil)
			if err != nil {
				return err
			}
			chunks[i], err = codec.DecodePolys(res["union"], codec.NewState())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var union []*slicer.Polygon
	for _, chunk := range chunks {
		union = append(union, chunk...)
	}
	return p.bridge.Union(ctx, union, minArea, z)
}

// Offset offsets polygons by dist on a worker.
func (p *Pool) Offset(ctx context.Context, polys []*slicer.Polygon, dist, z float64) ([]*slicer.Polygon, error) {
	if p.Workers() < 2 {
		return p.bridge.Offset(ctx, polys, dist, z)
	}
	data, buffers, err := encodeJob(polys, "polys", codec.Record{"dist": dist, "z": z})
	if err != nil {
		return nil, err
	}
	res, err := p.Do(ctx, "offset", data, buffers, nil)
	if err != nil {
		return nil, err
	}
	return codec.DecodePolys(res["offset"], codec.NewState())
}

// Fill hatches polygons on a worker, see clip.Fill.
func (p *Pool) Fill(ctx context.Context, polys []*slicer.Polygon, angle, spacing, minLen, maxLen float64) ([]clip.FillLine, error) {
	if p.Workers() < 2 {
		return clip.Fill(polys, angle, spacing, minLen, maxLen), nil
	}
	data, buffers, err := encodeJob(polys, "polys", codec.Record{
		"angle":   angle,
		"spacing": spacing,
		"min_len": minLen,
		"max_len": maxLen,
	})
	if err != nil {
		return nil, err
	}
	res, err := p.Do(ctx, "fill", data, buffers, nil)
	if err != nil {
		return nil, err
	}
	buf, err := float64s(res["fill"])
	if err != nil {
		return nil, err
	}
	return unpackFill(buf)
}

// TopShells computes the shells of top on a worker, see clip.Bridge.TopShells. The top polygon is kept, the derived geometry is replaced.
func (p *Pool) TopShells(ctx context.Context, z float64, top *slicer.Top, count int, offset1, offsetN, fillOffset float64) error {
	if p.Workers() < 2 {
		return p.bridge.TopShells(ctx, z, top, count, offset1, offsetN, fillOffset)
	}
	s := &codec.State{Full: true}
	enc, err := codec.Encode(&slicer.Top{Poly: top.Poly}, s)
	if err != nil {
		return err
	}
	res, err := p.Do(ctx, "topShells", codec.Record{
		"top":         enc,
		"z":           z,
		"count":       count,
		"offset1":     offset1,
		"offsetN":     offsetN,
		"fill_offset": fillOffset,
	}, s.Zeros, nil)
	if err != nil {
		return err
	}
	dec, err := decodeTop(res["top"])
	if err != nil {
		return err
	}
	for i, poly := range dec.Last {
		if poly == dec.Poly {
			dec.Last[i] = top.Poly
		}
	}
	top.Shells, top.Last, top.FillOff, top.FillLines, top.Gaps = dec.Shells, dec.Last, dec.FillOff, dec.FillLines, dec.Gaps
	return nil
}

// Clip clips open polylines against the area of polys at the height of slice on a worker, see clip.Clip. Every clipped piece is added to the sparse fill of the tops of slice that contain it.
func (p *Pool) Clip(ctx context.Context, slice *slicer.Slice, polys []*slicer.Polygon, lines [][]slicer.Point) ([]*slicer.Polygon, error) {
	rings := slicer.Flatten(polys)
	var clips []*slicer.Polygon
	if p.Workers() < 2 {
		clips = clip.Clip(rings, lines, slice.Z)
	} else {
		s := codec.NewState()
		encRings := make([]any, len(rings))
		for i, ring := range rings {
			encRings[i] = codec.EncodePointArray(ring.Points, s)
		}
		encLines := make([]any, len(lines))
		for i, line := range lines {
			encLines[i] = codec.EncodePointArray(line, s)
		}
		res, err := p.Do(ctx, "clip", codec.Record{
			"polys": encRings,
			"lines": encLines,
			"z":     slice.Z,
		}, s.Zeros, nil)
		if err != nil {
			return nil, err
		}
		if clips, err = codec.DecodePolys(res["clips"], codec.NewState()); err != nil {
			return nil, err
		}
	}
	for _, top := range slice.Tops {
		for _, poly := range clips {
			if poly.IsInside(top.Poly, slicer.NestPrecision) {
				top.FillSparse = append(top.FillSparse, poly)
			}
		}
	}
	return clips, nil
}

// SliceZ slices triangles at height z on a worker, see slicer.SliceZ.
func (p *Pool) SliceZ(ctx context.Context, z float64, points []float32, opt slicer.ZOptions) (*slicer.Slice, error) {
	res, err := p.Do(ctx, "sliceZ", codec.Record{
		"z":       z,
		"points":  points,
		"options": encodeZOptions(opt),
	}, []any{points}, nil)
	if err != nil {
		return nil, err
	} else if res["slice"] == nil {
		return nil, nil
	}
	dec, err := codec.Decode(res["slice"], codec.NewState())
	if err != nil {
		return nil, err
	}
	slice, ok := dec.(*slicer.Slice)
	if !ok {
		return nil, fmt.Errorf("%w: expected slice, got %T", codec.ErrBadRecord, dec)
	}
	return slice, nil
}

// BeginSlice starts a slicing session on all workers.
func (p *Pool) BeginSlice(ctx context.Context, opt slicer.ZOptions) error {
	return p.Broadcast(ctx, "slice_init", codec.Record{"options": encodeZOptions(opt)})
}

// EndSlice ends the slicing session on all workers.
func (p *Pool) EndSlice(ctx context.Context) error {
	return p.Broadcast(ctx, "slice_cleanup", nil)
}

// SliceBucket slices a bucket on a worker. It must be called between BeginSlice and EndSlice, which pass the options the worker slices with, so opt is ignored.
func (p *Pool) SliceBucket(ctx context.Context, b *slicer.Bucket, _ slicer.ZOptions) ([]*slicer.Slice, error) {
	var slices []*slicer.Slice
	var errDecode error
	res, err := p.Do(ctx, "slice", codec.Record{"zs": b.Zs, "points": b.Points}, []any{b.Points}, func(data codec.Record) {
		if errDecode != nil {
			return
		}
		dec, err := codec.Decode(data["slice"], codec.NewState())
		if err != nil {
			errDecode = err
			return
		}
		if slice, ok := dec.(*slicer.Slice); ok {
			slices = append(slices, slice)
		} else {
			errDecode = fmt.Errorf("%w: expected slice, got %T", codec.ErrBadRecord, dec)
		}
	})
	if err != nil {
		return nil, err
	} else if errDecode != nil {
		return nil, errDecode
	} else if n := integer(res, "count"); n != len(slices) {
		return nil, fmt.Errorf("%w: received %d of %d slices", codec.ErrBadRecord, len(slices), n)
	}
	return slices, nil
}

// SetEngine switches the polygon engine of all workers on or off. When code is not nil, the workers first load it as their engine.
func (p *Pool) SetEngine(ctx context.Context, enable bool, code []byte) error {
	if enable {
		p.bridge.Enable()
	} else {
		p.bridge.Disable()
	}
	data := codec.Record{"enable": enable}
	if code != nil {
		data["code"] = code
	}
	return p.Broadcast(ctx, "wasm", data)
}

// Configure sets the minimum area of union results on all workers.
func (p *Pool) Configure(ctx context.Context, minArea float64) error {
	return p.Broadcast(ctx, "config", codec.Record{"min_area": minArea})
}
