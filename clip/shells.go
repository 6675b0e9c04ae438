package clip

import (
	"context"

	"github.com/tdewolff/slicer"
)

// TopShells computes the shells of a top at height z: count successive inward offsets, the first by offset1 and the others by offsetN. Each shell's Depth is the number of the offset that produced it, starting at zero. The innermost shells are stored in Last and, when fillOffset is not zero, inset once more by fillOffset into FillOff. Without shells the top polygon itself is the innermost boundary, and a single shell with a zero offset is a copy of the top polygon. Gaps collects the regions too thin to hold a shell: what an inset followed by the same outset does not restore, or everything that is left once an inset comes out empty.
func (b *Bridge) TopShells(ctx context.Context, z float64, top *slicer.Top, count int, offset1, offsetN, fillOffset float64) error {
	top.Shells, top.Last, top.FillOff, top.FillLines, top.Gaps = nil, nil, nil, nil, nil
	if top.Poly == nil {
		return nil
	}

	var last []*slicer.Polygon
	if count <= 0 {
		last = []*slicer.Polygon{top.Poly}
	} else if offset1 == 0.0 && count == 1 {
		last = []*slicer.Polygon{top.Poly.Clone(true)}
		top.Shells = last
	} else {
		poly := top.Poly
		if poly.Open && 1 < len(poly.Points) && poly.Points[0].Dist2D(poly.Points[len(poly.Points)-1]) < 1.0 {
			// heal nearly closed polylines
			poly = poly.Clone(true)
			poly.Open = false
		}

		polys, dist := []*slicer.Polygon{poly}, offset1
		for i := 0; i < count; i++ {
			shells, err := b.Offset(ctx, polys, -dist, z)
			if err != nil {
				return err
			} else if len(shells) == 0 {
				top.Gaps = append(top.Gaps, polys...)
				break
			}

			// areas lost by the inset that the same outset does not restore
			back, err := b.Offset(ctx, shells, dist, z)
			if err != nil {
				return err
			}
			gaps, _, err := b.Diff(ctx, polys, back, z, true, false)
			if err != nil {
				return err
			}
			top.Gaps = append(top.Gaps, gaps...)

			for _, shell := range shells {
				shell.Depth = i
				for _, inner := range shell.Inner {
					inner.Depth = i
				}
			}
			top.Shells = append(top.Shells, shells...)
			polys, last, dist = shells, shells, offsetN
		}
	}

	if fillOffset != 0.0 {
		for _, poly := range last {
			fill, err := b.Offset(ctx, []*slicer.Polygon{poly}, -fillOffset, z)
			if err != nil {
				return err
			}
			top.FillOff = append(top.FillOff, fill...)
		}
	}
	top.Last = last
	return nil
}
