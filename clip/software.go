package clip

import (
	clipper "github.com/ctessum/go.clipper"
	"github.com/tdewolff/slicer"
)

// software runs polygon operations directly on the clipper, used when no engine is available.
type software struct{}

// Offset offsets closed polygons by dist. Polygons are cleaned and simplified first, and results smaller than MinArea are dropped.
func (software) Offset(polys []*slicer.Polygon, dist, z float64) []*slicer.Polygon {
	c := clipper.NewClipper(clipper.IoNone)
	paths := c.CleanPolygons(toPaths(polys), slicer.CleanDistance)
	paths = c.SimplifyPolygons(paths, clipper.PftNonZero)
	if len(paths) == 0 {
		return []*slicer.Polygon{}
	}
	co := clipper.NewClipperOffset()
	co.AddPaths(paths, clipper.JtMiter, clipper.EtClosedPolygon)
	return treeOf(co.Execute(dist*slicer.ClipperScale), z, slicer.MinArea)
}

// Union merges polygons with their holes under the non-zero fill rule.
func (software) Union(polys []*slicer.Polygon, z, minArea float64) []*slicer.Polygon {
	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(toPaths(polys), clipper.PtSubject, true)
	tree, ok := c.Execute2(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return []*slicer.Polygon{}
	}
	return fromTree(tree, z, minArea)
}

// Diff returns A-B and B-A.
func (software) Diff(a, b []*slicer.Polygon, z float64, clean float64) ([]*slicer.Polygon, []*slicer.Polygon) {
	pa, pb := toPaths(a), toPaths(b)
	if 0.0 < clean {
		c := clipper.NewClipper(clipper.IoNone)
		pa = c.CleanPolygons(pa, clean)
		pb = c.CleanPolygons(pb, clean)
	}
	return differenceTree(pa, pb, z), differenceTree(pb, pa, z)
}

func differenceTree(subject, clip clipper.Paths, z float64) []*slicer.Polygon {
	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(subject, clipper.PtSubject, true)
	c.AddPaths(clip, clipper.PtClip, true)
	tree, ok := c.Execute2(clipper.CtDifference, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return []*slicer.Polygon{}
	}
	return fromTree(tree, z, 0.0)
}

// treeOf nests flat clipper results by running them through a union.
func treeOf(paths clipper.Paths, z, minArea float64) []*slicer.Polygon {
	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(paths, clipper.PtSubject, true)
	tree, ok := c.Execute2(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok {
		return []*slicer.Polygon{}
	}
	return fromTree(tree, z, minArea)
}
