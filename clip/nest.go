package clip

import (
	"math"
	"sort"

	clipper "github.com/ctessum/go.clipper"
	"github.com/paulmach/orb"
	"github.com/tdewolff/slicer"
)

// Nest rebuilds holes of engine results from their bounding boxes. Polygons are sorted by descending minimum X so that smaller candidates come first. Each polygon without holes becomes a hole of the first later polygon whose bounds contain it, and the polygons without a parent are returned.
func Nest(polys []*slicer.Polygon) []*slicer.Polygon {
	bounds := make(map[*slicer.Polygon]orb.Bound, len(polys))
	for _, poly := range polys {
		bounds[poly] = poly.Bounds()
	}
	sort.SliceStable(polys, func(i, j int) bool {
		return bounds[polys[j]].Min[0] < bounds[polys[i]].Min[0]
	})
	for i, smaller := range polys {
		if 0 < len(smaller.Inner) {
			continue
		}
		for _, larger := range polys[i+1:] {
			if containsBound(bounds[larger], bounds[smaller]) {
				larger.AddInner(smaller)
				smaller.Depth = larger.Depth + 1
				break
			}
		}
	}
	tops := []*slicer.Polygon{}
	for _, poly := range polys {
		if poly.Parent == nil {
			tops = append(tops, poly)
		}
	}
	return tops
}

func containsBound(outer, inner orb.Bound) bool {
	return outer.Min[0] <= inner.Min[0] && outer.Min[1] <= inner.Min[1] && inner.Max[0] <= outer.Max[0] && inner.Max[1] <= outer.Max[1]
}

////////////////////////////////////////////////////////////////

// toPaths converts polygons and their holes to clipper paths, outer boundaries with positive and holes with negative orientation so that they fill correctly under the non-zero rule.
func toPaths(polys []*slicer.Polygon) clipper.Paths {
	paths := clipper.Paths{}
	for _, poly := range polys {
		paths = appendPath(paths, poly, false)
	}
	return paths
}

func appendPath(paths clipper.Paths, poly *slicer.Polygon, hole bool) clipper.Paths {
	path := poly.ToClipper()
	if clipper.Orientation(path) == hole {
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
	}
	paths = append(paths, path)
	for _, inner := range poly.Inner {
		paths = appendPath(paths, inner, !hole)
	}
	return paths
}

func toPathsOpen(lines []slicer.Line) clipper.Paths {
	paths := make(clipper.Paths, 0, len(lines))
	for _, line := range lines {
		paths = append(paths, slicer.NewPolygon(line.P1, line.P2).ToClipper())
	}
	return paths
}

// fromTree converts closed clipper results to polygons with holes at height z. Islands inside holes become outer polygons of their own. Polygons with an area below minArea are dropped.
func fromTree(tree *clipper.PolyTree, z, minArea float64) []*slicer.Polygon {
	polys := []*slicer.Polygon{}
	var walk func(nodes []*clipper.PolyNode)
	walk = func(nodes []*clipper.PolyNode) {
		for _, node := range nodes {
			if node.IsOpen {
				continue
			}
			outer := slicer.PolygonFromClipper(node.Contour(), z)
			keep := minArea <= outer.Area()
			for _, child := range node.Childs() {
				if hole := slicer.PolygonFromClipper(child.Contour(), z); keep && minArea <= hole.Area() {
					hole.Depth = 1
					outer.AddInner(hole)
				}
				walk(child.Childs())
			}
			if keep {
				polys = append(polys, outer)
			}
		}
	}
	walk(tree.Childs())
	return polys
}

func fromPaths(paths clipper.Paths, z float64) []*slicer.Polygon {
	polys := make([]*slicer.Polygon, 0, len(paths))
	for _, path := range paths {
		if 2 < len(path) {
			polys = append(polys, slicer.PolygonFromClipper(path, z))
		}
	}
	return polys
}

func pathsFromRecords(records [][]point) clipper.Paths {
	paths := make(clipper.Paths, 0, len(records))
	for _, record := range records {
		path := make(clipper.Path, 0, len(record))
		for _, pt := range record {
			path = append(path, clipper.NewIntPoint(clipper.CInt(pt.x), clipper.CInt(pt.y)))
		}
		paths = append(paths, path)
	}
	return paths
}

func recordsFromPaths(paths clipper.Paths) [][]point {
	records := make([][]point, 0, len(paths))
	for _, path := range paths {
		record := make([]point, 0, len(path))
		for _, ip := range path {
			record = append(record, point{clampInt32(ip.X), clampInt32(ip.Y)})
		}
		records = append(records, record)
	}
	return records
}

func clampInt32(v clipper.CInt) int32 {
	if v < math.MinInt32 {
		return math.MinInt32
	} else if math.MaxInt32 < v {
		return math.MaxInt32
	}
	return int32(v)
}
