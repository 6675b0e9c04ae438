package slicer

import "sort"

// Nest rebuilds the hole hierarchy of a set of polygons in the same plane. Polygons are sorted by ascending area and each is made a hole of the first (smallest) later polygon that contains it. It returns the polygons at even depth, which are outer boundaries. Odd-depth polygons keep no holes of their own, so each outer boundary nests at most one level of holes. When deep is set, only the polygons at depth zero are returned and the full hierarchy is kept. Open polygons never receive holes when openTop is set.
func Nest(polys []*Polygon, deep, openTop bool) []*Polygon {
	if len(polys) == 0 {
		return polys
	}
	sort.SliceStable(polys, func(i, j int) bool {
		return polys[i].Area() < polys[j].Area()
	})
	for _, poly := range polys {
		poly.Parent = nil
		poly.Inner = nil
	}
	for i, poly := range polys[:len(polys)-1] {
		for _, parent := range polys[i+1:] {
			if openTop && parent.Open {
				continue
			}
			if poly.IsNested(parent) {
				parent.AddInner(poly)
				break
			}
		}
	}

	for _, poly := range polys {
		poly.Depth = 0
		for p := poly.Parent; p != nil; p = p.Parent {
			poly.Depth++
		}
	}

	tops := []*Polygon{}
	for _, poly := range polys {
		if deep {
			if poly.Depth == 0 {
				tops = append(tops, poly)
			}
		} else if poly.Depth%2 == 0 {
			if poly.Parent != nil {
				// an island inside a hole becomes an outer boundary of its own
				poly.Parent = nil
			}
			tops = append(tops, poly)
		} else {
			poly.Inner = nil
		}
	}
	return tops
}

// Flatten returns the polygons followed by all their holes, recursively.
func Flatten(polys []*Polygon) []*Polygon {
	out := make([]*Polygon, 0, len(polys))
	for _, poly := range polys {
		out = append(out, poly)
		if 0 < len(poly.Inner) {
			out = append(out, Flatten(poly.Inner)...)
		}
	}
	return out
}

// CountPoints returns the number of points of the polygons and their holes.
func CountPoints(polys []*Polygon) int {
	n := 0
	for _, poly := range polys {
		n += len(poly.Points) + CountPoints(poly.Inner)
	}
	return n
}

// SetZ moves all polygons to height z.
func SetZ(polys []*Polygon, z float64) []*Polygon {
	for _, poly := range polys {
		poly.SetZ(z)
	}
	return polys
}
