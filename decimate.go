package slicer

import (
	"math"
	"sort"
)

// DecimateOptions controls Decimate. Zero values select the defaults.
type DecimateOptions struct {
	Threshold int     // decimate while there are more vertices than this, 500000 by default
	Precision float64 // collapse edges shorter than this, 0.05 by default
	MaxPass   int     // maximum number of passes, 10 by default
}

// Decimate reduces the number of triangles of an unrolled vertex buffer. Vertices with the same key are merged first. Then, while the buffer holds more than Threshold vertices, every edge shorter than Precision whose end points were not yet moved in the current pass is collapsed into its midpoint, shortest edges first. Triangles that lose an edge this way are dropped. It returns the points unchanged when nothing was collapsed.
func Decimate(points []float32, opt DecimateOptions) []float32 {
	if opt.Threshold <= 0 {
		opt.Threshold = 500000
	}
	if opt.Precision == 0.0 {
		opt.Precision = 0.05
	}
	if opt.MaxPass == 0 {
		opt.MaxPass = 10
	}
	if len(points)%9 != 0 || opt.Precision < 0.0 || opt.MaxPass < 0 {
		return points
	}

	index := map[Key]int{}
	verts := []Point{}
	tris := make([][3]int, len(points)/9)
	for i := range tris {
		p1, p2, p3 := triangle(points, i)
		for j, p := range [3]Point{p1, p2, p3} {
			k := p.Key()
			v, ok := index[k]
			if !ok {
				v = len(verts)
				index[k] = v
				verts = append(verts, p)
			}
			tris[i][j] = v
		}
	}

	type edge struct {
		a, b int
		d    float64
	}
	passes := 0
	for passes < opt.MaxPass && opt.Threshold < len(tris)*3 {
		edges := make([]edge, 0, len(tris)*3)
		for _, t := range tris {
			edges = append(edges,
				edge{t[0], t[1], math.Sqrt(verts[t[0]].DistSq3D(verts[t[1]]))},
				edge{t[0], t[2], math.Sqrt(verts[t[0]].DistSq3D(verts[t[2]]))},
				edge{t[1], t[2], math.Sqrt(verts[t[1]].DistSq3D(verts[t[2]]))},
			)
		}
		sort.SliceStable(edges, func(i, j int) bool {
			return edges[i].d < edges[j].d
		})

		// collapse maps a vertex to the midpoint vertex that replaces it in this pass
		collapse := map[int]int{}
		for _, e := range edges {
			if opt.Precision <= e.d {
				break
			}
			_, ma := collapse[e.a]
			_, mb := collapse[e.b]
			if ma || mb {
				continue
			}
			mid := len(verts)
			verts = append(verts, verts[e.a].Midpoint(verts[e.b]))
			collapse[e.a] = mid
			collapse[e.b] = mid
		}
		if len(collapse) == 0 {
			break
		}
		passes++

		kept := tris[:0]
		for _, t := range tris {
			var m [3]int
			for j, v := range t {
				if c, ok := collapse[v]; ok {
					m[j] = c
				} else {
					m[j] = v
				}
			}
			if m[0] == m[1] || m[0] == m[2] || m[1] == m[2] {
				continue
			}
			kept = append(kept, m)
		}
		tris = kept
	}
	if passes == 0 {
		return points
	}

	Logger().Info("decimate", "before", len(points)/3, "after", len(tris)*3, "unique", len(index), "passes", passes)
	out := make([]float32, 0, len(tris)*9)
	for _, t := range tris {
		for _, v := range t {
			out = append(out, float32(verts[v].X), float32(verts[v].Y), float32(verts[v].Z))
		}
	}
	return out
}
