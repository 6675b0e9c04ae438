package slicer

import "fmt"

// Slice is the cross-section of a mesh at one height. Index is its position in the sorted stack of slices. Lines are the raw segments and Polys the polygons connected from them, either may be nil when not requested. Tops wrap the outer polygons of Polys.
type Slice struct {
	Z      float64
	Index  int
	Lines  []Line
	Polys  []*Polygon
	Tops   []*Top
	Layers *Layers
}

// NewSlice returns an empty slice at height z.
func NewSlice(z float64) *Slice {
	return &Slice{Z: z}
}

// AddTop adds a top wrapping poly.
func (s *Slice) AddTop(poly *Polygon) *Top {
	top := &Top{Poly: poly}
	s.Tops = append(s.Tops, top)
	return top
}

// AddTops adds a top for each polygon.
func (s *Slice) AddTops(polys []*Polygon) *Slice {
	for _, poly := range polys {
		s.AddTop(poly)
	}
	return s
}

// TopPolys returns the outer polygons of all tops.
func (s *Slice) TopPolys() []*Polygon {
	polys := make([]*Polygon, 0, len(s.Tops))
	for _, top := range s.Tops {
		polys = append(polys, top.Poly)
	}
	return polys
}

// TopShells returns the shells of all tops.
func (s *Slice) TopShells() []*Polygon {
	var polys []*Polygon
	for _, top := range s.Tops {
		polys = append(polys, top.Shells...)
	}
	return polys
}

// TopFillOff returns the fill regions of all tops.
func (s *Slice) TopFillOff() []*Polygon {
	var polys []*Polygon
	for _, top := range s.Tops {
		polys = append(polys, top.FillOff...)
	}
	return polys
}

// Output returns the render layers of the slice, creating them when necessary.
func (s *Slice) Output() *Layers {
	if s.Layers == nil {
		s.Layers = NewLayers()
	}
	return s.Layers
}

// Clone returns a copy of the slice with a top for each top polygon. When deep is set, the polygons are copied too.
func (s *Slice) Clone(deep bool) *Slice {
	r := NewSlice(s.Z)
	r.Index = s.Index
	for _, top := range s.Tops {
		r.AddTop(top.Poly.Clone(deep))
	}
	return r
}

func (s *Slice) String() string {
	return fmt.Sprintf("Slice{z=%g index=%d lines=%d polys=%d tops=%d}", s.Z, s.Index, len(s.Lines), len(s.Polys), len(s.Tops))
}

////////////////////////////////////////////////////////////////

// Top is an outer polygon of a slice together with the geometry derived from it: inward offset shells, the innermost shell boundaries (Last), the region left for fill, the fill lines and the gaps between shells. FillSparse holds open polylines of sparse infill clipped to the top.
type Top struct {
	Poly       *Polygon
	Shells     []*Polygon
	Last       []*Polygon
	FillOff    []*Polygon
	FillLines  []Line
	FillSparse []*Polygon
	Gaps       []*Polygon
}

// ShellsAtDepth returns the shells at the given offset depth.
func (t *Top) ShellsAtDepth(depth int) []*Polygon {
	var polys []*Polygon
	for _, shell := range t.Shells {
		if shell.Depth == depth {
			polys = append(polys, shell)
		}
	}
	return polys
}

// InnerShells returns the holes of all shells.
func (t *Top) InnerShells() []*Polygon {
	var polys []*Polygon
	for _, shell := range t.Shells {
		polys = append(polys, shell.Inner...)
	}
	return polys
}
