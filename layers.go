package slicer

// Layer is a named collection of polygons and line segments for downstream consumers such as previews and toolpath generators.
type Layer struct {
	Off   bool
	Color uint32
	Polys []*Polygon
	Lines []Point // pairs of end points
	Faces []float32
}

// AddPolys adds polygons to the layer.
func (l *Layer) AddPolys(polys ...*Polygon) *Layer {
	l.Polys = append(l.Polys, polys...)
	return l
}

// AddLine adds a line segment to the layer.
func (l *Layer) AddLine(p1, p2 Point) *Layer {
	l.Lines = append(l.Lines, p1, p2)
	return l
}

// Layers holds layers by name in insertion order.
type Layers struct {
	names  []string
	layers map[string]*Layer
}

// NewLayers returns an empty set of layers.
func NewLayers() *Layers {
	return &Layers{layers: map[string]*Layer{}}
}

// Layer returns the layer with the given name, creating it when it does not exist.
func (l *Layers) Layer(name string) *Layer {
	if layer, ok := l.layers[name]; ok {
		return layer
	}
	layer := &Layer{}
	l.names = append(l.names, name)
	l.layers[name] = layer
	return layer
}

// SetLayer returns the named layer and sets its color.
func (l *Layers) SetLayer(name string, color uint32) *Layer {
	layer := l.Layer(name)
	layer.Color = color
	return layer
}

// Names returns the layer names in insertion order.
func (l *Layers) Names() []string {
	return l.names
}

// Len returns the number of layers.
func (l *Layers) Len() int {
	return len(l.names)
}

// Widget is a mesh to be sliced, identified by ID and belonging to a group of widgets that move together. Vertices are unrolled triangles, 9 numbers per triangle.
type Widget struct {
	ID       string
	Group    string
	Position Point
	Vertices []float32
}
