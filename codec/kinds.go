package codec

import (
	"fmt"

	"github.com/tdewolff/slicer"
)

// EncodePointArray packs points into a flat buffer of three numbers per point and records it in s. Coordinates keep their full precision.
func EncodePointArray(points []slicer.Point, s *State) []float64 {
	if points == nil {
		return nil
	}
	buf := make([]float64, 0, 3*len(points))
	for _, p := range points {
		buf = append(buf, p.X, p.Y, p.Z)
	}
	if s != nil {
		s.zero(buf)
	}
	return buf
}

// DecodePointArray unpacks a flat buffer of three numbers per point.
func DecodePointArray(v any) ([]slicer.Point, error) {
	if v == nil {
		return nil, nil
	}
	buf, err := floats(v)
	if err != nil {
		return nil, err
	} else if len(buf)%3 != 0 {
		return nil, fmt.Errorf("%w: point array of length %d", ErrBadRecord, len(buf))
	}
	points := make([]slicer.Point, 0, len(buf)/3)
	for i := 0; i < len(buf); i += 3 {
		points = append(points, slicer.Point{X: buf[i], Y: buf[i+1], Z: buf[i+2]})
	}
	return points, nil
}

const (
	lineCoplanar = 1 << iota
	lineEdge
)

// EncodeLines packs line end points in pairs together with their flags.
func EncodeLines(lines []slicer.Line, s *State) any {
	if lines == nil {
		return nil
	}
	points := make([]slicer.Point, 0, 2*len(lines))
	flags := make([]uint8, len(lines))
	for i, line := range lines {
		points = append(points, line.P1, line.P2)
		if line.Coplanar {
			flags[i] |= lineCoplanar
		}
		if line.Edge {
			flags[i] |= lineEdge
		}
	}
	return Record{"array": EncodePointArray(points, s), "flags": flags}
}

// DecodeLines reverses EncodeLines.
func DecodeLines(v any) ([]slicer.Line, error) {
	if v == nil {
		return nil, nil
	}
	rec, ok := v.(Record)
	if !ok {
		return nil, fmt.Errorf("%w: lines of type %T", ErrBadRecord, v)
	}
	points, err := DecodePointArray(rec["array"])
	if err != nil {
		return nil, err
	} else if len(points)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of line end points", ErrBadRecord)
	}
	var flags []int
	switch f := rec["flags"].(type) {
	case []uint8:
		for _, flag := range f {
			flags = append(flags, int(flag))
		}
	case []any:
		for _, flag := range f {
			n, _ := asInt(flag)
			flags = append(flags, n)
		}
	}
	lines := make([]slicer.Line, len(points)/2)
	for i := range lines {
		lines[i] = slicer.Line{P1: points[2*i], P2: points[2*i+1]}
		if i < len(flags) {
			lines[i].Coplanar = flags[i]&lineCoplanar != 0
			lines[i].Edge = flags[i]&lineEdge != 0
		}
	}
	return lines, nil
}

// DecodePolys decodes a list of polygon records.
func DecodePolys(v any, s *State) ([]*slicer.Polygon, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: polygon list of type %T", ErrBadRecord, v)
	} else if len(list) == 0 {
		return nil, nil
	}
	polys := make([]*slicer.Polygon, 0, len(list))
	for _, elem := range list {
		poly, err := decodePolyValue(elem, s)
		if err != nil {
			return nil, err
		} else if poly != nil {
			polys = append(polys, poly)
		}
	}
	return polys, nil
}

func decodePolyValue(v any, s *State) (*slicer.Polygon, error) {
	if v == nil {
		return nil, nil
	}
	rec, ok := v.(Record)
	if !ok || rec["type"] != "poly" {
		return nil, fmt.Errorf("%w: expected polygon, got %T", ErrBadRecord, v)
	}
	return decodePoly(rec, s)
}

////////////////////////////////////////////////////////////////

func encodePoly(p *slicer.Polygon, s *State) (any, error) {
	if id, ok := s.ids[p]; ok {
		return Record{"type": "poly", "ref": id}, nil
	}
	if s.ids == nil {
		s.ids = map[*slicer.Polygon]int{}
	}
	id := len(s.ids) + 1
	s.ids[p] = id

	rec := Record{
		"type":  "poly",
		"id":    id,
		"array": EncodePointArray(p.Points, s),
		"open":  p.Open,
		"depth": p.Depth,
		"z":     p.Z,
	}
	var err error
	if rec["inner"], err = encodeList(p.Inner, s); err != nil {
		return nil, err
	}
	if rec["parent"], err = Encode(p.Parent, s); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodePoly(v Record, s *State) (*slicer.Polygon, error) {
	if ref, ok := v["ref"]; ok {
		id, _ := asInt(ref)
		poly, ok := s.polys[id]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownRef, ref)
		}
		return poly, nil
	}
	id, ok := asInt(v["id"])
	if !ok {
		return nil, fmt.Errorf("%w: polygon without id", ErrBadRecord)
	}
	points, err := DecodePointArray(v["array"])
	if err != nil {
		return nil, err
	}
	poly := &slicer.Polygon{Points: points}
	poly.Open, _ = v["open"].(bool)
	poly.Depth, _ = asInt(v["depth"])
	poly.Z, _ = asFloat(v["z"])
	if s.polys == nil {
		s.polys = map[int]*slicer.Polygon{}
	}
	s.polys[id] = poly

	if poly.Inner, err = DecodePolys(v["inner"], s); err != nil {
		return nil, err
	}
	if poly.Parent, err = decodePolyValue(v["parent"], s); err != nil {
		return nil, err
	}
	return poly, nil
}

// topKeys are the derived polygon sets of a top in the order they are encoded.
var topKeys = []string{"shells", "last", "fill_off", "fill_sparse", "gaps"}

func encodeTop(t *slicer.Top, s *State) (any, error) {
	poly, err := Encode(t.Poly, s)
	if err != nil {
		return nil, err
	}
	rec := Record{"type": "top", "poly": poly}
	if !s.Full {
		return rec, nil
	}
	for i, polys := range [][]*slicer.Polygon{t.Shells, t.Last, t.FillOff, t.FillSparse, t.Gaps} {
		if rec[topKeys[i]], err = encodeList(polys, s); err != nil {
			return nil, err
		}
	}
	rec["fill_lines"] = EncodeLines(t.FillLines, s)
	return rec, nil
}

func decodeTop(v Record, s *State) (*slicer.Top, error) {
	poly, err := decodePolyValue(v["poly"], s)
	if err != nil {
		return nil, err
	}
	t := &slicer.Top{Poly: poly}
	for i, polys := range []*[]*slicer.Polygon{&t.Shells, &t.Last, &t.FillOff, &t.FillSparse, &t.Gaps} {
		if *polys, err = DecodePolys(v[topKeys[i]], s); err != nil {
			return nil, fmt.Errorf("%s: %w", topKeys[i], err)
		}
	}
	if t.FillLines, err = DecodeLines(v["fill_lines"]); err != nil {
		return nil, err
	}
	return t, nil
}

func encodeSlice(slice *slicer.Slice, s *State) (any, error) {
	rec := Record{
		"type":  "slice",
		"z":     slice.Z,
		"index": slice.Index,
		"lines": EncodeLines(slice.Lines, s),
	}
	var err error
	if rec["polys"], err = encodeList(slice.Polys, s); err != nil {
		return nil, err
	}
	if rec["tops"], err = encodeList(slice.Tops, s); err != nil {
		return nil, err
	}
	if rec["layers"], err = Encode(slice.Layers, s); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeSlice(v Record, s *State) (*slicer.Slice, error) {
	z, ok := asFloat(v["z"])
	if !ok {
		return nil, fmt.Errorf("%w: slice without height", ErrBadRecord)
	}
	slice := slicer.NewSlice(z)
	slice.Index, _ = asInt(v["index"])

	var err error
	if slice.Lines, err = DecodeLines(v["lines"]); err != nil {
		return nil, err
	}
	if slice.Polys, err = DecodePolys(v["polys"], s); err != nil {
		return nil, err
	}
	if tops, ok := v["tops"].([]any); ok {
		for _, elem := range tops {
			rec, ok := elem.(Record)
			if !ok {
				return nil, fmt.Errorf("%w: top of type %T", ErrBadRecord, elem)
			}
			top, err := decodeTop(rec, s)
			if err != nil {
				return nil, err
			}
			slice.Tops = append(slice.Tops, top)
		}
	}
	if rec, ok := v["layers"].(Record); ok {
		if slice.Layers, err = decodeLayers(rec, s); err != nil {
			return nil, err
		}
	}
	return slice, nil
}

func encodeLayers(l *slicer.Layers, s *State) (any, error) {
	names := make([]any, 0, l.Len())
	data := make([]any, 0, l.Len())
	for _, name := range l.Names() {
		layer := l.Layer(name)
		polys, err := encodeList(layer.Polys, s)
		if err != nil {
			return nil, err
		}
		faces, _ := Encode(layer.Faces, s)
		names = append(names, name)
		data = append(data, Record{
			"polys": polys,
			"lines": EncodePointArray(layer.Lines, s),
			"faces": faces,
			"color": layer.Color,
			"off":   layer.Off,
		})
	}
	return Record{"type": "layers", "names": names, "data": data}, nil
}

func decodeLayers(v Record, s *State) (*slicer.Layers, error) {
	names, _ := v["names"].([]any)
	data, _ := v["data"].([]any)
	if len(names) != len(data) {
		return nil, fmt.Errorf("%w: %d layer names for %d layers", ErrBadRecord, len(names), len(data))
	}
	l := slicer.NewLayers()
	for i, name := range names {
		key, _ := name.(string)
		rec, ok := data[i].(Record)
		if !ok {
			return nil, fmt.Errorf("%w: layer %q of type %T", ErrBadRecord, key, data[i])
		}
		color, _ := asInt(rec["color"])
		layer := l.SetLayer(key, uint32(color))
		layer.Off, _ = rec["off"].(bool)

		var err error
		if layer.Polys, err = DecodePolys(rec["polys"], s); err != nil {
			return nil, err
		}
		if layer.Lines, err = DecodePointArray(rec["lines"]); err != nil {
			return nil, err
		}
		if rec["faces"] != nil {
			faces, err := floats(rec["faces"])
			if err != nil {
				return nil, err
			}
			layer.Faces = make([]float32, len(faces))
			for j, f := range faces {
				layer.Faces[j] = float32(f)
			}
		}
	}
	return l, nil
}

func encodeWidget(w *slicer.Widget, s *State) (any, error) {
	vertices, _ := Encode(w.Vertices, s)
	return Record{
		"type":  "widget",
		"id":    w.ID,
		"group": w.Group,
		"pos":   EncodePointArray([]slicer.Point{w.Position}, s),
		"geo":   vertices,
	}, nil
}

func decodeWidget(v Record, s *State) (*slicer.Widget, error) {
	w := &slicer.Widget{}
	w.ID, _ = v["id"].(string)
	if w.Group, _ = v["group"].(string); w.Group == "" {
		w.Group = w.ID
	}
	pos, err := DecodePointArray(v["pos"])
	if err != nil {
		return nil, err
	} else if len(pos) == 1 {
		w.Position = pos[0]
	}
	switch geo := v["geo"].(type) {
	case nil:
	case []float32:
		s.zero(geo)
		w.Vertices = geo
	default:
		buf, err := floats(geo)
		if err != nil {
			return nil, err
		}
		w.Vertices = make([]float32, len(buf))
		for i, f := range buf {
			w.Vertices[i] = float32(f)
		}
	}
	if len(w.Vertices)%9 != 0 {
		return nil, fmt.Errorf("widget %s: %w", w.ID, slicer.ErrBadPoints)
	}
	return w, nil
}

////////////////////////////////////////////////////////////////

func floats(v any) ([]float64, error) {
	switch v := v.(type) {
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, nil
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, len(v))
		for i, elem := range v {
			f, ok := asFloat(elem)
			if !ok {
				return nil, fmt.Errorf("%w: number of type %T", ErrBadRecord, elem)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: buffer of type %T", ErrBadRecord, v)
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	}
	return 0.0, false
}

func asInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), v == float64(int(v))
	}
	return 0, false
}
