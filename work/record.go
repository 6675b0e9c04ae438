package work

import (
	"fmt"

	"github.com/tdewolff/slicer"
	"github.com/tdewolff/slicer/clip"
	"github.com/tdewolff/slicer/codec"
)

func num(data codec.Record, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0.0
}

func integer(data codec.Record, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func flag(data codec.Record, key string) bool {
	b, _ := data[key].(bool)
	return b
}

func str(data codec.Record, key string) string {
	s, _ := data[key].(string)
	return s
}

func float32s(v any) ([]float32, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []float32:
		return v, nil
	case []float64:
		buf := make([]float32, len(v))
		for i, f := range v {
			buf[i] = float32(f)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: buffer of type %T", codec.ErrBadRecord, v)
}

func float64s(v any) ([]float64, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []float64:
		return v, nil
	case []float32:
		buf := make([]float64, len(v))
		for i, f := range v {
			buf[i] = float64(f)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: buffer of type %T", codec.ErrBadRecord, v)
}

func encodePolys(key string, polys []*slicer.Polygon) (codec.Record, error) {
	enc, err := codec.Encode(polys, nil)
	if err != nil {
		return nil, err
	}
	return codec.Record{key: enc}, nil
}

func decodeTop(v any) (*slicer.Top, error) {
	dec, err := codec.Decode(v, codec.NewState())
	if err != nil {
		return nil, err
	}
	top, ok := dec.(*slicer.Top)
	if !ok {
		return nil, fmt.Errorf("%w: expected top, got %T", codec.ErrBadRecord, dec)
	}
	return top, nil
}

// packFill packs fill lines as their two end points followed by their row index.
func packFill(lines []clip.FillLine) []float64 {
	buf := make([]float64, 0, 7*len(lines))
	for _, line := range lines {
		buf = append(buf,
			line.P1.X, line.P1.Y, line.P1.Z,
			line.P2.X, line.P2.Y, line.P2.Z,
			float64(line.Index))
	}
	return buf
}

func unpackFill(buf []float64) ([]clip.FillLine, error) {
	if len(buf)%7 != 0 {
		return nil, fmt.Errorf("%w: fill buffer of length %d", codec.ErrBadRecord, len(buf))
	}
	lines := make([]clip.FillLine, 0, len(buf)/7)
	for i := 0; i < len(buf); i += 7 {
		v := buf[i : i+7]
		lines = append(lines, clip.FillLine{
			Line: slicer.Line{
				P1: slicer.Point{X: v[0], Y: v[1], Z: v[2]},
				P2: slicer.Point{X: v[3], Y: v[4], Z: v[5]},
			},
			Index: int(v[6]),
		})
	}
	return lines, nil
}

func encodeZOptions(opt slicer.ZOptions) codec.Record {
	return codec.Record{
		"over":       opt.Over,
		"edges":      opt.Edges,
		"min_z":      opt.MinZ,
		"no_dedup":   opt.NoDedup,
		"no_connect": opt.NoConnect,
		"no_lines":   opt.NoLines,
	}
}

func decodeZOptions(v any) slicer.ZOptions {
	data, _ := v.(codec.Record)
	return slicer.ZOptions{
		Over:      flag(data, "over"),
		Edges:     flag(data, "edges"),
		MinZ:      num(data, "min_z"),
		NoDedup:   flag(data, "no_dedup"),
		NoConnect: flag(data, "no_connect"),
		NoLines:   flag(data, "no_lines"),
	}
}
