// Package codec converts slicer values to and from plain records that can cross worker boundaries: maps, slices, numbers, strings and packed float buffers.
//
// Records of a known kind carry a "type" tag. Polygons are encoded once per State and referenced by id afterwards, so that shared polygons and parent/inner cycles survive a round trip.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/tdewolff/slicer"
)

var (
	ErrUnknownRef = errors.New("unknown polygon reference")
	ErrUnknownTag = errors.New("unknown record type")
	ErrBadRecord  = errors.New("malformed record")
)

// Record is an encoded value of a known kind.
type Record = map[string]any

// Encoder is implemented by values that encode themselves.
type Encoder interface {
	Encode(*State) (any, error)
}

// DecoderFunc decodes a record with a registered type tag.
type DecoderFunc func(Record, *State) (any, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]DecoderFunc{}
)

// RegisterDecoder registers a decoder for records tagged with typ. The built-in kinds cannot be overridden.
func RegisterDecoder(typ string, fn DecoderFunc) {
	switch typ {
	case "poly", "top", "slice", "layers", "widget":
		panic(fmt.Sprintf("codec: cannot register built-in type %q", typ))
	}
	decodersMu.Lock()
	decoders[typ] = fn
	decodersMu.Unlock()
}

// State is threaded through a single encode or decode traversal. Zeros collects the packed buffers met on the way, which the transport hands over without copying. Full also encodes the derived geometry of tops.
type State struct {
	Zeros []any
	Full  bool

	ids   map[*slicer.Polygon]int
	polys map[int]*slicer.Polygon
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

func (s *State) zero(buf any) {
	s.Zeros = append(s.Zeros, buf)
}

// Encode converts v to a record tree.
func Encode(v any, s *State) (any, error) {
	if s == nil {
		s = NewState()
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	case []float32:
		if v == nil {
			return nil, nil
		}
		s.zero(v)
		return v, nil
	case []float64:
		if v == nil {
			return nil, nil
		}
		s.zero(v)
		return v, nil
	case Encoder:
		return v.Encode(s)
	case *slicer.Polygon:
		if v == nil {
			return nil, nil
		}
		return encodePoly(v, s)
	case *slicer.Top:
		if v == nil {
			return nil, nil
		}
		return encodeTop(v, s)
	case *slicer.Slice:
		if v == nil {
			return nil, nil
		}
		return encodeSlice(v, s)
	case *slicer.Layers:
		if v == nil {
			return nil, nil
		}
		return encodeLayers(v, s)
	case *slicer.Widget:
		if v == nil {
			return nil, nil
		}
		return encodeWidget(v, s)
	case []slicer.Point:
		return EncodePointArray(v, s), nil
	case []*slicer.Polygon:
		return encodeList(v, s)
	case Record:
		return encodeMap(v, s)
	}
	return encodeValue(reflect.ValueOf(v), s)
}

// Decode converts a record tree back into values. Tagged records become their slicer types, other maps and slices are decoded element by element.
func Decode(v any, s *State) (any, error) {
	if s == nil {
		s = NewState()
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []float32:
		s.zero(v)
		return v, nil
	case []float64:
		s.zero(v)
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			var err error
			if out[i], err = Decode(elem, s); err != nil {
				return nil, err
			}
		}
		return out, nil
	case Record:
		typ, ok := v["type"].(string)
		if !ok {
			out := make(Record, len(v))
			for _, key := range sortedKeys(v) {
				var err error
				if out[key], err = Decode(v[key], s); err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
			}
			return out, nil
		}
		switch typ {
		case "poly":
			return decodePoly(v, s)
		case "top":
			return decodeTop(v, s)
		case "slice":
			return decodeSlice(v, s)
		case "layers":
			return decodeLayers(v, s)
		case "widget":
			return decodeWidget(v, s)
		}
		decodersMu.RLock()
		fn, ok := decoders[typ]
		decodersMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTag, typ)
		}
		return fn(v, s)
	}
	return v, nil
}

func encodeList[T any](list []T, s *State) ([]any, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]any, len(list))
	for i, elem := range list {
		var err error
		if out[i], err = Encode(elem, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func encodeMap(m Record, s *State) (Record, error) {
	out := make(Record, len(m))
	for _, key := range sortedKeys(m) {
		var err error
		if out[key], err = Encode(m[key], s); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return out, nil
}

// encodeValue encodes values of other types field by field.
func encodeValue(v reflect.Value, s *State) (any, error) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return Encode(v.Elem().Interface(), s)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := range out {
			var err error
			if out[i], err = Encode(v.Index(i).Interface(), s); err != nil {
				return nil, err
			}
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %v", ErrBadRecord, v.Type().Key())
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		out := make(Record, len(keys))
		for _, key := range keys {
			var err error
			if out[key.String()], err = Encode(v.MapIndex(key).Interface(), s); err != nil {
				return nil, err
			}
		}
		return out, nil
	case reflect.Struct:
		// fields are encoded in the order in which Decode visits the keys
		t := v.Type()
		fields := []reflect.StructField{}
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				fields = append(fields, t.Field(i))
			}
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
		out := make(Record, len(fields))
		for _, field := range fields {
			var err error
			if out[field.Name], err = Encode(v.FieldByIndex(field.Index).Interface(), s); err != nil {
				return nil, fmt.Errorf("%s: %w", field.Name, err)
			}
		}
		return out, nil
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %v", ErrBadRecord, v.Type())
}

func sortedKeys(m Record) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
