package work

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/tdewolff/slicer"
	"github.com/tdewolff/slicer/clip"
	"github.com/tdewolff/slicer/codec"
)

// ErrNoSession is returned when a bucket is sent to a worker outside of a slicing session.
var ErrNoSession = errors.New("slice outside of session")

// Handler runs a command on a worker. It may send partial replies, the returned record is the data of the final reply.
type Handler func(ctx context.Context, w *Worker, data codec.Record, send func(codec.Record)) (codec.Record, error)

// Worker is the state a handler runs with. It is only accessed from the worker's goroutine.
type Worker struct {
	Name    string
	Bridge  *clip.Bridge
	MinArea float64 // minimum area of union results when the job does not set one

	session *session
}

// session is the state of a worker between slice_init and slice_cleanup.
type session struct {
	opt     slicer.ZOptions
	buckets int
	slices  int
}

type worker struct {
	Worker
	p   *Pool
	in  chan Request
	job *job // guarded by the pool lock
}

func newWorker(p *Pool, i int, bridge *clip.Bridge) *worker {
	return &worker{
		Worker: Worker{Name: fmt.Sprintf("#%d", i), Bridge: bridge},
		p:      p,
		in:     make(chan Request, 1),
	}
}

func (w *worker) run(ctx context.Context) {
	defer func() {
		if err := w.Bridge.Close(context.WithoutCancel(ctx)); err != nil {
			slicer.Logger().Warn("close engine", "worker", w.Name, "err", err)
		}
	}()
	for req := range w.in {
		w.handle(ctx, req)
	}
}

func (w *worker) handle(ctx context.Context, req Request) {
	start := time.Now()
	data, err := w.exec(ctx, req)
	w.p.deliver(w, Reply{Seq: req.Seq, Task: req.Task, Done: true, Data: data, Err: err})
	slicer.Logger().Debug("job done", "worker", w.Name, "seq", req.Seq, "task", req.Task, "queued", start.Sub(req.Time), "took", time.Since(start), "err", err)
}

func (w *worker) exec(ctx context.Context, req Request) (data codec.Record, err error) {
	h, ok := w.p.handlers[req.Task]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Task)
	}
	defer func() {
		if r := recover(); r != nil {
			slicer.Logger().Error("job panicked", "worker", w.Name, "task", req.Task, "panic", r, "stack", string(debug.Stack()))
			data, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	send := func(rec codec.Record) {
		w.p.deliver(w, Reply{Seq: req.Seq, Task: req.Task, Data: rec})
	}
	return h(ctx, &w.Worker, req.Data, send)
}

////////////////////////////////////////////////////////////////

var commands = map[string]Handler{
	"label":         label,
	"config":        config,
	"wasm":          wasm,
	"union":         union,
	"offset":        offset,
	"fill":          fill,
	"topShells":     topShells,
	"clip":          clipLines,
	"sliceZ":        sliceZ,
	"slice_init":    sliceInit,
	"slice":         sliceBucket,
	"slice_cleanup": sliceCleanup,
}

func label(_ context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	if name := str(data, "name"); name != "" {
		w.Name = name
	}
	return nil, nil
}

func config(_ context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	if _, ok := data["min_area"]; !ok {
		slicer.Logger().Warn("invalid config", "worker", w.Name, "data", data)
		return nil, nil
	}
	w.MinArea = num(data, "min_area")
	return nil, nil
}

// wasm switches the worker to a compiled polygon engine when code is given, and enables or disables the engine.
func wasm(ctx context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	if code, ok := data["code"].([]byte); ok {
		engine, err := clip.NewWasmEngine(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := w.Bridge.Close(ctx); err != nil {
			slicer.Logger().Warn("close engine", "worker", w.Name, "err", err)
		}
		w.Bridge = clip.NewBridge(engine)
	}
	if flag(data, "enable") {
		w.Bridge.Enable()
	} else {
		w.Bridge.Disable()
	}
	return nil, nil
}

func union(ctx context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	polys, err := codec.DecodePolys(data["polys"], codec.NewState())
	if err != nil {
		return nil, err
	}
	minArea := num(data, "min_area")
	if minArea == 0.0 {
		minArea = w.MinArea
	}
	out, err := w.Bridge.Union(ctx, polys, minArea, num(data, "z"))
	if err != nil {
		return nil, err
	}
	return encodePolys("union", out)
}

func offset(ctx context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	polys, err := codec.DecodePolys(data["polys"], codec.NewState())
	if err != nil {
		return nil, err
	}
	out, err := w.Bridge.Offset(ctx, polys, num(data, "dist"), num(data, "z"))
	if err != nil {
		return nil, err
	}
	return encodePolys("offset", out)
}

func fill(_ context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	polys, err := codec.DecodePolys(data["polys"], codec.NewState())
	if err != nil {
		return nil, err
	}
	lines := clip.Fill(polys, num(data, "angle"), num(data, "spacing"), num(data, "min_len"), num(data, "max_len"))
	return codec.Record{"fill": packFill(lines)}, nil
}

func topShells(ctx context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	top, err := decodeTop(data["top"])
	if err != nil {
		return nil, err
	}
	if err := w.Bridge.TopShells(ctx, num(data, "z"), top, integer(data, "count"), num(data, "offset1"), num(data, "offsetN"), num(data, "fill_offset")); err != nil {
		return nil, err
	}
	enc, err := codec.Encode(top, &codec.State{Full: true})
	if err != nil {
		return nil, err
	}
	return codec.Record{"top": enc}, nil
}

// clipLines clips open polylines against rings, both sent as point arrays.
func clipLines(_ context.Context, _ *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	list := func(key string) ([][]slicer.Point, error) {
		items, _ := data[key].([]any)
		out := make([][]slicer.Point, 0, len(items))
		for _, item := range items {
			points, err := codec.DecodePointArray(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out = append(out, points)
		}
		return out, nil
	}
	rings, err := list("polys")
	if err != nil {
		return nil, err
	}
	lines, err := list("lines")
	if err != nil {
		return nil, err
	}
	z := num(data, "z")
	polys := make([]*slicer.Polygon, 0, len(rings))
	for _, ring := range rings {
		polys = append(polys, &slicer.Polygon{Points: ring, Z: z})
	}
	return encodePolys("clips", clip.Clip(polys, lines, z))
}

func sliceZ(_ context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	points, err := float32s(data["points"])
	if err != nil {
		return nil, err
	}
	slice := slicer.SliceZ(num(data, "z"), points, decodeZOptions(data["options"]))
	enc, err := codec.Encode(slice, nil)
	if err != nil {
		return nil, err
	}
	return codec.Record{"slice": enc}, nil
}

func sliceInit(_ context.Context, w *Worker, data codec.Record, _ func(codec.Record)) (codec.Record, error) {
	w.session = &session{opt: decodeZOptions(data["options"])}
	return nil, nil
}

// sliceBucket replies with every slice of the bucket separately.
func sliceBucket(ctx context.Context, w *Worker, data codec.Record, send func(codec.Record)) (codec.Record, error) {
	if w.session == nil {
		return nil, ErrNoSession
	}
	zs, _ := data["zs"].([]float64)
	points, err := float32s(data["points"])
	if err != nil {
		return nil, err
	}
	slices, err := slicer.SliceBucket(ctx, &slicer.Bucket{Zs: zs, Points: points}, w.session.opt)
	if err != nil {
		return nil, err
	}
	for _, slice := range slices {
		enc, err := codec.Encode(slice, nil)
		if err != nil {
			return nil, err
		}
		send(codec.Record{"slice": enc})
	}
	w.session.buckets++
	w.session.slices += len(slices)
	return codec.Record{"count": len(slices)}, nil
}

func sliceCleanup(_ context.Context, w *Worker, _ codec.Record, _ func(codec.Record)) (codec.Record, error) {
	if w.session != nil {
		slicer.Logger().Debug("slice session", "worker", w.Name, "buckets", w.session.buckets, "slices", w.session.slices)
	}
	w.session = nil
	return nil, nil
}
