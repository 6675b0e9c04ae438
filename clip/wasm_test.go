package clip

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/tdewolff/slicer"
	"github.com/tdewolff/test"
)

// echoModule is a minimal engine with one page of memory. mem_get always returns 1024. poly_union logs "union" through env.debug_string and returns its input, after terminating it with a zero count. poly_offset does the same for positive distances and returns an empty result for negative ones. poly_diff traps unless it is asked for A-B only with a positive clean distance, and returns an empty result.
//
//	(module
//	  (import "env" "debug_string" (func $debug (param i32 i32)))
//	  (memory (export "memory") 1)
//	  (data (i32.const 16) "union")
//	  (func (export "mem_get") (param i32) (result i32) (i32.const 1024))
//	  (func $end (param $p i32) (param $n i32) (result i32) (local $k i32)
//	    (block (loop
//	      (br_if 1 (i32.eqz (local.get $n)))
//	      (local.set $k (i32.load16_u (local.get $p)))
//	      (local.set $p (i32.add (i32.add (local.get $p) (i32.const 2)) (i32.mul (local.get $k) (i32.const 8))))
//	      (local.set $n (i32.sub (local.get $n) (i32.const 1)))
//	      (br 0)))
//	    (i32.store16 (local.get $p) (i32.const 0))
//	    (local.get $p))
//	  (func (export "poly_union") (param i32 i32) (result i32)
//	    (call $debug (i32.const 5) (i32.const 16))
//	    (drop (call $end (local.get 0) (local.get 1)))
//	    (local.get 0))
//	  (func (export "poly_offset") (param i32 i32 f32) (result i32)
//	    (select (call $end (local.get 0) (local.get 1)) (local.get 0) (f32.lt (local.get 2) (f32.const 0))))
//	  (func (export "poly_diff") (param i32 i32 i32 i32 i32 i32 f32) (result i32)
//	    (if (i32.ne (local.get 4) (i32.const 1)) (then unreachable))
//	    (if (local.get 5) (then unreachable))
//	    (if (f32.le (local.get 6) (f32.const 0)) (then unreachable))
//	    (call $end (local.get 2) (local.get 3))))
var echoModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x23, 0x05, 0x60, 0x02, 0x7f, 0x7f, 0x00,
	0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x03, 0x7f, 0x7f, 0x7d,
	0x01, 0x7f, 0x60, 0x07, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7d, 0x01, 0x7f, 0x02, 0x14, 0x01,
	0x03, 0x65, 0x6e, 0x76, 0x0c, 0x64, 0x65, 0x62, 0x75, 0x67, 0x5f, 0x73, 0x74, 0x72, 0x69, 0x6e,
	0x67, 0x00, 0x00, 0x03, 0x06, 0x05, 0x01, 0x02, 0x02, 0x03, 0x04, 0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x3b, 0x05, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, 0x07, 0x6d, 0x65, 0x6d,
	0x5f, 0x67, 0x65, 0x74, 0x00, 0x01, 0x0a, 0x70, 0x6f, 0x6c, 0x79, 0x5f, 0x75, 0x6e, 0x69, 0x6f,
	0x6e, 0x00, 0x03, 0x0b, 0x70, 0x6f, 0x6c, 0x79, 0x5f, 0x6f, 0x66, 0x66, 0x73, 0x65, 0x74, 0x00,
	0x04, 0x09, 0x70, 0x6f, 0x6c, 0x79, 0x5f, 0x64, 0x69, 0x66, 0x66, 0x00, 0x05, 0x0a, 0x87, 0x01,
	0x05, 0x05, 0x00, 0x41, 0x80, 0x08, 0x0b, 0x35, 0x01, 0x01, 0x7f, 0x02, 0x40, 0x03, 0x40, 0x20,
	0x01, 0x45, 0x0d, 0x01, 0x20, 0x00, 0x2f, 0x01, 0x00, 0x21, 0x02, 0x20, 0x00, 0x41, 0x02, 0x6a,
	0x20, 0x02, 0x41, 0x08, 0x6c, 0x6a, 0x21, 0x00, 0x20, 0x01, 0x41, 0x01, 0x6b, 0x21, 0x01, 0x0c,
	0x00, 0x0b, 0x0b, 0x20, 0x00, 0x41, 0x00, 0x3b, 0x01, 0x00, 0x20, 0x00, 0x0b, 0x11, 0x00, 0x41,
	0x05, 0x41, 0x10, 0x10, 0x00, 0x20, 0x00, 0x20, 0x01, 0x10, 0x02, 0x1a, 0x20, 0x00, 0x0b, 0x13,
	0x00, 0x20, 0x00, 0x20, 0x01, 0x10, 0x02, 0x20, 0x00, 0x20, 0x02, 0x43, 0x00, 0x00, 0x00, 0x00,
	0x5d, 0x1b, 0x0b, 0x23, 0x00, 0x20, 0x04, 0x41, 0x01, 0x47, 0x04, 0x40, 0x00, 0x0b, 0x20, 0x05,
	0x04, 0x40, 0x00, 0x0b, 0x20, 0x06, 0x43, 0x00, 0x00, 0x00, 0x00, 0x5f, 0x04, 0x40, 0x00, 0x0b,
	0x20, 0x02, 0x20, 0x03, 0x10, 0x02, 0x0b, 0x0b, 0x0b, 0x01, 0x00, 0x41, 0x10, 0x0b, 0x05, 0x75,
	0x6e, 0x69, 0x6f, 0x6e,
}

// echoModuleNoDiff is echoModule without poly_diff.
var echoModuleNoDiff = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x23, 0x05, 0x60, 0x02, 0x7f, 0x7f, 0x00,
	0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x03, 0x7f, 0x7f, 0x7d,
	0x01, 0x7f, 0x60, 0x07, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7d, 0x01, 0x7f, 0x02, 0x14, 0x01,
	0x03, 0x65, 0x6e, 0x76, 0x0c, 0x64, 0x65, 0x62, 0x75, 0x67, 0x5f, 0x73, 0x74, 0x72, 0x69, 0x6e,
	0x67, 0x00, 0x00, 0x03, 0x05, 0x04, 0x01, 0x02, 0x02, 0x03, 0x05, 0x03, 0x01, 0x00, 0x01, 0x07,
	0x2f, 0x04, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, 0x07, 0x6d, 0x65, 0x6d, 0x5f,
	0x67, 0x65, 0x74, 0x00, 0x01, 0x0a, 0x70, 0x6f, 0x6c, 0x79, 0x5f, 0x75, 0x6e, 0x69, 0x6f, 0x6e,
	0x00, 0x03, 0x0b, 0x70, 0x6f, 0x6c, 0x79, 0x5f, 0x6f, 0x66, 0x66, 0x73, 0x65, 0x74, 0x00, 0x04,
	0x0a, 0x63, 0x04, 0x05, 0x00, 0x41, 0x80, 0x08, 0x0b, 0x35, 0x01, 0x01, 0x7f, 0x02, 0x40, 0x03,
	0x40, 0x20, 0x01, 0x45, 0x0d, 0x01, 0x20, 0x00, 0x2f, 0x01, 0x00, 0x21, 0x02, 0x20, 0x00, 0x41,
	0x02, 0x6a, 0x20, 0x02, 0x41, 0x08, 0x6c, 0x6a, 0x21, 0x00, 0x20, 0x01, 0x41, 0x01, 0x6b, 0x21,
	0x01, 0x0c, 0x00, 0x0b, 0x0b, 0x20, 0x00, 0x41, 0x00, 0x3b, 0x01, 0x00, 0x20, 0x00, 0x0b, 0x11,
	0x00, 0x41, 0x05, 0x41, 0x10, 0x10, 0x00, 0x20, 0x00, 0x20, 0x01, 0x10, 0x02, 0x1a, 0x20, 0x00,
	0x0b, 0x13, 0x00, 0x20, 0x00, 0x20, 0x01, 0x10, 0x02, 0x20, 0x00, 0x20, 0x02, 0x43, 0x00, 0x00,
	0x00, 0x00, 0x5d, 0x1b, 0x0b, 0x0b, 0x0b, 0x01, 0x00, 0x41, 0x10, 0x0b, 0x05, 0x75, 0x6e, 0x69,
	0x6f, 0x6e,
}

func TestWasmEngine(t *testing.T) {
	ctx := context.Background()
	var log bytes.Buffer
	slicer.SetLogger(slog.New(slog.NewTextHandler(&log, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slicer.SetLogger(nil)

	engine, err := NewWasmEngine(ctx, echoModule)
	test.Error(t, err)
	test.That(t, engine.HasDiff())
	b := NewBridge(engine)
	defer b.Close(ctx)

	holed := square(0, 0, 10)
	holed.AddInner(square(2, 2, 2))
	out, err := b.Union(ctx, []*slicer.Polygon{holed}, 0.0, 1.5)
	test.Error(t, err)
	test.T(t, len(out), 1)
	test.Float(t, out[0].Area(), 100.0)
	test.Float(t, out[0].Z, 1.5)
	test.T(t, len(out[0].Inner), 1)
	test.Float(t, out[0].Inner[0].Area(), 4.0)
	test.That(t, strings.Contains(log.String(), "msg=union"), log.String())

	out, err = b.Offset(ctx, []*slicer.Polygon{square(0, 0, 10)}, 1.0, 0.0)
	test.Error(t, err)
	test.T(t, len(out), 1)
	test.Float(t, out[0].Area(), 100.0)

	out, err = b.Offset(ctx, []*slicer.Polygon{square(0, 0, 10)}, -1.0, 0.0)
	test.Error(t, err)
	test.T(t, len(out), 0)

	ab, ba, err := b.Diff(ctx, []*slicer.Polygon{square(0, 0, 10)}, []*slicer.Polygon{square(0, 0, 5)}, 0.0, true, false)
	test.Error(t, err)
	test.T(t, len(ab), 0)
	test.T(t, len(ba), 0)
	test.T(t, b.Counts(), Counts{Union: 1, Offset: 2, Diff: 1})

	// the module only accepts A-B
	_, _, err = b.Diff(ctx, []*slicer.Polygon{square(0, 0, 10)}, []*slicer.Polygon{square(0, 0, 5)}, 0.0, true, true)
	test.That(t, err != nil)
}

func TestWasmEngineNoDiff(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWasmEngine(ctx, echoModuleNoDiff)
	test.Error(t, err)
	test.That(t, !engine.HasDiff())
	b := NewBridge(engine)
	defer b.Close(ctx)

	ab, ba, err := b.Diff(ctx, []*slicer.Polygon{square(0, 0, 10)}, []*slicer.Polygon{square(0, 0, 5)}, 0.0, true, true)
	test.Error(t, err)
	test.T(t, len(ab), 1)
	test.Float(t, ab[0].Area(), 75.0)
	test.T(t, len(ba), 0)
	test.T(t, b.Counts(), Counts{})

	_, err = b.Union(ctx, []*slicer.Polygon{square(0, 0, 10)}, 0.0, 0.0)
	test.Error(t, err)
	test.T(t, b.Counts(), Counts{Union: 1})
}

func TestWasmEngineInvalid(t *testing.T) {
	_, err := NewWasmEngine(context.Background(), []byte("not a module"))
	test.That(t, err != nil)
}
