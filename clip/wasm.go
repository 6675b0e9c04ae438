package clip

import (
	"context"
	"fmt"
	"os"

	"github.com/tdewolff/slicer"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// WasmEngine runs a pre-compiled polygon engine in a WebAssembly sandbox. The module must export its memory, mem_get, poly_offset and poly_union, and may export mem_clr and poly_diff.
type WasmEngine struct {
	r   wazero.Runtime
	mod api.Module

	memGet, memClr       api.Function
	offset, union, diff api.Function
}

// LoadWasm compiles and instantiates the engine module at filename.
func LoadWasm(ctx context.Context, filename string) (*WasmEngine, error) {
	code, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewWasmEngine(ctx, code)
}

// NewWasmEngine compiles and instantiates an engine module.
func NewWasmEngine(ctx context.Context, code []byte) (*WasmEngine, error) {
	r := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, err
	}
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(_ context.Context, m api.Module, n, ptr uint32) {
		if b, ok := m.Memory().Read(ptr, n); ok {
			slicer.Logger().Debug("engine", "msg", string(b))
		}
	}).Export("debug_string").
		NewFunctionBuilder().WithFunc(func(points, inners uint32) {}).Export("polygon").
		NewFunctionBuilder().WithFunc(func(x, y uint32) {}).Export("point").
		Instantiate(ctx)
	if err != nil {
		r.Close(ctx)
		return nil, err
	}

	mod, err := r.InstantiateWithConfig(ctx, code, wazero.NewModuleConfig().WithStartFunctions("_initialize"))
	if err != nil {
		r.Close(ctx)
		return nil, err
	}
	e := &WasmEngine{
		r:      r,
		mod:    mod,
		memGet: mod.ExportedFunction("mem_get"),
		memClr: mod.ExportedFunction("mem_clr"),
		offset: mod.ExportedFunction("poly_offset"),
		union:  mod.ExportedFunction("poly_union"),
		diff:   mod.ExportedFunction("poly_diff"),
	}
	if mod.Memory() == nil || e.memGet == nil || e.offset == nil || e.union == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: module lacks memory, mem_get, poly_offset or poly_union", ErrEngineUnavailable)
	}
	return e, nil
}

func (e *WasmEngine) Memory() Memory {
	return e.mod.Memory()
}

func (e *WasmEngine) call(ctx context.Context, fn api.Function, name string, params ...uint64) (uint32, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: no export %s", ErrEngineUnavailable, name)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	} else if len(res) == 0 {
		return 0, nil
	}
	return uint32(res[0]), nil
}

// Alloc reserves size bytes in module memory.
func (e *WasmEngine) Alloc(ctx context.Context, size uint32) (uint32, error) {
	ptr, err := e.call(ctx, e.memGet, "mem_get", uint64(size))
	if err == nil && ptr == 0 {
		err = fmt.Errorf("mem_get: out of memory allocating %d bytes", size)
	}
	return ptr, err
}

// Free releases memory reserved by Alloc, when the module supports it.
func (e *WasmEngine) Free(ctx context.Context, ptr uint32) error {
	if e.memClr == nil {
		return nil
	}
	_, err := e.call(ctx, e.memClr, "mem_clr", uint64(ptr))
	return err
}

func (e *WasmEngine) Offset(ctx context.Context, ptr, count uint32, dist float32) (uint32, error) {
	return e.call(ctx, e.offset, "poly_offset", uint64(ptr), uint64(count), api.EncodeF32(dist))
}

func (e *WasmEngine) Union(ctx context.Context, ptr, count uint32) (uint32, error) {
	return e.call(ctx, e.union, "poly_union", uint64(ptr), uint64(count))
}

func (e *WasmEngine) Diff(ctx context.Context, ptrA, countA, ptrB, countB uint32, ab, ba bool, clean float32) (uint32, error) {
	return e.call(ctx, e.diff, "poly_diff", uint64(ptrA), uint64(countA), uint64(ptrB), uint64(countB), boolParam(ab), boolParam(ba), api.EncodeF32(clean))
}

// HasDiff returns true if the module exports poly_diff.
func (e *WasmEngine) HasDiff() bool {
	return e.diff != nil
}

// Close releases the runtime and all its modules.
func (e *WasmEngine) Close(ctx context.Context) error {
	return e.r.Close(ctx)
}

func boolParam(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
