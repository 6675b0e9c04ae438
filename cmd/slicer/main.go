package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/tdewolff/argp"
	"github.com/tdewolff/slicer"
	"github.com/tdewolff/slicer/clip"
	"github.com/tdewolff/slicer/work"
)

type Slice struct {
	Verbose    bool    `short:"v" desc:"Log debug output to stderr"`
	Step       float64 `short:"s" default:"0.2" desc:"Layer height"`
	Off        float64 `default:"0" desc:"Offset from bottom and top"`
	Flats      bool    `desc:"Add layers around flat surfaces"`
	Ascending  bool    `short:"a" desc:"Sort slices from bottom to top"`
	Buckets    int     `default:"0" desc:"Number of buckets, defaults to the number of CPUs"`
	Workers    int     `short:"w" default:"0" desc:"Number of workers, slice locally when zero"`
	Wasm       string  `desc:"Polygon engine module"`
	Shells     int     `default:"0" desc:"Number of shells per top"`
	ShellWidth float64 `default:"0.4" desc:"Shell width"`
	FillAngle  float64 `default:"45" desc:"Fill angle in degrees"`
	Fill       float64 `default:"0" desc:"Fill spacing, no fill when zero"`
	Decimate   bool    `desc:"Decimate the mesh before slicing"`
	Input      string  `index:"0" desc:"Input file with float32 LE triangle vertices"`
}

type Interval struct {
	Verbose bool    `short:"v" desc:"Log debug output to stderr"`
	Step    float64 `short:"s" default:"0.2" desc:"Layer height"`
	Off     float64 `default:"0" desc:"Offset from bottom and top"`
	Fit     bool    `desc:"Adjust the layer height to end on the top"`
	Down    bool    `desc:"List heights from top to bottom"`
	Flats   bool    `desc:"Add layers around flat surfaces"`
	Input   string  `index:"0" desc:"Input file with float32 LE triangle vertices"`
}

type Features struct {
	Verbose bool   `short:"v" desc:"Log debug output to stderr"`
	Input   string `index:"0" desc:"Input file with float32 LE triangle vertices"`
}

func main() {
	root := argp.NewCmd(&Slice{}, "Mesh slicer by Taco de Wolff")
	root.AddCmd(&Interval{}, "interval", "List slicing heights")
	root.AddCmd(&Features{}, "features", "Show mesh features")
	root.Parse()
	root.PrintHelp()
}

func setLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slicer.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// readPoints reads a raw buffer of little endian float32 vertices, 9 per triangle.
func readPoints(filename string) ([]float32, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	} else if len(b)%36 != 0 {
		return nil, fmt.Errorf("%s: %w: got %d bytes", filename, slicer.ErrBadPoints, len(b))
	}
	points := make([]float32, len(b)/4)
	for i := range points {
		points[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return points, nil
}

func (cmd *Slice) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}
	setLogger(cmd.Verbose)
	ctx := context.Background()

	points, err := readPoints(cmd.Input)
	if err != nil {
		return err
	}
	if cmd.Decimate {
		points = slicer.Decimate(points, slicer.DecimateOptions{})
	}
	s, err := slicer.New(points, slicer.FeatureOptions{})
	if err != nil {
		return err
	}
	zs := s.Interval(cmd.Step, slicer.IntervalOptions{Off: cmd.Off, Flats: cmd.Flats})

	var code []byte
	if cmd.Wasm != "" {
		if code, err = os.ReadFile(cmd.Wasm); err != nil {
			return err
		}
	}

	var ops shellFiller
	opt := slicer.SliceOptions{
		Ascending: cmd.Ascending,
		Buckets:   cmd.Buckets,
	}
	if 0 < cmd.Workers {
		pool, err := work.New(ctx, work.Options{Workers: cmd.Workers, Wasm: code})
		if err != nil {
			return err
		}
		defer pool.Close()
		opt.Slicer = pool
		ops = pool
	} else {
		var engine clip.Engine = clip.NewHostEngine()
		if code != nil {
			if engine, err = clip.NewWasmEngine(ctx, code); err != nil {
				return err
			}
		}
		bridge := clip.NewBridge(engine)
		defer bridge.Close(ctx)
		ops = localOps{bridge}
	}

	start := time.Now()
	slices, err := s.Slice(ctx, zs, opt)
	if err != nil {
		return err
	}
	slicer.Logger().Info("sliced", "heights", len(zs), "slices", len(slices), "took", time.Since(start))

	for _, slice := range slices {
		var shells, fill int
		for _, top := range slice.Tops {
			if 0 < cmd.Shells {
				if err := ops.TopShells(ctx, slice.Z, top, cmd.Shells, cmd.ShellWidth/2.0, cmd.ShellWidth, cmd.ShellWidth/2.0); err != nil {
					return err
				}
				shells += len(top.Shells)
			}
			if 0.0 < cmd.Fill {
				region := top.FillOff
				if region == nil {
					region = []*slicer.Polygon{top.Poly}
				}
				lines, err := ops.Fill(ctx, region, cmd.FillAngle, cmd.Fill, 0.0, 0.0)
				if err != nil {
					return err
				}
				fill += len(lines)
			}
		}
		fmt.Printf("%3d  z=%-10.4f lines=%-5d polys=%-4d tops=%-4d", slice.Index, slice.Z, len(slice.Lines), len(slice.Polys), len(slice.Tops))
		if 0 < cmd.Shells {
			fmt.Printf(" shells=%-4d", shells)
		}
		if 0.0 < cmd.Fill {
			fmt.Printf(" fill=%d", fill)
		}
		fmt.Println()
	}
	return nil
}

type shellFiller interface {
	TopShells(context.Context, float64, *slicer.Top, int, float64, float64, float64) error
	Fill(context.Context, []*slicer.Polygon, float64, float64, float64, float64) ([]clip.FillLine, error)
}

type localOps struct {
	*clip.Bridge
}

func (localOps) Fill(_ context.Context, polys []*slicer.Polygon, angle, spacing, minLen, maxLen float64) ([]clip.FillLine, error) {
	return clip.Fill(polys, angle, spacing, minLen, maxLen), nil
}

func (cmd *Interval) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}
	setLogger(cmd.Verbose)

	points, err := readPoints(cmd.Input)
	if err != nil {
		return err
	}
	s, err := slicer.New(points, slicer.FeatureOptions{})
	if err != nil {
		return err
	}
	for _, z := range s.Interval(cmd.Step, slicer.IntervalOptions{Off: cmd.Off, Fit: cmd.Fit, Down: cmd.Down, Flats: cmd.Flats}) {
		fmt.Println(z)
	}
	return nil
}

func (cmd *Features) Run() error {
	if cmd.Input == "" {
		return argp.ShowUsage
	}
	setLogger(cmd.Verbose)

	points, err := readPoints(cmd.Input)
	if err != nil {
		return err
	}
	s, err := slicer.New(points, slicer.FeatureOptions{ZList: true, ZLine: true})
	if err != nil {
		return err
	}
	b := s.Bounds()
	fmt.Println("Triangles:", len(points)/9)
	fmt.Printf("Bounds: (%g, %g, %g) - (%g, %g, %g)\n", b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	fmt.Println("Heights:", len(s.Heights()))
	for _, z := range s.Flats() {
		fmt.Printf("Flat: z=%g area=%g\n", z, s.FlatArea(z))
	}
	for _, z := range s.Lines() {
		fmt.Printf("Edges: z=%g count=%d\n", z, s.LineCount(z))
	}
	return nil
}
