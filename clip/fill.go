package clip

import (
	"math"
	"sort"

	clipper "github.com/ctessum/go.clipper"
	"github.com/tdewolff/slicer"
)

// FillLine is a hatch segment together with the index of the row it belongs to, counted from the row nearest to the origin of the hatch.
type FillLine struct {
	slicer.Line
	Index int
}

// Fill hatches the area of polys with parallel lines at angle degrees from the X axis, spaced apart by spacing. The lines are clipped against the polygons under the even-odd rule, so holes stay empty. Segments shorter than minLen or longer than maxLen are dropped when those are positive. The result is ordered by row.
func Fill(polys []*slicer.Polygon, angle, spacing, minLen, maxLen float64) []FillLine {
	polys = closed(polys)
	if len(polys) == 0 || spacing <= 0.0 {
		return nil
	}
	z := polys[0].Z
	bounds := polys[0].Bounds()
	for _, poly := range polys[1:] {
		bounds = bounds.Union(poly.Bounds())
	}
	width, height := bounds.Max[0]-bounds.Min[0], bounds.Max[1]-bounds.Min[1]

	angle = math.Mod(angle, 180.0)
	for angle < -90.0 {
		angle += 180.0
	}
	for 90.0 < angle {
		angle -= 180.0
	}
	sin, cos := math.Sincos(angle * math.Pi / 180.0)
	if math.Abs(sin) < 1e-12 {
		sin = 0.0
	}
	if math.Abs(cos) < 1e-12 {
		cos = 0.0
	}

	// rows advance perpendicular to the hatch direction
	stepX, stepY := -sin*spacing, cos*spacing
	iterX, iterY := 0.0, 0.0
	if stepX != 0.0 {
		iterX = math.Abs(width / stepX)
	}
	if stepY != 0.0 {
		iterY = math.Abs(height / stepY)
	}
	steps := math.Hypot(iterX*stepX, iterY*stepY) / spacing

	origin := slicer.Point{X: bounds.Max[0], Y: bounds.Min[1], Z: z}
	if angle < 0.0 {
		origin.X = bounds.Min[0]
	}
	reach := math.Hypot(width, height) + spacing
	lines := []slicer.Line{}
	for i := 0; float64(i) < steps; i++ {
		f := float64(i) + 0.5
		mid := slicer.Point{X: origin.X + stepX*f, Y: origin.Y + stepY*f, Z: z}
		lines = append(lines, slicer.Line{
			P1: slicer.Point{X: mid.X - cos*reach, Y: mid.Y - sin*reach, Z: z},
			P2: slicer.Point{X: mid.X + cos*reach, Y: mid.Y + sin*reach, Z: z},
		})
	}

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(toPathsOpen(lines), clipper.PtSubject, false)
	c.AddPaths(toPaths(polys), clipper.PtClip, true)
	tree, ok := c.Execute2(clipper.CtIntersection, clipper.PftNonZero, clipper.PftEvenOdd)
	if !ok {
		return nil
	}

	type row struct {
		FillLine
		along float64
	}
	rows := []row{}
	for _, node := range tree.Childs() {
		path := node.Contour()
		if !node.IsOpen || len(path) < 2 {
			continue
		}
		seg := slicer.PolygonFromClipper(clipper.Path{path[0], path[len(path)-1]}, z)
		p1, p2 := seg.Points[0], seg.Points[1]
		length := p1.Dist2D(p2)
		if 0.0 < minLen && length < minLen || 0.0 < maxLen && maxLen < length {
			continue
		}
		d := p1.Sub(origin)
		dist := math.Abs(d.X*sin - d.Y*cos)
		rows = append(rows, row{
			FillLine: FillLine{Line: slicer.Line{P1: p1, P2: p2}, Index: int(dist / spacing)},
			along:    math.Min(d.X*cos+d.Y*sin, p2.Sub(origin).X*cos+p2.Sub(origin).Y*sin),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Index != rows[j].Index {
			return rows[i].Index < rows[j].Index
		}
		return rows[i].along < rows[j].along
	})

	fill := make([]FillLine, 0, len(rows))
	for _, r := range rows {
		fill = append(fill, r.FillLine)
	}
	return fill
}
