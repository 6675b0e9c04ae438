package clip

import (
	clipper "github.com/ctessum/go.clipper"
	"github.com/tdewolff/slicer"
)

// Clip intersects the open polylines in lines with the area of rings at height z. The rings are boundaries without holes, such as the result of slicer.Flatten, and are combined under the even-odd rule. Every piece of a polyline that lies inside is returned as an open polygon.
func Clip(rings []*slicer.Polygon, lines [][]slicer.Point, z float64) []*slicer.Polygon {
	if len(rings) == 0 || len(lines) == 0 {
		return nil
	}
	subject := make(clipper.Paths, 0, len(lines))
	for _, line := range lines {
		if 1 < len(line) {
			subject = append(subject, slicer.NewPolygon(line...).ToClipper())
		}
	}
	area := make(clipper.Paths, 0, len(rings))
	for _, ring := range rings {
		if !ring.Open && 2 < len(ring.Points) {
			area = append(area, ring.ToClipper())
		}
	}

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(subject, clipper.PtSubject, false)
	c.AddPaths(area, clipper.PtClip, true)
	tree, ok := c.Execute2(clipper.CtIntersection, clipper.PftNonZero, clipper.PftEvenOdd)
	if !ok {
		return nil
	}

	var clips []*slicer.Polygon
	for _, node := range tree.Childs() {
		if path := node.Contour(); node.IsOpen && 1 < len(path) {
			clips = append(clips, slicer.PolygonFromClipper(path, z).SetOpen())
		}
	}
	return clips
}
