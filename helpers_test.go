package slicer

// cube returns the unrolled triangles of the unit cube from the origin to (1,1,1).
func cube() []float32 {
	v := [8][3]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	faces := [12][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // y=0
		{1, 2, 6}, {1, 6, 5}, // x=1
		{2, 3, 7}, {2, 7, 6}, // y=1
		{3, 0, 4}, {3, 4, 7}, // x=0
	}
	points := make([]float32, 0, 12*9)
	for _, f := range faces {
		for _, i := range f {
			points = append(points, v[i][0], v[i][1], v[i][2])
		}
	}
	return points
}

// square returns a closed counter clockwise square polygon.
func square(x0, y0, size float64) *Polygon {
	return NewPolygon(
		Point{x0, y0, 0},
		Point{x0 + size, y0, 0},
		Point{x0 + size, y0 + size, 0},
		Point{x0, y0 + size, 0},
	)
}

func line(x0, y0, x1, y1 float64) Line {
	return NewOrderedLine(Point{x0, y0, 0}, Point{x1, y1, 0})
}
