package slicer

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Point is a coordinate in 3D space. Slices lie in the XY plane at height Z.
type Point struct {
	X, Y, Z float64
}

// Key identifies a point by its coordinates rounded to KeyPrecision decimals.
type Key struct {
	X, Y, Z int64
}

// Less orders keys lexicographically by X, Y and then Z.
func (k Key) Less(q Key) bool {
	if k.X != q.X {
		return k.X < q.X
	} else if k.Y != q.Y {
		return k.Y < q.Y
	}
	return k.Z < q.Z
}

// Key returns the hashable key of P.
func (p Point) Key() Key {
	m := math.Pow10(KeyPrecision)
	return Key{
		int64(math.Round(p.X * m)),
		int64(math.Round(p.Y * m)),
		int64(math.Round(p.Z * m)),
	}
}

// Equals returns true if P and Q have the same key.
func (p Point) Equals(q Point) bool {
	return p.Key() == q.Key()
}

// Round returns P with its coordinates rounded to the given number of decimals.
func (p Point) Round(decimals int) Point {
	return Point{round(p.X, decimals), round(p.Y, decimals), round(p.Z, decimals)}
}

// Add adds Q to P.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub subtracts Q from P.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Mul multiplies x, y and z by f.
func (p Point) Mul(f float64) Point {
	return Point{f * p.X, f * p.Y, f * p.Z}
}

// PerpDot returns the perp dot product between OP and OQ in the XY plane.
func (p Point) PerpDot(q Point) float64 {
	return p.X*q.Y - p.Y*q.X
}

// DistSq2D returns the squared distance between P and Q in the XY plane.
func (p Point) DistSq2D(q Point) float64 {
	dx, dy := q.X-p.X, q.Y-p.Y
	return dx*dx + dy*dy
}

// DistSq3D returns the squared distance between P and Q.
func (p Point) DistSq3D(q Point) float64 {
	dx, dy, dz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
	return dx*dx + dy*dy + dz*dz
}

// Dist2D returns the distance between P and Q in the XY plane.
func (p Point) Dist2D(q Point) float64 {
	return math.Sqrt(p.DistSq2D(q))
}

// Midpoint returns the point halfway between P and Q.
func (p Point) Midpoint(q Point) Point {
	return Point{(p.X + q.X) / 2.0, (p.Y + q.Y) / 2.0, (p.Z + q.Z) / 2.0}
}

// IntersectZ returns the point on PQ at height z. P and Q must lie at different heights.
func (p Point) IntersectZ(q Point, z float64) Point {
	d := q.Sub(p)
	t := (z - p.Z) / d.Z
	return Point{p.X + d.X*t, p.Y + d.Y*t, z}
}

// Orb returns P projected onto the XY plane.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("[%g; %g; %g]", p.X, p.Y, p.Z)
}

// area2 returns twice the signed area of the triangle ABC in the XY plane, positive for counter clockwise.
func area2(a, b, c Point) float64 {
	return b.Sub(a).PerpDot(c.Sub(a))
}
