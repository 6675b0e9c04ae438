package slicer

import (
	"math"
	"strconv"
)

// Epsilon is the tolerance used for floating point comparisons that are not tied to a slicing precision.
const Epsilon = 1e-10

// PrecisionSliceZ is the distance from a slicing plane within which a vertex is considered to lie on it.
var PrecisionSliceZ = 0.0001

// FlatOffset is the distance a slicing height is moved when it coincides with a flat surface of the mesh.
var FlatOffset = 0.01

// KeyPrecision is the number of decimals that point coordinates are rounded to when computing a point key.
var KeyPrecision = 6

// ZPrecision is the number of decimals that slicing heights are rounded to before being used as keys or compared.
var ZPrecision = 5

// BucketCount is the number of Z-ranged buckets that triangles are partitioned into when slicing.
var BucketCount = 25

// BucketEpsilon is the tolerance used when testing whether a triangle falls within a bucket's Z range.
var BucketEpsilon = 0.001

// BridgeGap is the squared distance within which the ends of open paths are joined when connecting slice segments.
var BridgeGap = 0.0001

// CloseGap is the squared distance within which the head and tail of a bridged path close it into a polygon.
var CloseGap = 0.01

// NestPrecision is the squared distance tolerance used when testing whether one polygon is inside another.
var NestPrecision = 0.01 * 0.01

// CleanDistance is the distance in clipper units below which polygon vertices are merged by Clean.
var CleanDistance = 250.0

// ClipperScale is the factor by which coordinates are multiplied when converted to integer clipper coordinates.
var ClipperScale = 100000.0

// MinArea is the area below which polygons produced by boolean operations are dropped.
var MinArea = 0.1

// equal returns true if a and b are equal with tolerance Epsilon.
func equal(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// round rounds f to the given number of decimals, halves away from zero.
func round(f float64, decimals int) float64 {
	m := math.Pow10(decimals)
	return math.Round(f*m) / m
}

// RoundZ rounds a slicing height to ZPrecision decimals.
func RoundZ(z float64) float64 {
	return round(z, ZPrecision)
}

// ZKey is a slicing height rounded to ZPrecision decimals and stored as an integer, which makes it usable as map key.
type ZKey int64

// KeyZ returns the key of height z.
func KeyZ(z float64) ZKey {
	return ZKey(math.Round(z * math.Pow10(ZPrecision)))
}

// Z returns the height of the key.
func (k ZKey) Z() float64 {
	return float64(k) / math.Pow10(ZPrecision)
}

func (k ZKey) String() string {
	return strconv.FormatFloat(k.Z(), 'f', ZPrecision, 64)
}
