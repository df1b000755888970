// Package landmark defines the 21-point hand skeleton produced by the
// upstream detector and the detector boundary itself.
package landmark

import "math"

// Hand landmark indices following the MediaPipe convention.
const (
	Wrist        = 0
	ThumbTip     = 4
	IndexMCP     = 5
	IndexTip     = 8
	MiddleMCP    = 9
	MiddleTip    = 12
	RingTip      = 16
	PinkyMCP     = 17
	PinkyTip     = 20
	NumLandmarks = 21
)

// FingertipIndices are the five fingertip landmarks, in fixed order.
var FingertipIndices = [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Point is a 3D landmark in image-relative [0,1] space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns p divided by s. s must be non-zero.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X / s, Y: p.Y / s, Z: p.Z / s}
}

// Norm returns the Euclidean magnitude of p.
func (p Point) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	return p.Sub(q).Norm()
}
