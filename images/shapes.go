// Package images - Geometry and image utilities for detection boxes.
package images

// IoUEpsilon keeps IoU denominators away from zero for degenerate boxes.
const IoUEpsilon = 1e-9

// Rect is an axis-aligned box in top-left form.
//
// Coordinates are unitless: the post-processing pipeline stores them normalized to
// [0, 1] relative to the original image, the overlay renderer multiplies them back out.
type Rect struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// X2 returns the right edge of the rectangle.
func (r Rect) X2() float64 { return r.X + r.W }

// Y2 returns the bottom edge of the rectangle.
func (r Rect) Y2() float64 { return r.Y + r.H }

// Area returns the area of the rectangle, or 0 for inverted rectangles.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Intersection returns the overlapping area of r and o.
func (r Rect) Intersection(o Rect) float64 {
	ix1 := max(r.X, o.X)
	iy1 := max(r.Y, o.Y)
	ix2 := min(r.X2(), o.X2())
	iy2 := min(r.Y2(), o.Y2())

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	return interW * interH
}

// CalculateIoU computes the Intersection over Union of two axis-aligned rectangles.
//
// IoU is the ratio between the area both rectangles cover and the area either of them
// covers:
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// A value of 1.0 means identical rectangles, 0.0 means no overlap. Touching edges count as
// no overlap. IoUEpsilon is added to the denominator so two zero-area rectangles yield 0
// rather than NaN.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float64: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	a := Rect{X: 0, Y: 0, W: 10, H: 10}
//	b := Rect{X: 5, Y: 5, W: 10, H: 10}
//	iou := CalculateIoU(a, b) // 25 / (100 + 100 - 25) ≈ 0.142857
//
// ```
func CalculateIoU(r, o Rect) float64 {
	inter := r.Intersection(o)
	if inter == 0 {
		return 0
	}
	return inter / (r.Area() + o.Area() - inter + IoUEpsilon)
}
