package images

import "math"

// Point is a 2D point in the Y-down image coordinate system.
type Point struct {
	X, Y float64
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Cross returns the z component of the cross product p × o.
func (p Point) Cross(o Point) float64 {
	return p.X*o.Y - p.Y*o.X
}

// Polygon is an ordered list of vertices.
type Polygon []Point

// OrientedRect is a rectangle rotated by Angle radians around its center.
type OrientedRect struct {
	CX    float64 `json:"cx" yaml:"cx"`
	CY    float64 `json:"cy" yaml:"cy"`
	W     float64 `json:"w" yaml:"w"`
	H     float64 `json:"h" yaml:"h"`
	Angle float64 `json:"rotation" yaml:"rotation"`
}

// Area returns the area of the oriented rectangle. Rotation does not change it.
func (o OrientedRect) Area() float64 {
	if o.W <= 0 || o.H <= 0 {
		return 0
	}
	return o.W * o.H
}

// Corners returns the four vertices of the rectangle.
//
// The unrotated corners (±W/2, ±H/2) are rotated with the standard rotation matrix and
// translated to the center. The order is top-left, top-right, bottom-right, bottom-left
// of the unrotated box, which is clockwise on screen (Y grows downwards).
func (o OrientedRect) Corners() Polygon {
	sin, cos := math.Sincos(o.Angle)
	hw, hh := o.W/2, o.H/2
	local := [4]Point{
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
		{X: hw, Y: hh},
		{X: -hw, Y: hh},
	}

	poly := make(Polygon, 4)
	for i, p := range local {
		poly[i] = Point{
			X: o.CX + p.X*cos - p.Y*sin,
			Y: o.CY + p.X*sin + p.Y*cos,
		}
	}
	return poly
}

// Bounds returns the axis-aligned extent of the rotated rectangle.
func (o OrientedRect) Bounds() Rect {
	return o.Corners().Bounds()
}

// Bounds returns the axis-aligned extent of the polygon.
func (p Polygon) Bounds() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	minX, minY := p[0].X, p[0].Y
	maxX, maxY := p[0].X, p[0].Y
	for _, v := range p[1:] {
		minX = min(minX, v.X)
		minY = min(minY, v.Y)
		maxX = max(maxX, v.X)
		maxY = max(maxY, v.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// PolygonArea returns the absolute area of a simple polygon using the shoelace formula.
func PolygonArea(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	var sum float64
	for i := range p {
		j := (i + 1) % len(p)
		sum += p[i].Cross(p[j])
	}
	return math.Abs(sum) / 2
}

// inside reports whether p lies on the inner side of the clip edge e0→e1 for a clip
// polygon wound clockwise in Y-down coordinates.
func inside(p, e0, e1 Point) bool {
	return e1.Sub(e0).Cross(p.Sub(e0)) >= 0
}

// lineIntersection returns the point where segment a→b crosses the infinite line e0→e1.
func lineIntersection(a, b, e0, e1 Point) Point {
	d := b.Sub(a)
	e := e1.Sub(e0)
	denom := d.Cross(e)
	if denom == 0 {
		return a
	}
	t := e0.Sub(a).Cross(e) / denom
	return Point{X: a.X + t*d.X, Y: a.Y + t*d.Y}
}

// ClipPolygon clips subject against every edge of the convex polygon clip using the
// Sutherland–Hodgman algorithm and returns the intersection polygon.
//
// clip must be convex and wound clockwise in Y-down coordinates (the order produced by
// OrientedRect.Corners). The result is empty when the polygons do not overlap.
func ClipPolygon(subject, clip Polygon) Polygon {
	output := append(Polygon(nil), subject...)
	for i := range clip {
		if len(output) == 0 {
			break
		}
		e0 := clip[i]
		e1 := clip[(i+1)%len(clip)]

		input := output
		output = make(Polygon, 0, len(input)+2)
		prev := input[len(input)-1]
		for _, cur := range input {
			curIn := inside(cur, e0, e1)
			prevIn := inside(prev, e0, e1)
			switch {
			case curIn && prevIn:
				output = append(output, cur)
			case curIn && !prevIn:
				output = append(output, lineIntersection(prev, cur, e0, e1), cur)
			case !curIn && prevIn:
				output = append(output, lineIntersection(prev, cur, e0, e1))
			}
			prev = cur
		}
	}
	return output
}

// PolygonIoU returns the IoU of two convex polygons, both wound clockwise.
func PolygonIoU(a, b Polygon) float64 {
	inter := ClipPolygon(a, b)
	if len(inter) <= 1 {
		return 0
	}
	interArea := PolygonArea(inter)
	if interArea == 0 {
		return 0
	}
	return interArea / (PolygonArea(a) + PolygonArea(b) - interArea + IoUEpsilon)
}

// OrientedIoU returns the exact IoU of two rotated rectangles.
//
// Axis-aligned IoU over-estimates the overlap of rotated boxes, so rotated detections are
// compared by clipping their corner polygons.
func OrientedIoU(a, b OrientedRect) float64 {
	return PolygonIoU(a.Corners(), b.Corners())
}
