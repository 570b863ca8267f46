package images

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrientedRect_Corners(t *testing.T) {
	t.Run("unrotated", func(t *testing.T) {
		c := OrientedRect{CX: 5, CY: 5, W: 4, H: 2}.Corners()
		require.Len(t, c, 4)
		assert.Equal(t, Point{X: 3, Y: 4}, c[0])
		assert.Equal(t, Point{X: 7, Y: 4}, c[1])
		assert.Equal(t, Point{X: 7, Y: 6}, c[2])
		assert.Equal(t, Point{X: 3, Y: 6}, c[3])
	})

	t.Run("quarter turn swaps extent", func(t *testing.T) {
		b := OrientedRect{CX: 0, CY: 0, W: 4, H: 2, Angle: math.Pi / 2}.Bounds()
		assert.InDelta(t, -1.0, b.X, 1e-9)
		assert.InDelta(t, -2.0, b.Y, 1e-9)
		assert.InDelta(t, 2.0, b.W, 1e-9)
		assert.InDelta(t, 4.0, b.H, 1e-9)
	})

	t.Run("rotation preserves area", func(t *testing.T) {
		for _, angle := range []float64{0, 0.3, math.Pi / 4, 2.1, -1.2} {
			o := OrientedRect{CX: 1, CY: 2, W: 3, H: 0.5, Angle: angle}
			assert.InDelta(t, o.Area(), PolygonArea(o.Corners()), 1e-9, "angle %v", angle)
		}
	})
}

func TestPolygonArea(t *testing.T) {
	tests := []struct {
		name     string
		poly     Polygon
		expected float64
	}{
		{"empty", nil, 0},
		{"segment", Polygon{{0, 0}, {1, 1}}, 0},
		{"unit square", Polygon{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1},
		{"counter clockwise square", Polygon{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, 1},
		{"triangle", Polygon{{0, 0}, {4, 0}, {0, 3}}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, PolygonArea(tt.poly), 1e-12)
		})
	}
}

func TestClipPolygon(t *testing.T) {
	square := OrientedRect{CX: 1, CY: 1, W: 2, H: 2}.Corners()

	t.Run("overlapping squares", func(t *testing.T) {
		other := OrientedRect{CX: 2, CY: 2, W: 2, H: 2}.Corners()
		inter := ClipPolygon(other, square)
		assert.InDelta(t, 1.0, PolygonArea(inter), 1e-9)
	})

	t.Run("disjoint squares", func(t *testing.T) {
		other := OrientedRect{CX: 10, CY: 10, W: 2, H: 2}.Corners()
		assert.Empty(t, ClipPolygon(other, square))
	})

	t.Run("contained square", func(t *testing.T) {
		inner := OrientedRect{CX: 1, CY: 1, W: 1, H: 1}.Corners()
		assert.InDelta(t, 1.0, PolygonArea(ClipPolygon(inner, square)), 1e-9)
	})
}

func TestOrientedIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        OrientedRect
		b        OrientedRect
		expected float64
	}{
		{
			name:     "identical unrotated",
			a:        OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1},
			b:        OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1},
			expected: 1,
		},
		{
			name:     "identical rotated",
			a:        OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1, Angle: 0.7},
			b:        OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1, Angle: 0.7},
			expected: 1,
		},
		{
			// The crossing area is 0.1 x 0.1 and the union is 0.04 + 0.04 - 0.01.
			name:     "perpendicular bars",
			a:        OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1},
			b:        OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1, Angle: math.Pi / 2},
			expected: 0.01 / 0.07,
		},
		{
			name:     "half shifted",
			a:        OrientedRect{CX: 0, CY: 0, W: 2, H: 2},
			b:        OrientedRect{CX: 1, CY: 0, W: 2, H: 2},
			expected: 2.0 / 6.0,
		},
		{
			name:     "far apart",
			a:        OrientedRect{CX: 0, CY: 0, W: 1, H: 1, Angle: 0.4},
			b:        OrientedRect{CX: 5, CY: 5, W: 1, H: 1, Angle: 1.1},
			expected: 0,
		},
		{
			name:     "corner contact",
			a:        OrientedRect{CX: 0.5, CY: 0.5, W: 1, H: 1},
			b:        OrientedRect{CX: 1.5, CY: 1.5, W: 1, H: 1},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, OrientedIoU(tt.a, tt.b), 1e-6)
			assert.InDelta(t, tt.expected, OrientedIoU(tt.b, tt.a), 1e-6)
		})
	}
}

func TestOrientedIoU_BelowAxisAlignedIoU(t *testing.T) {
	a := OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1}
	b := OrientedRect{CX: 0.5, CY: 0.5, W: 0.4, H: 0.1, Angle: math.Pi / 2}

	// Ignoring the rotation, both bars describe the same axis box.
	naive := CalculateIoU(
		Rect{X: a.CX - a.W/2, Y: a.CY - a.H/2, W: a.W, H: a.H},
		Rect{X: b.CX - b.W/2, Y: b.CY - b.H/2, W: b.W, H: b.H},
	)
	assert.InDelta(t, 1.0, naive, 1e-6)
	assert.Less(t, OrientedIoU(a, b), naive)
}
