// Package postprocess - Turns raw detector output into final detections.
//
// The pipeline runs in three stages: Decode reads the raw YOLO-style tensor and undoes the
// letterbox transform, ApplyNMS removes duplicate boxes, and MergeClusters collapses any
// remaining same-class boxes that still touch each other.
package postprocess

import "github.com/nvr-ai/cacao-scan/images"

// Candidate is a decoded detection moving through the pipeline.
type Candidate struct {
	// The predicted class index into the model's class names.
	ClassIndex int
	// The class name for ClassIndex.
	Label string
	// The class probability in [0, 1].
	Confidence float32
	// The axis-aligned box, normalized to the original image.
	Box images.Rect
	// The rotated box, set only when the model predicts a rotation channel. When present it is
	// the authoritative geometry.
	Oriented *images.OrientedRect
	// The original image width over its height. Oriented is normalized per axis, so the
	// rotated polygon is only rigid after the x axis is scaled by Aspect. Zero means square.
	Aspect float64
}

// aspect returns the width to height ratio used to undo the per-axis normalization.
func (c Candidate) aspect() float64 {
	if c.Aspect > 0 {
		return c.Aspect
	}
	return 1
}

// uniform returns the rotated box in a space scaled by the image height on both axes.
func (c Candidate) uniform() images.OrientedRect {
	o, k := *c.Oriented, c.aspect()
	o.CX *= k
	o.W *= k
	return o
}

// Bounds returns the axis-aligned extent of the candidate, covering the rotated polygon when
// one is present.
func (c Candidate) Bounds() images.Rect {
	if c.Oriented == nil {
		return c.Box
	}
	b, k := c.uniform().Bounds(), c.aspect()
	b.X /= k
	b.W /= k
	return b
}

// Detection is a final detection as published to callers.
type Detection struct {
	Label      string               `json:"label" yaml:"label"`
	ClassIndex int                  `json:"class_index" yaml:"class_index"`
	Score      float32              `json:"score" yaml:"score"`
	Box        images.Rect          `json:"box" yaml:"box"`
	Oriented   *images.OrientedRect `json:"oriented,omitempty" yaml:"oriented,omitempty"`
}

// Detection converts the candidate into its published form.
func (c Candidate) Detection() Detection {
	d := Detection{
		Label:      c.Label,
		ClassIndex: c.ClassIndex,
		Score:      c.Confidence,
		Box:        c.Box,
	}
	if c.Oriented != nil {
		o := *c.Oriented
		d.Oriented = &o
	}
	return d
}

// IoU returns the overlap between two candidates. Rotated polygons are compared exactly
// when both candidates carry one, otherwise the axis-aligned boxes are used. Polygons are
// compared with the aspect of the first candidate; IoU does not change under uniform scaling.
func IoU(a, b Candidate) float64 {
	if a.Oriented != nil && b.Oriented != nil {
		b.Aspect = a.Aspect
		return images.OrientedIoU(a.uniform(), b.uniform())
	}
	return images.CalculateIoU(a.Box, b.Box)
}
