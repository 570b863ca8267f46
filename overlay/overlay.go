// Package overlay - Draws detections onto images with OpenCV.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nvr-ai/cacao-scan/images"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Thickness of the drawn outlines.
const Thickness = 2

var classColors = map[string]color.RGBA{
	"Fitoftora": {R: 220, G: 0, B: 0, A: 0},
	"Monilia":   {R: 255, G: 140, B: 0, A: 0},
	"Sana":      {R: 0, G: 200, B: 0, A: 0},
}

var palette = []color.RGBA{
	{R: 0, G: 0, B: 255, A: 0},
	{R: 255, G: 0, B: 255, A: 0},
	{R: 0, G: 255, B: 255, A: 0},
	{R: 128, G: 0, B: 128, A: 0},
}

// ColorFor returns the outline color of a class. Unknown labels get a stable palette color.
func ColorFor(d postprocess.Detection) color.RGBA {
	if c, ok := classColors[d.Label]; ok {
		return c
	}
	return palette[d.ClassIndex%len(palette)]
}

// LabelText is the caption drawn next to a detection.
func LabelText(d postprocess.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Score)
}

// PixelPolygon projects the normalized geometry of d onto a width x height image. Oriented
// detections yield their four rotated corners, others the corners of their box.
func PixelPolygon(d postprocess.Detection, width, height int) []image.Point {
	w, h := float64(width), float64(height)
	var poly images.Polygon
	if d.Oriented != nil {
		poly = images.OrientedRect{
			CX:    d.Oriented.CX * w,
			CY:    d.Oriented.CY * h,
			W:     d.Oriented.W * w,
			H:     d.Oriented.H * h,
			Angle: d.Oriented.Angle,
		}.Corners()
	} else {
		b := images.Rect{X: d.Box.X * w, Y: d.Box.Y * h, W: d.Box.W * w, H: d.Box.H * h}
		poly = images.Polygon{{X: b.X, Y: b.Y}, {X: b.X2(), Y: b.Y}, {X: b.X2(), Y: b.Y2()}, {X: b.X, Y: b.Y2()}}
	}

	pts := make([]image.Point, len(poly))
	for i, p := range poly {
		pts[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	return pts
}

// LabelAnchor returns where the caption of a polygon starts: above its top-most vertex,
// kept inside the image.
func LabelAnchor(poly []image.Point, textHeight int) image.Point {
	if len(poly) == 0 {
		return image.Point{}
	}
	top := poly[0]
	for _, p := range poly[1:] {
		if p.Y < top.Y || (p.Y == top.Y && p.X < top.X) {
			top = p
		}
	}
	y := top.Y - 4
	if y < textHeight {
		y = top.Y + textHeight + 4
	}
	return image.Pt(max(top.X, 0), y)
}

// Draw outlines every detection on mat with its caption.
func Draw(mat *gocv.Mat, detections []postprocess.Detection) {
	width, height := mat.Cols(), mat.Rows()
	for _, d := range detections {
		c := ColorFor(d)
		poly := PixelPolygon(d, width, height)

		pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
		gocv.Polylines(mat, pv, true, c, Thickness)
		pv.Close()

		text := LabelText(d)
		size := gocv.GetTextSize(text, gocv.FontHersheySimplex, 0.6, 1)
		gocv.PutText(mat, text, LabelAnchor(poly, size.Y), gocv.FontHersheySimplex, 0.6, c, Thickness)
	}
}

// Annotate draws detections onto img and writes the result to outPath. The file format
// follows the extension of outPath.
func Annotate(img image.Image, detections []postprocess.Detection, outPath string) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()
	return write(&mat, detections, outPath)
}

// AnnotateFile reads the image at inPath, draws detections onto it and writes outPath.
func AnnotateFile(inPath string, detections []postprocess.Detection, outPath string) error {
	mat := gocv.IMRead(inPath, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return errors.Errorf("failed to read image %s", inPath)
	}
	return write(&mat, detections, outPath)
}

func write(mat *gocv.Mat, detections []postprocess.Detection, outPath string) error {
	Draw(mat, detections)
	if !gocv.IMWrite(outPath, *mat) {
		return errors.Errorf("failed to write image %s", outPath)
	}
	return nil
}
