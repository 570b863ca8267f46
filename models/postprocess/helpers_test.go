package postprocess

var cacaoClasses = []string{"Fitoftora", "Monilia", "Sana"}

// anchor is one synthetic prediction in letterboxed input pixels.
type anchor struct {
	cx, cy, w, h float32
	scores       []float32
	angle        float32
}

// buildRaw lays anchors out as a (1, features, anchors) tensor, or (1, anchors, features)
// when anchorMajor is set. Zero-score anchors pad the tensor so the anchor axis is always
// the longer one.
func buildRaw(anchors []anchor, numClasses int, rotated, anchorMajor bool) RawOutput {
	features := 4 + numClasses
	if rotated {
		features++
	}
	n := max(len(anchors), features*2)

	values := func(a anchor) []float32 {
		v := make([]float32, features)
		v[0], v[1], v[2], v[3] = a.cx, a.cy, a.w, a.h
		copy(v[4:], a.scores)
		if rotated {
			v[4+numClasses] = a.angle
		}
		return v
	}

	data := make([]float32, features*n)
	for i := 0; i < n; i++ {
		var v []float32
		if i < len(anchors) {
			v = values(anchors[i])
		} else {
			v = make([]float32, features)
		}
		for f, x := range v {
			if anchorMajor {
				data[i*features+f] = x
			} else {
				data[f*n+i] = x
			}
		}
	}

	if anchorMajor {
		return RawOutput{Data: data, Shape: []int{1, n, features}}
	}
	return RawOutput{Data: data, Shape: []int{1, features, n}}
}

// square is a letterbox with no padding and unit scale.
var square = Letterbox{InputWidth: 100, InputHeight: 100, OriginalWidth: 100, OriginalHeight: 100}
