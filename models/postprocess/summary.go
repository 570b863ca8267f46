package postprocess

// ClassSummary aggregates the detections of one class.
type ClassSummary struct {
	Label     string  `json:"label" yaml:"label"`
	Count     int     `json:"count" yaml:"count"`
	MeanScore float32 `json:"mean_score" yaml:"mean_score"`
}

// Summary is the per-image report printed after an analysis.
type Summary struct {
	Total    int            `json:"total" yaml:"total"`
	Classes  []ClassSummary `json:"classes" yaml:"classes"`
	Oriented bool           `json:"oriented" yaml:"oriented"`
}

// Summarize counts detections per class and averages their scores.
//
// Classes are listed in classNames order, including classes with no detections. Labels that
// are not in classNames are appended in order of first appearance.
func Summarize(detections []Detection, classNames []string) Summary {
	s := Summary{Total: len(detections)}

	pos := make(map[string]int, len(classNames))
	for _, name := range classNames {
		pos[name] = len(s.Classes)
		s.Classes = append(s.Classes, ClassSummary{Label: name})
	}

	sums := make([]float32, len(s.Classes))
	for _, d := range detections {
		i, ok := pos[d.Label]
		if !ok {
			i = len(s.Classes)
			pos[d.Label] = i
			s.Classes = append(s.Classes, ClassSummary{Label: d.Label})
			sums = append(sums, 0)
		}
		s.Classes[i].Count++
		sums[i] += d.Score
		if d.Oriented != nil {
			s.Oriented = true
		}
	}

	for i := range s.Classes {
		if s.Classes[i].Count > 0 {
			s.Classes[i].MeanScore = sums[i] / float32(s.Classes[i].Count)
		}
	}
	return s
}

// FilterByScore returns the detections scoring at least minScore. It is a display filter
// applied by callers on top of the pipeline output.
func FilterByScore(detections []Detection, minScore float32) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= minScore {
			out = append(out, d)
		}
	}
	return out
}
