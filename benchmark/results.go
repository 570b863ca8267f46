package benchmark

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// SaveResults writes the results as JSON and a CSV summary into outputDir and returns the
// two file paths.
func SaveResults(outputDir string, results []PerformanceMetrics, now time.Time) (string, string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := now.Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}
	return resultsFile, summaryFile, nil
}

func ms(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	_ = w.Write([]string{
		"scenario", "input_size", "workers", "concurrency", "fps",
		"mean_ms", "p50_ms", "p95_ms", "inference_ms", "postprocess_ms",
		"detections", "error_rate",
	})
	for _, r := range results {
		_ = w.Write([]string{
			r.Scenario.Name,
			strconv.Itoa(r.Scenario.InputSize),
			strconv.Itoa(r.Scenario.Workers),
			strconv.Itoa(r.Scenario.Concurrency),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			ms(r.Latency.Mean),
			ms(r.Latency.P50),
			ms(r.Latency.P95),
			ms(r.Stages.Inference),
			ms(r.Stages.Postprocess),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		})
	}
	w.Flush()
	return w.Error()
}
