package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nvr-ai/cacao-scan/client"
	"github.com/nvr-ai/cacao-scan/config"
	"github.com/nvr-ai/cacao-scan/detector"
	"github.com/nvr-ai/cacao-scan/logger"
	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/nvr-ai/cacao-scan/overlay"
	"github.com/nvr-ai/cacao-scan/util"
	"go.uber.org/zap"
)

// report is the outcome for one image.
type report struct {
	Path       string                  `json:"path"`
	Detections []postprocess.Detection `json:"detections"`
	Summary    postprocess.Summary     `json:"summary"`
	Annotated  string                  `json:"annotated,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// analyzer turns one image file into detections.
type analyzer interface {
	analyze(ctx context.Context, img util.ImageFile, minScore float32, annotateDir string) report
}

func main() {
	var (
		configPath  string
		modelPath   string
		modelName   string
		remote      string
		minScore    float64
		annotateDir string
		asJSON      bool
		development bool
		timeout     time.Duration
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&modelPath, "model", "", "Path to the ONNX model, overrides the configuration")
	flag.StringVar(&modelName, "name", "", "Model architecture: yolov8, yolo11 or yolo11-obb")
	flag.StringVar(&remote, "remote", "", "Base URL of a cacao-scan server; analyze remotely instead of locally")
	flag.Float64Var(&minScore, "min-score", 0, "Only report detections scoring at least this much")
	flag.StringVar(&annotateDir, "annotate", "", "Directory to write annotated copies of the images to")
	flag.BoolVar(&asJSON, "json", false, "Print reports as JSON")
	flag.BoolVar(&development, "dev", false, "Verbose development logging")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall time limit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image or directory>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := logger.Init(development); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var a analyzer
	if remote != "" {
		a = &remoteAnalyzer{client: client.New(remote, timeout)}
	} else {
		cfg, err := loadConfig(configPath, modelPath, modelName)
		if err != nil {
			logger.Log().Fatal("invalid configuration", zap.Error(err))
		}
		det, err := detector.FromConfig(cfg, nil, logger.Log())
		if err != nil {
			logger.Log().Fatal("failed to start detector", zap.Error(err))
		}
		defer det.Close()
		a = &localAnalyzer{detector: det}
	}

	if annotateDir != "" {
		if err := os.MkdirAll(annotateDir, 0o755); err != nil {
			logger.Log().Fatal("failed to create annotation directory", zap.Error(err))
		}
	}

	failed := false
	var reports []report
	for _, input := range flag.Args() {
		files, err := util.LoadImages(input)
		if err != nil {
			reports = append(reports, report{Path: input, Error: err.Error()})
			failed = true
			continue
		}
		for _, f := range files {
			r := a.analyze(ctx, f, float32(minScore), annotateDir)
			failed = failed || r.Error != ""
			reports = append(reports, r)
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(reports)
	} else {
		printReports(reports)
	}
	if failed {
		os.Exit(1)
	}
}

func loadConfig(path, modelPath, modelName string) (config.Config, error) {
	if modelPath != "" {
		os.Setenv(config.EnvModelPath, modelPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if modelName != "" {
		cfg.Model.Name = model.Name(modelName)
	}
	return cfg, nil
}

type localAnalyzer struct {
	detector *detector.Detector
}

func (l *localAnalyzer) analyze(ctx context.Context, f util.ImageFile, minScore float32, annotateDir string) report {
	r := report{Path: f.Path}
	res, err := l.detector.Detect(ctx, f.Image())
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Detections = postprocess.FilterByScore(res.Detections, minScore)
	r.Summary = postprocess.Summarize(r.Detections, l.detector.Model().Options().ClassNames)
	if annotateDir != "" {
		out := annotatedPath(annotateDir, f.Path)
		if err := overlay.Annotate(res.Image, r.Detections, out); err != nil {
			r.Error = err.Error()
		} else {
			r.Annotated = out
		}
	}
	return r
}

type remoteAnalyzer struct {
	client *client.Client
}

func (a *remoteAnalyzer) analyze(ctx context.Context, f util.ImageFile, minScore float32, annotateDir string) report {
	r := report{Path: f.Path}
	res, err := a.client.DetectBytes(ctx, filepath.Base(f.Path), f.Data, minScore)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Detections = res.Detections
	r.Summary = res.Summary
	if annotateDir != "" {
		out := annotatedPath(annotateDir, f.Path)
		if err := overlay.AnnotateFile(f.Path, r.Detections, out); err != nil {
			r.Error = err.Error()
		} else {
			r.Annotated = out
		}
	}
	return r
}

func annotatedPath(dir, path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"-annotated"+ext)
}

func printReports(reports []report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(w, "%s\terror: %s\n", r.Path, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%d detections\n", r.Path, r.Summary.Total)
		for _, c := range r.Summary.Classes {
			if c.Count == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s\t%d\tmean %.2f\n", c.Label, c.Count, c.MeanScore)
		}
		if r.Annotated != "" {
			fmt.Fprintf(w, "  annotated\t%s\n", r.Annotated)
		}
	}
}
