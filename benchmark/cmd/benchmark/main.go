package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nvr-ai/cacao-scan/benchmark"
	"github.com/nvr-ai/cacao-scan/config"
	"github.com/nvr-ai/cacao-scan/detector"
	"github.com/nvr-ai/cacao-scan/logger"
	"github.com/nvr-ai/cacao-scan/util"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to the service configuration file")
		scenarioFile = flag.String("scenarios", "", "Path to a YAML scenario list")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		testImages   = flag.String("images", "", "Path to test images directory or file")
		modelPath    = flag.String("model", "", "Path to ONNX model file")
		resolutions  = flag.Bool("resolutions", false, "Compare different input resolutions")
		concurrency  = flag.Int("concurrency", 0, "Compare worker pools up to this size")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	if err := logger.InitDevelopment(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log()

	if *testImages == "" {
		log.Fatal("test images path is required (-images)")
	}
	if *modelPath != "" {
		os.Setenv(config.EnvModelPath, *modelPath)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	corpus, err := util.LoadImages(*testImages)
	if err != nil {
		log.Fatal("failed to load test images", zap.Error(err))
	}

	var scenarios []benchmark.Scenario
	switch {
	case *scenarioFile != "":
		scenarios, err = benchmark.LoadScenarios(*scenarioFile)
		if err != nil {
			log.Fatal("failed to load scenarios", zap.Error(err))
		}
	case *resolutions:
		scenarios = benchmark.ResolutionScenarios()
	case *concurrency > 0:
		scenarios = benchmark.ConcurrencyScenarios(*concurrency)
	default:
		scenarios = benchmark.QuickScenarios()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var results []benchmark.PerformanceMetrics
	for _, scenario := range scenarios {
		scfg := cfg
		if scenario.InputSize > 0 {
			scfg.Model.InputSize = scenario.InputSize
		}
		if scenario.Workers > 0 {
			scfg.Workers = scenario.Workers
		}
		det, err := detector.FromConfig(scfg, nil, log)
		if err != nil {
			log.Error("scenario setup failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}
		m, err := benchmark.Run(ctx, det, corpus, scenario, log)
		det.Close()
		if err != nil {
			log.Error("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}
		results = append(results, *m)
		fmt.Printf("%-16s %8.2f FPS  p95 %v\n", scenario.Name, m.FramesPerSecond, m.Latency.P95)
	}

	jsonPath, csvPath, err := benchmark.SaveResults(*outputDir, results, time.Now())
	if err != nil {
		log.Fatal("failed to save results", zap.Error(err))
	}
	fmt.Printf("Results saved to: %s\n", jsonPath)
	fmt.Printf("Summary saved to: %s\n", csvPath)
}
