// Package server - HTTP surface of the cacao pod detector.
package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nvr-ai/cacao-scan/api"
	"github.com/nvr-ai/cacao-scan/detector"
	"github.com/nvr-ai/cacao-scan/metrics"
	"github.com/nvr-ai/cacao-scan/models/model"
	"github.com/nvr-ai/cacao-scan/models/model/preprocess"
	"github.com/nvr-ai/cacao-scan/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

// DefaultMaxUploadBytes bounds uploaded images.
const DefaultMaxUploadBytes = 20 << 20

// Detector is the part of *detector.Detector the server uses.
type Detector interface {
	Detect(ctx context.Context, img *preprocess.Image) (*detector.Result, error)
	Model() model.Model
}

// Config represents the configuration for the server.
type Config struct {
	Detector       Detector
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// Server routes detection requests to a Detector.
type Server struct {
	engine    *gin.Engine
	detector  Detector
	metrics   *metrics.Metrics
	logger    *zap.Logger
	maxUpload int64
}

// New builds the gin engine and registers the routes.
func New(cfg Config) (*Server, error) {
	if cfg.Detector == nil {
		return nil, errors.New("server requires a detector")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		engine:    gin.New(),
		detector:  cfg.Detector,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		maxUpload: cfg.MaxUploadBytes,
	}
	s.engine.Use(gin.Recovery(), s.requestID, s.observe)
	s.engine.GET(api.PathHealth, s.health)
	s.engine.GET(api.PathMetrics, gin.WrapH(s.metrics.Handler()))
	s.engine.POST(api.PathDetect, s.detect)
	s.engine.POST(api.PathDecode, s.decode)
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestID assigns each request an id, keeping one supplied by the client.
func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader(api.RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(api.RequestIDHeader, id)
	c.Next()
}

// observe logs and counts each finished request.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()
	status := c.Writer.Status()
	s.metrics.ObserveRequest(status)
	s.logger.Info("request",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	)
}

func (s *Server) health(c *gin.Context) {
	opts := s.detector.Model().Options()
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "ok",
		Model:   string(opts.Name),
		Classes: opts.ClassNames,
	})
}

func (s *Server) detect(c *gin.Context) {
	minScore, ok := s.minScore(c, c.Query(api.QueryMinScore))
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	header, err := c.FormFile(api.FormFieldImage)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "missing image upload: "+err.Error())
		return
	}
	file, err := header.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "unreadable image upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "unreadable image upload")
		return
	}

	res, err := s.detector.Detect(c.Request.Context(), &preprocess.Image{
		Format: preprocess.ImageFormat(header.Header.Get("Content-Type")),
		Data:   data,
	})
	if err != nil {
		s.failDetection(c, err)
		return
	}
	s.respond(c, res.Detections, minScore, res.Timings)
}

func (s *Server) decode(c *gin.Context) {
	var req api.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid decode request: "+err.Error())
		return
	}
	if len(req.Output.Shape) == 0 {
		s.fail(c, http.StatusBadRequest, "output shape is required")
		return
	}
	if _, ok := s.minScore(c, strconv.FormatFloat(float64(req.MinScore), 'f', -1, 32)); !ok {
		return
	}

	start := time.Now()
	detections, err := s.detector.Model().PostProcess(req.Output, req.Letterbox)
	if err != nil {
		s.failDetection(c, err)
		return
	}
	elapsed := time.Since(start)
	s.metrics.ObserveStage(metrics.StagePostprocess, elapsed)
	s.respond(c, detections, req.MinScore, detector.Timings{Postprocess: elapsed})
}

// minScore parses the display threshold. An empty value means no filtering.
func (s *Server) minScore(c *gin.Context, raw string) (float32, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil || v < 0 || v > 1 {
		s.fail(c, http.StatusBadRequest, "min_score must be a number in [0, 1]")
		return 0, false
	}
	return float32(v), true
}

func (s *Server) respond(c *gin.Context, detections []postprocess.Detection, minScore float32, t detector.Timings) {
	opts := s.detector.Model().Options()
	shown := postprocess.FilterByScore(detections, minScore)
	c.JSON(http.StatusOK, api.DetectResponse{
		RequestID:  c.GetString(requestIDKey),
		Model:      string(opts.Name),
		Detections: shown,
		Summary:    postprocess.Summarize(shown, opts.ClassNames),
		Timings: api.Timings{
			PreprocessMS:  millis(t.Preprocess),
			InferenceMS:   millis(t.Inference),
			PostprocessMS: millis(t.Postprocess),
		},
	})
}

// failDetection maps pipeline errors onto HTTP statuses.
func (s *Server) failDetection(c *gin.Context, err error) {
	switch {
	case errors.Is(err, postprocess.ErrMalformedShape), errors.Is(err, postprocess.ErrDegenerateImage):
		s.logger.Warn("analysis failed", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		s.fail(c, http.StatusUnprocessableEntity, api.AnalysisFailed)
	case errors.Is(err, preprocess.ErrEmptyImage), errors.Is(err, preprocess.ErrUndecodableImage):
		s.fail(c, http.StatusBadRequest, "empty or unsupported image")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, detector.ErrClosed):
		s.fail(c, http.StatusServiceUnavailable, "detector unavailable")
	default:
		s.logger.Error("detection failed", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
		s.fail(c, http.StatusInternalServerError, "detection failed")
	}
}

func (s *Server) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{
		RequestID: c.GetString(requestIDKey),
		Error:     msg,
	})
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
