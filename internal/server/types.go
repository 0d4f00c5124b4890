package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/gesture"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/transform"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	workDir     string
	ownsWorkDir bool
	engineCfg   engine.Config
	defaults    CropDefaults
	executor    *cropper.Executor
	rateLimiter *RateLimiter
	sessions    *sessionStore
	logger      *slog.Logger
	done        chan struct{}
}

// CropDefaults are the output options used when a request leaves them out.
type CropDefaults struct {
	Format    string
	Quality   int
	MaxWidth  int
	MaxHeight int
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	CORSOrigin        string
	MaxUploadMB       int64
	TimeoutSec        int
	WorkDir           string
	SessionTTL        time.Duration
	RequestsPerMinute int
	Engine            engine.Config
	Budget            cropper.Budget
	Crop              CropDefaults
	Logger            *slog.Logger
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Time     string `json:"time"`
	Sessions int    `json:"sessions"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// RectJSON is a viewport rectangle.
type RectJSON struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func rectJSON(b geometry.Box) RectJSON {
	return RectJSON{X: b.MinX, Y: b.MinY, Width: b.Width(), Height: b.Height()}
}

// ImageInfo describes an uploaded source image.
type ImageInfo struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Orientation int    `json:"orientation"`
	SizeBytes   int64  `json:"size_bytes"`
}

// StateMessage is the interactive state of a session.
type StateMessage struct {
	Phase       string     `json:"phase"`
	Gesture     string     `json:"gesture"`
	Scale       float64    `json:"scale"`
	Rotation    float64    `json:"rotation"`
	TranslateX  float64    `json:"translate_x"`
	TranslateY  float64    `json:"translate_y"`
	Matrix      [6]float64 `json:"matrix"`
	Window      RectJSON   `json:"window"`
	ImageBounds RectJSON   `json:"image_bounds"`
	AspectRatio string     `json:"aspect_ratio"`
	Covered     bool       `json:"covered"`
	CropPending bool       `json:"crop_pending"`
}

func stateOf(e *engine.Engine) StateMessage {
	snap := e.Transform().Snapshot()
	return stateMessage(snap, e.Window(), e.Controller(), e.Pending())
}

func stateMessage(snap transform.Snapshot, w *overlay.Window, c *gesture.Controller, pending bool) StateMessage {
	m := snap.Matrix
	t := snap.Translation()
	return StateMessage{
		Phase:       c.Phase().String(),
		Gesture:     c.Kind().String(),
		Scale:       snap.Scale(),
		Rotation:    snap.Rotation(),
		TranslateX:  t.X,
		TranslateY:  t.Y,
		Matrix:      [6]float64{m.A, m.B, m.C, m.D, m.E, m.F},
		Window:      rectJSON(w.Rect()),
		ImageBounds: rectJSON(c.State().Bounds()),
		AspectRatio: w.AspectRatio().String(),
		Covered:     c.State().Covers(w.Rect()),
		CropPending: pending,
	}
}

// SessionResponse is returned when a session is created or inspected.
type SessionResponse struct {
	ID        string       `json:"id"`
	Source    ImageInfo    `json:"source"`
	State     StateMessage `json:"state"`
	Socket    string       `json:"socket"`
	ExpiresAt string       `json:"expires_at"`
}

// CropResult describes a written crop.
type CropResult struct {
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Format     string   `json:"format"`
	SizeBytes  int64    `json:"size_bytes"`
	SampleSize int      `json:"sample_size"`
	Reduced    bool     `json:"budget_reduced,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
	URL        string   `json:"url,omitempty"`
}

func cropResult(out *cropper.Output, url string) *CropResult {
	res := &CropResult{
		Width:      out.Width,
		Height:     out.Height,
		Format:     out.Format.String(),
		SizeBytes:  out.SizeBytes,
		SampleSize: out.SampleSize,
		Reduced:    out.BudgetReduced,
		DurationMs: out.Duration.Milliseconds(),
		URL:        url,
	}
	for _, w := range out.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}
	return res
}

// NewServer creates a new crop server instance.
func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workDir := config.WorkDir
	owns := false
	if workDir == "" {
		dir, err := os.MkdirTemp("", "ucrop-")
		if err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
		workDir, owns = dir, true
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := config.SessionTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 50
	}

	if config.Engine.Viewport.IsDegenerate() {
		config.Engine = engine.DefaultConfig()
	}
	if config.Budget == (cropper.Budget{}) {
		config.Budget = cropper.DefaultBudget()
	}

	s := &Server{
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: maxUpload,
		timeout:     timeout,
		workDir:     workDir,
		ownsWorkDir: owns,
		engineCfg:   config.Engine,
		defaults:    config.Crop,
		executor:    cropper.NewExecutor(config.Budget, cropper.WithLogger(logger)),
		sessions:    newSessionStore(ttl),
		logger:      logger,
		done:        make(chan struct{}),
	}
	if config.RequestsPerMinute > 0 {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute)
	}
	return s, nil
}

// WorkDir returns the directory crops are written to.
func (s *Server) WorkDir() string { return s.workDir }

// Run sweeps expired sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	if n := s.sessions.sweep(); n > 0 {
		s.logger.Info("expired crop sessions", "count", n)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Sweep()
	}
}

// Close ends all sessions and releases server resources.
func (s *Server) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	s.sessions.closeAll()
	if s.ownsWorkDir {
		return os.RemoveAll(s.workDir)
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware("/health", s.healthHandler))
	mux.HandleFunc("/crop", s.corsMiddleware("/crop", s.rateLimitMiddleware(s.cropHandler)))
	mux.HandleFunc("/sessions", s.corsMiddleware("/sessions", s.rateLimitMiddleware(s.createSessionHandler)))
	mux.HandleFunc("/sessions/{id}", s.corsMiddleware("/sessions/{id}", s.sessionHandler))
	mux.HandleFunc("/sessions/{id}/ws", s.corsMiddleware("/sessions/{id}/ws", s.sessionWebSocketHandler))
	mux.HandleFunc("/sessions/{id}/results/{result}", s.corsMiddleware("/sessions/{id}/results/{result}", s.resultHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
