package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/cropper"
	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/geometry"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/source"
	"github.com/MeKo-Tech/ucrop/internal/version"
	"github.com/google/uuid"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.sessions != nil {
		response.Sessions = s.sessions.count()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// cropHandler crops an uploaded image in one request. The form carries the
// image plus optional ratio, rotate, zoom, pan_x, pan_y, format, quality,
// max_width and max_height fields; the response body is the encoded crop.
func (s *Server) cropHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	src, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	cfg, err := s.engineConfigFromForm(r)
	if err != nil {
		s.writeInputError(w, err)
		return
	}
	e, err := engine.New(src, cfg, engine.WithExecutor(s.executor), engine.WithLogger(s.logger))
	if err != nil {
		s.writeCropError(w, err)
		return
	}
	defer e.Close()

	adj, err := adjustmentsFromForm(r)
	if err != nil {
		s.writeInputError(w, err)
		return
	}
	if err := e.Adjust(adj); err != nil {
		s.writeCropError(w, err)
		return
	}

	opts, err := s.optionsFromForm(r, filepath.Join(s.workDir, "crop-"+uuid.NewString()))
	if err != nil {
		s.writeCropError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	out, err := e.Crop(ctx, opts)
	cropDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	if err != nil {
		cropRequestsTotal.WithLabelValues("http", cropper.KindOf(err).String()).Inc()
		s.writeCropError(w, err)
		return
	}
	defer func() { _ = os.Remove(out.Path) }()
	cropRequestsTotal.WithLabelValues("http", "success").Inc()
	observeOutput(out)

	f, err := os.Open(out.Path)
	if err != nil {
		s.writeCropError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	h := w.Header()
	h.Set("Content-Type", contentType(out.Format))
	h.Set("Content-Length", strconv.FormatInt(out.SizeBytes, 10))
	h.Set("X-Crop-Width", strconv.Itoa(out.Width))
	h.Set("X-Crop-Height", strconv.Itoa(out.Height))
	h.Set("X-Crop-Sample-Size", strconv.Itoa(out.SampleSize))
	if out.BudgetReduced {
		h.Set("X-Crop-Budget-Reduced", "true")
	}
	for _, warn := range out.Warnings {
		h.Add("X-Crop-Warning", warn.Error())
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Error("Failed to stream crop", "error", err)
	}
}

// readUpload parses the multipart "image" field into a source handle,
// writing the error response itself when it fails.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*source.Handle, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, ErrorResponse{Error: "too_large", Message: "File too large"}, http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, ErrorResponse{Error: "invalid_request", Message: "Failed to parse form data"}, http.StatusBadRequest)
		}
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, ErrorResponse{Error: "invalid_request", Message: "No image file provided"}, http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, ErrorResponse{Error: "invalid_request", Message: "Failed to read image data"}, http.StatusBadRequest)
		return nil, false
	}
	uploadSizeBytes.Observe(float64(len(data)))

	src, err := source.FromBytes(header.Filename, data)
	if err != nil {
		s.writeCropError(w, err)
		return nil, false
	}
	return src, true
}

// engineConfigFromForm applies the optional ratio, viewport_width and
// viewport_height fields to the server defaults.
func (s *Server) engineConfigFromForm(r *http.Request) (engine.Config, error) {
	cfg := s.engineCfg
	if v := r.FormValue("ratio"); v != "" {
		ratio, err := overlay.ParseAspectRatio(v)
		if err != nil {
			return cfg, err
		}
		cfg.AspectRatio = ratio
	}
	vw, err := formFloat(r, "viewport_width")
	if err != nil {
		return cfg, err
	}
	vh, err := formFloat(r, "viewport_height")
	if err != nil {
		return cfg, err
	}
	if vw > 0 && vh > 0 {
		cfg.Viewport = geometry.Size{Width: vw, Height: vh}
	}
	return cfg, nil
}

func adjustmentsFromForm(r *http.Request) (engine.Adjustments, error) {
	var a engine.Adjustments
	var err error
	if a.Rotate, err = formFloat(r, "rotate"); err != nil {
		return a, err
	}
	if a.Zoom, err = formFloat(r, "zoom"); err != nil {
		return a, err
	}
	if a.PanX, err = formFloat(r, "pan_x"); err != nil {
		return a, err
	}
	if a.PanY, err = formFloat(r, "pan_y"); err != nil {
		return a, err
	}
	return a, nil
}

// optionsFromForm reads the format, quality, max_width and max_height
// fields.
func (s *Server) optionsFromForm(r *http.Request, base string) (cropper.Options, error) {
	var quality *int
	var maxSize [2]int
	for i, field := range []string{"quality", "max_width", "max_height"} {
		v := r.FormValue(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cropper.Options{}, &cropper.Error{Kind: cropper.KindInput, Op: "request", Err: fmt.Errorf("invalid %s %q", field, v)}
		}
		if i == 0 {
			quality = &n
		} else {
			maxSize[i-1] = n
		}
	}
	return s.outputOptions(r.FormValue("format"), quality, maxSize[0], maxSize[1], base)
}

// outputOptions fills unset fields from the server defaults and writes to
// base plus the format extension.
func (s *Server) outputOptions(format string, quality *int, maxWidth, maxHeight int, base string) (cropper.Options, error) {
	if format == "" {
		format = s.defaults.Format
	}
	f, err := cropper.ParseFormat(format)
	if err != nil {
		return cropper.Options{}, &cropper.Error{Kind: cropper.KindInput, Op: "request", Err: err}
	}
	opts := cropper.Options{
		Format:     f,
		Quality:    s.defaults.Quality,
		MaxWidth:   s.defaults.MaxWidth,
		MaxHeight:  s.defaults.MaxHeight,
		OutputPath: base + f.Extension(),
	}
	if quality != nil {
		opts.Quality = *quality
	}
	if maxWidth != 0 || maxHeight != 0 {
		opts.MaxWidth, opts.MaxHeight = maxWidth, maxHeight
	}
	return opts, nil
}

func formFloat(r *http.Request, field string) (float64, error) {
	v := r.FormValue(field)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s %q", field, v)
	}
	return f, nil
}

func observeOutput(out *cropper.Output) {
	cropOutputPixels.Observe(float64(out.Width) * float64(out.Height))
	cropSampleSize.Observe(float64(out.SampleSize))
}

func contentType(f cropper.Format) string {
	switch f {
	case cropper.FormatJPEG:
		return "image/jpeg"
	case cropper.FormatPNG:
		return "image/png"
	case cropper.FormatWebP, cropper.FormatWebPLossless:
		return "image/webp"
	}
	return "application/octet-stream"
}

// statusFor maps a crop failure to an HTTP status.
func statusFor(err error) int {
	switch cropper.KindOf(err) {
	case cropper.KindInput:
		if errors.Is(err, cropper.ErrUnsupportedFormat) {
			return http.StatusUnsupportedMediaType
		}
		return http.StatusBadRequest
	case cropper.KindGeometry:
		return http.StatusUnprocessableEntity
	case cropper.KindResource:
		if errors.Is(err, cropper.ErrMemoryBudget) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	case cropper.KindConcurrency:
		return http.StatusConflict
	case cropper.KindCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeCropError(w http.ResponseWriter, err error) {
	kind := cropper.KindOf(err)
	s.writeErrorResponse(w, ErrorResponse{
		Error:   errorCode(err),
		Message: cropper.Message(err),
		Kind:    kind.String(),
	}, statusFor(err))
}

// writeInputError reports a malformed form field.
func (s *Server) writeInputError(w http.ResponseWriter, err error) {
	s.writeErrorResponse(w, ErrorResponse{Error: "invalid_request", Message: err.Error(), Kind: cropper.KindInput.String()}, http.StatusBadRequest)
}

// errorCode names the sentinel behind err for clients.
func errorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{cropper.ErrUnsupportedFormat, "unsupported_format"},
		{cropper.ErrDecode, "decode_failed"},
		{cropper.ErrFormatRequired, "format_required"},
		{cropper.ErrDegenerateWindow, "degenerate_window"},
		{cropper.ErrDegenerateCrop, "degenerate_crop"},
		{cropper.ErrDegenerateImage, "degenerate_image"},
		{cropper.ErrNonFiniteTransform, "non_finite_transform"},
		{cropper.ErrMemoryBudget, "memory_budget"},
		{cropper.ErrOutputUnwritable, "output_unwritable"},
		{cropper.ErrCropPending, "crop_pending"},
		{cropper.ErrCanceled, "canceled"},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	if cropper.KindOf(err) == cropper.KindCanceled {
		return "canceled"
	}
	return "crop_failed"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, response ErrorResponse, statusCode int) {
	response.Success = false
	s.writeJSON(w, statusCode, response)
}
