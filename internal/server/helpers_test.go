package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/ucrop/internal/engine"
	"github.com/MeKo-Tech/ucrop/internal/overlay"
	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a server with a 1:1 window over a 1000x1000
// viewport that settles instantly and writes PNG by default.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := engine.DefaultConfig()
	ratio, err := overlay.Fixed(1, 1)
	require.NoError(t, err)
	cfg.AspectRatio = ratio
	cfg.Gesture.SettleDuration = 0

	s, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		TimeoutSec:  10,
		WorkDir:     t.TempDir(),
		Engine:      cfg,
		Crop:        CropDefaults{Format: "png", Quality: 90},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// multipartRequest builds a POST with an "image" file part plus fields.
func multipartRequest(t *testing.T, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.GradientImage(w, h))
}

func corruptPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	data := gradientPNG(t, w, h)
	return data[:len(data)/2]
}
