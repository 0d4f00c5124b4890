package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/ucrop/internal/config"
	"github.com/MeKo-Tech/ucrop/internal/server"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper pairs the crop server with its httptest listener.
type HTTPTestServerWrapper struct {
	Crop *server.Server
	HTTP *httptest.Server
}

// URL returns the base URL of the running server.
func (w *HTTPTestServerWrapper) URL() string { return w.HTTP.URL }

func (testCtx *TestContext) theCropServerIsRunning() error {
	cfg := config.DefaultConfig()
	cfg.Crop.Format = "png"
	engineCfg, err := cfg.ToEngineConfig()
	if err != nil {
		return err
	}

	crop, err := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 8,
		TimeoutSec:  30,
		WorkDir:     testCtx.TempPath("work"),
		SessionTTL:  time.Minute,
		Engine:      engineCfg,
		Budget:      cfg.ToBudget(),
		Crop:        server.CropDefaults{Format: "png", Quality: 90},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return fmt.Errorf("failed to create crop server: %w", err)
	}

	mux := http.NewServeMux()
	crop.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{Crop: crop, HTTP: httptest.NewServer(mux)}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() error {
	w := testCtx.HTTPTestServer
	testCtx.HTTPTestServer = nil
	w.HTTP.Close()
	return w.Crop.Close()
}

func (testCtx *TestContext) requireServer() error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("the crop server is not running")
	}
	return nil
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = resp.Header
	testCtx.LastHTTPResponse = body
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	resp, err := http.Get(testCtx.HTTPTestServer.URL() + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

// iUploadTo posts a scenario file as the "image" part. Fields are given as
// "key=value" pairs separated by commas.
func (testCtx *TestContext) iUploadTo(name, path, fields string) error {
	if err := testCtx.requireServer(); err != nil {
		return err
	}
	data, err := readFile(testCtx.TempPath(name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for _, kv := range strings.Split(fields, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPTestServer.URL()+path, mw.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iUploadToWithoutFields(name, path string) error {
	return testCtx.iUploadTo(name, path, "")
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("response status is %d, want %d\nBody: %s",
			testCtx.LastHTTPStatusCode, status, string(testCtx.LastHTTPResponse))
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// theResponseFieldShouldBe compares a top-level JSON field as a string.
func (testCtx *TestContext) theResponseFieldShouldBe(field, value string) error {
	var body map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &body); err != nil {
		return fmt.Errorf("response is not JSON: %w\nBody: %s", err, string(testCtx.LastHTTPResponse))
	}
	v, ok := body[field]
	if !ok {
		return fmt.Errorf("response has no field %q\nBody: %s", field, string(testCtx.LastHTTPResponse))
	}
	var got string
	switch x := v.(type) {
	case string:
		got = x
	case float64:
		got = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		got = fmt.Sprint(x)
	}
	if got != value {
		return fmt.Errorf("field %s is %q, want %q", field, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAnImage(width, height int) error {
	for header, want := range map[string]int{"X-Crop-Width": width, "X-Crop-Height": height} {
		if err := testCtx.theResponseHeaderShouldBe(header, strconv.Itoa(want)); err != nil {
			return err
		}
	}
	if len(testCtx.LastHTTPResponse) == 0 {
		return fmt.Errorf("response body is empty")
	}
	return nil
}

// RegisterServerSteps registers crop server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the crop server is running$`, testCtx.theCropServerIsRunning)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadToWithoutFields)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should be a (\d+)x(\d+) image$`, testCtx.theResponseShouldBeAnImage)
}
