package support

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"slices"

	"github.com/MeKo-Tech/ucrop/internal/testutil"
	"github.com/cucumber/godog"

	// Decoders for checking written crops.
	_ "image/jpeg"
	_ "golang.org/x/image/webp"
)

func encodeGradient(width, height int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testutil.GradientImage(width, height)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// aTestImage writes a gradient PNG of the given size.
func (testCtx *TestContext) aTestImage(width, height int, name string) error {
	data, err := encodeGradient(width, height)
	if err != nil {
		return fmt.Errorf("failed to encode test image: %w", err)
	}
	return os.WriteFile(testCtx.TempPath(name), data, 0o644)
}

// aCorruptImage writes a PNG whose pixel data is truncated.
func (testCtx *TestContext) aCorruptImage(name string) error {
	data, err := encodeGradient(64, 64)
	if err != nil {
		return fmt.Errorf("failed to encode test image: %w", err)
	}
	return os.WriteFile(testCtx.TempPath(name), data[:len(data)/2], 0o644)
}

// aFileContaining writes arbitrary text.
func (testCtx *TestContext) aFileContaining(name, content string) error {
	return os.WriteFile(testCtx.TempPath(name), []byte(content), 0o644)
}

// theImageShouldBe checks the dimensions of an encoded image.
func (testCtx *TestContext) theImageShouldBe(name string, width, height int) error {
	f, err := os.Open(testCtx.TempPath(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("%s is %dx%d %s, want %dx%d", name, cfg.Width, cfg.Height, format, width, height)
	}
	return nil
}

// theDirectoryShouldOnlyContain checks that a failed crop left nothing behind.
func (testCtx *TestContext) theDirectoryShouldOnlyContain(name string) error {
	entries, err := os.ReadDir(testCtx.TempDir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if !slices.Equal(names, []string{name}) {
		return fmt.Errorf("directory contains %v, want only %s", names, name)
	}
	return nil
}

// RegisterImageSteps registers fixture and output image steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a (\d+)x(\d+) test image "([^"]*)"$`, testCtx.aTestImage)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBe)
	sc.Step(`^the directory should only contain "([^"]*)"$`, testCtx.theDirectoryShouldOnlyContain)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
