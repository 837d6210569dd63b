// Package ocr reads text lines from a licence table image.
//
// Three engines are available behind the Engine interface:
//   - "vision": Google Cloud Vision document text detection
//   - "documentai": a Google Document AI OCR processor
//   - "tesseract": local Tesseract through gosseract, registered by the
//     ocr/tesseract package
//
// Every engine returns one TextDetection per text segment with its box in
// pixel coordinates of the image passed in and a confidence in [0, 1].
//
// Cloud engines read credentials from the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// When neither is set, application default credentials are tried.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"google.golang.org/api/option"

	"licensetable/pkg/models"
)

// Engine names accepted by New.
const (
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
	EngineTesseract  = "tesseract"
)

// Engine recognizes text in an image.
type Engine interface {
	// Recognize returns the text segments found in img. An image without
	// readable text yields an empty slice and no error.
	Recognize(ctx context.Context, img image.Image) ([]models.TextDetection, error)

	// Close releases the engine's backend resources.
	Close() error
}

// Config selects and configures an engine.
type Config struct {
	// Engine is one of EngineVision, EngineDocumentAI or EngineTesseract.
	Engine string

	// Languages are language hints, e.g. "en" for Vision or "eng" for Tesseract.
	Languages []string

	// Document AI settings.
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string

	// Timeout bounds a single recognition call. Zero means no extra bound.
	Timeout time.Duration
}

// Factory constructs an engine from cfg.
type Factory func(ctx context.Context, cfg Config) (Engine, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		EngineVision: func(ctx context.Context, cfg Config) (Engine, error) {
			return NewVisionEngine(ctx, cfg)
		},
		EngineDocumentAI: func(ctx context.Context, cfg Config) (Engine, error) {
			return NewDocumentAIEngine(ctx, cfg)
		},
	}
)

// Register makes an engine available to New under name. Engines that need
// native libraries register themselves from their own package.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[strings.ToLower(name)] = f
}

// New constructs the engine named by cfg.Engine, defaulting to Vision.
// Construction failures match ErrModelLoad.
func New(ctx context.Context, cfg Config) (Engine, error) {
	const op = "New"

	name := strings.ToLower(cfg.Engine)
	if name == "" {
		name = EngineVision
	}

	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, NewOCRError(op, fmt.Errorf("%w: %w", ErrModelLoad, ErrUnknownEngine), cfg.Engine)
	}

	engine, err := factory(ctx, cfg)
	if err != nil {
		return nil, NewOCRError(op, fmt.Errorf("%w: %w", ErrModelLoad, err), name)
	}
	return engine, nil
}

// credentialOptions returns client options for the credentials found in the
// environment, or nil to fall back to application default credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

// EncodePNG serializes img for upload. Empty images fail with ErrEmptyImage.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithTimeout applies the engine timeout to ctx when one is configured.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// unionBox returns the axis-aligned box covering all given corner points.
func unionBox(points []models.Point) models.BoundingBox {
	if len(points) == 0 {
		return nil
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return models.RectBox(minX, minY, maxX, maxY)
}
