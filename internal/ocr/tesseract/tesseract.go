// Package tesseract registers a local Tesseract engine with the ocr package.
// Importing it requires the tesseract and leptonica libraries (cgo).
package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"licensetable/internal/ocr"
	"licensetable/pkg/models"
)

func init() {
	ocr.Register(ocr.EngineTesseract, func(_ context.Context, cfg ocr.Config) (ocr.Engine, error) {
		return New(cfg), nil
	})
}

// Engine implements ocr.Engine with a fresh gosseract client per call.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// New constructs a Tesseract-backed engine.
func New(cfg ocr.Config) *Engine {
	return &Engine{clientFactory: gosseract.NewClient, languages: cfg.Languages}
}

// Recognize returns one detection per text line.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]models.TextDetection, error) {
	const op = "Recognize"

	data, err := ocr.EncodePNG(img)
	if err != nil {
		return nil, ocr.WrapOCRError(op, err, "failed to encode image")
	}
	if err := ctx.Err(); err != nil {
		return nil, ocr.WrapOCRError(op, err, "canceled before recognition")
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, ocr.WrapOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, ocr.WrapOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("set languages: %v", err))
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, ocr.WrapOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("recognize lines: %v", err))
	}
	return lineDetections(boxes), nil
}

// Close is a no-op; clients live for a single call.
func (e *Engine) Close() error { return nil }

// lineDetections converts tesseract boxes, dropping blank lines and scaling
// confidence from percent to [0, 1].
func lineDetections(boxes []gosseract.BoundingBox) []models.TextDetection {
	out := make([]models.TextDetection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, models.TextDetection{
			Box:        models.RectBox(float64(b.Box.Min.X), float64(b.Box.Min.Y), float64(b.Box.Max.X), float64(b.Box.Max.Y)),
			Text:       text,
			Confidence: b.Confidence / 100.0,
		})
	}
	return out
}
