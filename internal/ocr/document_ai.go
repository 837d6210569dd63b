package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"licensetable/internal/logger"
	"licensetable/pkg/models"
)

// DocumentAIEngine implements Engine using a Google Document AI OCR processor.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	cfg    Config
	log    zerolog.Logger
}

// NewDocumentAIEngine creates a processor client with credentials from environment.
// Requires cfg.ProjectID and cfg.ProcessorID; cfg.Location defaults to "us".
func NewDocumentAIEngine(ctx context.Context, cfg Config) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if cfg.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "Document AI project ID is required")
	}
	if cfg.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "Document AI processor ID is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	var clientOptions []option.ClientOption
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	creds := credentialOptions()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(creds) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return NewDocumentAIEngineWithClient(client, cfg), nil
}

// NewDocumentAIEngineWithClient creates an engine with an explicit client (for testing).
func NewDocumentAIEngineWithClient(client *documentai.DocumentProcessorClient, cfg Config) *DocumentAIEngine {
	return &DocumentAIEngine{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

// Recognize sends img to the processor and returns one detection per layout line.
func (d *DocumentAIEngine) Recognize(ctx context.Context, img image.Image) ([]models.TextDetection, error) {
	const op = "Recognize"

	content, err := EncodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: "image/png",
			},
		},
	}

	callCtx, cancel := WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := d.client.ProcessDocument(callCtx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	detections := documentLines(resp.Document)
	d.log.Debug().
		Int("pages", len(resp.Document.Pages)).
		Int("lines", len(detections)).
		Msg("Document AI OCR completed")
	return detections, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// processorName constructs the full processor name for Document AI API.
func (d *DocumentAIEngine) processorName() string {
	if d.cfg.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID, d.cfg.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.cfg.ProjectID, d.cfg.Location, d.cfg.ProcessorID)
}

// documentLines converts the page lines of doc into detections. Pixel
// vertices are used when present, otherwise normalized vertices are scaled by
// the page dimension.
func documentLines(doc *documentaipb.Document) []models.TextDetection {
	var out []models.TextDetection
	for _, page := range doc.Pages {
		var width, height float64
		if page.Dimension != nil {
			width, height = float64(page.Dimension.Width), float64(page.Dimension.Height)
		}
		for _, line := range page.Lines {
			layout := line.Layout
			if layout == nil {
				continue
			}
			text := strings.TrimSpace(anchorText(doc.Text, layout.TextAnchor))
			box := layoutBox(layout.BoundingPoly, width, height)
			if text == "" || len(box) == 0 {
				continue
			}
			out = append(out, models.TextDetection{
				Box:        box,
				Text:       text,
				Confidence: float64(layout.Confidence),
			})
		}
	}
	return out
}

// anchorText resolves a text anchor against the document text.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var sb strings.Builder
	for _, seg := range anchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		sb.WriteString(text[start:end])
	}
	return sb.String()
}

func layoutBox(poly *documentaipb.BoundingPoly, width, height float64) models.BoundingBox {
	if poly == nil {
		return nil
	}
	var points []models.Point
	if len(poly.Vertices) > 0 {
		for _, v := range poly.Vertices {
			points = append(points, models.Point{X: float64(v.X), Y: float64(v.Y)})
		}
	} else {
		for _, v := range poly.NormalizedVertices {
			points = append(points, models.Point{X: float64(v.X) * width, Y: float64(v.Y) * height})
		}
	}
	return unionBox(points)
}
