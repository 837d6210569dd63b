package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"licensetable/internal/logger"
	"licensetable/pkg/models"
)

// VisionEngine implements Engine using Google Cloud Vision document text detection.
type VisionEngine struct {
	client    *vision.ImageAnnotatorClient
	languages []string
	cfg       Config
	log       zerolog.Logger
}

// NewVisionEngine creates a Vision client with credentials from environment.
func NewVisionEngine(ctx context.Context, cfg Config) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	opts := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewVisionEngineWithClient(client, cfg), nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient, cfg Config) *VisionEngine {
	return &VisionEngine{
		client:    client,
		languages: cfg.Languages,
		cfg:       cfg,
		log:       logger.WithComponent("ocr-vision"),
	}
}

// Recognize runs document text detection on img.
func (v *VisionEngine) Recognize(ctx context.Context, img image.Image) ([]models.TextDetection, error) {
	const op = "Recognize"

	content, err := EncodePNG(img)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.languages},
			},
		},
	}

	callCtx, cancel := WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	resp, err := v.client.BatchAnnotateImages(callCtx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	detections := visionSegments(imgResp.FullTextAnnotation)
	v.log.Debug().Int("segments", len(detections)).Msg("Vision text detection completed")
	return detections, nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// visionSegments groups the words of each paragraph into text segments. A
// segment ends at a wide space, a line break or the end of the paragraph; a
// plain space keeps the words together. The segment box covers all its words
// and its confidence is the mean word confidence.
func visionSegments(annotation *visionpb.TextAnnotation) []models.TextDetection {
	if annotation == nil {
		return nil
	}

	var out []models.TextDetection
	for _, page := range annotation.Pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				var seg segment
				for _, word := range paragraph.Words {
					text, brk := wordText(word)
					seg.add(text, word.Confidence, word.BoundingBox)
					switch brk {
					case visionpb.TextAnnotation_DetectedBreak_SPACE:
						seg.text.WriteByte(' ')
					case visionpb.TextAnnotation_DetectedBreak_SURE_SPACE,
						visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
						visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
						out = seg.flush(out)
					}
				}
				out = seg.flush(out)
			}
		}
	}
	return out
}

// wordText concatenates the symbols of word and returns the break detected
// after its last symbol.
func wordText(word *visionpb.Word) (string, visionpb.TextAnnotation_DetectedBreak_BreakType) {
	var sb strings.Builder
	brk := visionpb.TextAnnotation_DetectedBreak_UNKNOWN
	for _, symbol := range word.Symbols {
		sb.WriteString(symbol.Text)
		if p := symbol.Property; p != nil && p.DetectedBreak != nil {
			brk = p.DetectedBreak.Type
		} else {
			brk = visionpb.TextAnnotation_DetectedBreak_UNKNOWN
		}
	}
	return sb.String(), brk
}

// segment accumulates words until flushed.
type segment struct {
	text       strings.Builder
	points     []models.Point
	confidence float64
	words      int
}

func (s *segment) add(text string, confidence float32, poly *visionpb.BoundingPoly) {
	s.text.WriteString(text)
	s.confidence += float64(confidence)
	s.words++
	if poly == nil {
		return
	}
	for _, v := range poly.Vertices {
		s.points = append(s.points, models.Point{X: float64(v.X), Y: float64(v.Y)})
	}
}

func (s *segment) flush(out []models.TextDetection) []models.TextDetection {
	defer s.reset()
	text := strings.TrimSpace(s.text.String())
	if s.words == 0 || text == "" || len(s.points) == 0 {
		return out
	}
	return append(out, models.TextDetection{
		Box:        unionBox(s.points),
		Text:       text,
		Confidence: s.confidence / float64(s.words),
	})
}

func (s *segment) reset() {
	s.text.Reset()
	s.points = nil
	s.confidence = 0
	s.words = 0
}
