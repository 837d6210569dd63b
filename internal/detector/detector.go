// Package detector locates the category/date table on a licence photo.
//
// Object detection runs in an external inference service (a YOLO model
// served over HTTP). The service accepts a multipart upload on
// POST {url}/predict and answers with
//
//	{"detections": [{"class_id": 0, "confidence": 0.93, "box": [x1, y1, x2, y2]}]}
//
// and reports readiness on GET {url}/health. The client picks the best table
// box, widens it by a small margin and crops the image to it.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"licensetable/internal/logger"
)

// Defaults used when the configuration leaves a field unset.
const (
	DefaultConfThreshold = 0.85
	DefaultMargin        = 3
	DefaultTableClass    = 0
	DefaultTimeout       = 30 * time.Second
)

// Detector narrows an image down to the table region.
type Detector interface {
	// Detect returns the cropped table region, or img itself when no table
	// was found.
	Detect(ctx context.Context, img image.Image) (image.Image, error)
}

// Detection is one object box reported by the inference service.
type Detection struct {
	ClassID    int        `json:"class_id"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2
}

// Config configures the inference client.
type Config struct {
	URL           string
	ConfThreshold float64
	Margin        int
	TableClass    int
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConfThreshold <= 0 {
		c.ConfThreshold = DefaultConfThreshold
	}
	if c.Margin < 0 {
		c.Margin = DefaultMargin
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.URL = strings.TrimRight(c.URL, "/")
	return c
}

// Client talks to the inference service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the service at cfg.URL.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.WithComponent("detector"),
	}
}

// Predict uploads img as PNG and returns every detection the service reports.
func (c *Client) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	const op = "Predict"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, WrapDetectorError(op, err, "create form file")
	}
	if err := imaging.Encode(part, img, imaging.PNG); err != nil {
		return nil, WrapDetectorError(op, err, "encode image")
	}
	if err := writer.Close(); err != nil {
		return nil, WrapDetectorError(op, err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/predict", body)
	if err != nil {
		return nil, WrapDetectorError(op, err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapDetectorError(op, fmt.Errorf("%w: %w", ErrDetectionFailed, err), "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, WrapDetectorError(op, ErrDetectionFailed,
			fmt.Sprintf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result struct {
		Detections []Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapDetectorError(op, fmt.Errorf("%w: %w", ErrDetectionFailed, err), "decode response")
	}
	return result.Detections, nil
}

// CheckHealth reports whether the inference service is up.
func (c *Client) CheckHealth(ctx context.Context) error {
	const op = "CheckHealth"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/health", nil)
	if err != nil {
		return WrapDetectorError(op, fmt.Errorf("%w: %w", ErrModelLoad, err), "create request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapDetectorError(op, fmt.Errorf("%w: %w", ErrModelLoad, err), c.cfg.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WrapDetectorError(op, ErrModelLoad, fmt.Sprintf("inference service unhealthy: %d", resp.StatusCode))
	}
	return nil
}

// Detect crops img to the best table detection.
func (c *Client) Detect(ctx context.Context, img image.Image) (image.Image, error) {
	detections, err := c.Predict(ctx, img)
	if err != nil {
		return nil, err
	}

	best, ok := SelectTableBox(detections, c.cfg.TableClass, c.cfg.ConfThreshold)
	if !ok {
		c.log.Debug().Int("detections", len(detections)).Msg("No table detected, using whole image")
		return img, nil
	}

	rect := CropRect(best.Box, c.cfg.Margin, img.Bounds())
	if rect.Empty() {
		c.log.Warn().Floats64("box", best.Box[:]).Msg("Table box lies outside the image, using whole image")
		return img, nil
	}

	c.log.Debug().
		Float64("confidence", best.Confidence).
		Str("region", rect.String()).
		Msg("Table detected")
	return imaging.Crop(img, rect), nil
}

// SelectTableBox returns the highest-confidence detection of class whose
// confidence is at least threshold. Ties keep the earlier detection.
func SelectTableBox(detections []Detection, class int, threshold float64) (Detection, bool) {
	var (
		best  Detection
		found bool
	)
	for _, d := range detections {
		if d.ClassID != class || d.Confidence < threshold {
			continue
		}
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}

// CropRect truncates box to whole pixels, grows it by margin on every side
// and clamps it to bounds.
func CropRect(box [4]float64, margin int, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(box[0])-margin,
		int(box[1])-margin,
		int(box[2])+margin,
		int(box[3])+margin,
	)
	return r.Intersect(bounds)
}

// Passthrough is the detector used when no inference service is configured:
// the whole image is treated as the table.
type Passthrough struct{}

// Detect returns img unchanged.
func (Passthrough) Detect(_ context.Context, img image.Image) (image.Image, error) {
	return img, nil
}

// LoadImage opens and decodes the image at path, applying EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	const op = "LoadImage"

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, WrapDetectorError(op, ErrImageNotFound, path)
		}
		return nil, WrapDetectorError(op, err, path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, WrapDetectorError(op, err, "decode image")
	}
	return img, nil
}
