// Package pipeline runs table detection, OCR and row reconstruction on a
// licence image and hands the result to the configured sinks.
//
// Data problems (no OCR output, too few categories or dates, missing rows)
// are reported through the extraction status. Errors are reserved for
// failures: a missing image, a model that cannot be loaded, or a stage
// that breaks.
package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"licensetable/internal/detector"
	"licensetable/internal/fields"
	"licensetable/internal/logger"
	"licensetable/internal/ocr"
	"licensetable/internal/table"
	"licensetable/pkg/models"
)

// Sink receives every extraction that produced rows.
type Sink interface {
	Name() string
	Save(ctx context.Context, ext models.Extraction) error
}

// Options holds the extraction settings shared by all images.
type Options struct {
	Vocabulary    models.Vocabulary
	TextThreshold float64
}

// Pipeline is safe for concurrent use. The models it wraps are loaded once
// and shared across images. Images with the same file name share one CSV
// path, so the last one saved replaces the others.
type Pipeline struct {
	detector detector.Detector
	engine   ocr.Engine
	vocab    models.Vocabulary
	fieldCfg fields.Config
	sinks    []Sink
	log      zerolog.Logger
}

// New assembles a pipeline from already loaded collaborators.
func New(det detector.Detector, engine ocr.Engine, opts Options, sinks ...Sink) (*Pipeline, error) {
	fieldCfg := fields.Config{Check: opts.Vocabulary.Check, Threshold: opts.TextThreshold}
	if err := fieldCfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Vocabulary.Len() == 0 {
		return nil, &PipelineError{Op: "New", Err: fields.ErrConfiguration, Details: "empty category sort order"}
	}
	if det == nil {
		det = detector.Passthrough{}
	}
	return &Pipeline{
		detector: det,
		engine:   engine,
		vocab:    opts.Vocabulary,
		fieldCfg: fieldCfg,
		sinks:    sinks,
		log:      logger.WithComponent("pipeline"),
	}, nil
}

// Run processes the image stored at path.
func (p *Pipeline) Run(ctx context.Context, path string) (models.Extraction, error) {
	const op = "Run"

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Extraction{}, &PipelineError{Op: op, Err: ErrImageNotFound, Details: "image file is not in the specified path: " + path}
		}
		return models.Extraction{}, stageError(op, ErrPipeline, err, path)
	}

	img, err := detector.LoadImage(path)
	if err != nil {
		return models.Extraction{}, stageError(op, ErrPipeline, err, "load image")
	}

	return p.Process(ctx, filepath.Base(path), img)
}

// Process extracts the table from an already decoded image. name is used for
// the extraction record and output file names.
func (p *Pipeline) Process(ctx context.Context, name string, img image.Image) (models.Extraction, error) {
	log := p.log.With().Str("image", name).Logger()
	ext := models.Extraction{ImageName: name}

	region, err := p.detector.Detect(ctx, img)
	if err != nil {
		return ext, stageError("Detect", ErrPipeline, err, "")
	}
	gray := imaging.Grayscale(region)

	detections, err := p.engine.Recognize(ctx, gray)
	if err != nil {
		return ext, stageError("Recognize", ErrPipeline, err, "")
	}
	log.Debug().Int("detections", len(detections)).Msg("OCR completed")

	if len(detections) == 0 {
		ext.Status = models.StatusNoOCROutput
		log.Info().Str("status", string(ext.Status)).Msg("Extraction finished")
		return ext, nil
	}

	categories, dates, err := fields.Extract(detections, p.fieldCfg)
	if err != nil {
		return ext, stageError("ExtractFields", ErrPipeline, err, "")
	}
	log.Debug().
		Int("categories", len(categories)).
		Int("dates", len(dates)).
		Msg("Fields extracted")

	orientation, centers := table.FindOrientation(categories, p.vocab)
	ext.Orientation = orientation

	res, err := table.IdentifyRows(table.CenterPoints(dates), orientation, centers, p.vocab)
	if err != nil {
		return ext, stageError("IdentifyRows", ErrPipeline, err, "")
	}
	ext.Status = res.Status
	ext.Rows = res.Rows

	if len(res.Unmatched) > 0 {
		log.Debug().Int("unmatched_dates", len(res.Unmatched)).Msg("Some dates could not be paired")
	}

	if len(ext.Rows) > 0 {
		if err := p.save(ctx, ext); err != nil {
			return ext, err
		}
	}

	log.Info().
		Str("status", string(ext.Status)).
		Str("orientation", string(ext.Orientation)).
		Int("rows", len(ext.Rows)).
		Msg("Extraction finished")
	return ext, nil
}

func (p *Pipeline) save(ctx context.Context, ext models.Extraction) error {
	for _, s := range p.sinks {
		if err := s.Save(ctx, ext); err != nil {
			return stageError("Save", ErrPipeline, err, s.Name())
		}
		p.log.Debug().Str("sink", s.Name()).Str("image", ext.ImageName).Msg("Extraction saved")
	}
	return nil
}

// Close releases the OCR engine.
func (p *Pipeline) Close() error {
	if p.engine == nil {
		return nil
	}
	return p.engine.Close()
}
