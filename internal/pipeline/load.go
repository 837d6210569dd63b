package pipeline

import (
	"context"
	"fmt"

	"licensetable/internal/config"
	"licensetable/internal/detector"
	"licensetable/internal/logger"
	"licensetable/internal/ocr"
	"licensetable/internal/output"
	"licensetable/internal/sheets"
	"licensetable/internal/store"
)

// Load builds the pipeline described by cfg: the detector client (checked for
// health), the OCR engine and the sinks. The CSV sink is always present; the
// Google Sheet and PostgreSQL sinks are added when their URLs are set.
func Load(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	const op = "Load"
	log := logger.WithComponent("pipeline")

	var det detector.Detector = detector.Passthrough{}
	if cfg.Detector.URL != "" {
		client := detector.NewClient(DetectorConfig(cfg))
		if err := client.CheckHealth(ctx); err != nil {
			return nil, stageError(op, ErrModelLoad, err, "detector")
		}
		det = client
		log.Debug().Str("url", cfg.Detector.URL).Msg("Detector service is healthy")
	} else {
		log.Warn().Msg("No detector URL configured, OCR will read the whole image")
	}

	engine, err := ocr.New(ctx, OCRConfig(cfg))
	if err != nil {
		return nil, stageError(op, ErrModelLoad, err, "ocr")
	}

	sinks := []Sink{output.NewCSVWriter(cfg.Output.SaveDir)}

	if cfg.Sheets.URL != "" {
		svc, err := sheets.NewSheetsService(ctx, cfg.Sheets.URL, cfg.Sheets.Worksheet)
		if err != nil {
			engine.Close()
			return nil, stageError(op, ErrPipeline, err, "sheets")
		}
		sinks = append(sinks, svc)
	}

	if cfg.Database.URL != "" {
		st, err := store.Open(cfg.Database.URL)
		if err != nil {
			engine.Close()
			return nil, stageError(op, ErrPipeline, err, "database")
		}
		sinks = append(sinks, st)
	}

	p, err := New(det, engine, Options{
		Vocabulary:    cfg.Vocabulary(),
		TextThreshold: cfg.Constraints.OCRTextThreshold,
	}, sinks...)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info().
		Str("ocr_engine", cfg.OCR.Engine).
		Int("sinks", len(sinks)).
		Msg("Pipeline loaded")
	return p, nil
}

// DetectorConfig maps the configuration onto the detector client settings.
func DetectorConfig(cfg *config.Config) detector.Config {
	return detector.Config{
		URL:           cfg.Detector.URL,
		ConfThreshold: cfg.Detector.ConfThreshold,
		Margin:        cfg.Detector.Margin,
		TableClass:    cfg.Detector.TableClass,
		Timeout:       cfg.Detector.Timeout,
	}
}

// OCRConfig maps the configuration onto the OCR engine settings.
func OCRConfig(cfg *config.Config) ocr.Config {
	return ocr.Config{
		Engine:           cfg.OCR.Engine,
		Languages:        cfg.OCR.Languages,
		ProjectID:        cfg.DocumentAI.ProjectID,
		Location:         cfg.DocumentAI.Location,
		ProcessorID:      cfg.DocumentAI.ProcessorID,
		ProcessorVersion: cfg.DocumentAI.ProcessorVersion,
		Timeout:          cfg.OCR.Timeout,
	}
}

// Store returns the PostgreSQL sink, if one is configured.
func (p *Pipeline) Store() (*store.Store, bool) {
	for _, s := range p.sinks {
		if st, ok := s.(*store.Store); ok {
			return st, true
		}
	}
	return nil, false
}
