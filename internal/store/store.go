// Package store keeps a history of extractions in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"licensetable/internal/logger"
	"licensetable/pkg/models"
)

// ErrNotFound is returned when no extraction matches a lookup.
var ErrNotFound = errors.New("extraction not found")

// ExtractionRecord is one processed image.
type ExtractionRecord struct {
	gorm.Model
	ImageName   string `gorm:"index"`
	Status      string
	Orientation string
	Rows        []RowRecord `gorm:"foreignKey:ExtractionID;constraint:OnDelete:CASCADE"`
}

// RowRecord is one category row of an extraction.
type RowRecord struct {
	gorm.Model
	ExtractionID uint `gorm:"index"`
	Position     int
	Category     string
	IssuedDate   string
	ExpiryDate   string
}

// Store persists extractions through gorm.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to PostgreSQL at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ExtractionRecord{}, &RowRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, log: logger.WithComponent("store")}, nil
}

// Name identifies the sink in logs.
func (s *Store) Name() string { return "postgres" }

// Save inserts ext together with its rows.
func (s *Store) Save(ctx context.Context, ext models.Extraction) error {
	rec := toRecord(ext)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save extraction %s: %w", ext.ImageName, err)
	}
	s.log.Debug().Uint("id", rec.ID).Str("image", ext.ImageName).Msg("Stored extraction")
	return nil
}

// List returns the most recent extractions, newest first. A limit of zero or
// less returns every stored extraction.
func (s *Store) List(ctx context.Context, limit int) ([]models.Extraction, error) {
	query := s.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var recs []ExtractionRecord
	err := query.Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}

	out := make([]models.Extraction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

// Latest returns the newest extraction stored for imageName.
func (s *Store) Latest(ctx context.Context, imageName string) (models.Extraction, error) {
	var rec ExtractionRecord
	err := s.db.WithContext(ctx).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("image_name = ?", imageName).
		Order("id desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Extraction{}, fmt.Errorf("%w: %s", ErrNotFound, imageName)
	}
	if err != nil {
		return models.Extraction{}, fmt.Errorf("load extraction %s: %w", imageName, err)
	}
	return fromRecord(rec), nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(ext models.Extraction) ExtractionRecord {
	rec := ExtractionRecord{
		ImageName:   ext.ImageName,
		Status:      string(ext.Status),
		Orientation: string(ext.Orientation),
		Rows:        make([]RowRecord, 0, len(ext.Rows)),
	}
	for i, r := range ext.Rows {
		rec.Rows = append(rec.Rows, RowRecord{
			Position:   i,
			Category:   r.Category,
			IssuedDate: r.IssuedDate,
			ExpiryDate: r.ExpiryDate,
		})
	}
	return rec
}

func fromRecord(rec ExtractionRecord) models.Extraction {
	ext := models.Extraction{
		ImageName:   rec.ImageName,
		Status:      models.Status(rec.Status),
		Orientation: models.Orientation(rec.Orientation),
		Rows:        make([]models.Row, 0, len(rec.Rows)),
	}
	for _, r := range rec.Rows {
		ext.Rows = append(ext.Rows, models.Row{
			Category:   r.Category,
			IssuedDate: r.IssuedDate,
			ExpiryDate: r.ExpiryDate,
		})
	}
	return ext
}
