package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"licensetable/pkg/models"
)

func TestRecordConversion(t *testing.T) {
	ext := models.Extraction{
		ImageName:   "licence.jpg",
		Status:      models.StatusSuccess,
		Orientation: models.Portrait,
		Rows: []models.Row{
			{Category: "A1", IssuedDate: "01.01.2019", ExpiryDate: "09.09.2039"},
			{Category: "B", IssuedDate: "02.02.2018", ExpiryDate: "08.08.2038"},
		},
	}

	rec := toRecord(ext)
	require.Len(t, rec.Rows, 2)
	assert.Equal(t, "Detection Successful.", rec.Status)
	assert.Equal(t, "portrait", rec.Orientation)
	assert.Equal(t, 0, rec.Rows[0].Position)
	assert.Equal(t, 1, rec.Rows[1].Position)
	assert.Equal(t, "B", rec.Rows[1].Category)

	assert.Equal(t, ext, fromRecord(rec))
}

func TestRecordConversionWithoutRows(t *testing.T) {
	ext := models.Extraction{ImageName: "blank.png", Status: models.StatusNoOCROutput}

	back := fromRecord(toRecord(ext))
	assert.Equal(t, ext.Status, back.Status)
	assert.Empty(t, back.Rows)
	assert.Empty(t, back.Orientation)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return &Store{db: db, log: zerolog.Nop()}, mock
}

func TestSaveInsertsExtractionAndRows(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "extraction_records"`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "front.jpg", "Detection Successful.", "landscape").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "row_records"`)).
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 7, 0, "AM", "01.01.2010", "01.01.2030",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 7, 1, "B", "02.02.2012", "02.02.2032",
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(70).AddRow(71))
	mock.ExpectCommit()

	err := st.Save(context.Background(), models.Extraction{
		ImageName:   "front.jpg",
		Status:      models.StatusSuccess,
		Orientation: models.Landscape,
		Rows: []models.Row{
			{Category: "AM", IssuedDate: "01.01.2010", ExpiryDate: "01.01.2030"},
			{Category: "B", IssuedDate: "02.02.2012", ExpiryDate: "02.02.2032"},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportsInsertFailure(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "extraction_records"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := st.Save(context.Background(), models.Extraction{ImageName: "front.jpg", Status: models.StatusSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "front.jpg")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListNewestFirstWithOrderedRows(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "extraction_records" .*ORDER BY id desc LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_name", "status", "orientation"}).
			AddRow(2, "new.jpg", "Detection Successful.", "landscape").
			AddRow(1, "old.jpg", "Some rows are missing in the result.", "portrait"))
	mock.ExpectQuery(`SELECT \* FROM "row_records" WHERE .*"extraction_id" IN .*ORDER BY position`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "extraction_id", "position", "category", "issued_date", "expiry_date"}).
			AddRow(10, 1, 0, "AM", "01.01.2010", "01.01.2030").
			AddRow(11, 1, 1, "C", "03.03.2013", "03.03.2033").
			AddRow(20, 2, 0, "B", "02.02.2012", "02.02.2032"))

	items, err := st.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "new.jpg", items[0].ImageName)
	assert.Equal(t, []models.Row{{Category: "B", IssuedDate: "02.02.2012", ExpiryDate: "02.02.2032"}}, items[0].Rows)

	assert.Equal(t, "old.jpg", items[1].ImageName)
	assert.Equal(t, models.StatusRowsMissing, items[1].Status)
	assert.Equal(t, models.Portrait, items[1].Orientation)
	assert.Equal(t, []string{"AM", "C"}, []string{items[1].Rows[0].Category, items[1].Rows[1].Category})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWithoutLimitReturnsEverything(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "extraction_records" .*ORDER BY id desc$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_name", "status", "orientation"}))

	items, err := st.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatest(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "extraction_records" WHERE image_name = \$1 .*ORDER BY id desc`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_name", "status", "orientation"}).
			AddRow(3, "front.jpg", "Unable to identify dates properly.", "landscape"))
	mock.ExpectQuery(`SELECT \* FROM "row_records" WHERE .*"extraction_id" = .*ORDER BY position`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "extraction_id", "position", "category", "issued_date", "expiry_date"}))

	ext, err := st.Latest(context.Background(), "front.jpg")
	require.NoError(t, err)
	assert.Equal(t, "front.jpg", ext.ImageName)
	assert.Equal(t, models.StatusDatesMissing, ext.Status)
	assert.Empty(t, ext.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "extraction_records" WHERE image_name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_name", "status", "orientation"}))

	_, err := st.Latest(context.Background(), "missing.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "missing.jpg")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectClose()

	require.NoError(t, st.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
