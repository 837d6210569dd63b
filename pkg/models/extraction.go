package models

// Point is a pixel coordinate in image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is a text or object region given by its corner points.
// OCR engines usually return four corners; RectBox builds one from (x1,y1,x2,y2).
type BoundingBox []Point

// RectBox returns the four corners of an axis-aligned rectangle.
func RectBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{
		{X: x1, Y: y1},
		{X: x2, Y: y1},
		{X: x2, Y: y2},
		{X: x1, Y: y2},
	}
}

// TextDetection is a single OCR output: where, what and how sure.
type TextDetection struct {
	Box        BoundingBox `json:"box"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"` // 0.0 to 1.0
}

// CenterPoint pairs a label (category name or date text) with the center of its box.
type CenterPoint struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Coord returns the coordinate along axis 0 (x) or 1 (y).
func (c CenterPoint) Coord(axis int) float64 {
	if axis == 0 {
		return c.X
	}
	return c.Y
}

// DatePair is one matched (issued, expiry) row of dates.
type DatePair struct {
	Issued CenterPoint `json:"issued"`
	Expiry CenterPoint `json:"expiry"`
}

// Row is one line of the extracted table.
type Row struct {
	Category   string `json:"category"`
	IssuedDate string `json:"issued_date"`
	ExpiryDate string `json:"expiry_date"`
}

// Orientation is the inferred layout of the category column.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Status is the feedback message reported for a processed image.
type Status string

const (
	StatusNoOCROutput       Status = "No output from OCR."
	StatusCategoriesMissing Status = "Unable to identify categories properly."
	StatusDatesMissing      Status = "Unable to identify dates properly."
	StatusSuccess           Status = "Detection Successful."
	StatusRowsMissing       Status = "Some rows are missing in the result."
)

// HasRows reports whether the status may carry table rows.
func (s Status) HasRows() bool {
	return s == StatusSuccess || s == StatusRowsMissing
}

// Extraction is the outcome of running the pipeline on one image.
type Extraction struct {
	ImageName   string      `json:"image_name"`
	Status      Status      `json:"status"`
	Orientation Orientation `json:"orientation,omitempty"`
	Rows        []Row       `json:"rows"`
}
