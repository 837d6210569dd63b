package models

// Vocabulary holds the vehicle category labels in the two orderings used by
// the extraction: Sort is the canonical table order, Check is the order in
// which labels are searched for inside OCR text (longer labels first).
type Vocabulary struct {
	Sort  []string `yaml:"vehicle_categories_for_sort" json:"sort"`
	Check []string `yaml:"vehicle_categories_for_check" json:"check"`
}

// DefaultVocabulary returns the category set printed on EU driving licences.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Sort:  []string{"AM", "A1", "A2", "A", "B1", "B", "C1", "C", "D1", "D", "BE", "C1E", "CE", "DE"},
		Check: []string{"C1E", "BE", "CE", "DE", "AM", "A1", "A2", "B1", "C1", "D1", "A", "B", "C", "D"},
	}
}

// Index returns the canonical position of label.
func (v Vocabulary) Index(label string) (int, bool) {
	for i, l := range v.Sort {
		if l == label {
			return i, true
		}
	}
	return 0, false
}

// Len is the number of canonical categories.
func (v Vocabulary) Len() int {
	return len(v.Sort)
}
