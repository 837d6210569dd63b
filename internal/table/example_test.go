package table_test

import (
	"fmt"

	"licensetable/internal/table"
	"licensetable/pkg/models"
)

// Example rebuilds the rows of a landscape table where the categories run down
// the left edge and each row holds an issued and an expiry date.
func Example() {
	categories := []models.CenterPoint{
		{Label: "AM", X: 20, Y: 100},
		{Label: "B", X: 20, Y: 250},
		{Label: "C", X: 20, Y: 310},
	}
	dates := []models.CenterPoint{
		{Label: "01.01.2010", X: 200, Y: 100},
		{Label: "01.01.2030", X: 300, Y: 100},
		{Label: "02.02.2012", X: 200, Y: 250},
		{Label: "02.02.2032", X: 300, Y: 250},
	}

	res, err := table.IdentifyRows(dates, models.Landscape, categories, models.DefaultVocabulary())
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(res.Status)
	for _, r := range res.Rows {
		fmt.Println(r.Category, r.IssuedDate, r.ExpiryDate)
	}
	// Output:
	// Detection Successful.
	// AM 01.01.2010 01.01.2030
	// B 02.02.2012 02.02.2032
}
