package table

import (
	"math"

	"licensetable/pkg/models"
)

// DatesCenter is the mean position of the dates across the columns
// (x for landscape, y for portrait).
func DatesCenter(dates []models.CenterPoint, o models.Orientation) float64 {
	if len(dates) == 0 {
		return 0
	}
	axis := crossAxis(o)
	total := 0.0
	for _, d := range dates {
		total += d.Coord(axis)
	}
	return total / float64(len(dates))
}

// Bias reports 1 when the completed categories advance in increasing
// coordinate along the row axis (first to last canonical category), else 0.
func Bias(completed []models.CenterPoint, o models.Orientation) int {
	if len(completed) == 0 {
		return 0
	}
	axis := rowAxis(o)
	if completed[len(completed)-1].Coord(axis)-completed[0].Coord(axis) > 0 {
		return 1
	}
	return 0
}

// CategorizeDates splits dates at center into the issued and the expiry column.
// Which side is "issued" follows the reading direction given by bias.
func CategorizeDates(dates []models.CenterPoint, center float64, o models.Orientation, bias int) (issued, expiry []models.CenterPoint) {
	axis := crossAxis(o)
	var below, above []models.CenterPoint
	for _, d := range dates {
		if d.Coord(axis) >= center {
			above = append(above, d)
		} else {
			below = append(below, d)
		}
	}

	if (bias == 1 && o == models.Landscape) || (bias == 0 && o == models.Portrait) {
		return below, above
	}
	return above, below
}

// PairDates matches issued and expiry dates that are each other's nearest
// neighbour along the row axis. Ties go to the first candidate. Pairs come out
// in expiry order; dates from all that ended up in no pair are returned as
// unmatched, in their original order. When either column is empty nothing
// can pair and every date is unmatched.
func PairDates(all, issued, expiry []models.CenterPoint, o models.Orientation) (pairs []models.DatePair, unmatched []models.CenterPoint) {
	axis := rowAxis(o)
	paired := make(map[models.CenterPoint]int)

	if len(issued) > 0 && len(expiry) > 0 {
		nearestExpiry := make([]int, len(issued))
		for i, is := range issued {
			nearestExpiry[i] = nearest(expiry, is.Coord(axis), axis)
		}
		for j, ex := range expiry {
			i := nearest(issued, ex.Coord(axis), axis)
			if nearestExpiry[i] != j {
				continue
			}
			pairs = append(pairs, models.DatePair{Issued: issued[i], Expiry: ex})
			paired[issued[i]]++
			paired[ex]++
		}
	}

	for _, d := range all {
		if paired[d] > 0 {
			paired[d]--
			continue
		}
		unmatched = append(unmatched, d)
	}
	return pairs, unmatched
}

func nearest(points []models.CenterPoint, pos float64, axis int) int {
	best := 0
	bestDist := math.Inf(1)
	for i, p := range points {
		if d := math.Abs(p.Coord(axis) - pos); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
