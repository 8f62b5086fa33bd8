package search

import (
	"slices"
	"time"

	"taquilla/models"
)

type SortKey string

const (
	SortDateAsc   SortKey = "dateAsc"
	SortDateDesc  SortKey = "dateDesc"
	SortPriceAsc  SortKey = "priceAsc"
	SortPriceDesc SortKey = "priceDesc"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortDateAsc, SortDateDesc, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

// SortEvents returns a sorted copy of list. Ties keep their input order and an
// unknown key returns the copy unsorted.
func SortEvents(list []models.SearchEvent, key SortKey) []models.SearchEvent {
	out := slices.Clone(list)
	if out == nil {
		out = []models.SearchEvent{}
	}

	switch key {
	case SortDateAsc, SortDateDesc:
		stamps := make(map[string]time.Time, len(out))
		for _, ev := range out {
			t, _ := ParseEventDate(ev.Date)
			stamps[ev.Date] = t
		}
		slices.SortStableFunc(out, func(a, b models.SearchEvent) int {
			c := stamps[a.Date].Compare(stamps[b.Date])
			if key == SortDateDesc {
				return -c
			}
			return c
		})
	case SortPriceAsc, SortPriceDesc:
		slices.SortStableFunc(out, func(a, b models.SearchEvent) int {
			c := compareFloat(a.Price, b.Price)
			if key == SortPriceDesc {
				return -c
			}
			return c
		})
	}
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
