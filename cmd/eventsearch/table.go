package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"taquilla/models"
	"taquilla/search"
)

const maxCellWidth = 32

var headers = []string{"FECHA", "EVENTO", "CIUDAD", "PAÍS", "CATEGORÍA", "PRECIO", "ESTADO"}

func eventRow(ev models.SearchEvent) []string {
	loc := search.ParseLocation(ev.Location)
	price := strconv.FormatFloat(ev.Price, 'f', -1, 64)
	if ev.Currency != "" {
		price += " " + ev.Currency
	}
	return []string{
		ev.Date,
		ev.Name,
		loc.City,
		loc.Country,
		search.DeriveCategory(ev.Name),
		price,
		string(ev.Status),
	}
}

// renderTable aligns columns by display width so accented and wide
// characters do not skew the layout.
func renderTable(items []models.SearchEvent) string {
	if len(items) == 0 {
		return "Sin resultados\n"
	}

	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, append([]string(nil), headers...))
	for _, ev := range items {
		rows = append(rows, eventRow(ev))
	}

	widths := make([]int, len(headers))
	for i, row := range rows {
		for j, cell := range row {
			cell = runewidth.Truncate(cell, maxCellWidth, "…")
			rows[i][j] = cell
			widths[j] = max(widths[j], runewidth.StringWidth(cell))
		}
	}

	var b strings.Builder
	for _, row := range rows {
		for j, cell := range row {
			if j > 0 {
				b.WriteString("  ")
			}
			if j == len(row)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(runewidth.FillRight(cell, widths[j]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func renderFacets(f models.Facets) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Países (%d): %s\n", len(f.Countries), strings.Join(f.Countries, ", "))
	fmt.Fprintf(&b, "Ciudades (%d): %s\n", len(f.Cities), strings.Join(f.Cities, ", "))
	fmt.Fprintf(&b, "Categorías (%d): %s\n", len(f.Categories), strings.Join(f.Categories, ", "))
	return b.String()
}
