// Package search derives the storefront's browse view from a flat list of
// events: facets, filters, sort orders and pages. Nothing here does I/O.
package search

import (
	"sort"
	"strings"

	"taquilla/models"
)

const CategoryOther = "Otros"

// ParseLocation splits "City, Country". With more than two parts the first is
// the city and the last the country; without a comma the whole string is the city.
func ParseLocation(location string) models.Location {
	parts := strings.Split(location, ",")
	if len(parts) < 2 {
		return models.Location{City: strings.TrimSpace(location)}
	}
	return models.Location{
		City:    strings.TrimSpace(parts[0]),
		Country: strings.TrimSpace(parts[len(parts)-1]),
	}
}

// categoryRules are checked in order; the first hit wins.
var categoryRules = []struct {
	category string
	keywords []string
}{
	{"Festival", []string{"festival"}},
	{"Concierto", []string{"concierto"}},
	{"Teatro", []string{"teatro", "obra"}},
	{"Feria", []string{"feria"}},
	{"Discoteca", []string{"discoteca", "club"}},
}

// DeriveCategory guesses a category from keywords in the event name.
func DeriveCategory(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// BuildFacets collects the distinct countries, cities and categories of events.
func BuildFacets(events []models.SearchEvent) models.Facets {
	countries := map[string]struct{}{}
	cities := map[string]struct{}{}
	categories := map[string]struct{}{}
	byCountry := map[string]map[string]struct{}{}

	for _, ev := range events {
		loc := ParseLocation(ev.Location)
		categories[DeriveCategory(ev.Name)] = struct{}{}
		if loc.City != "" {
			cities[loc.City] = struct{}{}
		}
		if loc.Country == "" {
			continue
		}
		countries[loc.Country] = struct{}{}
		if byCountry[loc.Country] == nil {
			byCountry[loc.Country] = map[string]struct{}{}
		}
		if loc.City != "" {
			byCountry[loc.Country][loc.City] = struct{}{}
		}
	}

	facets := models.Facets{
		Countries:       sortedKeys(countries),
		Cities:          sortedKeys(cities),
		Categories:      sortedKeys(categories),
		CitiesByCountry: make(map[string][]string, len(byCountry)),
	}
	for country, set := range byCountry {
		facets.CitiesByCountry[country] = sortedKeys(set)
	}
	return facets
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
