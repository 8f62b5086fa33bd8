package search

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taquilla/models"
)

var ErrInvalidFilter = errors.New("invalid filter")

const dayLayout = "2006-01-02"

// Filters is the browse criteria carried in the storefront query string.
// Zero values mean "not set".
type Filters struct {
	Country   string
	City      string
	Category  string
	DateFrom  *time.Time
	DateTo    *time.Time
	MinPrice  *float64
	MaxPrice  *float64
	AdultOnly bool
	SavedOnly bool
	Vendors   []string
}

// IDSet is a set of event ids, typically the visitor's favorites.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// ApplyFilters keeps the events that pass every predicate. INACTIVE events
// never pass.
func ApplyFilters(list []models.SearchEvent, f Filters, favorites IDSet) []models.SearchEvent {
	var dateTo time.Time
	if f.DateTo != nil {
		dateTo = f.DateTo.Add(24*time.Hour - time.Millisecond)
	}
	vendors := make([]string, 0, len(f.Vendors))
	for _, v := range f.Vendors {
		if v = strings.TrimSpace(v); v != "" {
			vendors = append(vendors, v)
		}
	}

	out := make([]models.SearchEvent, 0, len(list))
	for _, ev := range list {
		if ev.Status == models.StatusInactive {
			continue
		}
		if f.SavedOnly && !favorites.Has(ev.ID) {
			continue
		}
		if f.MinPrice != nil && ev.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && ev.Price > *f.MaxPrice {
			continue
		}
		if f.AdultOnly && (ev.MinAge == nil || *ev.MinAge < 18) {
			continue
		}
		if len(vendors) > 0 && !matchesVendor(ev, vendors) {
			continue
		}
		if f.Country != "" || f.City != "" {
			loc := ParseLocation(ev.Location)
			if f.Country != "" && loc.Country != f.Country {
				continue
			}
			if f.City != "" && loc.City != f.City {
				continue
			}
		}
		if f.Category != "" && DeriveCategory(ev.Name) != f.Category {
			continue
		}
		if f.DateFrom != nil || f.DateTo != nil {
			at, ok := ParseEventDate(ev.Date)
			if !ok {
				continue
			}
			if f.DateFrom != nil && at.Before(*f.DateFrom) {
				continue
			}
			if f.DateTo != nil && at.After(dateTo) {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}

func matchesVendor(ev models.SearchEvent, vendors []string) bool {
	for _, v := range vendors {
		if ev.VendorID != "" && ev.VendorID == v {
			return true
		}
		if ev.VendorName != "" && strings.EqualFold(ev.VendorName, v) {
			return true
		}
	}
	return false
}

var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	dayLayout,
}

// ParseEventDate reads the ISO date strings the remote API emits. Values
// without a zone are taken as UTC.
func ParseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseFilters reads filters from a storefront query string.
func ParseFilters(q url.Values) (Filters, error) {
	f := Filters{
		Country:   strings.TrimSpace(q.Get("country")),
		City:      strings.TrimSpace(q.Get("city")),
		Category:  strings.TrimSpace(q.Get("category")),
		AdultOnly: parseBool(q.Get("adultOnly")),
		SavedOnly: parseBool(q.Get("savedOnly")),
	}

	var err error
	if f.MinPrice, err = parsePrice(q, "minPrice"); err != nil {
		return Filters{}, err
	}
	if f.MaxPrice, err = parsePrice(q, "maxPrice"); err != nil {
		return Filters{}, err
	}
	if f.DateFrom, err = parseDay(q, "dateFrom"); err != nil {
		return Filters{}, err
	}
	if f.DateTo, err = parseDay(q, "dateTo"); err != nil {
		return Filters{}, err
	}

	for _, raw := range q["vendors"] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				f.Vendors = append(f.Vendors, v)
			}
		}
	}
	return f, nil
}

// Values renders f back into query parameters understood by ParseFilters.
func (f Filters) Values() url.Values {
	v := url.Values{}
	setIf := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	setIf("country", f.Country)
	setIf("city", f.City)
	setIf("category", f.Category)
	if f.DateFrom != nil {
		v.Set("dateFrom", f.DateFrom.Format(dayLayout))
	}
	if f.DateTo != nil {
		v.Set("dateTo", f.DateTo.Format(dayLayout))
	}
	if f.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	if f.AdultOnly {
		v.Set("adultOnly", "true")
	}
	if f.SavedOnly {
		v.Set("savedOnly", "true")
	}
	if len(f.Vendors) > 0 {
		v.Set("vendors", strings.Join(f.Vendors, ","))
	}
	return v
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func parsePrice(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, key, raw)
	}
	return &v, nil
}

func parseDay(q url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dayLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, key, raw)
	}
	return &t, nil
}
