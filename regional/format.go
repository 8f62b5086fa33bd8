// Package regional stores each visitor's locale, currency and time zone and
// formats prices and dates with them.
package regional

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"taquilla/models"
)

var (
	ErrInvalidLocale   = errors.New("invalid locale")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidTimeZone = errors.New("invalid time zone")
)

const dateLayout = "2006-01-02 15:04"

// Validate normalizes cfg in place.
func Validate(cfg *models.RegionalConfig) error {
	tag, err := language.Parse(strings.TrimSpace(cfg.Locale))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLocale, cfg.Locale)
	}
	unit, err := currency.ParseISO(strings.TrimSpace(cfg.Currency))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, cfg.Currency)
	}
	if strings.TrimSpace(cfg.TimeZone) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTimeZone)
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeZone, cfg.TimeZone)
	}
	cfg.Locale = tag.String()
	cfg.Currency = unit.String()
	return nil
}

type Formatter struct {
	cfg      models.RegionalConfig
	printer  *message.Printer
	location *time.Location
	fallback currency.Unit
}

// NewFormatter never fails: invalid parts fall back to the defaults.
func NewFormatter(cfg models.RegionalConfig) *Formatter {
	def := models.DefaultRegionalConfig()
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.MustParse(def.Locale)
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		unit = currency.MustParseISO(def.Currency)
	}
	return &Formatter{
		cfg:      cfg,
		printer:  message.NewPrinter(tag),
		location: loc,
		fallback: unit,
	}
}

func (f *Formatter) Config() models.RegionalConfig { return f.cfg }

// Price formats amount with the symbol and decimals of code, or of the
// configured currency when code is empty or unknown.
func (f *Formatter) Price(amount float64, code string) string {
	unit := f.fallback
	if code != "" {
		if u, err := currency.ParseISO(code); err == nil {
			unit = u
		}
	}
	scale, _ := currency.Standard.Rounding(unit)
	symbol := f.printer.Sprint(currency.Symbol(unit))
	return symbol + " " + f.printer.Sprint(number.Decimal(amount, number.Scale(scale)))
}

// Date renders an event date string in the configured zone. Unparsable input
// is returned unchanged.
func (f *Formatter) Date(raw string, parse func(string) (time.Time, bool)) string {
	t, ok := parse(raw)
	if !ok {
		return raw
	}
	return t.In(f.location).Format(dateLayout)
}
