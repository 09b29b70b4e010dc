package report

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DateTimeLayout is used for timestamps in documents and listings.
const DateTimeLayout = "02/01/2006 15:04"

// Formatter renders amounts and durations for one locale.
type Formatter struct {
	printer  *message.Printer
	currency string
	arabic   bool
}

// NewFormatter creates a formatter for the given locale tag, e.g. "en" or "ar-SY".
func NewFormatter(locale, currency string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	base, _ := tag.Base()
	arabic, _ := language.Arabic.Base()

	return &Formatter{
		printer:  message.NewPrinter(tag),
		currency: currency,
		arabic:   base == arabic,
	}, nil
}

// DefaultFormatter returns an English formatter for SYP.
func DefaultFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.English), currency: "SYP"}
}

// Amount renders a monetary amount with grouping and at most two decimals.
func (f *Formatter) Amount(v float64) string {
	s := f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
	if f.currency == "" {
		return s
	}
	return s + " " + f.currency
}

// Number renders a plain number with grouping and at most two decimals.
func (f *Formatter) Number(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Clock renders d as HH:MM:SS, clamping negatives to zero.
func (f *Formatter) Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Hours renders d compactly, e.g. "5h 21m".
func (f *Formatter) Hours(d time.Duration) string {
	hourUnit, minuteUnit := "h", "m"
	if f.arabic {
		hourUnit, minuteUnit = "س", "د"
	}
	if d <= 0 {
		return f.printer.Sprintf("%d%s", 0, minuteUnit)
	}

	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	switch {
	case h == 0:
		return f.printer.Sprintf("%d%s", m, minuteUnit)
	case m == 0:
		return f.printer.Sprintf("%d%s", h, hourUnit)
	default:
		return f.printer.Sprintf("%d%s %d%s", h, hourUnit, m, minuteUnit)
	}
}
