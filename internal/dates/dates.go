// Package dates turns the date text found on the source pages into plain
// calendar dates and computes the run's target date.
package dates

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrParse is returned (wrapped) when no known format matches the raw text.
var ErrParse = errors.New("dates: unparseable date")

// Date is a civil calendar date without time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Of returns the calendar date of t in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// New builds a Date, reporting false when the triple is not a real day.
func New(year int, month time.Month, day int) (Date, bool) {
	if year < 1 || year > 9999 || month < time.January || month > time.December || day < 1 {
		return Date{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

func (d Date) IsZero() bool { return d == Date{} }

// String renders DD/MM/YYYY, the layout written into the tables.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// ISO renders YYYY-MM-DD.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of d in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Format names one accepted date layout.
type Format string

const (
	FormatDMYSlash         Format = "dmy_slash"
	FormatDMYDash          Format = "dmy_dash"
	FormatISO              Format = "iso"
	FormatDayMonthAbbrYear Format = "day_month_abbr_year"
)

// DefaultFormats is the priority order used when a source names none.
var DefaultFormats = []Format{FormatDMYSlash, FormatDMYDash, FormatISO}

// Valid reports whether f is a known format name.
func (f Format) Valid() bool {
	switch f {
	case FormatDMYSlash, FormatDMYDash, FormatISO, FormatDayMonthAbbrYear:
		return true
	}
	return false
}

// Normalize tries each format in order and returns the first successful parse.
func Normalize(raw string, formats []Format) (Date, error) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Date{}, fmt.Errorf("%w: empty text", ErrParse)
	}
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, f := range formats {
		if d, ok := parse(text, f); ok {
			return d, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrParse, raw)
}

func parse(text string, f Format) (Date, bool) {
	switch f {
	case FormatDMYSlash:
		return parseLayout(text, "2/1/2006")
	case FormatDMYDash:
		return parseLayout(text, "2-1-2006")
	case FormatISO:
		return parseLayout(text, "2006-01-02")
	case FormatDayMonthAbbrYear:
		return parseDayMonthYear(text)
	}
	return Date{}, false
}

func parseLayout(text, layout string) (Date, bool) {
	t, err := time.Parse(layout, text)
	if err != nil {
		return Date{}, false
	}
	return Of(t), true
}

// month abbreviations seen on the sources, English and Portuguese
var monthAbbr = map[string]time.Month{
	"jan": time.January,
	"feb": time.February, "fev": time.February,
	"mar": time.March,
	"apr": time.April, "abr": time.April,
	"may": time.May, "mai": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August, "ago": time.August,
	"sep": time.September, "set": time.September,
	"oct": time.October, "out": time.October,
	"nov": time.November,
	"dec": time.December, "dez": time.December,
}

// parseDayMonthYear accepts "7 May 2024" or "07 mai. 2024".
func parseDayMonthYear(text string) (Date, bool) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		return Date{}, false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 {
		return Date{}, false
	}
	name := strings.ToLower(strings.TrimSuffix(parts[1], "."))
	if len([]rune(name)) < 3 {
		return Date{}, false
	}
	month, ok := monthAbbr[string([]rune(name)[:3])]
	if !ok {
		return Date{}, false
	}
	if len(parts[2]) != 4 {
		return Date{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return Date{}, false
	}
	return New(year, month, day)
}

// ParseTarget reads a target-date override in DD/MM/YYYY or YYYY-MM-DD.
func ParseTarget(s string) (Date, error) {
	return Normalize(s, []Format{FormatDMYSlash, FormatISO})
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Date {
	return TodayAt(time.Now(), loc)
}

// TodayAt is Today for a fixed instant.
func TodayAt(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Of(now.In(loc))
}

// LoadLocation resolves the civil time zone, falling back to a fixed
// offset when the tz database is unavailable.
func LoadLocation(name string, fallbackOffset time.Duration) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil || loc == nil {
		return time.FixedZone(name, int(fallbackOffset.Seconds()))
	}
	return loc
}
