package models

import (
	"fmt"

	"github.com/LJTian/GovNewsHub/internal/dates"
)

// NotAvailable fills optional fields a source does not provide.
const NotAvailable = "not available"

// NewsRecord is the normalized unit written to a source table.
type NewsRecord struct {
	PublishedDate dates.Date
	SourceName    string
	Subtitle      string
	Title         string
	Summary       string
	URL           string
}

// Column identifies one field of a NewsRecord in a table row.
type Column string

const (
	ColumnDate     Column = "date"
	ColumnSource   Column = "source"
	ColumnSubtitle Column = "subtitle"
	ColumnTitle    Column = "title"
	ColumnSummary  Column = "summary"
	ColumnURL      Column = "url"
)

// DefaultHeaders are the display names written into a new table's header row.
var DefaultHeaders = map[Column]string{
	ColumnDate:     "Data",
	ColumnSource:   "Órgão",
	ColumnSubtitle: "Subtítulo",
	ColumnTitle:    "Título",
	ColumnSummary:  "Descrição",
	ColumnURL:      "Link",
}

// DefaultColumns is the full six-column layout shared by most sources.
var DefaultColumns = []Column{ColumnDate, ColumnSource, ColumnSubtitle, ColumnTitle, ColumnSummary, ColumnURL}

// Layout maps records onto the rows of one table.
type Layout struct {
	Columns []Column
	// Headers overrides DefaultHeaders per column.
	Headers map[Column]string
}

// DefaultLayout returns the six-column layout.
func DefaultLayout() Layout {
	cols := make([]Column, len(DefaultColumns))
	copy(cols, DefaultColumns)
	return Layout{Columns: cols}
}

// Validate checks that the layout has a title and url, starts with the date
// and ends with the url.
func (l Layout) Validate() error {
	if len(l.Columns) < 3 {
		return fmt.Errorf("layout needs at least date, title and url columns, got %v", l.Columns)
	}
	seen := make(map[Column]bool, len(l.Columns))
	for _, c := range l.Columns {
		if _, ok := DefaultHeaders[c]; !ok {
			return fmt.Errorf("unknown column %q", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	if !seen[ColumnTitle] {
		return fmt.Errorf("layout has no title column")
	}
	if l.Columns[0] != ColumnDate {
		return fmt.Errorf("first column must be %q, got %q", ColumnDate, l.Columns[0])
	}
	if l.Columns[len(l.Columns)-1] != ColumnURL {
		return fmt.Errorf("last column must be %q, got %q", ColumnURL, l.Columns[len(l.Columns)-1])
	}
	return nil
}

// Header returns the header row.
func (l Layout) Header() []string {
	out := make([]string, 0, len(l.Columns))
	for _, c := range l.Columns {
		if h, ok := l.Headers[c]; ok && h != "" {
			out = append(out, h)
			continue
		}
		out = append(out, DefaultHeaders[c])
	}
	return out
}

// Row renders rec in column order.
func (l Layout) Row(rec NewsRecord) []string {
	out := make([]string, 0, len(l.Columns))
	for _, c := range l.Columns {
		out = append(out, rec.Field(c))
	}
	return out
}

// Field returns the cell value of rec for column c.
func (r NewsRecord) Field(c Column) string {
	switch c {
	case ColumnDate:
		return r.PublishedDate.String()
	case ColumnSource:
		return r.SourceName
	case ColumnSubtitle:
		return r.Subtitle
	case ColumnTitle:
		return r.Title
	case ColumnSummary:
		return r.Summary
	case ColumnURL:
		return r.URL
	}
	return ""
}

// Order is where new rows land in a table.
type Order string

const (
	// OrderAppend adds rows after the last row.
	OrderAppend Order = "append"
	// OrderNewestFirst inserts rows right below the header.
	OrderNewestFirst Order = "newest_first"
)

func (o Order) Valid() bool {
	return o == "" || o == OrderAppend || o == OrderNewestFirst
}
