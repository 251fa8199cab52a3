package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/LJTian/GovNewsHub/internal/collector"
	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/models"
)

// MaxCellRunes stays under the 50000 character cell limit of spreadsheets.
const MaxCellRunes = 50000

// SimpleProcessor turns an accepted candidate into the record written to
// its table.
type SimpleProcessor struct {
	placeholder string
	maxRunes    int
}

func NewSimpleProcessor(placeholder string) *SimpleProcessor {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = models.NotAvailable
	}
	return &SimpleProcessor{placeholder: placeholder, maxRunes: MaxCellRunes}
}

// Process cleans c. published is the date the candidate matched on.
func (p *SimpleProcessor) Process(c collector.Candidate, published dates.Date) models.NewsRecord {
	return models.NewsRecord{
		PublishedDate: published,
		SourceName:    p.orPlaceholder(c.SourceName),
		Subtitle:      p.orPlaceholder(c.Subtitle),
		Title:         p.clean(c.Title),
		Summary:       p.orPlaceholder(c.Summary),
		URL:           strings.TrimSpace(c.URL),
	}
}

func (p *SimpleProcessor) orPlaceholder(s string) string {
	if s = p.clean(s); s == "" {
		return p.placeholder
	}
	return s
}

func (p *SimpleProcessor) clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, p.maxRunes)
}

// truncateRunes cuts s to limit runes, the last one being an ellipsis.
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
