package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/models"
)

// DateFrom says where the raw date text of an item is read.
type DateFrom string

const (
	DateFromText   DateFrom = "text"
	DateFromHref   DateFrom = "href"
	DateFromParent DateFrom = "parent"
)

// DatePolicy decides whether an item belongs to the target date.
type DatePolicy string

const (
	// PolicyExact compares the normalized raw date with the target date.
	PolicyExact DatePolicy = "exact"
	// PolicyLastModified requires a marker in the raw text and compares the
	// date token that follows it.
	PolicyLastModified DatePolicy = "last_modified"
)

// PageToken is replaced by the page number in URLTemplate.
const PageToken = "{page}"

type Selectors struct {
	// Item selects the repeated item element; empty means the whole page
	// is a single item.
	Item     string `yaml:"item"`
	Title    string `yaml:"title"`
	Link     string `yaml:"link"`
	Subtitle string `yaml:"subtitle"`
	Summary  string `yaml:"summary"`
}

type DateRule struct {
	Selector string         `yaml:"selector"`
	From     DateFrom       `yaml:"from"`
	Pattern  string         `yaml:"pattern"`
	Formats  []dates.Format `yaml:"formats"`
	Policy   DatePolicy     `yaml:"policy"`
	Marker   string         `yaml:"marker"`
}

// SourceConfig describes one news source.
type SourceConfig struct {
	Name string `yaml:"name"`
	// Table defaults to Name.
	Table string `yaml:"table"`

	URL         string `yaml:"url"`
	URLTemplate string `yaml:"url_template"`
	MaxPages    int    `yaml:"max_pages"`

	SourceName         string `yaml:"source_name"`
	SourceNameSelector string `yaml:"source_name_selector"`
	SourceNameAttr     string `yaml:"source_name_attr"`

	Columns []models.Column   `yaml:"columns"`
	Headers map[string]string `yaml:"headers"`
	Order   models.Order      `yaml:"order"`

	Selectors Selectors `yaml:"selectors"`
	// LinkFromItem reads the link from the item element itself.
	LinkFromItem     bool     `yaml:"link_from_item"`
	Date             DateRule `yaml:"date"`
	SummaryStripDate bool     `yaml:"summary_strip_date"`
}

func (c SourceConfig) TableName() string {
	if c.Table != "" {
		return c.Table
	}
	return c.Name
}

func (c SourceConfig) Paginated() bool { return c.URLTemplate != "" }

// PageURLs lists the pages to fetch; maxPages overrides MaxPages when > 0.
func (c SourceConfig) PageURLs(maxPages int) []string {
	if !c.Paginated() {
		return []string{c.URL}
	}
	n := c.MaxPages
	if maxPages > 0 {
		n = maxPages
	}
	if n < 1 {
		n = 1
	}
	out := make([]string, 0, n)
	for p := 1; p <= n; p++ {
		out = append(out, strings.ReplaceAll(c.URLTemplate, PageToken, strconv.Itoa(p)))
	}
	return out
}

// Layout returns the table layout, the six default columns when none are
// configured.
func (c SourceConfig) Layout() models.Layout {
	l := models.DefaultLayout()
	if len(c.Columns) > 0 {
		l.Columns = append([]models.Column(nil), c.Columns...)
	}
	if len(c.Headers) > 0 {
		l.Headers = make(map[models.Column]string, len(c.Headers))
		for k, v := range c.Headers {
			l.Headers[models.Column(k)] = v
		}
	}
	return l
}

func (c SourceConfig) formats() []dates.Format {
	if len(c.Date.Formats) > 0 {
		return c.Date.Formats
	}
	return dates.DefaultFormats
}

func (c SourceConfig) policy() DatePolicy {
	if c.Date.Policy == "" {
		return PolicyExact
	}
	return c.Date.Policy
}

// Validate checks the configuration without fetching anything.
func (c SourceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("source: name is required")
	}
	switch {
	case c.URL == "" && c.URLTemplate == "":
		return fmt.Errorf("source %s: url or url_template is required", c.Name)
	case c.URL != "" && c.URLTemplate != "":
		return fmt.Errorf("source %s: url and url_template are exclusive", c.Name)
	case c.URLTemplate != "" && !strings.Contains(c.URLTemplate, PageToken):
		return fmt.Errorf("source %s: url_template must contain %s", c.Name, PageToken)
	case c.MaxPages < 0:
		return fmt.Errorf("source %s: max_pages must not be negative", c.Name)
	}
	if c.SourceName == "" && c.SourceNameSelector == "" {
		return fmt.Errorf("source %s: source_name or source_name_selector is required", c.Name)
	}
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("source %s: %w", c.Name, err)
	}
	if !c.Order.Valid() {
		return fmt.Errorf("source %s: unknown order %q", c.Name, c.Order)
	}

	if c.Selectors.Title == "" {
		return fmt.Errorf("source %s: selectors.title is required", c.Name)
	}
	for field, sel := range map[string]string{
		"item":                 c.Selectors.Item,
		"title":                c.Selectors.Title,
		"link":                 c.Selectors.Link,
		"subtitle":             c.Selectors.Subtitle,
		"summary":              c.Selectors.Summary,
		"date.selector":        c.Date.Selector,
		"source_name_selector": c.SourceNameSelector,
	} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("source %s: %s selector %q: %w", c.Name, field, sel, err)
		}
	}

	switch c.Date.From {
	case "", DateFromText, DateFromHref, DateFromParent:
	default:
		return fmt.Errorf("source %s: unknown date.from %q", c.Name, c.Date.From)
	}
	if c.Date.Pattern != "" {
		if _, err := regexp.Compile(c.Date.Pattern); err != nil {
			return fmt.Errorf("source %s: date.pattern: %w", c.Name, err)
		}
	}
	for _, f := range c.Date.Formats {
		if !f.Valid() {
			return fmt.Errorf("source %s: unknown date format %q", c.Name, f)
		}
	}
	switch c.policy() {
	case PolicyExact:
	case PolicyLastModified:
		if strings.TrimSpace(c.Date.Marker) == "" {
			return fmt.Errorf("source %s: last_modified policy needs date.marker", c.Name)
		}
	default:
		return fmt.Errorf("source %s: unknown date.policy %q", c.Name, c.Date.Policy)
	}
	return nil
}
