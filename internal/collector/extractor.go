package collector

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/LJTian/GovNewsHub/internal/dates"
)

// Candidate is one item read from a page, before any filtering.
type Candidate struct {
	Title      string
	URL        string
	Subtitle   string
	Summary    string
	RawDate    string
	SourceName string
}

// Page is the result of extracting one fetched page.
type Page struct {
	Candidates []Candidate
	// Incomplete counts items dropped for lacking a title or a link.
	Incomplete int
}

// Extractor pulls candidates out of markup according to a SourceConfig.
type Extractor struct {
	cfg     SourceConfig
	pattern *regexp.Regexp
}

func NewExtractor(cfg SourceConfig) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Extractor{cfg: cfg}
	if cfg.Date.Pattern != "" {
		e.pattern = regexp.MustCompile(cfg.Date.Pattern)
	}
	return e, nil
}

func (e *Extractor) Config() SourceConfig { return e.cfg }

// Extract reads every item of markup. Items missing a title or a link are
// counted and skipped; only unreadable markup is an error.
func (e *Extractor) Extract(markup, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Page{}, fmt.Errorf("collector: %s: parse markup: %w", e.cfg.Name, err)
	}
	base, _ := url.Parse(pageURL)
	sourceName := e.sourceName(doc)

	items := doc.Selection
	if e.cfg.Selectors.Item != "" {
		items = doc.Find(e.cfg.Selectors.Item)
	}

	var page Page
	items.Each(func(_ int, item *goquery.Selection) {
		c, ok := e.candidate(item, base)
		if !ok {
			page.Incomplete++
			return
		}
		c.SourceName = sourceName
		page.Candidates = append(page.Candidates, c)
	})
	return page, nil
}

func (e *Extractor) candidate(item *goquery.Selection, base *url.URL) (Candidate, bool) {
	sel := e.cfg.Selectors

	titleNode := first(item, sel.Title)
	title := cleanText(titleNode.Text())

	var href string
	switch {
	case e.cfg.LinkFromItem:
		href, _ = item.Attr("href")
	case sel.Link != "":
		href, _ = first(item, sel.Link).Attr("href")
	default:
		href, _ = titleNode.Attr("href")
	}
	link := resolve(base, href)

	if title == "" || link == "" {
		return Candidate{}, false
	}

	c := Candidate{
		Title:    title,
		URL:      link,
		Subtitle: textOf(item, sel.Subtitle),
		Summary:  textOf(item, sel.Summary),
		RawDate:  e.rawDate(item),
	}
	if e.cfg.SummaryStripDate {
		c.Summary = stripDate(c.Summary, c.RawDate)
	}
	return c, true
}

func (e *Extractor) rawDate(item *goquery.Selection) string {
	node := first(item, e.cfg.Date.Selector)

	var raw string
	switch e.cfg.Date.From {
	case DateFromHref:
		raw, _ = node.Attr("href")
	case DateFromParent:
		raw = spacedText(node.Parent())
	default:
		raw = spacedText(node)
	}
	raw = cleanText(raw)

	if e.pattern == nil {
		return raw
	}
	m := e.pattern.FindStringSubmatch(raw)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return strings.TrimSpace(m[1])
	default:
		return strings.TrimSpace(m[0])
	}
}

func (e *Extractor) sourceName(doc *goquery.Document) string {
	if e.cfg.SourceNameSelector != "" {
		node := doc.Find(e.cfg.SourceNameSelector).First()
		var name string
		if e.cfg.SourceNameAttr != "" {
			name, _ = node.Attr(e.cfg.SourceNameAttr)
		} else {
			name = node.Text()
		}
		if name = cleanText(name); name != "" {
			return name
		}
	}
	return e.cfg.SourceName
}

// MatchDate reports whether c belongs to target under the source's date
// policy. A date that cannot be read is returned as an error wrapping
// dates.ErrParse.
func (e *Extractor) MatchDate(c Candidate, target dates.Date) (dates.Date, bool, error) {
	raw := c.RawDate
	if e.cfg.policy() == PolicyLastModified {
		token, ok := afterMarker(raw, e.cfg.Date.Marker)
		if !ok {
			return dates.Date{}, false, nil
		}
		raw = token
	}
	d, err := dates.Normalize(raw, e.cfg.formats())
	if err != nil {
		return dates.Date{}, false, fmt.Errorf("collector: %s: date of %s: %w", e.cfg.Name, c.URL, err)
	}
	return d, d == target, nil
}

var dateToken = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{4}|\d{4}-\d{2}-\d{2}`)

// afterMarker finds marker in text (case-insensitive) and returns the first
// date-like token following it.
func afterMarker(text, marker string) (string, bool) {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(strings.TrimSpace(marker)))
	if idx < 0 {
		return "", false
	}
	rest := lower[idx+len(strings.ToLower(strings.TrimSpace(marker))):]
	tok := dateToken.FindString(rest)
	return tok, true
}

func first(item *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return item
	}
	return item.Find(selector).First()
}

func textOf(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return cleanText(item.Find(selector).First().Text())
}

// spacedText joins text nodes with a space so "<h3>07</h3><div>May 2024</div>"
// reads as "07 May 2024".
func spacedText(s *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return cleanText(strings.Join(parts, " "))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// stripDate removes the date and its separator from a "date - text" summary.
func stripDate(summary, raw string) string {
	if raw == "" {
		return summary
	}
	out := strings.Replace(summary, raw, "", 1)
	out = strings.TrimLeft(out, " -–—:|")
	return strings.TrimSpace(out)
}
