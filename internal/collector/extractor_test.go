package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LJTian/GovNewsHub/internal/dates"
)

func day(y int, m time.Month, d int) dates.Date {
	return dates.Date{Year: y, Month: m, Day: d}
}

const govListing = `<html><head><meta property="og:site_name" content="Ministério da Educação"></head>
<body><ul>
<li>
  <div class="subtitulo-noticia">Ensino Superior</div>
  <h2 class="titulo"><a href="https://www.gov.br/mec/a">Abertas as inscrições</a></h2>
  <span class="descricao"><span class="data">07/05/2024</span> - Prazo vai até sexta</span>
</li>
<li>
  <h2 class="titulo"><a href="https://www.gov.br/mec/b">  Outra   notícia </a></h2>
  <span class="descricao"><span class="data">06/05/2024</span> - Ontem</span>
</li>
<li><span class="data">07/05/2024</span> sem título</li>
<li>menu</li>
</ul></body></html>`

func govListingConfig() SourceConfig {
	return SourceConfig{
		Name:               "mec",
		URL:                "https://www.gov.br/mec/pt-br/assuntos/noticias",
		SourceName:         "MEC",
		SourceNameSelector: `meta[property="og:site_name"]`,
		SourceNameAttr:     "content",
		Selectors: Selectors{
			Item:     "li",
			Title:    "h2.titulo a",
			Subtitle: "div.subtitulo-noticia",
			Summary:  "span.descricao",
		},
		Date:             DateRule{Selector: "span.data"},
		SummaryStripDate: true,
	}
}

func TestExtractGovListing(t *testing.T) {
	ex, err := NewExtractor(govListingConfig())
	require.NoError(t, err)

	page, err := ex.Extract(govListing, "https://www.gov.br/mec/pt-br/assuntos/noticias")
	require.NoError(t, err)
	require.Equal(t, 2, page.Incomplete)
	require.Len(t, page.Candidates, 2)

	c := page.Candidates[0]
	require.Equal(t, Candidate{
		Title:      "Abertas as inscrições",
		URL:        "https://www.gov.br/mec/a",
		Subtitle:   "Ensino Superior",
		Summary:    "Prazo vai até sexta",
		RawDate:    "07/05/2024",
		SourceName: "Ministério da Educação",
	}, c)
	require.Equal(t, "Outra notícia", page.Candidates[1].Title)
	require.Empty(t, page.Candidates[1].Subtitle)

	d, ok, err := ex.MatchDate(c, day(2024, time.May, 7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, day(2024, time.May, 7), d)

	_, ok, err = ex.MatchDate(page.Candidates[1], day(2024, time.May, 7))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExtractSourceNameFallback(t *testing.T) {
	ex, err := NewExtractor(govListingConfig())
	require.NoError(t, err)

	page, err := ex.Extract(`<ul><li><h2 class="titulo"><a href="/x">T</a></h2></li></ul>`, "https://www.gov.br/mec/")
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	require.Equal(t, "MEC", page.Candidates[0].SourceName)
	require.Equal(t, "https://www.gov.br/x", page.Candidates[0].URL)
}

func TestExtractAnvisaDatePrefix(t *testing.T) {
	cfg := SourceConfig{
		Name:       "anvisa",
		URL:        "https://www.gov.br/anvisa/pt-br/assuntos/noticias-anvisa",
		SourceName: "ANVISA",
		Selectors: Selectors{
			Item:     "ul.noticias.listagem-noticias-com-foto > li",
			Title:    "h2.titulo a",
			Subtitle: "div.subtitulo-noticia",
			Summary:  "span.descricao",
		},
		Date:             DateRule{Selector: "span.descricao", Pattern: `^\s*(\d{2}/\d{2}/\d{4})`},
		SummaryStripDate: true,
	}
	ex, err := NewExtractor(cfg)
	require.NoError(t, err)

	markup := `<ul class="noticias listagem-noticias-com-foto">
<li><h2 class="titulo"><a href="https://www.gov.br/anvisa/n1">Alerta</a></h2>
<span class="descricao">07/05/2024 - Recolhimento de lote</span></li>
<li><h2 class="titulo"><a href="https://www.gov.br/anvisa/n2">Sem data</a></h2>
<span class="descricao">Texto corrido</span></li>
</ul>`
	page, err := ex.Extract(markup, cfg.URL)
	require.NoError(t, err)
	require.Len(t, page.Candidates, 2)
	require.Equal(t, "07/05/2024", page.Candidates[0].RawDate)
	require.Equal(t, "Recolhimento de lote", page.Candidates[0].Summary)

	_, _, err = ex.MatchDate(page.Candidates[1], day(2024, time.May, 7))
	require.True(t, errors.Is(err, dates.ErrParse))
}

func TestExtractUndimeDateFromHref(t *testing.T) {
	cfg := SourceConfig{
		Name:       "undime",
		URL:        "https://undime.org.br/noticia/page/1",
		SourceName: "Undime",
		Columns:    nil,
		Selectors: Selectors{
			Item:    "div.noticia.mt-4.shadow2.p-3.border-radius",
			Title:   "h4",
			Link:    "a[href]",
			Summary: "p.acessibilidade > a",
		},
		Date: DateRule{
			Selector: "a[href]",
			From:     DateFromHref,
			Pattern:  `(\d{2}-\d{2}-\d{4})`,
			Formats:  []dates.Format{dates.FormatDMYDash},
		},
	}
	ex, err := NewExtractor(cfg)
	require.NoError(t, err)

	markup := `<div class="noticia mt-4 shadow2 p-3 border-radius">
<a href="/noticia/07-05-2024-undime-participa"><h4>Undime participa</h4></a>
<p class="acessibilidade"><a>Resumo do encontro</a></p></div>`
	page, err := ex.Extract(markup, cfg.URL)
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	c := page.Candidates[0]
	require.Equal(t, "https://undime.org.br/noticia/07-05-2024-undime-participa", c.URL)
	require.Equal(t, "07-05-2024", c.RawDate)
	require.Equal(t, "Resumo do encontro", c.Summary)

	_, ok, err := ex.MatchDate(c, day(2024, time.May, 7))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExtractLastModifiedPolicy(t *testing.T) {
	cfg := SourceConfig{
		Name:       "povos_indigenas",
		URL:        "https://www.gov.br/povosindigenas/pt-br/assuntos/noticias/2025/07",
		SourceName: "Ministério dos Povos Indígenas",
		Selectors: Selectors{
			Item:    "article.entry",
			Title:   "span.summary a",
			Summary: "p.description.discreet",
		},
		Date: DateRule{
			Selector: "span.documentByLine",
			Policy:   PolicyLastModified,
			Marker:   "última modificação",
		},
	}
	ex, err := NewExtractor(cfg)
	require.NoError(t, err)

	markup := `
<article class="entry"><span class="summary"><a href="https://www.gov.br/povosindigenas/a">A</a></span>
<span class="documentByLine">publicado 01/07/2025 10h00, Última Modificação 03/07/2025 12h30</span></article>
<article class="entry"><span class="summary"><a href="https://www.gov.br/povosindigenas/b">B</a></span>
<span class="documentByLine">publicado 03/07/2025 10h00</span></article>`
	page, err := ex.Extract(markup, cfg.URL)
	require.NoError(t, err)
	require.Len(t, page.Candidates, 2)

	d, ok, err := ex.MatchDate(page.Candidates[0], day(2025, time.July, 3))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, day(2025, time.July, 3), d)

	_, ok, err = ex.MatchDate(page.Candidates[0], day(2025, time.July, 1))
	require.NoError(t, err)
	require.False(t, ok)

	// no marker: never matches, even when the publication date is the target
	_, ok, err = ex.MatchDate(page.Candidates[1], day(2025, time.July, 3))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLastModifiedSingleDigitDay(t *testing.T) {
	ex, err := NewExtractor(SourceConfig{
		Name:       "povos_indigenas",
		URL:        "https://www.gov.br/povosindigenas/pt-br/assuntos/noticias",
		SourceName: "Ministério dos Povos Indígenas",
		Selectors:  Selectors{Item: "article.entry", Title: "span.summary a"},
		Date: DateRule{
			Selector: "span.documentByLine",
			Policy:   PolicyLastModified,
			Marker:   "última modificação",
		},
	})
	require.NoError(t, err)

	page, err := ex.Extract(`<article class="entry"><span class="summary"><a href="/c">C</a></span>
<span class="documentByLine">publicado 01/07/2025, última modificação 7/07/2025 09h00</span></article>`, "https://www.gov.br/povosindigenas/")
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)

	d, ok, err := ex.MatchDate(page.Candidates[0], day(2025, time.July, 7))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, day(2025, time.July, 7), d)
}

func TestExtractWholePageItem(t *testing.T) {
	cfg := SourceConfig{
		Name:       "cfm",
		URL:        "https://portal.cfm.org.br/noticias/?s=",
		SourceName: "CFM",
		Selectors: Selectors{
			Title:   "h3",
			Link:    "a.c-default",
			Summary: "p",
		},
		Date: DateRule{
			Selector: "div.noticia-date",
			Formats:  []dates.Format{dates.FormatDayMonthAbbrYear},
		},
	}
	ex, err := NewExtractor(cfg)
	require.NoError(t, err)

	markup := `<div class="card">
<h3>CFM divulga resolução</h3>
<a class="c-default" href="https://portal.cfm.org.br/noticias/resolucao">ler</a>
<div class="noticia-date"><h3>07</h3><div>May
2024</div></div>
<p>Texto da resolução</p></div>`
	page, err := ex.Extract(markup, cfg.URL)
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	c := page.Candidates[0]
	require.Equal(t, "CFM divulga resolução", c.Title)
	require.Equal(t, "07 May 2024", c.RawDate)

	_, ok, err := ex.MatchDate(c, day(2024, time.May, 7))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExtractLinkFromItem(t *testing.T) {
	cfg := SourceConfig{
		Name:        "consed",
		URLTemplate: "https://www.consed.org.br/noticias?page={page}",
		MaxPages:    5,
		SourceName:  "Consed",
		Selectors: Selectors{
			Item:    "a[href]",
			Title:   "h2",
			Summary: "p",
		},
		LinkFromItem: true,
		Date:         DateRule{Selector: "small"},
	}
	ex, err := NewExtractor(cfg)
	require.NoError(t, err)

	markup := `<nav><a href="/home">Início</a></nav>
<a href="/noticias/pacto"><h2>Pacto pela alfabetização</h2><small>07/05/2024</small><p>Secretários assinam</p></a>`
	page, err := ex.Extract(markup, "https://www.consed.org.br/noticias?page=1")
	require.NoError(t, err)
	require.Equal(t, 1, page.Incomplete)
	require.Len(t, page.Candidates, 1)
	require.Equal(t, "https://www.consed.org.br/noticias/pacto", page.Candidates[0].URL)
	require.Equal(t, "Secretários assinam", page.Candidates[0].Summary)
}

func TestPageURLs(t *testing.T) {
	cfg := SourceConfig{URLTemplate: "https://x/noticias?page={page}", MaxPages: 3}
	require.Equal(t, []string{"https://x/noticias?page=1", "https://x/noticias?page=2", "https://x/noticias?page=3"}, cfg.PageURLs(0))
	require.Len(t, cfg.PageURLs(1), 1)
	require.Equal(t, []string{"https://y"}, SourceConfig{URL: "https://y"}.PageURLs(4))
}

func TestSourceConfigValidate(t *testing.T) {
	valid := govListingConfig()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*SourceConfig)
	}{
		{"no name", func(c *SourceConfig) { c.Name = "" }},
		{"no url", func(c *SourceConfig) { c.URL = "" }},
		{"both urls", func(c *SourceConfig) { c.URLTemplate = "https://x?page={page}" }},
		{"template without token", func(c *SourceConfig) { c.URL = ""; c.URLTemplate = "https://x" }},
		{"no source name", func(c *SourceConfig) { c.SourceName = ""; c.SourceNameSelector = "" }},
		{"bad selector", func(c *SourceConfig) { c.Selectors.Item = "li[" }},
		{"no title", func(c *SourceConfig) { c.Selectors.Title = "" }},
		{"bad pattern", func(c *SourceConfig) { c.Date.Pattern = "(" }},
		{"bad format", func(c *SourceConfig) { c.Date.Formats = []dates.Format{"mdy"} }},
		{"bad policy", func(c *SourceConfig) { c.Date.Policy = "fuzzy" }},
		{"marker missing", func(c *SourceConfig) { c.Date.Policy = PolicyLastModified }},
		{"bad from", func(c *SourceConfig) { c.Date.From = "title" }},
		{"bad order", func(c *SourceConfig) { c.Order = "random" }},
		{"bad layout", func(c *SourceConfig) { c.Columns = nil; c.Columns = append(c.Columns, "url", "date") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := govListingConfig()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestStripDate(t *testing.T) {
	require.Equal(t, "Prazo", stripDate("07/05/2024 - Prazo", "07/05/2024"))
	require.Equal(t, "Prazo", stripDate("07/05/2024 – Prazo", "07/05/2024"))
	require.Equal(t, "Prazo", stripDate("Prazo", ""))
}
