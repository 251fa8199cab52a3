// Package ingest runs one ingestion pass over every configured source:
// fetch, extract, filter by date and by ledger, normalize, buffer, mark
// seen, and finally flush every table.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/LJTian/GovNewsHub/internal/buffer"
	"github.com/LJTian/GovNewsHub/internal/collector"
	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/ledger"
	"github.com/LJTian/GovNewsHub/internal/processor"
	"github.com/LJTian/GovNewsHub/internal/retry"
	"github.com/LJTian/GovNewsHub/internal/store"
)

// Options narrows a single run.
type Options struct {
	// Date overrides the target date; zero means today.
	Date dates.Date
	// MaxPages overrides max_pages of paginated sources when > 0.
	MaxPages int
	// Sources restricts the run to the named sources, in catalog order.
	Sources []string
}

type Runner struct {
	Client      store.Client
	StoreKey    string
	Invoker     *retry.Invoker
	Fetcher     collector.Fetcher
	Sources     []collector.SourceConfig
	Processor   *processor.SimpleProcessor
	LedgerTable string
	BatchSize   int
	Location    *time.Location
	Log         *logrus.Entry

	// Now is time.Now unless replaced in tests.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes one pass. Problems local to an item or a source are counted
// and logged; store failures abort the run and are returned together with
// the partial report.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	log := r.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	target := opts.Date
	if target.IsZero() {
		target = dates.TodayAt(r.now(), r.Location)
	}
	report := &Report{
		RunID:      uuid.NewString(),
		TargetDate: target.String(),
		StartedAt:  r.now(),
	}
	log = log.WithFields(logrus.Fields{"run_id": report.RunID, "target_date": report.TargetDate})

	extractors, err := r.extractors(opts.Sources)
	if err != nil {
		report.finish(r.now(), err)
		return report, err
	}

	log.Infof("start ingest run, sources=%d", len(extractors))

	sess, err := store.OpenSession(ctx, r.Client, r.StoreKey, r.Invoker)
	if err != nil {
		report.finish(r.now(), err)
		return report, fmt.Errorf("ingest: %w", err)
	}
	led, err := ledger.Load(ctx, sess, r.LedgerTable)
	if err != nil {
		report.finish(r.now(), err)
		return report, fmt.Errorf("ingest: %w", err)
	}
	log.Infof("ledger loaded, urls=%d", led.Len())

	proc := r.Processor
	if proc == nil {
		proc = processor.NewSimpleProcessor("")
	}
	buf := buffer.New(sess, r.BatchSize)
	for _, ex := range extractors {
		cfg := ex.Config()
		buf.Register(cfg.TableName(), cfg.Layout(), cfg.Order)
	}

	p := pass{
		log:    log,
		fetch:  r.Fetcher,
		proc:   proc,
		led:    led,
		buf:    buf,
		target: target,
		pages:  opts.MaxPages,
	}
	for _, ex := range extractors {
		sr := &SourceReport{Source: ex.Config().Name, Table: ex.Config().TableName()}
		report.Sources = append(report.Sources, sr)

		if err := p.source(ctx, ex, sr); err != nil {
			report.finish(r.now(), err)
			return report, fmt.Errorf("ingest: %s: %w", sr.Source, err)
		}
	}

	if err := buf.FlushAll(ctx); err != nil {
		report.finish(r.now(), err)
		return report, fmt.Errorf("ingest: %w", err)
	}

	report.finish(r.now(), nil)
	log.Infof("ingest run done, candidates=%d accepted=%d", report.Candidates, report.Accepted)
	return report, nil
}

func (r *Runner) extractors(only []string) ([]*collector.Extractor, error) {
	want := make(map[string]bool, len(only))
	for _, name := range only {
		want[name] = true
	}

	out := make([]*collector.Extractor, 0, len(r.Sources))
	for _, cfg := range r.Sources {
		if len(want) > 0 && !want[cfg.Name] {
			continue
		}
		delete(want, cfg.Name)
		ex, err := collector.NewExtractor(cfg)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		out = append(out, ex)
	}
	for _, name := range only {
		if want[name] {
			return nil, fmt.Errorf("ingest: unknown source %q", name)
		}
	}
	return out, nil
}

// pass carries the per-run state shared by every source.
type pass struct {
	log    *logrus.Entry
	fetch  collector.Fetcher
	proc   *processor.SimpleProcessor
	led    *ledger.Ledger
	buf    *buffer.Buffer
	target dates.Date
	pages  int
}

// source processes every page of one source. Only store failures are
// returned; fetch and markup problems end the source and are recorded.
func (p *pass) source(ctx context.Context, ex *collector.Extractor, sr *SourceReport) error {
	cfg := ex.Config()
	log := p.log.WithField("source", cfg.Name)

	for _, pageURL := range cfg.PageURLs(p.pages) {
		markup, err := p.fetch.Fetch(ctx, pageURL)
		if err != nil {
			log.WithError(err).Warnf("fetch %s failed, skipping source", pageURL)
			sr.Error = err.Error()
			break
		}
		page, err := ex.Extract(markup, pageURL)
		if err != nil {
			log.WithError(err).Warnf("extract %s failed, skipping source", pageURL)
			sr.Error = err.Error()
			break
		}
		sr.Pages++
		sr.Candidates += len(page.Candidates)
		sr.SkippedIncomplete += page.Incomplete

		for _, c := range page.Candidates {
			if err := p.candidate(ctx, ex, c, sr, log); err != nil {
				return err
			}
		}

		if cfg.Paginated() && len(page.Candidates) == 0 {
			log.Debugf("page %s has no items, stop paging", pageURL)
			break
		}
	}

	log.Infof("%s done, candidates=%d accepted=%d", cfg.Name, sr.Candidates, sr.Accepted)
	return nil
}

func (p *pass) candidate(ctx context.Context, ex *collector.Extractor, c collector.Candidate, sr *SourceReport, log *logrus.Entry) error {
	published, ok, err := ex.MatchDate(c, p.target)
	if err != nil {
		sr.SkippedParse++
		log.WithFields(logrus.Fields{"url": c.URL, "raw_date": c.RawDate}).Debug("skip item, unreadable date")
		return nil
	}
	if !ok {
		sr.SkippedDate++
		return nil
	}
	if p.led.Contains(c.URL) {
		sr.SkippedSeen++
		return nil
	}

	rec := p.proc.Process(c, published)
	if err := p.buf.Push(ctx, ex.Config().TableName(), rec); err != nil {
		return err
	}
	// the URL is marked seen as soon as the record is buffered
	if err := p.led.Add(ctx, rec.URL); err != nil {
		return err
	}
	sr.Accepted++
	return nil
}
