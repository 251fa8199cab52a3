package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LJTian/GovNewsHub/internal/ingest"
)

const (
	latestReportKey  = "govnews:runs:latest"
	reportHistoryKey = "govnews:runs:history"
	historySize      = 20
	reportTTL        = 30 * 24 * time.Hour
)

// ReportStore keeps the latest run reports, in Redis when configured and in
// process memory otherwise.
type ReportStore struct {
	rdb *redis.Client

	mu      sync.Mutex
	history []*ingest.Report
}

func NewReportStore(rdb *redis.Client) *ReportStore {
	return &ReportStore{rdb: rdb}
}

func (s *ReportStore) Save(ctx context.Context, r *ingest.Report) error {
	s.mu.Lock()
	s.history = append([]*ingest.Report{r}, s.history...)
	if len(s.history) > historySize {
		s.history = s.history[:historySize]
	}
	s.mu.Unlock()

	if s.rdb == nil {
		return nil
	}
	bs, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, latestReportKey, bs, reportTTL)
		p.LPush(ctx, reportHistoryKey, bs)
		p.LTrim(ctx, reportHistoryKey, 0, historySize-1)
		return nil
	})
	return err
}

// Latest returns the most recent report, or nil when no run was recorded.
func (s *ReportStore) Latest(ctx context.Context) (*ingest.Report, error) {
	if s.rdb != nil {
		bs, err := s.rdb.Get(ctx, latestReportKey).Bytes()
		switch {
		case err == nil:
			var r ingest.Report
			if err := json.Unmarshal(bs, &r); err != nil {
				return nil, err
			}
			return &r, nil
		case !errors.Is(err, redis.Nil):
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return nil, nil
	}
	return s.history[0], nil
}

// List returns up to limit reports, newest first.
func (s *ReportStore) List(ctx context.Context, limit int) ([]*ingest.Report, error) {
	if limit <= 0 || limit > historySize {
		limit = historySize
	}
	if s.rdb != nil {
		raw, err := s.rdb.LRange(ctx, reportHistoryKey, 0, int64(limit-1)).Result()
		if err != nil {
			return nil, err
		}
		out := make([]*ingest.Report, 0, len(raw))
		for _, item := range raw {
			var r ingest.Report
			if err := json.Unmarshal([]byte(item), &r); err != nil {
				continue
			}
			out = append(out, &r)
		}
		return out, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := limit
	if n > len(s.history) {
		n = len(s.history)
	}
	out := make([]*ingest.Report, n)
	copy(out, s.history[:n])
	return out, nil
}
