package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"stockinsight/backend-go/internal/config"
	"stockinsight/backend-go/internal/insight"
	"stockinsight/backend-go/internal/models"
	"stockinsight/backend-go/internal/session"
)

// Runner produces a report for a raw ticker; *insight.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, rawTicker string) (*models.StockReport, error)
}

type SearchResult struct {
	Report *models.StockReport
	Meta   models.SearchMeta
}

type reportCacheEntry struct {
	FetchedAt string              `json:"fetched_at"`
	Report    *models.StockReport `json:"report"`
}

// ReportService sits between the HTTP layer and the pipeline. It caches
// reports per ticker, collapses identical concurrent searches into one
// pipeline run and records per-session search state.
type ReportService struct {
	cfg      config.Config
	cache    Cache
	pipeline Runner
	sessions *session.Store
	group    singleflight.Group
	log      *zap.Logger
}

func NewReportService(cfg config.Config, cache Cache, pipeline Runner, sessions *session.Store, log *zap.Logger) *ReportService {
	if log == nil {
		log = zap.NewNop()
	}
	if sessions == nil {
		sessions = session.NewStore(cfg.SessionIdleTTL)
	}
	return &ReportService{
		cfg:      cfg,
		cache:    cache,
		pipeline: pipeline,
		sessions: sessions,
		log:      log.Named("reports"),
	}
}

func (s *ReportService) Sessions() *session.Store {
	return s.sessions
}

// Search runs one user-initiated search. An empty sessionID starts a new
// session. When a newer search in the same session has begun before this
// one finished, the result is returned with Meta.Superseded set and the
// session keeps the newer state.
func (s *ReportService) Search(ctx context.Context, sessionID string, rawTicker string) (SearchResult, error) {
	if sessionID == "" {
		sessionID = session.NewID()
	}
	gen := s.sessions.Begin(sessionID, strings.ToUpper(strings.TrimSpace(rawTicker)))
	meta := models.SearchMeta{SessionID: sessionID, Generation: gen}

	report, lookup, err := s.lookup(ctx, rawTicker)
	meta.Source = lookup.Source
	meta.Stale = lookup.Stale
	meta.Err = lookup.Err
	meta.FetchedAt = lookup.FetchedAt
	if err != nil {
		meta.Superseded = !s.sessions.Fail(sessionID, gen, err.Error())
		return SearchResult{Meta: meta}, err
	}
	meta.Superseded = !s.sessions.Succeed(sessionID, gen, report)
	if meta.Superseded {
		s.log.Debug("search superseded", zap.String("session", sessionID), zap.Uint64("generation", gen))
	}
	return SearchResult{Report: report, Meta: meta}, nil
}

func (s *ReportService) lookup(ctx context.Context, rawTicker string) (*models.StockReport, models.SearchMeta, error) {
	ticker, err := insight.ParseTicker(rawTicker)
	if err != nil {
		return nil, models.SearchMeta{Source: "error", Err: err.Error()}, err
	}
	key := reportCacheKey(ticker)

	cached, fetchedAt, ok := s.getCached(ctx, key)
	if ok && time.Since(fetchedAt) <= s.cfg.CacheTTLInsight {
		return cached, models.SearchMeta{
			Source:    "cache",
			FetchedAt: fetchedAt.UTC().Format(time.RFC3339),
		}, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		// A superseded search still completes; it is not cancelled.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.requestTimeout())
		defer cancel()
		return s.fetchAndCache(fctx, key, ticker)
	})
	if err != nil {
		if ok && time.Since(fetchedAt) <= s.hardTTL() && insight.Retryable(err) {
			s.log.Info("serving stale report", zap.String("ticker", ticker.String()), zap.Error(err))
			return cached, models.SearchMeta{
				Source:    "stale_cache",
				Stale:     true,
				Err:       err.Error(),
				FetchedAt: fetchedAt.UTC().Format(time.RFC3339),
			}, nil
		}
		return nil, models.SearchMeta{Source: "error", Err: err.Error()}, err
	}

	report := v.(*models.StockReport)
	source := "fresh"
	if shared {
		source = "shared"
	}
	return report, models.SearchMeta{
		Source:    source,
		FetchedAt: report.LastUpdated.UTC().Format(time.RFC3339),
	}, nil
}

func (s *ReportService) fetchAndCache(ctx context.Context, key string, ticker insight.Ticker) (*models.StockReport, error) {
	start := time.Now()
	report, err := s.pipeline.Run(ctx, ticker.String())
	if err != nil {
		s.log.Info("pipeline failed",
			zap.String("ticker", ticker.String()),
			zap.String("kind", string(insight.KindOf(err))),
			zap.Bool("retryable", insight.Retryable(err)),
			zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	s.log.Info("report generated",
		zap.String("ticker", ticker.String()),
		zap.Int("sources", len(report.Sources)),
		zap.Bool("chart_degenerate", report.ChartDegenerate),
		zap.Duration("elapsed", time.Since(start)))

	if s.cache != nil {
		entry := reportCacheEntry{
			FetchedAt: report.LastUpdated.UTC().Format(time.RFC3339Nano),
			Report:    report,
		}
		if b, err := MarshalCache(entry); err == nil {
			if err := s.cache.Set(ctx, key, b, s.hardTTL()); err != nil {
				s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return report, nil
}

func (s *ReportService) getCached(ctx context.Context, key string) (*models.StockReport, time.Time, bool) {
	if s.cache == nil {
		return nil, time.Time{}, false
	}
	b, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, time.Time{}, false
	}
	var entry reportCacheEntry
	if err := UnmarshalCache(b, &entry); err != nil || entry.Report == nil {
		return nil, time.Time{}, false
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, entry.FetchedAt)
	if err != nil {
		return nil, time.Time{}, false
	}
	return entry.Report, fetchedAt, true
}

func (s *ReportService) hardTTL() time.Duration {
	if s.cfg.CacheTTLInsightHard < s.cfg.CacheTTLInsight {
		return s.cfg.CacheTTLInsight
	}
	return s.cfg.CacheTTLInsightHard
}

func (s *ReportService) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 45 * time.Second
}

func reportCacheKey(t insight.Ticker) string {
	return fmt.Sprintf("insight:v1:%s", t)
}
