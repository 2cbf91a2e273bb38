package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"orcamento/internal/cache"
	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/storage"
)

const yearQueryLimit = 4

// ReportService aggregates the ledger by month, category and person.
type ReportService struct {
	base
	years cache.Cache[core.YearReport]

	// gen counts invalidations. A report computed across an invalidation is
	// returned but not cached.
	mu  sync.Mutex
	gen uint64
}

// NewReportService caches year reports for ttl. A zero ttl disables caching.
func NewReportService(repo *storage.SQLiteRepository, ttl time.Duration) *ReportService {
	s := &ReportService{base: newBase(repo, nil)}
	if ttl > 0 {
		s.years = cache.NewLRUCache[core.YearReport](16, ttl)
	}
	return s
}

// Cache exposes the year report cache so a janitor can sweep it.
func (s *ReportService) Cache() cache.Cleaner {
	if c, ok := s.years.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// CachedYears returns how many year reports are cached.
func (s *ReportService) CachedYears() int {
	if s.years == nil {
		return 0
	}
	return s.years.Size()
}

// MonthReport totals the ledger of period, grouped by category and by payer.
func (s *ReportService) MonthReport(ctx context.Context, period core.Period) (core.MonthReport, error) {
	if err := period.Validate(); err != nil {
		return core.MonthReport{}, err
	}
	total, _, err := s.repo.MonthTotal(ctx, period)
	if err != nil {
		return core.MonthReport{}, err
	}
	cats, err := s.repo.CategoryTotals(ctx, period)
	if err != nil {
		return core.MonthReport{}, err
	}
	people, err := s.repo.PersonTotals(ctx, period)
	if err != nil {
		return core.MonthReport{}, err
	}

	r := core.MonthReport{Period: period, Total: total, ByPerson: people}
	r.ByCategory = make([]core.GroupTotal, 0, len(cats))
	for _, c := range cats {
		r.ByCategory = append(r.ByCategory, c.GroupTotal)
		if c.Kind == core.Fixed {
			r.Fixed = r.Fixed.Add(c.Amount)
		} else {
			r.Variable = r.Variable.Add(c.Amount)
		}
	}
	return r, nil
}

// YearReport returns the twelve monthly totals of year. The months are
// queried concurrently.
func (s *ReportService) YearReport(ctx context.Context, year int) (core.YearReport, error) {
	if _, err := core.NewPeriod(year, 1); err != nil {
		return core.YearReport{}, err
	}
	key := yearKey(year)
	if s.years != nil {
		if r, ok := s.years.Get(key); ok {
			return r, nil
		}
	}
	gen := s.generation()

	months := make([]core.GroupTotal, 12)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(yearQueryLimit)
	for m := 1; m <= 12; m++ {
		g.Go(func() error {
			p := core.Period{Year: year, Month: time.Month(m)}
			total, count, err := s.repo.MonthTotal(gctx, p)
			if err != nil {
				return err
			}
			months[m-1] = core.GroupTotal{Name: p.String(), Amount: total, Count: count}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.YearReport{}, fmt.Errorf("year report %d: %w", year, err)
	}

	r := core.YearReport{Year: year, Months: months}
	for _, m := range months {
		r.Total = r.Total.Add(m.Amount)
	}
	s.storeYear(key, r, gen)
	return r, nil
}

func (s *ReportService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// storeYear caches r unless an invalidation happened since gen was read.
func (s *ReportService) storeYear(key string, r core.YearReport, gen uint64) bool {
	if s.years == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.years.Set(key, r)
	return true
}

// Invalidate drops cached reports affected by e.
func (s *ReportService) Invalidate(e events.ChangeEvent) {
	if s.years == nil {
		return
	}
	switch e.Table {
	case events.TableExpenses, events.TableCategories, events.TablePeople:
		s.mu.Lock()
		s.gen++
		s.years.Purge()
		s.mu.Unlock()
	}
}

// Watch invalidates cached reports from hub events until ctx is done.
func (s *ReportService) Watch(ctx context.Context, hub *events.Hub) {
	ch, cancel := hub.Subscribe(64)
	defer cancel()
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.Invalidate(e)
		case <-ctx.Done():
			slog.DebugContext(ctx, "Report cache watcher stopped")
			return
		}
	}
}

func yearKey(year int) string {
	return "year:" + strconv.Itoa(year)
}
