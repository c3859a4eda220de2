// Package service keeps the current org chart: it lays out directory
// snapshots, caches the results and answers filtered views and selections.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"organograma/internal/directory/models"
	"organograma/internal/directory/notify"
	"organograma/internal/layout"
	dErrors "organograma/pkg/domain-errors"
)

const (
	defaultCacheSize = 64
	refreshTimeout   = 30 * time.Second
)

var tracer = otel.Tracer("organograma/orgchart")

// Source provides point-in-time directory snapshots.
type Source interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
}

// chart is one applied layout together with the snapshot data it was built
// from. Values are never mutated after apply.
type chart struct {
	result      *layout.Result
	persons     map[string]*models.Person
	sectorNames map[string]string
	takenAt     time.Time
	generatedAt time.Time
}

type Service struct {
	source     Source
	subscriber notify.Subscriber
	logger     *slog.Logger
	layoutOpts layout.Options
	cacheSize  int
	cache      *lru.Cache[string, *layout.Result]
	group      singleflight.Group
	generation atomic.Uint64
	now        func() time.Time

	mu      sync.RWMutex
	current *chart
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSubscriber makes Run refresh the chart on every directory change.
func WithSubscriber(sub notify.Subscriber) Option {
	return func(s *Service) {
		s.subscriber = sub
	}
}

func WithLayoutOptions(opts layout.Options) Option {
	return func(s *Service) {
		s.layoutOpts = opts
	}
}

// WithCacheSize bounds the number of layouts kept by snapshot fingerprint.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		s.cacheSize = n
	}
}

func New(source Source, opts ...Option) (*Service, error) {
	s := &Service{
		source:    source,
		logger:    slog.Default(),
		cacheSize: defaultCacheSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	cache, err := lru.New[string, *layout.Result](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create layout cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Refresh lays out a fresh snapshot and applies it unless a newer one is
// already current. Concurrent calls share one run, except that a call made
// after a directory change never joins a run started before it. The run
// outlives a caller that gives up waiting.
func (s *Service) Refresh(ctx context.Context) error {
	key := strconv.FormatUint(s.generation.Load(), 10)
	ch := s.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return nil, s.refresh(runCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "org chart refresh abandoned")
	}
}

// changed starts a new generation: later refreshes take a new snapshot.
func (s *Service) changed() {
	s.generation.Add(1)
}

func (s *Service) refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "orgchart.Refresh")
	defer span.End()

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		refreshTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return err
	}

	names := snap.SectorNames()
	fingerprint := snap.Fingerprint()
	res, hit := s.cache.Get(fingerprint)
	if hit {
		layoutCacheHits.Inc()
	} else {
		start := time.Now()
		res, err = layout.ComputeWithOptions(records(snap, names), s.layoutOpts)
		layoutDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			refreshTotal.WithLabelValues("failed").Inc()
			span.RecordError(err)
			return layoutError(err)
		}
		s.cache.Add(fingerprint, res)
	}
	span.SetAttributes(
		attribute.Int("orgchart.nodes", len(res.Nodes)),
		attribute.Bool("orgchart.cache_hit", hit),
	)

	persons := make(map[string]*models.Person, len(snap.Persons))
	for _, p := range snap.Persons {
		persons[p.ID] = p
	}
	next := &chart{
		result:      res,
		persons:     persons,
		sectorNames: names,
		takenAt:     snap.TakenAt,
		generatedAt: s.now(),
	}
	if !s.apply(next) {
		refreshTotal.WithLabelValues("stale").Inc()
		s.logger.DebugContext(ctx, "discarded stale org chart", "taken_at", snap.TakenAt)
		return nil
	}
	refreshTotal.WithLabelValues("applied").Inc()
	chartNodes.Set(float64(len(res.Nodes)))
	return nil
}

// apply installs next unless the current chart comes from a newer snapshot.
func (s *Service) apply(next *chart) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && next.takenAt.Before(s.current.takenAt) {
		return false
	}
	s.current = next
	return true
}

// Run refreshes once, then again after every directory change, until ctx is
// done. Failed refreshes keep the previous chart.
func (s *Service) Run(ctx context.Context) error {
	var changes <-chan notify.Change
	if s.subscriber != nil {
		var err error
		changes, err = s.subscriber.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe to directory changes: %w", err)
		}
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.ErrorContext(ctx, "initial org chart refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			s.changed()
			pending := drain(changes)
			s.logger.DebugContext(ctx, "directory changed",
				"table", change.Table,
				"op", change.Op,
				"id", change.ID,
				"coalesced", pending,
			)
			if err := s.Refresh(ctx); err != nil {
				s.logger.WarnContext(ctx, "org chart refresh failed, keeping previous chart", "error", err)
			}
		}
	}
}

// drain discards changes already queued; one refresh covers them all.
func drain(changes <-chan notify.Change) int {
	n := 0
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func (s *Service) currentChart(ctx context.Context) (*chart, error) {
	s.mu.RLock()
	c := s.current
	s.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "org chart not available")
	}
	return s.current, nil
}

func records(snap *models.Snapshot, sectorNames map[string]string) []layout.Record {
	recs := make([]layout.Record, len(snap.Persons))
	for i, p := range snap.Persons {
		recs[i] = layout.Record{
			ID:         p.ID,
			SuperiorID: p.SuperiorID,
			Label: layout.Label{
				Rank:     p.Rank,
				Name:     p.WarName,
				Function: p.Function,
				Sector:   models.SectorName(sectorNames, p.SectorID),
			},
		}
	}
	return recs
}

func layoutError(err error) error {
	var cycleErr *layout.CycleError
	if errors.As(err, &cycleErr) {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "superior chain forms a cycle")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lay out org chart")
}
