package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"organograma/internal/directory/models"
	"organograma/internal/directory/notify"
	"organograma/internal/layout"
	dErrors "organograma/pkg/domain-errors"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// stubSource hands out the queued snapshots in order and repeats the last.
type stubSource struct {
	mu    sync.Mutex
	snaps []*models.Snapshot
	err   error
}

func (f *stubSource) Snapshot(context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	snap := f.snaps[0]
	if len(f.snaps) > 1 {
		f.snaps = f.snaps[1:]
	}
	return snap, nil
}

func (f *stubSource) set(snaps ...*models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = snaps
}

// gatedSource blocks its first Snapshot call until release is closed and
// answers it with first; later calls get next at once.
type gatedSource struct {
	first, next *models.Snapshot
	started     chan struct{}
	release     chan struct{}
	calls       atomic.Int32
}

func (g *gatedSource) Snapshot(context.Context) (*models.Snapshot, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.release
		return g.first, nil
	}
	return g.next, nil
}

func person(id, warName, rank, superiorID, sectorID string) *models.Person {
	return &models.Person{ID: id, Name: warName, WarName: warName, Rank: rank, SuperiorID: superiorID, SectorID: sectorID}
}

func unitSnapshot(takenAt time.Time) *models.Snapshot {
	return &models.Snapshot{
		Persons: []*models.Person{
			person("cmt", "Almeida", "Cel", "", "s-cmd"),
			person("s1", "Silva", "Cap", "cmt", "s-cmd"),
			person("s2", "Souza", "1º Sgt", "cmt", ""),
			person("s3", "Silveira", "Cb", "s2", "s-com"),
		},
		Sectors: []*models.Sector{
			{ID: "s-cmd", Name: "Comando"},
			{ID: "s-com", Name: "Comunicações"},
		},
		TakenAt: takenAt,
	}
}

type OrgChartSuite struct {
	suite.Suite
	source  *stubSource
	service *Service
	ctx     context.Context
}

func TestOrgChartSuite(t *testing.T) {
	suite.Run(t, new(OrgChartSuite))
}

func (s *OrgChartSuite) SetupTest() {
	s.ctx = context.Background()
	s.source = &stubSource{snaps: []*models.Snapshot{unitSnapshot(t0)}}
	svc, err := New(s.source)
	s.Require().NoError(err)
	svc.now = func() time.Time { return t0.Add(time.Second) }
	s.service = svc
}

func nodeByID(nodes []layout.Node, id string) (layout.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return layout.Node{}, false
}

func (s *OrgChartSuite) TestViewLaysOutSnapshot() {
	view, err := s.service.View(s.ctx, "")
	s.Require().NoError(err)

	s.Equal(4, view.Total)
	s.Len(view.Nodes, 4)
	s.Len(view.Edges, 3)
	s.Equal(t0.Add(time.Second), view.GeneratedAt)

	cmt, _ := nodeByID(view.Nodes, "cmt")
	s.Equal(layout.Label{Rank: "Cel", Name: "Almeida", Sector: "Comando"}, cmt.Label)
	s.Equal(0, cmt.Level)

	s2, _ := nodeByID(view.Nodes, "s2")
	s.Equal(models.NoSectorName, s2.Label.Sector)

	s3, _ := nodeByID(view.Nodes, "s3")
	s.Equal(2, s3.Level)
	s.Equal(2*layout.DefaultLevelHeight, s3.Position.Y)
}

func (s *OrgChartSuite) TestFilterKeepsCoordinates() {
	full, err := s.service.View(s.ctx, "")
	s.Require().NoError(err)

	s.Run("matches war name without moving nodes", func() {
		view, err := s.service.View(s.ctx, "silv")
		s.Require().NoError(err)

		s.Equal(4, view.Total)
		s.Len(view.Nodes, 2)
		for _, n := range view.Nodes {
			orig, ok := nodeByID(full.Nodes, n.ID)
			s.Require().True(ok)
			s.Equal(orig.Position, n.Position)
		}
		s.Empty(view.Edges, "silva and silveira are not directly linked")
	})

	s.Run("edges survive when both ends match", func() {
		view, err := s.service.View(s.ctx, "comando")
		s.Require().NoError(err)

		s.Len(view.Nodes, 2)
		s.Equal([]layout.Edge{{ID: "cmt-s1", Source: "cmt", Target: "s1"}}, view.Edges)
	})

	s.Run("case and accent insensitive", func() {
		view, err := s.service.View(s.ctx, "COMUNICACOES")
		s.Require().NoError(err)

		s.Require().Len(view.Nodes, 1)
		s.Equal("s3", view.Nodes[0].ID)
	})

	s.Run("no match yields empty collections", func() {
		view, err := s.service.View(s.ctx, "zzz")
		s.Require().NoError(err)
		s.NotNil(view.Nodes)
		s.NotNil(view.Edges)
		s.Empty(view.Nodes)
	})
}

func (s *OrgChartSuite) TestStaleSnapshotIsDiscarded() {
	s.Require().NoError(s.service.Refresh(s.ctx))

	older := unitSnapshot(t0.Add(-time.Minute))
	older.Persons = older.Persons[:1]
	s.source.set(older)

	s.Require().NoError(s.service.Refresh(s.ctx))

	view, err := s.service.View(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(4, view.Total, "older snapshot must not replace the newer chart")
}

func (s *OrgChartSuite) TestCycleKeepsPreviousChart() {
	s.Require().NoError(s.service.Refresh(s.ctx))

	looped := unitSnapshot(t0.Add(time.Minute))
	looped.Persons[0].SuperiorID = "s3"
	s.source.set(looped)

	err := s.service.Refresh(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.ErrorIs(err, layout.ErrCycleDetected)

	view, err := s.service.View(s.ctx, "")
	s.Require().NoError(err)
	s.Len(view.Edges, 3)
}

func (s *OrgChartSuite) TestSnapshotFailure() {
	s.source.err = errors.New("database down")

	_, err := s.service.View(s.ctx, "")
	s.Require().Error(err)
}

func (s *OrgChartSuite) TestIdenticalSnapshotHitsCache() {
	s.Require().NoError(s.service.Refresh(s.ctx))
	before := testutil.ToFloat64(layoutCacheHits)

	s.source.set(unitSnapshot(t0.Add(time.Minute)))
	s.Require().NoError(s.service.Refresh(s.ctx))

	s.Equal(before+1, testutil.ToFloat64(layoutCacheHits))
}

func (s *OrgChartSuite) TestSelect() {
	sel, err := s.service.Select(s.ctx, "s3")
	s.Require().NoError(err)
	s.Equal("Silveira", sel.Person.WarName)
	s.Equal("Comunicações", sel.SectorName)
	s.Equal("s3", sel.Node.ID)

	_, err = s.service.Select(s.ctx, "nobody")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *OrgChartSuite) TestRunRefreshesOnChange() {
	broker := notify.NewBroker()
	svc, err := New(s.source, WithSubscriber(broker))
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	s.Require().Eventually(func() bool { return broker.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	s.Require().Eventually(func() bool {
		svc.mu.RLock()
		defer svc.mu.RUnlock()
		return svc.current != nil
	}, time.Second, 5*time.Millisecond)

	grown := unitSnapshot(t0.Add(time.Minute))
	grown.Persons = append(grown.Persons, person("s4", "Ramos", "Sd", "s3", "s-com"))
	s.source.set(grown)
	s.Require().NoError(broker.Publish(ctx, notify.Change{Table: notify.TablePersons, Op: notify.OpInsert, ID: "s4"}))

	s.Eventually(func() bool {
		view, err := svc.View(ctx, "")
		return err == nil && view.Total == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)
}

func (s *OrgChartSuite) TestRefreshAfterChangeDoesNotJoinEarlierRun() {
	grown := unitSnapshot(t0.Add(time.Minute))
	grown.Persons = append(grown.Persons, person("s4", "Ramos", "Sd", "s3", "s-com"))
	source := &gatedSource{
		first:   unitSnapshot(t0),
		next:    grown,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, err := New(source)
	s.Require().NoError(err)
	staleBefore := testutil.ToFloat64(refreshTotal.WithLabelValues("stale"))

	callerCtx, cancelCaller := context.WithCancel(s.ctx)
	earlier := make(chan error, 1)
	go func() { earlier <- svc.Refresh(callerCtx) }()
	<-source.started

	svc.changed()
	s.Require().NoError(svc.Refresh(s.ctx))
	s.Equal(int32(2), source.calls.Load(), "refresh after a change takes its own snapshot")

	view, err := svc.View(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(5, view.Total)

	cancelCaller()
	err = <-earlier
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	close(source.release)
	s.Eventually(func() bool {
		return testutil.ToFloat64(refreshTotal.WithLabelValues("stale")) == staleBefore+1
	}, time.Second, 5*time.Millisecond, "the earlier run finishes without its caller and is discarded")

	view, err = svc.View(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(5, view.Total)
}
