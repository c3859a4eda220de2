package service

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.opentelemetry.io/otel/attribute"

	"organograma/internal/directory/models"
	"organograma/internal/layout"
	dErrors "organograma/pkg/domain-errors"
)

// ChartView is what the renderer draws. Total counts every node of the
// chart, filtered or not.
type ChartView struct {
	Nodes       []layout.Node `json:"nodes"`
	Edges       []layout.Edge `json:"edges"`
	GeneratedAt time.Time     `json:"generated_at"`
	Total       int           `json:"total"`
}

// Selection is the person behind a clicked node.
type Selection struct {
	Person     *models.Person `json:"person"`
	SectorName string         `json:"sector_name"`
	Node       layout.Node    `json:"node"`
}

// View returns the current chart, reduced to the nodes matching query.
// Coordinates are never recomputed; an edge survives only if both of its
// ends do.
func (s *Service) View(ctx context.Context, query string) (*ChartView, error) {
	ctx, span := tracer.Start(ctx, "orgchart.View")
	defer span.End()

	c, err := s.currentChart(ctx)
	if err != nil {
		return nil, err
	}

	view := &ChartView{
		GeneratedAt: c.generatedAt,
		Total:       len(c.result.Nodes),
	}
	query = strings.TrimSpace(query)
	if query == "" {
		view.Nodes = append([]layout.Node{}, c.result.Nodes...)
		view.Edges = append([]layout.Edge{}, c.result.Edges...)
		return view, nil
	}

	visible := make(map[string]struct{})
	view.Nodes = make([]layout.Node, 0)
	for _, n := range c.result.Nodes {
		if matches(query, c.persons[n.ID], n.Label) {
			visible[n.ID] = struct{}{}
			view.Nodes = append(view.Nodes, n)
		}
	}
	view.Edges = make([]layout.Edge, 0)
	for _, e := range c.result.Edges {
		_, src := visible[e.Source]
		_, dst := visible[e.Target]
		if src && dst {
			view.Edges = append(view.Edges, e)
		}
	}
	span.SetAttributes(attribute.Int("orgchart.visible", len(view.Nodes)))
	return view, nil
}

// matches reports whether query fuzzily matches any searchable field,
// ignoring case and accents.
func matches(query string, p *models.Person, label layout.Label) bool {
	fields := []string{label.Name, label.Rank, label.Function, label.Sector}
	if p != nil {
		fields = append(fields, p.Name, p.FullName)
	}
	return len(fuzzy.RankFindNormalizedFold(query, fields)) > 0
}

// Select resolves a node of the current chart back to its person.
func (s *Service) Select(ctx context.Context, id string) (*Selection, error) {
	c, err := s.currentChart(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := c.persons[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "person not in org chart")
	}
	sel := &Selection{
		Person:     p,
		SectorName: models.SectorName(c.sectorNames, p.SectorID),
	}
	for _, n := range c.result.Nodes {
		if n.ID == id {
			sel.Node = n
			break
		}
	}
	return sel, nil
}
