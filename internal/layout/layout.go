// Package layout positions a flat list of personnel records as a tree.
//
// Records point at most at one superior. Roots sit on level 0 side by side,
// children sit one level below their superior, centered under it. The
// computation is pure: same input order, same output.
package layout

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	DefaultRootSpacing    = 300.0
	DefaultSiblingSpacing = 200.0
	DefaultLevelHeight    = 150.0
)

var (
	// ErrCycleDetected is matched by *CycleError.
	ErrCycleDetected = errors.New("superior chain forms a cycle")
	ErrDuplicateID   = errors.New("duplicate record id")
)

// Label is the display bundle carried by a node.
type Label struct {
	Rank     string `json:"rank"`
	Name     string `json:"name"`
	Function string `json:"function"`
	Sector   string `json:"sector"`
}

// Record is one layout input. SuperiorID is empty for "no superior".
type Record struct {
	ID         string
	SuperiorID string
	Label      Label
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a positioned record.
type Node struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Level    int      `json:"level"`
	Label    Label    `json:"data"`
}

// Edge links a superior (Source) to a subordinate (Target).
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Result holds one node per input record, in input order, and one edge per
// record whose superior is among the inputs.
type Result struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Options tunes spacing. Zero values fall back to the defaults.
type Options struct {
	RootSpacing    float64
	SiblingSpacing float64
	LevelHeight    float64
}

func (o Options) withDefaults() Options {
	if o.RootSpacing <= 0 {
		o.RootSpacing = DefaultRootSpacing
	}
	if o.SiblingSpacing <= 0 {
		o.SiblingSpacing = DefaultSiblingSpacing
	}
	if o.LevelHeight <= 0 {
		o.LevelHeight = DefaultLevelHeight
	}
	return o
}

// CycleError lists the records that no root reaches: members of a superior
// cycle (self-references included) and everything hanging below one.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.IDs, ", "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// Compute lays out records with default spacing.
func Compute(records []Record) (*Result, error) {
	return ComputeWithOptions(records, Options{})
}

// ComputeWithOptions derives edges, finds roots and positions every node.
func ComputeWithOptions(records []Record, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	index := make(map[string]int, len(records))
	for i, r := range records {
		if _, dup := index[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		index[r.ID] = i
	}

	res := &Result{
		Nodes: make([]Node, len(records)),
		Edges: make([]Edge, 0, len(records)),
	}
	children := make(map[int][]int, len(records))
	hasParent := make([]bool, len(records))
	for i, r := range records {
		res.Nodes[i] = Node{ID: r.ID, Label: r.Label}
		if r.SuperiorID == "" {
			continue
		}
		p, ok := index[r.SuperiorID]
		if !ok {
			continue
		}
		res.Edges = append(res.Edges, Edge{
			ID:     r.SuperiorID + "-" + r.ID,
			Source: r.SuperiorID,
			Target: r.ID,
		})
		children[p] = append(children[p], i)
		hasParent[i] = true
	}

	visited := make([]bool, len(records))
	var stack []int
	rootIdx := 0
	for i := range records {
		if hasParent[i] {
			continue
		}
		res.Nodes[i].Position = Position{X: float64(rootIdx) * opts.RootSpacing}
		rootIdx++
		visited[i] = true
		stack = append(stack, i)
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kids := children[n]
		parent := res.Nodes[n]
		level := parent.Level + 1
		start := parent.Position.X - float64(len(kids)-1)*opts.SiblingSpacing/2
		for i, c := range kids {
			if visited[c] {
				continue
			}
			visited[c] = true
			res.Nodes[c].Level = level
			res.Nodes[c].Position = Position{
				X: start + float64(i)*opts.SiblingSpacing,
				Y: float64(level) * opts.LevelHeight,
			}
			stack = append(stack, c)
		}
	}

	var stranded []string
	for i, ok := range visited {
		if !ok {
			stranded = append(stranded, records[i].ID)
		}
	}
	if len(stranded) > 0 {
		slices.Sort(stranded)
		return nil, &CycleError{IDs: stranded}
	}
	return res, nil
}

// Roots returns the ids of level-0 nodes in input order.
func (r *Result) Roots() []string {
	targets := make(map[string]struct{}, len(r.Edges))
	for _, e := range r.Edges {
		targets[e.Target] = struct{}{}
	}
	var roots []string
	for _, n := range r.Nodes {
		if _, ok := targets[n.ID]; !ok {
			roots = append(roots, n.ID)
		}
	}
	return roots
}
