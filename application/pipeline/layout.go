package pipeline

import (
	"slices"

	"github.com/panel-extensions/panel-reactflow/domain/core/valueobjects"
)

// Link is a data dependency: Source feeds Target's Param.
type Link struct {
	Source string
	Target string
	Param  string
}

// Spacing between layout columns and rows.
type Spacing struct {
	X float64
	Y float64
}

// DefaultSpacing matches the canvas default node size with some margin.
var DefaultSpacing = Spacing{X: 350, Y: 150}

// ComputePositions lays names out left to right by BFS depth from the
// roots. Names that share a column are stacked and centred on y=0; names
// without links get columns of their own after the rest.
func ComputePositions(names []string, links []Link, spacing Spacing) map[string]valueobjects.Position {
	children := map[string][]string{}
	parents := map[string]bool{}
	linked := map[string]bool{}
	for _, l := range links {
		if !slices.Contains(children[l.Source], l.Target) {
			children[l.Source] = append(children[l.Source], l.Target)
		}
		parents[l.Target] = true
		linked[l.Source] = true
		linked[l.Target] = true
	}

	var roots []string
	for _, name := range names {
		if !parents[name] || !linked[name] {
			roots = append(roots, name)
		}
	}
	if len(roots) == 0 && len(names) > 0 {
		roots = []string{names[0]}
	}

	depth := map[string]int{}
	queue := slices.Clone(roots)
	for _, r := range roots {
		depth[r] = 0
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			d := depth[cur] + 1
			if old, seen := depth[child]; !seen || d > old {
				// Bounded by the number of names so a cycle cannot spin forever.
				if d > len(names) {
					continue
				}
				depth[child] = d
				queue = append(queue, child)
			}
		}
	}

	next := -1
	for _, d := range depth {
		next = max(next, d)
	}
	next++
	for _, name := range names {
		if _, ok := depth[name]; !ok {
			depth[name] = next
			next++
		}
	}

	columns := map[int][]string{}
	for _, name := range names {
		columns[depth[name]] = append(columns[depth[name]], name)
	}

	positions := make(map[string]valueobjects.Position, len(names))
	for col, members := range columns {
		startY := -float64(len(members)-1) * spacing.Y / 2
		for row, name := range members {
			positions[name] = valueobjects.Position{X: float64(col) * spacing.X, Y: startY + float64(row)*spacing.Y}
		}
	}
	return positions
}
