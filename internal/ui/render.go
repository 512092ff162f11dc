package ui

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gman622/qroute/internal/ansi"
	"github.com/gman622/qroute/internal/plan"
)

// GraphRenderer draws a plan as boxes-and-connectors: one row per wave,
// one box per intent, dependency edges between adjacent rows. Plans
// above compactThreshold intents fall back to one line per intent.
type GraphRenderer struct {
	Width int  // terminal columns, 80 when zero
	Color bool // emit ANSI styling
}

// compactThreshold is the intent count above which boxes give way to
// the one-line-per-intent form.
const compactThreshold = 10

// Render returns the drawn plan. Critical-path intents render bold.
func (r *GraphRenderer) Render(p *plan.Plan) string {
	if p == nil || p.TotalIntents == 0 {
		return ""
	}
	width := r.Width
	if width <= 0 {
		width = 80
	}
	critical := make(map[string]bool, len(p.CriticalPath))
	for _, id := range p.CriticalPath {
		critical[id] = true
	}

	if p.TotalIntents > compactThreshold {
		return r.renderCompact(p, critical)
	}
	return r.renderBoxes(p, critical, width)
}

// intentBox is one rendered node: its lines plus the column its center
// lands on after layout.
type intentBox struct {
	id     string
	lines  []string
	width  int
	center int
}

func (r *GraphRenderer) renderBoxes(p *plan.Plan, critical map[string]bool, width int) string {
	boxes := make(map[string]*intentBox)
	var sb strings.Builder

	for wi := range p.Waves {
		w := &p.Waves[wi]
		row := make([]*intentBox, len(w.Intents))
		for i := range w.Intents {
			row[i] = r.buildBox(&w.Intents[i], critical)
			boxes[row[i].id] = row[i]
		}
		layoutRow(row, width)

		if wi > 0 {
			r.drawConnectors(&sb, w, boxes, width)
		}
		drawRow(&sb, row)
	}
	return sb.String()
}

// buildBox renders one intent:
//
//	┌────────────────┐
//	│ fix-auth       │
//	│ claude-0       │
//	└────────────────┘
func (r *GraphRenderer) buildBox(e *plan.Entry, critical map[string]bool) *intentBox {
	content := []string{e.ID, e.Agent}
	inner := 6
	for _, line := range content {
		if n := utf8.RuneCountInString(line); n > inner {
			inner = n
		}
	}

	style := ansi.Blue
	if critical[e.ID] {
		style = ansi.Bold + ansi.Yellow
	}
	paint := func(s string) string {
		if !r.Color {
			return s
		}
		return style + s + ansi.Reset
	}

	lines := []string{paint("┌" + strings.Repeat("─", inner+2) + "┐")}
	for _, cl := range content {
		pad := strings.Repeat(" ", inner-utf8.RuneCountInString(cl))
		lines = append(lines, paint("│ "+cl+pad+" │"))
	}
	lines = append(lines, paint("└"+strings.Repeat("─", inner+2)+"┘"))

	return &intentBox{id: e.ID, lines: lines, width: inner + 4}
}

// layoutRow spreads the boxes evenly across the width and records each
// box's center column.
func layoutRow(row []*intentBox, width int) {
	if len(row) == 0 {
		return
	}
	if len(row) == 1 {
		row[0].center = width / 2
		return
	}

	total := 0
	for _, b := range row {
		total += b.width
	}
	gap := 2
	if total < width {
		if g := (width - total) / (len(row) + 1); g > gap {
			gap = g
		}
	}
	x := gap
	for _, b := range row {
		b.center = x + b.width/2
		x += b.width + gap
	}
}

func drawRow(sb *strings.Builder, row []*intentBox) {
	if len(row) == 0 {
		return
	}
	height := len(row[0].lines)
	for line := 0; line < height; line++ {
		cursor := 0
		for _, b := range row {
			start := b.center - b.width/2
			if start < cursor {
				start = cursor
			}
			sb.WriteString(strings.Repeat(" ", start-cursor))
			sb.WriteString(b.lines[line])
			cursor = start + ansi.VisibleLen(b.lines[line])
		}
		sb.WriteByte('\n')
	}
}

// drawConnectors draws the edges arriving at this wave: a drop line
// from each upstream center, then a branch line spanning source and
// target columns.
func (r *GraphRenderer) drawConnectors(sb *strings.Builder, w *plan.Wave, boxes map[string]*intentBox, width int) {
	type edge struct{ from, to int }
	var edges []edge
	for i := range w.Intents {
		e := &w.Intents[i]
		toBox := boxes[e.ID]
		for _, dep := range e.DependsOn {
			if fromBox := boxes[dep]; fromBox != nil {
				edges = append(edges, edge{from: fromBox.center, to: toBox.center})
			}
		}
	}
	if len(edges) == 0 {
		return
	}

	drops := make([]rune, width)
	branch := make([]rune, width)
	for i := 0; i < width; i++ {
		drops[i], branch[i] = ' ', ' '
	}
	for _, e := range edges {
		if e.from >= 0 && e.from < width {
			drops[e.from] = '│'
		}
	}

	fanOut := make(map[int][]int)
	for _, e := range edges {
		fanOut[e.from] = append(fanOut[e.from], e.to)
	}
	froms := make([]int, 0, len(fanOut))
	for from := range fanOut {
		froms = append(froms, from)
	}
	sort.Ints(froms)

	for _, from := range froms {
		tos := fanOut[from]
		sort.Ints(tos)
		lo, hi := tos[0], tos[len(tos)-1]
		if from < lo {
			lo = from
		}
		if from > hi {
			hi = from
		}
		for col := lo; col <= hi && col < width; col++ {
			if col >= 0 && branch[col] == ' ' {
				branch[col] = '─'
			}
		}
		if from >= 0 && from < width {
			branch[from] = '┴'
			if len(tos) == 1 && tos[0] == from {
				branch[from] = '│'
			}
		}
		for _, to := range tos {
			if to < 0 || to >= width || to == from {
				continue
			}
			switch to {
			case lo:
				branch[to] = '├'
			case hi:
				branch[to] = '┤'
			default:
				branch[to] = '┬'
			}
		}
	}

	sb.WriteString(strings.TrimRight(string(drops), " "))
	sb.WriteByte('\n')
	sb.WriteString(strings.TrimRight(string(branch), " "))
	sb.WriteByte('\n')
}

// renderCompact draws one line per intent with its downstream edges.
func (r *GraphRenderer) renderCompact(p *plan.Plan, critical map[string]bool) string {
	dependents := make(map[string][]string)
	for wi := range p.Waves {
		for _, e := range p.Waves[wi].Intents {
			for _, dep := range e.DependsOn {
				dependents[dep] = append(dependents[dep], e.ID)
			}
		}
	}
	for id := range dependents {
		sort.Strings(dependents[id])
	}

	var sb strings.Builder
	for wi := range p.Waves {
		w := &p.Waves[wi]
		if wi > 0 {
			sb.WriteByte('\n')
		}
		label := fmt.Sprintf("wave %d: ", w.Wave)
		if r.Color {
			sb.WriteString(ansi.Dim + label + ansi.Reset)
		} else {
			sb.WriteString(label)
		}
		for i := range w.Intents {
			if i > 0 {
				sb.WriteString(strings.Repeat(" ", len(label)))
			}
			e := &w.Intents[i]
			sb.WriteString(r.compactNode(e.ID, critical[e.ID]))
			if ch := dependents[e.ID]; len(ch) > 0 {
				sb.WriteString(" → ")
				parts := make([]string, len(ch))
				for ci, child := range ch {
					parts[ci] = r.compactNode(child, critical[child])
				}
				sb.WriteString(strings.Join(parts, ", "))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (r *GraphRenderer) compactNode(id string, onPath bool) string {
	text := "[" + id + "]"
	if !r.Color {
		if onPath {
			return text + "*"
		}
		return text
	}
	style := ansi.Blue
	if onPath {
		style = ansi.Bold + ansi.Yellow
	}
	return style + text + ansi.Reset
}
