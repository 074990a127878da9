package scandoc

import (
	"sort"

	"github.com/tidwall/rtree"
)

// UnitKind tells whether a render unit is text or a table.
type UnitKind int

const (
	UnitText UnitKind = iota
	UnitTable
)

// RenderUnit is one item of a page's output, in reading order.
type RenderUnit struct {
	Kind  UnitKind
	Block TextBlock       // set when Kind is UnitText
	Table ReconciledTable // set when Kind is UnitTable
}

// PagePlan is the ordered content of one page. Every text block of the page
// is in exactly one of Units or Occluded.
type PagePlan struct {
	Page     int
	Units    []RenderUnit
	Occluded []TextBlock
}

// RenderPlan is the ordered content of a whole document.
type RenderPlan struct {
	Pages []PagePlan
}

// Tables returns every table unit of the plan in order.
func (p RenderPlan) Tables() []ReconciledTable {
	var out []ReconciledTable
	for _, page := range p.Pages {
		for _, u := range page.Units {
			if u.Kind == UnitTable {
				out = append(out, u.Table)
			}
		}
	}
	return out
}

// Compose merges a page's text blocks with its tables. Blocks overlapping a
// table's box, or one of the extra regions, are hidden because the table
// renders their content. Visible blocks and tables are ordered by their top
// edge with text first on ties; tables without geometry go last.
func Compose(page int, blocks []TextBlock, tables []ReconciledTable, regions []Rect) PagePlan {
	var occluders rtree.RTreeG[Rect]
	for _, t := range tables {
		if t.BBox != nil {
			insertRect(&occluders, *t.BBox)
		}
	}
	for _, r := range regions {
		insertRect(&occluders, r)
	}

	plan := PagePlan{Page: page}

	type positioned struct {
		top  float64
		unit RenderUnit
	}
	var units []positioned

	for _, block := range blocks {
		if overlapsAny(&occluders, block.Box) {
			plan.Occluded = append(plan.Occluded, block)
			continue
		}
		units = append(units, positioned{top: block.Box.Y0, unit: RenderUnit{Kind: UnitText, Block: block}})
	}

	var floating []RenderUnit
	for _, t := range tables {
		unit := RenderUnit{Kind: UnitTable, Table: t}
		if t.BBox == nil {
			floating = append(floating, unit)
			continue
		}
		units = append(units, positioned{top: t.BBox.Y0, unit: unit})
	}

	// Text units were appended before tables, so a stable sort keeps text
	// first on equal tops and preserves original order otherwise.
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].top < units[j].top
	})

	plan.Units = make([]RenderUnit, 0, len(units)+len(floating))
	for _, u := range units {
		plan.Units = append(plan.Units, u.unit)
	}
	plan.Units = append(plan.Units, floating...)

	return plan
}

func insertRect(tr *rtree.RTreeG[Rect], r Rect) {
	tr.Insert([2]float64{r.X0, r.Y0}, [2]float64{r.X1, r.Y1}, r)
}

// overlapsAny reports whether box strictly intersects an indexed rectangle.
// The index search also returns rectangles that only touch box.
func overlapsAny(tr *rtree.RTreeG[Rect], box Rect) bool {
	hit := false
	tr.Search([2]float64{box.X0, box.Y0}, [2]float64{box.X1, box.Y1}, func(_, _ [2]float64, r Rect) bool {
		if box.Intersects(r) {
			hit = true
			return false
		}
		return true
	})
	return hit
}
