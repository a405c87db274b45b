package ledger

import (
	"strings"

	"github.com/mcdev12/cashier/go/internal/models"
)

// AliasGroup is a set of identifiers that name the same bet because their
// hit areas overlap on the board. Cells lists every cell that renders the
// group's chip.
type AliasGroup struct {
	Canonical string   `yaml:"canonical"`
	Members   []string `yaml:"members"`
	Cells     []string `yaml:"cells"`
}

// DefaultAliasGroups covers the zero/one corner of the layout, where the
// zero cell spans three rows and the 0/1 split, trio and first-four hit
// areas overlap.
var DefaultAliasGroups = []AliasGroup{
	{
		Canonical: "regular0",
		Members:   []string{"number-0", "straight-0", "zero"},
		Cells:     []string{"regular0", "regular0-top", "regular0-middle", "regular0-bottom"},
	},
	{
		Canonical: "split-0-1",
		Members:   []string{"split-1-0", "zero-one-split"},
		Cells:     []string{"split-0-1", "regular0-split-1", "regular1-split-0"},
	},
	{
		Canonical: "split-0-2",
		Members:   []string{"split-2-0"},
		Cells:     []string{"split-0-2", "regular0-split-2"},
	},
	{
		Canonical: "split-0-3",
		Members:   []string{"split-3-0"},
		Cells:     []string{"split-0-3", "regular0-split-3"},
	},
	{
		Canonical: "street-0-1-2",
		Members:   []string{"trio-0-1-2", "street-1-0-2"},
		Cells:     []string{"street-0-1-2", "regular0-trio-low"},
	},
	{
		Canonical: "street-0-2-3",
		Members:   []string{"trio-0-2-3"},
		Cells:     []string{"street-0-2-3", "regular0-trio-high"},
	},
	{
		Canonical: "corner-0-1-2-3",
		Members:   []string{"first-four", "basket", "corner-1-0-2-3"},
		Cells:     []string{"corner-0-1-2-3", "regular0-corner-1", "regular1-corner-0"},
	},
}

// AliasTable resolves identifiers to their canonical group.
type AliasTable struct {
	byID map[string]*AliasGroup
}

func NewAliasTable(groups []AliasGroup) *AliasTable {
	t := &AliasTable{byID: make(map[string]*AliasGroup)}
	for i := range groups {
		g := &groups[i]
		t.byID[strings.ToLower(g.Canonical)] = g
		for _, m := range g.Members {
			t.byID[strings.ToLower(m)] = g
		}
	}
	return t
}

// Resolve returns the canonical identifier for id and its group, if any.
func (t *AliasTable) Resolve(id string) (string, *AliasGroup) {
	key := strings.ToLower(strings.TrimSpace(id))
	if t == nil {
		return key, nil
	}
	if g, ok := t.byID[key]; ok {
		return g.Canonical, g
	}
	return key, nil
}

// cellsFor returns the cells that render a chip for position p.
func (t *AliasTable) cellsFor(p Position) []string {
	if _, g := t.Resolve(p.ID); g != nil {
		return append([]string(nil), g.Cells...)
	}
	return []string{p.ID}
}

// virtualCells returns the mirror cells of zone bets. Zone bands are
// repeated on the compact board and must show the same chip.
func virtualCells(p Position) []string {
	switch p.Type {
	case models.BetTypeColumn, models.BetTypeDozen, models.BetTypeEvenMoney:
		return []string{"virtual-" + p.ID}
	}
	return nil
}
