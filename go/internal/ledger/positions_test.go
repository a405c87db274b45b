package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/mcdev12/cashier/go/internal/store"
	"github.com/shopspring/decimal"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in      string
		id      string
		typ     models.BetType
		numbers []int
		desc    string
	}{
		{"regular17", "regular17", models.BetTypeStraight, []int{17}, "Straight Up on 17"},
		{"number-0", "regular0", models.BetTypeStraight, []int{0}, "Straight Up on 0"},
		{"split-20-17", "split-17-20", models.BetTypeSplit, []int{17, 20}, "Split 17/20"},
		{"split-1-0", "split-0-1", models.BetTypeSplit, []int{0, 1}, "Split 0/1"},
		{"street-4", "street-4", models.BetTypeStreet, []int{4, 5, 6}, "Street 4-5-6"},
		{"trio-2-0-3", "street-0-2-3", models.BetTypeStreet, []int{0, 2, 3}, "Street 0-2-3"},
		{"corner-5-1-4-2", "corner-1-2-4-5", models.BetTypeCorner, []int{1, 2, 4, 5}, "Corner 1/2/4/5"},
		{"corner-0-1-2-3", "corner-0-1-2-3", models.BetTypeCorner, []int{0, 1, 2, 3}, "Corner 0/1/2/3 (First Four)"},
		{"sixline-1-4", "sixline-1-4", models.BetTypeSixLine, []int{1, 2, 3, 4, 5, 6}, "Six Line 1-6"},
		{"2to1-3", "column-3", models.BetTypeColumn, []int{3, 6, 9, 12, 15, 18, 21, 24, 27, 30, 33, 36}, "3rd Column (2 to 1)"},
		{"1st12", "dozen-1", models.BetTypeDozen, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, "1st Dozen (1-12)"},
		{"1to18", "low", models.BetTypeEvenMoney, nil, "Low (1-18)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := Classify(tt.in)
			if p.ID != tt.id || p.Type != tt.typ || p.Description != tt.desc {
				t.Fatalf("Classify(%q) = {%s %s %q}, want {%s %s %q}", tt.in, p.ID, p.Type, p.Description, tt.id, tt.typ, tt.desc)
			}
			if tt.numbers != nil {
				if diff := cmp.Diff(tt.numbers, p.Numbers); diff != "" {
					t.Fatalf("numbers mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestClassifyRejectsInvalidGeometry(t *testing.T) {
	for _, id := range []string{"split-3-4", "corner-3-4-6-7", "street-2", "sixline-34-37", "regular37", "dozen-4", "banana"} {
		if p := Classify(id); p.Type != models.BetTypeUnknown {
			t.Errorf("Classify(%q) = %s, want unknown", id, p.Type)
		}
	}
}

func TestEvenMoneyCoversEighteenNumbers(t *testing.T) {
	for _, id := range []string{"red", "black", "even", "odd", "low", "high"} {
		if n := len(Classify(id).Numbers); n != 18 {
			t.Errorf("%s covers %d numbers, want 18", id, n)
		}
	}
}

func TestMultiplierTable(t *testing.T) {
	want := map[models.BetType]int64{
		models.BetTypeStraight:  35,
		models.BetTypeSplit:     17,
		models.BetTypeStreet:    11,
		models.BetTypeCorner:    8,
		models.BetTypeSixLine:   5,
		models.BetTypeColumn:    2,
		models.BetTypeDozen:     2,
		models.BetTypeEvenMoney: 1,
		models.BetTypeUnknown:   0,
	}
	for typ, m := range want {
		if got := typ.Multiplier(); got != m {
			t.Errorf("%s multiplier = %d, want %d", typ, got, m)
		}
	}
	if got := models.BetTypeStraight.PayoutLabel(); got != "Pays 35:1" {
		t.Errorf("straight label = %q", got)
	}
}

func TestDerivePositionID(t *testing.T) {
	aliases := NewAliasTable(DefaultAliasGroups)
	tests := []struct {
		classes []string
		want    string
	}{
		{[]string{"cell", "regular17", "black", "odd"}, "regular17"},
		{[]string{"odd", "black", "cell", "regular17"}, "regular17"},
		{[]string{"hit-area", "split-1-0", "corner-0-1-2-3"}, "split-0-1"},
		{[]string{"basket"}, "corner-0-1-2-3"},
		{[]string{"zone", "Dozen-2"}, "dozen-2"},
		{[]string{"decor", "arrow"}, "arrow.decor"},
	}
	for _, tt := range tests {
		if got := DerivePositionID(tt.classes, aliases); got != tt.want {
			t.Errorf("DerivePositionID(%v) = %q, want %q", tt.classes, got, tt.want)
		}
	}
}

func TestConfiguredAliasGroupsReplaceDefaults(t *testing.T) {
	led := New(NewWallet(store.NewMemoryStore(), decimal.NewFromInt(10)), nil,
		WithAliasGroups([]AliasGroup{{Canonical: "regular5", Members: []string{"five"}, Cells: []string{"regular5"}}}),
	)

	if p := led.Position("five"); p.ID != "regular5" || p.Type != models.BetTypeStraight {
		t.Fatalf("alias not resolved: %+v", p)
	}
	if p := led.Position("zero"); p.Type != models.BetTypeUnknown {
		t.Fatalf("default alias still active: %+v", p)
	}
}
