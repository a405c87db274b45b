package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mcdev12/cashier/go/internal/models"
)

// Position is a classified board position.
type Position struct {
	ID          string
	Type        models.BetType
	Numbers     []int
	Description string
}

var ordinals = map[int]string{1: "1st", 2: "2nd", 3: "3rd"}

// evenMoney maps every accepted spelling to its canonical id.
var evenMoney = map[string]string{
	"red":    "red",
	"black":  "black",
	"even":   "even",
	"odd":    "odd",
	"low":    "low",
	"1to18":  "low",
	"1-18":   "low",
	"high":   "high",
	"19to36": "high",
	"19-36":  "high",
}

var dozenNames = map[string]int{"1st12": 1, "2nd12": 2, "3rd12": 3}

// Classify decodes a position identifier into its bet type, covered numbers
// and canonical id. Identifiers that match no rule classify as unknown.
func Classify(raw string) Position {
	id := strings.ToLower(strings.TrimSpace(raw))

	if canonical, ok := evenMoney[id]; ok {
		return evenMoneyPosition(canonical)
	}
	if k, ok := dozenNames[id]; ok {
		return dozenPosition(k)
	}
	if n, ok := straightNumber(id); ok {
		return Position{
			ID:          fmt.Sprintf("regular%d", n),
			Type:        models.BetTypeStraight,
			Numbers:     []int{n},
			Description: fmt.Sprintf("Straight Up on %d", n),
		}
	}

	parts := strings.Split(id, "-")
	nums, ok := atois(parts[1:])
	if ok {
		switch parts[0] {
		case "split":
			if p, ok := splitPosition(nums); ok {
				return p
			}
		case "street", "trio":
			if p, ok := streetPosition(nums); ok {
				return p
			}
		case "corner", "square":
			if p, ok := cornerPosition(nums); ok {
				return p
			}
		case "sixline", "line":
			if p, ok := sixLinePosition(nums); ok {
				return p
			}
		case "column", "2to1":
			if len(nums) == 1 && nums[0] >= 1 && nums[0] <= 3 {
				return columnPosition(nums[0])
			}
		case "dozen":
			if len(nums) == 1 && nums[0] >= 1 && nums[0] <= 3 {
				return dozenPosition(nums[0])
			}
		}
	}

	return Position{
		ID:          id,
		Type:        models.BetTypeUnknown,
		Description: fmt.Sprintf("Unknown position %s", id),
	}
}

func straightNumber(id string) (int, bool) {
	for _, prefix := range []string{"regular", "number-", "straight-"} {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		rest := strings.TrimPrefix(strings.TrimPrefix(id, prefix), "-")
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n > 36 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func atois(parts []string) ([]int, bool) {
	if len(parts) == 0 {
		return nil, false
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 36 {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// adjacent reports whether a and b share an edge on the table layout.
func adjacent(a, b int) bool {
	if a > b {
		a, b = b, a
	}
	if a == 0 {
		return b >= 1 && b <= 3
	}
	if b-a == 3 {
		return true
	}
	return b-a == 1 && a%3 != 0
}

func splitPosition(nums []int) (Position, bool) {
	if len(nums) != 2 || !adjacent(nums[0], nums[1]) {
		return Position{}, false
	}
	a, b := nums[0], nums[1]
	if a > b {
		a, b = b, a
	}
	return Position{
		ID:          fmt.Sprintf("split-%d-%d", a, b),
		Type:        models.BetTypeSplit,
		Numbers:     []int{a, b},
		Description: fmt.Sprintf("Split %d/%d", a, b),
	}, true
}

func streetPosition(nums []int) (Position, bool) {
	switch len(nums) {
	case 1:
		n := nums[0]
		if n < 1 || n > 34 || n%3 != 1 {
			return Position{}, false
		}
		return Position{
			ID:          fmt.Sprintf("street-%d", n),
			Type:        models.BetTypeStreet,
			Numbers:     []int{n, n + 1, n + 2},
			Description: fmt.Sprintf("Street %d-%d-%d", n, n+1, n+2),
		}, true
	case 3:
		sorted := append([]int(nil), nums...)
		sort.Ints(sorted)
		trio := sorted[0] == 0 && ((sorted[1] == 1 && sorted[2] == 2) || (sorted[1] == 2 && sorted[2] == 3))
		if !trio {
			if sorted[1] == sorted[0]+1 && sorted[2] == sorted[0]+2 {
				return streetPosition(sorted[:1])
			}
			return Position{}, false
		}
		return Position{
			ID:          fmt.Sprintf("street-%d-%d-%d", sorted[0], sorted[1], sorted[2]),
			Type:        models.BetTypeStreet,
			Numbers:     sorted,
			Description: fmt.Sprintf("Street %d-%d-%d", sorted[0], sorted[1], sorted[2]),
		}, true
	}
	return Position{}, false
}

func cornerPosition(nums []int) (Position, bool) {
	if len(nums) != 4 {
		return Position{}, false
	}
	s := append([]int(nil), nums...)
	sort.Ints(s)
	if s[0] == 0 && s[1] == 1 && s[2] == 2 && s[3] == 3 {
		return Position{
			ID:          "corner-0-1-2-3",
			Type:        models.BetTypeCorner,
			Numbers:     s,
			Description: "Corner 0/1/2/3 (First Four)",
		}, true
	}
	a := s[0]
	if a < 1 || a > 32 || a%3 == 0 || s[1] != a+1 || s[2] != a+3 || s[3] != a+4 {
		return Position{}, false
	}
	return Position{
		ID:          fmt.Sprintf("corner-%d-%d-%d-%d", s[0], s[1], s[2], s[3]),
		Type:        models.BetTypeCorner,
		Numbers:     s,
		Description: fmt.Sprintf("Corner %d/%d/%d/%d", s[0], s[1], s[2], s[3]),
	}, true
}

func sixLinePosition(nums []int) (Position, bool) {
	n := nums[0]
	switch {
	case len(nums) == 1:
	case len(nums) == 2 && nums[1] == n+3:
	default:
		return Position{}, false
	}
	if n < 1 || n > 31 || n%3 != 1 {
		return Position{}, false
	}
	numbers := make([]int, 6)
	for i := range numbers {
		numbers[i] = n + i
	}
	return Position{
		ID:          fmt.Sprintf("sixline-%d-%d", n, n+3),
		Type:        models.BetTypeSixLine,
		Numbers:     numbers,
		Description: fmt.Sprintf("Six Line %d-%d", n, n+5),
	}, true
}

func columnPosition(k int) Position {
	numbers := make([]int, 0, 12)
	for n := k; n <= 36; n += 3 {
		numbers = append(numbers, n)
	}
	return Position{
		ID:          fmt.Sprintf("column-%d", k),
		Type:        models.BetTypeColumn,
		Numbers:     numbers,
		Description: fmt.Sprintf("%s Column (2 to 1)", ordinals[k]),
	}
}

func dozenPosition(k int) Position {
	first := 12*(k-1) + 1
	numbers := make([]int, 12)
	for i := range numbers {
		numbers[i] = first + i
	}
	return Position{
		ID:          fmt.Sprintf("dozen-%d", k),
		Type:        models.BetTypeDozen,
		Numbers:     numbers,
		Description: fmt.Sprintf("%s Dozen (%d-%d)", ordinals[k], first, first+11),
	}
}

func evenMoneyPosition(canonical string) Position {
	var numbers []int
	var desc string
	for n := 1; n <= 36; n++ {
		var in bool
		switch canonical {
		case "red":
			in, desc = models.IsRed(n), "Red"
		case "black":
			in, desc = !models.IsRed(n), "Black"
		case "even":
			in, desc = n%2 == 0, "Even"
		case "odd":
			in, desc = n%2 == 1, "Odd"
		case "low":
			in, desc = n <= 18, "Low (1-18)"
		case "high":
			in, desc = n >= 19, "High (19-36)"
		}
		if in {
			numbers = append(numbers, n)
		}
	}
	return Position{
		ID:          canonical,
		Type:        models.BetTypeEvenMoney,
		Numbers:     numbers,
		Description: desc,
	}
}

var specificity = map[models.BetType]int{
	models.BetTypeStraight:  0,
	models.BetTypeSplit:     1,
	models.BetTypeStreet:    2,
	models.BetTypeCorner:    3,
	models.BetTypeSixLine:   4,
	models.BetTypeColumn:    5,
	models.BetTypeDozen:     6,
	models.BetTypeEvenMoney: 7,
}

// DerivePositionID derives a stable position id from the class tokens of a
// board cell. The most specific recognised position wins; with no
// recognised token the sorted token set is joined with ".".
func DerivePositionID(classes []string, aliases *AliasTable) string {
	var best *Position
	seen := make(map[string]bool)
	var tokens []string

	for _, c := range classes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		tokens = append(tokens, c)

		canonical := c
		if aliases != nil {
			canonical, _ = aliases.Resolve(c)
		}
		p := Classify(canonical)
		if p.Type == models.BetTypeUnknown {
			continue
		}
		if best == nil ||
			specificity[p.Type] < specificity[best.Type] ||
			(specificity[p.Type] == specificity[best.Type] && p.ID < best.ID) {
			pp := p
			best = &pp
		}
	}

	if best != nil {
		return best.ID
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ".")
}
