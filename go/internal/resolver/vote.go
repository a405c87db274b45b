package resolver

import (
	"regexp"
	"strconv"
)

// DisplayText is the text a screen currently shows for one display element.
type DisplayText struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

// selectorWeights ranks how authoritative each display element is. An
// element explicitly tagged as the next draw outranks generic draw labels.
var selectorWeights = map[string]int{
	"#next-draw-number":        10,
	".next-draw-number":        9,
	"[data-next-draw]":         8,
	"#upcoming-draw-number":    7,
	".upcoming-draw .selected": 6,
	".upcoming-draw-number":    5,
	"#draw-number":             4,
	".draw-number":             3,
	".draw-info":               2,
	".countdown-label":         1,
}

// drawPatterns are tried in order; the first pattern that matches a text
// supplies every number taken from it.
var drawPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)next\s+draw\s*(?:#|no\.?|number)?\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)draw\s*(?:#|no\.?|number)\s*:?\s*(\d+)`),
	regexp.MustCompile(`#\s*(\d+)`),
	regexp.MustCompile(`\b(\d{1,7})\b`),
}

// Vote scores every number found in texts by the weight of the element it
// came from and returns the highest scoring one. Ties go to the larger
// number. Texts from unranked elements are ignored.
func Vote(texts []DisplayText) (int, bool) {
	scores := make(map[int]int)
	for _, t := range texts {
		weight := selectorWeights[t.Selector]
		if weight == 0 {
			continue
		}
		for _, n := range extractNumbers(t.Text) {
			scores[n] += weight
		}
	}

	best, bestScore := 0, 0
	for n, score := range scores {
		if score > bestScore || (score == bestScore && n > best) {
			best, bestScore = n, score
		}
	}
	return best, bestScore > 0
}

func extractNumbers(text string) []int {
	for _, re := range drawPatterns {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		var out []int
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				continue
			}
			out = append(out, n)
		}
		return out
	}
	return nil
}
