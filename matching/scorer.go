package matching

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
)

// NeutralScore is returned when no factor can be compared.
const NeutralScore = 50

// Factor weights. An excluded factor drops out of both sides of the ratio.
const (
	weightLocation  = 30.0
	weightBudget    = 25.0
	weightAge       = 15.0
	weightLifestyle = 20.0
	weightInterests = 10.0
)

// ageSpan is the age gap at which the age factor reaches zero.
const ageSpan = 20.0

// LifestyleKeys are the lifestyle attributes compared by Score.
var LifestyleKeys = []string{"smoking", "pets", "cleanliness", "noise", "guests"}

// Score computes the compatibility of two profiles. It is pure and symmetric.
func Score(a, b Profile) Compatibility {
	var earned, possible float64
	factors := 0

	add := func(contrib, weight float64, ok bool) {
		if !ok {
			return
		}
		earned += contrib
		possible += weight
		factors++
	}

	add(locationScore(a.Location, b.Location))
	add(budgetScore(a.Budget, b.Budget))
	add(ageScore(a.Age, b.Age))
	add(lifestyleScore(a.Lifestyle, b.Lifestyle))
	add(interestScore(a.Interests, b.Interests))

	if factors == 0 || possible == 0 {
		return Compatibility{Score: NeutralScore}
	}

	score := int(math.Round(100 * earned / possible))
	return Compatibility{Score: clamp(score, 0, 100), FactorsConsidered: factors}
}

// locationScore: full weight for a case-insensitive match, two thirds when one
// location contains the other.
func locationScore(a, b string) (float64, float64, bool) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0, weightLocation, false
	}
	fold := cases.Fold()
	a, b = fold.String(a), fold.String(b)

	switch {
	case a == b:
		return weightLocation, weightLocation, true
	case strings.Contains(a, b) || strings.Contains(b, a):
		return weightLocation * 2 / 3, weightLocation, true
	}
	return 0, weightLocation, true
}

func budgetScore(a, b int) (float64, float64, bool) {
	if a <= 0 || b <= 0 {
		return 0, weightBudget, false
	}
	diff := math.Abs(float64(a - b))
	hi := math.Max(float64(a), float64(b))
	return math.Max(0, 1-diff/hi) * weightBudget, weightBudget, true
}

func ageScore(a, b int) (float64, float64, bool) {
	if a <= 0 || b <= 0 {
		return 0, weightAge, false
	}
	diff := math.Abs(float64(a - b))
	return math.Max(0, 1-diff/ageSpan) * weightAge, weightAge, true
}

func lifestyleScore(a, b map[string]string) (float64, float64, bool) {
	shared, same := 0, 0
	for _, key := range LifestyleKeys {
		va, vb := strings.TrimSpace(a[key]), strings.TrimSpace(b[key])
		if va == "" || vb == "" {
			continue
		}
		shared++
		if va == vb {
			same++
		}
	}
	if shared == 0 {
		return 0, weightLifestyle, false
	}
	return float64(same) / float64(shared) * weightLifestyle, weightLifestyle, true
}

// interestScore is the Jaccard index of the two tag sets. The factor is
// excluded only when both sets are empty; one empty side scores 0.
func interestScore(a, b []string) (float64, float64, bool) {
	setA, setB := tagSet(a), tagSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0, weightInterests, false
	}

	inter := 0
	for tag := range setA {
		if _, ok := setB[tag]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union) * weightInterests, weightInterests, true
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
