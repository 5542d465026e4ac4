// Package segment maps RFM scores onto named marketing segments and
// lifecycle stages.
package segment

import (
	"sort"

	"golang-rfm-analytics-service/internal/models"
)

// rule pairs a segment label with its score predicate.
type rule struct {
	label models.Segment
	match func(r, f int) bool
}

// Rules are evaluated top to bottom, first match wins. Order matters:
// "Loyalists" would swallow "Champions" if it came first. The trailing
// catch-all keeps classification total for every score combination.
var rules = []rule{
	{models.SegmentChampions, func(r, f int) bool { return r == 5 && f == 4 }},
	{models.SegmentLoyalists, func(r, f int) bool { return r >= 4 && f >= 3 }},
	{models.SegmentPotentialLoyal, func(r, f int) bool { return r >= 4 && f <= 2 }},
	{models.SegmentAtRisk, func(r, f int) bool { return r == 3 }},
	{models.SegmentHibernating, func(r, f int) bool { return r == 2 }},
	{models.SegmentLost, func(r, f int) bool { return true }},
}

// Classify returns the marketing segment for a recency/frequency score pair
func Classify(rScore, fScore int) models.Segment {
	for _, rl := range rules {
		if rl.match(rScore, fScore) {
			return rl.label
		}
	}
	// Unreachable, the last rule always matches.
	return models.SegmentLost
}

// Lifecycle returns the coarse lifecycle stage for a recency score. It is
// derived from the recency score alone, independently of the segment label.
func Lifecycle(rScore int) models.LifecycleStage {
	switch {
	case rScore >= 4:
		return models.LifecycleActive
	case rScore == 3:
		return models.LifecycleAtRisk
	default:
		return models.LifecycleChurned
	}
}

// Apply labels every scored customer in place with its segment and
// lifecycle stage.
func Apply(customers []*models.ScoredCustomer) {
	for _, c := range customers {
		c.Segment = Classify(c.RScore, c.FScore)
		c.LifecycleStage = Lifecycle(c.RScore)
	}
}

// Count holds the population of a single segment.
type Count struct {
	Segment models.Segment
	Count   int
}

// Distribution returns per-segment populations, largest first with ties
// broken alphabetically so log output is stable across runs.
func Distribution(customers []*models.ScoredCustomer) []Count {
	byLabel := make(map[models.Segment]int)
	for _, c := range customers {
		byLabel[c.Segment]++
	}

	counts := make([]Count, 0, len(byLabel))
	for label, n := range byLabel {
		counts = append(counts, Count{Segment: label, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Segment < counts[j].Segment
	})
	return counts
}

// LifecycleDistribution returns per-stage populations in fixed stage order.
func LifecycleDistribution(customers []*models.ScoredCustomer) []LifecycleCount {
	byStage := make(map[models.LifecycleStage]int)
	for _, c := range customers {
		byStage[c.LifecycleStage]++
	}

	stages := []models.LifecycleStage{
		models.LifecycleActive,
		models.LifecycleAtRisk,
		models.LifecycleChurned,
	}
	counts := make([]LifecycleCount, 0, len(stages))
	for _, stage := range stages {
		counts = append(counts, LifecycleCount{Stage: stage, Count: byStage[stage]})
	}
	return counts
}

// LifecycleCount holds the population of a single lifecycle stage.
type LifecycleCount struct {
	Stage models.LifecycleStage
	Count int
}
