// Package merge reconciles pattern and model detections into one
// non-overlapping entity list.
package merge

import (
	"sort"

	"caseguard/internal/domain"
)

// Outranks reports whether candidate should replace incumbent when their spans
// overlap. Only strictly higher confidence wins; ties keep the incumbent.
func Outranks(candidate, incumbent domain.PIIEntity) bool {
	return candidate.Confidence > incumbent.Confidence
}

// Entities stable-sorts entities by start and keeps a non-overlapping subset.
// A candidate that overlaps an accepted entity is compared against the first
// such entity only. The input slice is not modified.
//
// The result is sorted by Start and pairwise non-overlapping: because the walk
// is start-ordered, a candidate can only overlap the most recently accepted
// entity, so a replacement never introduces a new overlap.
func Entities(entities []domain.PIIEntity) []domain.PIIEntity {
	if len(entities) == 0 {
		return nil
	}

	sorted := make([]domain.PIIEntity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	accepted := make([]domain.PIIEntity, 0, len(sorted))
	for _, c := range sorted {
		idx := firstOverlap(accepted, c)
		if idx < 0 {
			accepted = append(accepted, c)
			continue
		}
		if Outranks(c, accepted[idx]) {
			accepted[idx] = c
		}
	}
	return accepted
}

func firstOverlap(accepted []domain.PIIEntity, c domain.PIIEntity) int {
	for i, a := range accepted {
		if c.Overlaps(a) {
			return i
		}
	}
	return -1
}
