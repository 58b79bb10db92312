// Package monitor reduces a deadline set to the single current compliance state
// of an entity.
package monitor

import (
	"sort"
	"time"

	"filingwatch/internal/domain"
)

const Version = "1.0.0"

// ComputeState picks the earliest deadline and measures it against now, both
// truncated to calendar dates. ok is false when there are no deadlines; callers
// skip the entity rather than store a placeholder.
func ComputeState(entityID string, deadlines []domain.Deadline, version string, now time.Time) (state domain.ComplianceState, ok bool) {
	next, ok := Nearest(deadlines)
	if !ok {
		return domain.ComplianceState{}, false
	}
	return domain.ComplianceState{
		Standing:      domain.StandingFor(domain.DaysBetween(now, next.DueDate)),
		EntityID:      entityID,
		Form:          next.Form,
		DueDate:       domain.CalendarDate(next.DueDate),
		EngineVersion: version,
		EvaluatedAt:   now.UTC(),
	}, true
}

// Nearest returns the deadline with the earliest due date. Ties keep input
// order.
func Nearest(deadlines []domain.Deadline) (domain.Deadline, bool) {
	if len(deadlines) == 0 {
		return domain.Deadline{}, false
	}
	sorted := make([]domain.Deadline, len(deadlines))
	copy(sorted, deadlines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.CalendarDate(sorted[i].DueDate).Before(domain.CalendarDate(sorted[j].DueDate))
	})
	return sorted[0], true
}
