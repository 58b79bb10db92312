//go:build property

package notify

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"filingwatch/internal/domain"
)

func TestGenerateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)

	stateAt := func(days int) domain.ComplianceState {
		return domain.ComplianceState{
			Standing: domain.StandingFor(days),
			EntityID: "ent",
			Form:     domain.Form5472,
			DueDate:  due,
		}
	}

	// Walking days-remaining down one step at a time from far out to overdue
	// fires every threshold event exactly once.
	properties.Property("monotone walk fires each threshold once", prop.ForAll(
		func(start int, steps []int) bool {
			counts := map[domain.EventType]int{}
			days := start
			prev := stateAt(days)
			for _, step := range steps {
				days -= step
				next := stateAt(days)
				for _, e := range Generate("ent", &prev, next) {
					counts[e.Type]++
				}
				prev = next
			}
			for days >= -1 {
				days--
				next := stateAt(days)
				for _, e := range Generate("ent", &prev, next) {
					counts[e.Type]++
				}
				prev = next
			}
			for _, typ := range []domain.EventType{
				domain.EventDueSoon90, domain.EventDueSoon30, domain.EventDueSoon7,
				domain.EventDueToday, domain.EventOverdue1,
			} {
				if counts[typ] != 1 {
					return false
				}
			}
			return counts[domain.EventStatusChanged] == 2
		},
		gen.IntRange(91, 400), gen.SliceOf(gen.IntRange(0, 40)),
	))

	eventTypes := gen.OneConstOf(
		domain.EventDueSoon90, domain.EventDueSoon30, domain.EventDueSoon7,
		domain.EventDueToday, domain.EventOverdue1, domain.EventStatusChanged,
	)
	forms := gen.OneConstOf(domain.Form5472, domain.FormProForma1120)

	properties.Property("distinct inputs give distinct keys", prop.ForAll(
		func(a, b string, typA, typB domain.EventType, formA, formB domain.FormID, dayA, dayB int) bool {
			ka := DedupKey(a, typA, formA, due.AddDate(0, 0, dayA))
			kb := DedupKey(b, typB, formB, due.AddDate(0, 0, dayB))
			same := a == b && typA == typB && formA == formB && dayA == dayB
			return (ka == kb) == same
		},
		gen.AlphaString(), gen.AlphaString(), eventTypes, eventTypes, forms, forms,
		gen.IntRange(0, 5), gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
