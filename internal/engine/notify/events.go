// Package notify decides which notification events a change of compliance
// state warrants. It never sends anything and never touches storage.
package notify

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"filingwatch/internal/domain"
)

type threshold struct {
	days  int
	event domain.EventType
}

// Ordered from loosest to tightest.
var thresholds = []threshold{
	{90, domain.EventDueSoon90},
	{30, domain.EventDueSoon30},
	{7, domain.EventDueSoon7},
	{0, domain.EventDueToday},
}

// Generate proposes events for the move from prev to next. prev is nil on the
// first evaluation of an entity.
//
// Threshold events fire when the previous days-remaining was strictly above a
// threshold and the new value is at or below it; OVERDUE_1 fires when the
// value drops below zero. When prev tracks a different deadline, or there is
// no prev, only the tightest threshold already reached fires.
// STATUS_CHANGED dedup keys also carry the new status.
func Generate(entityID string, prev *domain.ComplianceState, next domain.ComplianceState) []domain.NotificationEvent {
	var out []domain.NotificationEvent
	for _, t := range crossed(prev, next) {
		out = append(out, newEvent(entityID, t, next, nil,
			DedupKey(entityID, t, next.Form, next.DueDate)))
	}
	if prev != nil && prev.Status != next.Status {
		previous := prev.Status
		out = append(out, newEvent(entityID, domain.EventStatusChanged, next, &previous,
			dedupKey(entityID, string(domain.EventStatusChanged), string(next.Form), isoDate(next.DueDate), string(next.Status))))
	}
	return out
}

func crossed(prev *domain.ComplianceState, next domain.ComplianceState) []domain.EventType {
	days := next.DaysRemaining
	if prev == nil || !sameDeadline(*prev, next) {
		if days < 0 {
			return []domain.EventType{domain.EventOverdue1}
		}
		for i := len(thresholds) - 1; i >= 0; i-- {
			if days <= thresholds[i].days {
				return []domain.EventType{thresholds[i].event}
			}
		}
		return nil
	}

	var fired []domain.EventType
	before := prev.DaysRemaining
	for _, t := range thresholds {
		if before > t.days && days <= t.days {
			fired = append(fired, t.event)
		}
	}
	if before >= 0 && days < 0 {
		fired = append(fired, domain.EventOverdue1)
	}
	return fired
}

func sameDeadline(a, b domain.ComplianceState) bool {
	return a.Form == b.Form && isoDate(a.DueDate) == isoDate(b.DueDate)
}

func newEvent(entityID string, typ domain.EventType, s domain.ComplianceState, previous *domain.Status, key string) domain.NotificationEvent {
	return domain.NotificationEvent{
		EntityID: entityID,
		Type:     typ,
		DedupKey: key,
		Payload: domain.EventPayload{
			Form:           s.Form,
			DueDate:        isoDate(s.DueDate),
			DaysRemaining:  s.DaysRemaining,
			Status:         s.Status,
			Urgency:        s.Urgency,
			EngineVersion:  s.EngineVersion,
			PreviousStatus: previous,
		},
		Status:    domain.EventPending,
		CreatedAt: s.EvaluatedAt,
	}
}

// DedupKey is a pure function of its inputs; storage enforces it as unique.
func DedupKey(entityID string, typ domain.EventType, form domain.FormID, dueDate time.Time) string {
	return dedupKey(entityID, string(typ), string(form), isoDate(dueDate))
}

// dedupKey hashes length-prefixed parts so that no two distinct part lists
// share an encoding.
func dedupKey(parts ...string) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return "ne_" + hex.EncodeToString(h.Sum(nil))
}

func isoDate(t time.Time) string { return t.Format(time.DateOnly) }
