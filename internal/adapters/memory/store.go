// Package memory is an in-process implementation of the persistence ports. It
// honours the same uniqueness and status-transition rules as Postgres and is
// used by tests and by local runs without DATABASE_URL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"filingwatch/internal/domain"
	"filingwatch/internal/ports"
)

type eventRow struct {
	event        domain.NotificationEvent
	claimedUntil time.Time
	attempts     int
	lastError    string
}

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	entities  map[string]domain.Entity
	snapshots map[string][]domain.AssessmentSnapshot
	states    map[string]domain.ComplianceState
	events    []*eventRow
	dedup     map[string]struct{}
	features  map[string]map[string]bool
	allowAll  bool
}

func New() *Store {
	return &Store{
		now:       time.Now,
		entities:  make(map[string]domain.Entity),
		snapshots: make(map[string][]domain.AssessmentSnapshot),
		states:    make(map[string]domain.ComplianceState),
		dedup:     make(map[string]struct{}),
		features:  make(map[string]map[string]bool),
	}
}

// SetClock overrides the clock used for claim leases.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AllowAllFeatures makes HasFeature return true for everyone.
func (s *Store) AllowAllFeatures(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowAll = allow
}

func (s *Store) GrantFeature(userID, feature string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.features[userID] == nil {
		s.features[userID] = make(map[string]bool)
	}
	s.features[userID][feature] = true
}

func (s *Store) CreateEntity(_ context.Context, e domain.Entity) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := s.entities[e.ID]; exists {
		return domain.Entity{}, domain.ErrConflict
	}
	s.entities[e.ID] = e
	return e, nil
}

func (s *Store) GetEntity(_ context.Context, entityID string) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEntityIDs(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) InsertSnapshot(_ context.Context, snap domain.AssessmentSnapshot) (domain.AssessmentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[snap.EntityID]; !ok {
		return domain.AssessmentSnapshot{}, domain.ErrNotFound
	}
	snap.ID = uuid.NewString()
	s.snapshots[snap.EntityID] = append(s.snapshots[snap.EntityID], snap)
	return snap, nil
}

func (s *Store) LatestSnapshot(_ context.Context, entityID string) (domain.AssessmentSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.snapshots[entityID]
	if len(list) == 0 {
		return domain.AssessmentSnapshot{}, false, nil
	}
	return list[len(list)-1], true, nil
}

func (s *Store) GetState(_ context.Context, entityID string) (domain.ComplianceState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[entityID]
	return st, ok, nil
}

func (s *Store) ApplyEvaluation(_ context.Context, state domain.ComplianceState, events []domain.NotificationEvent) ([]domain.NotificationEvent, error) {
	if err := state.Standing.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.EntityID] = state
	var inserted []domain.NotificationEvent
	for _, ev := range events {
		if _, dup := s.dedup[ev.DedupKey]; dup {
			continue
		}
		ev.ID = uuid.NewString()
		ev.Status = domain.EventPending
		s.dedup[ev.DedupKey] = struct{}{}
		s.events = append(s.events, &eventRow{event: ev})
		inserted = append(inserted, ev)
	}
	return inserted, nil
}

// ListEvents returns the newest events first.
func (s *Store) ListEvents(_ context.Context, entityID string, limit int) ([]domain.NotificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.NotificationEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].event.EntityID != entityID {
			continue
		}
		out = append(out, s.events[i].event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ClaimPending(_ context.Context, limit int, lease time.Duration) ([]ports.PendingDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []ports.PendingDelivery
	for _, row := range s.events {
		if len(out) >= limit {
			break
		}
		if row.event.Status != domain.EventPending || now.Before(row.claimedUntil) {
			continue
		}
		row.claimedUntil = now.Add(lease)
		row.attempts++
		ent := s.entities[row.event.EntityID]
		out = append(out, ports.PendingDelivery{
			Event:       row.event,
			OwnerUserID: ent.OwnerUserID,
			EntityName:  ent.DisplayName,
			Attempts:    row.attempts,
		})
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, eventID string, at time.Time) (bool, error) {
	return s.finalise(eventID, domain.EventSent, at, "")
}

func (s *Store) MarkCancelled(_ context.Context, eventID string, reason string) (bool, error) {
	return s.finalise(eventID, domain.EventCancelled, time.Time{}, reason)
}

func (s *Store) finalise(eventID string, to domain.EventStatus, at time.Time, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(eventID)
	if row == nil {
		return false, domain.ErrNotFound
	}
	if row.event.Status != domain.EventPending {
		return false, nil
	}
	row.event.Status = to
	if to == domain.EventSent {
		sentAt := at.UTC()
		row.event.SentAt = &sentAt
	}
	row.lastError = reason
	row.claimedUntil = time.Time{}
	return true, nil
}

func (s *Store) ReleaseClaim(_ context.Context, eventID string, reason string, retryAfter time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.find(eventID)
	if row == nil {
		return domain.ErrNotFound
	}
	if row.event.Status == domain.EventPending {
		row.claimedUntil = s.now().Add(retryAfter)
		row.lastError = reason
	}
	return nil
}

func (s *Store) HasFeature(_ context.Context, userID string, feature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allowAll {
		return true, nil
	}
	return s.features[userID][feature], nil
}

func (s *Store) find(eventID string) *eventRow {
	for _, row := range s.events {
		if row.event.ID == eventID {
			return row
		}
	}
	return nil
}
