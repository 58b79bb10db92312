package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"filingwatch/internal/domain"
	"filingwatch/internal/engine/notify"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store.SetClock(func() time.Time { return s.now })
}

func (s *StoreSuite) newEntity(owner string) domain.Entity {
	e, err := s.store.CreateEntity(s.ctx, domain.Entity{OwnerUserID: owner, DisplayName: "Acme LLC", Type: domain.EntityTypeLLC})
	s.Require().NoError(err)
	return e
}

func (s *StoreSuite) state(entityID string, days int) domain.ComplianceState {
	return domain.ComplianceState{
		Standing:    domain.StandingFor(days),
		EntityID:    entityID,
		Form:        domain.Form5472,
		DueDate:     time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		EvaluatedAt: s.now,
	}
}

func (s *StoreSuite) pendingEvent(entityID string, typ domain.EventType) domain.NotificationEvent {
	due := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	return domain.NotificationEvent{
		EntityID: entityID,
		Type:     typ,
		DedupKey: notify.DedupKey(entityID, typ, domain.Form5472, due),
		Status:   domain.EventPending,
	}
}

// ============================================================================
// Entities and snapshots
// ============================================================================

func (s *StoreSuite) TestEntities() {
	s.Run("assigns an ID and finds it", func() {
		e := s.newEntity("user-1")
		s.NotEmpty(e.ID)
		got, err := s.store.GetEntity(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(e, got)
	})

	s.Run("unknown ID is not found", func() {
		_, err := s.store.GetEntity(s.ctx, "missing")
		s.ErrorIs(err, domain.ErrNotFound)
	})

	s.Run("pages IDs in order", func() {
		for i := 0; i < 4; i++ {
			s.newEntity("user-2")
		}
		first, err := s.store.ListEntityIDs(s.ctx, "", 3)
		s.Require().NoError(err)
		s.Len(first, 3)
		rest, err := s.store.ListEntityIDs(s.ctx, first[2], 3)
		s.Require().NoError(err)
		s.Len(rest, 2)
		s.Less(first[2], rest[0])
	})
}

func (s *StoreSuite) TestSnapshots() {
	e := s.newEntity("user-1")

	_, found, err := s.store.LatestSnapshot(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(found)

	_, err = s.store.InsertSnapshot(s.ctx, domain.AssessmentSnapshot{EntityID: "missing"})
	s.ErrorIs(err, domain.ErrNotFound)

	first, err := s.store.InsertSnapshot(s.ctx, domain.AssessmentSnapshot{EntityID: e.ID, TaxYear: 2024})
	s.Require().NoError(err)
	second, err := s.store.InsertSnapshot(s.ctx, domain.AssessmentSnapshot{EntityID: e.ID, TaxYear: 2025})
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)

	latest, found, err := s.store.LatestSnapshot(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(second.ID, latest.ID)
}

// ============================================================================
// Evaluation writes
// ============================================================================

func (s *StoreSuite) TestApplyEvaluationDedupes() {
	e := s.newEntity("user-1")
	ev := s.pendingEvent(e.ID, domain.EventDueSoon30)

	inserted, err := s.store.ApplyEvaluation(s.ctx, s.state(e.ID, 30), []domain.NotificationEvent{ev})
	s.Require().NoError(err)
	s.Require().Len(inserted, 1)
	s.NotEmpty(inserted[0].ID)

	again, err := s.store.ApplyEvaluation(s.ctx, s.state(e.ID, 29), []domain.NotificationEvent{ev})
	s.Require().NoError(err)
	s.Empty(again)

	st, found, err := s.store.GetState(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(29, st.DaysRemaining, "state is replaced even when every event was a duplicate")

	events, err := s.store.ListEvents(s.ctx, e.ID, 10)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *StoreSuite) TestApplyEvaluationRejectsInconsistentStanding() {
	e := s.newEntity("user-1")
	bad := s.state(e.ID, 10)
	bad.Status = domain.StatusCurrent

	_, err := s.store.ApplyEvaluation(s.ctx, bad, nil)
	s.ErrorIs(err, domain.ErrInvariant)
	_, found, _ := s.store.GetState(s.ctx, e.ID)
	s.False(found)
}

// ============================================================================
// Delivery queue
// ============================================================================

func (s *StoreSuite) TestClaimLeaseAndRelease() {
	e := s.newEntity("user-1")
	_, err := s.store.ApplyEvaluation(s.ctx, s.state(e.ID, 7), []domain.NotificationEvent{
		s.pendingEvent(e.ID, domain.EventDueSoon7),
	})
	s.Require().NoError(err)

	claimed, err := s.store.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(1, claimed[0].Attempts)
	s.Equal("user-1", claimed[0].OwnerUserID)
	s.Equal("Acme LLC", claimed[0].EntityName)

	again, err := s.store.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Empty(again, "leased rows are invisible to other claimers")

	s.Require().NoError(s.store.ReleaseClaim(s.ctx, claimed[0].Event.ID, "smtp down", 30*time.Second))
	hidden, err := s.store.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Empty(hidden, "a released row waits out its retry delay")

	s.now = s.now.Add(30 * time.Second)
	retried, err := s.store.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(retried, 1)
	s.Equal(2, retried[0].Attempts)

	s.now = s.now.Add(2 * time.Minute)
	expired, err := s.store.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Len(expired, 1, "an expired lease makes the row claimable again")
}

func (s *StoreSuite) TestStatusOnlyMovesForward() {
	e := s.newEntity("user-1")
	inserted, err := s.store.ApplyEvaluation(s.ctx, s.state(e.ID, 0), []domain.NotificationEvent{
		s.pendingEvent(e.ID, domain.EventDueToday),
	})
	s.Require().NoError(err)
	id := inserted[0].ID

	ok, err := s.store.MarkSent(s.ctx, id, s.now)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.MarkCancelled(s.ctx, id, "late")
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.store.MarkSent(s.ctx, id, s.now)
	s.Require().NoError(err)
	s.False(ok)

	events, err := s.store.ListEvents(s.ctx, e.ID, 1)
	s.Require().NoError(err)
	s.Equal(domain.EventSent, events[0].Status)
	s.Require().NotNil(events[0].SentAt)

	_, err = s.store.MarkSent(s.ctx, "missing", s.now)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *StoreSuite) TestFeatures() {
	ok, err := s.store.HasFeature(s.ctx, "user-1", "compliance_reminders")
	s.Require().NoError(err)
	s.False(ok)

	s.store.GrantFeature("user-1", "compliance_reminders")
	ok, _ = s.store.HasFeature(s.ctx, "user-1", "compliance_reminders")
	s.True(ok)

	s.store.AllowAllFeatures(true)
	ok, _ = s.store.HasFeature(s.ctx, "user-2", "anything")
	s.True(ok)
}
