//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	pg "filingwatch/internal/adapters/postgres"
	"filingwatch/internal/domain"
	"filingwatch/internal/engine/notify"
	"filingwatch/internal/services/assessments"
)

type PostgresSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *pg.DB
	ctx       context.Context
	now       time.Time
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("filingwatch"),
		tcpostgres.WithUsername("filingwatch"),
		tcpostgres.WithPassword("filingwatch"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.db, err = pg.Connect(s.ctx, url, 8)
	s.Require().NoError(err)
	s.Require().NoError(s.db.Migrate(s.ctx))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresSuite) SetupTest() {
	s.now = time.Date(2026, 3, 30, 6, 0, 0, 0, time.UTC)
	_, err := s.db.Pool.Exec(s.ctx, `TRUNCATE notification_events, compliance_states, assessments, entitlements, entities CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresSuite) newEntity(owner string) domain.Entity {
	e, err := s.db.CreateEntity(s.ctx, domain.Entity{
		OwnerUserID: owner, DisplayName: "Acme LLC", Type: domain.EntityTypeLLC, CreatedAt: s.now,
	})
	s.Require().NoError(err)
	return e
}

func (s *PostgresSuite) state(entityID string, days int) domain.ComplianceState {
	return domain.ComplianceState{
		Standing:      domain.StandingFor(days),
		EntityID:      entityID,
		Form:          domain.Form5472,
		DueDate:       time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		EngineVersion: "1.0.0",
		EvaluatedAt:   s.now,
	}
}

func (s *PostgresSuite) event(entityID string, typ domain.EventType) domain.NotificationEvent {
	st := s.state(entityID, 16)
	return domain.NotificationEvent{
		EntityID:  entityID,
		Type:      typ,
		DedupKey:  notify.DedupKey(entityID, typ, st.Form, st.DueDate),
		Payload:   domain.EventPayload{Form: st.Form, DueDate: "2026-04-15", DaysRemaining: 16, Status: st.Status, Urgency: st.Urgency},
		Status:    domain.EventPending,
		CreatedAt: s.now,
	}
}

// ============================================================================
// Entities and snapshots
// ============================================================================

func (s *PostgresSuite) TestEntityLookup() {
	e := s.newEntity("u1")
	got, err := s.db.GetEntity(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.DisplayName, got.DisplayName)
	s.Equal(domain.EntityTypeLLC, got.Type)

	_, err = s.db.GetEntity(s.ctx, "not-a-uuid")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresSuite) TestListEntityIDsPages() {
	for i := 0; i < 5; i++ {
		s.newEntity("u1")
	}
	first, err := s.db.ListEntityIDs(s.ctx, "", 3)
	s.Require().NoError(err)
	s.Len(first, 3)
	rest, err := s.db.ListEntityIDs(s.ctx, first[2], 3)
	s.Require().NoError(err)
	s.Len(rest, 2)
}

func (s *PostgresSuite) TestSnapshotRoundTrip() {
	e := s.newEntity("u1")
	snap, err := assessments.BuildSnapshot(e.ID, domain.EntityProfile{
		EntityType: domain.EntityTypeLLC, ForeignOwned: true, SingleMember: true,
		HasRelatedPartyTransactions: true, TaxYear: 2025, State: "WY",
	}, s.now)
	s.Require().NoError(err)

	stored, err := s.db.InsertSnapshot(s.ctx, snap)
	s.Require().NoError(err)
	s.NotEmpty(stored.ID)

	latest, found, err := s.db.LatestSnapshot(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(stored.ID, latest.ID)
	s.Equal(snap.Risk.RiskScore, latest.Risk.RiskScore)
	s.True(snap.Risk.Penalties[0].Amount.Equal(latest.Risk.Penalties[0].Amount))
	s.Require().Len(latest.Deadlines, 2)
	s.Equal("2026-04-15", latest.Deadlines[0].DueDateISO())
}

// ============================================================================
// Evaluation writes
// ============================================================================

func (s *PostgresSuite) TestApplyEvaluationIsIdempotent() {
	e := s.newEntity("u1")
	events := []domain.NotificationEvent{s.event(e.ID, domain.EventDueSoon30)}

	inserted, err := s.db.ApplyEvaluation(s.ctx, s.state(e.ID, 16), events)
	s.Require().NoError(err)
	s.Require().Len(inserted, 1)
	s.NotEmpty(inserted[0].ID)

	inserted, err = s.db.ApplyEvaluation(s.ctx, s.state(e.ID, 15), events)
	s.Require().NoError(err)
	s.Empty(inserted)

	st, found, err := s.db.GetState(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Equal(15, st.DaysRemaining)
	s.Equal(domain.Form5472, st.Form)

	listed, err := s.db.ListEvents(s.ctx, e.ID, 10)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *PostgresSuite) TestConcurrentApplyInsertsOnce() {
	e := s.newEntity("u1")
	ev := s.event(e.ID, domain.EventDueSoon7)
	const writers = 10

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := s.db.ApplyEvaluation(s.ctx, s.state(e.ID, 7), []domain.NotificationEvent{ev})
			s.NoError(err)
			mu.Lock()
			total += len(inserted)
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(1, total)
}

// ============================================================================
// Delivery queue
// ============================================================================

func (s *PostgresSuite) TestClaimAndFinalise() {
	e := s.newEntity("u1")
	_, err := s.db.ApplyEvaluation(s.ctx, s.state(e.ID, 16), []domain.NotificationEvent{
		s.event(e.ID, domain.EventDueSoon30),
		s.event(e.ID, domain.EventDueSoon90),
	})
	s.Require().NoError(err)

	claimed, err := s.db.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)
	s.Equal("u1", claimed[0].OwnerUserID)
	s.Equal(1, claimed[0].Attempts)

	again, err := s.db.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Empty(again)

	ok, err := s.db.MarkSent(s.ctx, claimed[0].Event.ID, s.now)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.db.MarkCancelled(s.ctx, claimed[0].Event.ID, "late")
	s.Require().NoError(err)
	s.False(ok, "SENT never moves back")

	s.Require().NoError(s.db.ReleaseClaim(s.ctx, claimed[1].Event.ID, "broker down", time.Hour))
	hidden, err := s.db.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Empty(hidden, "a released row waits out its retry delay")

	s.Require().NoError(s.db.ReleaseClaim(s.ctx, claimed[1].Event.ID, "retry now", 0))
	retried, err := s.db.ClaimPending(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(retried, 1)
	s.Equal(2, retried[0].Attempts)
}

func (s *PostgresSuite) TestTriggerRejectsBackwardTransition() {
	e := s.newEntity("u1")
	inserted, err := s.db.ApplyEvaluation(s.ctx, s.state(e.ID, 16), []domain.NotificationEvent{s.event(e.ID, domain.EventDueSoon30)})
	s.Require().NoError(err)
	_, err = s.db.MarkSent(s.ctx, inserted[0].ID, s.now)
	s.Require().NoError(err)

	_, err = s.db.Pool.Exec(s.ctx, `UPDATE notification_events SET status = 'PENDING' WHERE id = $1`, inserted[0].ID)
	s.Error(err)
}

func (s *PostgresSuite) TestFeatureGate() {
	ok, err := s.db.HasFeature(s.ctx, "u1", "compliance_reminders")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.db.GrantFeature(s.ctx, "u1", "compliance_reminders"))
	ok, err = s.db.HasFeature(s.ctx, "u1", "compliance_reminders")
	s.Require().NoError(err)
	s.True(ok)
}
