package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"filingwatch/internal/domain"
)

// AssessmentRepository
func (db *DB) InsertSnapshot(ctx context.Context, s domain.AssessmentSnapshot) (domain.AssessmentSnapshot, error) {
	s.ID = uuid.NewString()
	result, err := json.Marshal(s)
	if err != nil {
		return domain.AssessmentSnapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO assessments (id, entity_id, engine_version, deadline_version, risk_score, risk_level, tax_year, result, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, s.ID, s.EntityID, s.EngineVersion, s.DeadlineVersion, s.Risk.RiskScore, string(s.Risk.RiskLevel), s.TaxYear, result, s.ComputedAt)
	if err != nil {
		return domain.AssessmentSnapshot{}, err
	}
	return s, nil
}

func (db *DB) LatestSnapshot(ctx context.Context, entityID string) (domain.AssessmentSnapshot, bool, error) {
	if _, err := uuid.Parse(entityID); err != nil {
		return domain.AssessmentSnapshot{}, false, nil
	}
	var raw []byte
	err := db.Pool.QueryRow(ctx, `
        SELECT result FROM assessments
        WHERE entity_id = $1
        ORDER BY created_at DESC, seq DESC
        LIMIT 1
    `, entityID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssessmentSnapshot{}, false, nil
	}
	if err != nil {
		return domain.AssessmentSnapshot{}, false, err
	}
	var s domain.AssessmentSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.AssessmentSnapshot{}, false, fmt.Errorf("%w: decode snapshot for %s: %v", domain.ErrInvariant, entityID, err)
	}
	for _, d := range s.Deadlines {
		if !d.Form.Known() {
			return domain.AssessmentSnapshot{}, false, fmt.Errorf("%w: snapshot %s references unknown form %q", domain.ErrInvariant, s.ID, d.Form)
		}
	}
	return s, true, nil
}
