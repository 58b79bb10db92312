package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"filingwatch/internal/domain"
)

// EntityRepository
func (db *DB) CreateEntity(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO entities (owner_user_id, display_name, entity_type, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id::text, created_at
    `, e.OwnerUserID, e.DisplayName, string(e.Type), e.CreatedAt).Scan(&e.ID, &e.CreatedAt)
	return e, err
}

func (db *DB) GetEntity(ctx context.Context, entityID string) (domain.Entity, error) {
	if _, err := uuid.Parse(entityID); err != nil {
		return domain.Entity{}, domain.ErrNotFound
	}
	var e domain.Entity
	var typ string
	err := db.Pool.QueryRow(ctx, `
        SELECT id::text, owner_user_id, display_name, entity_type, created_at
        FROM entities WHERE id = $1
    `, entityID).Scan(&e.ID, &e.OwnerUserID, &e.DisplayName, &typ, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Entity{}, err
	}
	e.Type = domain.EntityType(typ)
	return e, nil
}

func (db *DB) ListEntityIDs(ctx context.Context, after string, limit int) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == "" {
		rows, err = db.Pool.Query(ctx, `SELECT id::text FROM entities ORDER BY id LIMIT $1`, limit)
	} else {
		rows, err = db.Pool.Query(ctx, `SELECT id::text FROM entities WHERE id > $1 ORDER BY id LIMIT $2`, after, limit)
	}
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
