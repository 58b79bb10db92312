package entities

import (
	"context"
	"strings"
	"time"

	"filingwatch/internal/domain"
	"filingwatch/internal/ports"
)

type Service struct {
	repo ports.EntityRepository
}

func New(repo ports.EntityRepository) *Service { return &Service{repo: repo} }

func (s *Service) Create(ctx context.Context, ownerUserID, displayName, entityType string) (domain.Entity, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	displayName = strings.TrimSpace(displayName)
	if ownerUserID == "" {
		return domain.Entity{}, &domain.ValidationError{Field: "ownerUserId", Reason: "is required"}
	}
	if displayName == "" {
		return domain.Entity{}, &domain.ValidationError{Field: "displayName", Reason: "is required"}
	}
	typ, err := domain.ParseEntityType(entityType)
	if err != nil {
		return domain.Entity{}, err
	}
	return s.repo.CreateEntity(ctx, domain.Entity{
		OwnerUserID: ownerUserID,
		DisplayName: displayName,
		Type:        typ,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, entityID string) (domain.Entity, error) {
	return s.repo.GetEntity(ctx, entityID)
}
