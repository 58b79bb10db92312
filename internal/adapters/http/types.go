package httpadapter

import (
	"time"

	"filingwatch/internal/domain"
)

// Wire shapes. Dates are ISO calendar dates; instants are RFC 3339.

type createEntityRequest struct {
	OwnerUserID string `json:"ownerUserId"`
	DisplayName string `json:"displayName"`
	EntityType  string `json:"entityType"`
}

type entityResponse struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"ownerUserId"`
	DisplayName string    `json:"displayName"`
	EntityType  string    `json:"entityType"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toEntityResponse(e domain.Entity) entityResponse {
	return entityResponse{
		ID:          e.ID,
		OwnerUserID: e.OwnerUserID,
		DisplayName: e.DisplayName,
		EntityType:  string(e.Type),
		CreatedAt:   e.CreatedAt,
	}
}

type deadlineResponse struct {
	Form      domain.FormID `json:"form"`
	FormTitle string        `json:"formTitle"`
	DueDate   string        `json:"dueDate"`
	Basis     string        `json:"basis"`
}

type formResponse struct {
	ID    domain.FormID `json:"id"`
	Title string        `json:"title"`
}

type snapshotResponse struct {
	ID              string               `json:"id"`
	EntityID        string               `json:"entityId"`
	Profile         domain.EntityProfile `json:"profile"`
	RiskScore       int                  `json:"riskScore"`
	RiskLevel       domain.RiskLevel     `json:"riskLevel"`
	Classification  string               `json:"entityClassification"`
	RequiredForms   []formResponse       `json:"requiredForms"`
	Penalties       []domain.Penalty     `json:"penalties"`
	LegalBasis      []string             `json:"legalBasis"`
	Obligations     []domain.Obligation  `json:"obligations"`
	Deadlines       []deadlineResponse   `json:"deadlines"`
	EngineVersion   string               `json:"engineVersion"`
	DeadlineVersion string               `json:"deadlineVersion"`
	ComputedAt      time.Time            `json:"computedAt"`
	TaxYear         int                  `json:"taxYear"`
	Stale           *bool                `json:"stale,omitempty"`
}

func toSnapshotResponse(s domain.AssessmentSnapshot) snapshotResponse {
	out := snapshotResponse{
		ID:              s.ID,
		EntityID:        s.EntityID,
		Profile:         s.Profile,
		RiskScore:       s.Risk.RiskScore,
		RiskLevel:       s.Risk.RiskLevel,
		Classification:  s.Risk.Classification,
		RequiredForms:   make([]formResponse, 0, len(s.Risk.RequiredForms)),
		Penalties:       s.Risk.Penalties,
		LegalBasis:      s.Risk.LegalBasis,
		Obligations:     s.Risk.Obligations,
		Deadlines:       make([]deadlineResponse, 0, len(s.Deadlines)),
		EngineVersion:   s.EngineVersion,
		DeadlineVersion: s.DeadlineVersion,
		ComputedAt:      s.ComputedAt,
		TaxYear:         s.TaxYear,
	}
	for _, f := range s.Risk.RequiredForms {
		out.RequiredForms = append(out.RequiredForms, formResponse{ID: f, Title: f.Title()})
	}
	for _, d := range s.Deadlines {
		out.Deadlines = append(out.Deadlines, deadlineResponse{
			Form:      d.Form,
			FormTitle: d.Form.Title(),
			DueDate:   d.DueDateISO(),
			Basis:     d.Basis,
		})
	}
	return out
}

type stateResponse struct {
	EntityID      string         `json:"entityId"`
	NextForm      domain.FormID  `json:"nextDeadlineForm"`
	NextDueDate   string         `json:"nextDueDate"`
	DaysRemaining int            `json:"daysRemaining"`
	Status        domain.Status  `json:"status"`
	Urgency       domain.Urgency `json:"urgency"`
	EngineVersion string         `json:"engineVersion"`
	EvaluatedAt   time.Time      `json:"lastEvaluatedAt"`
}

func toStateResponse(s domain.ComplianceState) stateResponse {
	return stateResponse{
		EntityID:      s.EntityID,
		NextForm:      s.Form,
		NextDueDate:   s.DueDate.Format(time.DateOnly),
		DaysRemaining: s.DaysRemaining,
		Status:        s.Status,
		Urgency:       s.Urgency,
		EngineVersion: s.EngineVersion,
		EvaluatedAt:   s.EvaluatedAt,
	}
}

type eventResponse struct {
	ID        string              `json:"id"`
	Type      domain.EventType    `json:"eventType"`
	DedupKey  string              `json:"dedupKey"`
	Status    domain.EventStatus  `json:"status"`
	Payload   domain.EventPayload `json:"payload"`
	CreatedAt time.Time           `json:"createdAt"`
	SentAt    *time.Time          `json:"sentAt,omitempty"`
}

func toEventResponse(e domain.NotificationEvent) eventResponse {
	return eventResponse{
		ID:        e.ID,
		Type:      e.Type,
		DedupKey:  e.DedupKey,
		Status:    e.Status,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
		SentAt:    e.SentAt,
	}
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}
