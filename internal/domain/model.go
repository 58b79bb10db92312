package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Core domain models used internally. The HTTP adapter has its own request and
// response shapes; keep these decoupled where helpful.

type EntityType string

const (
	EntityTypeLLC                EntityType = "LLC"
	EntityTypeCorporation        EntityType = "CORPORATION"
	EntityTypePartnership        EntityType = "PARTNERSHIP"
	EntityTypeSoleProprietorship EntityType = "SOLE_PROPRIETORSHIP"
)

var entityTypes = []EntityType{
	EntityTypeLLC,
	EntityTypeCorporation,
	EntityTypePartnership,
	EntityTypeSoleProprietorship,
}

// EntityTypes lists the accepted entity types in declaration order.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(entityTypes))
	copy(out, entityTypes)
	return out
}

func ParseEntityType(s string) (EntityType, error) {
	for _, t := range entityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &ValidationError{Field: "entityType", Reason: "must be one of LLC, CORPORATION, PARTNERSHIP, SOLE_PROPRIETORSHIP"}
}

// DefaultClassification is the classification used when no special rule fires.
func (t EntityType) DefaultClassification() string {
	switch t {
	case EntityTypeLLC:
		return "U.S. LLC"
	case EntityTypeCorporation:
		return "U.S. Corporation"
	case EntityTypePartnership:
		return "U.S. Partnership"
	case EntityTypeSoleProprietorship:
		return "U.S. Sole Proprietorship"
	}
	return "U.S. Entity"
}

type Entity struct {
	ID          string
	OwnerUserID string
	DisplayName string
	Type        EntityType
	CreatedAt   time.Time
}

// EntityProfile describes an entity for a single evaluation. Built once per
// assessment request and never mutated.
type EntityProfile struct {
	EntityType                  EntityType `json:"entityType"`
	ForeignOwned                bool       `json:"foreignOwner"`
	SingleMember                bool       `json:"singleMember"`
	HasEIN                      bool       `json:"hasEIN"`
	HasRelatedPartyTransactions bool       `json:"hasRelatedPartyTransactions"`
	HasRevenue                  bool       `json:"hasRevenue"`
	Prior5472Filed              bool       `json:"prior5472Filed"`
	TaxYear                     int        `json:"taxYear"`
	State                       string     `json:"state"`
	FiscalYearEndMonth          time.Month `json:"fiscalYearEndMonth"`
}

// IsForeignOwnedSingleMemberLLC reports whether the profile describes a
// disregarded entity with a single foreign owner.
func (p EntityProfile) IsForeignOwnedSingleMemberLLC() bool {
	return p.EntityType == EntityTypeLLC && p.ForeignOwned && p.SingleMember
}

// FiscalYearEnd returns the closing month of the fiscal year, December when unset.
func (p EntityProfile) FiscalYearEnd() time.Month {
	if p.FiscalYearEndMonth == 0 {
		return time.December
	}
	return p.FiscalYearEndMonth
}

// Obligation is one statutory requirement derived from a profile.
type Obligation struct {
	Title       string  `json:"title"`
	Form        *FormID `json:"form,omitempty"`
	Authority   string  `json:"authority"`
	Explanation string  `json:"explanation"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
)

type Penalty struct {
	Code        string          `json:"code"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Citation    string          `json:"citation"`
}

type RiskAssessment struct {
	RiskScore      int          `json:"riskScore"`
	RiskLevel      RiskLevel    `json:"riskLevel"`
	Classification string       `json:"entityClassification"`
	RequiredForms  []FormID     `json:"requiredForms"`
	Penalties      []Penalty    `json:"penalties"`
	LegalBasis     []string     `json:"legalBasis"`
	Obligations    []Obligation `json:"obligations"`
}

type Deadline struct {
	Form    FormID    `json:"form"`
	DueDate time.Time `json:"dueDate"`
	Basis   string    `json:"basis"`
}

// DueDateISO renders the due date as YYYY-MM-DD.
func (d Deadline) DueDateISO() string { return d.DueDate.Format(time.DateOnly) }

// AssessmentSnapshot is the durable unit of record. Later assessments for the
// same entity supersede it; it is never edited.
type AssessmentSnapshot struct {
	ID              string         `json:"id"`
	EntityID        string         `json:"entityId"`
	Profile         EntityProfile  `json:"profile"`
	Risk            RiskAssessment `json:"risk"`
	Deadlines       []Deadline     `json:"deadlines"`
	EngineVersion   string         `json:"engineVersion"`
	DeadlineVersion string         `json:"deadlineVersion"`
	ComputedAt      time.Time      `json:"computedAt"`
	TaxYear         int            `json:"taxYear"`
}

// ComplianceState is the single current status row for an entity.
type ComplianceState struct {
	Standing
	EntityID      string
	Form          FormID
	DueDate       time.Time
	EngineVersion string
	EvaluatedAt   time.Time
}

type EventType string

const (
	EventDueSoon90     EventType = "DUE_SOON_90"
	EventDueSoon30     EventType = "DUE_SOON_30"
	EventDueSoon7      EventType = "DUE_SOON_7"
	EventDueToday      EventType = "DUE_TODAY"
	EventOverdue1      EventType = "OVERDUE_1"
	EventStatusChanged EventType = "STATUS_CHANGED"
)

type EventStatus string

const (
	EventPending   EventStatus = "PENDING"
	EventSent      EventStatus = "SENT"
	EventCancelled EventStatus = "CANCELLED"
)

type EventPayload struct {
	Form           FormID  `json:"form"`
	DueDate        string  `json:"dueDate"`
	DaysRemaining  int     `json:"daysRemaining"`
	Status         Status  `json:"status"`
	Urgency        Urgency `json:"urgency"`
	EngineVersion  string  `json:"engineVersion"`
	PreviousStatus *Status `json:"previousStatus,omitempty"`
}

// NotificationEvent is append-only apart from Status, which only moves
// forward from PENDING.
type NotificationEvent struct {
	ID        string
	EntityID  string
	Type      EventType
	DedupKey  string
	Payload   EventPayload
	Status    EventStatus
	CreatedAt time.Time
	SentAt    *time.Time
}
