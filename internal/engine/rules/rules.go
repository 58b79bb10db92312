// Package rules derives filing obligations and risk from an entity profile.
// Assess is pure: no I/O, no clock, and total over every profile that passes
// EntityProfile.Validate.
package rules

import (
	"github.com/shopspring/decimal"

	"filingwatch/internal/domain"
)

// Version is stamped on every snapshot built from this rule set. Bump the
// minor version whenever a rule's outcome changes.
const Version = "1.1.0"

const (
	pointsForeignSingleMember = 30
	pointsRelatedParty        = 30
	pointsNo5472History       = 40
	pointsRevenue             = 10
	pointsNoEIN               = 20

	moderateThreshold = 40
	highThreshold     = 80
)

const (
	CitationIncomeTaxReturn = "26 U.S.C. § 6012; Treas. Reg. § 301.7701-2(c)(2)(vi)"
	CitationReporting       = "26 U.S.C. § 6038A"
	CitationPenalty         = "26 U.S.C. § 6038A(d)"
	CitationTaxpayerID      = "26 U.S.C. § 6109"

	ClassificationForeignSMLLC = "Foreign-Owned Single-Member U.S. LLC"

	PenaltyCode5472 = "IRC_6038A_D"
)

var penalty5472 = decimal.NewFromInt(25000)

// Assess runs every rule against the profile. Rules are independent; more than
// one may contribute forms, citations or penalties.
func Assess(p domain.EntityProfile) domain.RiskAssessment {
	score := Score(p)
	out := domain.RiskAssessment{
		RiskScore:      score,
		RiskLevel:      LevelFor(score),
		Classification: p.EntityType.DefaultClassification(),
		RequiredForms:  []domain.FormID{},
		Penalties:      []domain.Penalty{},
		LegalBasis:     []string{},
		Obligations:    []domain.Obligation{},
	}
	forms := newOrderedSet[domain.FormID]()
	basis := newOrderedSet[string]()

	if p.IsForeignOwnedSingleMemberLLC() {
		out.Classification = ClassificationForeignSMLLC
		if forms.add(domain.FormProForma1120) {
			out.Obligations = append(out.Obligations, domain.Obligation{
				Title:       domain.FormProForma1120.Title(),
				Form:        domain.FormProForma1120.Ptr(),
				Authority:   "Internal Revenue Service",
				Explanation: "A foreign-owned disregarded LLC is treated as a corporation for reporting purposes and files a pro forma Form 1120 as the cover for Form 5472.",
			})
		}
		basis.add(CitationIncomeTaxReturn)
	}

	if p.HasRelatedPartyTransactions {
		if forms.add(domain.Form5472) {
			out.Obligations = append(out.Obligations, domain.Obligation{
				Title:       domain.Form5472.Title(),
				Form:        domain.Form5472.Ptr(),
				Authority:   "Internal Revenue Service",
				Explanation: "Reportable transactions with a foreign owner or other related party must be disclosed on Form 5472.",
			})
		}
		basis.add(CitationReporting)
		out.Penalties = append(out.Penalties, domain.Penalty{
			Code:        PenaltyCode5472,
			Amount:      penalty5472,
			Currency:    "USD",
			Description: "Failure to file Form 5472",
			Citation:    CitationPenalty,
		})
	}

	if !p.HasEIN {
		if basis.add(CitationTaxpayerID) {
			out.Obligations = append(out.Obligations, domain.Obligation{
				Title:       "Obtain an Employer Identification Number",
				Authority:   "Internal Revenue Service",
				Explanation: "An EIN is required before any information return can be filed.",
			})
		}
	}

	out.RequiredForms = forms.items()
	out.LegalBasis = basis.items()
	return out
}

// Score is the additive points model; there is no upper bound.
func Score(p domain.EntityProfile) int {
	score := 0
	if p.ForeignOwned && p.SingleMember {
		score += pointsForeignSingleMember
	}
	if p.HasRelatedPartyTransactions {
		score += pointsRelatedParty
	}
	if !p.Prior5472Filed {
		score += pointsNo5472History
	}
	if p.HasRevenue {
		score += pointsRevenue
	}
	if !p.HasEIN {
		score += pointsNoEIN
	}
	return score
}

// LevelFor maps a score to a band; each band includes its lower edge.
func LevelFor(score int) domain.RiskLevel {
	switch {
	case score >= highThreshold:
		return domain.RiskHigh
	case score >= moderateThreshold:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}
