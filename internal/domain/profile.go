package domain

import "time"

const (
	minTaxYear = 1990
	maxTaxYear = 2100
)

// Validate rejects profiles the engines must never see. Nothing is coerced.
func (p EntityProfile) Validate() error {
	if _, err := ParseEntityType(string(p.EntityType)); err != nil {
		return err
	}
	if p.TaxYear < minTaxYear || p.TaxYear > maxTaxYear {
		return &ValidationError{Field: "taxYear", Reason: "must be between 1990 and 2100"}
	}
	if !validStateCode(p.State) {
		return &ValidationError{Field: "state", Reason: "must be a two-letter upper-case state code"}
	}
	if p.FiscalYearEndMonth < 0 || p.FiscalYearEndMonth > time.December {
		return &ValidationError{Field: "fiscalYearEndMonth", Reason: "must be between 1 and 12"}
	}
	return nil
}

func validStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
