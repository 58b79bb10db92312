// Package deadlines turns obligations into concrete statutory due dates.
package deadlines

import (
	"fmt"
	"time"

	"filingwatch/internal/domain"
)

// Version is released independently of the rules engine.
const Version = "1.0.0"

// BasisReturnDueDate links the information return to the corporate return due
// date: the 15th day of the 4th month after the close of the tax year.
const BasisReturnDueDate = "Treas. Reg. § 1.6038A-2(e); 26 U.S.C. § 6072(b)"

type Result struct {
	Version    string
	ComputedAt time.Time
	Deadlines  []domain.Deadline
}

// Compute derives one deadline per form referenced by the obligations. now
// only stamps the result; due dates depend on the profile alone. Formless
// obligations produce no deadline. A form this engine has no rule for is an
// invariant violation.
func Compute(p domain.EntityProfile, obligations []domain.Obligation, now time.Time) (Result, error) {
	res := Result{Version: Version, ComputedAt: now.UTC(), Deadlines: []domain.Deadline{}}
	seen := make(map[domain.FormID]struct{}, len(obligations))
	for _, ob := range obligations {
		if ob.Form == nil {
			continue
		}
		d, err := deadlineFor(p, *ob.Form)
		if err != nil {
			return Result{}, err
		}
		if _, dup := seen[d.Form]; dup {
			continue
		}
		seen[d.Form] = struct{}{}
		res.Deadlines = append(res.Deadlines, d)
	}
	return res, nil
}

func deadlineFor(p domain.EntityProfile, form domain.FormID) (domain.Deadline, error) {
	switch form {
	case domain.Form5472, domain.FormProForma1120:
		return domain.Deadline{Form: form, DueDate: ReturnDueDate(p), Basis: BasisReturnDueDate}, nil
	}
	return domain.Deadline{}, fmt.Errorf("%w: no deadline rule for form %q", domain.ErrInvariant, form)
}

// ReturnDueDate is the 15th day of the 4th month after the fiscal year closes.
// A fiscal year is named by the calendar year it begins in, so a December
// year end gives April 15 of TaxYear+1.
func ReturnDueDate(p domain.EntityProfile) time.Time {
	closeMonth := p.FiscalYearEnd()
	closeYear := p.TaxYear
	if closeMonth != time.December {
		closeYear++
	}
	// time.Date normalises month overflow into the following year.
	return time.Date(closeYear, closeMonth+4, 15, 0, 0, 0, 0, time.UTC)
}
