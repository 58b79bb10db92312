package deadlines

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filingwatch/internal/domain"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func formObligation(f domain.FormID) domain.Obligation {
	return domain.Obligation{Title: f.Title(), Form: f.Ptr()}
}

func TestCompute_CalendarYear(t *testing.T) {
	p := domain.EntityProfile{EntityType: domain.EntityTypeLLC, TaxYear: 2025, State: "WY"}
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	res, err := Compute(p, []domain.Obligation{
		formObligation(domain.FormProForma1120),
		formObligation(domain.Form5472),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, Version, res.Version)
	assert.Equal(t, now, res.ComputedAt)
	require.Len(t, res.Deadlines, 2)
	assert.Equal(t, domain.FormProForma1120, res.Deadlines[0].Form)
	assert.Equal(t, domain.Form5472, res.Deadlines[1].Form)
	for _, d := range res.Deadlines {
		assert.Equal(t, "2026-04-15", d.DueDateISO())
		assert.Equal(t, BasisReturnDueDate, d.Basis)
	}
}

func TestCompute_SkipsFormlessAndDuplicates(t *testing.T) {
	p := domain.EntityProfile{EntityType: domain.EntityTypeLLC, TaxYear: 2024, State: "DE"}
	res, err := Compute(p, []domain.Obligation{
		{Title: "Obtain an Employer Identification Number"},
		formObligation(domain.Form5472),
		formObligation(domain.Form5472),
	}, date(2025, 1, 1))
	require.NoError(t, err)
	require.Len(t, res.Deadlines, 1)
	assert.Equal(t, domain.Form5472, res.Deadlines[0].Form)
	assert.Equal(t, date(2025, 4, 15), res.Deadlines[0].DueDate)
}

func TestCompute_NoObligations(t *testing.T) {
	res, err := Compute(domain.EntityProfile{TaxYear: 2025}, nil, date(2025, 1, 1))
	require.NoError(t, err)
	assert.NotNil(t, res.Deadlines)
	assert.Empty(t, res.Deadlines)
}

func TestCompute_UnknownFormIsInvariant(t *testing.T) {
	_, err := Compute(domain.EntityProfile{TaxYear: 2025}, []domain.Obligation{
		formObligation(domain.FormID("FORM_8938")),
	}, date(2025, 1, 1))
	require.ErrorIs(t, err, domain.ErrInvariant)
}

func TestCompute_Deterministic(t *testing.T) {
	p := domain.EntityProfile{EntityType: domain.EntityTypeLLC, TaxYear: 2025, State: "WY"}
	obs := []domain.Obligation{formObligation(domain.Form5472), formObligation(domain.FormProForma1120)}

	a, err := Compute(p, obs, date(2025, 3, 1))
	require.NoError(t, err)
	b, err := Compute(p, obs, date(2026, 9, 9))
	require.NoError(t, err)
	assert.Equal(t, a.Deadlines, b.Deadlines, "due dates must not depend on now")
}

func TestReturnDueDate_FiscalYears(t *testing.T) {
	cases := []struct {
		name  string
		month time.Month
		want  time.Time
	}{
		{"unset means December", 0, date(2026, 4, 15)},
		{"December", time.December, date(2026, 4, 15)},
		{"June", time.June, date(2026, 10, 15)},
		{"September", time.September, date(2027, 1, 15)},
		{"January", time.January, date(2026, 5, 15)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := domain.EntityProfile{TaxYear: 2025, FiscalYearEndMonth: tc.month}
			assert.Equal(t, tc.want, ReturnDueDate(p))
		})
	}
}
