package domain

import "fmt"

// FormID identifies a filing the engines know how to reason about. Rules and
// deadline computation share this closed set so that adding a form forces both
// sides to handle it.
type FormID string

const (
	Form5472         FormID = "FORM_5472"
	FormProForma1120 FormID = "PRO_FORMA_1120"
)

var formTitles = map[FormID]string{
	Form5472:         "Form 5472",
	FormProForma1120: "Pro Forma Form 1120",
}

// Title is the human-facing form name, e.g. "Form 5472".
func (f FormID) Title() string {
	if t, ok := formTitles[f]; ok {
		return t
	}
	return string(f)
}

func (f FormID) Known() bool {
	_, ok := formTitles[f]
	return ok
}

func (f FormID) Ptr() *FormID { return &f }

func ParseFormID(s string) (FormID, error) {
	f := FormID(s)
	if !f.Known() {
		return "", fmt.Errorf("%w: unknown form %q", ErrInvariant, s)
	}
	return f, nil
}
