package assessments

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"filingwatch/internal/domain"
)

const profileSchemaURL = "filingwatch://schemas/entity-profile.json"

const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["entityType", "foreignOwner", "singleMember", "hasEIN",
               "hasRelatedPartyTransactions", "hasRevenue", "prior5472Filed",
               "taxYear", "state"],
  "properties": {
    "entityType": {"enum": ["LLC", "CORPORATION", "PARTNERSHIP", "SOLE_PROPRIETORSHIP"]},
    "foreignOwner": {"type": "boolean"},
    "singleMember": {"type": "boolean"},
    "hasEIN": {"type": "boolean"},
    "hasRelatedPartyTransactions": {"type": "boolean"},
    "hasRevenue": {"type": "boolean"},
    "prior5472Filed": {"type": "boolean"},
    "taxYear": {"type": "integer", "minimum": 1990, "maximum": 2100},
    "state": {"type": "string", "pattern": "^[A-Z]{2}$"},
    "fiscalYearEndMonth": {"type": "integer", "minimum": 1, "maximum": 12}
  }
}`

var compiledProfileSchema = jsonschema.MustCompileString(profileSchemaURL, profileSchema)

// DecodeProfile validates raw JSON against the profile schema and then the
// domain rules. Unknown fields and out-of-enum values are rejected.
func DecodeProfile(raw []byte) (domain.EntityProfile, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return domain.EntityProfile{}, &domain.ValidationError{Reason: "body is not valid JSON"}
	}
	if err := compiledProfileSchema.Validate(doc); err != nil {
		return domain.EntityProfile{}, schemaError(err)
	}
	var p domain.EntityProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.EntityProfile{}, &domain.ValidationError{Reason: err.Error()}
	}
	if err := p.Validate(); err != nil {
		return domain.EntityProfile{}, err
	}
	return p, nil
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &domain.ValidationError{Reason: err.Error()}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	return &domain.ValidationError{Field: field, Reason: leaf.Message}
}
