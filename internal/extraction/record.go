// Package extraction resolves and polls the field-extraction record that a live
// voice call populates on the main backend.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is the client-side projection of a server-owned extraction record.
// CallID, UserID, Status and CallStatus are only populated on the list (phase 1)
// projection.
type Record struct {
	DocumentID         string         `json:"documentId"`
	ContractInstanceID string         `json:"contractInstanceId"`
	DocumentType       string         `json:"documentType"`
	JurisdictionCode   string         `json:"jurisdictionCode,omitempty"`
	FieldsJSON         map[string]any `json:"fieldsJson"`
	RequiredFields     RequiredFields `json:"requiredFields"`
	CallID             string         `json:"callId,omitempty"`
	UserID             string         `json:"userId,omitempty"`
	Status             string         `json:"status,omitempty"`
	CallStatus         string         `json:"callStatus,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Fields returns the flattened display view of the record's field values.
func (r *Record) Fields() []Field {
	if r == nil {
		return nil
	}
	return FlattenFields(r.FieldsJSON)
}

// RequiredFields lists outstanding field identifiers. The backend sends either
// an ordered array or an object whose keys are the outstanding fields.
type RequiredFields []string

// UnmarshalJSON accepts an array of strings, an object, or null.
func (f *RequiredFields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	switch data[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("extraction: required fields array: %w", err)
		}
		*f = list
	case '{':
		var set map[string]json.RawMessage
		if err := json.Unmarshal(data, &set); err != nil {
			return fmt.Errorf("extraction: required fields object: %w", err)
		}
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		*f = keys
	default:
		return fmt.Errorf("extraction: required fields: unexpected json %q", string(data[:1]))
	}
	return nil
}

// MatchCall returns the record whose CallID exactly equals callID. Earlier
// sessions on the same contract can appear in the same list; only the exact
// match is trusted.
func MatchCall(records []Record, callID string) (*Record, bool) {
	if callID == "" {
		return nil, false
	}
	for i := range records {
		if records[i].CallID == callID {
			rec := records[i]
			return &rec, true
		}
	}
	return nil, false
}
