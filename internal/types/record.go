package types

import (
	"encoding/json"
	"strings"
)

// RecordKind classifies a raw history record
type RecordKind int

const (
	// KindUnknown is any record type the client does not recognize
	KindUnknown RecordKind = iota
	// KindTransaction is a main fund-movement record
	KindTransaction
	// KindFee is an ancillary charge record, only ever attached to a transaction
	KindFee
)

// Record type values the backend sends, compared case-insensitively
const (
	TypeDedicatedAccount = "dedicated_account"
	TypePayout           = "payout"
	TypeInternalFees     = "internalfees"
	TypeCharges          = "charges"
)

// RawRecord is a single history entry exactly as the backend returned it.
// The backend is loosely typed: amount arrives as a number or a string,
// the classifier lives in either "type" or "transactionType", and records
// carry arbitrary extra descriptive fields which must survive a round trip.
type RawRecord struct {
	ID                   string
	Type                 string
	TransactionType      string
	Reference            string
	TransactionDate      string
	Amount               string
	DebitCreditIndicator string

	// Extra holds every field we don't model, passed through unchanged
	Extra map[string]json.RawMessage
}

// knownRecordFields are the keys lifted out of the raw JSON object
var knownRecordFields = map[string]bool{
	"id":                   true,
	"type":                 true,
	"transactionType":      true,
	"reference":            true,
	"transactionDate":      true,
	"amount":               true,
	"debitCreditIndicator": true,
}

// UnmarshalJSON decodes a record, coercing loose-typed fields to strings and
// keeping unmodelled fields in Extra.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	r.ID = flexString(fields["id"])
	r.Type = flexString(fields["type"])
	r.TransactionType = flexString(fields["transactionType"])
	r.Reference = flexString(fields["reference"])
	r.TransactionDate = flexString(fields["transactionDate"])
	r.Amount = flexString(fields["amount"])
	r.DebitCreditIndicator = flexString(fields["debitCreditIndicator"])

	r.Extra = nil
	for key, raw := range fields {
		if knownRecordFields[key] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[key] = raw
	}

	return nil
}

// MarshalJSON re-emits the record with its extra fields merged back in.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.Extra)+7)
	for key, raw := range r.Extra {
		fields[key] = raw
	}

	setString(fields, "id", r.ID)
	setString(fields, "type", r.Type)
	setString(fields, "transactionType", r.TransactionType)
	setString(fields, "reference", r.Reference)
	setString(fields, "transactionDate", r.TransactionDate)
	setString(fields, "amount", r.Amount)
	setString(fields, "debitCreditIndicator", r.DebitCreditIndicator)

	return json.Marshal(fields)
}

// Classifier returns the record's type field, preferring "type" over
// "transactionType" when both are present.
func (r RawRecord) Classifier() string {
	if r.Type != "" {
		return r.Type
	}
	return r.TransactionType
}

// Kind classifies the record for reconciliation
func (r RawRecord) Kind() RecordKind {
	switch strings.ToLower(r.Classifier()) {
	case TypeDedicatedAccount, TypePayout:
		return KindTransaction
	case TypeInternalFees, TypeCharges:
		return KindFee
	default:
		return KindUnknown
	}
}

// GroupKey is the composite key used to collapse duplicate main transactions.
// It concatenates the raw field values; a missing amount counts as "0".
func (r RawRecord) GroupKey() string {
	amount := r.Amount
	if amount == "" {
		amount = "0"
	}
	return r.Reference + r.TransactionDate + amount + r.DebitCreditIndicator
}

// GroupedTransaction is one dashboard history row: a main transaction plus
// the fee records matched to it, in the order they were scanned.
type GroupedTransaction struct {
	// ID is the record's own id when present, otherwise its GroupKey
	ID             string
	Record         RawRecord
	AssociatedFees []RawRecord
}

// MarshalJSON flattens the anchor record and overlays the grouping fields,
// matching the shape the render layer consumes.
func (g GroupedTransaction) MarshalJSON() ([]byte, error) {
	data, err := g.Record.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	id, err := json.Marshal(g.ID)
	if err != nil {
		return nil, err
	}
	fields["id"] = id

	fees := g.AssociatedFees
	if fees == nil {
		fees = []RawRecord{}
	}
	feesJSON, err := json.Marshal(fees)
	if err != nil {
		return nil, err
	}
	fields["associatedFees"] = feesJSON

	return json.Marshal(fields)
}

// flexString coerces a raw JSON value to a string: JSON strings decode
// normally, numbers keep their literal text, everything else is empty.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return ""
}

func setString(fields map[string]json.RawMessage, key, value string) {
	if value == "" {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	fields[key] = raw
}
