// Package invoice models the counterparty exposure report: invoice records,
// tier reference data, the join between them, and the grouped aggregation
// that produces report rows.
package invoice

import (
	"fmt"
	"strconv"
	"strings"
)

// Invoice statuses. ARAP values are accounts receivable/payable, ACCR values
// are accruals.
const (
	StatusARAP = "ARAP"
	StatusACCR = "ACCR"
)

// Invoice is one record of the invoice dataset
// (legal_entity,counter_party,rating,status,value).
type Invoice struct {
	LegalEntity  string
	CounterParty string
	Rating       int
	Status       string
	Value        int64
}

// ParseInvoice parses a CSV record from the invoice dataset. Header rows fail
// to parse (the rating field is not numeric) and can be skipped by callers.
func ParseInvoice(record string) (Invoice, error) {
	fields := strings.Split(record, ",")
	if len(fields) != 5 {
		return Invoice{}, fmt.Errorf("invoice record has %d fields, want 5: %q", len(fields), record)
	}

	rating, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return Invoice{}, fmt.Errorf("invalid rating in record %q: %s", record, err)
	}

	value, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return Invoice{}, fmt.Errorf("invalid value in record %q: %s", record, err)
	}

	status := strings.TrimSpace(fields[3])
	if status != StatusARAP && status != StatusACCR {
		return Invoice{}, fmt.Errorf("unknown status %q in record %q", status, record)
	}

	return Invoice{
		LegalEntity:  strings.TrimSpace(fields[0]),
		CounterParty: strings.TrimSpace(fields[1]),
		Rating:       rating,
		Status:       status,
		Value:        value,
	}, nil
}

// TierRecord is one record of the counterparty reference dataset
// (counter_party,tier).
type TierRecord struct {
	CounterParty string
	Tier         int
}

// ParseTier parses a CSV record from the tier reference dataset.
func ParseTier(record string) (TierRecord, error) {
	fields := strings.Split(record, ",")
	if len(fields) != 2 {
		return TierRecord{}, fmt.Errorf("tier record has %d fields, want 2: %q", len(fields), record)
	}

	tier, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return TierRecord{}, fmt.Errorf("invalid tier in record %q: %s", record, err)
	}

	return TierRecord{
		CounterParty: strings.TrimSpace(fields[0]),
		Tier:         tier,
	}, nil
}

// Joined is an invoice with its counterparty's tier attached.
type Joined struct {
	Invoice
	Tier int
}

// MarshalRecord renders a joined invoice as a CSV record
// (legal_entity,counter_party,rating,status,value,tier).
func (j Joined) MarshalRecord() string {
	return fmt.Sprintf("%s,%s,%d,%s,%d,%d",
		j.LegalEntity, j.CounterParty, j.Rating, j.Status, j.Value, j.Tier)
}

// ParseJoined parses a CSV record produced by MarshalRecord.
func ParseJoined(record string) (Joined, error) {
	idx := strings.LastIndex(record, ",")
	if idx == -1 {
		return Joined{}, fmt.Errorf("invalid joined record: %q", record)
	}

	inv, err := ParseInvoice(record[:idx])
	if err != nil {
		return Joined{}, err
	}

	tier, err := strconv.Atoi(strings.TrimSpace(record[idx+1:]))
	if err != nil {
		return Joined{}, fmt.Errorf("invalid tier in joined record %q: %s", record, err)
	}

	return Joined{Invoice: inv, Tier: tier}, nil
}
