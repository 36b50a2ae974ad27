package invoice

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/granarydata/granary"
)

// Value tags used to cogroup the two datasets in the join stage.
const (
	invoiceTag = "inv"
	tierTag    = "tier"
)

// JoinMapper routes records from both input datasets to their counterparty.
// The record shape identifies the dataset; header rows and malformed records
// are skipped.
type JoinMapper struct{}

// Map implements granary.Mapper.
func (JoinMapper) Map(key, value string, emitter granary.Emitter) {
	if inv, err := ParseInvoice(value); err == nil {
		emitter.Emit(inv.CounterParty, invoiceTag+":"+value)
		return
	}

	if tier, err := ParseTier(value); err == nil {
		emitter.Emit(tier.CounterParty, tierTag+":"+strconv.Itoa(tier.Tier))
		return
	}

	log.Debugf("Skipping unparseable record: %q", value)
}

// JoinReducer receives all records for one counterparty and emits each
// invoice with the counterparty's tier attached. A counterparty with no tier
// reference gets tier 0.
type JoinReducer struct{}

// Reduce implements granary.Reducer.
func (JoinReducer) Reduce(key string, values granary.ValueIterator, emitter granary.Emitter) {
	invoices := make([]Invoice, 0)
	tier := 0
	tierSeen := false

	for value := range values.Iter() {
		parts := strings.SplitN(value, ":", 2)
		if len(parts) != 2 {
			log.Warnf("Malformed join value for counterparty %s: %q", key, value)
			continue
		}

		switch parts[0] {
		case invoiceTag:
			inv, err := ParseInvoice(parts[1])
			if err != nil {
				log.Warnf("Skipping invoice for counterparty %s: %s", key, err)
				continue
			}
			invoices = append(invoices, inv)
		case tierTag:
			t, err := strconv.Atoi(parts[1])
			if err != nil {
				log.Warnf("Skipping tier for counterparty %s: %s", key, err)
				continue
			}
			tier = t
			tierSeen = true
		default:
			log.Warnf("Unknown join tag %q for counterparty %s", parts[0], key)
		}
	}

	if !tierSeen && len(invoices) > 0 {
		log.Warnf("No tier reference for counterparty %s; defaulting to tier 0", key)
	}

	for _, inv := range invoices {
		joined := Joined{Invoice: inv, Tier: tier}
		if err := emitter.Emit(key, joined.MarshalRecord()); err != nil {
			log.Errorf("Unable to emit joined invoice for counterparty %s: %s", key, err)
		}
	}
}

// AggregateMapper fans each joined invoice out to every grouping's key.
type AggregateMapper struct{}

// Map implements granary.Mapper. The input key is the join stage's
// counterparty key, which is no longer needed.
func (AggregateMapper) Map(key, value string, emitter granary.Emitter) {
	joined, err := ParseJoined(value)
	if err != nil {
		log.Debugf("Skipping unparseable joined record: %q", value)
		return
	}

	measure := marshalMeasure(joined)
	for set, grouping := range Groupings {
		if err := emitter.Emit(GroupKey(set, grouping, joined), measure); err != nil {
			log.Errorf("Unable to emit measure for group set %d: %s", set, err)
		}
	}
}

// AggregateReducer folds all measures of one group into a report row.
type AggregateReducer struct{}

// Reduce implements granary.Reducer.
func (AggregateReducer) Reduce(key string, values granary.ValueIterator, emitter granary.Emitter) {
	row, err := parseGroupKey(key)
	if err != nil {
		log.Errorf("Skipping group: %s", err)
		for range values.Iter() {
			// Drain the iterator so the shuffle doesn't stall.
		}
		return
	}

	for value := range values.Iter() {
		rating, status, amount, err := parseMeasure(value)
		if err != nil {
			log.Warnf("Skipping measure in group %s: %s", key, err)
			continue
		}
		row.Accumulate(rating, status, amount)
	}

	if err := emitter.Emit(key, row.marshalTotals()); err != nil {
		log.Errorf("Unable to emit totals for group %s: %s", key, err)
	}
}

func marshalMeasure(j Joined) string {
	return strconv.Itoa(j.Rating) + "," + j.Status + "," + strconv.FormatInt(j.Value, 10)
}

func parseMeasure(s string) (rating int, status string, value int64, err error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return 0, "", 0, fmt.Errorf("malformed measure: %q", s)
	}
	rating, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", 0, err
	}
	value, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, "", 0, err
	}
	return rating, fields[1], value, nil
}
