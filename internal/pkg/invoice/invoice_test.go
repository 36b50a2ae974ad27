package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInvoice(t *testing.T) {
	inv, err := ParseInvoice("L1,C1,3,ARAP,25")
	assert.Nil(t, err)
	assert.Equal(t, Invoice{
		LegalEntity:  "L1",
		CounterParty: "C1",
		Rating:       3,
		Status:       StatusARAP,
		Value:        25,
	}, inv)
}

func TestParseInvoiceInvalid(t *testing.T) {
	var invalidRecords = []string{
		"legal_entity,counter_party,rating,status,value", // header row
		"L1,C1,3,ARAP",               // too few fields
		"L1,C1,3,ARAP,25,extra",      // too many fields
		"L1,C1,notanumber,ARAP,25",   // bad rating
		"L1,C1,3,ARAP,notanumber",    // bad value
		"L1,C1,3,UNKNOWN,25",         // bad status
		"",
	}

	for _, record := range invalidRecords {
		_, err := ParseInvoice(record)
		assert.NotNil(t, err, "record %q should not parse", record)
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("C1,4")
	assert.Nil(t, err)
	assert.Equal(t, TierRecord{CounterParty: "C1", Tier: 4}, tier)

	_, err = ParseTier("counter_party,tier")
	assert.NotNil(t, err)

	_, err = ParseTier("C1")
	assert.NotNil(t, err)
}

func TestJoinedRoundTrip(t *testing.T) {
	joined := Joined{
		Invoice: Invoice{
			LegalEntity:  "L2",
			CounterParty: "C5",
			Rating:       6,
			Status:       StatusACCR,
			Value:        115,
		},
		Tier: 3,
	}

	record := joined.MarshalRecord()
	assert.Equal(t, "L2,C5,6,ACCR,115,3", record)

	parsed, err := ParseJoined(record)
	assert.Nil(t, err)
	assert.Equal(t, joined, parsed)
}

func TestParseJoinedInvalid(t *testing.T) {
	_, err := ParseJoined("L1,C1,3,ARAP,25")
	assert.NotNil(t, err)

	_, err = ParseJoined("L1,C1,3,ARAP,25,notanumber")
	assert.NotNil(t, err)

	_, err = ParseJoined("noseparator")
	assert.NotNil(t, err)
}
