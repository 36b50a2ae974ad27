package frame

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/granarydata/granary/internal/pkg/invoice"
)

const testInvoiceData = `legal_entity,counter_party,rating,status,value
L1,C1,1,ARAP,10
L1,C2,2,ARAP,40
L2,C1,3,ACCR,25
`

const testTierData = `counter_party,tier
C1,1
C2,2
`

func TestReadInvoices(t *testing.T) {
	df, err := ReadInvoices(strings.NewReader(testInvoiceData))
	assert.Nil(t, err)
	assert.Equal(t, 3, df.Nrow())
	assert.ElementsMatch(t, []string{"legal_entity", "counter_party", "rating", "status", "value"}, df.Names())
}

func TestReadTiers(t *testing.T) {
	df, err := ReadTiers(strings.NewReader(testTierData))
	assert.Nil(t, err)
	assert.Equal(t, 2, df.Nrow())
	assert.ElementsMatch(t, []string{"counter_party", "tier"}, df.Names())
}

func TestBuildReport(t *testing.T) {
	invoices, err := ReadInvoices(strings.NewReader(testInvoiceData))
	assert.Nil(t, err)
	tiers, err := ReadTiers(strings.NewReader(testTierData))
	assert.Nil(t, err)

	rows, err := BuildReport(invoices, tiers)
	assert.Nil(t, err)

	invoice.SortRows(rows)
	assert.Equal(t, []invoice.Row{
		{GroupSet: 0, LegalEntity: "L1", CounterParty: invoice.Total, Tier: invoice.Total, MaxRating: 2, TotalARAP: 50, TotalACCR: 0},
		{GroupSet: 0, LegalEntity: "L2", CounterParty: invoice.Total, Tier: invoice.Total, MaxRating: 3, TotalARAP: 0, TotalACCR: 25},
		{GroupSet: 1, LegalEntity: "L1", CounterParty: "C1", Tier: invoice.Total, MaxRating: 1, TotalARAP: 10, TotalACCR: 0},
		{GroupSet: 1, LegalEntity: "L1", CounterParty: "C2", Tier: invoice.Total, MaxRating: 2, TotalARAP: 40, TotalACCR: 0},
		{GroupSet: 1, LegalEntity: "L2", CounterParty: "C1", Tier: invoice.Total, MaxRating: 3, TotalARAP: 0, TotalACCR: 25},
		{GroupSet: 2, LegalEntity: invoice.Total, CounterParty: "C1", Tier: invoice.Total, MaxRating: 3, TotalARAP: 10, TotalACCR: 25},
		{GroupSet: 2, LegalEntity: invoice.Total, CounterParty: "C2", Tier: invoice.Total, MaxRating: 2, TotalARAP: 40, TotalACCR: 0},
		{GroupSet: 3, LegalEntity: invoice.Total, CounterParty: invoice.Total, Tier: "1", MaxRating: 3, TotalARAP: 10, TotalACCR: 25},
		{GroupSet: 3, LegalEntity: invoice.Total, CounterParty: invoice.Total, Tier: "2", MaxRating: 2, TotalARAP: 40, TotalACCR: 0},
	}, rows)
}

func TestBuildReportMissingTierReference(t *testing.T) {
	invoices, err := ReadInvoices(strings.NewReader(
		"legal_entity,counter_party,rating,status,value\nL1,C9,4,ARAP,15\n"))
	assert.Nil(t, err)
	tiers, err := ReadTiers(strings.NewReader("counter_party,tier\nC1,1\n"))
	assert.Nil(t, err)

	rows, err := BuildReport(invoices, tiers)
	assert.Nil(t, err)

	invoice.SortRows(rows)
	assert.Equal(t, []invoice.Row{
		{GroupSet: 0, LegalEntity: "L1", CounterParty: invoice.Total, Tier: invoice.Total, MaxRating: 4, TotalARAP: 15},
		{GroupSet: 1, LegalEntity: "L1", CounterParty: "C9", Tier: invoice.Total, MaxRating: 4, TotalARAP: 15},
		{GroupSet: 2, LegalEntity: invoice.Total, CounterParty: "C9", Tier: invoice.Total, MaxRating: 4, TotalARAP: 15},
		{GroupSet: 3, LegalEntity: invoice.Total, CounterParty: invoice.Total, Tier: "0", MaxRating: 4, TotalARAP: 15},
	}, rows)
}
