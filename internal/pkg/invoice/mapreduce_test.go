package invoice

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/granarydata/granary"
	"github.com/granarydata/granary/internal/pkg/granfs"
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

// expectedReportRows is the report for testInvoiceData joined with
// testTierData, in sorted order.
var expectedReportRows = []Row{
	{GroupSet: 0, LegalEntity: "L1", CounterParty: Total, Tier: Total, MaxRating: 2, TotalARAP: 50, TotalACCR: 0},
	{GroupSet: 0, LegalEntity: "L2", CounterParty: Total, Tier: Total, MaxRating: 3, TotalARAP: 0, TotalACCR: 25},
	{GroupSet: 1, LegalEntity: "L1", CounterParty: "C1", Tier: Total, MaxRating: 1, TotalARAP: 10, TotalACCR: 0},
	{GroupSet: 1, LegalEntity: "L1", CounterParty: "C2", Tier: Total, MaxRating: 2, TotalARAP: 40, TotalACCR: 0},
	{GroupSet: 1, LegalEntity: "L2", CounterParty: "C1", Tier: Total, MaxRating: 3, TotalARAP: 0, TotalACCR: 25},
	{GroupSet: 2, LegalEntity: Total, CounterParty: "C1", Tier: Total, MaxRating: 3, TotalARAP: 10, TotalACCR: 25},
	{GroupSet: 2, LegalEntity: Total, CounterParty: "C2", Tier: Total, MaxRating: 2, TotalARAP: 40, TotalACCR: 0},
	{GroupSet: 3, LegalEntity: Total, CounterParty: Total, Tier: "1", MaxRating: 3, TotalARAP: 10, TotalACCR: 25},
	{GroupSet: 3, LegalEntity: Total, CounterParty: Total, Tier: "2", MaxRating: 2, TotalARAP: 40, TotalACCR: 0},
}

func TestBatchReportEndToEnd(t *testing.T) {
	tmpdir, err := ioutil.TempDir("", "test")
	defer os.RemoveAll(tmpdir)
	assert.Nil(t, err)

	invoicesPath := filepath.Join(tmpdir, "dataset1.csv")
	tiersPath := filepath.Join(tmpdir, "dataset2.csv")
	assert.Nil(t, ioutil.WriteFile(invoicesPath, []byte(testInvoiceData), 0777))
	assert.Nil(t, ioutil.WriteFile(tiersPath, []byte(testTierData), 0777))

	joinDir := filepath.Join(tmpdir, "join")
	aggregateDir := filepath.Join(tmpdir, "aggregate")

	joinDriver := granary.NewDriver(
		granary.NewJob(JoinMapper{}, JoinReducer{}),
		granary.WithInputs(invoicesPath, tiersPath),
		granary.WithWorkingLocation(joinDir),
	)
	assert.Nil(t, joinDriver.Run())

	aggregateDriver := granary.NewDriver(
		granary.NewJob(AggregateMapper{}, AggregateReducer{}),
		granary.WithInputs(filepath.Join(joinDir, "output-part-*")),
		granary.WithWorkingLocation(aggregateDir),
	)
	assert.Nil(t, aggregateDriver.Run())

	fs := &granfs.LocalFileSystem{}
	rows, err := CollectParts(fs, filepath.Join(aggregateDir, "output-part-*"))
	assert.Nil(t, err)

	SortRows(rows)
	assert.Equal(t, expectedReportRows, rows)
}

func TestBatchReportMissingTierReference(t *testing.T) {
	tmpdir, err := ioutil.TempDir("", "test")
	defer os.RemoveAll(tmpdir)
	assert.Nil(t, err)

	invoicesPath := filepath.Join(tmpdir, "dataset1.csv")
	tiersPath := filepath.Join(tmpdir, "dataset2.csv")
	assert.Nil(t, ioutil.WriteFile(invoicesPath, []byte("legal_entity,counter_party,rating,status,value\nL1,C9,4,ARAP,15\n"), 0777))
	assert.Nil(t, ioutil.WriteFile(tiersPath, []byte("counter_party,tier\nC1,1\n"), 0777))

	joinDir := filepath.Join(tmpdir, "join")
	aggregateDir := filepath.Join(tmpdir, "aggregate")

	joinDriver := granary.NewDriver(
		granary.NewJob(JoinMapper{}, JoinReducer{}),
		granary.WithInputs(invoicesPath, tiersPath),
		granary.WithWorkingLocation(joinDir),
	)
	assert.Nil(t, joinDriver.Run())

	aggregateDriver := granary.NewDriver(
		granary.NewJob(AggregateMapper{}, AggregateReducer{}),
		granary.WithInputs(filepath.Join(joinDir, "output-part-*")),
		granary.WithWorkingLocation(aggregateDir),
	)
	assert.Nil(t, aggregateDriver.Run())

	fs := &granfs.LocalFileSystem{}
	rows, err := CollectParts(fs, filepath.Join(aggregateDir, "output-part-*"))
	assert.Nil(t, err)

	SortRows(rows)
	assert.Equal(t, []Row{
		{GroupSet: 0, LegalEntity: "L1", CounterParty: Total, Tier: Total, MaxRating: 4, TotalARAP: 15},
		{GroupSet: 1, LegalEntity: "L1", CounterParty: "C9", Tier: Total, MaxRating: 4, TotalARAP: 15},
		{GroupSet: 2, LegalEntity: Total, CounterParty: "C9", Tier: Total, MaxRating: 4, TotalARAP: 15},
		{GroupSet: 3, LegalEntity: Total, CounterParty: Total, Tier: "0", MaxRating: 4, TotalARAP: 15},
	}, rows)
}
