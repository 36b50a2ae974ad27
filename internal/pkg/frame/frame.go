// Package frame builds the counterparty exposure report with the gota
// dataframe library: read both CSV datasets, join on counter_party, and
// aggregate under each report grouping.
package frame

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	log "github.com/sirupsen/logrus"

	"github.com/granarydata/granary/internal/pkg/invoice"
)

// Names of the derived measure columns added before aggregation.
const (
	colValueARAP = "value_arap"
	colValueACCR = "value_accr"
)

// ReadInvoices loads the invoice dataset from CSV.
func ReadInvoices(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			invoice.ColLegalEntity:  series.String,
			invoice.ColCounterParty: series.String,
			"rating":                series.Int,
			"status":                series.String,
			"value":                 series.Int,
		}))
	if df.Err != nil {
		return df, fmt.Errorf("reading invoice dataset: %s", df.Err)
	}
	return df, nil
}

// ReadTiers loads the counterparty tier dataset from CSV.
func ReadTiers(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.WithTypes(map[string]series.Type{
			invoice.ColCounterParty: series.String,
			invoice.ColTier:         series.Int,
		}))
	if df.Err != nil {
		return df, fmt.Errorf("reading tier dataset: %s", df.Err)
	}
	return df, nil
}

// BuildReport joins invoices with tier reference data and aggregates the
// result under every report grouping. Rows are returned unsorted.
func BuildReport(invoices, tiers dataframe.DataFrame) ([]invoice.Row, error) {
	joined := invoices.LeftJoin(tiers, invoice.ColCounterParty)
	if joined.Err != nil {
		return nil, fmt.Errorf("joining datasets: %s", joined.Err)
	}
	log.Debugf("Joined dataframe has %d rows", joined.Nrow())

	df, err := withMeasureColumns(joined)
	if err != nil {
		return nil, err
	}

	rows := make([]invoice.Row, 0)
	for set, grouping := range invoice.Groupings {
		groups := df.GroupBy(grouping.Columns()...)
		if groups.Err != nil {
			return nil, fmt.Errorf("grouping by %v: %s", grouping.Columns(), groups.Err)
		}

		agg := groups.Aggregation(
			[]dataframe.AggregationType{
				dataframe.Aggregation_MAX,
				dataframe.Aggregation_SUM,
				dataframe.Aggregation_SUM,
			},
			[]string{"rating", colValueARAP, colValueACCR},
		)
		if agg.Err != nil {
			return nil, fmt.Errorf("aggregating by %v: %s", grouping.Columns(), agg.Err)
		}

		groupRows, err := rowsFromAggregation(set, grouping, agg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, groupRows...)
	}

	return rows, nil
}

// withMeasureColumns adds the conditional value columns used by the grouped
// sums, and normalizes the tier column: invoices without tier reference data
// join to NaN and are reported under tier 0.
func withMeasureColumns(joined dataframe.DataFrame) (dataframe.DataFrame, error) {
	records := joined.Records()
	header := records[0]
	statusIdx := columnIndex(header, "status")
	valueIdx := columnIndex(header, "value")
	tierIdx := columnIndex(header, invoice.ColTier)
	if statusIdx == -1 || valueIdx == -1 || tierIdx == -1 {
		return joined, fmt.Errorf("joined dataframe is missing columns, have %v", header)
	}

	n := joined.Nrow()
	arap := make([]int, n)
	accr := make([]int, n)
	tiers := make([]int, n)
	for i, record := range records[1:] {
		value, err := strconv.Atoi(record[valueIdx])
		if err != nil {
			return joined, fmt.Errorf("invalid value in joined row %d: %s", i, err)
		}

		switch record[statusIdx] {
		case invoice.StatusARAP:
			arap[i] = value
		case invoice.StatusACCR:
			accr[i] = value
		default:
			return joined, fmt.Errorf("unknown status %q in joined row %d", record[statusIdx], i)
		}

		tier, err := strconv.Atoi(record[tierIdx])
		if err != nil {
			log.Warnf("No tier reference for row %d; defaulting to tier 0", i)
			tier = 0
		}
		tiers[i] = tier
	}

	df := joined.
		Mutate(series.New(arap, series.Int, colValueARAP)).
		Mutate(series.New(accr, series.Int, colValueACCR)).
		Mutate(series.New(tiers, series.Int, invoice.ColTier))
	if df.Err != nil {
		return df, fmt.Errorf("adding measure columns: %s", df.Err)
	}
	return df, nil
}

// rowsFromAggregation converts one grouping's aggregated dataframe into
// report rows, filling Total for the dimensions outside the grouping.
func rowsFromAggregation(set int, g invoice.Grouping, agg dataframe.DataFrame) ([]invoice.Row, error) {
	records := agg.Records()
	header := records[0]

	legalEntityIdx := columnIndex(header, invoice.ColLegalEntity)
	counterPartyIdx := columnIndex(header, invoice.ColCounterParty)
	tierIdx := columnIndex(header, invoice.ColTier)
	ratingIdx := columnIndex(header, "rating_MAX")
	arapIdx := columnIndex(header, colValueARAP+"_SUM")
	accrIdx := columnIndex(header, colValueACCR+"_SUM")
	if ratingIdx == -1 || arapIdx == -1 || accrIdx == -1 {
		return nil, fmt.Errorf("aggregation is missing measure columns, have %v", header)
	}

	rows := make([]invoice.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := invoice.Row{
			GroupSet:     set,
			LegalEntity:  invoice.Total,
			CounterParty: invoice.Total,
			Tier:         invoice.Total,
		}
		if g.LegalEntity {
			row.LegalEntity = record[legalEntityIdx]
		}
		if g.CounterParty {
			row.CounterParty = record[counterPartyIdx]
		}
		if g.Tier {
			tier, err := parseAggregated(record[tierIdx])
			if err != nil {
				return nil, fmt.Errorf("invalid tier in aggregation: %s", err)
			}
			row.Tier = strconv.FormatInt(tier, 10)
		}

		rating, err := parseAggregated(record[ratingIdx])
		if err != nil {
			return nil, fmt.Errorf("invalid max rating in aggregation: %s", err)
		}
		arap, err := parseAggregated(record[arapIdx])
		if err != nil {
			return nil, fmt.Errorf("invalid ARAP total in aggregation: %s", err)
		}
		accr, err := parseAggregated(record[accrIdx])
		if err != nil {
			return nil, fmt.Errorf("invalid ACCR total in aggregation: %s", err)
		}

		row.MaxRating = int(rating)
		row.TotalARAP = arap
		row.TotalACCR = accr
		rows = append(rows, row)
	}

	return rows, nil
}

// parseAggregated parses a numeric aggregation result. Gota renders
// aggregated measures as floats, so parse through float64.
func parseAggregated(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}
