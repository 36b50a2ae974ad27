package invoice

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/granarydata/granary/internal/pkg/granfs"
)

// Report dimension column names, matching the input dataset headers.
const (
	ColLegalEntity  = "legal_entity"
	ColCounterParty = "counter_party"
	ColTier         = "tier"
)

// Total is the placeholder rendered for dimensions outside a grouping.
const Total = "Total"

// keySep separates group key components in the shuffle. Dimension values are
// CSV fields, so a non-printable separator avoids collisions.
const keySep = "\x1f"

// Header is the column order of the final report.
var Header = []string{
	ColLegalEntity,
	ColCounterParty,
	ColTier,
	"max_of_rating",
	"total_of_value_ARAP",
	"total_of_value_ACCR",
}

// Grouping selects the subset of report dimensions to aggregate by.
type Grouping struct {
	LegalEntity  bool
	CounterParty bool
	Tier         bool
}

// Groupings is the list of aggregations in the report, in output order.
var Groupings = []Grouping{
	{LegalEntity: true},
	{LegalEntity: true, CounterParty: true},
	{CounterParty: true},
	{Tier: true},
}

// Columns returns the dataset column names included in the grouping.
func (g Grouping) Columns() []string {
	cols := make([]string, 0, 3)
	if g.LegalEntity {
		cols = append(cols, ColLegalEntity)
	}
	if g.CounterParty {
		cols = append(cols, ColCounterParty)
	}
	if g.Tier {
		cols = append(cols, ColTier)
	}
	return cols
}

// Dims renders the three report dimensions of a joined invoice under the
// grouping, with Total for excluded dimensions.
func (g Grouping) Dims(j Joined) (legalEntity, counterParty, tier string) {
	legalEntity, counterParty, tier = Total, Total, Total
	if g.LegalEntity {
		legalEntity = j.LegalEntity
	}
	if g.CounterParty {
		counterParty = j.CounterParty
	}
	if g.Tier {
		tier = strconv.Itoa(j.Tier)
	}
	return legalEntity, counterParty, tier
}

// Row is one row of the final report.
type Row struct {
	GroupSet     int // index into Groupings, used for output ordering
	LegalEntity  string
	CounterParty string
	Tier         string
	MaxRating    int
	TotalARAP    int64
	TotalACCR    int64
}

// Accumulate folds one joined invoice's measures into the row.
func (r *Row) Accumulate(rating int, status string, value int64) {
	if rating > r.MaxRating {
		r.MaxRating = rating
	}
	switch status {
	case StatusARAP:
		r.TotalARAP += value
	case StatusACCR:
		r.TotalACCR += value
	}
}

// GroupKey renders the row's group identity for the shuffle.
func (r Row) GroupKey() string {
	return strings.Join([]string{
		strconv.Itoa(r.GroupSet), r.LegalEntity, r.CounterParty, r.Tier,
	}, keySep)
}

// GroupKey builds the shuffle key for a joined invoice under a grouping.
func GroupKey(set int, g Grouping, j Joined) string {
	legalEntity, counterParty, tier := g.Dims(j)
	row := Row{
		GroupSet:     set,
		LegalEntity:  legalEntity,
		CounterParty: counterParty,
		Tier:         tier,
	}
	return row.GroupKey()
}

func parseGroupKey(key string) (Row, error) {
	parts := strings.Split(key, keySep)
	if len(parts) != 4 {
		return Row{}, fmt.Errorf("group key has %d components, want 4: %q", len(parts), key)
	}

	set, err := strconv.Atoi(parts[0])
	if err != nil {
		return Row{}, fmt.Errorf("invalid group set in key %q: %s", key, err)
	}

	return Row{
		GroupSet:     set,
		LegalEntity:  parts[1],
		CounterParty: parts[2],
		Tier:         parts[3],
	}, nil
}

func (r Row) marshalTotals() string {
	return fmt.Sprintf("%d,%d,%d", r.MaxRating, r.TotalARAP, r.TotalACCR)
}

// ParseOutputRecord parses one reducer output line ("groupKey\ttotals") back
// into a report row.
func ParseOutputRecord(line string) (Row, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 2 {
		return Row{}, fmt.Errorf("output record has %d fields, want 2: %q", len(fields), line)
	}

	row, err := parseGroupKey(fields[0])
	if err != nil {
		return Row{}, err
	}

	totals := strings.Split(fields[1], ",")
	if len(totals) != 3 {
		return Row{}, fmt.Errorf("output record has %d totals, want 3: %q", len(totals), line)
	}

	if row.MaxRating, err = strconv.Atoi(totals[0]); err != nil {
		return Row{}, fmt.Errorf("invalid max rating in record %q: %s", line, err)
	}
	if row.TotalARAP, err = strconv.ParseInt(totals[1], 10, 64); err != nil {
		return Row{}, fmt.Errorf("invalid ARAP total in record %q: %s", line, err)
	}
	if row.TotalACCR, err = strconv.ParseInt(totals[2], 10, 64); err != nil {
		return Row{}, fmt.Errorf("invalid ACCR total in record %q: %s", line, err)
	}

	return row, nil
}

// SortRows orders report rows deterministically: by grouping, then by
// dimension values. Both report implementations sort before writing, so
// their outputs are comparable byte for byte.
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.GroupSet != b.GroupSet {
			return a.GroupSet < b.GroupSet
		}
		if a.LegalEntity != b.LegalEntity {
			return a.LegalEntity < b.LegalEntity
		}
		if a.CounterParty != b.CounterParty {
			return a.CounterParty < b.CounterParty
		}
		return a.Tier < b.Tier
	})
}

func (r Row) fields() []string {
	return []string{
		r.LegalEntity,
		r.CounterParty,
		r.Tier,
		strconv.Itoa(r.MaxRating),
		strconv.FormatInt(r.TotalARAP, 10),
		strconv.FormatInt(r.TotalACCR, 10),
	}
}

// WriteReport writes the report header and rows as CSV.
func WriteReport(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CollectParts reads reducer part files matching glob and parses their
// records into report rows.
func CollectParts(fs granfs.FileSystem, glob string) ([]Row, error) {
	files, err := fs.ListFiles(glob)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0)
	for _, file := range files {
		reader, err := fs.OpenReader(file.Name, 0)
		if err != nil {
			return nil, err
		}

		scanner := bufio.NewScanner(reader)
		for scanner.Scan() {
			row, err := ParseOutputRecord(scanner.Text())
			if err != nil {
				reader.Close()
				return nil, err
			}
			rows = append(rows, row)
		}
		if err := scanner.Err(); err != nil {
			reader.Close()
			return nil, err
		}
		reader.Close()
	}

	return rows, nil
}
