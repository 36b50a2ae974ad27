// Command exposure-batch builds the counterparty exposure report on the
// granary MapReduce engine, as two chained jobs: a join of the invoice and
// tier datasets on counter_party, then a grouped aggregation of the joined
// records. The aggregate job's part files are collected, sorted, and written
// as the final report CSV.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/granarydata/granary"
	"github.com/granarydata/granary/internal/pkg/granfs"
	"github.com/granarydata/granary/internal/pkg/invoice"
)

var (
	invoicesPath = pflag.String("invoices", "inputs/dataset1.csv", "Invoice dataset (CSV)")
	tiersPath    = pflag.String("tiers", "inputs/dataset2.csv", "Counterparty tier dataset (CSV)")
	outPath      = pflag.StringP("out", "o", "outputs/batch_output.csv", "Report output path (CSV)")
	workDir      = pflag.String("workdir", ".granary", "Working directory for job intermediate data")
	verbose      = pflag.BoolP("verbose", "v", false, "Enable debug logging")
)

func main() {
	pflag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	joinDir := filepath.Join(*workDir, "join")
	aggregateDir := filepath.Join(*workDir, "aggregate")
	for _, dir := range []string{joinDir, aggregateDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0777); err != nil {
			return err
		}
	}

	log.Infof("Joining %s with %s", *invoicesPath, *tiersPath)
	joinJob := granary.NewJob(invoice.JoinMapper{}, invoice.JoinReducer{})
	joinDriver := granary.NewDriver(joinJob,
		granary.WithInputs(*invoicesPath, *tiersPath),
		granary.WithWorkingLocation(joinDir),
	)
	if err := joinDriver.Run(); err != nil {
		return fmt.Errorf("join job: %s", err)
	}

	log.Info("Aggregating joined invoices")
	aggregateJob := granary.NewJob(invoice.AggregateMapper{}, invoice.AggregateReducer{})
	aggregateDriver := granary.NewDriver(aggregateJob,
		granary.WithInputs(filepath.Join(joinDir, "output-part-*")),
		granary.WithWorkingLocation(aggregateDir),
	)
	if err := aggregateDriver.Run(); err != nil {
		return fmt.Errorf("aggregate job: %s", err)
	}

	fs := granfs.InferFilesystem(aggregateDir)
	rows, err := invoice.CollectParts(fs, filepath.Join(aggregateDir, "output-part-*"))
	if err != nil {
		return fmt.Errorf("collecting report rows: %s", err)
	}
	invoice.SortRows(rows)

	if err := os.MkdirAll(filepath.Dir(*outPath), 0777); err != nil {
		return err
	}
	out, err := os.Create(*outPath)
	if err != nil {
		return err
	}

	log.Infof("Writing %d report rows to %s", len(rows), *outPath)
	if err := invoice.WriteReport(out, rows); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
