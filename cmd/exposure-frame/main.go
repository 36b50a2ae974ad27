// Command exposure-frame builds the counterparty exposure report in-process
// with the gota dataframe library.
package main

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/granarydata/granary/internal/pkg/frame"
	"github.com/granarydata/granary/internal/pkg/invoice"
)

var (
	invoicesPath = pflag.String("invoices", "inputs/dataset1.csv", "Invoice dataset (CSV)")
	tiersPath    = pflag.String("tiers", "inputs/dataset2.csv", "Counterparty tier dataset (CSV)")
	outPath      = pflag.StringP("out", "o", "outputs/frame_output.csv", "Report output path (CSV)")
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
	invoicesFile, err := os.Open(*invoicesPath)
	if err != nil {
		return err
	}
	defer invoicesFile.Close()

	tiersFile, err := os.Open(*tiersPath)
	if err != nil {
		return err
	}
	defer tiersFile.Close()

	invoices, err := frame.ReadInvoices(invoicesFile)
	if err != nil {
		return err
	}
	tiers, err := frame.ReadTiers(tiersFile)
	if err != nil {
		return err
	}
	log.Infof("Loaded %d invoices and %d tier records", invoices.Nrow(), tiers.Nrow())

	rows, err := frame.BuildReport(invoices, tiers)
	if err != nil {
		return err
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
