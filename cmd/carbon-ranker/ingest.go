package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sustainops/carbon-ranker/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.csv>",
		Short: "Ingest vendor reports from a CSV file",
		Long: `Load raw vendor reports from a CSV file into the record store.

The file must have a header row with these columns:
  company, month, region, gpu_hours_raw, energy_raw, tokens_raw,
  api_calls_raw, pue_raw, utilization_raw

Field values are stored verbatim; normalization happens during processing.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	records, err := parseCSV(file)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records found in %s", path)
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveRawRecords(ctx, records); err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}

	slog.Info("Ingest complete", "file", path, "records", len(records))
	fmt.Printf("Ingested %d records from %s.\n", len(records), path)

	return nil
}

var csvColumns = []string{
	"company", "month", "region", "gpu_hours_raw", "energy_raw",
	"tokens_raw", "api_calls_raw", "pue_raw", "utilization_raw",
}

func parseCSV(r io.Reader) ([]model.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	field := func(row []string, name string) string {
		return row[index[name]]
	}

	var records []model.RawRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		records = append(records, model.RawRecord{
			Vendor:         field(row, "company"),
			Month:          field(row, "month"),
			Region:         field(row, "region"),
			GPUHoursRaw:    field(row, "gpu_hours_raw"),
			EnergyRaw:      field(row, "energy_raw"),
			TokensRaw:      field(row, "tokens_raw"),
			APICallsRaw:    field(row, "api_calls_raw"),
			PUERaw:         field(row, "pue_raw"),
			UtilizationRaw: field(row, "utilization_raw"),
		})
	}

	return records, nil
}
