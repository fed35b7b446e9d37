package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrEmptySlice    = errors.New("slice cannot be empty")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidMonth  = errors.New("month must be YYYY-MM")
)

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMonth ensures a reporting period is in YYYY-MM form.
func validateMonth(month string) error {
	if !monthPattern.MatchString(month) {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	return nil
}

// validateRawRecords validates a slice of raw records before ingest.
func validateRawRecords(records []model.RawRecord) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}

	for i, record := range records {
		if err := validateRawRecord(&record); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

// validateRawRecord validates a single raw record. Measurement fields are
// allowed to be arbitrary strings; only identity fields are required.
func validateRawRecord(record *model.RawRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(record.Vendor) == "" {
		return fmt.Errorf("%w: missing vendor", ErrInvalidRecord)
	}
	if err := validateMonth(record.Month); err != nil {
		return err
	}
	return nil
}

// validateNormalized validates a normalized record before persistence.
func validateNormalized(record *model.NormalizedRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.RawID <= 0 {
		return fmt.Errorf("%w: missing raw record reference", ErrInvalidRecord)
	}
	if strings.TrimSpace(record.Vendor) == "" {
		return fmt.Errorf("%w: missing vendor", ErrInvalidRecord)
	}
	if err := validateMonth(record.Month); err != nil {
		return err
	}
	if record.DataQuality < 0 || record.DataQuality > 100 {
		return fmt.Errorf("%w: data quality must be between 0 and 100", ErrInvalidRecord)
	}
	return nil
}
