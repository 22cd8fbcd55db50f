package portfolio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// OverheadProperty is the property name assigned to overhead / corporate
// ledger entries that do not belong to a specific asset. Centralised here so
// every package imports it rather than repeating the raw string.
const OverheadProperty = "Corporate/General"

// Ledger types as they appear in the dataset.
const (
	LedgerRevenue  = "revenue"
	LedgerExpenses = "expenses"
)

// Record is a single ledger line of the portfolio dataset.
//
// Raw columns come straight from the export; derived fields (Date,
// QuarterStart, Year, MonthVal, DescriptionEN) are filled in by Normalize.
type Record struct {
	PropertyName      string
	TenantName        string
	LedgerGroup       string
	LedgerCategory    string
	LedgerDescription string
	LedgerType        string
	Month             string // raw, e.g. "2025-M01"
	Quarter           string // raw, e.g. "2025-Q1"
	Profit            float64

	// Derived by Normalize.
	Date          time.Time
	QuarterStart  time.Time
	Year          int
	MonthVal      int
	DescriptionEN string
}

// LoadCSV reads the raw ledger export from path. Column order is resolved
// from the header row, unknown columns are ignored.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f)
}

// ReadCSV parses ledger records from r. The first row must be a header.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	idx := map[string]int{}
	for i, col := range header {
		idx[col] = i
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv line %d", line)
		}

		rec := Record{
			PropertyName:      field(row, "property_name"),
			TenantName:        field(row, "tenant_name"),
			LedgerGroup:       field(row, "ledger_group"),
			LedgerCategory:    field(row, "ledger_category"),
			LedgerDescription: field(row, "ledger_description"),
			LedgerType:        field(row, "ledger_type"),
			Month:             field(row, "month"),
			Quarter:           field(row, "quarter"),
		}
		if raw := field(row, "profit"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parse profit on line %d", line)
			}
			rec.Profit = v
		}
		records = append(records, rec)
	}

	return records, nil
}
