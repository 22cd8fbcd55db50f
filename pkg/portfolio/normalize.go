package portfolio

import (
	"strings"
	"time"
)

var quarterStarts = map[string]string{
	"Q1": "01-01",
	"Q2": "04-01",
	"Q3": "07-01",
	"Q4": "10-01",
}

// Normalize applies the standard cleanup pass to raw ledger records and
// returns a new slice; the input is never mutated.
//
// Steps, in order:
//  1. Parse the month column ("2025-M01") into Date.
//  2. Parse the quarter column ("2025-Q1") into QuarterStart.
//  3. Strip leading/trailing whitespace from string columns (the raw
//     description is kept as-is).
//  4. Fill missing property / tenant names.
//  5. Extract the English half of bilingual ledger descriptions.
//  6. Derive Year and MonthVal from Date.
func Normalize(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		rec.PropertyName = strings.TrimSpace(rec.PropertyName)
		rec.TenantName = strings.TrimSpace(rec.TenantName)
		rec.LedgerGroup = strings.TrimSpace(rec.LedgerGroup)
		rec.LedgerCategory = strings.TrimSpace(rec.LedgerCategory)
		rec.LedgerType = strings.TrimSpace(rec.LedgerType)
		rec.Month = strings.TrimSpace(rec.Month)
		rec.Quarter = strings.TrimSpace(rec.Quarter)

		if rec.PropertyName == "" {
			rec.PropertyName = OverheadProperty
		}
		if rec.TenantName == "" {
			rec.TenantName = "N/A"
		}

		rec.Date = parseMonth(rec.Month)
		rec.QuarterStart = parseQuarter(rec.Quarter)
		rec.DescriptionEN = englishDescription(rec.LedgerDescription)

		if !rec.Date.IsZero() {
			rec.Year = rec.Date.Year()
			rec.MonthVal = int(rec.Date.Month())
		}

		out[i] = rec
	}
	return out
}

// parseMonth turns "2025-M01" into 2025-01-01. Zero time on failure.
func parseMonth(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	cleaned := strings.Replace(raw, "-M", "-", 1)
	t, err := time.Parse("2006-01", cleaned)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseQuarter turns "2025-Q1" into the first day of that quarter.
func parseQuarter(raw string) time.Time {
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return time.Time{}
	}
	start, ok := quarterStarts[parts[1]]
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", parts[0]+"-"+start)
	if err != nil {
		return time.Time{}
	}
	return t
}

// englishDescription extracts the English part of a bilingual "xx|yy" value.
func englishDescription(desc string) string {
	if !strings.Contains(desc, "|") {
		return desc
	}
	parts := strings.Split(desc, "|")
	return strings.TrimSpace(parts[len(parts)-1])
}
