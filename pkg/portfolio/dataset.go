package portfolio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Dataset wraps the normalised ledger records and exposes the financial
// calculations the agent tools are built on. All methods are pure reads; the
// record slice is treated as immutable for the process lifetime, which makes
// a single Dataset safe to share across concurrent turns.
type Dataset struct {
	records []Record
}

// NewDataset wraps already-normalised records.
func NewDataset(records []Record) *Dataset {
	return &Dataset{records: records}
}

// Load reads and normalises the dataset at path.
func Load(path string) (*Dataset, error) {
	records, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	return NewDataset(Normalize(records)), nil
}

// Len returns the number of ledger records.
func (d *Dataset) Len() int { return len(d.records) }

// Properties returns all asset names, sorted, excluding the overhead bucket.
func (d *Dataset) Properties() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.PropertyName != "" && r.PropertyName != OverheadProperty {
			seen[r.PropertyName] = true
		}
	}
	return sortedKeys(seen)
}

// AllProperties returns every property name including the overhead bucket.
func (d *Dataset) AllProperties() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.PropertyName != "" {
			seen[r.PropertyName] = true
		}
	}
	return sortedKeys(seen)
}

// Years returns the sorted list of fiscal years present in the data.
func (d *Dataset) Years() []int {
	seen := map[int]bool{}
	for _, r := range d.records {
		if r.Year != 0 {
			seen[r.Year] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Tenants returns all tenant names, sorted, excluding the "N/A" fill value.
func (d *Dataset) Tenants() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.TenantName != "" && r.TenantName != "N/A" {
			seen[r.TenantName] = true
		}
	}
	return sortedKeys(seen)
}

// LedgerGroups returns the distinct ledger groups, sorted.
func (d *Dataset) LedgerGroups() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.LedgerGroup != "" {
			seen[r.LedgerGroup] = true
		}
	}
	return sortedKeys(seen)
}

// LedgerCategories returns the distinct ledger categories, sorted.
func (d *Dataset) LedgerCategories() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.LedgerCategory != "" {
			seen[r.LedgerCategory] = true
		}
	}
	return sortedKeys(seen)
}

// Quarters returns the distinct raw quarter labels, sorted.
func (d *Dataset) Quarters() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.Quarter != "" {
			seen[r.Quarter] = true
		}
	}
	return sortedKeys(seen)
}

// Months returns the distinct raw month labels, sorted.
func (d *Dataset) Months() []string {
	seen := map[string]bool{}
	for _, r := range d.records {
		if r.Month != "" {
			seen[r.Month] = true
		}
	}
	return sortedKeys(seen)
}

// PLSummary is the profit-and-loss rollup for a property or the portfolio.
// Expenses are negative numbers; NOI = Revenue + Expenses.
type PLSummary struct {
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	NOI      float64 `json:"noi"`
}

// PropertyPL sums revenue and expenses for a single property. A zero year
// aggregates all years.
func (d *Dataset) PropertyPL(propertyName string, year int) PLSummary {
	var s PLSummary
	for _, r := range d.records {
		if r.PropertyName != propertyName {
			continue
		}
		if year != 0 && r.Year != year {
			continue
		}
		switch r.LedgerType {
		case LedgerRevenue:
			s.Revenue += r.Profit
		case LedgerExpenses:
			s.Expenses += r.Profit
		}
	}
	s.NOI = s.Revenue + s.Expenses
	return s
}

// PortfolioSummary aggregates financials across all properties, excluding
// the overhead bucket. A zero year aggregates all years.
func (d *Dataset) PortfolioSummary(year int) PLSummary {
	var s PLSummary
	for _, r := range d.records {
		if r.PropertyName == OverheadProperty {
			continue
		}
		if year != 0 && r.Year != year {
			continue
		}
		switch r.LedgerType {
		case LedgerRevenue:
			s.Revenue += r.Profit
		case LedgerExpenses:
			s.Expenses += r.Profit
		}
	}
	s.NOI = s.Revenue + s.Expenses
	return s
}

// OER computes the operating expense ratio |expenses| / revenue for a
// property and year. Returns 0 when there is no revenue.
func (d *Dataset) OER(propertyName string, year int) float64 {
	pl := d.PropertyPL(propertyName, year)
	if pl.Revenue == 0 {
		return 0
	}
	return abs(pl.Expenses) / pl.Revenue
}

// Metric names accepted by GrowthMetrics and CompareProperties.
const (
	MetricNOI      = "noi"
	MetricRevenue  = "revenue"
	MetricExpenses = "expenses"
)

func metricOf(pl PLSummary, metric string) (float64, error) {
	switch metric {
	case MetricNOI:
		return pl.NOI, nil
	case MetricRevenue:
		return pl.Revenue, nil
	case MetricExpenses:
		return pl.Expenses, nil
	default:
		return 0, errors.Errorf("unknown metric %q, valid options: noi, revenue, expenses", metric)
	}
}

// GrowthMetrics computes year-over-year growth per property for every
// consecutive year pair, keyed by a span label like "2024→2025". An empty map
// is returned when fewer than two years of data exist.
func (d *Dataset) GrowthMetrics(metric string) (map[string]map[string]float64, error) {
	if _, err := metricOf(PLSummary{}, metric); err != nil {
		return nil, err
	}

	years := d.Years()
	if len(years) < 2 {
		return map[string]map[string]float64{}, nil
	}

	results := map[string]map[string]float64{}
	for _, prop := range d.Properties() {
		spans := map[string]float64{}
		for i := 1; i < len(years); i++ {
			prev, curr := years[i-1], years[i]
			valPrev, _ := metricOf(d.PropertyPL(prop, prev), metric)
			valCurr, _ := metricOf(d.PropertyPL(prop, curr), metric)
			label := fmt.Sprintf("%d→%d", prev, curr)
			if valPrev == 0 {
				spans[label] = 0
				continue
			}
			spans[label] = (valCurr - valPrev) / abs(valPrev)
		}
		results[prop] = spans
	}
	return results, nil
}

// Ranked is one row of a property ranking.
type Ranked struct {
	Name  string  `json:"property_name"`
	Value float64 `json:"value"`
}

// CompareProperties ranks all properties (overhead excluded) by a derived
// metric, highest first. Ties keep alphabetical order for determinism.
func (d *Dataset) CompareProperties(metric string) ([]Ranked, error) {
	if _, err := metricOf(PLSummary{}, metric); err != nil {
		return nil, err
	}

	props := d.Properties()
	rows := make([]Ranked, 0, len(props))
	for _, prop := range props {
		val, _ := metricOf(d.PropertyPL(prop, 0), metric)
		rows = append(rows, Ranked{Name: prop, Value: val})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	return rows, nil
}

// CategoryTotal is one row of the expense-driver breakdown.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// TopExpenseDrivers sums expenses per ledger category, largest expense (most
// negative total) first. An empty propertyName covers the whole portfolio.
func (d *Dataset) TopExpenseDrivers(propertyName string) []CategoryTotal {
	totals := map[string]float64{}
	for _, r := range d.records {
		if r.LedgerType != LedgerExpenses {
			continue
		}
		if propertyName != "" && r.PropertyName != propertyName {
			continue
		}
		totals[r.LedgerCategory] += r.Profit
	}

	rows := make([]CategoryTotal, 0, len(totals))
	for _, cat := range sortedKeys(boolKeys(totals)) {
		rows = append(rows, CategoryTotal{Category: cat, Total: totals[cat]})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total < rows[j].Total })
	return rows
}

// TenantRevenue is one row of the tenant revenue summary.
type TenantRevenue struct {
	PropertyName string  `json:"property_name"`
	TenantName   string  `json:"tenant_name"`
	Revenue      float64 `json:"revenue"`
}

// TenantSummary sums revenue per (property, tenant) pair, highest revenue
// first. Either filter may be empty; unmatched filters yield an empty result.
func (d *Dataset) TenantSummary(propertyName, tenantName string) []TenantRevenue {
	type key struct{ prop, tenant string }
	totals := map[key]float64{}
	for _, r := range d.records {
		if r.LedgerType != LedgerRevenue || r.TenantName == "N/A" {
			continue
		}
		if propertyName != "" && r.PropertyName != propertyName {
			continue
		}
		if tenantName != "" && r.TenantName != tenantName {
			continue
		}
		totals[key{r.PropertyName, r.TenantName}] += r.Profit
	}

	rows := make([]TenantRevenue, 0, len(totals))
	for k, v := range totals {
		rows = append(rows, TenantRevenue{PropertyName: k.prop, TenantName: k.tenant, Revenue: v})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].TenantName < rows[j].TenantName
	})
	return rows
}

// TenantsByProperty maps each property to its sorted tenant list.
func (d *Dataset) TenantsByProperty() map[string][]string {
	seen := map[string]map[string]bool{}
	for _, r := range d.records {
		if r.TenantName == "" || r.TenantName == "N/A" {
			continue
		}
		if seen[r.PropertyName] == nil {
			seen[r.PropertyName] = map[string]bool{}
		}
		seen[r.PropertyName][r.TenantName] = true
	}
	out := map[string][]string{}
	for prop, tenants := range seen {
		out[prop] = sortedKeys(tenants)
	}
	return out
}

// SchemaInfo describes every valid dimension value in the dataset, for
// discovery before filtering.
type SchemaInfo struct {
	Properties        []string            `json:"properties"`
	TenantsByProperty map[string][]string `json:"tenants_by_property"`
	AllTenants        []string            `json:"all_tenants"`
	LedgerGroups      []string            `json:"ledger_groups"`
	LedgerCategories  []string            `json:"ledger_categories"`
	Years             []int               `json:"years"`
	Quarters          []string            `json:"quarters"`
	Months            []string            `json:"months"`
}

// Schema returns the full dimension inventory.
func (d *Dataset) Schema() SchemaInfo {
	return SchemaInfo{
		Properties:        d.Properties(),
		TenantsByProperty: d.TenantsByProperty(),
		AllTenants:        d.Tenants(),
		LedgerGroups:      d.LedgerGroups(),
		LedgerCategories:  d.LedgerCategories(),
		Years:             d.Years(),
		Quarters:          d.Quarters(),
		Months:            d.Months(),
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolKeys(m map[string]float64) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// dimensionValue resolves a group-by column for a record. The column names
// mirror the normalised dataset schema exposed to the LLM.
func dimensionValue(r Record, column string) (any, bool) {
	switch column {
	case "property_name":
		return r.PropertyName, true
	case "tenant_name":
		return r.TenantName, true
	case "ledger_type":
		return r.LedgerType, true
	case "ledger_group":
		return r.LedgerGroup, true
	case "ledger_category":
		return r.LedgerCategory, true
	case "description_en":
		return r.DescriptionEN, true
	case "date":
		if r.Date.IsZero() {
			return "", true
		}
		return r.Date.Format("2006-01"), true
	case "quarter":
		return r.Quarter, true
	case "year":
		return r.Year, true
	case "month_val":
		return r.MonthVal, true
	default:
		return nil, false
	}
}

// matchesFilter compares a record column against a filter value. Numeric
// filter values arrive as float64 from JSON-decoded tool arguments, so
// comparisons go through a loose string/number normalisation.
func matchesFilter(r Record, column string, value any) bool {
	got, ok := dimensionValue(r, column)
	if !ok {
		// Unknown columns never match, mirroring a filter on a missing
		// dataframe column selecting nothing.
		return false
	}
	return looseEqual(got, value)
}

func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
