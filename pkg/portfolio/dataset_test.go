package portfolio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDataset covers two assets across two years plus an overhead bucket.
// Revenue entries are positive, expense entries negative, matching the raw
// export convention.
func testDataset() *Dataset {
	raw := []Record{
		{PropertyName: "Alpha Tower", TenantName: "Acme Corp", LedgerType: LedgerRevenue, LedgerCategory: "Rent", Month: "2024-M01", Quarter: "2024-Q1", Profit: 1000},
		{PropertyName: "Alpha Tower", LedgerType: LedgerExpenses, LedgerCategory: "Maintenance", Month: "2024-M02", Quarter: "2024-Q1", Profit: -400},
		{PropertyName: "Alpha Tower", TenantName: "Acme Corp", LedgerType: LedgerRevenue, LedgerCategory: "Rent", Month: "2025-M01", Quarter: "2025-Q1", Profit: 1200},
		{PropertyName: "Alpha Tower", LedgerType: LedgerExpenses, LedgerCategory: "Maintenance", Month: "2025-M02", Quarter: "2025-Q1", Profit: -500},
		{PropertyName: "Alpha Tower", LedgerType: LedgerExpenses, LedgerCategory: "Utilities", Month: "2025-M03", Quarter: "2025-Q1", Profit: -100},
		{PropertyName: "Beta Plaza", TenantName: "Globex", LedgerType: LedgerRevenue, LedgerCategory: "Rent", Month: "2024-M01", Quarter: "2024-Q1", Profit: 800},
		{PropertyName: "Beta Plaza", LedgerType: LedgerExpenses, LedgerCategory: "Utilities", Month: "2024-M04", Quarter: "2024-Q2", Profit: -300},
		{PropertyName: "Beta Plaza", TenantName: "Globex", LedgerType: LedgerRevenue, LedgerCategory: "Rent", Month: "2025-M01", Quarter: "2025-Q1", Profit: 700},
		{PropertyName: "Beta Plaza", LedgerType: LedgerExpenses, LedgerCategory: "Utilities", Month: "2025-M04", Quarter: "2025-Q2", Profit: -350},
		{PropertyName: "", LedgerType: LedgerExpenses, LedgerCategory: "Admin", Month: "2025-M01", Quarter: "2025-Q1", Profit: -50},
	}
	return NewDataset(Normalize(raw))
}

func TestPropertiesExcludesOverhead(t *testing.T) {
	ds := testDataset()
	assert.Equal(t, []string{"Alpha Tower", "Beta Plaza"}, ds.Properties())
	assert.Equal(t, []string{"Alpha Tower", "Beta Plaza", OverheadProperty}, ds.AllProperties())
}

func TestYearsAndTenants(t *testing.T) {
	ds := testDataset()
	assert.Equal(t, []int{2024, 2025}, ds.Years())
	assert.Equal(t, []string{"Acme Corp", "Globex"}, ds.Tenants())
}

func TestPropertyPL(t *testing.T) {
	ds := testDataset()

	pl := ds.PropertyPL("Alpha Tower", 2025)
	assert.InDelta(t, 1200, pl.Revenue, 1e-9)
	assert.InDelta(t, -600, pl.Expenses, 1e-9)
	assert.InDelta(t, 600, pl.NOI, 1e-9)

	all := ds.PropertyPL("Alpha Tower", 0)
	assert.InDelta(t, 2200, all.Revenue, 1e-9)
	assert.InDelta(t, -1000, all.Expenses, 1e-9)
	assert.InDelta(t, 1200, all.NOI, 1e-9)
}

func TestPortfolioSummaryExcludesOverhead(t *testing.T) {
	ds := testDataset()

	pl := ds.PortfolioSummary(2025)
	assert.InDelta(t, 1900, pl.Revenue, 1e-9)
	assert.InDelta(t, -950, pl.Expenses, 1e-9)
	assert.InDelta(t, 950, pl.NOI, 1e-9)
}

func TestOER(t *testing.T) {
	ds := testDataset()

	assert.InDelta(t, 0.5, ds.OER("Alpha Tower", 2025), 1e-9)
	// No revenue means no ratio, not a division by zero.
	assert.Zero(t, ds.OER("No Such Property", 2025))
}

func TestGrowthMetrics(t *testing.T) {
	ds := testDataset()

	growth, err := ds.GrowthMetrics(MetricNOI)
	require.NoError(t, err)

	// Alpha: NOI 600 both years. Beta: 500 then 350.
	assert.InDelta(t, 0, growth["Alpha Tower"]["2024→2025"], 1e-9)
	assert.InDelta(t, -0.3, growth["Beta Plaza"]["2024→2025"], 1e-9)
}

func TestGrowthMetricsUnknownMetric(t *testing.T) {
	ds := testDataset()
	_, err := ds.GrowthMetrics("ebitda")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestCompareProperties(t *testing.T) {
	ds := testDataset()

	ranked, err := ds.CompareProperties(MetricRevenue)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Alpha Tower", ranked[0].Name)
	assert.InDelta(t, 2200, ranked[0].Value, 1e-9)
	assert.Equal(t, "Beta Plaza", ranked[1].Name)
}

func TestTopExpenseDrivers(t *testing.T) {
	ds := testDataset()

	drivers := ds.TopExpenseDrivers("")
	require.Len(t, drivers, 3)
	// Largest expense (most negative) first.
	assert.Equal(t, "Maintenance", drivers[0].Category)
	assert.InDelta(t, -900, drivers[0].Total, 1e-9)
	assert.Equal(t, "Utilities", drivers[1].Category)
	assert.Equal(t, "Admin", drivers[2].Category)

	scoped := ds.TopExpenseDrivers("Beta Plaza")
	require.Len(t, scoped, 1)
	assert.Equal(t, "Utilities", scoped[0].Category)
	assert.InDelta(t, -650, scoped[0].Total, 1e-9)
}

func TestTenantSummary(t *testing.T) {
	ds := testDataset()

	rows := ds.TenantSummary("", "")
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme Corp", rows[0].TenantName)
	assert.InDelta(t, 2200, rows[0].Revenue, 1e-9)
	assert.Equal(t, "Globex", rows[1].TenantName)

	filtered := ds.TenantSummary("Beta Plaza", "")
	require.Len(t, filtered, 1)
	assert.Equal(t, "Globex", filtered[0].TenantName)

	assert.Empty(t, ds.TenantSummary("Beta Plaza", "Acme Corp"))
}

func TestSchema(t *testing.T) {
	ds := testDataset()
	schema := ds.Schema()

	assert.Equal(t, []string{"Alpha Tower", "Beta Plaza"}, schema.Properties)
	assert.Equal(t, []int{2024, 2025}, schema.Years)
	assert.Equal(t, []string{"Acme Corp"}, schema.TenantsByProperty["Alpha Tower"])
	assert.Contains(t, schema.LedgerCategories, "Maintenance")
	assert.Contains(t, schema.Quarters, "2025-Q1")
}

func TestReadCSV(t *testing.T) {
	csv := strings.Join([]string{
		"property_name,tenant_name,ledger_type,ledger_category,month,quarter,profit,extra_col",
		"Alpha Tower,Acme Corp,revenue,Rent,2025-M01,2025-Q1,1200.50,ignored",
		",,expenses,Admin,2025-M01,2025-Q1,-50,ignored",
	}, "\n")

	records, err := ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Alpha Tower", records[0].PropertyName)
	assert.InDelta(t, 1200.50, records[0].Profit, 1e-9)
	assert.Equal(t, "", records[1].PropertyName)
}

func TestReadCSVBadProfit(t *testing.T) {
	csv := "property_name,profit\nAlpha Tower,abc\n"
	_, err := ReadCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
