package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryGrandTotal(t *testing.T) {
	ds := testDataset()

	rows := ds.Query(nil, []string{"profit"}, nil)
	require.Len(t, rows, 1)
	assert.InDelta(t, 2000, rows[0]["profit"], 1e-9)
}

func TestQueryGroupByWithFilter(t *testing.T) {
	ds := testDataset()

	rows := ds.Query(
		[]string{"property_name"},
		[]string{"profit"},
		[]Filter{{Column: "year", Value: 2025}},
	)
	require.Len(t, rows, 3)

	// Deterministic order by group key.
	assert.Equal(t, "Alpha Tower", rows[0]["property_name"])
	assert.InDelta(t, 600, rows[0]["profit"], 1e-9)
	assert.Equal(t, "Beta Plaza", rows[1]["property_name"])
	assert.InDelta(t, 350, rows[1]["profit"], 1e-9)
	assert.Equal(t, OverheadProperty, rows[2]["property_name"])
	assert.InDelta(t, -50, rows[2]["profit"], 1e-9)
}

func TestQueryNumericFilterFromJSON(t *testing.T) {
	ds := testDataset()

	// Tool arguments decode numbers as float64; the filter must still match
	// the int year column.
	rows := ds.Query(nil, []string{"profit"}, []Filter{{Column: "year", Value: float64(2024)}})
	require.Len(t, rows, 1)
	assert.InDelta(t, 1100, rows[0]["profit"], 1e-9)
}

func TestQueryDropsUnknownDimensions(t *testing.T) {
	ds := testDataset()

	rows := ds.Query([]string{"no_such_column"}, []string{"profit"}, nil)
	require.Len(t, rows, 1)
	assert.InDelta(t, 2000, rows[0]["profit"], 1e-9)
}

func TestQueryNoValidMetrics(t *testing.T) {
	ds := testDataset()
	assert.Nil(t, ds.Query([]string{"property_name"}, []string{"no_such_metric"}, nil))
}

func TestQueryUnknownFilterColumnMatchesNothing(t *testing.T) {
	ds := testDataset()

	rows := ds.Query(nil, []string{"profit"}, []Filter{{Column: "no_such_column", Value: "x"}})
	require.Len(t, rows, 1)
	assert.InDelta(t, 0, rows[0]["profit"], 1e-9)
}

func TestQueryMultipleDimensions(t *testing.T) {
	ds := testDataset()

	rows := ds.Query(
		[]string{"property_name", "ledger_type"},
		[]string{"profit"},
		[]Filter{{Column: "property_name", Value: "Alpha Tower"}},
	)
	require.Len(t, rows, 2)
	assert.Equal(t, LedgerExpenses, rows[0]["ledger_type"])
	assert.InDelta(t, -1000, rows[0]["profit"], 1e-9)
	assert.Equal(t, LedgerRevenue, rows[1]["ledger_type"])
	assert.InDelta(t, 2200, rows[1]["profit"], 1e-9)
}
