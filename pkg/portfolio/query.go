package portfolio

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is a single equality predicate for Query.
type Filter struct {
	Column string `json:"column"`
	Value  any    `json:"value"`
}

var knownDimensions = map[string]bool{
	"property_name":   true,
	"tenant_name":     true,
	"ledger_type":     true,
	"ledger_group":    true,
	"ledger_category": true,
	"description_en":  true,
	"date":            true,
	"quarter":         true,
	"year":            true,
	"month_val":       true,
}

var knownMetrics = map[string]bool{
	"profit": true,
}

func metricValue(r Record, metric string) float64 {
	switch metric {
	case "profit":
		return r.Profit
	default:
		return 0
	}
}

// Query is the flexible aggregation engine behind the query_portfolio tool:
// apply equality filters, group by the requested dimensions, and sum the
// requested metrics. Unknown dimensions and metrics are dropped rather than
// rejected so the model can recover from partially-wrong column guesses.
// Rows come back sorted by their dimension values for deterministic output.
func (d *Dataset) Query(dimensions, metrics []string, filters []Filter) []map[string]any {
	view := make([]Record, 0, len(d.records))
	for _, r := range d.records {
		matched := true
		for _, f := range filters {
			if !matchesFilter(r, f.Column, f.Value) {
				matched = false
				break
			}
		}
		if matched {
			view = append(view, r)
		}
	}

	validDims := make([]string, 0, len(dimensions))
	for _, dim := range dimensions {
		if knownDimensions[dim] {
			validDims = append(validDims, dim)
		}
	}
	validMetrics := make([]string, 0, len(metrics))
	for _, m := range metrics {
		if knownMetrics[m] {
			validMetrics = append(validMetrics, m)
		}
	}
	if len(validMetrics) == 0 {
		return nil
	}

	// No dimensions: a single grand-total row over the filtered view.
	if len(validDims) == 0 {
		row := map[string]any{}
		for _, m := range validMetrics {
			var sum float64
			for _, r := range view {
				sum += metricValue(r, m)
			}
			row[m] = sum
		}
		return []map[string]any{row}
	}

	type group struct {
		dims map[string]any
		sums map[string]float64
		key  string
	}

	groups := map[string]*group{}
	for _, r := range view {
		parts := make([]string, 0, len(validDims))
		dims := map[string]any{}
		for _, dim := range validDims {
			v, _ := dimensionValue(r, dim)
			dims[dim] = v
			parts = append(parts, fmt.Sprintf("%v", v))
		}
		key := strings.Join(parts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{dims: dims, sums: map[string]float64{}, key: key}
			groups[key] = g
		}
		for _, m := range validMetrics {
			g.sums[m] += metricValue(r, m)
		}
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })

	rows := make([]map[string]any, 0, len(ordered))
	for _, g := range ordered {
		row := map[string]any{}
		for dim, v := range g.dims {
			row[dim] = v
		}
		for m, sum := range g.sums {
			row[m] = sum
		}
		rows = append(rows, row)
	}
	return rows
}
