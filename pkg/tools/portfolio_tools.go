package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cortexre/cortexre/pkg/portfolio"
)

// The tool set mirrors the analyst workflow: discovery first
// (list_properties, get_schema_info), then scoped financials, then the
// flexible query as a fallback for anything unusual.

var amountPrinter = message.NewPrinter(language.English)

func fmtAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

func validateProperty(ds *portfolio.Dataset, name string) error {
	known := ds.AllProperties()
	for _, p := range known {
		if p == name {
			return nil
		}
	}
	var close []string
	lower := strings.ToLower(name)
	for _, p := range known {
		if strings.Contains(strings.ToLower(p), lower) {
			close = append(close, p)
			if len(close) == 3 {
				break
			}
		}
	}
	hint := ""
	if len(close) > 0 {
		hint = fmt.Sprintf(" Did you mean: %s?", strings.Join(close, ", "))
	}
	return NewToolError("No property named '%s' was found in the dataset.%s", name, hint)
}

func validateYear(ds *portfolio.Dataset, year int) error {
	years := ds.Years()
	for _, y := range years {
		if y == year {
			return nil
		}
	}
	return NewToolError("No financial data is available for the year %d. Available years: %v.", year, years)
}

func yearOf(year *int) int {
	if year == nil {
		return 0
	}
	return *year
}

func yearLabel(year *int) string {
	if year == nil {
		return "all years"
	}
	return fmt.Sprintf("%d", *year)
}

func plResult(label string, pl portfolio.PLSummary) map[string]any {
	return map[string]any{
		"label":        label,
		"revenue":      pl.Revenue,
		"expenses":     pl.Expenses,
		"noi":          pl.NOI,
		"revenue_fmt":  fmtAmount(pl.Revenue),
		"expenses_fmt": fmtAmount(pl.Expenses),
		"noi_fmt":      fmtAmount(pl.NOI),
	}
}

type emptyArgs struct{}

type propertyPLArgs struct {
	PropertyName string `json:"property_name" jsonschema:"description=Exact property name as it appears in the dataset. Call list_properties first if unsure."`
	Year         *int   `json:"year,omitempty" jsonschema:"description=Optional fiscal year such as 2024 or 2025. Omit to aggregate all years."`
}

type portfolioSummaryArgs struct {
	Year *int `json:"year,omitempty" jsonschema:"description=Optional fiscal year filter. Omit to aggregate all years."`
}

type oerArgs struct {
	PropertyName string `json:"property_name" jsonschema:"description=Exact property name as it appears in the dataset."`
	Year         int    `json:"year" jsonschema:"description=The fiscal year to calculate OER for. Required."`
}

type growthArgs struct {
	Metric string `json:"metric,omitempty" jsonschema:"description=The financial metric to measure growth on. One of noi (default) or revenue or expenses."`
}

type compareArgs struct {
	Field string `json:"field,omitempty" jsonschema:"description=The metric to rank by. One of noi (default) or revenue or expenses."`
}

type expenseDriversArgs struct {
	PropertyName *string `json:"property_name,omitempty" jsonschema:"description=Optional property name to scope the analysis. Omit for the whole portfolio."`
}

type queryArgs struct {
	Dimensions []string           `json:"dimensions" jsonschema:"description=Column names to group by. Valid: property_name / date / year / month_val / tenant_name / ledger_type / ledger_category / description_en."`
	Metrics    []string           `json:"metrics,omitempty" jsonschema:"description=Numerical columns to sum. Defaults to profit."`
	Filters    []portfolio.Filter `json:"filters,omitempty" jsonschema:"description=Optional equality filters. Each filter has a column and a value."`
}

type tenantSummaryArgs struct {
	PropertyName *string `json:"property_name,omitempty" jsonschema:"description=Optional property to scope results to."`
	TenantName   *string `json:"tenant_name,omitempty" jsonschema:"description=Optional tenant to filter to. Call get_schema_info first if unsure of the exact name."`
}

// NewPortfolioRegistry builds the registry of all portfolio tools bound to
// ds. The tool descriptions are the primary interface the model sees, so
// they spell out when each tool applies.
func NewPortfolioRegistry(ds *portfolio.Dataset) (*InMemoryRegistry, error) {
	registry := NewInMemoryRegistry()

	defs := []Definition{
		MustDefinition(NewDefinition(
			"list_properties",
			"List all property names known in the dataset. Use this tool first whenever the user refers to a property by a partial name or asks which properties are available.",
			func(ctx context.Context, _ emptyArgs) (any, error) {
				props := ds.Properties()
				return map[string]any{
					"label":      "Known properties",
					"properties": props,
					"count":      len(props),
				}, nil
			},
		)),

		MustDefinition(NewDefinition(
			"get_property_pl",
			"Return the P&L summary (revenue, expenses, NOI) for a single property. Use this when the user asks about profit and loss, revenue, expenses, or Net Operating Income for a specific property. For portfolio-wide totals use get_portfolio_summary instead.",
			func(ctx context.Context, in propertyPLArgs) (any, error) {
				if err := validateProperty(ds, in.PropertyName); err != nil {
					return nil, err
				}
				if in.Year != nil {
					if err := validateYear(ds, *in.Year); err != nil {
						return nil, err
					}
				}
				pl := ds.PropertyPL(in.PropertyName, yearOf(in.Year))
				result := plResult(fmt.Sprintf("P&L for '%s' (%s)", in.PropertyName, yearLabel(in.Year)), pl)
				result["property_name"] = in.PropertyName
				result["year"] = in.Year
				return result, nil
			},
		)),

		MustDefinition(NewDefinition(
			"get_portfolio_summary",
			"Return aggregated financials (revenue, expenses, NOI) across all properties. Use this when the user asks about the entire portfolio rather than a specific asset. Corporate/General overhead entries are excluded automatically.",
			func(ctx context.Context, in portfolioSummaryArgs) (any, error) {
				if in.Year != nil {
					if err := validateYear(ds, *in.Year); err != nil {
						return nil, err
					}
				}
				pl := ds.PortfolioSummary(yearOf(in.Year))
				result := plResult(fmt.Sprintf("Portfolio summary (%s)", yearLabel(in.Year)), pl)
				result["year"] = in.Year
				return result, nil
			},
		)),

		MustDefinition(NewDefinition(
			"calculate_oer",
			"Calculate the Operating Expense Ratio (OER = |total expenses| / total revenue) for a property in a given year. A higher OER means a larger share of revenue is consumed by operating costs.",
			func(ctx context.Context, in oerArgs) (any, error) {
				if err := validateProperty(ds, in.PropertyName); err != nil {
					return nil, err
				}
				if err := validateYear(ds, in.Year); err != nil {
					return nil, err
				}
				oer := ds.OER(in.PropertyName, in.Year)
				return map[string]any{
					"label":         fmt.Sprintf("OER for '%s' (%d)", in.PropertyName, in.Year),
					"property_name": in.PropertyName,
					"year":          in.Year,
					"oer":           oer,
					"oer_pct":       fmt.Sprintf("%.1f%%", oer*100),
				}, nil
			},
		)),

		MustDefinition(NewDefinition(
			"get_growth_metrics",
			"Calculate year-over-year growth for each property. Use this when the user asks which properties grew or declined the most, or wants a ranked table of YoY performance. Results are sorted from best to worst performer.",
			func(ctx context.Context, in growthArgs) (any, error) {
				metric := in.Metric
				if metric == "" {
					metric = portfolio.MetricNOI
				}
				byProperty, err := ds.GrowthMetrics(metric)
				if err != nil {
					return nil, NewToolError("Unknown metric '%s'. Valid options: noi, revenue, expenses.", metric)
				}

				type row struct {
					name   string
					span   string
					growth float64
				}
				var rows []row
				for prop, spans := range byProperty {
					if len(spans) == 0 {
						continue
					}
					labels := make([]string, 0, len(spans))
					for label := range spans {
						labels = append(labels, label)
					}
					sort.Strings(labels)
					latest := labels[len(labels)-1]
					rows = append(rows, row{name: prop, span: latest, growth: spans[latest]})
				}
				sort.SliceStable(rows, func(i, j int) bool {
					if rows[i].growth != rows[j].growth {
						return rows[i].growth > rows[j].growth
					}
					return rows[i].name < rows[j].name
				})

				out := make([]map[string]any, 0, len(rows))
				for _, r := range rows {
					out = append(out, map[string]any{
						"property_name": r.name,
						"span":          r.span,
						"growth":        r.growth,
						"growth_pct":    fmt.Sprintf("%+.1f%%", r.growth*100),
					})
				}
				result := map[string]any{
					"label":  fmt.Sprintf("YoY growth by %s", metric),
					"metric": metric,
					"rows":   out,
				}
				if len(rows) > 0 {
					result["best_performer"] = rows[0].name
					result["worst_performer"] = rows[len(rows)-1].name
				}
				return result, nil
			},
		)),

		MustDefinition(NewDefinition(
			"compare_properties",
			"Rank all properties from highest to lowest by a selected financial metric. Use this when the user wants to compare or rank properties against each other.",
			func(ctx context.Context, in compareArgs) (any, error) {
				field := in.Field
				if field == "" {
					field = portfolio.MetricNOI
				}
				ranked, err := ds.CompareProperties(field)
				if err != nil {
					return nil, NewToolError("Unknown metric '%s'. Valid options: noi, revenue, expenses.", field)
				}
				rows := make([]map[string]any, 0, len(ranked))
				for _, r := range ranked {
					rows = append(rows, map[string]any{
						"property_name": r.Name,
						"value":         r.Value,
						"value_fmt":     fmtAmount(r.Value),
					})
				}
				result := map[string]any{
					"label": fmt.Sprintf("Property comparison by %s", field),
					"field": field,
					"rows":  rows,
				}
				if len(ranked) > 0 {
					result["top_property"] = ranked[0].Name
				}
				return result, nil
			},
		)),

		MustDefinition(NewDefinition(
			"top_expense_drivers",
			"Identify the largest expense categories by total cost, either for the whole portfolio or for a specific property. Results are sorted from largest to smallest expense.",
			func(ctx context.Context, in expenseDriversArgs) (any, error) {
				scope := "portfolio"
				property := ""
				if in.PropertyName != nil && *in.PropertyName != "" {
					if err := validateProperty(ds, *in.PropertyName); err != nil {
						return nil, err
					}
					property = *in.PropertyName
					scope = fmt.Sprintf("'%s'", property)
				}
				drivers := ds.TopExpenseDrivers(property)
				rows := make([]map[string]any, 0, len(drivers))
				for _, d := range drivers {
					rows = append(rows, map[string]any{
						"category":  d.Category,
						"total":     d.Total,
						"total_fmt": fmtAmount(d.Total),
					})
				}
				result := map[string]any{
					"label":         fmt.Sprintf("Top expense drivers (%s)", scope),
					"property_name": property,
					"rows":          rows,
				}
				if len(drivers) > 0 {
					result["largest_expense"] = drivers[0].Category
				}
				return result, nil
			},
		)),

		MustDefinition(NewDefinition(
			"query_portfolio",
			"Flexible query engine for custom portfolio analysis across any dimensions. Use this as a fallback when the user asks a highly specific question not covered by the other tools, such as profit by tenant or expenses grouped by month.",
			func(ctx context.Context, in queryArgs) (any, error) {
				if err := validateQueryFilters(ds, in.Filters); err != nil {
					return nil, err
				}
				metrics := in.Metrics
				if len(metrics) == 0 {
					metrics = []string{"profit"}
				}
				rows := ds.Query(in.Dimensions, metrics, in.Filters)

				// Keep results manageable for the model context window.
				const maxRows = 50
				if len(rows) > maxRows {
					return map[string]any{
						"label": "Custom Query Result (Truncated)",
						"rows":  rows[:maxRows],
						"note":  fmt.Sprintf("Result truncated. %d total rows found, showing top %d.", len(rows), maxRows),
					}, nil
				}
				return map[string]any{
					"label": "Custom Query Result",
					"rows":  rows,
				}, nil
			},
		)),

		MustDefinition(NewDefinition(
			"get_schema_info",
			"Return all valid dimension values available in the dataset: properties, tenants per property, ledger groups and categories, years, quarters, and months. Call this first whenever you are unsure which filter values exist.",
			func(ctx context.Context, _ emptyArgs) (any, error) {
				return ds.Schema(), nil
			},
		)),

		MustDefinition(NewDefinition(
			"get_tenant_summary",
			"Return revenue per tenant, ranked from highest to lowest. Use this when the user asks who the tenants are, what a tenant pays in rent, or which tenant generates the most revenue.",
			func(ctx context.Context, in tenantSummaryArgs) (any, error) {
				property, tenant := "", ""
				if in.PropertyName != nil && *in.PropertyName != "" {
					if err := validateProperty(ds, *in.PropertyName); err != nil {
						return nil, err
					}
					property = *in.PropertyName
				}
				if in.TenantName != nil {
					tenant = *in.TenantName
				}
				summary := ds.TenantSummary(property, tenant)
				rows := make([]map[string]any, 0, len(summary))
				for _, r := range summary {
					rows = append(rows, map[string]any{
						"property_name": r.PropertyName,
						"tenant_name":   r.TenantName,
						"revenue":       r.Revenue,
						"revenue_fmt":   fmtAmount(r.Revenue),
					})
				}
				result := map[string]any{
					"label": tenantSummaryLabel(property, tenant),
					"rows":  rows,
				}
				if len(summary) > 0 {
					result["top_tenant"] = summary[0].TenantName
				}
				return result, nil
			},
		)),
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func tenantSummaryLabel(property, tenant string) string {
	label := "Tenant revenue summary"
	if property != "" {
		label += " for " + property
	}
	if tenant != "" {
		label += " (" + tenant + ")"
	}
	return label
}

// validateQueryFilters checks filter values against known dimension values so
// the model gets a correctable message instead of an empty result set.
func validateQueryFilters(ds *portfolio.Dataset, filters []portfolio.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	tenants := ds.Tenants()
	categories := ds.LedgerCategories()

	for _, f := range filters {
		value := fmt.Sprintf("%v", f.Value)
		switch f.Column {
		case "property_name":
			if err := validateProperty(ds, value); err != nil {
				return err
			}
		case "tenant_name":
			if !containsString(tenants, value) {
				return NewToolError(
					"No tenant named '%s' in the dataset. Available tenants: %s. Call get_schema_info to see tenants per property.",
					value, strings.Join(tenants, ", "))
			}
		case "ledger_category":
			if !containsString(categories, value) {
				return NewToolError(
					"No ledger category '%s' in the dataset. Available categories: %s. Call get_schema_info for the full list.",
					value, strings.Join(categories, ", "))
			}
		}
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
