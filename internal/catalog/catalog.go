// Package catalog holds the static registry of tools the model may request.
package catalog

import "github.com/cartscope/cartscope/internal/domain"

// Tool names. The set is closed: adding a tool means adding a constant, a
// definition below, and a dispatch arm.
const (
	ToolGetUserOrders       = "get_user_orders"
	ToolAnalyzeProduct      = "analyze_product"
	ToolGetTopProducts      = "get_top_products"
	ToolAnalyzeDepartment   = "analyze_department"
	ToolFindProductPairs    = "find_product_pairs"
	ToolGetReorderStats     = "get_reorder_stats"
	ToolCreateVisualization = "create_visualization"
)

// Catalog is the immutable tool registry, loaded once at startup.
type Catalog struct {
	byName  map[string]domain.ToolDefinition
	ordered []domain.ToolDefinition
}

// New builds the catalog of the seven analytic tools.
func New() *Catalog {
	defs := definitions()
	byName := make(map[string]domain.ToolDefinition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	return &Catalog{byName: byName, ordered: defs}
}

// Lookup returns the definition for a tool name.
func (c *Catalog) Lookup(name string) (domain.ToolDefinition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// All returns every definition in registration order. The slice is a copy;
// callers may not mutate the catalog through it.
func (c *Catalog) All() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        ToolGetUserOrders,
			Description: "Get order history and shopping patterns for a specific user ID",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"user_id": {Type: "integer", Description: "The user ID to query"},
				},
				Required: []string{"user_id"},
			},
		},
		{
			Name:        ToolAnalyzeProduct,
			Description: "Get statistics and insights about a specific product or product name pattern",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"product_name": {Type: "string", Description: "Product name or keyword to search for"},
				},
				Required: []string{"product_name"},
			},
		},
		{
			Name:        ToolGetTopProducts,
			Description: "Get the most frequently ordered products, optionally filtered by department",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"department": {Type: "string", Description: "Department name to filter by (optional)"},
					"limit":      {Type: "integer", Description: "Number of top products to return (default 10)"},
				},
				Required: []string{},
			},
		},
		{
			Name:        ToolAnalyzeDepartment,
			Description: "Get statistics about a department's performance and popular products",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"department_name": {Type: "string", Description: "Department name to analyze"},
				},
				Required: []string{"department_name"},
			},
		},
		{
			Name:        ToolFindProductPairs,
			Description: "Find products frequently bought together (market basket analysis)",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"product_name": {Type: "string", Description: "Product to find common pairs for"},
					"limit":        {Type: "integer", Description: "Number of pairs to return (default 5)"},
				},
				Required: []string{"product_name"},
			},
		},
		{
			Name:        ToolGetReorderStats,
			Description: "Get reorder statistics - which products have highest/lowest reorder rates",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"sort_by": {
						Type:        "string",
						Description: "Sort by 'highest' or 'lowest' reorder rate",
						Enum:        []string{"highest", "lowest"},
					},
					"limit": {Type: "integer", Description: "Number of products to return (default 10)"},
				},
				Required: []string{"sort_by"},
			},
		},
		{
			Name:        ToolCreateVisualization,
			Description: "Create a chart or graph to visualize data. Returns the filepath of the saved chart.",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]domain.Property{
					"chart_type": {
						Type:        "string",
						Description: "Type of chart to create",
						Enum:        []string{"bar", "horizontal_bar", "line", "pie", "scatter"},
					},
					"data_source": {
						Type:        "string",
						Description: "What data to visualize (e.g., 'top_products', 'department_comparison', 'reorder_rates')",
					},
					"title": {Type: "string", Description: "Title for the chart"},
					"limit": {Type: "integer", Description: "Number of items to include in visualization (default 10)"},
					"department_filter": {Type: "string", Description: "Optional department filter for data"},
				},
				Required: []string{"chart_type", "data_source", "title"},
			},
		},
	}
}
