package query

import (
	"context"
	"fmt"

	"github.com/cartscope/cartscope/internal/viz"
)

// Data sources create_visualization can plot.
const (
	SourceTopProducts          = "top_products"
	SourceReorderRates         = "reorder_rates"
	SourceDepartmentComparison = "department_comparison"
)

// VisualizationRequest describes one chart to render.
type VisualizationRequest struct {
	ChartType        string
	DataSource       string
	Title            string
	Limit            int
	DepartmentFilter string
}

// VisualizationResult reports a rendered chart. This is the one operation
// with a side effect: it writes a uniquely named file and returns its path.
type VisualizationResult struct {
	Success    bool   `json:"success"`
	Filepath   string `json:"filepath"`
	Message    string `json:"message"`
	DataPoints int    `json:"data_points"`
}

// CreateVisualization gathers the requested data and renders it.
func (s *Service) CreateVisualization(ctx context.Context, req VisualizationRequest) (*VisualizationResult, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("visualization is not configured")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	var points []viz.Point
	switch req.DataSource {
	case SourceTopProducts:
		top, err := s.GetTopProducts(ctx, req.DepartmentFilter, limit)
		if err != nil {
			return nil, err
		}
		for _, pc := range top.TopProducts {
			points = append(points, viz.Point{Name: pc.Name, Value: float64(pc.Count)})
		}

	case SourceReorderRates:
		stats, err := s.GetReorderStats(ctx, "highest", limit)
		if err != nil {
			return nil, err
		}
		for _, e := range stats.Products {
			points = append(points, viz.Point{Name: e.Name, Value: e.ReorderRate})
		}

	case SourceDepartmentComparison:
		rows, err := s.rankedCounts(ctx,
			`SELECT d.department, COUNT(*) AS c
			 FROM order_products op
			 JOIN products p ON p.product_id = op.product_id
			 JOIN departments d ON d.department_id = p.department_id
			 GROUP BY d.department_id
			 ORDER BY c DESC, d.department ASC
			 LIMIT ?`, limit)
		if err != nil {
			return nil, err
		}
		for _, pc := range rows {
			points = append(points, viz.Point{Name: pc.Name, Value: float64(pc.Count)})
		}

	default:
		return nil, fmt.Errorf("unknown data source: %s", req.DataSource)
	}

	path, err := s.renderer.Render(req.ChartType, req.DataSource, req.Title, points)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return &VisualizationResult{
		Success:    true,
		Filepath:   path,
		Message:    fmt.Sprintf("Visualization saved to %s", path),
		DataPoints: len(points),
	}, nil
}
