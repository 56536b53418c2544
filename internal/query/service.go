// Package query implements the read-only analytic operations over the loaded
// dataset.
package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cartscope/cartscope/internal/dataset"
	"github.com/cartscope/cartscope/internal/viz"
)

// Defaults applied when the model omits an optional limit.
const (
	DefaultTopLimit     = 10
	DefaultPairLimit    = 5
	DefaultReorderLimit = 10

	// Products with fewer orders than this are excluded from reorder
	// statistics; rates over tiny samples are noise.
	minReorderOrders = 10
)

// DataQuery is the capability surface consumed by the tool dispatcher.
type DataQuery interface {
	GetUserOrders(ctx context.Context, userID int64) (*UserOrders, error)
	AnalyzeProduct(ctx context.Context, productName string) (*ProductStats, error)
	GetTopProducts(ctx context.Context, department string, limit int) (*TopProducts, error)
	AnalyzeDepartment(ctx context.Context, departmentName string) (*DepartmentStats, error)
	FindProductPairs(ctx context.Context, productName string, limit int) (*ProductPairs, error)
	GetReorderStats(ctx context.Context, sortBy string, limit int) (*ReorderStats, error)
	CreateVisualization(ctx context.Context, req VisualizationRequest) (*VisualizationResult, error)
}

// Service implements DataQuery against the SQLite dataset.
type Service struct {
	db       *sql.DB
	renderer *viz.Renderer
}

var _ DataQuery = (*Service)(nil)

// New creates the query service over a loaded dataset store.
func New(store *dataset.Store, renderer *viz.Renderer) *Service {
	return &Service{db: store.DB(), renderer: renderer}
}

// ProductCount is one entry of a ranked product mapping. Ranked results are
// slices, not maps, so rank order survives serialization.
type ProductCount struct {
	Name  string `json:"product_name"`
	Count int    `json:"times_ordered"`
}

// UserOrders summarizes one user's shopping history.
type UserOrders struct {
	UserID      int64          `json:"user_id"`
	TotalOrders int            `json:"total_orders"`
	TotalItems  int            `json:"total_items"`
	AvgCartSize float64        `json:"avg_cart_size"`
	TopProducts []ProductCount `json:"top_products"`
}

// GetUserOrders returns order history and shopping patterns for a user.
func (s *Service) GetUserOrders(ctx context.Context, userID int64) (*UserOrders, error) {
	var totalOrders int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID,
	).Scan(&totalOrders); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	if totalOrders == 0 {
		return nil, fmt.Errorf("no orders found for user %d", userID)
	}

	var totalItems int
	var cartsWithItems int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT op.order_id)
		 FROM order_products op
		 JOIN orders o ON o.order_id = op.order_id
		 WHERE o.user_id = ?`, userID,
	).Scan(&totalItems, &cartsWithItems); err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	avgCart := 0.0
	if cartsWithItems > 0 {
		avgCart = float64(totalItems) / float64(cartsWithItems)
	}

	top, err := s.rankedCounts(ctx,
		`SELECT p.product_name, COUNT(*) AS c
		 FROM order_products op
		 JOIN orders o ON o.order_id = op.order_id
		 JOIN products p ON p.product_id = op.product_id
		 WHERE o.user_id = ?
		 GROUP BY p.product_id
		 ORDER BY c DESC, p.product_name ASC
		 LIMIT ?`, userID, DefaultTopLimit)
	if err != nil {
		return nil, err
	}

	return &UserOrders{
		UserID:      userID,
		TotalOrders: totalOrders,
		TotalItems:  totalItems,
		AvgCartSize: avgCart,
		TopProducts: top,
	}, nil
}

// ProductStats summarizes products matching a name pattern.
type ProductStats struct {
	MatchingProducts []string `json:"matching_products"`
	TotalOrders      int      `json:"total_orders"`
	UniqueCustomers  int      `json:"unique_customers"`
	ReorderRate      float64  `json:"reorder_rate"`
}

// AnalyzeProduct matches products by case-insensitive substring and
// aggregates their order activity.
func (s *Service) AnalyzeProduct(ctx context.Context, productName string) (*ProductStats, error) {
	pattern := "%" + productName + "%"

	matches, err := s.stringColumn(ctx,
		`SELECT product_name FROM products
		 WHERE product_name LIKE ?
		 ORDER BY product_id
		 LIMIT 10`, pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no products found matching %q", productName)
	}

	stats := &ProductStats{MatchingProducts: matches}
	var reorderRate sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT o.user_id), AVG(op.reordered) * 100
		 FROM order_products op
		 JOIN orders o ON o.order_id = op.order_id
		 WHERE op.product_id IN (
			SELECT product_id FROM products WHERE product_name LIKE ?
		 )`, pattern,
	).Scan(&stats.TotalOrders, &stats.UniqueCustomers, &reorderRate); err != nil {
		return nil, fmt.Errorf("failed to aggregate product orders: %w", err)
	}
	stats.ReorderRate = reorderRate.Float64

	return stats, nil
}

// TopProducts is the ranked product mapping, optionally department-filtered.
type TopProducts struct {
	DepartmentFilter string         `json:"department_filter,omitempty"`
	TopProducts      []ProductCount `json:"top_products"`
}

// GetTopProducts returns the most frequently ordered products.
func (s *Service) GetTopProducts(ctx context.Context, department string, limit int) (*TopProducts, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	q := `SELECT p.product_name, COUNT(*) AS c
	      FROM order_products op
	      JOIN products p ON p.product_id = op.product_id`
	args := []any{}
	if department != "" {
		q += `
	      JOIN departments d ON d.department_id = p.department_id
	      WHERE d.department LIKE ?`
		args = append(args, "%"+department+"%")
	}
	q += `
	      GROUP BY p.product_id
	      ORDER BY c DESC, p.product_name ASC
	      LIMIT ?`
	args = append(args, limit)

	top, err := s.rankedCounts(ctx, q, args...)
	if err != nil {
		return nil, err
	}

	return &TopProducts{DepartmentFilter: department, TopProducts: top}, nil
}

// DepartmentStats summarizes one department's activity.
type DepartmentStats struct {
	DepartmentName        string `json:"department_name"`
	TotalProducts         int    `json:"total_products"`
	TotalOrders           int    `json:"total_orders"`
	UniqueProductsOrdered int    `json:"unique_products_ordered"`
}

// AnalyzeDepartment matches a department by substring and aggregates it.
func (s *Service) AnalyzeDepartment(ctx context.Context, departmentName string) (*DepartmentStats, error) {
	var deptID int64
	var dept string
	err := s.db.QueryRowContext(ctx,
		`SELECT department_id, department FROM departments
		 WHERE department LIKE ?
		 ORDER BY department_id
		 LIMIT 1`, "%"+departmentName+"%",
	).Scan(&deptID, &dept)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no department found matching %q", departmentName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match department: %w", err)
	}

	stats := &DepartmentStats{DepartmentName: dept}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE department_id = ?`, deptID,
	).Scan(&stats.TotalProducts); err != nil {
		return nil, fmt.Errorf("failed to count department products: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT op.product_id)
		 FROM order_products op
		 JOIN products p ON p.product_id = op.product_id
		 WHERE p.department_id = ?`, deptID,
	).Scan(&stats.TotalOrders, &stats.UniqueProductsOrdered); err != nil {
		return nil, fmt.Errorf("failed to count department orders: %w", err)
	}

	return stats, nil
}

// ProductPairs lists the products most often bought with one product.
type ProductPairs struct {
	Product            string         `json:"product"`
	CommonlyBoughtWith []ProductCount `json:"commonly_bought_with"`
}

// FindProductPairs counts co-occurrences with the first product matching the
// name pattern.
func (s *Service) FindProductPairs(ctx context.Context, productName string, limit int) (*ProductPairs, error) {
	if limit <= 0 {
		limit = DefaultPairLimit
	}

	var productID int64
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT product_id, product_name FROM products
		 WHERE product_name LIKE ?
		 ORDER BY product_id
		 LIMIT 1`, "%"+productName+"%",
	).Scan(&productID, &name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no products found matching %q", productName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match product: %w", err)
	}

	pairs, err := s.rankedCounts(ctx,
		`SELECT p.product_name, COUNT(*) AS c
		 FROM order_products op
		 JOIN products p ON p.product_id = op.product_id
		 WHERE op.order_id IN (
			SELECT order_id FROM order_products WHERE product_id = ?
		 ) AND op.product_id != ?
		 GROUP BY op.product_id
		 ORDER BY c DESC, p.product_name ASC
		 LIMIT ?`, productID, productID, limit)
	if err != nil {
		return nil, err
	}

	return &ProductPairs{Product: name, CommonlyBoughtWith: pairs}, nil
}

// ReorderEntry is one product's reorder statistics.
type ReorderEntry struct {
	Name        string  `json:"product_name"`
	ReorderRate float64 `json:"reorder_rate"`
	TotalOrders int     `json:"total_orders"`
}

// ReorderStats is the ranked reorder-rate listing.
type ReorderStats struct {
	SortBy   string         `json:"sort_by"`
	Products []ReorderEntry `json:"products"`
}

// GetReorderStats ranks products by reorder rate, highest or lowest first.
func (s *Service) GetReorderStats(ctx context.Context, sortBy string, limit int) (*ReorderStats, error) {
	if limit <= 0 {
		limit = DefaultReorderLimit
	}

	var direction string
	switch sortBy {
	case "highest":
		direction = "DESC"
	case "lowest":
		direction = "ASC"
	default:
		return nil, fmt.Errorf("sort_by must be \"highest\" or \"lowest\", got %q", sortBy)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT p.product_name, AVG(op.reordered) * 100 AS rate, COUNT(*) AS c
		 FROM order_products op
		 JOIN products p ON p.product_id = op.product_id
		 GROUP BY op.product_id
		 HAVING c >= %d
		 ORDER BY rate %s, p.product_name ASC
		 LIMIT ?`, minReorderOrders, direction), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reorder stats: %w", err)
	}
	defer rows.Close()

	stats := &ReorderStats{SortBy: sortBy, Products: []ReorderEntry{}}
	for rows.Next() {
		var e ReorderEntry
		if err := rows.Scan(&e.Name, &e.ReorderRate, &e.TotalOrders); err != nil {
			return nil, fmt.Errorf("failed to scan reorder row: %w", err)
		}
		stats.Products = append(stats.Products, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reorder rows: %w", err)
	}

	return stats, nil
}

// rankedCounts runs a (name, count) query and keeps the result ordered.
func (s *Service) rankedCounts(ctx context.Context, q string, args ...any) ([]ProductCount, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked counts: %w", err)
	}
	defer rows.Close()

	out := []ProductCount{}
	for rows.Next() {
		var pc ProductCount
		if err := rows.Scan(&pc.Name, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan ranked count: %w", err)
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ranked counts: %w", err)
	}
	return out, nil
}

// stringColumn runs a single-column string query.
func (s *Service) stringColumn(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}
