// Package persona generates shopper personas from sampled user histories.
package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cartscope/cartscope/internal/dataset"
	"github.com/cartscope/cartscope/internal/domain"
	"github.com/cartscope/cartscope/internal/llm"
)

// Profile is the shopping profile of one sampled user, shaped for the model.
type Profile struct {
	UserID  int64 `json:"user_id"`
	Metrics struct {
		TotalOrders    int     `json:"total_orders"`
		TotalItems     int     `json:"total_items_purchased"`
		AvgCartSize    float64 `json:"avg_cart_size"`
		ReorderRatePct float64 `json:"reorder_rate"`
	} `json:"metrics"`
	TopProducts []NameCount `json:"top_products"`
	Departments []NameCount `json:"department_preferences"`
	Patterns    struct {
		PreferredDayOfWeek *int `json:"preferred_day_of_week"`
		PreferredHour      *int `json:"preferred_hour"`
	} `json:"shopping_patterns"`
}

// NameCount is one labeled count, ordered by rank.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Generator samples users and asks the completion service for persona
// write-ups.
type Generator struct {
	db  *sql.DB
	llm llm.Completer
}

// NewGenerator creates a persona generator over a loaded dataset.
func NewGenerator(store *dataset.Store, completer llm.Completer) *Generator {
	return &Generator{db: store.DB(), llm: completer}
}

// Generate samples n random users and returns the model's persona text
// together with the profiles it was given.
func (g *Generator) Generate(ctx context.Context, n int) (string, []Profile, error) {
	profiles, err := g.Profiles(ctx, n)
	if err != nil {
		return "", nil, err
	}
	if len(profiles) == 0 {
		return "", nil, fmt.Errorf("no users available to profile")
	}

	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal profiles: %w", err)
	}

	prompt := strings.Join([]string{
		"You are a marketing analyst. Based on the shopping data below,",
		"create a detailed persona for each user: give them a name, a short",
		"narrative of who they are, their shopping style, and one",
		"recommendation for how to serve them better.",
		"",
		"Shopping data:",
		string(data),
	}, "\n")

	outcome, err := g.llm.Complete(ctx, []domain.Message{domain.UserText(prompt)}, nil)
	if err != nil {
		return "", nil, err
	}

	text := outcome.Text()
	if text == "" {
		return "", nil, fmt.Errorf("completion returned no persona text")
	}
	return text, profiles, nil
}

// Profiles builds shopping profiles for n randomly sampled users.
func (g *Generator) Profiles(ctx context.Context, n int) ([]Profile, error) {
	if n <= 0 {
		n = 5
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM orders ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample users: %w", err)
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sampled users: %w", err)
	}

	profiles := make([]Profile, 0, len(userIDs))
	for _, id := range userIDs {
		p, err := g.profile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to profile user %d: %w", id, err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

func (g *Generator) profile(ctx context.Context, userID int64) (*Profile, error) {
	p := &Profile{UserID: userID}

	if err := g.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID,
	).Scan(&p.Metrics.TotalOrders); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var carts int
	var reorder sql.NullFloat64
	if err := g.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT op.order_id), AVG(op.reordered) * 100
		 FROM order_products op
		 JOIN orders o ON o.order_id = op.order_id
		 WHERE o.user_id = ?`, userID,
	).Scan(&p.Metrics.TotalItems, &carts, &reorder); err != nil {
		return nil, fmt.Errorf("failed to aggregate items: %w", err)
	}
	if carts > 0 {
		p.Metrics.AvgCartSize = float64(p.Metrics.TotalItems) / float64(carts)
	}
	p.Metrics.ReorderRatePct = reorder.Float64

	top, err := g.nameCounts(ctx,
		`SELECT p.product_name, COUNT(*) AS c
		 FROM order_products op
		 JOIN orders o ON o.order_id = op.order_id
		 JOIN products p ON p.product_id = op.product_id
		 WHERE o.user_id = ?
		 GROUP BY p.product_id
		 ORDER BY c DESC, p.product_name ASC
		 LIMIT 10`, userID)
	if err != nil {
		return nil, err
	}
	p.TopProducts = top

	depts, err := g.nameCounts(ctx,
		`SELECT d.department, COUNT(*) AS c
		 FROM order_products op
		 JOIN orders o ON o.order_id = op.order_id
		 JOIN products pr ON pr.product_id = op.product_id
		 JOIN departments d ON d.department_id = pr.department_id
		 WHERE o.user_id = ?
		 GROUP BY d.department_id
		 ORDER BY c DESC, d.department ASC
		 LIMIT 5`, userID)
	if err != nil {
		return nil, err
	}
	p.Departments = depts

	p.Patterns.PreferredDayOfWeek = g.mode(ctx, "order_dow", userID)
	p.Patterns.PreferredHour = g.mode(ctx, "order_hour_of_day", userID)

	return p, nil
}

// mode returns the most frequent value of an orders column for the user, or
// nil when the column holds no data for them.
func (g *Generator) mode(ctx context.Context, column string, userID int64) *int {
	var v sql.NullInt64
	err := g.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM orders
		 WHERE user_id = ? AND %s IS NOT NULL
		 GROUP BY %s
		 ORDER BY COUNT(*) DESC, %s ASC
		 LIMIT 1`, column, column, column, column), userID,
	).Scan(&v)
	if err != nil || !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func (g *Generator) nameCounts(ctx context.Context, q string, args ...any) ([]NameCount, error) {
	rows, err := g.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	out := []NameCount{}
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		out = append(out, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}
