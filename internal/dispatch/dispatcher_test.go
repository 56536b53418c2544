package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/domain"
	"github.com/cartscope/cartscope/internal/policy"
	"github.com/cartscope/cartscope/internal/query"
)

// fakeData scripts the data query surface per tool.
type fakeData struct {
	topProducts    *query.TopProducts
	topProductsErr error
	userOrders     *query.UserOrders
	userOrdersErr  error
	pairs          *query.ProductPairs
	pairsErr       error
	panicOnUser    bool
}

func (f *fakeData) GetUserOrders(ctx context.Context, userID int64) (*query.UserOrders, error) {
	if f.panicOnUser {
		panic("boom")
	}
	return f.userOrders, f.userOrdersErr
}

func (f *fakeData) AnalyzeProduct(ctx context.Context, name string) (*query.ProductStats, error) {
	return &query.ProductStats{MatchingProducts: []string{name}}, nil
}

func (f *fakeData) GetTopProducts(ctx context.Context, department string, limit int) (*query.TopProducts, error) {
	return f.topProducts, f.topProductsErr
}

func (f *fakeData) AnalyzeDepartment(ctx context.Context, name string) (*query.DepartmentStats, error) {
	return &query.DepartmentStats{DepartmentName: name}, nil
}

func (f *fakeData) FindProductPairs(ctx context.Context, name string, limit int) (*query.ProductPairs, error) {
	return f.pairs, f.pairsErr
}

func (f *fakeData) GetReorderStats(ctx context.Context, sortBy string, limit int) (*query.ReorderStats, error) {
	return &query.ReorderStats{SortBy: sortBy}, nil
}

func (f *fakeData) CreateVisualization(ctx context.Context, req query.VisualizationRequest) (*query.VisualizationResult, error) {
	return &query.VisualizationResult{Success: true, Filepath: "charts/x.html"}, nil
}

func newTestDispatcher(t *testing.T, data query.DataQuery) *Dispatcher {
	t.Helper()
	return New(catalog.New(), data, nil, time.Second)
}

func toolUse(id, name string, input map[string]any) domain.ContentBlock {
	return domain.ContentBlock{Type: domain.BlockToolUse, ID: id, Name: name, Input: input}
}

func decodeError(t *testing.T, block domain.ContentBlock) domain.ToolError {
	t.Helper()
	var payload struct {
		Error domain.ToolError `json:"error"`
	}
	if err := json.Unmarshal([]byte(block.Content), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Error
}

func TestRunMatchesEveryID(t *testing.T) {
	data := &fakeData{
		topProducts: &query.TopProducts{TopProducts: []query.ProductCount{{Name: "Banana", Count: 42}}},
	}
	d := newTestDispatcher(t, data)

	batch := []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolGetTopProducts, map[string]any{"limit": float64(3)}),
		toolUse("tu_2", catalog.ToolAnalyzeDepartment, map[string]any{"department_name": "produce"}),
		toolUse("tu_3", "no_such_tool", map[string]any{}),
	}

	results := d.Run(context.Background(), batch)
	assert.Len(t, results, len(batch))

	seen := map[string]bool{}
	for _, r := range results {
		assert.Equal(t, domain.BlockToolResult, r.Type)
		assert.False(t, seen[r.ToolUseID], "duplicate id %s", r.ToolUseID)
		seen[r.ToolUseID] = true
	}
	for _, inv := range batch {
		assert.True(t, seen[inv.ID], "missing result for %s", inv.ID)
	}
}

func TestRunUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, &fakeData{})

	results := d.Run(context.Background(), []domain.ContentBlock{
		toolUse("tu_9", "drop_tables", map[string]any{}),
	})

	assert.Len(t, results, 1)
	assert.Equal(t, "tu_9", results[0].ToolUseID)
	assert.True(t, results[0].IsError)

	te := decodeError(t, results[0])
	assert.Equal(t, domain.ErrCodeUnknownTool, te.Code)
	assert.Contains(t, te.Message, "drop_tables")
}

func TestRunMissingRequiredField(t *testing.T) {
	d := newTestDispatcher(t, &fakeData{pairsErr: fmt.Errorf("should never be called")})

	results := d.Run(context.Background(), []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolFindProductPairs, map[string]any{"limit": float64(5)}),
	})

	te := decodeError(t, results[0])
	assert.Equal(t, domain.ErrCodeValidation, te.Code)
	assert.Equal(t, []string{"product_name"}, te.MissingFields)
}

func TestRunWrongFieldType(t *testing.T) {
	d := newTestDispatcher(t, &fakeData{})

	results := d.Run(context.Background(), []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolGetUserOrders, map[string]any{"user_id": "twelve"}),
	})

	te := decodeError(t, results[0])
	assert.Equal(t, domain.ErrCodeValidation, te.Code)
	assert.Contains(t, te.Message, "user_id")
}

func TestRunOperationFailureContained(t *testing.T) {
	d := newTestDispatcher(t, &fakeData{
		userOrdersErr: fmt.Errorf("no orders found for user 7"),
	})

	results := d.Run(context.Background(), []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolGetUserOrders, map[string]any{"user_id": float64(7)}),
	})

	te := decodeError(t, results[0])
	assert.Equal(t, domain.ErrCodeOperation, te.Code)
	assert.Contains(t, te.Message, "no orders found")
}

func TestRunRecoversPanic(t *testing.T) {
	d := newTestDispatcher(t, &fakeData{panicOnUser: true})

	results := d.Run(context.Background(), []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolGetUserOrders, map[string]any{"user_id": float64(7)}),
	})

	te := decodeError(t, results[0])
	assert.Equal(t, domain.ErrCodeOperation, te.Code)
}

func TestRunSuccessPayload(t *testing.T) {
	data := &fakeData{
		topProducts: &query.TopProducts{TopProducts: []query.ProductCount{
			{Name: "Banana", Count: 42},
			{Name: "Organic Milk", Count: 17},
		}},
	}
	d := newTestDispatcher(t, data)

	results := d.Run(context.Background(), []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolGetTopProducts, map[string]any{"limit": float64(2)}),
	})

	assert.False(t, results[0].IsError)

	var decoded query.TopProducts
	assert.NoError(t, json.Unmarshal([]byte(results[0].Content), &decoded))
	assert.Equal(t, "Banana", decoded.TopProducts[0].Name)
	assert.Equal(t, 42, decoded.TopProducts[0].Count)
}

func TestRunPolicyBlock(t *testing.T) {
	ctx := context.Background()
	engine, err := policy.NewEngine(ctx, `
package tool_policy

default decision := "allow"

decision := "block" if {
	input.tool_name == "create_visualization"
}
`)
	assert.NoError(t, err)

	d := New(catalog.New(), &fakeData{}, engine, time.Second)

	results := d.Run(ctx, []domain.ContentBlock{
		toolUse("tu_1", catalog.ToolCreateVisualization, map[string]any{
			"chart_type":  "bar",
			"data_source": "top_products",
			"title":       "Top products",
		}),
		toolUse("tu_2", catalog.ToolAnalyzeDepartment, map[string]any{"department_name": "produce"}),
	})

	blocked := decodeError(t, results[0])
	assert.Equal(t, domain.ErrCodeOperation, blocked.Code)
	assert.Contains(t, blocked.Message, "not permitted")

	assert.False(t, results[1].IsError)
}

func TestRunLargeBatchConcurrent(t *testing.T) {
	data := &fakeData{
		topProducts: &query.TopProducts{TopProducts: []query.ProductCount{{Name: "Banana", Count: 1}}},
	}
	d := newTestDispatcher(t, data)

	var batch []domain.ContentBlock
	for i := 0; i < 32; i++ {
		batch = append(batch, toolUse(fmt.Sprintf("tu_%d", i), catalog.ToolGetTopProducts, map[string]any{}))
	}

	results := d.Run(context.Background(), batch)
	assert.Len(t, results, 32)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("tu_%d", i), r.ToolUseID)
	}
}
