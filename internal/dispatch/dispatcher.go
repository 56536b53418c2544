// Package dispatch turns model-issued tool requests into executed operations.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cartscope/cartscope/internal/catalog"
	"github.com/cartscope/cartscope/internal/domain"
	"github.com/cartscope/cartscope/internal/policy"
	"github.com/cartscope/cartscope/internal/query"
)

// Dispatcher executes tool invocation batches against the data query
// service. Run is total: every failure becomes a structured tool_result
// payload, nothing escapes to abort the turn.
type Dispatcher struct {
	catalog *catalog.Catalog
	data    query.DataQuery
	engine  *policy.Engine
	timeout time.Duration
}

// New creates a dispatcher. engine may be nil to skip policy checks; timeout
// bounds each invocation independently (zero means no bound).
func New(cat *catalog.Catalog, data query.DataQuery, engine *policy.Engine, timeout time.Duration) *Dispatcher {
	return &Dispatcher{catalog: cat, data: data, engine: engine, timeout: timeout}
}

// Run executes every invocation of the batch and returns exactly one
// tool_result per tool_use id, ids preserved verbatim. Invocations are
// independent read-only queries over an immutable snapshot, so they run
// concurrently; Run waits for the whole batch.
func (d *Dispatcher) Run(ctx context.Context, batch []domain.ContentBlock) []domain.ContentBlock {
	results := make([]domain.ContentBlock, len(batch))

	var wg sync.WaitGroup
	for i, inv := range batch {
		wg.Add(1)
		go func(i int, inv domain.ContentBlock) {
			defer wg.Done()
			results[i] = d.dispatch(ctx, inv)
		}(i, inv)
	}
	wg.Wait()

	return results
}

// dispatch executes one invocation.
func (d *Dispatcher) dispatch(ctx context.Context, inv domain.ContentBlock) (result domain.ContentBlock) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: tool %s panicked: %v", inv.Name, r)
			result = domain.ToolErrorBlock(inv.ID, domain.ToolError{
				Code:    domain.ErrCodeOperation,
				Message: fmt.Sprintf("tool %s failed: %v", inv.Name, r),
			})
		}
	}()

	def, ok := d.catalog.Lookup(inv.Name)
	if !ok {
		return domain.ToolErrorBlock(inv.ID, domain.ToolError{
			Code:    domain.ErrCodeUnknownTool,
			Message: fmt.Sprintf("unknown tool: %s", inv.Name),
		})
	}

	if missing := missingFields(def, inv.Input); len(missing) > 0 {
		return domain.ToolErrorBlock(inv.ID, domain.ToolError{
			Code:          domain.ErrCodeValidation,
			Message:       fmt.Sprintf("missing required fields: %v", missing),
			MissingFields: missing,
		})
	}

	if d.engine != nil {
		decision, reason, err := d.engine.Evaluate(ctx, map[string]any{
			"tool_name": inv.Name,
			"args":      inv.Input,
		})
		if err != nil {
			return domain.ToolErrorBlock(inv.ID, domain.ToolError{
				Code:    domain.ErrCodeOperation,
				Message: fmt.Sprintf("policy evaluation failed: %v", err),
			})
		}
		if decision != "allow" {
			if reason == "" {
				reason = "blocked by policy"
			}
			return domain.ToolErrorBlock(inv.ID, domain.ToolError{
				Code:    domain.ErrCodeOperation,
				Message: fmt.Sprintf("tool %s not permitted: %s", inv.Name, reason),
			})
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	payload, err := d.invoke(ctx, inv)
	if err != nil {
		var verr *validationError
		if isValidation(err, &verr) {
			return domain.ToolErrorBlock(inv.ID, domain.ToolError{
				Code:    domain.ErrCodeValidation,
				Message: verr.Error(),
			})
		}
		return domain.ToolErrorBlock(inv.ID, domain.ToolError{
			Code:    domain.ErrCodeOperation,
			Message: err.Error(),
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return domain.ToolErrorBlock(inv.ID, domain.ToolError{
			Code:    domain.ErrCodeOperation,
			Message: fmt.Sprintf("failed to serialize result: %v", err),
		})
	}

	return domain.ToolResultBlock(inv.ID, string(data))
}

// invoke maps the closed tool set onto the data query service. Adding a tool
// means adding a catalog entry and an arm here; the default arm is
// unreachable while the two stay in sync.
func (d *Dispatcher) invoke(ctx context.Context, inv domain.ContentBlock) (any, error) {
	in := inv.Input
	switch inv.Name {
	case catalog.ToolGetUserOrders:
		userID, err := intField(in, "user_id")
		if err != nil {
			return nil, err
		}
		return d.data.GetUserOrders(ctx, userID)

	case catalog.ToolAnalyzeProduct:
		name, err := stringField(in, "product_name")
		if err != nil {
			return nil, err
		}
		return d.data.AnalyzeProduct(ctx, name)

	case catalog.ToolGetTopProducts:
		dept, err := optionalString(in, "department")
		if err != nil {
			return nil, err
		}
		limit, err := optionalInt(in, "limit")
		if err != nil {
			return nil, err
		}
		return d.data.GetTopProducts(ctx, dept, limit)

	case catalog.ToolAnalyzeDepartment:
		name, err := stringField(in, "department_name")
		if err != nil {
			return nil, err
		}
		return d.data.AnalyzeDepartment(ctx, name)

	case catalog.ToolFindProductPairs:
		name, err := stringField(in, "product_name")
		if err != nil {
			return nil, err
		}
		limit, err := optionalInt(in, "limit")
		if err != nil {
			return nil, err
		}
		return d.data.FindProductPairs(ctx, name, limit)

	case catalog.ToolGetReorderStats:
		sortBy, err := stringField(in, "sort_by")
		if err != nil {
			return nil, err
		}
		limit, err := optionalInt(in, "limit")
		if err != nil {
			return nil, err
		}
		return d.data.GetReorderStats(ctx, sortBy, limit)

	case catalog.ToolCreateVisualization:
		chartType, err := stringField(in, "chart_type")
		if err != nil {
			return nil, err
		}
		source, err := stringField(in, "data_source")
		if err != nil {
			return nil, err
		}
		title, err := stringField(in, "title")
		if err != nil {
			return nil, err
		}
		limit, err := optionalInt(in, "limit")
		if err != nil {
			return nil, err
		}
		dept, err := optionalString(in, "department_filter")
		if err != nil {
			return nil, err
		}
		return d.data.CreateVisualization(ctx, query.VisualizationRequest{
			ChartType:        chartType,
			DataSource:       source,
			Title:            title,
			Limit:            limit,
			DepartmentFilter: dept,
		})

	default:
		return nil, fmt.Errorf("no executor for tool %s", inv.Name)
	}
}

// missingFields returns the required fields absent from the input.
func missingFields(def domain.ToolDefinition, input map[string]any) []string {
	var missing []string
	for _, field := range def.InputSchema.Required {
		if _, ok := input[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}
