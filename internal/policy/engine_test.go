package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	decision, _, err := engine.Evaluate(ctx, map[string]any{
		"tool_name": "get_top_products",
		"args":      map[string]any{"limit": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "allow", decision)
}

func TestBlockingPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package tool_policy

default decision := "allow"

decision := "block" if {
	input.tool_name == "get_user_orders"
	input.args.user_id < 0
}
`)
	require.NoError(t, err)

	decision, _, err := engine.Evaluate(ctx, map[string]any{
		"tool_name": "get_user_orders",
		"args":      map[string]any{"user_id": -1},
	})
	require.NoError(t, err)
	assert.Equal(t, "block", decision)

	decision, _, err = engine.Evaluate(ctx, map[string]any{
		"tool_name": "get_user_orders",
		"args":      map[string]any{"user_id": 7},
	})
	require.NoError(t, err)
	assert.Equal(t, "allow", decision)
}

func TestObjectDecisionWithReason(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package tool_policy

default decision := {"decision": "allow", "reason": ""}

decision := {"decision": "block", "reason": "charts disabled"} if {
	input.tool_name == "create_visualization"
}
`)
	require.NoError(t, err)

	decision, reason, err := engine.Evaluate(ctx, map[string]any{"tool_name": "create_visualization"})
	require.NoError(t, err)
	assert.Equal(t, "block", decision)
	assert.Equal(t, "charts disabled", reason)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), `this is not rego`)
	require.Error(t, err)
}
