package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureCSVs = map[string]string{
	"departments.csv": "department_id,department\n1,produce\n2,dairy eggs\n",
	"aisles.csv":      "aisle_id,aisle\n1,fresh fruits\n",
	"products.csv": "product_id,product_name,aisle_id,department_id\n" +
		"1,Banana,1,1\n2,Organic Milk,1,2\n",
	"orders.csv": "order_id,user_id,eval_set,order_number,order_dow,order_hour_of_day,days_since_prior_order\n" +
		"1,7,prior,1,1,10,\n2,7,prior,2,2,14,7\n",
	"order_products__train.csv": "order_id,product_id,add_to_cart_order,reordered\n" +
		"1,1,1,0\n1,2,2,0\n2,1,1,1\n",
}

func writeFixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range fixtureCSVs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestOpenAndMigrate(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	summary, err := store.Summary(context.Background())
	require.NoError(t, err)

	// Schema order, all tables empty before ingestion.
	var tables []string
	for _, tc := range summary {
		assert.Equal(t, 0, tc.Rows)
		tables = append(tables, tc.Table)
	}
	assert.Equal(t, []string{"products", "departments", "aisles", "orders", "order_products"}, tables)
}

func TestLoadDir(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.LoadDir(ctx, writeFixtureDir(t)))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)

	rows := map[string]int{}
	for _, tc := range summary {
		rows[tc.Table] = tc.Rows
	}
	assert.Equal(t, 2, rows["products"])
	assert.Equal(t, 2, rows["departments"])
	assert.Equal(t, 1, rows["aisles"])
	assert.Equal(t, 2, rows["orders"])
	assert.Equal(t, 3, rows["order_products"])

	// Columns the schema does not know (eval_set, days_since_prior_order)
	// are dropped on the way in.
	var hour int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		`SELECT order_hour_of_day FROM orders WHERE order_id = 2`).Scan(&hour))
	assert.Equal(t, 14, hour)
}

func TestLoadDirEmpty(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.LoadDir(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset files found")
}

func TestLoadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		content, ok := fixtureCSVs[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, content)
	}))
	defer server.Close()

	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.LoadURL(ctx, server.URL+"/", server.Client()))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)

	total := 0
	for _, tc := range summary {
		total += tc.Rows
	}
	assert.Equal(t, 10, total)
}

func TestLoadURLAllMissing(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	err = store.LoadURL(context.Background(), server.URL, server.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset files found")
}

func TestCSVValue(t *testing.T) {
	assert.Equal(t, int64(42), csvValue("42"))
	assert.Equal(t, int64(7), csvValue(" 7 "))
	assert.Equal(t, "Banana", csvValue("Banana"))
	assert.Equal(t, sql.NullString{}, csvValue(""))
}
