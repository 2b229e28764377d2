package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunms/sqlscope/pkg/models"
)

func testSchema() models.SchemaCatalog {
	return models.SchemaCatalog{
		"users": {
			Columns: []models.Column{
				{Name: "id", Type: "int"},
				{Name: "email", Type: "varchar"},
			},
			Indexes: []models.Index{
				{Name: "PRIMARY", Columns: []string{"id"}, Unique: true},
			},
		},
		"orders": {
			Columns: []models.Column{
				{Name: "id", Type: "int"},
				{Name: "user_id", Type: "int"},
				{Name: "total", Type: "decimal"},
			},
		},
		"products": {
			Columns: []models.Column{
				{Name: "id", Type: "int"},
				{Name: "name", Type: "varchar"},
			},
		},
		"audit_log": {
			Columns: []models.Column{
				{Name: "id", Type: "bigint"},
			},
		},
	}
}

func TestExtractTables(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "simple select",
			query: "SELECT * FROM users WHERE email = 'a@b.com'",
			want:  []string{"users"},
		},
		{
			name:  "join with aliases",
			query: "SELECT u.id, o.total FROM users u JOIN orders o ON o.user_id = u.id",
			want:  []string{"users", "orders"},
		},
		{
			name:  "subquery",
			query: "SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)",
			want:  []string{"users", "orders"},
		},
		{
			name:  "insert",
			query: "INSERT INTO audit_log (id) VALUES (1)",
			want:  []string{"audit_log"},
		},
		{
			name:  "mixed case normalizes",
			query: "SELECT * FROM Users",
			want:  []string{"users"},
		},
		{
			name:  "unparsable falls back to regex",
			query: "SELEC * FROM users JOIN orders",
			want:  []string{"users", "orders"},
		},
		{
			name:  "no tables",
			query: "not sql at all",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTables(tt.query)
			assert.Len(t, got, len(tt.want))
			for _, table := range tt.want {
				assert.Contains(t, got, table)
			}
		})
	}
}

func TestExtractTablesIgnoresAliasQualifiers(t *testing.T) {
	// "u" is an alias, not a table; only "users" should survive.
	got := ExtractTables("SELECT u.id FROM users u WHERE u.email = 'x'")
	assert.Equal(t, map[string]struct{}{"users": {}}, got)
}

func TestPruneSubset(t *testing.T) {
	p := NewSchemaPruner(true)
	schema := testSchema()

	out := p.Prune("SELECT * FROM users JOIN orders ON orders.user_id = users.id", schema, nil)

	assert.Contains(t, out, "Table: users")
	assert.Contains(t, out, "Table: orders")
	assert.NotContains(t, out, "products")
	assert.NotContains(t, out, "audit_log")
	assert.Contains(t, out, "email (varchar)")
	assert.Contains(t, out, "PRIMARY (id)")
}

func TestPruneIdempotent(t *testing.T) {
	p := NewSchemaPruner(true)
	schema := testSchema()
	query := "SELECT * FROM users"

	first := p.Prune(query, schema, nil)
	second := p.Prune(query, schema, nil)
	assert.Equal(t, first, second)
}

func TestPruneFailOpen(t *testing.T) {
	schema := testSchema()

	t.Run("fail open returns full schema", func(t *testing.T) {
		p := NewSchemaPruner(true)
		out := p.Prune("no tables here", schema, nil)
		for name := range schema {
			assert.Contains(t, strings.ToLower(out), name)
		}
	})

	t.Run("fail closed returns empty", func(t *testing.T) {
		p := NewSchemaPruner(false)
		out := p.Prune("no tables here", schema, nil)
		assert.Empty(t, out)
	})
}

func TestPruneUnknownTableSkipped(t *testing.T) {
	p := NewSchemaPruner(true)
	out := p.Prune("SELECT * FROM users JOIN ghost_view ON 1=1", testSchema(), nil)

	assert.Contains(t, out, "Table: users")
	assert.NotContains(t, out, "ghost_view")
}

func TestPruneWithPlan(t *testing.T) {
	p := NewSchemaPruner(true)
	schema := testSchema()

	t.Run("flat rows", func(t *testing.T) {
		plan := []any{
			map[string]any{"id": float64(1), "table": "orders"},
		}
		out := p.Prune("SELECT * FROM users", schema, plan)
		assert.Contains(t, out, "Table: users")
		assert.Contains(t, out, "Table: orders")
	})

	t.Run("nested query block", func(t *testing.T) {
		plan := map[string]any{
			"query_block": map[string]any{
				"nested_loop": []any{
					map[string]any{"table": map[string]any{"table_name": "orders"}},
					map[string]any{"table": map[string]any{"table_name": "products"}},
				},
			},
		}
		out := p.Prune("SELECT * FROM users", schema, plan)
		assert.Contains(t, out, "Table: orders")
		assert.Contains(t, out, "Table: products")
	})
}

func TestEstimateReduction(t *testing.T) {
	p := NewSchemaPruner(true)
	stats := p.EstimateReduction("SELECT * FROM users", testSchema())

	require.Equal(t, 4, stats.TotalTables)
	assert.Equal(t, 1, stats.RelevantTables)
	assert.Equal(t, 3, stats.TablesRemoved)
	assert.InDelta(t, 75.0, stats.ReductionPct, 0.01)
	assert.Equal(t, []string{"users"}, stats.ExtractedTables)
}

func TestTableOverlap(t *testing.T) {
	set := func(names ...string) map[string]struct{} {
		out := make(map[string]struct{})
		for _, n := range names {
			out[n] = struct{}{}
		}
		return out
	}

	assert.Equal(t, 1.0, tableOverlap(set("users"), set("users")))
	assert.Equal(t, 1.0, tableOverlap(set(), set("users")))
	assert.Equal(t, 0.0, tableOverlap(set("users"), set("orders")))
	assert.InDelta(t, 1.0/3.0, tableOverlap(set("users", "orders"), set("users", "products")), 0.001)
}
