package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunms/sqlscope/pkg/models"
)

const usersSchema = "Table: users\nColumns: id (int), email (varchar), created_at (datetime)\nIndexes: PRIMARY (id)"

func cleanResponse() map[string]any {
	return map[string]any{
		"score":           float64(72),
		"bottlenecks":     []any{"Full table scan on users"},
		"recommendations": []any{"Add an index on email"},
	}
}

func TestValidateCleanResponse(t *testing.T) {
	v := NewValidator()

	result := v.Validate(cleanResponse(), "SELECT * FROM users WHERE email = 'x'", usersSchema)

	assert.True(t, result.Validated)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, 72, result.Score)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Guardrails)
}

func TestValidateMissingFields(t *testing.T) {
	v := NewValidator()

	result := v.Validate(map[string]any{"score": float64(80)}, "SELECT * FROM users", usersSchema)

	assert.Contains(t, result.Guardrails, GuardStructure)
	assert.Less(t, result.Confidence, 0.5+1e-9)
	assert.NotEmpty(t, result.Warnings)
	// Result is still usable: lists coerced to empty, score kept.
	assert.Equal(t, 80, result.Score)
	assert.NotNil(t, result.Bottlenecks)
	assert.NotNil(t, result.Recommendations)
}

func TestValidateScore(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		raw       any
		wantScore int
		sanitized bool
	}{
		{"valid", float64(85), 85, false},
		{"above range clamps", float64(150), 100, true},
		{"below range clamps", float64(-5), 0, true},
		{"numeric string", "60", 60, false},
		{"garbage string defaults", "excellent", defaultScore, true},
		{"nil defaults", nil, defaultScore, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := cleanResponse()
			raw["score"] = tt.raw

			result := v.Validate(raw, "SELECT * FROM users", usersSchema)

			assert.Equal(t, tt.wantScore, result.Score)
			if tt.sanitized {
				assert.Contains(t, result.Guardrails, GuardScore)
				assert.InDelta(t, 0.8, result.Confidence, 1e-9)
			} else {
				assert.NotContains(t, result.Guardrails, GuardScore)
			}
		})
	}
}

func TestValidateListCoercion(t *testing.T) {
	v := NewValidator()

	t.Run("bare string becomes single element", func(t *testing.T) {
		raw := cleanResponse()
		raw["bottlenecks"] = "full table scan"

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.Equal(t, []string{"full table scan"}, result.Bottlenecks)
		assert.Contains(t, result.Guardrails, GuardBottlenecks)
	})

	t.Run("oversized list truncated", func(t *testing.T) {
		items := make([]any, 15)
		for i := range items {
			items[i] = "recommendation"
		}
		raw := cleanResponse()
		raw["recommendations"] = items

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.Len(t, result.Recommendations, maxListItems)
		assert.Contains(t, result.Guardrails, GuardRecommendations)
	})

	t.Run("empty entries dropped", func(t *testing.T) {
		raw := cleanResponse()
		raw["bottlenecks"] = []any{"real issue", "  ", ""}

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.Equal(t, []string{"real issue"}, result.Bottlenecks)
	})
}

func TestValidateIndexes(t *testing.T) {
	v := NewValidator()

	t.Run("grounded index verified", func(t *testing.T) {
		raw := cleanResponse()
		raw["indexes"] = []any{
			map[string]any{"table": "users", "columns": []any{"email"}, "type": "BTREE"},
		}

		result := v.Validate(raw, "SELECT * FROM users WHERE email = 'x'", usersSchema)

		require.Len(t, result.Indexes, 1)
		assert.True(t, result.Indexes[0].Verified)
		assert.NotContains(t, result.Guardrails, GuardIndexes)
		assert.Equal(t, 1.0, result.Confidence)
	})

	t.Run("hallucinated table flagged", func(t *testing.T) {
		raw := cleanResponse()
		raw["indexes"] = []any{
			map[string]any{"table": "ghost_table", "columns": []any{"id"}},
		}

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		require.Len(t, result.Indexes, 1)
		assert.False(t, result.Indexes[0].Verified)
		assert.Contains(t, result.Guardrails, GuardIndexes)
		assert.InDelta(t, 0.7, result.Confidence, 1e-9)
	})

	t.Run("hallucinated column flagged", func(t *testing.T) {
		raw := cleanResponse()
		raw["indexes"] = []any{
			map[string]any{"table": "users", "columns": []any{"phone_number"}},
		}

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		require.Len(t, result.Indexes, 1)
		assert.False(t, result.Indexes[0].Verified)
		assert.Contains(t, result.Indexes[0].Warning, "phone_number")
	})

	t.Run("query table without schema entry accepted", func(t *testing.T) {
		raw := cleanResponse()
		raw["indexes"] = []any{
			map[string]any{"table": "orders", "columns": []any{"user_id"}},
		}

		result := v.Validate(raw, "SELECT * FROM orders", usersSchema)

		require.Len(t, result.Indexes, 1)
		assert.True(t, result.Indexes[0].Verified)
	})

	t.Run("missing columns rejected", func(t *testing.T) {
		raw := cleanResponse()
		raw["indexes"] = []any{map[string]any{"table": "users"}}

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.Empty(t, result.Indexes)
		assert.Contains(t, result.Guardrails, GuardIndexes)
	})
}

func TestValidateRewrite(t *testing.T) {
	v := NewValidator()

	t.Run("safe rewrite kept", func(t *testing.T) {
		raw := cleanResponse()
		raw["rewrite"] = "SELECT id, email FROM users WHERE email = 'x'"

		result := v.Validate(raw, "SELECT * FROM users WHERE email = 'x'", usersSchema)

		assert.NotEmpty(t, result.Rewrite)
		assert.Equal(t, 1.0, result.Confidence)
	})

	t.Run("non select rejected", func(t *testing.T) {
		raw := cleanResponse()
		raw["rewrite"] = "DROP TABLE users"

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.Empty(t, result.Rewrite)
		assert.Contains(t, result.Guardrails, GuardRewrite)
		assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	})

	t.Run("embedded dangerous keyword rejected", func(t *testing.T) {
		raw := cleanResponse()
		raw["rewrite"] = "SELECT 1; DELETE FROM users"

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.Empty(t, result.Rewrite)
		assert.Contains(t, result.Guardrails, GuardRewrite)
	})

	t.Run("different tables warned but kept", func(t *testing.T) {
		raw := cleanResponse()
		raw["rewrite"] = "SELECT * FROM orders"

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.NotEmpty(t, result.Rewrite)
		assert.Contains(t, result.Guardrails, GuardEquivalence)
		assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	})

	t.Run("unparsable select warned but kept", func(t *testing.T) {
		raw := cleanResponse()
		raw["rewrite"] = "SELECT * FORM users WHRE id = 1"

		result := v.Validate(raw, "SELECT * FROM users", usersSchema)

		assert.NotEmpty(t, result.Rewrite)
		assert.Contains(t, result.Guardrails, GuardRewrite)
	})
}

func TestValidateConfidenceMonotonic(t *testing.T) {
	v := NewValidator()
	query := "SELECT * FROM users"

	clean := v.Validate(cleanResponse(), query, usersSchema)

	degraded := cleanResponse()
	degraded["score"] = float64(500)
	worse := v.Validate(degraded, query, usersSchema)

	assert.Less(t, worse.Confidence, clean.Confidence)
	assert.GreaterOrEqual(t, worse.Confidence, 0.0)
}

func TestValidatePanicHardFail(t *testing.T) {
	v := NewValidator()

	result := v.guarded(func() models.ValidatedAnalysis {
		panic("boom")
	})

	assert.False(t, result.Validated)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Contains(t, result.Guardrails, GuardErrorFallback)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "boom")
	assert.NotNil(t, result.Bottlenecks)
	assert.NotNil(t, result.Recommendations)
}

func TestValidateNoPanicPassesThrough(t *testing.T) {
	v := NewValidator()

	result := v.Validate(cleanResponse(), "SELECT * FROM users", usersSchema)

	assert.True(t, result.Validated)
	assert.NotContains(t, result.Guardrails, GuardErrorFallback)
}

func TestParseSchemaContext(t *testing.T) {
	tables, columns := parseSchemaContext(usersSchema)

	assert.Contains(t, tables, "users")
	require.Contains(t, columns, "users")
	assert.Contains(t, columns["users"], "email")
	assert.Contains(t, columns["users"], "created_at")
	assert.NotContains(t, columns["users"], "email (varchar)")

	t.Run("empty context", func(t *testing.T) {
		tables, columns := parseSchemaContext("")
		assert.Empty(t, tables)
		assert.Empty(t, columns)
	})
}
