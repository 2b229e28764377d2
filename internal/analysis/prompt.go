package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/arjunms/sqlscope/pkg/models"
)

// BuildBaseContext assembles the shared prompt prefix: ground rules, the
// query, the execution plan, runtime metrics, and the pruned schema context.
// Profile-specific output instructions are appended by ModelRouter.BuildPrompt.
func BuildBaseContext(q models.QueryContext, schemaContext string) string {
	var b strings.Builder

	b.WriteString(`You are a MySQL performance expert. Analyze the following query and suggest optimizations.

## Ground Rules:
- ONLY reference tables and columns that appear in the schema below or in the query itself.
- If you are not sure a column exists, do NOT suggest an index on it.
- Never suggest statements that modify data.
- Base every conclusion on the evidence provided, not on assumptions about the schema.

## Query:
`)
	fmt.Fprintf(&b, "```sql\n%s\n```\n", strings.TrimSpace(q.QueryText))

	if q.Plan != nil {
		if planJSON, err := json.MarshalIndent(q.Plan, "", "  "); err == nil {
			fmt.Fprintf(&b, "\n## Execution Plan (EXPLAIN):\n```json\n%s\n```\n", planJSON)
		}
	}

	if len(q.Metrics) > 0 {
		b.WriteString("\n## Runtime Metrics:\n")
		names := make([]string, 0, len(q.Metrics))
		for name := range q.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %g\n", name, q.Metrics[name])
		}
	}

	if schemaContext != "" {
		fmt.Fprintf(&b, "\n## Relevant Schema:\n%s\n", schemaContext)
	} else {
		b.WriteString("\n## Relevant Schema:\nNo schema information provided. Do not suggest indexes on specific columns; restrict recommendations to query structure.\n")
	}

	return b.String()
}
