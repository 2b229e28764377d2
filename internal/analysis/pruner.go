package analysis

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/arjunms/sqlscope/pkg/models"
)

// SchemaPruner reduces a full schema catalog to only the tables relevant to
// one query, so small models are not overwhelmed by 50-table schema dumps.
type SchemaPruner struct {
	failOpen bool
}

// NewSchemaPruner creates a pruner. failOpen controls the degradation policy
// when no relevant tables can be extracted: true returns the full schema,
// false returns an empty context.
func NewSchemaPruner(failOpen bool) *SchemaPruner {
	return &SchemaPruner{failOpen: failOpen}
}

// ReductionStats describes how much schema context pruning removed.
type ReductionStats struct {
	TotalTables     int      `json:"total_tables"`
	RelevantTables  int      `json:"relevant_tables"`
	TablesRemoved   int      `json:"tables_removed"`
	ReductionPct    float64  `json:"reduction_percentage"`
	ExtractedTables []string `json:"extracted_tables"`
}

// Prune extracts the tables referenced by the query (and execution plan, if
// given), and serializes only those catalog entries. Never fails: unparsable
// queries degrade to regex extraction, and an empty relevant set degrades
// per the fail-open policy.
func (p *SchemaPruner) Prune(query string, schema models.SchemaCatalog, plan any) string {
	relevant := ExtractTables(query)

	if plan != nil {
		for t := range planTables(plan) {
			relevant[t] = struct{}{}
		}
	}

	if len(relevant) == 0 {
		if p.failOpen {
			slog.Warn("no tables extracted from query, using full schema")
			return formatSchema(allTables(schema), schema)
		}
		slog.Warn("no tables extracted from query, omitting schema context")
		return ""
	}

	out := formatSchema(relevant, schema)
	slog.Info("pruned schema context",
		"total_tables", len(schema),
		"relevant_tables", len(relevant),
	)
	return out
}

// EstimateReduction reports pruning statistics for a query without
// serializing the schema. Useful for logging and API metadata.
func (p *SchemaPruner) EstimateReduction(query string, schema models.SchemaCatalog) ReductionStats {
	relevant := ExtractTables(query)

	names := make([]string, 0, len(relevant))
	for t := range relevant {
		names = append(names, t)
	}
	sort.Strings(names)

	total := len(schema)
	pct := 0.0
	if total > 0 {
		pct = float64(total-len(relevant)) / float64(total) * 100
		pct = math.Round(pct*10) / 10
	}

	return ReductionStats{
		TotalTables:     total,
		RelevantTables:  len(relevant),
		TablesRemoved:   total - len(relevant),
		ReductionPct:    pct,
		ExtractedTables: names,
	}
}

// planTables extracts table names from decoded EXPLAIN output. Supports the
// flat row format (a list of mappings with a "table" key) and the nested
// JSON format (a "query_block" mapping).
func planTables(plan any) map[string]struct{} {
	tables := make(map[string]struct{})

	switch p := plan.(type) {
	case []any:
		for _, row := range p {
			m, ok := row.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["table"].(string); ok {
				addTable(tables, t)
			}
			if qb, ok := m["query_block"].(map[string]any); ok {
				queryBlockTables(qb, tables)
			}
		}
	case map[string]any:
		if qb, ok := p["query_block"].(map[string]any); ok {
			queryBlockTables(qb, tables)
		}
	}

	return tables
}

// queryBlockTables recursively extracts tables from a JSON EXPLAIN query
// block, following nested loops and ordering/grouping operations.
func queryBlockTables(qb map[string]any, tables map[string]struct{}) {
	if t, ok := qb["table"].(map[string]any); ok {
		if name, ok := t["table_name"].(string); ok {
			addTable(tables, name)
		}
	}

	for _, key := range []string{"nested_loop", "ordering_operation", "grouping_operation"} {
		switch child := qb[key].(type) {
		case map[string]any:
			queryBlockTables(child, tables)
		case []any:
			for _, item := range child {
				if m, ok := item.(map[string]any); ok {
					queryBlockTables(m, tables)
				}
			}
		}
	}
}

// formatSchema serializes the relevant tables, sorted alphabetically, as
// labeled blocks:
//
//	Table: users
//	Columns: id (int), email (varchar)
//	Indexes: PRIMARY (id), idx_email (email)
//
// Tables absent from the catalog (views, temp tables) are skipped with a
// warning. Duplicate references collapse via the set input.
func formatSchema(relevant map[string]struct{}, schema models.SchemaCatalog) string {
	names := make([]string, 0, len(relevant))
	for t := range relevant {
		names = append(names, t)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		canonical, info, ok := schema.Lookup(name)
		if !ok {
			slog.Warn("table not found in schema", "table", name)
			continue
		}

		fmt.Fprintf(&b, "Table: %s\n", canonical)

		if len(info.Columns) > 0 {
			cols := make([]string, len(info.Columns))
			for i, c := range info.Columns {
				typ := c.Type
				if typ == "" {
					typ = "unknown"
				}
				cols[i] = fmt.Sprintf("%s (%s)", c.Name, typ)
			}
			fmt.Fprintf(&b, "Columns: %s\n", strings.Join(cols, ", "))
		} else {
			b.WriteString("Columns: (schema not available)\n")
		}

		if len(info.Indexes) > 0 {
			idxs := make([]string, len(info.Indexes))
			for i, idx := range info.Indexes {
				idxs[i] = fmt.Sprintf("%s (%s)", idx.Name, strings.Join(idx.Columns, ", "))
			}
			fmt.Fprintf(&b, "Indexes: %s\n", strings.Join(idxs, ", "))
		}

		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func allTables(schema models.SchemaCatalog) map[string]struct{} {
	out := make(map[string]struct{}, len(schema))
	for t := range schema {
		addTable(out, t)
	}
	return out
}
