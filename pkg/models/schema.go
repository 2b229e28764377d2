package models

import "strings"

// Column is a single column definition in a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Index is a single index definition in a table.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// TableInfo holds the schema details of one table.
type TableInfo struct {
	Columns  []Column `json:"columns"`
	Indexes  []Index  `json:"indexes"`
	RowCount int64    `json:"row_count"`
	SizeMB   float64  `json:"size_mb"`
}

// SchemaCatalog maps table names to their definitions. Lookups are
// case-insensitive via Lookup; the map keys preserve original casing.
type SchemaCatalog map[string]TableInfo

// Lookup finds a table by name, ignoring case.
// Returns the catalog's canonical name alongside the table info.
func (c SchemaCatalog) Lookup(name string) (string, TableInfo, bool) {
	if info, ok := c[name]; ok {
		return name, info, true
	}
	lower := strings.ToLower(name)
	for t, info := range c {
		if strings.ToLower(t) == lower {
			return t, info, true
		}
	}
	return "", TableInfo{}, false
}

// QueryContext is the input describing one slow query to analyze.
type QueryContext struct {
	// QueryText is the SQL statement under analysis.
	QueryText string
	// Plan is the decoded EXPLAIN output, either a flat []any of row
	// mappings or a mapping keyed by "query_block". Nil when unavailable.
	Plan any
	// Metrics holds numeric performance counters (count_star,
	// avg_timer_wait_ms, sum_rows_examined, sum_rows_sent, ...).
	Metrics map[string]float64
}
