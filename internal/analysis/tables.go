// Package analysis implements the anti-hallucination pipeline: schema
// context pruning, architecture-aware prompt routing and response
// extraction, and response validation with confidence scoring.
package analysis

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// Fallback extraction regexes compiled once at package init.
var reTableKeywords = []*regexp.Regexp{
	regexp.MustCompile("(?i)FROM\\s+`?(\\w+)`?"),
	regexp.MustCompile("(?i)JOIN\\s+`?(\\w+)`?"),
	regexp.MustCompile("(?i)INTO\\s+`?(\\w+)`?"),
	regexp.MustCompile("(?i)UPDATE\\s+`?(\\w+)`?"),
}

// ExtractTables returns the set of base table names referenced by a query,
// lower-cased. Aliases resolve to their base tables; subqueries are walked
// recursively. Unparsable queries degrade to keyword-regex extraction.
func ExtractTables(query string) map[string]struct{} {
	tables := make(map[string]struct{})

	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return extractTablesRegex(query)
	}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.AliasedTableExpr:
			// Only real table expressions; derived tables (subqueries)
			// are walked for their own inner tables.
			if tn, ok := n.Expr.(sqlparser.TableName); ok {
				addTable(tables, tn.Name.String())
			}
		case *sqlparser.Insert:
			addTable(tables, n.Table.Name.String())
		}
		return true, nil
	}, stmt)

	if len(tables) == 0 {
		return extractTablesRegex(query)
	}
	return tables
}

// extractTablesRegex is the fallback extraction for unparsable queries.
// Lower recall than the parser but never fails.
func extractTablesRegex(query string) map[string]struct{} {
	tables := make(map[string]struct{})
	for _, re := range reTableKeywords {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			addTable(tables, m[1])
		}
	}
	return tables
}

func addTable(tables map[string]struct{}, name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" {
		tables[name] = struct{}{}
	}
}

// tableOverlap computes the shared/total ratio between two table sets.
// Returns 1.0 when either set is empty (nothing to compare against).
func tableOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1.0
	}
	shared := 0
	union := len(b)
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}
