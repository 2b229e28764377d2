package analysis

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/arjunms/sqlscope/pkg/models"
)

// Guardrail identifiers recorded when a validation check fires.
const (
	GuardStructure       = "structure_validation"
	GuardScore           = "score_sanitization"
	GuardBottlenecks     = "bottlenecks_sanitization"
	GuardRecommendations = "recommendations_sanitization"
	GuardIndexes         = "index_validation"
	GuardRewrite         = "sql_validation"
	GuardEquivalence     = "equivalence_check"
	GuardErrorFallback   = "error_fallback"
)

const (
	maxListItems   = 10
	defaultScore   = 50
	minTableShared = 0.5
)

var requiredFields = []string{"score", "bottlenecks", "recommendations"}

// dangerousKeywords are never allowed anywhere in a suggested rewrite.
// Rewrites exist to speed up reads, not to mutate data.
var dangerousKeywords = []string{"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE", "ALTER"}

var (
	reSchemaTable   = regexp.MustCompile(`(?i)table[:\s]+([a-zA-Z0-9_]+)`)
	reSchemaColumns = regexp.MustCompile(`(?i)columns[:\s]+(.+)`)
)

// Validator sanitizes and cross-checks an extracted LLM response against the
// pruned schema. Every check runs on every call; each failure multiplies the
// confidence score down and records a warning plus a guardrail id.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate sanitizes rawAnalysis against the query and the pruned schema
// context. It always returns a well-formed result: recoverable problems
// downgrade confidence, and an unexpected internal panic yields a hard
// failure (validated=false, confidence 0) rather than propagating.
func (v *Validator) Validate(rawAnalysis map[string]any, queryText, schemaContext string) models.ValidatedAnalysis {
	return v.guarded(func() models.ValidatedAnalysis {
		return v.validate(rawAnalysis, queryText, schemaContext)
	})
}

// guarded converts an unexpected panic in fn into a hard validation failure.
func (v *Validator) guarded(fn func() models.ValidatedAnalysis) (result models.ValidatedAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during response validation", "error", r)
			result = models.ValidatedAnalysis{
				Validated:       false,
				Confidence:      0.0,
				Warnings:        []string{fmt.Sprintf("validation error: %v", r)},
				Guardrails:      []string{GuardErrorFallback},
				Bottlenecks:     []string{},
				Recommendations: []string{},
			}
		}
	}()
	return fn()
}

func (v *Validator) validate(rawAnalysis map[string]any, queryText, schemaContext string) models.ValidatedAnalysis {
	result := models.ValidatedAnalysis{
		Validated:  true,
		Confidence: 1.0,
		Warnings:   []string{},
		Guardrails: []string{},
	}
	if rawAnalysis == nil {
		rawAnalysis = map[string]any{}
	}

	if reasoning, ok := rawAnalysis["reasoning"].(string); ok {
		result.Reasoning = reasoning
	}

	// 1. Structure: required fields present.
	for _, field := range requiredFields {
		if _, ok := rawAnalysis[field]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("missing required field: %s", field))
		}
	}
	if len(result.Warnings) > 0 {
		v.fail(&result, 0.5, GuardStructure)
	}

	// 2. Score: coercible to int, clamped to [0,100].
	score, scoreValid := sanitizeScore(rawAnalysis["score"])
	result.Score = score
	if !scoreValid {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("score was invalid or out of range, sanitized to %d", score))
		v.fail(&result, 0.8, GuardScore)
	}

	// 3+4. List fields: non-empty trimmed strings, capped.
	var ok bool
	result.Bottlenecks, ok = sanitizeList(rawAnalysis["bottlenecks"])
	if !ok {
		result.Warnings = append(result.Warnings, "bottlenecks field was coerced or truncated")
		v.fail(&result, 0.9, GuardBottlenecks)
	}
	result.Recommendations, ok = sanitizeList(rawAnalysis["recommendations"])
	if !ok {
		result.Warnings = append(result.Warnings, "recommendations field was coerced or truncated")
		v.fail(&result, 0.9, GuardRecommendations)
	}

	schemaTables, schemaColumns := parseSchemaContext(schemaContext)
	queryTables := ExtractTables(queryText)

	// 5. Indexes: every suggestion must be grounded in the pruned schema or
	// the query itself; anything else is a likely hallucination.
	if rawIndexes, present := rawAnalysis["indexes"]; present {
		indexes, warnings, indexesValid := v.validateIndexes(rawIndexes, schemaTables, schemaColumns, queryTables)
		result.Indexes = indexes
		result.Warnings = append(result.Warnings, warnings...)
		if !indexesValid {
			v.fail(&result, 0.7, GuardIndexes)
		}
	}

	// 6. Rewrite: safety is a hard gate, structural similarity is advisory.
	if raw, present := rawAnalysis["rewrite"]; present {
		rewrite, warnings, rewriteValid := v.validateRewrite(raw)
		result.Rewrite = rewrite
		result.Warnings = append(result.Warnings, warnings...)
		if !rewriteValid {
			v.fail(&result, 0.6, GuardRewrite)
		}

		if result.Rewrite != "" && strings.TrimSpace(queryText) != "" {
			overlap := tableOverlap(queryTables, ExtractTables(result.Rewrite))
			if overlap < minTableShared {
				result.Warnings = append(result.Warnings,
					"suggested rewrite references substantially different tables than the original; verify it produces the same results")
				v.fail(&result, 0.6, GuardEquivalence)
			}
		}
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence < 1.0 {
		slog.Warn("response validation downgraded confidence",
			"confidence", result.Confidence,
			"warnings", len(result.Warnings),
		)
	}

	return result
}

// fail applies one guardrail: multiply confidence and record the id.
func (v *Validator) fail(result *models.ValidatedAnalysis, multiplier float64, guardrail string) {
	result.Confidence *= multiplier
	result.Guardrails = append(result.Guardrails, guardrail)
}

// sanitizeScore coerces a score to an integer in [0,100]. Missing or
// non-numeric values default to 50.
func sanitizeScore(raw any) (int, bool) {
	var score int
	switch s := raw.(type) {
	case float64:
		score = int(s)
	case int:
		score = s
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return defaultScore, false
		}
		score = n
	default:
		return defaultScore, false
	}

	if score < 0 {
		return 0, false
	}
	if score > 100 {
		return 100, false
	}
	return score, true
}

// sanitizeList coerces a field to a list of non-empty trimmed strings,
// truncated to maxListItems. A bare string becomes a single-element list.
func sanitizeList(raw any) ([]string, bool) {
	switch val := raw.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s == "" || item == nil {
				continue
			}
			out = append(out, s)
		}
		if len(out) > maxListItems {
			return out[:maxListItems], false
		}
		return out, len(out) == len(val)
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		}
		if len(out) > maxListItems {
			return out[:maxListItems], false
		}
		return out, len(out) == len(val)
	case string:
		if t := strings.TrimSpace(val); t != "" {
			return []string{t}, false
		}
		return []string{}, false
	default:
		return []string{}, false
	}
}

// validateIndexes checks each suggested index for required fields and
// grounding: the table must exist in the pruned schema or the query, and the
// columns must exist on the resolved table. Ungrounded suggestions are kept
// but marked verified=false with a hallucination warning.
func (v *Validator) validateIndexes(raw any, schemaTables map[string]struct{}, schemaColumns map[string]map[string]struct{}, queryTables map[string]struct{}) ([]models.IndexSuggestion, []string, bool) {
	var warnings []string
	valid := true

	items, ok := raw.([]any)
	if !ok {
		return nil, []string{"indexes field is not a list, ignoring"}, false
	}

	out := make([]models.IndexSuggestion, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("invalid index format: %v", item))
			valid = false
			continue
		}

		table, _ := entry["table"].(string)
		table = strings.TrimSpace(table)
		columns := coerceColumns(entry["columns"])
		if table == "" || columns == nil {
			warnings = append(warnings, fmt.Sprintf("index suggestion missing table or columns: %v", item))
			valid = false
			continue
		}

		idx := models.IndexSuggestion{
			Table:    table,
			Columns:  columns,
			Verified: true,
		}
		if typ, ok := entry["type"].(string); ok {
			idx.Type = typ
		}

		tableLower := strings.ToLower(table)
		_, inSchema := schemaTables[tableLower]
		_, inQuery := queryTables[tableLower]
		if !inSchema && !inQuery {
			warnings = append(warnings, fmt.Sprintf(
				"index suggests table %q which is not in the schema or the query; possible hallucination, verify manually", table))
			valid = false
			idx.Verified = false
			idx.Warning = "table not found in schema"
		}

		if known, ok := schemaColumns[tableLower]; ok && len(known) > 0 {
			var missing []string
			for _, col := range columns {
				if _, ok := known[strings.ToLower(strings.TrimSpace(col))]; !ok {
					missing = append(missing, col)
				}
			}
			if len(missing) > 0 {
				warnings = append(warnings, fmt.Sprintf(
					"index on %s suggests non-existent columns %v; possible hallucination, verify manually", table, missing))
				valid = false
				idx.Verified = false
				idx.Warning = fmt.Sprintf("columns not found: %s", strings.Join(missing, ", "))
			}
		}

		out = append(out, idx)
	}

	return out, warnings, valid
}

// coerceColumns accepts a column list as []any, []string, or a
// comma-separated string. Returns nil when the shape is unusable.
func coerceColumns(raw any) []string {
	switch val := raw.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, c := range val {
			if s := strings.TrimSpace(fmt.Sprintf("%v", c)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// validateRewrite enforces the rewrite safety gate: the suggestion must be a
// single SELECT statement with no data-mutating keyword anywhere. Safety
// violations discard the rewrite outright; an unparsable-but-harmless
// statement is kept with a warning.
func (v *Validator) validateRewrite(raw any) (string, []string, bool) {
	var warnings []string

	rewrite, ok := raw.(string)
	if !ok || strings.TrimSpace(rewrite) == "" {
		return "", []string{"query rewrite is empty or invalid"}, false
	}
	rewrite = strings.TrimSpace(rewrite)

	if !strings.HasPrefix(strings.ToUpper(rewrite), "SELECT") {
		warnings = append(warnings, "suggested rewrite is not a SELECT statement; rejecting for safety")
		return "", warnings, false
	}

	upper := strings.ToUpper(rewrite)
	for _, keyword := range dangerousKeywords {
		if strings.Contains(upper, keyword) {
			warnings = append(warnings, fmt.Sprintf(
				"suggested rewrite contains dangerous keyword %q; rejecting for safety", keyword))
			return "", warnings, false
		}
	}

	valid := true
	if _, err := sqlparser.Parse(rewrite); err != nil {
		warnings = append(warnings, "suggested rewrite could not be parsed; verify syntax manually")
		valid = false
	}

	return rewrite, warnings, valid
}

// parseSchemaContext recovers table and column names from the pruned schema
// string produced by the SchemaPruner (Table:/Columns: labeled blocks).
// All names are returned lower-cased.
func parseSchemaContext(schemaContext string) (map[string]struct{}, map[string]map[string]struct{}) {
	tables := make(map[string]struct{})
	columns := make(map[string]map[string]struct{})
	if schemaContext == "" {
		return tables, columns
	}

	var current string
	for _, line := range strings.Split(schemaContext, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(strings.ToLower(line), "table") {
			if m := reSchemaTable.FindStringSubmatch(line); m != nil {
				current = strings.ToLower(m[1])
				tables[current] = struct{}{}
				columns[current] = make(map[string]struct{})
				continue
			}
		}

		if current != "" && strings.HasPrefix(strings.ToLower(line), "columns") {
			if m := reSchemaColumns.FindStringSubmatch(line); m != nil {
				for _, col := range strings.Split(m[1], ",") {
					// Entries look like "email (varchar)"; keep the bare name.
					name := strings.TrimSpace(col)
					if i := strings.Index(name, " ("); i > 0 {
						name = name[:i]
					}
					if name != "" && !strings.HasPrefix(name, "(") {
						columns[current][strings.ToLower(name)] = struct{}{}
					}
				}
			}
		}
	}

	return tables, columns
}
