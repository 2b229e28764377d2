package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Profile is the detected model architecture.
type Profile string

const (
	// ProfileStandard covers instruction-tuned models (llama, qwen, sqlcoder)
	// that rush to conclusions and need forced chain-of-thought.
	ProfileStandard Profile = "standard"
	// ProfileReasoning covers models (deepseek-r1, o1, qwq) that deliberate
	// in prose before emitting a structured answer.
	ProfileReasoning Profile = "reasoning"
	// ProfileUnknown is prompted like Standard but tagged for observability.
	ProfileUnknown Profile = "unknown"
)

// classifierRule maps a model-id substring to a profile. Rules are evaluated
// in order; first match wins.
type classifierRule struct {
	pattern string
	profile Profile
}

// Reasoning patterns come first: "deepseek-r1" must match before any
// standard pattern gets a chance.
var classifierRules = []classifierRule{
	{"deepseek-r1", ProfileReasoning},
	{"deepseek-reasoner", ProfileReasoning},
	{"reasoner", ProfileReasoning},
	{"r1", ProfileReasoning},
	{"o1", ProfileReasoning},
	{"qwq", ProfileReasoning},

	{"llama", ProfileStandard},
	{"qwen", ProfileStandard},
	{"sqlcoder", ProfileStandard},
	{"codestral", ProfileStandard},
	{"mistral", ProfileStandard},
	{"phi", ProfileStandard},
	{"gemma", ProfileStandard},
}

var reJSONMarker = regexp.MustCompile(`(?is)<JSON>(.*?)</JSON>`)

const extractExcerptLen = 500

// ExtractionError reports that no JSON payload could be located in a raw
// model response. Excerpt holds the beginning of the offending text.
type ExtractionError struct {
	Reason  string
	Excerpt string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting response: %s", e.Reason)
}

// ModelRouter classifies models into architecture profiles and adapts the
// prompting and extraction strategy accordingly.
type ModelRouter struct {
	rules []classifierRule
}

// NewModelRouter creates a router with the default classification rules.
func NewModelRouter() *ModelRouter {
	return &ModelRouter{rules: classifierRules}
}

// Classify detects the architecture profile from a model identifier, e.g.
// "deepseek-r1:8b" or "llama3.2:latest". Case-insensitive substring match,
// first rule wins; unmatched models are Unknown.
func (r *ModelRouter) Classify(modelID string) Profile {
	lower := strings.ToLower(modelID)
	for _, rule := range r.rules {
		if strings.Contains(lower, rule.pattern) {
			slog.Debug("model classified", "model", modelID, "profile", rule.profile)
			return rule.profile
		}
	}
	slog.Warn("unknown model architecture, prompting as standard", "model", modelID)
	return ProfileUnknown
}

// BuildPrompt appends profile-specific output instructions to the base
// context. The second return value reports whether the raw response will
// need secondary JSON extraction (true for reasoning models, which emit
// prose before the payload) rather than a direct parse.
func (r *ModelRouter) BuildPrompt(profile Profile, baseContext string) (string, bool) {
	if profile == ProfileReasoning {
		return baseContext + reasoningInstructions, true
	}
	return baseContext + standardInstructions, false
}

// Extract locates the structured payload in a raw model response.
//
// Reasoning profiles: (a) <JSON>...</JSON> marker pair, backfilling a
// "reasoning" field from the preceding prose; (b) last balanced JSON object
// in the text; (c) the whole text as JSON. Standard profiles: direct parse,
// then the same brace scan. Returns an *ExtractionError when nothing parses;
// it never panics.
func (r *ModelRouter) Extract(raw string, profile Profile) (map[string]any, error) {
	if profile == ProfileReasoning {
		return r.extractReasoning(raw)
	}
	return r.extractDirect(raw)
}

func (r *ModelRouter) extractDirect(raw string) (map[string]any, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err == nil {
		return parsed, nil
	}

	if parsed, _, ok := lastBalancedObject(raw); ok {
		return parsed, nil
	}

	return nil, &ExtractionError{
		Reason:  "response is not valid JSON and contains no JSON object",
		Excerpt: truncateString(raw, extractExcerptLen),
	}
}

func (r *ModelRouter) extractReasoning(raw string) (map[string]any, error) {
	// Marker pair first: the prompt asked for <JSON> tags.
	if m := reJSONMarker.FindStringSubmatchIndex(raw); m != nil {
		interior := strings.TrimSpace(raw[m[2]:m[3]])
		var parsed map[string]any
		if err := json.Unmarshal([]byte(interior), &parsed); err == nil {
			backfillReasoning(parsed, raw[:m[0]])
			return parsed, nil
		}
		slog.Warn("JSON inside marker tags failed to parse, scanning for objects")
	}

	// Last balanced object: after reasoning, the final object is the answer.
	if parsed, start, ok := lastBalancedObject(raw); ok {
		backfillReasoning(parsed, raw[:start])
		return parsed, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err == nil {
		return parsed, nil
	}

	return nil, &ExtractionError{
		Reason:  "no JSON payload found in reasoning output",
		Excerpt: truncateString(raw, extractExcerptLen),
	}
}

// backfillReasoning stores the prose preceding the payload under "reasoning"
// when the model did not include that field itself.
func backfillReasoning(parsed map[string]any, preceding string) {
	if _, ok := parsed["reasoning"]; ok {
		return
	}
	if text := strings.TrimSpace(preceding); text != "" {
		parsed["reasoning"] = text
	}
}

// lastBalancedObject scans for balanced-brace JSON objects (true brace
// matching, string- and escape-aware) and parses the last complete one.
// Returns the parsed object, its byte offset, and whether one was found.
func lastBalancedObject(raw string) (map[string]any, int, bool) {
	type span struct{ start, end int }
	var spans []span

	// A stray '{' in prose opens a span that never closes and would swallow
	// every object after it; when the scan runs out of input at depth > 0,
	// restart just past that open brace.
	for from := 0; from < len(raw); {
		depth := 0
		start := -1
		inString := false
		escaped := false

		for i := from; i < len(raw); i++ {
			c := raw[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				if depth > 0 {
					inString = true
				}
			case '{':
				if depth == 0 {
					start = i
				}
				depth++
			case '}':
				if depth > 0 {
					depth--
					if depth == 0 {
						spans = append(spans, span{start, i + 1})
					}
				}
			}
		}

		if depth == 0 || start < 0 {
			break
		}
		from = start + 1
	}

	if len(spans) == 0 {
		return nil, 0, false
	}

	last := spans[len(spans)-1]
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw[last.start:last.end]), &parsed); err != nil {
		return nil, 0, false
	}
	return parsed, last.start, true
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

const standardInstructions = `

## IMPORTANT - Chain of Thought Required:
You MUST structure your response as JSON with these fields IN THIS ORDER:

1. "reasoning" (string): Your step-by-step analysis of the query.
   Think through what the query does, where the bottlenecks are, and why
   you recommend each optimization BEFORE drawing conclusions.

2. "score" (integer 0-100): Performance score AFTER reasoning

3. "bottlenecks" (array of strings): Issues identified BY your reasoning

4. "recommendations" (array of strings): Suggestions DERIVED FROM your analysis

5. "indexes" (optional array): Only if you reasoned that indexes are needed.
   Each entry: {"table": ..., "columns": [...], "type": "BTREE"}

6. "rewrite" (optional string): Only if you reasoned a rewrite would help

CRITICAL: Fill the "reasoning" field FIRST. This forces you to think before
suggesting changes. Respond with JSON only, no surrounding text.
`

const reasoningInstructions = `

## Output Format for Reasoning Models:
You are a reasoning model. Take your time to think through the problem.

1. First, OUTPUT YOUR REASONING in natural language: analyze the query
   step by step, consider different optimization strategies, and talk
   through your logic.

2. Then, AFTER your reasoning, output your final analysis as JSON wrapped
   in <JSON> tags, with these fields:
   "score" (integer 0-100), "bottlenecks" (array of strings),
   "recommendations" (array of strings), "indexes" (optional array of
   {"table": ..., "columns": [...], "type": "BTREE"}),
   "rewrite" (optional string).

Example ending:
<JSON>
{"score": 45, "bottlenecks": ["Full table scan on users"], "recommendations": ["Add BTREE index on email"], "indexes": [{"table": "users", "columns": ["email"], "type": "BTREE"}]}
</JSON>

Take your time. Think it through. Output your reasoning, then the JSON.
`
