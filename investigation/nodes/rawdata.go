// Package nodes holds the jq-based extraction logic used by the executor's
// raw_data node. It has no dependency on investigation/executor so it can be
// unit tested against plain maps without constructing a full graph state.
package nodes

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// riskIndicatorQuery walks snowflake/tool payloads of arbitrary shape and
// pulls out anything already tagged as a risk indicator, plus any field
// whose key looks like a flag (ends in _flag or _alert) and is truthy.
const riskIndicatorQuery = `
[.. | objects | (
	(.risk_indicators? // empty | if type == "array" then .[] else . end),
	(to_entries[]? | select(.key | test("_flag$|_alert$")) | select(.value == true) | .key)
)] | unique`

// completenessQuery counts non-null scalar leaves across the combined
// payload; the executor's raw_data node uses this alongside the raw
// source-count heuristic to
// avoid treating a single deeply-nested field as "complete".
const completenessQuery = `[.. | scalars | select(. != null)] | length`

var (
	compiledRiskIndicatorQuery *gojq.Query
	compiledCompletenessQuery  *gojq.Query
)

func init() {
	var err error
	compiledRiskIndicatorQuery, err = gojq.Parse(riskIndicatorQuery)
	if err != nil {
		panic(fmt.Sprintf("nodes: invalid risk indicator query: %v", err))
	}
	compiledCompletenessQuery, err = gojq.Parse(completenessQuery)
	if err != nil {
		panic(fmt.Sprintf("nodes: invalid completeness query: %v", err))
	}
}

// ExtractionResult is what ExtractRawData derives from the raw data payloads
// available at the time the raw_data node runs.
type ExtractionResult struct {
	RiskIndicators []string
	LeafCount      int
}

// ExtractRawData runs both jq queries over the merged snowflake_data/
// tool_results document. A query that yields nothing is not an error: most
// investigations have payloads that simply carry no risk_indicators field.
func ExtractRawData(snowflakeData, toolResults map[string]interface{}) (ExtractionResult, error) {
	doc := map[string]interface{}{
		"snowflake_data": snowflakeData,
		"tool_results":   toolResults,
	}

	indicators, err := runStringSlice(compiledRiskIndicatorQuery, doc)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("nodes: risk indicator extraction: %w", err)
	}

	leaves, err := runInt(compiledCompletenessQuery, doc)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("nodes: completeness extraction: %w", err)
	}

	return ExtractionResult{RiskIndicators: indicators, LeafCount: leaves}, nil
}

func runStringSlice(q *gojq.Query, doc interface{}) ([]string, error) {
	iter := q.Run(doc)
	var out []string
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		items, ok := v.([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func runInt(q *gojq.Query, doc interface{}) (int, error) {
	iter := q.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return 0, nil
	}
	if err, isErr := v.(error); isErr {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		if f, ok := v.(float64); ok {
			return int(f), nil
		}
		return 0, nil
	}
	return n, nil
}
