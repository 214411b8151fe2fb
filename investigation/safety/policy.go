package safety

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// authorizationPolicy implements §4.3's AI-control authorization ladder as
// Rego data instead of a branch ladder (SPEC_FULL §6): the confidence
// level/resource-pressure thresholds live in the Rego rules rather than in
// Go conditionals. The policy text is a Go constant compiled into the
// binary, so changing it still means a rebuild. The teacher's go.mod carries open-policy-agent/opa as a direct
// requirement with no in-tree usage in this retrieval; this wiring follows
// OPA's own documented rego.New/PrepareForEval/Eval sequence rather than a
// pack precedent.
const authorizationPolicy = `
package hybridinvestigator.authz

default allow = false

allow {
	not input.has_critical
	input.pressure < 0.35
}

allow {
	not input.has_critical
	input.confidence_level == "HIGH"
	input.pressure < 0.6
}

allow {
	not input.has_critical
	input.confidence_level == "MEDIUM"
	input.pressure < 0.8
}

allow {
	not input.has_critical
	input.confidence_level == "UNKNOWN"
	input.pressure < 0.5
}
`

// PolicyAuthorizer evaluates the compiled authorization policy. It is safe
// for concurrent use once built; Prepare compiles the policy once so
// per-call evaluation only walks the AST.
type PolicyAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewPolicyAuthorizer compiles authorizationPolicy into a prepared query.
func NewPolicyAuthorizer(ctx context.Context) (*PolicyAuthorizer, error) {
	query, err := rego.New(
		rego.Query("data.hybridinvestigator.authz.allow"),
		rego.Module("authz.rego", authorizationPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile authorization policy: %w", err)
	}
	return &PolicyAuthorizer{query: query}, nil
}

// Authorize evaluates the policy against the given input. On evaluation
// error, or a result that is not a boolean, it falls back to the pure-Go
// ladder in authorization.go so a
// policy-runtime failure degrades to the conservative built-in default
// rather than failing the whole validate() call.
func (p *PolicyAuthorizer) Authorize(ctx context.Context, level string, pressure float64, hasCritical bool) bool {
	if p == nil {
		return false
	}
	results, err := p.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"confidence_level": level,
		"pressure":         pressure,
		"has_critical":     hasCritical,
	}))
	if err != nil || len(results) == 0 || len(results[0].Expressions) == 0 {
		return authorizeAIControl(state.ConfidenceLevel(level), pressure, hasCritical)
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return authorizeAIControl(state.ConfidenceLevel(level), pressure, hasCritical)
	}
	return allowed
}
