package confidence

import (
	"fmt"

	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// reasoningTrail renders a small, fixed set of named templates over the
// dominant factors rather than building ad hoc strings, matching the
// original engine's template table (SPEC_FULL §7).
func reasoningTrail(f Factors, strategy state.Strategy) []string {
	var reasons []string

	if f.SnowflakeQuality >= 0.7 {
		reasons = append(reasons, "strong_snowflake_signal")
	} else if f.SnowflakeQuality > 0 && f.SnowflakeQuality < 0.4 {
		reasons = append(reasons, "weak_snowflake_signal")
	}

	if f.DomainsQuality > 0 && f.DomainsQuality < 0.4 {
		for _, domain := range f.DominantDomains {
			reasons = append(reasons, fmt.Sprintf("domain_confidence_low:%s", domain))
		}
	}

	if f.HasRiskIndicators && f.DominantDomainShare >= 0.5 {
		reasons = append(reasons, fmt.Sprintf("dominant_domain_signal:%v", f.DominantDomains))
	}

	if f.MissingInputs {
		reasons = append(reasons, "insufficient_inputs_for_confidence")
	}

	reasons = append(reasons, fmt.Sprintf("strategy_selected:%s", strategy))

	return reasons
}
