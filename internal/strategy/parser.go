package strategy

import (
	"errors"
	"strconv"
	"strings"
)

// ParsedResponse is the structured block extracted from the model's text.
type ParsedResponse struct {
	Recommendation AIRecommendation
	Confidence     float64
	Reasoning      string
	PrimaryRisk    string
	Override       bool
}

// ErrUnparseable means the response did not contain the anchored fields. The
// caller degrades to the rule-based path; this error never propagates out of
// the arbitration pipeline.
var ErrUnparseable = errors.New("ai response missing required fields")

// ParseArbitrationResponse extracts the anchored fields. Recommendation and
// confidence are required; the rest default to safe values.
func ParseArbitrationResponse(text string) (*ParsedResponse, error) {
	parsed := &ParsedResponse{Recommendation: "", Confidence: -1}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "RECOMMENDATION:"):
			value := strings.ToUpper(strings.TrimSpace(line[len("RECOMMENDATION:"):]))
			value = strings.ReplaceAll(value, " ", "_")
			switch AIRecommendation(value) {
			case RecommendStrongBuy, RecommendBuy, RecommendNeutral, RecommendSell, RecommendStrongSell:
				parsed.Recommendation = AIRecommendation(value)
			}

		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.TrimSpace(line[len("CONFIDENCE:"):])
			value = strings.TrimSuffix(value, "%")
			if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 100 {
				parsed.Confidence = f
			}

		case strings.HasPrefix(upper, "REASONING:"):
			parsed.Reasoning = strings.TrimSpace(line[len("REASONING:"):])

		case strings.HasPrefix(upper, "PRIMARY_RISK:"):
			parsed.PrimaryRisk = strings.TrimSpace(line[len("PRIMARY_RISK:"):])

		case strings.HasPrefix(upper, "OVERRIDE:"):
			value := strings.ToLower(strings.TrimSpace(line[len("OVERRIDE:"):]))
			parsed.Override = value == "yes" || value == "true"
		}
	}

	if parsed.Recommendation == "" || parsed.Confidence < 0 {
		return nil, ErrUnparseable
	}
	return parsed, nil
}

// Direction maps a recommendation to a directional vote.
func (r AIRecommendation) Direction() int {
	switch r {
	case RecommendStrongBuy, RecommendBuy:
		return 1
	case RecommendStrongSell, RecommendSell:
		return -1
	default:
		return 0
	}
}
