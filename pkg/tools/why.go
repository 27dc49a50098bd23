package tools

import (
	"context"
	"fmt"
	"strings"
)

// defaultWhyDepth bounds the backward walk over causal links.
const defaultWhyDepth = 5

// WhyArgs asks for the causal chain behind an observed effect.
type WhyArgs struct {
	Effect   string `json:"effect" jsonschema:"the outcome to explain"`
	MaxDepth int    `json:"maxDepth,omitempty" jsonschema:"chain length cap; defaults to 5"`
}

// ChainLink is one step of a causal explanation.
type ChainLink struct {
	Cause      string  `json:"cause"`
	Effect     string  `json:"effect"`
	Mechanism  string  `json:"mechanism,omitempty"`
	Confidence float64 `json:"confidence"`
}

// WhyResult is the assembled causal chain, root cause first.
type WhyResult struct {
	Effect          string      `json:"effect"`
	Chain           []ChainLink `json:"chain"`
	TotalConfidence float64     `json:"totalConfidence"`
	Explanation     string      `json:"explanation"`
}

func (k *Kit) whyTool() *Tool {
	return newTool("why",
		"Explain why something happened by walking stored cause-effect links backwards from the effect.",
		func(ctx context.Context, args WhyArgs) (any, error) {
			return k.Why(ctx, args.Effect, args.MaxDepth)
		})
}

// Why walks backwards from the effect through stored causal links:
// each step matches the current description against link effects,
// follows the highest-confidence unvisited link, and multiplies its
// confidence into the composite. The chain is returned root cause
// first.
func (k *Kit) Why(ctx context.Context, effect string, maxDepth int) (*WhyResult, error) {
	if maxDepth <= 0 {
		maxDepth = defaultWhyDepth
	}
	res := &WhyResult{Effect: effect, TotalConfidence: 1}

	current := effect
	visited := map[string]bool{}
	for depth := 0; depth < maxDepth; depth++ {
		links, err := k.store.LinksByEffect(ctx, current)
		if err != nil {
			return nil, err
		}
		// LinksByEffect is confidence-descending; take the best link not
		// already on the chain.
		var picked *ChainLink
		for _, l := range links {
			if visited[l.ID] || visited[strings.ToLower(l.CauseDescription)] {
				continue
			}
			picked = &ChainLink{
				Cause:      l.CauseDescription,
				Effect:     l.EffectDescription,
				Mechanism:  l.Mechanism,
				Confidence: l.Confidence,
			}
			visited[l.ID] = true
			break
		}
		if picked == nil {
			break
		}
		res.Chain = append(res.Chain, *picked)
		res.TotalConfidence *= picked.Confidence
		visited[strings.ToLower(picked.Effect)] = true
		current = picked.Cause
	}

	if len(res.Chain) == 0 {
		res.TotalConfidence = 0
		res.Explanation = fmt.Sprintf("No recorded causes for %q.", effect)
		return res, nil
	}

	// Reverse into root-cause-first order and narrate forward.
	for i, j := 0, len(res.Chain)-1; i < j; i, j = i+1, j-1 {
		res.Chain[i], res.Chain[j] = res.Chain[j], res.Chain[i]
	}
	var sb strings.Builder
	for i, link := range res.Chain {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s led to %s (confidence %.2f).", link.Cause, link.Effect, link.Confidence)
	}
	res.Explanation = sb.String()
	return res, nil
}
