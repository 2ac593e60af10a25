package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/inferloop/dqcore/pkg/errors"
	"github.com/inferloop/dqcore/pkg/interfaces"
	"github.com/inferloop/dqcore/pkg/models"
)

// entropyCheck computes Shannon entropy (base 2) over the value-frequency
// distribution of a column and flags it outside [min_entropy, max_entropy].
// A single-valued column has entropy 0; a uniform distribution over k
// categories has entropy log2(k).
type entropyCheck struct {
	column     string
	minEntropy *float64
	maxEntropy *float64
}

func newEntropyCheck(params map[string]interface{}) (interfaces.Check, error) {
	column, err := requiredString(params, "column")
	if err != nil {
		return nil, err
	}
	min, err := optionalFloat(params, "min_entropy")
	if err != nil {
		return nil, err
	}
	max, err := optionalFloat(params, "max_entropy")
	if err != nil {
		return nil, err
	}
	if min == nil && max == nil {
		return nil, errors.NewConfigurationError(errors.CodeMissingParameter,
			"entropy check requires min_entropy or max_entropy")
	}
	return &entropyCheck{column: column, minEntropy: min, maxEntropy: max}, nil
}

func (c *entropyCheck) Kind() models.CheckKind     { return models.KindEntropy }
func (c *entropyCheck) AggregateExpressible() bool { return false }

func (c *entropyCheck) Evaluate(ctx context.Context, env *interfaces.CheckEnv) (*models.CheckOutcome, error) {
	cells, err := env.Target.Column(ctx, c.column)
	if err != nil {
		return nil, err
	}
	freq := make(map[string]int)
	total := 0
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		freq[models.CellString(cell)]++
		total++
	}
	if total == 0 {
		return skipped("no non-null values for entropy", 0.0), nil
	}

	entropy := shannonEntropy(freq, total)
	passed := true
	if c.minEntropy != nil && entropy < *c.minEntropy {
		passed = false
	}
	if c.maxEntropy != nil && entropy > *c.maxEntropy {
		passed = false
	}
	out := outcome(passed, entropy,
		fmt.Sprintf("entropy %.4f bits over %d distinct values, %s",
			entropy, len(freq), boundsText(c.minEntropy, c.maxEntropy)))
	out.Metadata = map[string]interface{}{"distinct_values": len(freq), "total_values": total}
	return out, nil
}

func shannonEntropy(freq map[string]int, total int) float64 {
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}
