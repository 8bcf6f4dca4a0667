package expr

import (
	"fmt"
	"strconv"
	"strings"

	"eudoxus/internal/operator"
)

// Parse is the inverse of String: it resolves space-separated prefix tokens
// against the registry, reading any field that parses as a float as an
// anonymous constant. Unknown tokens surface the registry's lookup error;
// sequences that fail the well-formedness walk are rejected with
// ErrUnbalanced.
func Parse(reg *operator.Registry, text string) (Expression, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty expression text", ErrUnbalanced)
	}

	out := make(Expression, 0, len(fields))
	for i, field := range fields {
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			out = append(out, operator.Constant(v))
			continue
		}
		op, err := reg.Lookup(field)
		if err != nil {
			return nil, fmt.Errorf("parse token %d: %w", i, err)
		}
		out = append(out, op)
	}

	if !out.WellFormed() {
		return nil, fmt.Errorf("%w: %q", ErrUnbalanced, text)
	}
	return out, nil
}
