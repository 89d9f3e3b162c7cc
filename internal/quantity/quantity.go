package quantity

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Conversion expressions are deliberately tiny: one multiplication or
// division between two decimal literals, e.g. "12 * 0.5" for a crate of
// twelve half-liter bottles.
var expressionRe = regexp.MustCompile(`^(\d+(\.\d+)?)\s*(\*|/)\s*(\d+(\.\d+)?)$`)

// Valid reports whether expr is a supported conversion expression.
func Valid(expr string) bool {
	return expressionRe.MatchString(strings.TrimSpace(expr))
}

// Evaluate computes a conversion expression, rounded to two decimals.
func Evaluate(expr string) (float64, error) {
	m := expressionRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return 0, fmt.Errorf("unsupported quantity expression: %q", expr)
	}
	left, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, err
	}
	right, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return 0, err
	}

	var result float64
	switch m[3] {
	case "*":
		result = left * right
	case "/":
		if right == 0 {
			return 0, fmt.Errorf("division by zero in quantity expression: %q", expr)
		}
		result = left / right
	}
	return math.Round(result*100) / 100, nil
}
