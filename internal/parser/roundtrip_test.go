package parser

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomPredicate builds a small, syntactically valid predicate tree by
// picking among a handful of leaf comparisons and combinators, the
// property-style generator spec.md §8's round-trip invariant
// (parse(Q.describe()).describe() == Q.describe()) is checked against.
func randomPredicate(r *rand.Rand, depth int) string {
	if depth <= 0 || r.Intn(3) == 0 {
		leaves := []string{
			`a == "0"`,
			`a == "1"`,
			`a == "2"`,
			`name == "alice"`,
			`age > 26`,
			`age <= 10`,
		}
		return leaves[r.Intn(len(leaves))]
	}
	switch r.Intn(4) {
	case 0:
		return fmt.Sprintf("(%s AND %s)", randomPredicate(r, depth-1), randomPredicate(r, depth-1))
	case 1:
		return fmt.Sprintf("(%s OR %s)", randomPredicate(r, depth-1), randomPredicate(r, depth-1))
	case 2:
		return fmt.Sprintf("NOT %s", randomPredicate(r, depth-1))
	default:
		return fmt.Sprintf("(%s)", randomPredicate(r, depth-1))
	}
}

func randomDescriptorSuffix(r *rand.Rand) string {
	switch r.Intn(4) {
	case 0:
		return ""
	case 1:
		return " SORT(age ASC)"
	case 2:
		return " SORT(name DESC) DISTINCT(age)"
	default:
		return " LIMIT(2)"
	}
}

// TestBuilder_RoundTripProperty generates a batch of small random
// predicate trees (with a fixed seed, so failures reproduce) and checks
// that every one satisfies parse(Q.describe()).describe() ==
// Q.describe() — the fixed-point property spec.md §8 requires of
// GetDescription.
func TestBuilder_RoundTripProperty(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const iterations = 200
	for i := 0; i < iterations; i++ {
		input := randomPredicate(r, 3) + randomDescriptorSuffix(r)

		first := compileDescribe(t, input)
		second := compileDescribe(t, first)
		require.Equal(t, first, second, "round-trip fixed point failed for input %q (compiled: %q)", input, first)
		assert.NotContains(t, first, "{", "no brace syntax should ever appear in a rendered description")
		assert.NotContains(t, first, "$col", "every column should render by name, never by raw key")
	}
}
