package condnode

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/objectdb"
)

// MatchOp enumerates the string pattern operators (§4.1): Contains,
// BeginsWith, EndsWith, Like. Each has a case-insensitive twin selected
// via CaseInsensitive rather than a separate op constant, mirroring the
// StringEqual/StringEqualIns split.
type MatchOp uint8

const (
	MatchContains MatchOp = iota
	MatchBeginsWith
	MatchEndsWith
	MatchLike
)

func (op MatchOp) String() string {
	switch op {
	case MatchContains:
		return "contains"
	case MatchBeginsWith:
		return "beginswith"
	case MatchEndsWith:
		return "endswith"
	case MatchLike:
		return "like"
	default:
		return "?"
	}
}

// StringMatchNode evaluates Contains/BeginsWith/EndsWith/Like over a
// string leaf, with an optional ASCII/unicode case-insensitive fold
// (§4.1). Like supports `?` (single char) and `*` (any run) wildcards
// only, no character classes.
type StringMatchNode struct {
	Col             objectdb.ColKey
	Op              MatchOp
	Pattern         string
	CaseInsensitive bool
	UnindexedDT     float64

	needle string // lower-cased Pattern when CaseInsensitive
	leaf   objectdb.Leaf
	stats  Stats
}

func (n *StringMatchNode) Init(willQueryRanges bool) error {
	n.stats.DT = n.UnindexedDT
	if n.CaseInsensitive {
		n.needle = strings.ToLower(n.Pattern)
	} else {
		n.needle = n.Pattern
	}
	return nil
}

func (n *StringMatchNode) TableChanged(table objectdb.TableKey) error { return nil }

func (n *StringMatchNode) ClusterChanged(cluster objectdb.Cluster) error {
	l, err := cluster.Leaf(n.Col)
	if err != nil {
		return err
	}
	n.leaf = l
	return nil
}

func (n *StringMatchNode) FindFirstLocal(start, end int) (int, error) {
	if n.leaf == nil {
		return objectdb.NotFound, nil
	}
	size := n.leaf.Size()
	if end > size {
		end = size
	}
	for row := start; row < end; row++ {
		n.stats.recordProbe()
		v, err := n.leaf.Get(row)
		if err != nil {
			return 0, err
		}
		if v.Null {
			continue
		}
		s := v.Str()
		if n.CaseInsensitive {
			s = strings.ToLower(s)
		}
		if n.matches(s) {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (n *StringMatchNode) matches(s string) bool {
	switch n.Op {
	case MatchContains:
		return strings.Contains(s, n.needle)
	case MatchBeginsWith:
		return strings.HasPrefix(s, n.needle)
	case MatchEndsWith:
		return strings.HasSuffix(s, n.needle)
	case MatchLike:
		return likeMatch(s, n.needle)
	default:
		return false
	}
}

// likeMatch implements `?`/`*` glob matching with no character classes,
// via the classic two-pointer wildcard algorithm.
func likeMatch(s, pattern string) bool {
	sr := []rune(s)
	pr := []rune(pattern)
	si, pi := 0, 0
	star, match := -1, 0
	for si < len(sr) {
		switch {
		case pi < len(pr) && (pr[pi] == '?' || pr[pi] == sr[si]):
			si++
			pi++
		case pi < len(pr) && pr[pi] == '*':
			star = pi
			match = si
			pi++
		case star != -1:
			pi = star + 1
			match++
			si = match
		default:
			return false
		}
	}
	for pi < len(pr) && pr[pi] == '*' {
		pi++
	}
	return pi == len(pr)
}

func (n *StringMatchNode) Describe(state *DescribeState) string {
	suffix := ""
	if n.CaseInsensitive {
		suffix = "[c]"
	}
	return fmt.Sprintf("%s %s%s %s", state.name(n.Col), n.Op, suffix, objectdb.FormatValue(objectdb.StringValue(n.Pattern)))
}

func (n *StringMatchNode) Clone() Node {
	clone := *n
	clone.stats = Stats{}
	return &clone
}

func (n *StringMatchNode) CurrentStats() Stats { return n.stats }

var _ Node = (*StringMatchNode)(nil)
