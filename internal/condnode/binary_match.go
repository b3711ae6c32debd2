package condnode

import (
	"bytes"
	"fmt"

	"github.com/lychee-technology/objectdb"
)

// BinaryMatchNode mirrors StringMatchNode's operator set over byte
// strings (§4.1). No case folding applies except for the insensitive
// variants, which fold ASCII letters only (bytes outside A-Z/a-z are
// compared verbatim).
type BinaryMatchNode struct {
	Col             objectdb.ColKey
	Op              MatchOp
	Pattern         []byte
	CaseInsensitive bool
	UnindexedDT     float64

	needle []byte
	leaf   objectdb.Leaf
	stats  Stats
}

func asciiFold(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func (n *BinaryMatchNode) Init(willQueryRanges bool) error {
	n.stats.DT = n.UnindexedDT
	if n.CaseInsensitive {
		n.needle = asciiFold(n.Pattern)
	} else {
		n.needle = n.Pattern
	}
	return nil
}

func (n *BinaryMatchNode) TableChanged(table objectdb.TableKey) error { return nil }

func (n *BinaryMatchNode) ClusterChanged(cluster objectdb.Cluster) error {
	l, err := cluster.Leaf(n.Col)
	if err != nil {
		return err
	}
	n.leaf = l
	return nil
}

func (n *BinaryMatchNode) FindFirstLocal(start, end int) (int, error) {
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
		b := v.Bytes()
		if n.CaseInsensitive {
			b = asciiFold(b)
		}
		if n.matches(b) {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (n *BinaryMatchNode) matches(b []byte) bool {
	switch n.Op {
	case MatchContains:
		return bytes.Contains(b, n.needle)
	case MatchBeginsWith:
		return bytes.HasPrefix(b, n.needle)
	case MatchEndsWith:
		return bytes.HasSuffix(b, n.needle)
	case MatchLike:
		return likeMatchBytes(b, n.needle)
	default:
		return false
	}
}

func likeMatchBytes(s, pattern []byte) bool {
	si, pi := 0, 0
	star, match := -1, 0
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			si++
			pi++
		case pi < len(pattern) && pattern[pi] == '*':
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
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

func (n *BinaryMatchNode) Describe(state *DescribeState) string {
	suffix := ""
	if n.CaseInsensitive {
		suffix = "[c]"
	}
	return fmt.Sprintf("%s %s%s %s", state.name(n.Col), n.Op, suffix, objectdb.FormatValue(objectdb.BinaryValue(n.Pattern)))
}

func (n *BinaryMatchNode) Clone() Node {
	clone := *n
	clone.stats = Stats{}
	return &clone
}

func (n *BinaryMatchNode) CurrentStats() Stats { return n.stats }

var _ Node = (*BinaryMatchNode)(nil)
