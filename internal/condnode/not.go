package condnode

import (
	"fmt"

	"github.com/lychee-technology/objectdb"
)

// NotNode negates a child query while caching the most recently scanned
// range's first match, so repeated FindFirstLocal calls over nearby
// windows don't always force a full inner rescan (§4.1.3).
type NotNode struct {
	Inner Node

	haveKnown    bool
	knownStart   int
	knownEnd     int
	firstInKnown int // objectdb.NotFound if the inner predicate never matched in [knownStart,knownEnd)

	stats Stats
}

func NewNotNode(inner Node) *NotNode { return &NotNode{Inner: inner} }

func (n *NotNode) Init(willQueryRanges bool) error {
	n.stats.DT = 0
	return n.Inner.Init(willQueryRanges)
}

func (n *NotNode) TableChanged(table objectdb.TableKey) error {
	n.haveKnown = false
	return n.Inner.TableChanged(table)
}

func (n *NotNode) ClusterChanged(cluster objectdb.Cluster) error {
	n.haveKnown = false
	return n.Inner.ClusterChanged(cluster)
}

// evaluateAt reports whether the negation holds at row: the inner
// query's first match in [row,row+1) is not_found (§4.1.3).
func (n *NotNode) evaluateAt(row int) (bool, error) {
	m, err := n.Inner.FindFirstLocal(row, row+1)
	if err != nil {
		return false, err
	}
	return m == objectdb.NotFound, nil
}

// scanRange returns the first row in [lo,hi) for which the negation
// holds, or objectdb.NotFound.
func (n *NotNode) scanRange(lo, hi int) (int, error) {
	if lo >= hi {
		return objectdb.NotFound, nil
	}
	for row := lo; row < hi; row++ {
		n.stats.recordProbe()
		ok, err := n.evaluateAt(row)
		if err != nil {
			return 0, err
		}
		if ok {
			n.stats.recordMatch(float64(row))
			return row, nil
		}
	}
	return objectdb.NotFound, nil
}

func (n *NotNode) rescanAndCache(start, end int) (int, error) {
	m, err := n.scanRange(start, end)
	if err != nil {
		return 0, err
	}
	if !n.haveKnown || (end-start) > (n.knownEnd-n.knownStart) {
		n.knownStart, n.knownEnd, n.firstInKnown, n.haveKnown = start, end, m, true
	}
	return m, nil
}

func (n *NotNode) FindFirstLocal(start, end int) (int, error) {
	if !n.haveKnown {
		return n.rescanAndCache(start, end)
	}
	ks, ke := n.knownStart, n.knownEnd

	switch {
	case start <= ks && end >= ke:
		// Request covers the known range.
		if m, err := n.scanRange(start, ks); err != nil {
			return 0, err
		} else if m != objectdb.NotFound {
			return m, nil
		}
		if n.firstInKnown != objectdb.NotFound && n.firstInKnown < end {
			return n.firstInKnown, nil
		}
		m, err := n.scanRange(ke, end)
		if err != nil {
			return 0, err
		}
		n.knownStart, n.knownEnd, n.firstInKnown = start, end, firstOf(m, n.firstInKnown, ks, ke, start, end)
		return m, nil

	case start >= ks && end <= ke:
		// Request is inside the known range.
		if n.firstInKnown != objectdb.NotFound && n.firstInKnown >= start && n.firstInKnown < end {
			return n.firstInKnown, nil
		}
		return n.rescanAndCache(start, end)

	case start < ks && end > start && end <= ke:
		// Partial overlap, request extends below the known range.
		m, err := n.scanRange(start, ks)
		if err != nil {
			return 0, err
		}
		if m != objectdb.NotFound {
			return m, nil
		}
		if n.firstInKnown != objectdb.NotFound && n.firstInKnown < end {
			return n.firstInKnown, nil
		}
		return objectdb.NotFound, nil

	case start >= ks && start < ke && end > ke:
		// Partial overlap, request extends above the known range.
		if n.firstInKnown != objectdb.NotFound && n.firstInKnown >= start && n.firstInKnown < ke {
			return n.firstInKnown, nil
		}
		// A cached match below start says nothing about [start,ke), so
		// those rows are scanned too.
		lo := ke
		if n.firstInKnown != objectdb.NotFound && n.firstInKnown < start {
			lo = start
		}
		m, err := n.scanRange(lo, end)
		if err != nil {
			return 0, err
		}
		return m, nil

	default:
		// Disjoint: full scan, replace the cache only if this range is
		// wider than the cached one.
		return n.rescanAndCache(start, end)
	}
}

// firstOf picks whichever candidate match is smaller/defined, used when
// the covering-range case merges a lower-tail scan result with the
// cached in-range match.
func firstOf(scanResult, cached, ks, ke, start, end int) int {
	if scanResult != objectdb.NotFound {
		return scanResult
	}
	if cached != objectdb.NotFound && cached >= start && cached < end {
		return cached
	}
	return objectdb.NotFound
}

func (n *NotNode) Describe(state *DescribeState) string {
	return fmt.Sprintf("NOT (%s)", n.Inner.Describe(state))
}

func (n *NotNode) Clone() Node {
	return &NotNode{Inner: n.Inner.Clone()}
}

func (n *NotNode) CurrentStats() Stats { return n.stats }

func (n *NotNode) Children() []Node { return []Node{n.Inner} }

var _ Node = (*NotNode)(nil)
var _ Composite = (*NotNode)(nil)
