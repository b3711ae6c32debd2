package querytree

import (
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/condnode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLeaf is a minimal condnode.Node stub used only to exercise
// Tree.Explain's traversal without depending on a real leaf node's
// probe/match bookkeeping.
type fakeLeaf struct {
	name  string
	stats condnode.Stats
}

func (f *fakeLeaf) Init(bool) error { return nil }

func (f *fakeLeaf) TableChanged(objectdb.TableKey) error { return nil }

func (f *fakeLeaf) ClusterChanged(objectdb.Cluster) error { return nil }

func (f *fakeLeaf) FindFirstLocal(start, end int) (int, error) {
	return objectdb.NotFound, nil
}

func (f *fakeLeaf) Describe(*condnode.DescribeState) string { return f.name }

func (f *fakeLeaf) Clone() condnode.Node { return &fakeLeaf{name: f.name, stats: f.stats} }

func (f *fakeLeaf) CurrentStats() condnode.Stats { return f.stats }

var _ condnode.Node = (*fakeLeaf)(nil)

func TestExplain_LeafNode(t *testing.T) {
	leaf := &fakeLeaf{name: `name == "alice"`, stats: condnode.Stats{DT: 1, Probes: 4, Matches: 1}}
	tree := New(leaf, nil, 1)

	en := tree.Explain(nil)

	assert.Equal(t, `name == "alice"`, en.Description)
	assert.Equal(t, int64(4), en.Stats.Probes)
	assert.Empty(t, en.Children)
}

func TestExplain_ConjunctionWalksChildren(t *testing.T) {
	a := &fakeLeaf{name: "a", stats: condnode.Stats{Probes: 2}}
	b := &fakeLeaf{name: "b", stats: condnode.Stats{Probes: 3}}
	conj := NewConjunction(a, b)
	tree := New(conj, nil, 1)

	en := tree.Explain(nil)

	assert.Equal(t, "a AND b", en.Description)
	require.Len(t, en.Children, 2)
	assert.Equal(t, "a", en.Children[0].Description)
	assert.Equal(t, int64(2), en.Children[0].Stats.Probes)
	assert.Equal(t, "b", en.Children[1].Description)
	assert.Equal(t, int64(3), en.Children[1].Stats.Probes)
}

func TestExplain_DisjunctionWalksChildren(t *testing.T) {
	a := &fakeLeaf{name: "a"}
	b := &fakeLeaf{name: "b"}
	disj := NewDisjunction(a, b)
	tree := New(disj, nil, 1)

	en := tree.Explain(nil)

	require.Len(t, en.Children, 2)
	assert.Equal(t, "a", en.Children[0].Description)
	assert.Equal(t, "b", en.Children[1].Description)
}

func TestExplain_NotWrapsSingleChild(t *testing.T) {
	inner := &fakeLeaf{name: "a"}
	not := condnode.NewNotNode(inner)
	tree := New(not, nil, 1)

	en := tree.Explain(nil)

	assert.Equal(t, "NOT (a)", en.Description)
	require.Len(t, en.Children, 1)
	assert.Equal(t, "a", en.Children[0].Description)
}
