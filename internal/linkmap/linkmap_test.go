package linkmap

import (
	"context"
	"testing"

	"github.com/lychee-technology/objectdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usersTable  objectdb.TableKey = 1
	postsTable  objectdb.TableKey = 2
	colAuthor   objectdb.ColKey   = 10
	colFriends  objectdb.ColKey   = 11
)

// fakeObject is a single row of columns/backlinks, used by fakeSource.
type fakeObject struct {
	key       objectdb.ObjKey
	cols      map[objectdb.ColKey]objectdb.Value
	backlinks map[objectdb.ColKey][]objectdb.ObjKey
}

func (o *fakeObject) Key() objectdb.ObjKey { return o.key }

func (o *fakeObject) Get(col objectdb.ColKey) (objectdb.Value, error) {
	if v, ok := o.cols[col]; ok {
		return v, nil
	}
	return objectdb.Value{}, objectdb.NewInvalidQuery("no such column")
}

func (o *fakeObject) GetBacklinks(col objectdb.ColKey) ([]objectdb.ObjKey, error) {
	return o.backlinks[col], nil
}

func (o *fakeObject) GetTargetTable(col objectdb.ColKey) (objectdb.TableKey, error) { return 0, nil }

// fakeSource is an objectdb.ObjectSource over a fixed table->key->object map.
type fakeSource struct {
	rows map[objectdb.TableKey]map[objectdb.ObjKey]*fakeObject
}

func (s *fakeSource) Resolve(ctx context.Context, table objectdb.TableKey, key objectdb.ObjKey) (objectdb.Object, error) {
	obj, ok := s.rows[table][key]
	if !ok {
		return nil, objectdb.NewInvalidQuery("no object %d in table %d", key, table)
	}
	return obj, nil
}

func TestLinkMap_EmptyChainVisitsStartKey(t *testing.T) {
	m := New()
	var seen []objectdb.ObjKey
	err := m.MapLinks(context.Background(), &fakeSource{}, 42, func(k objectdb.ObjKey) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{42}, seen)
}

func TestLinkMap_SingleHopFollowsLink(t *testing.T) {
	source := &fakeSource{rows: map[objectdb.TableKey]map[objectdb.ObjKey]*fakeObject{
		postsTable: {
			1: {key: 1, cols: map[objectdb.ColKey]objectdb.Value{colAuthor: objectdb.LinkValue(100)}},
		},
	}}
	m := New(Hop{Table: postsTable, Col: colAuthor, Kind: objectdb.LinkSingle})

	var seen []objectdb.ObjKey
	err := m.MapLinks(context.Background(), source, 1, func(k objectdb.ObjKey) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{100}, seen)
	assert.False(t, m.NonUnary())
}

func TestLinkMap_ListHopFansOut(t *testing.T) {
	friends := objectdb.ListValue(objectdb.KindLink, []objectdb.Value{
		objectdb.LinkValue(2), objectdb.LinkValue(3),
	})
	source := &fakeSource{rows: map[objectdb.TableKey]map[objectdb.ObjKey]*fakeObject{
		usersTable: {
			1: {key: 1, cols: map[objectdb.ColKey]objectdb.Value{colFriends: friends}},
		},
	}}
	m := New(Hop{Table: usersTable, Col: colFriends, Kind: objectdb.LinkList})

	var seen []objectdb.ObjKey
	err := m.MapLinks(context.Background(), source, 1, func(k objectdb.ObjKey) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []objectdb.ObjKey{2, 3}, seen)
	assert.True(t, m.NonUnary())
}

func TestLinkMap_VisitorCanStopEarly(t *testing.T) {
	friends := objectdb.ListValue(objectdb.KindLink, []objectdb.Value{
		objectdb.LinkValue(2), objectdb.LinkValue(3), objectdb.LinkValue(4),
	})
	source := &fakeSource{rows: map[objectdb.TableKey]map[objectdb.ObjKey]*fakeObject{
		usersTable: {1: {key: 1, cols: map[objectdb.ColKey]objectdb.Value{colFriends: friends}}},
	}}
	m := New(Hop{Table: usersTable, Col: colFriends, Kind: objectdb.LinkList})

	var seen []objectdb.ObjKey
	err := m.MapLinks(context.Background(), source, 1, func(k objectdb.ObjKey) bool {
		seen = append(seen, k)
		return len(seen) < 1
	})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{2}, seen)
}

func TestLinkMap_BacklinkHop(t *testing.T) {
	source := &fakeSource{rows: map[objectdb.TableKey]map[objectdb.ObjKey]*fakeObject{
		usersTable: {1: {key: 1, backlinks: map[objectdb.ColKey][]objectdb.ObjKey{colAuthor: {9, 8}}}},
	}}
	m := New(Hop{Table: usersTable, Col: colAuthor, Kind: objectdb.LinkBacklink})

	var seen []objectdb.ObjKey
	err := m.MapLinks(context.Background(), source, 1, func(k objectdb.ObjKey) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []objectdb.ObjKey{9, 8}, seen)
}

func TestLinkMap_MultiHopChain(t *testing.T) {
	source := &fakeSource{rows: map[objectdb.TableKey]map[objectdb.ObjKey]*fakeObject{
		postsTable: {
			1: {key: 1, cols: map[objectdb.ColKey]objectdb.Value{colAuthor: objectdb.LinkValue(100)}},
		},
		usersTable: {
			100: {key: 100, backlinks: map[objectdb.ColKey][]objectdb.ObjKey{colFriends: {7}}},
		},
	}}
	m := New(
		Hop{Table: postsTable, Col: colAuthor, Kind: objectdb.LinkSingle},
		Hop{Table: usersTable, Col: colFriends, Kind: objectdb.LinkBacklink},
	)

	var seen []objectdb.ObjKey
	err := m.MapLinks(context.Background(), source, 1, func(k objectdb.ObjKey) bool {
		seen = append(seen, k)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []objectdb.ObjKey{7}, seen)
}

func TestLinkMap_CollectDependencies(t *testing.T) {
	m := New(
		Hop{Table: postsTable, Col: colAuthor, Kind: objectdb.LinkSingle},
		Hop{Table: usersTable, Col: colFriends, Kind: objectdb.LinkBacklink},
	)
	assert.ElementsMatch(t, []objectdb.TableKey{postsTable, usersTable}, m.CollectDependencies())
}
