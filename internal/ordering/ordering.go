// Package ordering implements descriptor ordering (C6): Sort, Distinct,
// Limit, and Include applied left-to-right to a result key sequence
// (§4.4).
package ordering

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/linkmap"
)

// SortKey pairs a column with its sort direction (§3).
type SortKey struct {
	Col objectdb.ColKey
	Dir objectdb.SortDirection
}

// Descriptor is one entry in a DescriptorOrdering (§3, §4.4).
type Descriptor interface {
	apply(ctx context.Context, view []objectdb.ObjKey, rt runtime) ([]objectdb.ObjKey, error)
	Describe(table objectdb.TableKey, columnName ColumnNameFunc) string
}

// ColumnNameFunc resolves a column key to its key-path name, the same
// shape as condnode.DescribeState.ColumnName, so SORT/DISTINCT render
// real identifiers instead of raw keys.
type ColumnNameFunc func(table objectdb.TableKey, col objectdb.ColKey) string

func (f ColumnNameFunc) name(table objectdb.TableKey, col objectdb.ColKey) string {
	if f == nil {
		return fmt.Sprintf("$col%d", col)
	}
	if n := f(table, col); n != "" {
		return n
	}
	return fmt.Sprintf("$col%d", col)
}

// runtime is the minimal collaborator set descriptors need: resolving
// a column's value for a given key, and the table the result view
// belongs to (so Resolve knows which table to read).
type runtime struct {
	table   objectdb.TableKey
	objects objectdb.ObjectSource
}

func (r runtime) valueOf(ctx context.Context, key objectdb.ObjKey, col objectdb.ColKey) (objectdb.Value, error) {
	obj, err := r.objects.Resolve(ctx, r.table, key)
	if err != nil {
		return objectdb.Value{}, err
	}
	return obj.Get(col)
}

// SortDescriptor is a stable total order over the keys in view, by the
// given columns in priority order (§4.4: nulls before non-null, NaN
// below -Inf — both handled by objectdb.Value.Compare).
type SortDescriptor struct{ Keys []SortKey }

func Sort(keys ...SortKey) *SortDescriptor { return &SortDescriptor{Keys: keys} }

func (d *SortDescriptor) apply(ctx context.Context, view []objectdb.ObjKey, rt runtime) ([]objectdb.ObjKey, error) {
	out := append([]objectdb.ObjKey(nil), view...)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range d.Keys {
			vi, err := rt.valueOf(ctx, out[i], k.Col)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := rt.valueOf(ctx, out[j], k.Col)
			if err != nil {
				sortErr = err
				return false
			}
			cmp := vi.Compare(vj)
			if k.Dir == objectdb.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

func (d *SortDescriptor) Describe(table objectdb.TableKey, columnName ColumnNameFunc) string {
	parts := make([]string, len(d.Keys))
	for i, k := range d.Keys {
		dir := ""
		if k.Dir == objectdb.Descending {
			dir = " DESC"
		}
		parts[i] = fmt.Sprintf("%s%s", columnName.name(table, k.Col), dir)
	}
	return "SORT(" + strings.Join(parts, ", ") + ")"
}

// DistinctDescriptor keeps the first occurrence per tuple of key-path
// values, in the order Distinct was applied (§4.4).
type DistinctDescriptor struct{ Keys []objectdb.ColKey }

func Distinct(keys ...objectdb.ColKey) *DistinctDescriptor { return &DistinctDescriptor{Keys: keys} }

func (d *DistinctDescriptor) apply(ctx context.Context, view []objectdb.ObjKey, rt runtime) ([]objectdb.ObjKey, error) {
	seen := make(map[string]struct{}, len(view))
	out := make([]objectdb.ObjKey, 0, len(view))
	for _, key := range view {
		var b strings.Builder
		for _, col := range d.Keys {
			v, err := rt.valueOf(ctx, key, col)
			if err != nil {
				return nil, err
			}
			b.WriteString(objectdb.FormatValue(v))
			b.WriteByte('\x1f')
		}
		tuple := b.String()
		if _, dup := seen[tuple]; dup {
			continue
		}
		seen[tuple] = struct{}{}
		out = append(out, key)
	}
	return out, nil
}

func (d *DistinctDescriptor) Describe(table objectdb.TableKey, columnName ColumnNameFunc) string {
	parts := make([]string, len(d.Keys))
	for i, c := range d.Keys {
		parts[i] = columnName.name(table, c)
	}
	return "DISTINCT(" + strings.Join(parts, ", ") + ")"
}

// LimitDescriptor truncates the view to its first N rows, recording how
// many rows it excluded (§4.4).
type LimitDescriptor struct {
	N        int
	excluded int
}

func Limit(n int) *LimitDescriptor { return &LimitDescriptor{N: n} }

// ExcludedByLimit reports how many rows this Limit removed, valid only
// after apply has run.
func (d *LimitDescriptor) ExcludedByLimit() int { return d.excluded }

func (d *LimitDescriptor) apply(ctx context.Context, view []objectdb.ObjKey, rt runtime) ([]objectdb.ObjKey, error) {
	if d.N < 0 {
		return nil, objectdb.NewOutOfRange("LIMIT(%d) must be non-negative", d.N)
	}
	if d.N >= len(view) {
		d.excluded = 0
		return view, nil
	}
	d.excluded = len(view) - d.N
	return view[:d.N], nil
}

func (d *LimitDescriptor) Describe(objectdb.TableKey, ColumnNameFunc) string {
	return fmt.Sprintf("LIMIT(%d)", d.N)
}

// IncludeDescriptor records back-reference paths so a later consumer
// can enumerate backlinks along the path per result row (§4.4). It
// never filters the view. Every path's last hop must be a backlink.
type IncludeDescriptor struct {
	Paths   []*linkmap.LinkMap
	Objects objectdb.ObjectSource
}

func Include(objects objectdb.ObjectSource, paths ...*linkmap.LinkMap) (*IncludeDescriptor, error) {
	for _, p := range paths {
		if len(p.Hops) == 0 || p.Hops[len(p.Hops)-1].Kind != objectdb.LinkBacklink {
			return nil, objectdb.NewInvalidQuery("INCLUDE path must end in a backlink column")
		}
	}
	return &IncludeDescriptor{Paths: paths, Objects: objects}, nil
}

func (d *IncludeDescriptor) apply(ctx context.Context, view []objectdb.ObjKey, rt runtime) ([]objectdb.ObjKey, error) {
	return view, nil
}

// CompileIncludedBacklinks runs every registered path against the
// current view, invoking report(table, keys) once per path per result
// row with the backlink set reached from that row (§4.4, §6:
// "compile_included_backlinks()").
func (d *IncludeDescriptor) CompileIncludedBacklinks(ctx context.Context, view []objectdb.ObjKey, report func(row int, table objectdb.TableKey, keys []objectdb.ObjKey)) error {
	for _, path := range d.Paths {
		lastTable := path.Hops[len(path.Hops)-1].Table
		for i, key := range view {
			var found []objectdb.ObjKey
			err := path.MapLinks(ctx, d.Objects, key, func(k objectdb.ObjKey) bool {
				found = append(found, k)
				return true
			})
			if err != nil {
				return err
			}
			report(i, lastTable, found)
		}
	}
	return nil
}

func (d *IncludeDescriptor) Describe(objectdb.TableKey, ColumnNameFunc) string { return "INCLUDE(...)" }

// DescriptorOrdering is the ordered, order-preserving sequence of
// descriptors §3/§4.4 describes. Descriptors apply left to right;
// LIMIT interacts with SORT/DISTINCT order-dependently by construction
// since each apply call only sees the already-transformed view.
type DescriptorOrdering struct {
	descriptors []Descriptor
	table       objectdb.TableKey
	objects     objectdb.ObjectSource
}

func New(table objectdb.TableKey, objects objectdb.ObjectSource) *DescriptorOrdering {
	return &DescriptorOrdering{table: table, objects: objects}
}

// Append adds a descriptor to the end of the sequence.
func (o *DescriptorOrdering) Append(d Descriptor) { o.descriptors = append(o.descriptors, d) }

// Apply runs every descriptor in sequence over view.
func (o *DescriptorOrdering) Apply(ctx context.Context, view []objectdb.ObjKey) ([]objectdb.ObjKey, error) {
	rt := runtime{table: o.table, objects: o.objects}
	cur := view
	for _, d := range o.descriptors {
		next, err := d.apply(ctx, cur, rt)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Describe renders the sequence as its textual descriptor suffix
// (§6: "get_description(table) -> String"). columnName resolves a
// column key to its key-path name, the same resolver condnode.Describe
// threads through the predicate tree, so SORT/DISTINCT round-trip
// through the parser instead of lexing as raw argument tokens.
func (o *DescriptorOrdering) Describe(columnName ColumnNameFunc) string {
	parts := make([]string, len(o.descriptors))
	for i, d := range o.descriptors {
		parts[i] = d.Describe(o.table, columnName)
	}
	return strings.Join(parts, " ")
}

// CompileIncludedBacklinks runs every Include descriptor's
// compile step over the final view.
func (o *DescriptorOrdering) CompileIncludedBacklinks(ctx context.Context, view []objectdb.ObjKey, report func(row int, table objectdb.TableKey, keys []objectdb.ObjKey)) error {
	for _, d := range o.descriptors {
		if inc, ok := d.(*IncludeDescriptor); ok {
			if err := inc.CompileIncludedBacklinks(ctx, view, report); err != nil {
				return err
			}
		}
	}
	return nil
}

// Descriptors exposes the underlying sequence (e.g. to find the
// last-applied LimitDescriptor for ExcludedByLimit).
func (o *DescriptorOrdering) Descriptors() []Descriptor { return o.descriptors }
