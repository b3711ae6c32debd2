// Command querydemo is a small interactive driver over the query
// engine: it loads a table (either a built-in in-memory fixture or a
// jsonschema-described DuckDB snapshot), reads predicate text one line
// at a time from stdin, and prints the resulting ResultView alongside
// a per-node cost Explain listing. It plays the role the teacher split
// across cmd/sample (data loading + a one-shot query) and cmd/server
// (a long-lived process driving EntityManager.Query) in a single
// read-only REPL.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/factory"
	"github.com/lychee-technology/objectdb/internal/querytree"
	"github.com/lychee-technology/objectdb/storage/duckstore"
	"github.com/lychee-technology/objectdb/storage/jsonschema"
	"github.com/lychee-technology/objectdb/storage/memstore"
	"go.uber.org/zap"
)

const (
	peopleTable objectdb.TableKey = 1
	colName     objectdb.ColKey   = 1
	colAge      objectdb.ColKey   = 2
	colActive   objectdb.ColKey   = 3
	colCity     objectdb.ColKey   = 4
)

func main() {
	schemaDir := flag.String("schema-dir", "", "directory of *.schema.json files (falls back to a built-in fixture schema)")
	duckdbPath := flag.String("duckdb", "", "path to a DuckDB snapshot file (falls back to an in-memory fixture table)")
	tableName := flag.String("table", "people", "table name to query")
	oneShot := flag.String("query", "", "run a single predicate and exit instead of reading stdin")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	engine, tableKey, err := buildEngine(ctx, *schemaDir, *duckdbPath, *tableName, sugar)
	if err != nil {
		sugar.Fatalf("setup failed: %v", err)
	}

	if *oneShot != "" {
		runQuery(ctx, engine, tableKey, *oneShot, sugar)
		return
	}

	sugar.Infof("ready: enter a predicate (%s), blank line or EOF to quit", *tableName)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("query> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			return
		}
		runQuery(ctx, engine, tableKey, text, sugar)
	}
}

// buildEngine wires a factory.Engine over either a jsonschema-described
// DuckDB snapshot or the built-in in-memory fixture, following the
// teacher's cmd/sample split between a real database connection and a
// dry-run in-process mode.
func buildEngine(ctx context.Context, schemaDir, duckdbPath, tableName string, sugar *zap.SugaredLogger) (*factory.Engine, objectdb.TableKey, error) {
	if schemaDir != "" && duckdbPath != "" {
		return buildDuckDBEngine(ctx, schemaDir, duckdbPath, tableName, sugar)
	}
	sugar.Infof("no -schema-dir/-duckdb given, using the built-in fixture table %q", tableName)
	return buildFixtureEngine(sugar)
}

func buildDuckDBEngine(ctx context.Context, schemaDir, duckdbPath, tableName string, sugar *zap.SugaredLogger) (*factory.Engine, objectdb.TableKey, error) {
	sugar.Infof("loading schemas from %s", schemaDir)
	registry, err := jsonschema.LoadDirectory(schemaDir)
	if err != nil {
		return nil, 0, fmt.Errorf("load schema directory: %w", err)
	}
	def, err := registry.TableByName(tableName)
	if err != nil {
		return nil, 0, fmt.Errorf("table %q not in schema directory: %w", tableName, err)
	}

	sugar.Infof("opening duckdb snapshot %s", duckdbPath)
	db, err := duckstore.Open(ctx, duckdbPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open duckdb snapshot: %w", err)
	}

	columns := make([]duckstore.Column, 0, len(def.Columns))
	var indexed []objectdb.ColKey
	for _, col := range def.Columns {
		columns = append(columns, duckstore.Column{Name: col.Name, Key: col.Key, Kind: col.Kind})
		if col.Attrs.Has(objectdb.AttrIndexed) {
			indexed = append(indexed, col.Key)
		}
	}
	keyCol := def.PrimaryKeyName
	if keyCol == "" {
		keyCol = "id"
	}
	store := duckstore.NewTable(db, def.Key, def.Name, keyCol, columns, 256, indexed...)

	table := objectdb.Table{Key: def.Key, Storage: store, Schema: registry, Objects: store}
	engine, err := factory.NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{table}, store)
	if err != nil {
		return nil, 0, fmt.Errorf("build engine: %w", err)
	}
	return engine, def.Key, nil
}

// buildFixtureEngine builds a small in-memory "people" table so the
// demo runs with zero external setup; each row's ObjKey is derived from
// a freshly generated UUID the way the teacher's CSV importer assigned
// DataRecord.RowID uuid.UUID to imported rows.
func buildFixtureEngine(sugar *zap.SugaredLogger) (*factory.Engine, objectdb.TableKey, error) {
	b := memstore.NewBuilder(peopleTable, 4).Index(colName)

	type fixture struct {
		name   string
		age    int64
		active bool
		city   string
	}
	rows := []fixture{
		{"alice", 30, true, "berlin"},
		{"bob", 45, false, "lisbon"},
		{"carol", 22, true, "berlin"},
		{"dave", 38, true, "cairo"},
		{"erin", 51, false, "lisbon"},
	}
	for _, r := range rows {
		b.Row(uuidObjKey(uuid.New()), map[objectdb.ColKey]objectdb.Value{
			colName:   objectdb.StringValue(r.name),
			colAge:    objectdb.IntValue(r.age),
			colActive: objectdb.BoolValue(r.active),
			colCity:   objectdb.StringValue(r.city),
		})
	}
	store := b.Build()

	schema := objectdb.NewStaticRegistry(objectdb.TableDef{
		Name: "people",
		Key:  peopleTable,
		Columns: map[string]objectdb.ColumnDef{
			"name":   {Name: "name", Key: colName, Kind: objectdb.KindString, Attrs: objectdb.AttrIndexed},
			"age":    {Name: "age", Key: colAge, Kind: objectdb.KindInt},
			"active": {Name: "active", Key: colActive, Kind: objectdb.KindBool},
			"city":   {Name: "city", Key: colCity, Kind: objectdb.KindString},
		},
	})

	table := objectdb.Table{Key: peopleTable, Storage: store, Schema: schema, Objects: store}
	engine, err := factory.NewEngineWithConfig(objectdb.DefaultConfig(), []objectdb.Table{table}, store)
	if err != nil {
		return nil, 0, fmt.Errorf("build engine: %w", err)
	}
	sugar.Infof("fixture ready: %d rows, columns name/age/active/city", len(rows))
	return engine, peopleTable, nil
}

// uuidObjKey derives a stable ObjKey from a UUID's leading 8 bytes,
// standing in for a real primary key the way the teacher's importer
// used a freshly minted uuid.UUID as DataRecord.RowID.
func uuidObjKey(u uuid.UUID) objectdb.ObjKey {
	return objectdb.ObjKey(binary.BigEndian.Uint64(u[:8]) &^ (1 << 63))
}

func runQuery(ctx context.Context, engine *factory.Engine, tableKey objectdb.TableKey, text string, sugar *zap.SugaredLogger) {
	q, err := engine.Build(ctx, tableKey, text, nil)
	if err != nil {
		sugar.Errorf("build failed: %v", err)
		return
	}

	view, err := q.FindAll(ctx)
	if err != nil {
		sugar.Errorf("find_all failed: %v", err)
		return
	}
	fmt.Printf("description: %s\n", q.GetDescription())
	fmt.Printf("matches: %d\n", view.Size())
	for i := 0; i < view.Size(); i++ {
		key, err := view.Get(i)
		if err != nil {
			sugar.Errorf("result row %d: %v", i, err)
			return
		}
		fmt.Printf("  [%d] key=%d\n", i, key)
	}

	explain, err := q.Explain(ctx)
	if err != nil {
		sugar.Errorf("explain failed: %v", err)
		return
	}
	fmt.Println("explain:")
	printExplain(explain, 1)
}

// printExplain renders an ExplainNode tree indented by depth, one line
// per node: its predicate fragment followed by the cost stats it
// published during the run just completed.
func printExplain(node querytree.ExplainNode, depth int) {
	fmt.Printf("%s%s  dT=%.3f dD=%.3f probes=%d matches=%d\n",
		strings.Repeat("  ", depth), node.Description,
		node.Stats.DT, node.Stats.DD, node.Stats.Probes, node.Stats.Matches)
	for _, child := range node.Children {
		printExplain(child, depth+1)
	}
}
