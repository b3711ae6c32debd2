package factory

import (
	"context"
	"fmt"

	"github.com/lychee-technology/objectdb"
	"github.com/lychee-technology/objectdb/internal/parser"
	"github.com/lychee-technology/objectdb/internal/query"
	"go.uber.org/zap"
)

// tableValidator is a test hook for the "at least one table, no
// duplicate keys" check NewEngineWithConfig runs before wiring anything
// else, following the same override-for-injection pattern the teacher
// uses for tableCollector.
var tableValidator = validateTables

func validateTables(tables []objectdb.Table) (map[objectdb.TableKey]objectdb.Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	byKey := make(map[objectdb.TableKey]objectdb.Table, len(tables))
	for _, t := range tables {
		if _, dup := byKey[t.Key]; dup {
			return nil, fmt.Errorf("duplicate table key %d", t.Key)
		}
		byKey[t.Key] = t
	}
	return byKey, nil
}

// Engine binds one configuration and a set of table handles (storage +
// schema + object source, per table) together, and compiles predicate
// text into an internal/query.Query against them. This is the primary
// object external callers construct, the same role the teacher's
// EntityManager played over a Postgres/EAV store.
//
// Usage:
//
//	config := objectdb.DefaultConfig()
//	engine, err := factory.NewEngineWithConfig(config, []objectdb.Table{usersTable}, indexes)
//	if err != nil {
//		// handle error
//	}
//	q, err := engine.Build(ctx, usersKey, `name CONTAINS "a"`, nil)
type Engine struct {
	config  *objectdb.Config
	tables  map[objectdb.TableKey]objectdb.Table
	indexes parser.IndexLookup
	log     *zap.SugaredLogger
}

// NewEngineWithConfig validates config and wires it to the given table
// handles. indexes may be nil, in which case every string-equality
// predicate falls back to its StringEnum/Unindexed cost tier (§4.1.1);
// a storage adapter that maintains secondary indexes (storage/duckstore,
// storage/pgstore) implements internal/parser.IndexLookup itself and is
// passed here directly.
func NewEngineWithConfig(config *objectdb.Config, tables []objectdb.Table, indexes parser.IndexLookup) (*Engine, error) {
	if config == nil {
		config = objectdb.DefaultConfig()
	}
	log := buildLogger(config)

	if err := config.Validate(); err != nil {
		log.Errorw("invalid engine config", "error", err)
		return nil, err
	}

	byKey, err := tableValidator(tables)
	if err != nil {
		log.Errorw("engine construction failed", "error", err)
		return nil, fmt.Errorf("failed to wire tables: %w", err)
	}

	log.Infow("engine ready", "tables", len(byKey))
	return &Engine{config: config, tables: byKey, indexes: indexes, log: log}, nil
}

func buildLogger(config *objectdb.Config) *zap.SugaredLogger {
	if !config.Logging.EnableStructured {
		return zap.NewNop().Sugar()
	}
	level := zap.InfoLevel
	_ = level.UnmarshalText([]byte(config.Logging.Level))
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Table looks up a previously registered table handle.
func (e *Engine) Table(key objectdb.TableKey) (objectdb.Table, error) {
	t, ok := e.tables[key]
	if !ok {
		return objectdb.Table{}, objectdb.NewInvalidQuery("unknown table key %d", key)
	}
	return t, nil
}

// Build compiles predicateText against the table registered under
// tableKey, the query-engine counterpart to the teacher's
// EntityManager.Query entry point.
func (e *Engine) Build(ctx context.Context, tableKey objectdb.TableKey, predicateText string, args []objectdb.Value) (*query.Query, error) {
	table, err := e.Table(tableKey)
	if err != nil {
		return nil, err
	}
	q, err := query.Build(table, e.config, e.indexes, predicateText, args)
	if err != nil {
		e.log.Debugw("query build failed", "table", int32(tableKey), "predicate", predicateText, "error", err)
		return nil, err
	}
	if e.config.Logging.LogQueryExplain {
		e.log.Debugw("query built", "description", q.GetDescription())
	}
	return q, nil
}
