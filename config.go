package objectdb

import "time"

// Config consolidates engine-wide tunables, following the teacher's
// nested per-concern grouping (Query/Performance/Logging/Metrics) but
// scoped to a read-only query engine: there is no DatabaseConfig,
// TransactionConfig, or CascadeRule section, since writes, transactions
// and cascades are explicit Non-goals (§1).
type Config struct {
	Query       QueryConfig       `json:"query"`
	Index       IndexConfig       `json:"index"`
	Performance PerformanceConfig `json:"performance"`
	Logging     LoggingConfig     `json:"logging"`
	Metrics     MetricsConfig     `json:"metrics"`
}

// QueryConfig contains predicate-parsing and execution defaults.
type QueryConfig struct {
	// DefaultCaseSensitive is not read by the query builder: an operator
	// without the [c] suffix always compares case-sensitively (§4.5).
	DefaultCaseSensitive bool `json:"defaultCaseSensitive"`
	// BacklinkTraversalEnabled is not read by the query builder; setting
	// it to false does not reject any backlink path (§4.5).
	BacklinkTraversalEnabled bool `json:"backlinkTraversalEnabled"`
	// MaxStringLength is the storage cap enforced on string/binary
	// literals; exceeding it is OutOfRange (§6).
	MaxStringLength int `json:"maxStringLength"`
	// DefaultTimeout bounds a single find_all/count/aggregate call from
	// the caller's perspective; the core itself has no suspension
	// points (§5) so this is enforced by the caller checking a
	// context.Context passed to Query, not by the node-tree loop.
	DefaultTimeout time.Duration `json:"defaultTimeout"`
	// MaxRows is range-checked by Validate (it must not be negative);
	// Query.FindAll does not read it and does not cap the ResultView.
	MaxRows int `json:"maxRows"`
}

// IndexConfig tunes the cost-adaptive scheduling and multi-needle fusion
// described in §4.1.1-§4.1.2.
type IndexConfig struct {
	// FusionMinNeedles is the minimum number of same-column Equal
	// conditions in a disjunction before the builder fuses them into a
	// single multi-needle node (§4.1.2).
	FusionMinNeedles int `json:"fusionMinNeedles"`
	// FusionBlockSize is the Rabin-Karp-like multi-pattern scan's block
	// size (§4.1.2 specifies 20).
	FusionBlockSize int `json:"fusionBlockSize"`
	// IndexedDT / EnumDT / UnindexedDT are the per-probe cost constants
	// a StringEqual node publishes for its three init tiers (§4.1.1).
	IndexedDT   float64 `json:"indexedDT"`
	EnumDT      float64 `json:"enumDT"`
	UnindexedDT float64 `json:"unindexedDT"`
}

// PerformanceConfig contains performance-monitoring toggles; the engine
// itself does not act on these, they exist so a driver can decide
// whether to collect Query.Explain() after every execution.
type PerformanceConfig struct {
	EnableMonitoring       bool          `json:"enableMonitoring"`
	SlowQueryThreshold     time.Duration `json:"slowQueryThreshold"`
	MetricsFlushInterval   time.Duration `json:"metricsFlushInterval"`
	EnableMemoryMonitoring bool          `json:"enableMemoryMonitoring"`
}

// LoggingConfig contains logging settings. The engine logs build-time
// decisions (index tier chosen, fusion applied) and recoverable runtime
// events (stale accessor re-resolved) at Debug, never inside the
// find_first_local hot loop.
type LoggingConfig struct {
	Level              string `json:"level"`
	EnableStructured   bool   `json:"enableStructured"`
	LogQueryExplain    bool   `json:"logQueryExplain"`
	LogSlowQueries     bool   `json:"logSlowQueries"`
	SanitizeParameters bool   `json:"sanitizeParameters"`
}

// MetricsConfig contains metrics-collection settings for a surrounding
// driver; the core query pipeline does not emit metrics itself.
type MetricsConfig struct {
	Enabled            bool          `json:"enabled"`
	Namespace          string        `json:"namespace"`
	CollectionInterval time.Duration `json:"collectionInterval"`
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Query: QueryConfig{
			DefaultCaseSensitive:     true,
			BacklinkTraversalEnabled: true,
			MaxStringLength:          0x1000000, // 16 MiB, matches the storage layer's column string cap
			DefaultTimeout:           30 * time.Second,
			MaxRows:                  1_000_000,
		},
		Index: IndexConfig{
			FusionMinNeedles: 3,
			FusionBlockSize:  20,
			IndexedDT:        0,
			EnumDT:           1,
			UnindexedDT:      10,
		},
		Performance: PerformanceConfig{
			EnableMonitoring:       true,
			SlowQueryThreshold:     500 * time.Millisecond,
			MetricsFlushInterval:   10 * time.Second,
			EnableMemoryMonitoring: false,
		},
		Logging: LoggingConfig{
			Level:              "info",
			EnableStructured:   true,
			LogQueryExplain:    false,
			LogSlowQueries:     true,
			SanitizeParameters: true,
		},
		Metrics: MetricsConfig{
			Enabled:            false,
			Namespace:          "objectdb",
			CollectionInterval: 15 * time.Second,
		},
	}
}

// Validate checks the configuration for internally-consistent values,
// returning an OutOfRange QueryError describing the first problem found.
func (c *Config) Validate() error {
	if c.Query.MaxStringLength <= 0 {
		return NewOutOfRange("query.maxStringLength must be positive, got %d", c.Query.MaxStringLength)
	}
	if c.Query.MaxRows < 0 {
		return NewOutOfRange("query.maxRows must be non-negative, got %d", c.Query.MaxRows)
	}
	if c.Index.FusionMinNeedles < 2 {
		return NewOutOfRange("index.fusionMinNeedles must be at least 2, got %d", c.Index.FusionMinNeedles)
	}
	if c.Index.FusionBlockSize <= 0 {
		return NewOutOfRange("index.fusionBlockSize must be positive, got %d", c.Index.FusionBlockSize)
	}
	return nil
}
