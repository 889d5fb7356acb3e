// Package config defines the configuration structure for the workd daemon.
//
// Configuration is organized into logical sections (Server, Engine, Store)
// and uses code generation via optgen to create functional option helpers.
//
// # Configuration Structure
//
//	Configuration
//	├── Server         - HTTP admin server settings
//	├── Engine         - queues, ordering and shutdown
//	│   └── Queues[]   - one entry per named queue
//	├── Store          - DuckDB history storage
//	├── LogFormat      - Logging format
//	└── LogLevel       - Logging verbosity
//
// # Server Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ ServerMode       │ "dev"   │ Server mode: "prod" or "dev"           │
//	│ HTTPPort         │ 8000    │ HTTP server listen port                │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Engine Configuration
//
//	┌──────────────────┬───────────┬──────────────────────────────────────┐
//	│ Field            │ Default   │ Description                          │
//	├──────────────────┼───────────┼──────────────────────────────────────┤
//	│ DefaultQueue     │ "default" │ Queue for unmapped categories        │
//	│ PriorityOrdering │ false     │ Dequeue by priority key, not FIFO    │
//	│ ShutdownTimeout  │ 30s       │ Wait for running work on shutdown    │
//	│ Queues           │ []        │ Queue definitions (see below)        │
//	└──────────────────┴───────────┴──────────────────────────────────────┘
//
// Each queue:
//
//	┌───────────────────┬─────────┬─────────────────────────────────────────┐
//	│ Field             │ Default │ Description                             │
//	├───────────────────┼─────────┼─────────────────────────────────────────┤
//	│ ID                │         │ Queue id (required, not "*")            │
//	│ MaxConcurrency    │ 4       │ Number of workers                       │
//	│ Capacity          │ 0       │ Scheduled items before producers wait   │
//	│ DisableQueuing    │ false   │ Cancel new work instead of queuing it   │
//	│ DisableProcessing │ false   │ Keep work queued without running it     │
//	│ Categories        │ []      │ Categories routed to this queue         │
//	└───────────────────┴─────────┴─────────────────────────────────────────┘
//
// A queue named after DefaultQueue is added with 4 workers and no capacity
// limit when the file does not define one.
//
// # Store Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ DataFolder       │ ""      │ DuckDB folder, in-memory when empty    │
//	│ HistoryRetention │ 168h    │ Age after which history rows go away   │
//	│ PruneInterval    │ 1h      │ How often old history is pruned        │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Loading
//
// Load layers, from lowest to highest precedence: struct defaults, the YAML
// file, WORKD_* environment variables and bound command line flags.
//
//	engine:
//	  shutdownTimeout: 10s
//	  queues:
//	    - id: io
//	      maxConcurrency: 2
//	      capacity: 100
//	      categories: [copy, upload]
//
//	WORKD_SERVER_HTTPPORT=9000 workd run --config workd.yaml
//
// # Code Generation
//
//	//go:generate go run github.com/ecordell/optgen -output zz_generated.configuration.go . Configuration Server Engine Store
//
// Generated helpers include NewConfigurationWithOptionsAndDefaults, the
// WithX setters of every section and DebugMap:
//
//	cfg := config.NewConfigurationWithOptionsAndDefaults(
//	    config.WithEngine(*config.NewEngineWithOptionsAndDefaults(
//	        config.WithShutdownTimeout(5 * time.Second),
//	    )),
//	    config.WithLogLevel("info"),
//	)
//	zap.S().Infow("configuration loaded", "config", cfg.DebugMap())
package config
