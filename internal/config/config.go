package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/kubev2v/workmanager/pkg/scheduler"
)

//go:generate go run github.com/ecordell/optgen -output zz_generated.configuration.go . Configuration Server Engine Store

type Configuration struct {
	Server    Server `debugmap:"visible"`
	Engine    Engine `debugmap:"visible"`
	Store     Store  `debugmap:"visible"`
	LogFormat string `debugmap:"visible" default:"console"`
	LogLevel  string `debugmap:"visible" default:"debug"`
}

type Server struct {
	ServerMode string `debugmap:"visible" default:"dev"`
	HTTPPort   int    `debugmap:"visible" default:"8000"`
}

type Engine struct {
	DefaultQueue     string        `debugmap:"visible" default:"default"`
	PriorityOrdering bool          `debugmap:"visible" default:"false"`
	ShutdownTimeout  time.Duration `debugmap:"visible" default:"30s"`
	Queues           []Queue       `debugmap:"visible"`
}

// Queue describes one named queue. Zero MaxConcurrency falls back to the
// default; use DisableProcessing to hold a queue without workers.
type Queue struct {
	ID                string
	MaxConcurrency    int `default:"4"`
	Capacity          int
	DisableQueuing    bool
	DisableProcessing bool
	Categories        []string
}

type Store struct {
	DataFolder       string        `debugmap:"visible" default:""`
	HistoryRetention time.Duration `debugmap:"visible" default:"168h"`
	PruneInterval    time.Duration `debugmap:"visible" default:"1h"`
}

const defaultQueueConcurrency = 4

var (
	logFormats  = []string{"console", "json"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	serverModes = []string{"dev", "prod"}
)

func (c *Configuration) Validate() error {
	if !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q: expected one of %v", c.LogFormat, logFormats)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q: expected one of %v", c.LogLevel, logLevels)
	}
	if !slices.Contains(serverModes, c.Server.ServerMode) {
		return fmt.Errorf("invalid server mode %q: expected one of %v", c.Server.ServerMode, serverModes)
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.Server.HTTPPort)
	}
	if c.Engine.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout %s", c.Engine.ShutdownTimeout)
	}

	seen := make(map[string]string)
	for _, q := range c.Engine.Queues {
		for _, cat := range q.Categories {
			if other, ok := seen[cat]; ok && other != q.ID {
				return fmt.Errorf("category %q is mapped to queues %q and %q", cat, other, q.ID)
			}
			seen[cat] = q.ID
		}
	}

	return c.Engine.SchedulerConfig().Validate()
}

// SchedulerConfig resolves the queue definitions into the engine
// configuration. A queue named after DefaultQueue is added when missing.
func (e Engine) SchedulerConfig() scheduler.Config {
	defaultID := e.DefaultQueue
	if defaultID == "" {
		defaultID = scheduler.DefaultQueueID
	}

	cfg := scheduler.Config{
		DefaultQueueID: defaultID,
		Categories:     make(map[string]string),
	}

	hasDefault := false
	for _, q := range e.Queues {
		qc := scheduler.NewQueueConfig(q.ID, q.MaxConcurrency, q.Capacity)
		qc.Queuing = !q.DisableQueuing
		qc.Processing = !q.DisableProcessing
		cfg.Queues = append(cfg.Queues, qc)

		for _, cat := range q.Categories {
			cfg.Categories[cat] = q.ID
		}
		if q.ID == defaultID {
			hasDefault = true
		}
	}

	if !hasDefault {
		cfg.Queues = append(cfg.Queues, scheduler.NewQueueConfig(defaultID, defaultQueueConcurrency, 0))
	}

	return cfg
}
