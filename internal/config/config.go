// Package config handles nornicorpus configuration via environment
// variables, with a single optional YAML overlay for the manager byte
// budget and planner and executor tuning.
//
// Configuration is loaded with LoadFromEnv() and validated with
// Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables:
//   - NORNICORPUS_DATA_DIR
//   - NORNICORPUS_MANAGER_BYTE_BUDGET
//   - NORNICORPUS_PLANNER_EXHAUSTIVE_THRESHOLD
//   - NORNICORPUS_PLANNER_HILLCLIMB_REJECT_FACTOR
//   - NORNICORPUS_EXECUTOR_BACKGROUND_TASKS
//   - NORNICORPUS_EXECUTOR_QUEUE_CAPACITY
//
// For the complete list, see the Config struct field documentation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all nornicorpus configuration.
type Config struct {
	Manager  ManagerConfig
	Planner  PlannerConfig
	Executor ExecutorConfig
	Logging  LoggingConfig
}

// ManagerConfig controls the corpus manager (spec.md §4.8).
type ManagerConfig struct {
	// DataDir is the base directory holding one subdirectory per corpus.
	DataDir string
	// ByteBudget is the total in-memory size the cache GC pass targets.
	ByteBudget int64
	// WriterCheckpointPoll is loaded from NORNICORPUS_MANAGER_WRITER_POLL,
	// but the background writer does not read it: it checks for an
	// interruption request once at each of its four checkpoints.
	WriterCheckpointPoll time.Duration
}

// PlannerConfig controls the planner (spec.md §4.6): three toggleable
// rewrite passes and the join-order search.
type PlannerConfig struct {
	// EnableUnboundRegexRewrite toggles pass 1.
	EnableUnboundRegexRewrite bool
	// EnableOperandSwap toggles pass 2.
	EnableOperandSwap bool
	// EnableEdgeAnnoRewrite toggles pass 3.
	EnableEdgeAnnoRewrite bool
	// EnableParallelization is loaded from
	// NORNICORPUS_PLANNER_PARALLELIZATION, but neither the planner nor
	// the executor reads it: parallel join variants are chosen by the
	// executor whenever ExecutorConfig.NumBackgroundTasks >= 2.
	EnableParallelization bool
	// ExhaustiveOrderThreshold is the max join count that still gets
	// exhaustive permutation search; above it, hill-climbing is used.
	ExhaustiveOrderThreshold int
	// HillClimbRejectFactor is multiplied by the join count to get the
	// number of consecutive rejections that stop the hill climb.
	HillClimbRejectFactor int
	// HillClimbOffspring is how many swapped candidates are tried per
	// hill-climb generation.
	HillClimbOffspring int
}

// ExecutorConfig controls the pull-based executor (spec.md §4.7).
type ExecutorConfig struct {
	// NumBackgroundTasks is the worker-pool size for parallel joins;
	// <2 disables parallel variants entirely.
	NumBackgroundTasks int
	// QueueCapacity bounds the producer-consumer channel used by
	// parallel index-seed and nested-loop joins.
	QueueCapacity int
}

// LoggingConfig controls the zap logger used by the manager and
// background writer.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Development enables human-friendly console encoding instead of JSON.
	Development bool
}

// yamlOverlay mirrors the subset of Config an operator may override via
// a nornicorpus.yaml file; env vars are applied after this and win.
type yamlOverlay struct {
	Manager struct {
		ByteBudget string `yaml:"byte_budget"`
	} `yaml:"manager"`
	Planner struct {
		ExhaustiveOrderThreshold int `yaml:"exhaustive_order_threshold"`
		HillClimbRejectFactor    int `yaml:"hill_climb_reject_factor"`
		HillClimbOffspring       int `yaml:"hill_climb_offspring"`
	} `yaml:"planner"`
	Executor struct {
		NumBackgroundTasks int `yaml:"num_background_tasks"`
		QueueCapacity      int `yaml:"queue_capacity"`
	} `yaml:"executor"`
}

// LoadFromEnv builds a Config from environment variables. If
// nornicorpus.yaml (or the path named by NORNICORPUS_CONFIG_FILE)
// exists, it is loaded first and layered under the environment, so any
// variable that is actually set still wins.
func LoadFromEnv() *Config {
	cfg := &Config{
		Manager: ManagerConfig{
			DataDir:              "./data",
			ByteBudget:           parseMemorySize("2GB"),
			WriterCheckpointPoll: 50 * time.Millisecond,
		},
		Planner: PlannerConfig{
			EnableUnboundRegexRewrite: true,
			EnableOperandSwap:         true,
			EnableEdgeAnnoRewrite:     true,
			EnableParallelization:     true,
			ExhaustiveOrderThreshold:  6,
			HillClimbRejectFactor:     5,
			HillClimbOffspring:        4,
		},
		Executor: ExecutorConfig{
			NumBackgroundTasks: 4,
			QueueCapacity:      256,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
	}

	applyYAMLOverlay(cfg)

	cfg.Manager.DataDir = getEnv("NORNICORPUS_DATA_DIR", cfg.Manager.DataDir)
	cfg.Manager.ByteBudget = getEnvMemorySize("NORNICORPUS_MANAGER_BYTE_BUDGET", cfg.Manager.ByteBudget)
	cfg.Manager.WriterCheckpointPoll = getEnvDuration("NORNICORPUS_MANAGER_WRITER_POLL", cfg.Manager.WriterCheckpointPoll)

	cfg.Planner.EnableUnboundRegexRewrite = getEnvBool("NORNICORPUS_PLANNER_REGEX_REWRITE", cfg.Planner.EnableUnboundRegexRewrite)
	cfg.Planner.EnableOperandSwap = getEnvBool("NORNICORPUS_PLANNER_OPERAND_SWAP", cfg.Planner.EnableOperandSwap)
	cfg.Planner.EnableEdgeAnnoRewrite = getEnvBool("NORNICORPUS_PLANNER_EDGE_ANNO_REWRITE", cfg.Planner.EnableEdgeAnnoRewrite)
	cfg.Planner.EnableParallelization = getEnvBool("NORNICORPUS_PLANNER_PARALLELIZATION", cfg.Planner.EnableParallelization)
	cfg.Planner.ExhaustiveOrderThreshold = getEnvInt("NORNICORPUS_PLANNER_EXHAUSTIVE_THRESHOLD", cfg.Planner.ExhaustiveOrderThreshold)
	cfg.Planner.HillClimbRejectFactor = getEnvInt("NORNICORPUS_PLANNER_HILLCLIMB_REJECT_FACTOR", cfg.Planner.HillClimbRejectFactor)
	cfg.Planner.HillClimbOffspring = getEnvInt("NORNICORPUS_PLANNER_HILLCLIMB_OFFSPRING", cfg.Planner.HillClimbOffspring)

	cfg.Executor.NumBackgroundTasks = getEnvInt("NORNICORPUS_EXECUTOR_BACKGROUND_TASKS", cfg.Executor.NumBackgroundTasks)
	cfg.Executor.QueueCapacity = getEnvInt("NORNICORPUS_EXECUTOR_QUEUE_CAPACITY", cfg.Executor.QueueCapacity)

	cfg.Logging.Level = getEnv("NORNICORPUS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Development = getEnvBool("NORNICORPUS_LOG_DEVELOPMENT", cfg.Logging.Development)

	return cfg
}

func applyYAMLOverlay(cfg *Config) {
	path := getEnv("NORNICORPUS_CONFIG_FILE", "nornicorpus.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return
	}
	if overlay.Manager.ByteBudget != "" {
		cfg.Manager.ByteBudget = parseMemorySize(overlay.Manager.ByteBudget)
	}
	if overlay.Planner.ExhaustiveOrderThreshold > 0 {
		cfg.Planner.ExhaustiveOrderThreshold = overlay.Planner.ExhaustiveOrderThreshold
	}
	if overlay.Planner.HillClimbRejectFactor > 0 {
		cfg.Planner.HillClimbRejectFactor = overlay.Planner.HillClimbRejectFactor
	}
	if overlay.Planner.HillClimbOffspring > 0 {
		cfg.Planner.HillClimbOffspring = overlay.Planner.HillClimbOffspring
	}
	if overlay.Executor.NumBackgroundTasks > 0 {
		cfg.Executor.NumBackgroundTasks = overlay.Executor.NumBackgroundTasks
	}
	if overlay.Executor.QueueCapacity > 0 {
		cfg.Executor.QueueCapacity = overlay.Executor.QueueCapacity
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.Manager.DataDir == "" {
		return fmt.Errorf("config: manager.data_dir must not be empty")
	}
	if c.Manager.ByteBudget <= 0 {
		return fmt.Errorf("config: manager.byte_budget must be positive")
	}
	if c.Planner.ExhaustiveOrderThreshold < 0 {
		return fmt.Errorf("config: planner.exhaustive_order_threshold must be >= 0")
	}
	if c.Executor.NumBackgroundTasks < 0 {
		return fmt.Errorf("config: executor.num_background_tasks must be >= 0")
	}
	if c.Executor.QueueCapacity <= 0 {
		return fmt.Errorf("config: executor.queue_capacity must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvMemorySize(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		return parseMemorySize(val)
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}
