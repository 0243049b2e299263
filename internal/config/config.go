// Package config loads the settings of a scheduler run from defaults, a YAML file and the
// positional command line form.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of one run.
type Config struct {
	Workers       int           `yaml:"workers"`        // number of workers; zero means len(quanta)
	QueueCapacity int           `yaml:"queue_capacity"` // workers that may be queued at once
	Quanta        []int         `yaml:"quanta"`         // quanta per worker
	Quantum       time.Duration `yaml:"quantum"`        // time slice length, e.g. "1s"
	ErrorPolicy   string        `yaml:"error_policy"`   // continue, fail-fast
	Body          string        `yaml:"body"`           // spin, sleep, block
	SleepInterval time.Duration `yaml:"sleep_interval"` // per-call pause of the sleep body
	RetryAttempts int           `yaml:"retry_attempts"` // attempts per body call; 1 disables retries
	RetryDelay    time.Duration `yaml:"retry_delay"`    // first backoff delay, doubled per retry
	LogLevel      string        `yaml:"log_level"`      // debug, info, warn, error
	LogFormat     string        `yaml:"log_format"`     // text, json
	MetricsAddr   string        `yaml:"metrics_addr"`   // empty disables the endpoint
}

// Default returns sensible defaults. Workers, queue capacity and quanta have none.
func Default() Config {
	return Config{
		Quantum:       time.Second,
		ErrorPolicy:   "continue",
		Body:          "spin",
		SleepInterval: 10 * time.Millisecond,
		RetryAttempts: 1,
		RetryDelay:    10 * time.Millisecond,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse config %s: %v", types.ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyArgs applies the positional form <num_workers> <queue_size> <q_1 ... q_n>. No
// arguments leave the config unchanged.
func (c *Config) ApplyArgs(args []string) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: expected <num_workers> <queue_size> <quanta...>", types.ErrInvalidConfig)
	}

	workers, err := parseCount("num_workers", args[0])
	if err != nil {
		return err
	}
	capacity, err := parseCount("queue_size", args[1])
	if err != nil {
		return err
	}
	if len(args) != 2+workers {
		return fmt.Errorf("%w: %d workers need %d quanta, got %d",
			types.ErrInvalidConfig, workers, workers, len(args)-2)
	}

	quanta := make([]int, workers)
	for i, arg := range args[2:] {
		q, err := parseCount(fmt.Sprintf("quanta[%d]", i), arg)
		if err != nil {
			return err
		}
		quanta[i] = q
	}

	c.Workers = workers
	c.QueueCapacity = capacity
	c.Quanta = quanta
	return nil
}

func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", types.ErrInvalidConfig, name, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", types.ErrInvalidConfig, name, n)
	}
	return n, nil
}

// Validate checks the settings that are known before the scheduler is built.
func (c *Config) Validate() error {
	if len(c.Quanta) == 0 {
		return fmt.Errorf("%w: no workers configured", types.ErrInvalidConfig)
	}
	if c.Workers != 0 && c.Workers != len(c.Quanta) {
		return fmt.Errorf("%w: %d workers but %d quanta", types.ErrInvalidConfig, c.Workers, len(c.Quanta))
	}
	for i, q := range c.Quanta {
		if q <= 0 {
			return fmt.Errorf("%w: quanta[%d] must be positive, got %d", types.ErrInvalidConfig, i, q)
		}
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue_capacity must be positive, got %d", types.ErrInvalidConfig, c.QueueCapacity)
	}
	if c.Quantum <= 0 {
		return fmt.Errorf("%w: quantum must be positive, got %v", types.ErrInvalidConfig, c.Quantum)
	}
	switch c.ErrorPolicy {
	case "", "continue", "fail-fast":
	default:
		return fmt.Errorf("%w: unknown error_policy %q", types.ErrInvalidConfig, c.ErrorPolicy)
	}
	switch c.Body {
	case "", "spin", "block":
	case "sleep":
		if c.SleepInterval <= 0 {
			return fmt.Errorf("%w: sleep body needs a positive sleep_interval", types.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown body %q", types.ErrInvalidConfig, c.Body)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry_attempts must not be negative, got %d", types.ErrInvalidConfig, c.RetryAttempts)
	}
	if c.RetryAttempts > 1 && c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry_delay must not be negative, got %v", types.ErrInvalidConfig, c.RetryDelay)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", types.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
