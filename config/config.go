// Package config parses the declarative document that drives worker-pool
// reconciliation: a mapping from queue-combination keys to desired worker
// counts, optionally overlaid per environment, plus the handful of
// environment-variable inputs the supervisor reads at construction.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// AfterPreforkFunc is the caller-supplied hook run in the child between
// Fork and the worker's main loop. It must not assume that mutations to
// the state it's given propagate back to the parent: fork severs shared
// memory, so the hook runs against a copy.
type AfterPreforkFunc func(pool any, worker any)

// Config is the process's single configuration handle: the desired-count
// map reconciliation reads from, plus the inputs that produced it. Safe
// for concurrent use — a hangup reload mutates it while the supervisor's
// main loop may be reading WorkerCount/KnownQueues between ticks.
type Config struct {
	mu sync.RWMutex

	// desired is the effective desired-count map: queue-combination key ->
	// target worker count. Populated by Initialize, emptied by ResetQueues.
	desired map[string]int

	// Env selects which sub-map of the document overlays the top-level
	// entries; empty means no overlay (spec.md §6, RESQUE_ENV).
	Env string

	// Interval is the worker polling interval in seconds, passed through
	// to each spawned worker's main loop (spec.md §6, INTERVAL, default 5).
	Interval float64

	// ExplicitPath, if non-empty, is tried before the default search
	// paths (spec.md §4.2 file selection rule).
	ExplicitPath string

	// SearchPaths are the default candidate paths, tried in order when
	// ExplicitPath is empty or missing. Defaults to DefaultSearchPaths.
	SearchPaths []string

	// InMemory, if non-nil, is used verbatim instead of reading any file
	// — the highest-precedence source (spec.md §6, "overridden again by
	// an in-memory map passed at construction").
	InMemory map[string]int

	// AppName tags the log prefix (resque-pool-manager[<app>][<pid>]).
	// Supplements the distilled spec with the original's APP_NAME knob.
	AppName string

	// Pidfile, if non-empty, receives the supervisor's own pid at start.
	// Supplements the distilled spec with the original's pidfile support.
	Pidfile string

	// AfterPrefork, if non-nil, is invoked by the work subcommand before
	// the worker body runs. May be nil. The work subcommand builds its
	// own Config with New, which leaves this field nil, so a hook set on
	// the supervisor's Config does not run in re-exec'd children.
	AfterPrefork AfterPreforkFunc

	initialized bool
}

// DefaultSearchPaths is the ordered list of candidate config files tried
// when no explicit path is given or the explicit path is missing
// (spec.md §6).
var DefaultSearchPaths = []string{
	"resque-pool.yml",
	filepath.Join("config", "resque-pool.yml"),
}

// New builds a Config from the recognized environment variables
// (spec.md §6: RESQUE_ENV, INTERVAL, RESQUE_POOL_CONFIG) with the
// supplemented APP_NAME/RESQUE_POOL_PIDFILE knobs layered on top.
// Callers may further adjust fields (InMemory, AfterPrefork, SearchPaths)
// before the first Initialize call.
func New() *Config {
	c := &Config{
		Env:         os.Getenv("RESQUE_ENV"),
		Interval:    5,
		SearchPaths: DefaultSearchPaths,
		AppName:     os.Getenv("APP_NAME"),
		Pidfile:     os.Getenv("RESQUE_POOL_PIDFILE"),
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Interval = f
		}
	}
	if v := os.Getenv("RESQUE_POOL_CONFIG"); v != "" {
		c.ExplicitPath = v
	}
	return c
}

// Initialize loads and parses the configuration document (unless an
// in-memory map was supplied), applies the environment overlay, and
// filters the result to integer-valued entries only. When InMemory is
// non-nil, every call copies it into the desired-count map and reads no
// file.
func (c *Config) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.InMemory != nil {
		c.desired = cloneIntMap(c.InMemory)
		c.initialized = true
		return nil
	}

	path, err := c.resolvePath()
	if err != nil {
		return err
	}

	var raw []byte
	if path == "" {
		// No file found and no in-memory config: empty effective map, a
		// no-op steady state (spec.md §7, "Missing configuration file").
		c.desired = map[string]int{}
		c.initialized = true
		return nil
	}

	raw, err = readDocument(path)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	c.desired = effectiveMap(doc, c.Env)
	c.initialized = true
	return nil
}

// resolvePath implements spec.md §4.2's file-selection rule: an explicit
// path takes precedence; if it doesn't exist, log and fall back to the
// default search paths, first existing wins. Returns "" if nothing is
// found.
func (c *Config) resolvePath() (string, error) {
	if c.ExplicitPath != "" {
		if fileExists(c.ExplicitPath) {
			return c.ExplicitPath, nil
		}
		fmt.Fprintf(os.Stderr, "resque-pool: config file %q not found, falling back to search path\n", c.ExplicitPath)
	}

	for _, candidate := range c.SearchPaths {
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// scriptedExtensions are the extensions treated as executable templates
// whose captured stdout is parsed as the document, rather than raw YAML
// (spec.md §4.2/§6, "scripted configuration").
var scriptedExtensions = map[string]bool{
	".erb": true,
	".rb":  true,
}

// readDocument returns the bytes to parse as YAML: the file's raw
// contents, or — for a scripted template — the captured stdout of
// executing it as a subprocess (the Go-idiomatic rendition of "execute
// it in a side-effect-capturing context").
func readDocument(path string) ([]byte, error) {
	if scriptedExtensions[strings.ToLower(filepath.Ext(path))] {
		cmd := exec.Command(path)
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("execute scripted config: %w", err)
		}
		return out, nil
	}
	return os.ReadFile(path)
}

// effectiveMap computes the overlay described in spec.md §4.2/§6: the
// environment's sub-map (if env is non-empty and present) merged on top
// of the document's integer-valued top-level entries, with every
// non-integer top-level entry (including other environments' sub-maps)
// discarded in the same pass.
func effectiveMap(doc map[string]any, env string) map[string]int {
	result := make(map[string]int)

	for key, val := range doc {
		if key == env {
			continue
		}
		if n, ok := asInt(val); ok {
			result[key] = n
		}
	}

	if env != "" {
		if sub, ok := doc[env]; ok {
			if subMap, ok := sub.(map[string]any); ok {
				for key, val := range subMap {
					if n, ok := asInt(val); ok {
						result[key] = n
					}
				}
			}
		}
	}

	return result
}

// asInt accepts the numeric shapes yaml.v3 produces for a plain integer
// scalar (int, int64, or — for documents unmarshaled via map[string]any
// — occasionally float64) without accepting strings or null.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func cloneIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WorkerCount returns the desired count for the key, or 0 if absent
// (spec.md §4.2, also the law "worker-count(k) = 0 for any k not in
// known-queues()").
func (c *Config) WorkerCount(queues string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.desired[queues]
}

// KnownQueues enumerates all queue-combination keys currently in the
// desired-count map.
func (c *Config) KnownQueues() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.desired))
	for k := range c.desired {
		out = append(out, k)
	}
	return out
}

// DesiredCounts returns a snapshot of the full desired-count map, used
// by the pool package's maintainWorkerCount to compute the union of keys against the
// census without holding Config's lock across reconciliation.
func (c *Config) DesiredCounts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneIntMap(c.desired)
}

// ResetQueues empties the desired-count map so the next Initialize call
// reparses from source rather than returning a cached map (spec.md
// §4.2). InMemory-sourced configs are also cleared: a reset always means
// "discard whatever Initialize last computed."
func (c *Config) ResetQueues() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.desired = nil
	c.initialized = false
}

// ZeroAll sets every known key's desired count to zero in place, without
// discarding which keys are known — used by the window-change handler
// (spec.md §4.4) to drain every worker while keeping AllKnownQueues
// accurate for any key still occupied in the census.
func (c *Config) ZeroAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.desired {
		c.desired[k] = 0
	}
}
