package config

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// snapshot is the reference-counted (Config, RoutingTable) pair swapped
// atomically on every successful admin write, so a live config reload
// takes effect immediately instead of only after a restart.
type snapshot struct {
	cfg   *Config
	table RoutingTable
}

// Store holds the single-writer, many-readers (RCU) config snapshot for
// the lifetime of the process. Readers call Current/Resolve without
// blocking; writers go through Mutate, which persists to disk before
// swapping.
type Store struct {
	path string
	ptr  atomic.Pointer[snapshot]

	// writeMu serializes the persist-then-swap sequence; readers are
	// never blocked by it since they only ever touch ptr.
	writeMu sync.Mutex
}

// NewStore builds a Store from an already-loaded Config, materializing
// its routing table.
func NewStore(path string, cfg *Config) (*Store, error) {
	table, err := BuildRoutingTable(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.ptr.Store(&snapshot{cfg: cfg, table: table})
	return s, nil
}

// Current returns the active config and routing table as of the last
// successful Mutate. The returned values are immutable; callers must not
// mutate the Config's slices in place.
func (s *Store) Current() (*Config, RoutingTable) {
	snap := s.ptr.Load()
	return snap.cfg, snap.table
}

// Resolve is the host resolver, applied to the current snapshot.
func (s *Store) Resolve(hostHeader string) (ServiceBinding, bool) {
	_, table := s.Current()
	return table.Resolve(hostHeader)
}

// Mutate persists a new Config to disk, rebuilds its routing table, and
// atomically swaps the snapshot in, all while holding writeMu so
// concurrent admin writes serialize cleanly. On any failure the previous
// snapshot remains active and untouched. Apps are sorted by id in place
// before the swap, so the live snapshot stays in id order too, not just
// the file Save writes.
func (s *Store) Mutate(fn func(cfg *Config) (*Config, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, _ := s.Current()
	next, err := fn(current)
	if err != nil {
		return err
	}
	sortAppsByID(next.Apps)

	if err := Save(next, s.path); err != nil {
		return fmt.Errorf("could not save configuration: %w", err)
	}

	table, err := BuildRoutingTable(next)
	if err != nil {
		return err
	}

	s.ptr.Store(&snapshot{cfg: next, table: table})
	return nil
}

// ConfigHash is a stable xxhash of the apps list's YAML encoding, exposed
// by the admin API as a Config-Hash header so a UI can detect whether its
// last fetch is stale, the way caddyserver/caddy hashes the active JSON
// config for its own change-detection header.
func ConfigHash(apps []App) uint64 {
	sorted := append([]App(nil), apps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	data, _ := yaml.Marshal(sorted)
	return xxhash.Sum64(data)
}
