package registry

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrNotFound is returned when an allow-list operation names an unknown
// device id.
var ErrNotFound = errors.New("device not found")

// Entry is an operator-authored allow-list record. Entries are created and
// removed only by explicit operator action and never expire.
type Entry struct {
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Frequency   float64   `json:"frequency"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	Whitelisted bool      `json:"whitelisted"`
}

// Allowlist is the persistent, operator-curated set of known-safe device
// ids. It maintains a best-effort .bak sibling of its store and restores
// from it when the primary is missing or corrupt.
type Allowlist struct {
	mu      sync.Mutex
	entries map[string]Entry

	store  jsonFile
	backup string
	logger *slog.Logger
}

// WithAllowlistLogger sets the logger for the allow-list.
func WithAllowlistLogger(logger *slog.Logger) func(*Allowlist) {
	return func(a *Allowlist) {
		a.logger = logger
	}
}

// OpenAllowlist loads the allow-list from path. A missing or unparsable
// primary store never fails: it falls back to the .bak copy when that one is
// valid and non-empty, and to an empty allow-list otherwise.
func OpenAllowlist(path string, options ...func(*Allowlist)) *Allowlist {
	a := &Allowlist{
		entries: make(map[string]Entry),
		store:   jsonFile{path: path},
		backup:  path + ".bak",
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(a)
	}

	a.load()
	return a
}

func (a *Allowlist) load() {
	entries := make(map[string]Entry)
	found, err := a.store.Load(&entries)
	if err != nil {
		a.logger.Warn("allow-list store unreadable, checking backup", slog.String("error", err.Error()))
		entries = nil
	}
	if !found {
		a.logger.Info("no allow-list store, starting empty", slog.String("path", a.store.path))
	}

	if len(entries) > 0 {
		a.entries = entries
		a.refreshBackup()
		return
	}

	// Primary empty or corrupt: restore from backup when it has content.
	restored := make(map[string]Entry)
	if found, err := (jsonFile{path: a.backup}).Load(&restored); err == nil && found && len(restored) > 0 {
		a.entries = restored
		a.logger.Warn("restored allow-list from backup", slog.Int("entries", len(restored)))
		if err := a.store.Save(a.entries); err != nil {
			a.logger.Error("rewriting restored allow-list", slog.String("error", err.Error()))
		}
	}
}

// Put creates or replaces an allow-list entry and persists the store.
func (a *Allowlist) Put(id string, e Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e.Whitelisted = true
	if e.FirstSeen.IsZero() {
		e.FirstSeen = time.Now().UTC()
	}
	e.LastSeen = time.Now().UTC()
	a.entries[id] = e

	return a.save()
}

// Remove deletes an entry. It returns ErrNotFound when the id is absent so
// callers can surface a specific rejection.
func (a *Allowlist) Remove(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entries[id]; !ok {
		return ErrNotFound
	}
	delete(a.entries, id)

	return a.save()
}

// Get returns the entry for id, if present.
func (a *Allowlist) Get(id string) (Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[id]
	return e, ok
}

// Contains reports allow-list membership.
func (a *Allowlist) Contains(id string) bool {
	_, ok := a.Get(id)
	return ok
}

// All returns a copy of the full allow-list.
func (a *Allowlist) All() map[string]Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]Entry, len(a.entries))
	for id, e := range a.entries {
		out[id] = e
	}
	return out
}

// Len returns the number of entries.
func (a *Allowlist) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Flush persists the current state.
func (a *Allowlist) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.save()
}

func (a *Allowlist) save() error {
	if err := a.store.Save(a.entries); err != nil {
		return err
	}
	a.refreshBackup()
	return nil
}

func (a *Allowlist) refreshBackup() {
	if err := copyFile(a.store.path, a.backup); err != nil {
		a.logger.Warn("refreshing allow-list backup", slog.String("error", err.Error()))
	}
}
