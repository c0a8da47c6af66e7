// Package localstore persists client-only state: the star overlay, the plan
// indicator and recent searches. Values live in one JSON document on disk,
// keyed per user, and every mutation is written through before returning.
package localstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
)

// Keys of the values kept per user.
const (
	KeyStarred        = "starredIds"
	KeyPlan           = "gd_plan"
	KeyRecentSearches = "recentSearches"
)

// FileName is the name of the state document inside the state directory.
const FileName = "state.json"

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a durable key-value store holding JSON values.
type Store struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads the store kept in dir, creating dir if needed. A missing state
// file gives an empty store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &Store{path: filepath.Join(dir, FileName)}

	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// reloadLocked replaces the in-memory values with the state file, so a
// write merges into what other processes stored since. A missing or empty
// file is an empty store. Callers hold s.mu or own s exclusively.
func (s *Store) reloadLocked() error {
	data := make(map[string]json.RawMessage)
	raw, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read state: %w", err)
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parse state %s: %w", s.path, err)
		}
	}
	s.data = data
	return nil
}

// Path returns the location of the state document.
func (s *Store) Path() string {
	return s.path
}

// Get decodes the value under key into v. Reads see the state as of the
// last Open or write of this Store.
func (s *Store) Get(key string, v any) error {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Set stores v under key and writes the store to disk.
func (s *Store) Set(key string, v any) error {
	return s.Update(key, func(json.RawMessage, bool) (any, error) { return v, nil })
}

// Delete removes key and writes the store to disk. Deleting a missing key
// is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return err
	}
	old, ok := s.data[key]
	if !ok {
		return nil
	}
	delete(s.data, key)
	if err := s.flushLocked(); err != nil {
		s.data[key] = old
		return err
	}
	return nil
}

// Update replaces the value under key with the result of fn, holding the
// store lock for the whole read-modify-write. The state file is read again
// first, so fn receives the value currently on disk and whether it exists.
// If writing fails the previous value is kept.
func (s *Store) Update(key string, fn func(cur json.RawMessage, ok bool) (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(); err != nil {
		return err
	}

	cur, ok := s.data[key]
	next, err := fn(cur, ok)
	if err != nil {
		return err
	}
	enc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.data[key] = enc
	if err := s.flushLocked(); err != nil {
		if ok {
			s.data[key] = cur
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// flushLocked replaces the state file atomically. Callers hold s.mu.
func (s *Store) flushLocked() error {
	enc, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(enc)); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Namespace is the view of a Store for one user. Keys are suffixed with
// "_<userID>" so users sharing a machine never see each other's state.
type Namespace struct {
	store *Store
	user  string
}

// For returns the namespace of userID. An empty userID uses the bare legacy
// keys; sessions never use it, Migrate reads from it.
func (s *Store) For(userID string) *Namespace {
	return &Namespace{store: s, user: userID}
}

// User returns the user id of the namespace.
func (n *Namespace) User() string {
	return n.user
}

// Key returns the store key of key in this namespace.
func (n *Namespace) Key(key string) string {
	return NamespacedKey(key, n.user)
}

func (n *Namespace) Get(key string, v any) error {
	return n.store.Get(n.Key(key), v)
}

func (n *Namespace) Set(key string, v any) error {
	return n.store.Set(n.Key(key), v)
}

func (n *Namespace) Delete(key string) error {
	return n.store.Delete(n.Key(key))
}

func (n *Namespace) Update(key string, fn func(cur json.RawMessage, ok bool) (any, error)) error {
	return n.store.Update(n.Key(key), fn)
}

// NamespacedKey returns key suffixed with the user id.
func NamespacedKey(key, userID string) string {
	if userID == "" {
		return key
	}
	return key + "_" + userID
}
