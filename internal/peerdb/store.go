// Package peerdb keeps the per-peer record file (user_records.json) in step
// with the WireGuard configuration. The configuration file stays the source
// of truth; records are informational and never consulted for lookups.
package peerdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/licht8/wg-qr-generator/internal/fsutil"
)

// Record statuses.
const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// Record describes one peer.
type Record struct {
	Username   string    `json:"username"`
	PublicKey  string    `json:"public_key,omitempty"`
	AllowedIPs string    `json:"allowed_ips,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// wireRecord is the on-disk shape. Timestamps are strings so records written
// by older tools with other layouts still load.
type wireRecord struct {
	Username   string `json:"username"`
	PublicKey  string `json:"public_key"`
	AllowedIPs string `json:"allowed_ips"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Store persists peer records as a JSON object keyed by username.
//
// Fields written by other tools are kept: each record is stored as a raw JSON
// object and only the known fields are overwritten on update.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore returns a Store backed by path. The file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the record for username.
func (s *Store) Get(username string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.load()
	if err != nil {
		return Record{}, false, err
	}
	obj, ok := raw[username]
	if !ok {
		return Record{}, false, nil
	}
	rec, err := decode(username, obj)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// List returns all records sorted by username.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Record, 0, len(names))
	for _, name := range names {
		rec, err := decode(name, raw[name])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Put creates or updates rec. CreatedAt is kept from an existing record and
// UpdatedAt is set to the current time. The file is re-read before every
// write so concurrent writers holding the configuration lock do not lose
// each other's changes.
func (s *Store) Put(rec Record) error {
	if rec.Username == "" {
		return errors.New("peerdb: put: username is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.load()
	if err != nil {
		return err
	}

	obj := raw[rec.Username]
	if obj == nil {
		obj = make(map[string]any)
	}
	now := s.now().UTC()
	if existing, err := decode(rec.Username, obj); err == nil && !existing.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	obj["username"] = rec.Username
	obj["status"] = rec.Status
	obj["created_at"] = rec.CreatedAt.Format(time.RFC3339)
	obj["updated_at"] = rec.UpdatedAt.Format(time.RFC3339)
	if rec.PublicKey != "" {
		obj["public_key"] = rec.PublicKey
	}
	if rec.AllowedIPs != "" {
		obj["allowed_ips"] = rec.AllowedIPs
	}
	raw[rec.Username] = obj

	return s.persist(raw)
}

// SetStatus updates the status of username, creating a minimal record if none
// exists.
func (s *Store) SetStatus(username, status string) error {
	rec, ok, err := s.Get(username)
	if err != nil {
		return err
	}
	if !ok {
		rec = Record{Username: username}
	}
	rec.Status = status
	return s.Put(rec)
}

func (s *Store) load() (map[string]map[string]any, error) {
	raw := make(map[string]map[string]any)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raw, nil
		}
		return nil, fmt.Errorf("peerdb: read store: %w", err)
	}
	if len(data) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("peerdb: parse store: %w", err)
	}
	return raw, nil
}

func (s *Store) persist(raw map[string]map[string]any) error {
	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return fmt.Errorf("peerdb: marshal store: %w", err)
	}
	data = append(data, '\n')
	dir, name := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("peerdb: create dir: %w", err)
	}
	if err := fsutil.WriteFileAtomic(dir, name, data, 0o600); err != nil {
		return fmt.Errorf("peerdb: write store: %w", err)
	}
	return nil
}

func decode(username string, obj map[string]any) (Record, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return Record{}, fmt.Errorf("peerdb: record %q: %w", username, err)
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("peerdb: record %q: %w", username, err)
	}
	rec := Record{
		Username:   w.Username,
		PublicKey:  w.PublicKey,
		AllowedIPs: w.AllowedIPs,
		Status:     w.Status,
		CreatedAt:  parseTime(w.CreatedAt),
		UpdatedAt:  parseTime(w.UpdatedAt),
	}
	if rec.Username == "" {
		rec.Username = username
	}
	return rec, nil
}
