// Package settings persists small client-side preferences, such as the API
// endpoint the CLI talks to, across invocations.
package settings

import (
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/boltdb/bolt"
)

// EndpointKey is where the API endpoint lives. The value is JSON encoded.
const EndpointKey = "clusterdash.api.endpoint"

// DefaultEndpoint is used when no endpoint has been configured.
const DefaultEndpoint = "/api"

// PredefinedEndpoints are offered by `endpoint list`.
var PredefinedEndpoints = []string{"/api", "http://localhost:32333", "http://localhost:5691/api"}

var (
    ErrClosed   = errors.New("settings: store closed")
    ErrEmptyKey = errors.New("settings: empty key")
)

var bucket = []byte("settings")

// Store is a string key/value store. Get reports whether the key exists.
type Store interface {
    Get(key string) (string, bool, error)
    Set(key, value string) error
    Delete(key string) error
    Keys() ([]string, error)
    Close() error
}

// DefaultPath is <user config dir>/clusterdash/settings.db.
func DefaultPath() (string, error) {
    dir, err := os.UserConfigDir()
    if err != nil { return "", err }
    return filepath.Join(dir, "clusterdash", "settings.db"), nil
}

type boltStore struct {
    db *bolt.DB
}

// Open opens (creating if needed) a bolt-backed store at path.
func Open(path string) (Store, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return nil, err }
    db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
    if err != nil { return nil, err }
    if err := db.Update(func(tx *bolt.Tx) error {
        _, err := tx.CreateBucketIfNotExists(bucket)
        return err
    }); err != nil {
        db.Close()
        return nil, err
    }
    return &boltStore{db: db}, nil
}

func (s *boltStore) Get(key string) (string, bool, error) {
    var (
        val   string
        found bool
    )
    err := s.db.View(func(tx *bolt.Tx) error {
        if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
            val, found = string(v), true
        }
        return nil
    })
    return val, found, mapClosed(err)
}

func (s *boltStore) Set(key, value string) error {
    if key == "" { return ErrEmptyKey }
    return mapClosed(s.db.Update(func(tx *bolt.Tx) error {
        return tx.Bucket(bucket).Put([]byte(key), []byte(value))
    }))
}

func (s *boltStore) Delete(key string) error {
    return mapClosed(s.db.Update(func(tx *bolt.Tx) error {
        return tx.Bucket(bucket).Delete([]byte(key))
    }))
}

func (s *boltStore) Keys() ([]string, error) {
    var keys []string
    err := s.db.View(func(tx *bolt.Tx) error {
        return tx.Bucket(bucket).ForEach(func(k, _ []byte) error {
            keys = append(keys, string(k))
            return nil
        })
    })
    return keys, mapClosed(err)
}

func (s *boltStore) Close() error { return s.db.Close() }

func mapClosed(err error) error {
    if errors.Is(err, bolt.ErrDatabaseNotOpen) { return ErrClosed }
    return err
}

type memStore struct {
    mu     sync.RWMutex
    vals   map[string]string
    closed bool
}

// NewMemory returns a store that lives only as long as the process.
func NewMemory() Store { return &memStore{vals: map[string]string{}} }

func (s *memStore) Get(key string) (string, bool, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    if s.closed { return "", false, ErrClosed }
    v, ok := s.vals[key]
    return v, ok, nil
}

func (s *memStore) Set(key, value string) error {
    if key == "" { return ErrEmptyKey }
    s.mu.Lock(); defer s.mu.Unlock()
    if s.closed { return ErrClosed }
    s.vals[key] = value
    return nil
}

func (s *memStore) Delete(key string) error {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.closed { return ErrClosed }
    delete(s.vals, key)
    return nil
}

func (s *memStore) Keys() ([]string, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    if s.closed { return nil, ErrClosed }
    keys := make([]string, 0, len(s.vals))
    for k := range s.vals { keys = append(keys, k) }
    sort.Strings(keys)
    return keys, nil
}

func (s *memStore) Close() error {
    s.mu.Lock(); defer s.mu.Unlock()
    s.closed = true
    return nil
}

// Endpoint returns the configured API endpoint. A missing key, a JSON null or
// a value that is not a JSON string all yield DefaultEndpoint.
func Endpoint(s Store) string {
    if s == nil { return DefaultEndpoint }
    raw, ok, err := s.Get(EndpointKey)
    if err != nil || !ok { return DefaultEndpoint }
    var v *string
    if err := json.Unmarshal([]byte(raw), &v); err != nil || v == nil { return DefaultEndpoint }
    return *v
}

// SetEndpoint stores endpoint JSON encoded.
func SetEndpoint(s Store, endpoint string) error {
    endpoint = strings.TrimSpace(endpoint)
    if endpoint == "" { return errors.New("settings: empty endpoint") }
    b, err := json.Marshal(endpoint)
    if err != nil { return err }
    return s.Set(EndpointKey, string(b))
}

// ResetEndpoint removes the stored endpoint so DefaultEndpoint applies again.
func ResetEndpoint(s Store) error { return s.Delete(EndpointKey) }
