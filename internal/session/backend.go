package session

import "fmt"

// Storage keys, one per session field, under a fixed namespace prefix.
const (
	keyProvider  = "pistola:provider"
	keyContainer = "pistola:container"
	keyCount     = "pistola:count"
	keyAudio     = "pistola:audio"
	keyEvents    = "pistola:events"
	keyNextID    = "pistola:next_event_id"
)

// Backend is the persistence layer behind a Store. Values are opaque JSON.
// Get returns ok=false when the key has never been written.
type Backend interface {
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
	Close() error
}

// BackendConfig selects and parameterises a persistence backend.
type BackendConfig struct {
	Backend   string // "memory", "badger", "redis" or "file"
	Path      string // data directory (badger) or snapshot file (file)
	RedisAddr string
	RedisDB   int
}

// OpenBackend creates a Backend from configuration. An empty backend name
// falls back to memory so tests and dry runs need no setup.
func OpenBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "badger":
		return OpenBadgerBackend(cfg.Path)
	case "redis":
		return OpenRedisBackend(cfg.RedisAddr, cfg.RedisDB)
	case "file":
		return OpenFileBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}
