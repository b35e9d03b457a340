package session

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/google/renameio/v2"
)

// FileBackend persists the whole session as one JSON snapshot, written
// atomically so a power cut mid-write never corrupts the stored session.
type FileBackend struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// OpenFileBackend loads the snapshot at path if it exists. A missing or
// unreadable snapshot starts empty rather than failing.
func OpenFileBackend(path string) (*FileBackend, error) {
	f := &FileBackend{path: path, data: make(map[string]json.RawMessage)}
	buf, err := os.ReadFile(path)
	if err != nil {
		return f, nil
	}
	// Malformed snapshots fall back to empty.
	_ = json.Unmarshal(buf, &f.data)
	if f.data == nil {
		f.data = make(map[string]json.RawMessage)
	}
	return f, nil
}

func (f *FileBackend) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	var val []byte
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (f *FileBackend) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw

	buf, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	return renameio.WriteFile(f.path, buf, 0o600)
}

func (f *FileBackend) Close() error { return nil }

var _ Backend = (*FileBackend)(nil)
