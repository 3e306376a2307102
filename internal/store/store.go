// internal/store/store.go

// Package store is the bridge's non-volatile key-value state. It holds
// the calibrated homing limit; other keys in the file (network
// credentials and the like, owned by other tooling) are preserved
// verbatim across saves.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const keyHomingLimit = "homing_limit"

var ErrNotFound = errors.New("store: key not found")

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// LoadLimit returns the persisted homing limit in raw encoder counts.
// A missing file or missing key is not an error: the drive simply has
// no calibration yet.
func (s *Store) LoadLimit() (int32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return 0, false, err
	}

	raw, ok := kv[keyHomingLimit]
	if !ok {
		return 0, false, nil
	}

	v, err := asInt32(raw)
	if err != nil {
		return 0, false, fmt.Errorf("store: %s: %w", keyHomingLimit, err)
	}
	return v, true, nil
}

// SaveLimit persists the homing limit, keeping every other key intact.
// The file is replaced atomically (write to a temp file, then rename)
// so a power cut mid-save never leaves a half-written state file.
func (s *Store) SaveLimit(v int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return err
	}

	kv[keyHomingLimit] = int(v)
	return s.write(kv)
}

func (s *Store) read() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	kv := map[string]any{}
	if err := yaml.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	if kv == nil {
		kv = map[string]any{}
	}
	return kv, nil
}

func (s *Store) write(kv map[string]any) error {
	data, err := yaml.Marshal(kv)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

func asInt32(raw any) (int32, error) {
	switch v := raw.(type) {
	case int:
		return int32(v), nil
	case int64:
		return int32(v), nil
	case uint64:
		return int32(v), nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", raw)
	}
}
