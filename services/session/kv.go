package sessionsvc

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// KV is the persistence boundary of a session: flat string values read synchronously.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(keys ...string) error
}

type memoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() KV {
	return &memoryKV{values: make(map[string]string)}
}

func (kv *memoryKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	val, ok := kv.values[key]
	return val, ok
}

func (kv *memoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *memoryKV) Delete(keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, key := range keys {
		delete(kv.values, key)
	}
	return nil
}

// fileKV keeps the values in a JSON file, rewritten on every change.
type fileKV struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFileKV loads the session file at path; a missing file is an empty session.
func NewFileKV(path string) (KV, error) {
	if filepath.Ext(path) != ".json" {
		return nil, errors.Errorf("sessionsvc.NewFileKV(%s): session file must be a .json file", path)
	}
	kv := &fileKV{path: path, values: make(map[string]string)}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, errors.Wrapf(err, "sessionsvc.NewFileKV(%s)", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "sessionsvc.NewFileKV(%s)", path)
	}
	for key := range v.AllSettings() {
		kv.values[key] = v.GetString(key)
	}
	return kv, nil
}

func (kv *fileKV) Get(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	val, ok := kv.values[key]
	return val, ok
}

func (kv *fileKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return kv.flush()
}

func (kv *fileKV) Delete(keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, key := range keys {
		delete(kv.values, key)
	}
	return kv.flush()
}

// must be called with kv.mu held
func (kv *fileKV) flush() error {
	if err := os.MkdirAll(filepath.Dir(kv.path), 0o700); err != nil {
		return errors.Wrap(err, "sessionsvc.flush")
	}

	v := viper.New()
	v.SetConfigType("json")
	for key, val := range kv.values {
		v.Set(key, val)
	}
	if err := v.WriteConfigAs(kv.path); err != nil {
		return errors.Wrap(err, "sessionsvc.flush")
	}
	return os.Chmod(kv.path, 0o600)
}
