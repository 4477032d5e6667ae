package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"energylogger/pkg/runtime/constant"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// Decoder parses the raw content of a definition file.
type Decoder[T any] func(data []byte) (T, error)

type FileInfo struct {
	Path      string    `json:"path"`
	ModTime   time.Time `json:"modTime"`
	Loaded    bool      `json:"loaded"`
	LastError string    `json:"lastError,omitempty"`
}

// ConfigStore caches the last successfully decoded value of one definition
// file together with the modification time it was read at.
type ConfigStore[T any] struct {
	path   string
	decode Decoder[T]

	mux     sync.RWMutex
	value   T
	loaded  bool
	modTime time.Time
	// modification time of the last attempt, successful or not
	seen    time.Time
	lastErr error
}

func NewConfigStore[T any](path string, decode Decoder[T]) *ConfigStore[T] {
	return &ConfigStore[T]{path: path, decode: decode}
}

func (cs *ConfigStore[T]) Path() string {
	return cs.path
}

// Load reads and decodes the file unconditionally. Errors wrap
// constant.ErrConfig; on error the previous value stays in effect.
func (cs *ConfigStore[T]) Load() (T, error) {
	cs.mux.Lock()
	defer cs.mux.Unlock()

	fi, err := os.Stat(cs.path)
	if err != nil {
		cs.lastErr = fmt.Errorf("%w: stat %s: %w", constant.ErrConfig, cs.path, err)
		return cs.value, cs.lastErr
	}
	if err := cs.load(fi.ModTime()); err != nil {
		return cs.value, err
	}
	return cs.value, nil
}

// ReloadIfChanged returns the current value, re-reading the file first when
// its modification time differs from the last attempt. A failed reload is
// logged and the previous value is returned. The second result reports
// whether a new value was loaded.
func (cs *ConfigStore[T]) ReloadIfChanged() (T, bool) {
	cs.mux.Lock()
	defer cs.mux.Unlock()

	fi, err := os.Stat(cs.path)
	if err != nil {
		if cs.lastErr == nil {
			klog.InfoS("Failed to stat definition, keeping previous value", "path", cs.path, "err", err)
		}
		cs.lastErr = fmt.Errorf("%w: stat %s: %w", constant.ErrConfig, cs.path, err)
		return cs.value, false
	}
	if cs.loaded && fi.ModTime().Equal(cs.seen) {
		return cs.value, false
	}
	if !cs.loaded && cs.lastErr != nil && fi.ModTime().Equal(cs.seen) {
		return cs.value, false
	}

	if err := cs.load(fi.ModTime()); err != nil {
		klog.InfoS("Failed to reload definition, keeping previous value", "path", cs.path, "err", err)
		return cs.value, false
	}
	klog.V(3).InfoS("Reloaded definition", "path", cs.path, "modTime", cs.modTime)
	return cs.value, true
}

// Current returns the cached value without touching the file.
func (cs *ConfigStore[T]) Current() (T, bool) {
	cs.mux.RLock()
	defer cs.mux.RUnlock()
	return cs.value, cs.loaded
}

func (cs *ConfigStore[T]) Info() FileInfo {
	cs.mux.RLock()
	defer cs.mux.RUnlock()
	info := FileInfo{Path: cs.path, ModTime: cs.modTime, Loaded: cs.loaded}
	if cs.lastErr != nil {
		info.LastError = cs.lastErr.Error()
	}
	return info
}

func (cs *ConfigStore[T]) load(modTime time.Time) error {
	cs.seen = modTime
	data, err := readFile(cs.path)
	if err != nil {
		cs.lastErr = fmt.Errorf("%w: read %s: %w", constant.ErrConfig, cs.path, err)
		return cs.lastErr
	}
	v, err := cs.decode(data)
	if err != nil {
		cs.lastErr = fmt.Errorf("%w: decode %s: %w", constant.ErrConfig, cs.path, err)
		return cs.lastErr
	}
	cs.value = v
	cs.loaded = true
	cs.modTime = modTime
	cs.lastErr = nil
	return nil
}

// readFile retries while another process holds the file open exclusively.
func readFile(path string) ([]byte, error) {
	var data []byte
	var readErr error
	backoff := wait.Backoff{Duration: 10 * time.Millisecond, Factor: 2, Steps: 4}
	err := wait.ExponentialBackoff(backoff, func() (bool, error) {
		data, readErr = os.ReadFile(path)
		if readErr == nil {
			return true, nil
		}
		if isEphemeralError(readErr) {
			klog.V(5).InfoS("Definition busy, retrying", "path", path, "err", readErr)
			return false, nil
		}
		return false, readErr
	})
	if err != nil && readErr != nil {
		return nil, readErr
	}
	return data, err
}
