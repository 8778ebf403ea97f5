package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Manager owns the live configuration. Readers get a consistent snapshot
// from Get; Load and the file watcher swap the snapshot atomically so a
// running batch never observes a partial update.
type Manager struct {
	path   string
	logger *slog.Logger

	current   atomic.Pointer[Config]
	watchers  []func(*Config)
	watcherMu sync.RWMutex
	stopWatch chan struct{}
	watchOnce sync.Once
}

// NewManager creates a manager reading from path. The manager starts with
// the built-in defaults; call Load to apply the file and environment.
func NewManager(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		path:      path,
		logger:    logger,
		stopWatch: make(chan struct{}),
	}
	m.current.Store(Default())
	return m
}

// Get returns the current snapshot. The returned value must be treated as
// read-only; it is shared with every other reader.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load layers the file and environment over the defaults, validates, and
// publishes the result. On any error the previous snapshot stays live.
func (m *Manager) Load() error {
	cfg := Default()

	if err := m.loadFile(cfg); err != nil {
		return fmt.Errorf("config file %s: %w", m.path, err)
	}
	m.applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.current.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func (m *Manager) loadFile(cfg *Config) error {
	if m.path == "" {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	// Unmarshal into a zero overlay first so only keys present in the file
	// override defaults.
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	merge(cfg, &overlay)
	return nil
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := os.Getenv("INVERNO_PROPAGATION_ALGORITHM"); v != "" {
		cfg.Propagation.Algorithm = v
	}
	if v := os.Getenv("INVERNO_PROPAGATION_RESTART"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Propagation.Restart = f
		}
	}
	if v := os.Getenv("INVERNO_PROPAGATION_TOLERANCE"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Propagation.Tolerance = f
		}
	}
	if v := os.Getenv("INVERNO_PROPAGATION_MAX_ITERATIONS"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Propagation.MaxIterations = n
		}
	}
	if v := os.Getenv("INVERNO_REVERSAL_MIN_OVERLAP"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Reversal.MinOverlap = n
		}
	}
	if v := os.Getenv("INVERNO_FUSION_CALIBRATION"); v != "" {
		cfg.Fusion.Calibration = v
	}
	if v := os.Getenv("INVERNO_FUSION_MISSING_POLICY"); v != "" {
		cfg.Fusion.MissingPolicy = v
	}
	if v := os.Getenv("INVERNO_BATCH_WORKERS"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if v := os.Getenv("INVERNO_BATCH_FAIL_FAST"); v != "" {
		cfg.Batch.FailFast = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("INVERNO_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("INVERNO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("INVERNO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}

// OnChange registers a callback run after every successful Load, including
// reloads triggered by the file watcher.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

// Watch reloads the configuration whenever the file changes. It returns
// after the watcher is installed; reloads happen on a background goroutine
// until Close. A reload that fails validation is logged and skipped.
func (m *Manager) Watch() error {
	if m.path == "" {
		return fmt.Errorf("no config path to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace the file, which drops a watch
	// on the file itself.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(m.path), err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(m.path)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := m.Load(); err != nil {
					m.logger.Warn("config reload rejected", "path", m.path, "error", err)
					continue
				}
				m.logger.Info("config reloaded", "path", m.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("config watcher error", "error", err)
			case <-m.stopWatch:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watcher. Safe to call more than once.
func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}
