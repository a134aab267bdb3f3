package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/armchr/junitmig/internal/config"
	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

// Ledger remembers source files a run left unchanged, keyed by content hash and the
// fingerprint of the enabled cleanups. A file found in the ledger needs no query pass.
// False positives only skip a file; they never change one.
type Ledger struct {
	config     config.LedgerConfig
	filters    map[string]*bloom.BloomFilter
	mu         sync.RWMutex
	logger     *zap.Logger
	storageDir string
}

// New creates a ledger persisting one filter per scope under the storage directory.
func New(cfg config.LedgerConfig, logger *zap.Logger) (*Ledger, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("ledger is disabled in config")
	}
	cfg = cfg.GetDefaults()

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger storage directory: %w", err)
	}

	return &Ledger{
		config:     cfg,
		filters:    make(map[string]*bloom.BloomFilter),
		logger:     logger,
		storageDir: cfg.StorageDir,
	}, nil
}

// Key identifies a source text migrated with a set of cleanups.
func Key(content []byte, fingerprint string) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]) + "|" + fingerprint
}

func (l *Ledger) filter(scope string) *bloom.BloomFilter {
	l.mu.RLock()
	filter, exists := l.filters[scope]
	l.mu.RUnlock()
	if exists {
		return filter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if filter, exists := l.filters[scope]; exists {
		return filter
	}

	path := l.path(scope)
	filter, err := load(path)
	if err != nil {
		l.logger.Debug("Creating new ledger filter",
			zap.String("scope", scope),
			zap.Uint("expected_items", l.config.ExpectedItems),
			zap.Float64("false_positive_rate", l.config.FalsePositiveRate))
		filter = bloom.NewWithEstimates(l.config.ExpectedItems, l.config.FalsePositiveRate)
	} else {
		l.logger.Info("Loaded ledger from disk", zap.String("scope", scope), zap.String("path", path))
	}
	l.filters[scope] = filter
	return filter
}

// Record marks content as settled under fingerprint.
func (l *Ledger) Record(scope string, content []byte, fingerprint string) {
	f := l.filter(scope)
	l.mu.Lock()
	f.AddString(Key(content, fingerprint))
	l.mu.Unlock()
}

// Seen reports whether content was probably settled under fingerprint before.
func (l *Ledger) Seen(scope string, content []byte, fingerprint string) bool {
	f := l.filter(scope)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return f.TestString(Key(content, fingerprint))
}

// Save persists the filter of one scope.
func (l *Ledger) Save(scope string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	filter, exists := l.filters[scope]
	if !exists {
		return fmt.Errorf("no ledger found for scope: %s", scope)
	}
	return save(filter, l.path(scope))
}

// SaveAll persists every loaded filter.
func (l *Ledger) SaveAll() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for scope, filter := range l.filters {
		path := l.path(scope)
		if err := save(filter, path); err != nil {
			l.logger.Error("Failed to save ledger", zap.String("scope", scope), zap.Error(err))
			return err
		}
		l.logger.Info("Saved ledger to disk", zap.String("scope", scope), zap.String("path", path))
	}
	return nil
}

// Delete removes the filter of a scope from memory and disk.
func (l *Ledger) Delete(scope string) error {
	l.mu.Lock()
	delete(l.filters, scope)
	l.mu.Unlock()

	if err := os.Remove(l.path(scope)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete ledger file: %w", err)
	}
	l.logger.Info("Deleted ledger", zap.String("scope", scope))
	return nil
}

func (l *Ledger) path(scope string) string {
	sum := sha256.Sum256([]byte(scope))
	return filepath.Join(l.storageDir, hex.EncodeToString(sum[:8])+".bloom")
}

func save(filter *bloom.BloomFilter, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger file: %w", err)
	}
	defer file.Close()

	if _, err := filter.WriteTo(file); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

func load(path string) (*bloom.BloomFilter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer file.Close()

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return filter, nil
}
