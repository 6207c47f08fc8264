package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.baileysd/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// MetricsAddr, when set, exposes Prometheus metrics over HTTP on the
	// given address (e.g. "127.0.0.1:9641").
	MetricsAddr string `toml:"metrics_addr"`

	Store StoreConfig `toml:"store"`
}

// StoreConfig tunes the in-memory store and its persistence.
type StoreConfig struct {
	// MaxMessagesPerChat caps retained messages per chat; the oldest by
	// message timestamp are evicted first.
	MaxMessagesPerChat int `toml:"max_messages_per_chat"`

	// AutoSaveIntervalMS schedules periodic snapshot writes. 0 disables
	// the timer (saves still happen on sync completion and shutdown).
	AutoSaveIntervalMS int `toml:"auto_save_interval_ms"`

	// ChunkSize bounds how many records a history sub-task applies
	// between cooperative yields.
	ChunkSize int `toml:"chunk_size"`

	// SnapshotPath overrides the snapshot file location. Empty means the
	// session directory's store.json.
	SnapshotPath string `toml:"snapshot_path"`

	// Backup behavior around a bulk history sync.
	BackupInMemory  bool `toml:"backup_in_memory"`
	BackupToDisk    bool `toml:"backup_to_disk"`
	IncrementalSave bool `toml:"incremental_save"`

	// A "latest" history batch above either threshold replaces
	// accumulated chats and messages instead of merging.
	SignificantChats    int `toml:"significant_chats"`
	SignificantMessages int `toml:"significant_messages"`

	// LiveBatchLimit drops larger live message batches while a bulk sync
	// is running.
	LiveBatchLimit int `toml:"live_batch_limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			MaxMessagesPerChat:  5000,
			AutoSaveIntervalMS:  30000,
			ChunkSize:           50,
			BackupInMemory:      true,
			BackupToDisk:        true,
			SignificantChats:    10,
			SignificantMessages: 100,
			LiveBatchLimit:      50,
		},
	}
}

// Load reads config from the given path. Returns an error if the file is
// missing; values absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to defaults
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// normalize clamps nonsensical numeric values back to defaults.
func (c *Config) normalize() {
	def := Default().Store
	if c.Store.MaxMessagesPerChat <= 0 {
		c.Store.MaxMessagesPerChat = def.MaxMessagesPerChat
	}
	if c.Store.AutoSaveIntervalMS < 0 {
		c.Store.AutoSaveIntervalMS = 0
	}
	if c.Store.ChunkSize <= 0 {
		c.Store.ChunkSize = def.ChunkSize
	}
	if c.Store.SignificantChats <= 0 {
		c.Store.SignificantChats = def.SignificantChats
	}
	if c.Store.SignificantMessages <= 0 {
		c.Store.SignificantMessages = def.SignificantMessages
	}
	if c.Store.LiveBatchLimit <= 0 {
		c.Store.LiveBatchLimit = def.LiveBatchLimit
	}
}
