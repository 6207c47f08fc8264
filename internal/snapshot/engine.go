package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/lock"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

// SaveInfo is the payload of store.saved and store.loaded events.
type SaveInfo struct {
	Path  string      `json:"path"`
	Stats store.Stats `json:"stats"`
}

// ErrorInfo is the payload of store.error events.
type ErrorInfo struct {
	Op  string `json:"op"`
	Err string `json:"error"`
}

// Engine persists the store to a single snapshot file. Reads and writes of
// the file exclude each other through a context-aware mutex, and background
// save requests are funneled through a per-path serializer so concurrent
// requests collapse into one trailing write.
type Engine struct {
	path   string
	st     *store.Store
	bus    *bus.Bus
	fileMu *lock.Mutex
	ser    *Serializer
	logger *zap.Logger
}

// NewEngine creates an engine persisting st to path.
func NewEngine(path string, st *store.Store, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		path:   path,
		st:     st,
		bus:    b,
		fileMu: lock.NewMutex(),
		ser:    NewSerializer(),
		logger: logger,
	}
}

// Path returns the snapshot file path.
func (e *Engine) Path() string {
	return e.path
}

// BackupPath returns the sibling backup file path read when the main
// snapshot is missing or truncated.
func (e *Engine) BackupPath() string {
	return e.path + ".backup"
}

// Load reads the snapshot from disk into the store. A missing or
// under-sized main file falls back to the backup sibling; if neither
// yields usable bytes the store is left empty and Load returns nil. A
// structurally invalid snapshot is a load failure.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.fileMu.Lock(ctx); err != nil {
		return err
	}
	data, src, err := e.readCandidate()
	e.fileMu.Unlock()
	if err != nil {
		e.publishError("load snapshot", err)
		return err
	}
	if data == nil {
		e.logger.Info("no snapshot on disk, starting empty", zap.String("path", e.path))
		return nil
	}

	ex, err := Decode(data)
	if err != nil {
		err = fmt.Errorf("decode snapshot %s: %w", src, err)
		e.publishError("load snapshot", err)
		return err
	}

	e.st.Import(ex)
	stats := e.st.Stats()
	e.logger.Info("snapshot loaded",
		zap.String("path", src),
		zap.Int("chats", stats.Chats),
		zap.Int("messages", stats.Messages),
		zap.Int("contacts", stats.Contacts))
	e.publish(bus.KindStoreLoaded, SaveInfo{Path: src, Stats: stats})
	return nil
}

// readCandidate returns the bytes of the first readable snapshot file,
// preferring the main path over the backup. Missing and under-sized files
// are skipped, not errors.
func (e *Engine) readCandidate() ([]byte, string, error) {
	for _, p := range []string{e.path, e.BackupPath()} {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("stat snapshot: %w", err)
		}
		if info.Size() < MinSnapshotSize {
			e.logger.Warn("snapshot below minimum size, skipping",
				zap.String("path", p), zap.Int64("size", info.Size()))
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("read snapshot: %w", err)
		}
		return data, p, nil
	}
	return nil, "", nil
}

// SaveNow exports the store and writes the snapshot synchronously.
func (e *Engine) SaveNow(ctx context.Context) error {
	ex := e.st.Export()
	if err := e.writeExport(ctx, e.path, ex); err != nil {
		e.publishError("save snapshot", err)
		return err
	}

	e.st.MarkSaved(time.Now().UnixMilli())
	stats := e.st.Stats()
	e.logger.Debug("snapshot saved",
		zap.String("path", e.path),
		zap.Int("chats", stats.Chats),
		zap.Int("messages", stats.Messages))
	e.publish(bus.KindStoreSaved, SaveInfo{Path: e.path, Stats: stats})
	return nil
}

// RequestSave schedules a background save. Requests issued while a save is
// running collapse into a single trailing save.
func (e *Engine) RequestSave() {
	e.ser.Do(e.path, func() {
		if err := e.SaveNow(context.Background()); err != nil {
			e.logger.Error("background snapshot save failed", zap.Error(err))
		}
	})
}

// WriteBackupFile writes an export to the backup sibling. Used before a
// destructive history sync so a crash mid-sync can still recover the
// pre-sync state.
func (e *Engine) WriteBackupFile(ctx context.Context, ex *store.Export) error {
	if ex == nil {
		return nil
	}
	if err := e.writeExport(ctx, e.BackupPath(), ex); err != nil {
		return fmt.Errorf("write backup snapshot: %w", err)
	}
	return nil
}

// Flush waits for all scheduled background saves to finish.
func (e *Engine) Flush() {
	e.ser.Wait()
}

func (e *Engine) writeExport(ctx context.Context, path string, ex *store.Export) error {
	data, err := Encode(ex, time.Now())
	if err != nil {
		return err
	}
	if err := e.fileMu.Lock(ctx); err != nil {
		return err
	}
	defer e.fileMu.Unlock()
	return WriteAtomic(path, data)
}

func (e *Engine) publish(kind bus.Kind, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (e *Engine) publishError(op string, err error) {
	e.logger.Error(op+" failed", zap.Error(err))
	e.publish(bus.KindStoreError, ErrorInfo{Op: op, Err: err.Error()})
}
