package histsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/snapshot"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

// Saver is the persistence surface the controller drives. Implemented by
// snapshot.Engine.
type Saver interface {
	SaveNow(ctx context.Context) error
	WriteBackupFile(ctx context.Context, ex *store.Export) error
}

// Options tunes the controller. Zero values fall back to defaults.
type Options struct {
	// A "latest" batch larger than either threshold replaces accumulated
	// chats and messages instead of merging into them.
	SignificantChats    int
	SignificantMessages int

	// ChunkSize bounds how many records a sub-task applies between
	// context checks.
	ChunkSize int

	// BackupInMemory takes a restorable deep copy of the store before the
	// first batch mutates it. BackupToDisk additionally writes that copy
	// to the snapshot's .backup sibling.
	BackupInMemory bool
	BackupToDisk   bool

	// IncrementalSave triggers a snapshot write after any batch whose
	// processing took longer than IncrementalSaveAfter, without waiting
	// for the sync to complete.
	IncrementalSave      bool
	IncrementalSaveAfter time.Duration
}

const (
	defaultSignificantChats     = 10
	defaultSignificantMessages  = 100
	defaultChunkSize            = 50
	defaultIncrementalSaveAfter = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.SignificantChats <= 0 {
		o.SignificantChats = defaultSignificantChats
	}
	if o.SignificantMessages <= 0 {
		o.SignificantMessages = defaultSignificantMessages
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.IncrementalSaveAfter <= 0 {
		o.IncrementalSaveAfter = defaultIncrementalSaveAfter
	}
	return o
}

// Controller drives bulk history ingestion: it detects sync start and end,
// takes a restorable backup before the first mutation, decides whether a
// "latest" batch replaces or merges with accumulated state, and restores
// the backup if a batch fails mid-way.
type Controller struct {
	st      *store.Store
	saver   Saver
	machine *Machine
	bus     *bus.Bus
	logger  *zap.Logger
	opts    Options

	mu        sync.Mutex
	syncStart time.Time
	batches   int
}

// NewController creates a controller in the Idle state.
func NewController(st *store.Store, saver Saver, b *bus.Bus, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		st:      st,
		saver:   saver,
		machine: NewMachine(b, logger),
		bus:     b,
		logger:  logger,
		opts:    opts.withDefaults(),
	}
}

// State returns the controller's current sync state.
func (c *Controller) State() State {
	return c.machine.Current()
}

// Syncing reports whether a bulk sync is in progress.
func (c *Controller) Syncing() bool {
	return c.machine.Is(StateSyncing)
}

// HandleBatch processes one history batch. Batches are applied one at a
// time; the chat, contact and message sub-tasks of a single batch run
// concurrently, each preserving its own insertion order.
func (c *Controller) HandleBatch(ctx context.Context, b *Batch) error {
	if b == nil {
		return nil
	}
	if b.SyncType == SyncTypeOnDemand {
		c.logger.Debug("ignoring on-demand history batch",
			zap.Int("chats", len(b.Chats)), zap.Int("messages", len(b.Messages)))
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.machine.Is(StateIdle) {
		c.beginSync(ctx)
	}
	if b.Completes() {
		defer c.finalize(ctx)
	}

	if b.IsLatest && c.isSignificant(b) {
		c.logger.Info("latest history batch replaces accumulated state",
			zap.Int("chats", len(b.Chats)), zap.Int("messages", len(b.Messages)))
		c.st.ClearChatsAndMessages()
	}

	start := time.Now()
	if err := c.apply(ctx, b); err != nil {
		c.failBatch(err)
		return err
	}
	c.batches++

	c.publish(bus.KindHistoryProcessed, HistoryInfo{
		SyncType: b.SyncType,
		Progress: b.Progress,
		IsLatest: b.IsLatest,
		Chats:    len(b.Chats),
		Contacts: len(b.Contacts),
		Messages: len(b.Messages),
		Batch:    c.batches,
	})

	if c.opts.IncrementalSave && !b.Completes() && time.Since(start) > c.opts.IncrementalSaveAfter {
		if err := c.saver.SaveNow(ctx); err != nil {
			c.logger.Warn("incremental snapshot during history sync failed", zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) beginSync(ctx context.Context) {
	c.syncStart = time.Now()
	c.batches = 0

	if c.st.HasData() {
		ex := c.st.Export()
		if c.opts.BackupInMemory {
			c.st.CreateBackup()
		}
		if c.opts.BackupToDisk {
			// Best effort: a failed backup write must not block the sync.
			if err := c.saver.WriteBackupFile(ctx, ex); err != nil {
				c.logger.Warn("persisting pre-sync backup failed", zap.Error(err))
			}
		}
	}

	c.st.SetSyncing(true)
	if err := c.machine.Transition(StateSyncing); err != nil {
		c.logger.Warn("sync state transition rejected", zap.Error(err))
	}
	c.logger.Info("history sync started")
}

// finalize always runs for a completing batch, whether it applied cleanly
// or not. If the sync netted out to an empty store while a known-good
// backup exists, the backup wins.
func (c *Controller) finalize(ctx context.Context) {
	if c.st.HasData() {
		if err := c.saver.SaveNow(ctx); err != nil {
			c.logger.Error("final snapshot after history sync failed", zap.Error(err))
		}
	} else if c.st.HasBackupData() {
		c.logger.Warn("history sync netted an empty store, restoring pre-sync backup")
		c.st.RestoreFromBackup()
		if err := c.saver.SaveNow(ctx); err != nil {
			c.logger.Error("snapshot of restored backup failed", zap.Error(err))
		}
	}

	c.st.ClearBackup()
	c.st.SetSyncing(false)
	if err := c.machine.Transition(StateIdle); err != nil {
		c.logger.Warn("sync state transition rejected", zap.Error(err))
	}
	c.logger.Info("history sync finished",
		zap.Duration("elapsed", time.Since(c.syncStart)), zap.Int("batches", c.batches))
}

func (c *Controller) failBatch(err error) {
	c.logger.Error("history batch failed", zap.Error(err))
	if c.st.HasBackupData() {
		c.st.RestoreFromBackup()
	}
	c.publish(bus.KindStoreError, snapshot.ErrorInfo{Op: "history sync", Err: err.Error()})
}

func (c *Controller) isSignificant(b *Batch) bool {
	return len(b.Chats) > c.opts.SignificantChats || len(b.Messages) > c.opts.SignificantMessages
}

// apply upserts the batch's chats, contacts and messages as three
// concurrent sub-tasks. Each sub-task yields to the context between chunks
// so a very large import cannot run away.
func (c *Controller) apply(ctx context.Context, b *Batch) error {
	var wg sync.WaitGroup
	errc := make(chan error, 3)

	run := func(apply func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apply(ctx); err != nil {
				errc <- err
			}
		}()
	}

	run(func(ctx context.Context) error {
		return applyChunked(ctx, c.opts.ChunkSize, b.Chats, func(chat *store.Chat) {
			c.st.UpsertChat(chat)
		})
	})
	run(func(ctx context.Context) error {
		return applyChunked(ctx, c.opts.ChunkSize, b.Contacts, func(contact *store.Contact) {
			c.st.UpsertContact(contact)
		})
	})
	run(func(ctx context.Context) error {
		return applyChunked(ctx, c.opts.ChunkSize, b.Messages, func(m *store.Message) {
			c.st.AddMessage(m)
		})
	})

	wg.Wait()
	close(errc)
	return <-errc
}

func applyChunked[T any](ctx context.Context, chunkSize int, items []*T, apply func(*T)) error {
	for i, item := range items {
		if i > 0 && i%chunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		apply(item)
	}
	return nil
}

func (c *Controller) publish(kind bus.Kind, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
