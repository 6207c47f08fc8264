package binder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/histsync"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

// GroupFetcher resolves full group metadata from the transport. Fetch
// failures are swallowed: the partial metadata from the triggering event is
// already stored.
type GroupFetcher interface {
	FetchGroupMetadata(ctx context.Context, id string) (*store.GroupMetadata, error)
}

// DefaultLiveBatchLimit bounds live (non-history) message batches accepted
// while a bulk sync is running; larger batches are dropped to keep them
// from contending with the bulk merge.
const DefaultLiveBatchLimit = 50

// Options configures a Binder.
type Options struct {
	LiveBatchLimit int
}

// Binder subscribes to transport events and routes each kind to the store
// mutation it maps to. It is the only component that knows the transport's
// payload shapes; everything downstream sees store types.
type Binder struct {
	st      *store.Store
	ctrl    *histsync.Controller
	fetcher GroupFetcher
	bus     *bus.Bus
	logger  *zap.Logger
	limit   int

	mu     sync.Mutex
	unsub  func()
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a binder. fetcher may be nil (group metadata is stored as
// delivered, never refreshed).
func New(st *store.Store, ctrl *histsync.Controller, fetcher GroupFetcher, b *bus.Bus, logger *zap.Logger, opts Options) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.LiveBatchLimit
	if limit <= 0 {
		limit = DefaultLiveBatchLimit
	}
	return &Binder{
		st:      st,
		ctrl:    ctrl,
		fetcher: fetcher,
		bus:     b,
		logger:  logger,
		limit:   limit,
	}
}

// Start subscribes to transport events and dispatches them until Stop is
// called or ctx is done.
func (b *Binder) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	events, unsub := b.bus.Subscribe("transport.", 256)
	b.cancel = cancel
	b.unsub = unsub
	done := make(chan struct{})
	b.done = done

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			}
		}
	}()
}

// Stop unsubscribes and waits for the dispatch loop to exit.
func (b *Binder) Stop() {
	b.mu.Lock()
	unsub, cancel, done := b.unsub, b.cancel, b.done
	b.unsub, b.cancel, b.done = nil, nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	unsub()
	<-done
}

func (b *Binder) dispatch(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindTransportMessages:
		if batch, ok := evt.Payload.(store.MessageBatch); ok {
			b.handleMessages(batch)
		}
	case bus.KindTransportHistory:
		if batch, ok := evt.Payload.(*histsync.Batch); ok {
			// Failures restore the pre-sync backup inside the
			// controller; binding continues regardless.
			if err := b.ctrl.HandleBatch(ctx, batch); err != nil {
				b.logger.Warn("history batch not applied", zap.Error(err))
			}
		}
	case bus.KindTransportChatUpsert:
		if chats, ok := evt.Payload.([]*store.Chat); ok {
			for _, c := range chats {
				b.st.UpsertChat(c)
			}
		}
	case bus.KindTransportChatUpdate:
		switch payload := evt.Payload.(type) {
		case []*store.Chat:
			for _, c := range payload {
				b.st.UpdateChat(c)
			}
		case []*store.ChatFlags:
			for _, f := range payload {
				b.st.SetChatFlags(f)
			}
		}
	case bus.KindTransportChatReplace:
		if chats, ok := evt.Payload.([]*store.Chat); ok {
			for _, c := range chats {
				b.st.ReplaceChat(c)
			}
		}
	case bus.KindTransportChatDelete:
		if ids, ok := evt.Payload.([]string); ok {
			for _, id := range ids {
				b.st.DeleteChat(id)
			}
		}
	case bus.KindTransportContacts:
		if contacts, ok := evt.Payload.([]*store.Contact); ok {
			for _, c := range contacts {
				b.st.UpsertContact(c)
			}
		}
	case bus.KindTransportGroupUpdate:
		if groups, ok := evt.Payload.([]*store.GroupMetadata); ok {
			b.handleGroups(ctx, groups)
		}
	}
}

// handleMessages ingests a live message batch. While a bulk sync runs,
// batches over the live limit are dropped so they cannot contend with the
// bulk merge; small batches still land.
func (b *Binder) handleMessages(batch store.MessageBatch) {
	if b.ctrl != nil && b.ctrl.Syncing() && len(batch.Messages) > b.limit {
		b.logger.Debug("dropping large live message batch during history sync",
			zap.Int("messages", len(batch.Messages)))
		return
	}

	for _, m := range batch.Messages {
		if m == nil || m.ChatID == "" {
			continue
		}
		// A notify for a chat the store has never seen synthesizes the
		// chat entry with one unread. Known chats are left alone here:
		// their unread counts come from explicit chat updates.
		if batch.Kind == store.BatchNotify && b.st.GetChat(m.ChatID) == nil {
			b.st.UpsertChat(&store.Chat{
				ID:                    m.ChatID,
				UnreadCount:           1,
				ConversationTimestamp: m.MessageTimestamp,
			})
		}
		b.st.AddMessage(m)
	}
}

// handleGroups stores the metadata carried by the event immediately and
// refreshes it from the transport in the background. A failed fetch leaves
// the partial metadata in place.
func (b *Binder) handleGroups(ctx context.Context, groups []*store.GroupMetadata) {
	for _, g := range groups {
		if g == nil || g.ID == "" {
			continue
		}
		b.st.UpdateGroupMetadata(g)

		if b.fetcher == nil {
			continue
		}
		go func(id string) {
			fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			md, err := b.fetcher.FetchGroupMetadata(fetchCtx, id)
			if err != nil {
				b.logger.Debug("group metadata fetch failed",
					zap.String("group", id), zap.Error(err))
				return
			}
			if md != nil {
				b.st.UpdateGroupMetadata(md)
			}
		}(g.ID)
	}
}
