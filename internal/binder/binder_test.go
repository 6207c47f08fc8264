package binder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/histsync"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

type nopSaver struct{}

func (nopSaver) SaveNow(context.Context) error { return nil }

func (nopSaver) WriteBackupFile(context.Context, *store.Export) error { return nil }

type stubFetcher struct {
	md  *store.GroupMetadata
	err error
}

func (f *stubFetcher) FetchGroupMetadata(context.Context, string) (*store.GroupMetadata, error) {
	return f.md, f.err
}

func newTestBinder(t *testing.T, fetcher GroupFetcher) (*Binder, *store.Store, *histsync.Controller) {
	t.Helper()
	st := store.New(store.Options{}, nil, nil)
	ctrl := histsync.NewController(st, nopSaver{}, nil, nil, histsync.Options{BackupInMemory: true})
	b := New(st, ctrl, fetcher, bus.New(), nil, Options{LiveBatchLimit: 3})
	return b, st, ctrl
}

func transportEvent(kind bus.Kind, payload any) bus.Event {
	return bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNotifyMessageSynthesizesUnreadChat(t *testing.T) {
	b, st, _ := newTestBinder(t, nil)

	b.dispatch(context.Background(), transportEvent(bus.KindTransportMessages, store.MessageBatch{
		Kind: store.BatchNotify,
		Messages: []*store.Message{
			{ChatID: "new@s.whatsapp.net", ID: "m1", Body: "hi", MessageTimestamp: 50},
		},
	}))

	chat := st.GetChat("new@s.whatsapp.net")
	if chat == nil {
		t.Fatal("notify did not synthesize a chat")
	}
	if chat.UnreadCount != 1 {
		t.Errorf("UnreadCount = %d, want 1", chat.UnreadCount)
	}
	if chat.ConversationTimestamp != 50 {
		t.Errorf("ConversationTimestamp = %d, want 50", chat.ConversationTimestamp)
	}
	if st.GetMessage("new@s.whatsapp.net", "m1") == nil {
		t.Error("message not indexed")
	}
}

func TestNotifyLeavesKnownChatUntouched(t *testing.T) {
	b, st, _ := newTestBinder(t, nil)
	st.UpsertChat(&store.Chat{
		ID:                    "known@s.whatsapp.net",
		Name:                  "Alice",
		UnreadCount:           2,
		ConversationTimestamp: 40,
	})

	b.dispatch(context.Background(), transportEvent(bus.KindTransportMessages, store.MessageBatch{
		Kind:     store.BatchNotify,
		Messages: []*store.Message{{ChatID: "known@s.whatsapp.net", ID: "m1", MessageTimestamp: 60}},
	}))

	chat := st.GetChat("known@s.whatsapp.net")
	if chat.UnreadCount != 2 {
		t.Errorf("UnreadCount = %d, want 2", chat.UnreadCount)
	}
	if chat.ConversationTimestamp != 40 {
		t.Errorf("ConversationTimestamp = %d, want 40", chat.ConversationTimestamp)
	}
	if chat.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", chat.Name)
	}
	if st.GetMessage("known@s.whatsapp.net", "m1") == nil {
		t.Error("message not indexed")
	}
}

func TestAppendMessageDoesNotSynthesizeChat(t *testing.T) {
	b, st, _ := newTestBinder(t, nil)

	b.dispatch(context.Background(), transportEvent(bus.KindTransportMessages, store.MessageBatch{
		Kind:     store.BatchAppend,
		Messages: []*store.Message{{ChatID: "quiet@s.whatsapp.net", ID: "m1", MessageTimestamp: 10}},
	}))

	if st.GetChat("quiet@s.whatsapp.net") != nil {
		t.Error("append synthesized a chat")
	}
	if st.GetMessage("quiet@s.whatsapp.net", "m1") == nil {
		t.Error("append message not indexed")
	}
}

func TestLargeLiveBatchDroppedWhileSyncing(t *testing.T) {
	b, st, ctrl := newTestBinder(t, nil)

	// Enter the syncing state with a non-final history batch.
	if err := ctrl.HandleBatch(context.Background(), &histsync.Batch{SyncType: "recent"}); err != nil {
		t.Fatal(err)
	}
	if !ctrl.Syncing() {
		t.Fatal("controller not syncing")
	}

	large := store.MessageBatch{Kind: store.BatchAppend}
	for i := 0; i < 5; i++ {
		large.Messages = append(large.Messages, &store.Message{
			ChatID: "c@s.whatsapp.net", ID: fmt.Sprintf("big-%d", i), MessageTimestamp: int64(i),
		})
	}
	b.dispatch(context.Background(), transportEvent(bus.KindTransportMessages, large))
	if st.MessageCount("c@s.whatsapp.net") != 0 {
		t.Error("large live batch applied during sync")
	}

	small := store.MessageBatch{
		Kind:     store.BatchAppend,
		Messages: []*store.Message{{ChatID: "c@s.whatsapp.net", ID: "small-1", MessageTimestamp: 1}},
	}
	b.dispatch(context.Background(), transportEvent(bus.KindTransportMessages, small))
	if st.MessageCount("c@s.whatsapp.net") != 1 {
		t.Error("small live batch dropped during sync")
	}
}

func TestChatEventRouting(t *testing.T) {
	b, st, _ := newTestBinder(t, nil)
	ctx := context.Background()

	b.dispatch(ctx, transportEvent(bus.KindTransportChatUpsert, []*store.Chat{
		{ID: "a@s.whatsapp.net", Name: "A"},
	}))
	if st.GetChat("a@s.whatsapp.net") == nil {
		t.Fatal("upsert not routed")
	}

	b.dispatch(ctx, transportEvent(bus.KindTransportChatUpdate, []*store.Chat{
		{ID: "a@s.whatsapp.net", UnreadCount: 2},
	}))
	if got := st.GetChat("a@s.whatsapp.net").UnreadCount; got != 2 {
		t.Errorf("update not routed, UnreadCount = %d", got)
	}

	// Updates for unknown chats are no-ops, not upserts.
	b.dispatch(ctx, transportEvent(bus.KindTransportChatUpdate, []*store.Chat{
		{ID: "ghost@s.whatsapp.net", UnreadCount: 1},
	}))
	if st.GetChat("ghost@s.whatsapp.net") != nil {
		t.Error("update created an unknown chat")
	}

	b.dispatch(ctx, transportEvent(bus.KindTransportChatReplace, []*store.Chat{
		{ID: "a@s.whatsapp.net", Name: "Replaced"},
	}))
	chat := st.GetChat("a@s.whatsapp.net")
	if chat.Name != "Replaced" || chat.UnreadCount != 0 {
		t.Errorf("replace not wholesale: %+v", chat)
	}

	b.dispatch(ctx, transportEvent(bus.KindTransportChatDelete, []string{"a@s.whatsapp.net"}))
	if st.GetChat("a@s.whatsapp.net") != nil {
		t.Error("delete not routed")
	}
}

func TestChatFlagsRouting(t *testing.T) {
	b, st, _ := newTestBinder(t, nil)
	ctx := context.Background()
	st.UpsertChat(&store.Chat{ID: "a@s.whatsapp.net", Archived: true})

	f := false
	b.dispatch(ctx, transportEvent(bus.KindTransportChatUpdate, []*store.ChatFlags{
		{ID: "a@s.whatsapp.net", Archived: &f},
	}))
	if st.GetChat("a@s.whatsapp.net").Archived {
		t.Error("unarchive not routed")
	}

	muted := int64(-1)
	b.dispatch(ctx, transportEvent(bus.KindTransportChatUpdate, []*store.ChatFlags{
		{ID: "a@s.whatsapp.net", MuteUntil: &muted},
	}))
	if got := st.GetChat("a@s.whatsapp.net").MuteUntil; got != -1 {
		t.Errorf("MuteUntil = %d, want -1", got)
	}
}

func TestContactEventRouting(t *testing.T) {
	b, st, _ := newTestBinder(t, nil)

	b.dispatch(context.Background(), transportEvent(bus.KindTransportContacts, []*store.Contact{
		{ID: "a@s.whatsapp.net", PushName: "Alice"},
	}))
	if c := st.GetContact("a@s.whatsapp.net"); c == nil || c.PushName != "Alice" {
		t.Errorf("contact not routed: %+v", c)
	}
}

func TestGroupUpdateStoresAndRefreshes(t *testing.T) {
	fetcher := &stubFetcher{md: &store.GroupMetadata{
		ID:      "g@g.us",
		Subject: "Full Subject",
		Participants: []store.GroupParticipant{
			{ID: "a@s.whatsapp.net", IsAdmin: true},
		},
	}}
	b, st, _ := newTestBinder(t, fetcher)

	b.dispatch(context.Background(), transportEvent(bus.KindTransportGroupUpdate, []*store.GroupMetadata{
		{ID: "g@g.us", Subject: "Partial"},
	}))

	if g := st.GetGroup("g@g.us"); g == nil {
		t.Fatal("partial metadata not stored")
	}
	waitFor(t, func() bool {
		g := st.GetGroup("g@g.us")
		return g != nil && g.Subject == "Full Subject" && len(g.Participants) == 1
	}, "fetched metadata never merged")
}

func TestGroupFetchFailureKeepsPartialMetadata(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("rate limited")}
	b, st, _ := newTestBinder(t, fetcher)

	b.dispatch(context.Background(), transportEvent(bus.KindTransportGroupUpdate, []*store.GroupMetadata{
		{ID: "g@g.us", Subject: "Partial"},
	}))

	// Give the background fetch a moment to fail.
	time.Sleep(20 * time.Millisecond)
	if g := st.GetGroup("g@g.us"); g == nil || g.Subject != "Partial" {
		t.Errorf("partial metadata lost after failed fetch: %+v", g)
	}
}

func TestStartDispatchesBusEvents(t *testing.T) {
	st := store.New(store.Options{}, nil, nil)
	ctrl := histsync.NewController(st, nopSaver{}, nil, nil, histsync.Options{})
	eventBus := bus.New()
	b := New(st, ctrl, nil, eventBus, nil, Options{})

	b.Start(context.Background())
	defer b.Stop()

	eventBus.Publish(transportEvent(bus.KindTransportChatUpsert, []*store.Chat{
		{ID: "live@s.whatsapp.net"},
	}))

	waitFor(t, func() bool {
		return st.GetChat("live@s.whatsapp.net") != nil
	}, "published event never reached the store")
}

func TestStopWaitsForLoop(t *testing.T) {
	st := store.New(store.Options{}, nil, nil)
	ctrl := histsync.NewController(st, nopSaver{}, nil, nil, histsync.Options{})
	b := New(st, ctrl, nil, bus.New(), nil, Options{})

	b.Start(context.Background())
	b.Stop()
	// Stop again is a no-op.
	b.Stop()
}
