package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
)

func newStore(t *testing.T, maxPerChat int) *Store {
	t.Helper()
	return New(Options{MaxMessagesPerChat: maxPerChat}, nil, nil)
}

func TestUpsertChatSetsStoreTimestamps(t *testing.T) {
	s := newStore(t, 0)

	// Caller-supplied store timestamps are ignored.
	s.UpsertChat(&Chat{ID: "c1", Name: "Alice", CreatedAt: 999, LastUpdated: 999})

	chat := s.GetChat("c1")
	if chat == nil {
		t.Fatal("chat not stored")
	}
	if chat.CreatedAt == 999 || chat.CreatedAt == 0 {
		t.Errorf("CreatedAt = %d, want store-assigned", chat.CreatedAt)
	}
	if chat.LastUpdated == 999 || chat.LastUpdated == 0 {
		t.Errorf("LastUpdated = %d, want store-assigned", chat.LastUpdated)
	}

	created := chat.CreatedAt
	s.UpsertChat(&Chat{ID: "c1", UnreadCount: 1})
	if got := s.GetChat("c1").CreatedAt; got != created {
		t.Errorf("CreatedAt changed on second upsert: %d -> %d", created, got)
	}
}

func TestUpdateChatUnknownIsNoOp(t *testing.T) {
	s := newStore(t, 0)
	if s.UpdateChat(&Chat{ID: "ghost"}) {
		t.Error("UpdateChat() on unknown chat = true, want false")
	}
	if s.GetChat("ghost") != nil {
		t.Error("UpdateChat created a chat")
	}
}

func TestReplaceChatIsWholesale(t *testing.T) {
	s := newStore(t, 0)
	s.UpsertChat(&Chat{ID: "c1", Name: "Alice", UnreadCount: 5})
	created := s.GetChat("c1").CreatedAt

	s.ReplaceChat(&Chat{ID: "c1", Name: "Renamed"})

	chat := s.GetChat("c1")
	if chat.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0 after replace", chat.UnreadCount)
	}
	if chat.Name != "Renamed" {
		t.Errorf("Name = %q", chat.Name)
	}
	if chat.CreatedAt != created {
		t.Errorf("CreatedAt = %d, want preserved %d", chat.CreatedAt, created)
	}
}

func TestDeleteChatPurgesMessages(t *testing.T) {
	s := newStore(t, 0)
	s.UpsertChat(&Chat{ID: "c1"})
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", MessageTimestamp: 1})

	if !s.DeleteChat("c1") {
		t.Fatal("DeleteChat() = false for existing chat")
	}
	if s.GetChat("c1") != nil {
		t.Error("chat still present")
	}
	if s.MessageCount("c1") != 0 {
		t.Error("messages not purged with chat")
	}
	if s.DeleteChat("c1") {
		t.Error("second DeleteChat() = true")
	}
}

func TestAddMessageIdempotent(t *testing.T) {
	s := newStore(t, 0)

	s.AddMessage(&Message{ChatID: "c1", ID: "m1", Body: "first", MessageTimestamp: 10})
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", Body: "second", MessageTimestamp: 10})

	if got := s.MessageCount("c1"); got != 1 {
		t.Errorf("MessageCount = %d, want 1", got)
	}
	if got := s.Stats().Messages; got != 1 {
		t.Errorf("Stats().Messages = %d, want 1", got)
	}
	// Identity is stable, the value is the latest write.
	if got := s.GetMessage("c1", "m1").Body; got != "second" {
		t.Errorf("Body = %q, want %q", got, "second")
	}
}

func TestAddMessageSetsIngestionMarkers(t *testing.T) {
	s := newStore(t, 0)
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", MessageTimestamp: 10})

	m := s.GetMessage("c1", "m1")
	if !m.Indexed {
		t.Error("Indexed not set")
	}
	if m.Timestamp == 0 {
		t.Error("Timestamp not assigned")
	}
}

func TestAddMessageSkipsIncompleteIdentity(t *testing.T) {
	s := newStore(t, 0)
	s.AddMessage(&Message{ChatID: "", ID: "m1"})
	s.AddMessage(&Message{ChatID: "c1", ID: ""})
	if s.Stats().Messages != 0 {
		t.Error("message without full identity was stored")
	}
}

func TestEvictionKeepsCapNewestByMessageTimestamp(t *testing.T) {
	s := newStore(t, 3)

	for i, ts := range []int64{1, 2, 3, 4} {
		s.AddMessage(&Message{ChatID: "A", ID: fmt.Sprintf("m%d", i+1), MessageTimestamp: ts})
	}

	if got := s.MessageCount("A"); got != 3 {
		t.Fatalf("MessageCount = %d, want 3", got)
	}
	if s.GetMessage("A", "m1") != nil {
		t.Error("oldest message survived eviction")
	}
	for _, id := range []string{"m2", "m3", "m4"} {
		if s.GetMessage("A", id) == nil {
			t.Errorf("message %s evicted, want retained", id)
		}
	}
}

func TestEvictionUnorderedInsertions(t *testing.T) {
	s := newStore(t, 2)

	// Arrival order is not timestamp order.
	s.AddMessage(&Message{ChatID: "A", ID: "late", MessageTimestamp: 30})
	s.AddMessage(&Message{ChatID: "A", ID: "early", MessageTimestamp: 10})
	s.AddMessage(&Message{ChatID: "A", ID: "mid", MessageTimestamp: 20})

	if s.GetMessage("A", "early") != nil {
		t.Error("oldest-by-timestamp message retained")
	}
	if s.GetMessage("A", "late") == nil || s.GetMessage("A", "mid") == nil {
		t.Error("newest messages evicted")
	}
}

func TestEvictionTieBreaksByInsertionOrder(t *testing.T) {
	s := newStore(t, 2)

	s.AddMessage(&Message{ChatID: "A", ID: "first", MessageTimestamp: 10})
	s.AddMessage(&Message{ChatID: "A", ID: "second", MessageTimestamp: 10})
	s.AddMessage(&Message{ChatID: "A", ID: "third", MessageTimestamp: 10})

	if s.GetMessage("A", "first") != nil {
		t.Error("stable sort should evict the earliest-inserted of equal timestamps")
	}
	if s.GetMessage("A", "second") == nil || s.GetMessage("A", "third") == nil {
		t.Error("later-inserted messages evicted on tie")
	}
}

func TestClearChatsAndMessagesKeepsContactsAndGroups(t *testing.T) {
	s := newStore(t, 0)
	s.UpsertChat(&Chat{ID: "c1"})
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", MessageTimestamp: 1})
	s.UpsertContact(&Contact{ID: "p1", PushName: "Alice"})
	s.UpdateGroupMetadata(&GroupMetadata{ID: "g1", Subject: "Team"})

	s.ClearChatsAndMessages()

	stats := s.Stats()
	if stats.Chats != 0 || stats.Messages != 0 {
		t.Errorf("chats/messages not cleared: %+v", stats)
	}
	if stats.Contacts != 1 || stats.Groups != 1 {
		t.Errorf("contacts/groups should survive: %+v", stats)
	}
}

func TestStatsReflectState(t *testing.T) {
	s := newStore(t, 0)
	s.UpsertChat(&Chat{ID: "c1"})
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", MessageTimestamp: 1})
	s.AddMessage(&Message{ChatID: "c2", ID: "m2", MessageTimestamp: 2})
	s.SetSyncing(true)
	s.MarkSaved(1234)

	stats := s.Stats()
	if stats.Chats != 1 || stats.Messages != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.SyncInProgress {
		t.Error("SyncInProgress not set")
	}
	if stats.LastSaved != 1234 {
		t.Errorf("LastSaved = %d", stats.LastSaved)
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	b := bus.New()
	events, cancel := b.Subscribe("store.", 16)
	defer cancel()

	s := New(Options{}, b, nil)
	s.UpsertChat(&Chat{ID: "c1"})
	s.UpdateChat(&Chat{ID: "c1", UnreadCount: 1})
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", MessageTimestamp: 1})
	s.UpdateGroupMetadata(&GroupMetadata{ID: "g1"})

	want := []bus.Kind{
		bus.KindChatUpserted,
		bus.KindChatUpdated,
		bus.KindMessageAdded,
		bus.KindGroupUpdated,
	}
	for _, kind := range want {
		select {
		case evt := <-events:
			if evt.Kind != kind {
				t.Errorf("event kind = %q, want %q", evt.Kind, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing %q event", kind)
		}
	}
}

func TestHasData(t *testing.T) {
	s := newStore(t, 0)
	if s.HasData() {
		t.Error("empty store HasData() = true")
	}
	s.AddMessage(&Message{ChatID: "c1", ID: "m1", MessageTimestamp: 1})
	if !s.HasData() {
		t.Error("HasData() = false with messages present")
	}
}

func TestSetChatFlagsClearsBooleans(t *testing.T) {
	s := newStore(t, 0)
	s.UpsertChat(&Chat{ID: "c1", Name: "Alice", Archived: true, Pinned: true, MuteUntil: -1})

	f := false
	unmuted := int64(0)
	if !s.SetChatFlags(&ChatFlags{ID: "c1", Archived: &f, Pinned: &f, MuteUntil: &unmuted}) {
		t.Fatal("SetChatFlags() = false on known chat")
	}

	chat := s.GetChat("c1")
	if chat.Archived {
		t.Error("Archived not cleared")
	}
	if chat.Pinned {
		t.Error("Pinned not cleared")
	}
	if chat.MuteUntil != 0 {
		t.Errorf("MuteUntil = %d, want 0", chat.MuteUntil)
	}
	if chat.Name != "Alice" {
		t.Errorf("Name = %q, flags update touched other fields", chat.Name)
	}
}

func TestSetChatFlagsNilFieldsLeaveValues(t *testing.T) {
	s := newStore(t, 0)
	s.UpsertChat(&Chat{ID: "c1", Archived: true})

	muted := int64(1736942400000)
	s.SetChatFlags(&ChatFlags{ID: "c1", MuteUntil: &muted})

	chat := s.GetChat("c1")
	if !chat.Archived {
		t.Error("nil Archived field cleared the stored value")
	}
	if chat.MuteUntil != muted {
		t.Errorf("MuteUntil = %d, want %d", chat.MuteUntil, muted)
	}
}

func TestSetChatFlagsUnknownIsNoOp(t *testing.T) {
	s := newStore(t, 0)
	tru := true
	if s.SetChatFlags(&ChatFlags{ID: "ghost", Archived: &tru}) {
		t.Error("SetChatFlags() on unknown chat = true, want false")
	}
	if s.GetChat("ghost") != nil {
		t.Error("SetChatFlags created a chat")
	}
}
