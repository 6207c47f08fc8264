package store

import (
	"sync"
	"time"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"go.uber.org/zap"
)

// DefaultMaxMessagesPerChat is the per-chat retention cap applied when no
// explicit cap is configured.
const DefaultMaxMessagesPerChat = 5000

// Options configures a Store.
type Options struct {
	MaxMessagesPerChat int
}

// Store is the in-memory indexed store: chats, messages grouped per chat,
// contacts and group metadata. All mutation goes through its methods; the
// single RWMutex makes every mutation atomic with no partial visibility.
// Notifications are published on the bus after the lock is released.
type Store struct {
	mu         sync.RWMutex
	maxPerChat int

	chats    map[string]*Chat
	messages map[string]*messageLog
	contacts map[string]*Contact
	groups   map[string]*GroupMetadata

	backup *backupState

	lastSaved int64
	syncing   bool

	bus    *bus.Bus
	logger *zap.Logger
}

// messageLog keeps a chat's messages indexed by ID while preserving
// insertion order, so eviction tie-breaks and serialization order are
// deterministic.
type messageLog struct {
	order []string
	byID  map[string]*Message
}

func newMessageLog() *messageLog {
	return &messageLog{byID: make(map[string]*Message)}
}

// New creates an empty store. The bus may be nil (no notifications).
func New(opts Options, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPerChat := opts.MaxMessagesPerChat
	if maxPerChat <= 0 {
		maxPerChat = DefaultMaxMessagesPerChat
	}
	return &Store{
		maxPerChat: maxPerChat,
		chats:      make(map[string]*Chat),
		messages:   make(map[string]*messageLog),
		contacts:   make(map[string]*Contact),
		groups:     make(map[string]*GroupMetadata),
		bus:        b,
		logger:     logger,
	}
}

func (s *Store) publish(kind bus.Kind, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// UpsertChat inserts or merge-updates a chat. CreatedAt is set on first
// sight; LastUpdated on every call.
func (s *Store) UpsertChat(c *Chat) {
	if c == nil || c.ID == "" {
		return
	}
	now := time.Now().UnixMilli()

	s.mu.Lock()
	merged := MergeChat(s.chats[c.ID], c)
	merged.ID = c.ID
	if _, exists := s.chats[c.ID]; !exists {
		merged.CreatedAt = now
	}
	merged.LastUpdated = now
	s.chats[c.ID] = merged
	s.mu.Unlock()

	s.publish(bus.KindChatUpserted, *merged)
}

// UpdateChat merge-updates an existing chat. Returns false (and does
// nothing) if the chat is unknown.
func (s *Store) UpdateChat(c *Chat) bool {
	if c == nil || c.ID == "" {
		return false
	}

	s.mu.Lock()
	existing, ok := s.chats[c.ID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	merged := MergeChat(existing, c)
	merged.LastUpdated = time.Now().UnixMilli()
	s.chats[c.ID] = merged
	s.mu.Unlock()

	s.publish(bus.KindChatUpdated, *merged)
	return true
}

// SetChatFlags applies a partial flag update to an existing chat. Unlike
// MergeChat it can clear values: a non-nil field is written as-is, so this
// is the path for unarchive, unpin and unmute. Returns false (and does
// nothing) if the chat is unknown.
func (s *Store) SetChatFlags(f *ChatFlags) bool {
	if f == nil || f.ID == "" {
		return false
	}

	s.mu.Lock()
	existing, ok := s.chats[f.ID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	updated := *existing
	if f.Archived != nil {
		updated.Archived = *f.Archived
	}
	if f.Pinned != nil {
		updated.Pinned = *f.Pinned
	}
	if f.MuteUntil != nil {
		updated.MuteUntil = *f.MuteUntil
	}
	updated.LastUpdated = time.Now().UnixMilli()
	s.chats[f.ID] = &updated
	s.mu.Unlock()

	s.publish(bus.KindChatUpdated, updated)
	return true
}

// ReplaceChat overwrites a chat wholesale, keeping only the store-assigned
// CreatedAt of any existing entry.
func (s *Store) ReplaceChat(c *Chat) {
	if c == nil || c.ID == "" {
		return
	}
	now := time.Now().UnixMilli()

	s.mu.Lock()
	replaced := *c
	if existing, ok := s.chats[c.ID]; ok {
		replaced.CreatedAt = existing.CreatedAt
	} else {
		replaced.CreatedAt = now
	}
	replaced.LastUpdated = now
	s.chats[c.ID] = &replaced
	s.mu.Unlock()

	s.publish(bus.KindChatUpserted, replaced)
}

// DeleteChat removes a chat and purges its messages. Returns whether the
// chat existed.
func (s *Store) DeleteChat(id string) bool {
	s.mu.Lock()
	_, ok := s.chats[id]
	delete(s.chats, id)
	delete(s.messages, id)
	s.mu.Unlock()
	return ok
}

// AddMessage indexes a message, idempotent on (ChatID, ID): re-adding the
// same identity overwrites the value without duplicating the entry. The
// per-chat retention cap is enforced after every insertion.
func (s *Store) AddMessage(m *Message) {
	if m == nil || m.ChatID == "" || m.ID == "" {
		return
	}
	stored := *m
	stored.Timestamp = time.Now().UnixMilli()
	stored.Indexed = true

	s.mu.Lock()
	log, ok := s.messages[stored.ChatID]
	if !ok {
		log = newMessageLog()
		s.messages[stored.ChatID] = log
	}
	if _, exists := log.byID[stored.ID]; !exists {
		log.order = append(log.order, stored.ID)
	}
	log.byID[stored.ID] = &stored
	evicted := log.evict(s.maxPerChat)
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Debug("evicted messages over per-chat cap",
			zap.String("chat_id", stored.ChatID), zap.Int("evicted", len(evicted)))
	}
	s.publish(bus.KindMessageAdded, stored)
}

// UpsertContact inserts or merge-updates a contact. Contacts without an ID
// are skipped silently.
func (s *Store) UpsertContact(c *Contact) {
	if c == nil || c.ID == "" {
		return
	}

	s.mu.Lock()
	merged := MergeContact(s.contacts[c.ID], c)
	merged.ID = c.ID
	merged.LastUpdated = time.Now().UnixMilli()
	s.contacts[c.ID] = merged
	s.mu.Unlock()
}

// UpdateGroupMetadata shallow-merges group metadata, creating the entry on
// first sight.
func (s *Store) UpdateGroupMetadata(g *GroupMetadata) {
	if g == nil || g.ID == "" {
		return
	}

	s.mu.Lock()
	merged := MergeGroup(s.groups[g.ID], g)
	merged.ID = g.ID
	merged.LastUpdated = time.Now().UnixMilli()
	s.groups[g.ID] = merged
	published := *merged
	s.mu.Unlock()

	s.publish(bus.KindGroupUpdated, published)
}

// HasData reports whether the store holds any chats or messages.
func (s *Store) HasData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.chats) > 0 {
		return true
	}
	for _, log := range s.messages {
		if len(log.order) > 0 {
			return true
		}
	}
	return false
}

// ClearChatsAndMessages drops all chats and messages, keeping contacts and
// group metadata. Used when a significant "latest" history sync replaces
// accumulated state.
func (s *Store) ClearChatsAndMessages() {
	s.mu.Lock()
	s.chats = make(map[string]*Chat)
	s.messages = make(map[string]*messageLog)
	s.mu.Unlock()
}

// MarkSaved records the time of the last successful snapshot write.
func (s *Store) MarkSaved(ts int64) {
	s.mu.Lock()
	s.lastSaved = ts
	s.mu.Unlock()
}

// SetSyncing flags whether a bulk history sync is in progress.
func (s *Store) SetSyncing(v bool) {
	s.mu.Lock()
	s.syncing = v
	s.mu.Unlock()
}
