package store

import "sort"

// LoadOptions filters and paginates LoadMessages results.
// MessageID, when set, short-circuits every other option: the named message
// is returned alone (or nothing if absent).
type LoadOptions struct {
	Limit      int
	Offset     int
	Before     int64 // exclusive upper bound on MessageTimestamp
	After      int64 // exclusive lower bound on MessageTimestamp
	MessageID  string
	Descending bool
}

// GetChat returns a copy of the chat, or nil if unknown.
func (s *Store) GetChat(id string) *Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// ListChats returns all chats sorted by ConversationTimestamp descending.
func (s *Store) ListChats() []Chat {
	s.mu.RLock()
	chats := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		chats = append(chats, *c)
	}
	s.mu.RUnlock()

	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].ConversationTimestamp != chats[j].ConversationTimestamp {
			return chats[i].ConversationTimestamp > chats[j].ConversationTimestamp
		}
		return chats[i].ID < chats[j].ID
	})
	return chats
}

// GetContact returns a copy of the contact, or nil if unknown.
func (s *Store) GetContact(id string) *Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// GetGroup returns a copy of the group metadata, or nil if unknown.
func (s *Store) GetGroup(id string) *GroupMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil
	}
	return cloneGroup(g)
}

// GetMessage returns a copy of a single message, or nil if unknown.
func (s *Store) GetMessage(chatID, id string) *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.messages[chatID]
	if !ok {
		return nil
	}
	m, ok := log.byID[id]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// GetLastMessage returns the message with the highest MessageTimestamp in
// the chat (later insertion wins ties), or nil if the chat has none.
func (s *Store) GetLastMessage(chatID string) *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.messages[chatID]
	if !ok || len(log.order) == 0 {
		return nil
	}
	var last *Message
	for _, id := range log.order {
		m := log.byID[id]
		if last == nil || m.MessageTimestamp >= last.MessageTimestamp {
			last = m
		}
	}
	cp := *last
	return &cp
}

// LoadMessages returns a chat's messages sorted by MessageTimestamp
// (ascending unless opts.Descending), bounded by Before/After, then
// paginated by Offset and Limit.
func (s *Store) LoadMessages(chatID string, opts LoadOptions) []Message {
	s.mu.RLock()
	log, ok := s.messages[chatID]
	if !ok {
		s.mu.RUnlock()
		return nil
	}

	if opts.MessageID != "" {
		m, found := log.byID[opts.MessageID]
		if !found {
			s.mu.RUnlock()
			return nil
		}
		cp := *m
		s.mu.RUnlock()
		return []Message{cp}
	}

	msgs := make([]Message, 0, len(log.order))
	for _, id := range log.order {
		m := log.byID[id]
		if opts.Before > 0 && m.MessageTimestamp >= opts.Before {
			continue
		}
		if opts.After > 0 && m.MessageTimestamp <= opts.After {
			continue
		}
		msgs = append(msgs, *m)
	}
	s.mu.RUnlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		if opts.Descending {
			return msgs[i].MessageTimestamp > msgs[j].MessageTimestamp
		}
		return msgs[i].MessageTimestamp < msgs[j].MessageTimestamp
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(msgs) {
			return nil
		}
		msgs = msgs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(msgs) {
		msgs = msgs[:opts.Limit]
	}
	return msgs
}

// MessageCount returns the number of messages retained for a chat.
func (s *Store) MessageCount(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.messages[chatID]
	if !ok {
		return 0
	}
	return len(log.order)
}
