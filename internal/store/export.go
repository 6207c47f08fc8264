package store

import "sort"

// Export is a deep-copied, deterministically ordered view of the store,
// handed to the persistence engine for serialization and produced by it on
// load. Chats, contacts and groups are sorted by ID; messages keep their
// per-chat insertion order.
type Export struct {
	Chats    []*Chat
	Messages map[string][]*Message
	Contacts []*Contact
	Groups   []*GroupMetadata
	Stats    Stats
}

// Export snapshots the live mappings.
func (s *Store) Export() *Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buildExport(s.chats, s.messages, s.contacts, s.groups, s.statsLocked())
}

// Import replaces the live mappings with deep copies of the export's
// contents. Messages are re-indexed in the order given.
func (s *Store) Import(ex *Export) {
	if ex == nil {
		return
	}

	chats := make(map[string]*Chat, len(ex.Chats))
	for _, c := range ex.Chats {
		if c == nil || c.ID == "" {
			continue
		}
		cp := *c
		chats[c.ID] = &cp
	}

	messages := make(map[string]*messageLog, len(ex.Messages))
	for chatID, msgs := range ex.Messages {
		if chatID == "" {
			continue
		}
		log := newMessageLog()
		for _, m := range msgs {
			if m == nil || m.ID == "" {
				continue
			}
			cp := *m
			cp.ChatID = chatID
			if _, exists := log.byID[cp.ID]; !exists {
				log.order = append(log.order, cp.ID)
			}
			log.byID[cp.ID] = &cp
		}
		messages[chatID] = log
	}

	contacts := make(map[string]*Contact, len(ex.Contacts))
	for _, c := range ex.Contacts {
		if c == nil || c.ID == "" {
			continue
		}
		cp := *c
		contacts[c.ID] = &cp
	}

	groups := make(map[string]*GroupMetadata, len(ex.Groups))
	for _, g := range ex.Groups {
		if g == nil || g.ID == "" {
			continue
		}
		groups[g.ID] = cloneGroup(g)
	}

	s.mu.Lock()
	s.chats = chats
	s.messages = messages
	s.contacts = contacts
	s.groups = groups
	if ex.Stats.LastSaved > 0 {
		s.lastSaved = ex.Stats.LastSaved
	}
	s.mu.Unlock()
}

func buildExport(
	chats map[string]*Chat,
	messages map[string]*messageLog,
	contacts map[string]*Contact,
	groups map[string]*GroupMetadata,
	stats Stats,
) *Export {
	ex := &Export{
		Chats:    make([]*Chat, 0, len(chats)),
		Messages: make(map[string][]*Message, len(messages)),
		Contacts: make([]*Contact, 0, len(contacts)),
		Groups:   make([]*GroupMetadata, 0, len(groups)),
		Stats:    stats,
	}

	for _, c := range chats {
		cp := *c
		ex.Chats = append(ex.Chats, &cp)
	}
	sort.Slice(ex.Chats, func(i, j int) bool { return ex.Chats[i].ID < ex.Chats[j].ID })

	for chatID, log := range messages {
		msgs := make([]*Message, 0, len(log.order))
		for _, id := range log.order {
			cp := *log.byID[id]
			msgs = append(msgs, &cp)
		}
		ex.Messages[chatID] = msgs
	}

	for _, c := range contacts {
		cp := *c
		ex.Contacts = append(ex.Contacts, &cp)
	}
	sort.Slice(ex.Contacts, func(i, j int) bool { return ex.Contacts[i].ID < ex.Contacts[j].ID })

	for _, g := range groups {
		ex.Groups = append(ex.Groups, cloneGroup(g))
	}
	sort.Slice(ex.Groups, func(i, j int) bool { return ex.Groups[i].ID < ex.Groups[j].ID })

	return ex
}
