package store

// Stats recomputes derived counters from the current store state.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	total := 0
	for _, log := range s.messages {
		total += len(log.order)
	}
	return Stats{
		Chats:          len(s.chats),
		Messages:       total,
		Contacts:       len(s.contacts),
		Groups:         len(s.groups),
		LastSaved:      s.lastSaved,
		SyncInProgress: s.syncing,
	}
}
