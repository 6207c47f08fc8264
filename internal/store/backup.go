package store

// backupState holds independently-owned deep copies of the four mappings,
// taken before a bulk history sync begins. It never aliases the live maps:
// mutation of the live store during the sync window cannot touch it.
type backupState struct {
	chats    map[string]*Chat
	messages map[string]*messageLog
	contacts map[string]*Contact
	groups   map[string]*GroupMetadata
}

// CreateBackup deep-copies the current mappings into the backup slot,
// replacing any previous backup.
func (s *Store) CreateBackup() {
	s.mu.Lock()
	s.backup = &backupState{
		chats:    copyChats(s.chats),
		messages: copyMessages(s.messages),
		contacts: copyContacts(s.contacts),
		groups:   copyGroups(s.groups),
	}
	s.mu.Unlock()
}

// HasBackupData reports whether a backup exists and holds any entries.
func (s *Store) HasBackupData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.backup
	if b == nil {
		return false
	}
	return len(b.chats) > 0 || len(b.messages) > 0 || len(b.contacts) > 0 || len(b.groups) > 0
}

// RestoreFromBackup replaces the live mappings with deep copies of the
// backup's. No-op (returns false) if no backup is present. The backup
// itself is retained until ClearBackup.
func (s *Store) RestoreFromBackup() bool {
	s.mu.Lock()
	b := s.backup
	if b == nil {
		s.mu.Unlock()
		return false
	}
	s.chats = copyChats(b.chats)
	s.messages = copyMessages(b.messages)
	s.contacts = copyContacts(b.contacts)
	s.groups = copyGroups(b.groups)
	s.mu.Unlock()

	s.logger.Info("store restored from pre-sync backup")
	return true
}

// ClearBackup drops the backup. Called when a sync window closes.
func (s *Store) ClearBackup() {
	s.mu.Lock()
	s.backup = nil
	s.mu.Unlock()
}

// BackupExport returns a deep-copied export of the backup's contents, or
// nil if no backup exists. Used to persist the backup to its sibling file.
func (s *Store) BackupExport() *Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.backup
	if b == nil {
		return nil
	}
	return buildExport(b.chats, b.messages, b.contacts, b.groups, s.statsLocked())
}

func copyChats(src map[string]*Chat) map[string]*Chat {
	dst := make(map[string]*Chat, len(src))
	for id, c := range src {
		cp := *c
		dst[id] = &cp
	}
	return dst
}

func copyMessages(src map[string]*messageLog) map[string]*messageLog {
	dst := make(map[string]*messageLog, len(src))
	for id, log := range src {
		cp := &messageLog{
			order: append([]string(nil), log.order...),
			byID:  make(map[string]*Message, len(log.byID)),
		}
		for mid, m := range log.byID {
			mc := *m
			cp.byID[mid] = &mc
		}
		dst[id] = cp
	}
	return dst
}

func copyContacts(src map[string]*Contact) map[string]*Contact {
	dst := make(map[string]*Contact, len(src))
	for id, c := range src {
		cp := *c
		dst[id] = &cp
	}
	return dst
}

func copyGroups(src map[string]*GroupMetadata) map[string]*GroupMetadata {
	dst := make(map[string]*GroupMetadata, len(src))
	for id, g := range src {
		dst[id] = cloneGroup(g)
	}
	return dst
}
