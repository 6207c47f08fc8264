package store

// Merge functions are pure: they never mutate their inputs and return a
// fresh value. A zero-valued incoming field leaves the existing field
// untouched; a set field overwrites it.

// MergeChat merges incoming chat fields into existing. UnreadCount is
// additive: a positive incoming count is added to the existing count, a
// negative incoming count resets it to zero (read receipt semantics).
func MergeChat(existing, incoming *Chat) *Chat {
	if existing == nil {
		c := *incoming
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		return &c
	}
	merged := *existing
	if incoming == nil {
		return &merged
	}
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.IsGroup {
		merged.IsGroup = true
	}
	switch {
	case incoming.UnreadCount > 0:
		merged.UnreadCount += incoming.UnreadCount
	case incoming.UnreadCount < 0:
		merged.UnreadCount = 0
	}
	if incoming.ConversationTimestamp != 0 {
		merged.ConversationTimestamp = incoming.ConversationTimestamp
	}
	if incoming.Archived {
		merged.Archived = true
	}
	if incoming.Pinned {
		merged.Pinned = true
	}
	if incoming.MuteUntil != 0 {
		merged.MuteUntil = incoming.MuteUntil
	}
	return &merged
}

// MergeContact merges incoming contact fields into existing.
func MergeContact(existing, incoming *Contact) *Contact {
	if existing == nil {
		c := *incoming
		return &c
	}
	merged := *existing
	if incoming == nil {
		return &merged
	}
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.PushName != "" {
		merged.PushName = incoming.PushName
	}
	if incoming.ShortName != "" {
		merged.ShortName = incoming.ShortName
	}
	if incoming.BusinessName != "" {
		merged.BusinessName = incoming.BusinessName
	}
	return &merged
}

// MergeGroup shallow-merges incoming group metadata into existing.
// Participants are replaced wholesale when present (they are a complete
// roster, not a delta).
func MergeGroup(existing, incoming *GroupMetadata) *GroupMetadata {
	if existing == nil {
		g := cloneGroup(incoming)
		return g
	}
	merged := cloneGroup(existing)
	if incoming == nil {
		return merged
	}
	if incoming.Subject != "" {
		merged.Subject = incoming.Subject
	}
	if incoming.Owner != "" {
		merged.Owner = incoming.Owner
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.CreatedAt != 0 {
		merged.CreatedAt = incoming.CreatedAt
	}
	if len(incoming.Participants) > 0 {
		merged.Participants = append([]GroupParticipant(nil), incoming.Participants...)
	}
	return merged
}

func cloneGroup(g *GroupMetadata) *GroupMetadata {
	if g == nil {
		return &GroupMetadata{}
	}
	c := *g
	c.Participants = append([]GroupParticipant(nil), g.Participants...)
	return &c
}
