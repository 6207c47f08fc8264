package store

// Chat represents an indexed conversation thread.
// CreatedAt and LastUpdated are assigned by the store, never by callers.
type Chat struct {
	ID                    string `json:"id"`
	Name                  string `json:"name,omitempty"`
	IsGroup               bool   `json:"isGroup,omitempty"`
	UnreadCount           int    `json:"unreadCount"`
	ConversationTimestamp int64  `json:"conversationTimestamp,omitempty"`
	Archived              bool   `json:"archived,omitempty"`
	Pinned                bool   `json:"pinned,omitempty"`
	MuteUntil             int64  `json:"muteUntil,omitempty"`
	CreatedAt             int64  `json:"createdAt"`
	LastUpdated           int64  `json:"lastUpdated"`
}

// ChatFlags is a partial chat update for fields whose zero value is
// meaningful (unarchive, unpin, unmute). A nil field leaves the stored
// value unchanged; a set field overwrites it, including to zero.
type ChatFlags struct {
	ID        string
	Archived  *bool
	Pinned    *bool
	MuteUntil *int64
}

// Message represents an indexed message, identified by (ChatID, ID).
// MessageTimestamp is the transport's logical ordering key; Timestamp and
// Indexed are assigned by the store on ingestion.
type Message struct {
	ChatID           string `json:"chatId"`
	ID               string `json:"id"`
	SenderID         string `json:"senderId,omitempty"`
	SenderName       string `json:"senderName,omitempty"`
	Body             string `json:"body,omitempty"`
	Type             string `json:"type,omitempty"`
	FromMe           bool   `json:"fromMe,omitempty"`
	Status           string `json:"status,omitempty"`
	MessageTimestamp int64  `json:"messageTimestamp"`
	Timestamp        int64  `json:"timestamp"`
	Indexed          bool   `json:"indexed"`
}

// Contact represents an indexed contact.
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	PushName     string `json:"pushName,omitempty"`
	ShortName    string `json:"shortName,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	LastUpdated  int64  `json:"lastUpdated"`
}

// GroupParticipant is a member entry inside group metadata.
type GroupParticipant struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin,omitempty"`
	IsSuperAdmin bool   `json:"isSuperAdmin,omitempty"`
}

// GroupMetadata holds group-level attributes, shallow-merged on update.
type GroupMetadata struct {
	ID           string             `json:"id"`
	Subject      string             `json:"subject,omitempty"`
	Owner        string             `json:"owner,omitempty"`
	Description  string             `json:"description,omitempty"`
	Participants []GroupParticipant `json:"participants,omitempty"`
	CreatedAt    int64              `json:"createdAt,omitempty"`
	LastUpdated  int64              `json:"lastUpdated"`
}

// Stats are derived counters recomputed from store state.
type Stats struct {
	Chats          int   `json:"chats"`
	Messages       int   `json:"messages"`
	Contacts       int   `json:"contacts"`
	Groups         int   `json:"groups"`
	LastSaved      int64 `json:"lastSaved,omitempty"`
	SyncInProgress bool  `json:"syncInProgress"`
}

// MessageBatch is an inbound batch of live messages. Kind distinguishes
// freshly notified messages from appended (fetched/old) ones: a "notify"
// message for an unseen chat synthesizes a chat entry with one unread.
type MessageBatch struct {
	Kind     string
	Messages []*Message
}

// MessageBatch kinds.
const (
	BatchAppend = "append"
	BatchNotify = "notify"
)
