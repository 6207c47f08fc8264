package histsync

import "github.com/rsuppersahabatan/baileys-api/internal/store"

// SyncTypeOnDemand marks a partial history page requested explicitly by the
// user (scrolling back in a chat). Such batches never drive the sync state
// machine and are dropped by the controller.
const SyncTypeOnDemand = "on_demand"

// Batch is one bulk history-sync payload, already translated out of the
// transport's wire shape.
type Batch struct {
	SyncType string
	Progress int32
	IsLatest bool

	Chats    []*store.Chat
	Contacts []*store.Contact
	Messages []*store.Message
}

// Completes reports whether this batch signals the end of the sync.
func (b *Batch) Completes() bool {
	return b.IsLatest || b.Progress >= 100
}

// HistoryInfo is the payload of store.history_processed events.
type HistoryInfo struct {
	SyncType string `json:"syncType"`
	Progress int32  `json:"progress"`
	IsLatest bool   `json:"isLatest"`
	Chats    int    `json:"chats"`
	Contacts int    `json:"contacts"`
	Messages int    `json:"messages"`
	Batch    int    `json:"batch"`
}
