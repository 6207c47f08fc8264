package bus

import "time"

// Kind identifies an event type. Kinds are namespaced with dots so
// subscribers can filter on a prefix (e.g. "store." or "transport.").
type Kind string

// Store lifecycle notifications.
const (
	KindStoreSaved  Kind = "store.saved"
	KindStoreLoaded Kind = "store.loaded"
	KindStoreError  Kind = "store.error"
)

// Mutation notifications emitted by the indexed store.
const (
	KindChatUpserted     Kind = "store.chat_upserted"
	KindChatUpdated      Kind = "store.chat_updated"
	KindMessageAdded     Kind = "store.message_added"
	KindGroupUpdated     Kind = "store.group_updated"
	KindHistoryProcessed Kind = "store.history_processed"
)

// Sync controller state changes.
const (
	KindSyncStateChanged Kind = "sync.state_changed"
)

// Inbound transport events consumed by the binder.
const (
	KindTransportMessages     Kind = "transport.messages"
	KindTransportHistory      Kind = "transport.history"
	KindTransportChatUpsert   Kind = "transport.chat_upsert"
	KindTransportChatUpdate   Kind = "transport.chat_update"
	KindTransportChatReplace  Kind = "transport.chat_replace"
	KindTransportChatDelete   Kind = "transport.chat_delete"
	KindTransportContacts     Kind = "transport.contacts"
	KindTransportGroupUpdate  Kind = "transport.group_update"
	KindTransportConnected    Kind = "transport.connected"
	KindTransportDisconnected Kind = "transport.disconnected"
	KindTransportLoggedOut    Kind = "transport.logged_out"
)

// Session authentication lifecycle.
const (
	KindSessionQRGenerated   Kind = "session.qr_generated"
	KindSessionAuthenticated Kind = "session.authenticated"
	KindSessionAuthFailed    Kind = "session.auth_failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}
