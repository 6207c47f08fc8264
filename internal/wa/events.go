package wa

import (
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/histsync"
	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

// EventHandler translates whatsmeow events into transport.* bus events.
// It never touches the store directly; the binder subscribes to the bus
// and routes each event to the right mutation.
type EventHandler struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{bus: b, logger: logger}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.PushName:
		h.publish(bus.KindTransportContacts, []*store.Contact{{
			ID:       evt.JID.ToNonAD().String(),
			PushName: evt.NewPushName,
		}})
	case *events.DeleteChat:
		h.publish(bus.KindTransportChatDelete, []string{evt.JID.String()})
	case *events.Archive:
		archived := evt.Action.GetArchived()
		h.publish(bus.KindTransportChatUpdate, []*store.ChatFlags{{
			ID:       evt.JID.String(),
			Archived: &archived,
		}})
	case *events.Pin:
		pinned := evt.Action.GetPinned()
		h.publish(bus.KindTransportChatUpdate, []*store.ChatFlags{{
			ID:     evt.JID.String(),
			Pinned: &pinned,
		}})
	case *events.Mute:
		h.publish(bus.KindTransportChatUpdate, []*store.ChatFlags{{
			ID:        evt.JID.String(),
			MuteUntil: muteUntil(evt.Action.GetMuted(), evt.Action.GetMuteEndTimestamp()),
		}})
	case *events.GroupInfo:
		h.handleGroupInfo(evt)
	case *events.JoinedGroup:
		h.publish(bus.KindTransportGroupUpdate, []*store.GroupMetadata{
			groupInfoToMetadata(&evt.GroupInfo),
		})
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.publish(bus.KindTransportConnected, nil)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.publish(bus.KindTransportDisconnected, nil)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		h.publish(bus.KindTransportLoggedOut, evt.Reason.String())
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	msg := ParseLiveMessage(evt)
	if msg.ChatID == "" || msg.ID == "" {
		return
	}
	h.publish(bus.KindTransportMessages, store.MessageBatch{
		Kind:     store.BatchNotify,
		Messages: []*store.Message{msg},
	})
}

// handleHistorySync flattens one whatsmeow history payload into a batch:
// conversations become chats, their message lists are parsed individually,
// and push names become contacts. Records without usable ids are skipped.
func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	batch := &histsync.Batch{
		SyncType: syncTypeTag(data.GetSyncType()),
		Progress: int32(data.GetProgress()),
		IsLatest: data.GetSyncType() == waHistorySync.HistorySync_INITIAL_BOOTSTRAP,
	}

	for _, conv := range data.GetConversations() {
		chatID := conv.GetID()
		if chatID == "" {
			continue
		}
		batch.Chats = append(batch.Chats, &store.Chat{
			ID:                    chatID,
			Name:                  conv.GetName(),
			IsGroup:               IsGroupJID(chatID),
			UnreadCount:           int(conv.GetUnreadCount()),
			ConversationTimestamp: int64(conv.GetConversationTimestamp()) * 1000,
			Archived:              conv.GetArchived(),
		})
		for _, hm := range conv.GetMessages() {
			if msg := ParseHistoryMessage(chatID, hm.GetMessage()); msg != nil {
				batch.Messages = append(batch.Messages, msg)
			}
		}
	}

	for _, pn := range data.GetPushnames() {
		if pn.GetID() == "" {
			continue
		}
		batch.Contacts = append(batch.Contacts, &store.Contact{
			ID:       pn.GetID(),
			PushName: pn.GetPushname(),
		})
	}

	if len(batch.Chats) == 0 && len(batch.Contacts) == 0 && len(batch.Messages) == 0 && !batch.Completes() {
		return
	}

	h.logger.Debug("history sync payload",
		zap.String("sync_type", batch.SyncType),
		zap.Int32("progress", batch.Progress),
		zap.Int("chats", len(batch.Chats)),
		zap.Int("messages", len(batch.Messages)))
	h.publish(bus.KindTransportHistory, batch)
}

func (h *EventHandler) handleGroupInfo(evt *events.GroupInfo) {
	md := &store.GroupMetadata{ID: evt.JID.String()}
	if evt.Name != nil {
		md.Subject = evt.Name.Name
	}
	if evt.Topic != nil {
		md.Description = evt.Topic.Topic
	}
	h.publish(bus.KindTransportGroupUpdate, []*store.GroupMetadata{md})
}

// muteUntil maps a mute action to the stored expiry. An unmute stores 0;
// a mute with no end timestamp stores -1 (muted indefinitely).
func muteUntil(muted bool, endTS int64) *int64 {
	var v int64
	switch {
	case !muted:
		v = 0
	case endTS > 0:
		v = endTS
	default:
		v = -1
	}
	return &v
}

func syncTypeTag(t waHistorySync.HistorySync_HistorySyncType) string {
	switch t {
	case waHistorySync.HistorySync_ON_DEMAND:
		return histsync.SyncTypeOnDemand
	case waHistorySync.HistorySync_INITIAL_BOOTSTRAP:
		return "initial"
	case waHistorySync.HistorySync_RECENT:
		return "recent"
	case waHistorySync.HistorySync_FULL:
		return "full"
	case waHistorySync.HistorySync_PUSH_NAME:
		return "push_name"
	default:
		return strings.ToLower(t.String())
	}
}

func (h *EventHandler) publish(kind bus.Kind, payload any) {
	h.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
