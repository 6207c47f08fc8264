package wa

import (
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

// ParseLiveMessage normalizes a live whatsmeow message event into a store
// message.
func ParseLiveMessage(evt *events.Message) *store.Message {
	status := "received"
	if evt.Info.IsFromMe {
		status = "sent"
	}
	return &store.Message{
		ChatID:           evt.Info.Chat.String(),
		ID:               evt.Info.ID,
		SenderID:         evt.Info.Sender.String(),
		SenderName:       evt.Info.PushName,
		Body:             extractTextBody(evt.Message),
		Type:             detectMessageType(evt.Message),
		FromMe:           evt.Info.IsFromMe,
		Status:           status,
		MessageTimestamp: evt.Info.Timestamp.UnixMilli(),
	}
}

// ParseHistoryMessage normalizes one history sync message. Returns nil for
// entries without a payload or id.
func ParseHistoryMessage(chatID string, wmsg *waWeb.WebMessageInfo) *store.Message {
	if wmsg == nil || wmsg.GetMessage() == nil {
		return nil
	}
	id := wmsg.GetKey().GetID()
	if id == "" {
		return nil
	}

	sender := wmsg.GetKey().GetParticipant()
	if sender == "" {
		sender = chatID
	}
	status := "received"
	if wmsg.GetKey().GetFromMe() {
		status = "sent"
	}
	return &store.Message{
		ChatID:           chatID,
		ID:               id,
		SenderID:         sender,
		SenderName:       wmsg.GetPushName(),
		Body:             extractTextBody(wmsg.GetMessage()),
		Type:             detectMessageType(wmsg.GetMessage()),
		FromMe:           wmsg.GetKey().GetFromMe(),
		Status:           status,
		MessageTimestamp: int64(wmsg.GetMessageTimestamp()) * 1000,
	}
}

// IsGroupJID reports whether a conversation id addresses a group.
func IsGroupJID(id string) bool {
	return strings.HasSuffix(id, "@g.us")
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
