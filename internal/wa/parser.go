package wa

import (
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// ProviderMessage is a normalized session event ready for ingestion. Raw
// addresses are transport-qualified; canonicalization into a ContactId
// happens at ingestion, not here.
type ProviderMessage struct {
	TenantID      string
	RawChat       string
	RawSender     string
	ProviderMsgID string
	SenderName    string
	Body          string
	MessageType   string
	FromMe        bool
	Timestamp     int64
}

// ParseLiveMessage normalizes a live whatsmeow message event.
func ParseLiveMessage(tenantID string, evt *events.Message) *ProviderMessage {
	return &ProviderMessage{
		TenantID:      tenantID,
		RawChat:       NormalizeJID(evt.Info.Chat.String()),
		RawSender:     NormalizeJID(evt.Info.Sender.String()),
		ProviderMsgID: evt.Info.ID,
		SenderName:    evt.Info.PushName,
		Body:          extractTextBody(evt.Message),
		MessageType:   detectMessageType(evt.Message),
		FromMe:        evt.Info.IsFromMe,
		Timestamp:     evt.Info.Timestamp.UnixMilli(),
	}
}

// NormalizeJID strips the device suffix from a JID string. History sync
// and live messages otherwise produce different JIDs for the same party.
func NormalizeJID(jid string) string {
	at := strings.IndexByte(jid, '@')
	if at < 0 {
		return jid
	}
	user := jid[:at]
	if colon := strings.IndexByte(user, ':'); colon >= 0 {
		user = user[:colon]
	}
	return user + jid[at:]
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
