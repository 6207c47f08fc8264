package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rsuppersahabatan/baileys-api/internal/store"
)

// FormatVersion tags the on-disk document layout. There is no cross-version
// migration; an unknown version is a load failure.
const FormatVersion = 1

// MinSnapshotSize is the smallest byte size a snapshot file can legitimately
// have. Files below it are treated as truncated and ignored on read, and a
// write producing less is rejected before the atomic rename.
const MinSnapshotSize = 64

// Pair serializes an (id, value) tuple as a two-element JSON array,
// preserving entry order inside the document.
type Pair[T any] struct {
	ID    string
	Value *T
}

func (p Pair[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Value})
}

func (p *Pair[T]) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Value)
}

// Document is the serialized form of the whole store.
type Document struct {
	Version   int                              `json:"version"`
	Timestamp int64                            `json:"timestamp"`
	Chats     []Pair[store.Chat]               `json:"chats"`
	Messages  map[string][]Pair[store.Message] `json:"messages"`
	Contacts  []Pair[store.Contact]            `json:"contacts"`
	Groups    []Pair[store.GroupMetadata]      `json:"groupMetadata"`
	Stats     store.Stats                      `json:"stats"`
}

// Encode serializes an export into snapshot bytes.
func Encode(ex *store.Export, now time.Time) ([]byte, error) {
	doc := Document{
		Version:   FormatVersion,
		Timestamp: now.UnixMilli(),
		Chats:     make([]Pair[store.Chat], 0, len(ex.Chats)),
		Messages:  make(map[string][]Pair[store.Message], len(ex.Messages)),
		Contacts:  make([]Pair[store.Contact], 0, len(ex.Contacts)),
		Groups:    make([]Pair[store.GroupMetadata], 0, len(ex.Groups)),
		Stats:     ex.Stats,
	}

	for _, c := range ex.Chats {
		doc.Chats = append(doc.Chats, Pair[store.Chat]{ID: c.ID, Value: c})
	}
	for chatID, msgs := range ex.Messages {
		pairs := make([]Pair[store.Message], 0, len(msgs))
		for _, m := range msgs {
			pairs = append(pairs, Pair[store.Message]{ID: m.ID, Value: m})
		}
		doc.Messages[chatID] = pairs
	}
	for _, c := range ex.Contacts {
		doc.Contacts = append(doc.Contacts, Pair[store.Contact]{ID: c.ID, Value: c})
	}
	for _, g := range ex.Groups {
		doc.Groups = append(doc.Groups, Pair[store.GroupMetadata]{ID: g.ID, Value: g})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode validates snapshot bytes against the document schema and converts
// them back into a store export.
func Decode(data []byte) (*store.Export, error) {
	if err := validateDocument(data); err != nil {
		return nil, fmt.Errorf("snapshot structure invalid: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}

	ex := &store.Export{
		Chats:    make([]*store.Chat, 0, len(doc.Chats)),
		Messages: make(map[string][]*store.Message, len(doc.Messages)),
		Contacts: make([]*store.Contact, 0, len(doc.Contacts)),
		Groups:   make([]*store.GroupMetadata, 0, len(doc.Groups)),
		Stats:    doc.Stats,
	}

	for _, p := range doc.Chats {
		if p.Value == nil || p.ID == "" {
			continue
		}
		p.Value.ID = p.ID
		ex.Chats = append(ex.Chats, p.Value)
	}
	for chatID, pairs := range doc.Messages {
		msgs := make([]*store.Message, 0, len(pairs))
		for _, p := range pairs {
			if p.Value == nil || p.ID == "" {
				continue
			}
			p.Value.ID = p.ID
			p.Value.ChatID = chatID
			msgs = append(msgs, p.Value)
		}
		ex.Messages[chatID] = msgs
	}
	for _, p := range doc.Contacts {
		if p.Value == nil || p.ID == "" {
			continue
		}
		p.Value.ID = p.ID
		ex.Contacts = append(ex.Contacts, p.Value)
	}
	for _, p := range doc.Groups {
		if p.Value == nil || p.ID == "" {
			continue
		}
		p.Value.ID = p.ID
		ex.Groups = append(ex.Groups, p.Value)
	}

	return ex, nil
}
