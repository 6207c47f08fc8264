package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
	"github.com/rsuppersahabatan/baileys-api/internal/session"
	"github.com/rsuppersahabatan/baileys-api/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	session   string
}

// NewAdapter creates a new WhatsApp adapter for the given session.
func NewAdapter(ctx context.Context, sessionName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("BaileysAPI", [3]uint32{0, 1, 0})

	dbPath := session.CredsDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create credentials store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// FetchGroupMetadata resolves full group metadata from the server.
func (a *Adapter) FetchGroupMetadata(ctx context.Context, id string) (*store.GroupMetadata, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return nil, fmt.Errorf("parse group JID: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("fetch group info: %w", err)
	}
	return groupInfoToMetadata(info), nil
}

// DeviceContacts returns all contacts known to the whatsmeow device store,
// used to seed the contact mapping on startup.
func (a *Adapter) DeviceContacts(ctx context.Context) []*store.Contact {
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	var contacts []*store.Contact
	for jid, info := range allContacts {
		contacts = append(contacts, &store.Contact{
			ID:           jid.ToNonAD().String(),
			Name:         info.FullName,
			PushName:     info.PushName,
			BusinessName: info.BusinessName,
		})
	}
	return contacts
}

func groupInfoToMetadata(info *types.GroupInfo) *store.GroupMetadata {
	md := &store.GroupMetadata{
		ID:          info.JID.String(),
		Subject:     info.GroupName.Name,
		Description: info.GroupTopic.Topic,
	}
	if !info.OwnerJID.IsEmpty() {
		md.Owner = info.OwnerJID.String()
	}
	if !info.GroupCreated.IsZero() {
		md.CreatedAt = info.GroupCreated.UnixMilli()
	}
	for _, p := range info.Participants {
		md.Participants = append(md.Participants, store.GroupParticipant{
			ID:           p.JID.String(),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		})
	}
	return md
}
