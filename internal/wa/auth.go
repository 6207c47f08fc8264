package wa

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/rsuppersahabatan/baileys-api/internal/bus"
)

// StartQRAuth begins the QR pairing flow: each pairing code is rendered to
// stderr and published on the bus, and the flow ends on success, timeout or
// error. Connect is called internally; callers just wait for the returned
// channel to close.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan struct{}, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			a.logger.Error("connect for pairing failed", zap.Error(err))
			a.publishAuth(bus.KindSessionAuthFailed, err.Error())
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				a.renderQR(item.Code)
				a.publishAuth(bus.KindSessionQRGenerated, item.Code)
			case "success":
				a.logger.Info("WhatsApp pairing succeeded")
				a.publishAuth(bus.KindSessionAuthenticated, nil)
				return
			case "timeout":
				a.logger.Warn("QR pairing timed out")
				a.publishAuth(bus.KindSessionAuthFailed, "timeout")
				return
			default:
				if item.Error != nil {
					a.logger.Error("QR pairing failed", zap.Error(item.Error))
					a.publishAuth(bus.KindSessionAuthFailed, item.Error.Error())
					return
				}
			}
		}
	}()

	return done, nil
}

func (a *Adapter) renderQR(code string) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		a.logger.Error("render QR code failed", zap.Error(err))
		return
	}
	fmt.Fprintln(os.Stderr, "Scan the QR code with WhatsApp on your phone:")
	fmt.Fprint(os.Stderr, qr.ToSmallString(false))
}

func (a *Adapter) publishAuth(kind bus.Kind, payload any) {
	a.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
