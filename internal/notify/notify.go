// Package notify delivers progression notifications to a user's open
// sockets and, for milestones, to their subscribed devices.
package notify

import (
	"log/slog"
	"sync"

	"github.com/dukerupert/ecochallenge/internal/progression"
	"github.com/dukerupert/ecochallenge/internal/push"
	"github.com/dukerupert/ecochallenge/internal/websocket"
)

type SocketSender interface {
	SendToUser(userID int64, v any) int
}

type PushSender interface {
	SendToUser(userID int64, payload push.Payload) int
}

// Dispatcher implements progression.Notifier. Push delivery runs in the
// background; Wait blocks until it drains.
type Dispatcher struct {
	sockets SocketSender
	push    PushSender
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New returns a Dispatcher. pushSender may be nil when web push is not configured.
func New(sockets SocketSender, pushSender PushSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sockets: sockets,
		push:    pushSender,
		logger:  logger.With("component", "notify"),
	}
}

func (d *Dispatcher) Notify(userID int64, n progression.Notification) {
	sent := d.sockets.SendToUser(userID, websocket.NewNotification(string(n.Kind), n.Title, n.Description))
	d.logger.Debug("notification", "user_id", userID, "kind", n.Kind, "title", n.Title, "sockets", sent)

	if d.push == nil || n.Kind != progression.KindMilestone {
		return
	}
	payload := push.Payload{
		Title: n.Title,
		Body:  n.Description,
		URL:   "/",
		Tag:   "milestone",
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.push.SendToUser(userID, payload)
	}()
}

// Wait blocks until in-flight push deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
