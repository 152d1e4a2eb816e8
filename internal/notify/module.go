// Package notify delivers session changes and toasts to the browser over
// Server-Sent Events. It listens on the event bus; publishers only need the
// browser's session key.
package notify

import (
	"context"

	"ionizer_portal/internal/events"
	apphttp "ionizer_portal/internal/http"
	"ionizer_portal/internal/notify/sse"
	"ionizer_portal/internal/session"
	"ionizer_portal/platform/logger"

	"github.com/gin-gonic/gin"
)

// Toast is the payload of a toast SSE event.
type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Module is the notification module implementing http.Module.
type Module struct {
	bus events.Bus
	hub *sse.Service
	log *logger.Logger
}

// NewModule creates the module and subscribes it to session and toast events.
func NewModule(bus events.Bus, log *logger.Logger) *Module {
	m := &Module{bus: bus, hub: sse.New(log), log: log}
	bus.Subscribe(events.SessionStateChanged{}.EventName(), events.HandlerFunc(m.onSessionChanged))
	bus.Subscribe(events.ToastRaised{}.EventName(), events.HandlerFunc(m.onToast))
	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notify"
}

// RegisterRoutes mounts the event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/session/events", m.hub.Handler(streamKey, initialState))
}

// Report raises an error toast for the browser whose session key is on
// ctx. Calls without a session key are only logged.
func (m *Module) Report(ctx context.Context, message string) {
	key, _ := ctx.Value(logger.SessionKeyKey).(string)
	if key == "" {
		m.log.WithContext(ctx).Warn("toast without session key dropped", "message", message)
		return
	}
	m.bus.Publish(ctx, events.ToastRaised{
		BaseEvent:  events.NewBaseEvent(),
		SessionKey: key,
		Level:      events.ToastError,
		Message:    message,
	})
}

// Close ends all open streams.
func (m *Module) Close() {
	m.hub.Close()
}

func (m *Module) onSessionChanged(_ context.Context, e events.Event) error {
	ev, ok := e.(events.SessionStateChanged)
	if !ok {
		return nil
	}
	m.hub.Publish(ev.SessionKey, sse.Event{Type: sse.EventSession, Data: ev.State})
	return nil
}

func (m *Module) onToast(_ context.Context, e events.Event) error {
	ev, ok := e.(events.ToastRaised)
	if !ok {
		return nil
	}
	m.hub.Publish(ev.SessionKey, sse.Event{Type: sse.EventToast, Data: Toast{Level: ev.Level, Message: ev.Message}})
	return nil
}

func streamKey(c *gin.Context) (string, bool) {
	entry, ok := session.EntryFrom(c)
	if !ok {
		return "", false
	}
	return entry.Store.Key(), true
}

func initialState(c *gin.Context) *sse.Event {
	entry, ok := session.EntryFrom(c)
	if !ok {
		return nil
	}
	return &sse.Event{Type: sse.EventSession, Data: entry.Store.SnapshotEvent()}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
