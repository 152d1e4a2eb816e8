// Package sse provides Server-Sent Events support for real-time session
// and toast updates.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ionizer_portal/platform/logger"

	"github.com/gin-gonic/gin"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventConnected EventType = "connected"
	EventSession   EventType = "session"
	EventToast     EventType = "toast"
)

const (
	clientBuffer     = 32
	defaultKeepAlive = 25 * time.Second
	keepAliveComment = ": keepalive\n\n"
)

// Event represents an SSE event payload
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	key    string
	events chan Event
}

// Service manages SSE connections per browser session key.
type Service struct {
	mu        sync.RWMutex
	clients   map[string][]*client // session key -> clients
	done      chan struct{}
	closeOnce sync.Once
	keepAlive time.Duration
	log       *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients:   make(map[string][]*client),
		done:      make(chan struct{}),
		keepAlive: defaultKeepAlive,
		log:       log,
	}
}

// WithKeepAlive sets the interval of keep-alive comments.
func (s *Service) WithKeepAlive(d time.Duration) *Service {
	s.keepAlive = d
	return s
}

// addClient registers a new client connection
func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.key] = append(s.clients[c.key], c)
}

// removeClient unregisters a client connection
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.key]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.key] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.key]) == 0 {
		delete(s.clients, c.key)
	}
}

// Publish sends an event to every stream of one browser session. A full
// client buffer drops the event for that client.
func (s *Service) Publish(key string, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients[key]
	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "session_key", logger.ShortKey(key), "type", string(event.Type))
		}
	}
}

// Clients returns the number of open streams for key.
func (s *Service) Clients(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[key])
}

// Handler returns a Gin handler for SSE connections. getKey identifies the
// browser session; initial, when non-nil, is sent right after connecting.
func (s *Service) Handler(getKey func(*gin.Context) (string, bool), initial func(*gin.Context) *Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := getKey(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Set SSE headers
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{key: key, events: make(chan Event, clientBuffer)}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent(string(EventConnected), gin.H{"connected": true})
		if initial != nil {
			if ev := initial(c); ev != nil {
				writeEvent(c, *ev)
			}
		}
		c.Writer.Flush()

		log := s.log.WithContext(c.Request.Context())
		log.Debug("sse client connected")

		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				log.Debug("sse client disconnected")
				return
			case <-s.done:
				return
			case <-ticker.C:
				_, _ = c.Writer.WriteString(keepAliveComment)
				c.Writer.Flush()
			case event := <-cl.events:
				writeEvent(c, event)
				c.Writer.Flush()
			}
		}
	}
}

func writeEvent(c *gin.Context, event Event) {
	data, _ := json.Marshal(event.Data)
	c.SSEvent(string(event.Type), string(data))
}

// Close ends every open stream.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
