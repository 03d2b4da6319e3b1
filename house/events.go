package house

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/StabilityNexus/hammerhouse/houseapi"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The event feed is broadcast-only public data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventHub fans emitted events out to websocket subscribers. Slow
// subscribers are dropped rather than allowed to stall the feed.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
	feed chan []byte
}

func newEventHub() *eventHub {
	return &eventHub{
		subs: make(map[chan []byte]struct{}),
		feed: make(chan []byte, 256),
	}
}

func (hub *eventHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			hub.mu.Lock()
			for sub := range hub.subs {
				close(sub)
				delete(hub.subs, sub)
			}
			hub.mu.Unlock()
			return
		case msg := <-hub.feed:
			hub.mu.Lock()
			for sub := range hub.subs {
				select {
				case sub <- msg:
				default:
					close(sub)
					delete(hub.subs, sub)
				}
			}
			hub.mu.Unlock()
		}
	}
}

func (hub *eventHub) broadcast(envelopes []houseapi.EventEnvelope) {
	for _, env := range envelopes {
		msg, err := json.Marshal(env)
		if err != nil {
			log.Printf("ERROR: Failed to encode event %s: %v", env.Name, err)
			continue
		}
		select {
		case hub.feed <- msg:
		default:
			log.Printf("WARNING: Event feed full, dropping %s", env.Name)
		}
	}
}

func (hub *eventHub) subscribe() chan []byte {
	sub := make(chan []byte, 64)
	hub.mu.Lock()
	hub.subs[sub] = struct{}{}
	hub.mu.Unlock()
	return sub
}

func (hub *eventHub) unsubscribe(sub chan []byte) {
	hub.mu.Lock()
	if _, ok := hub.subs[sub]; ok {
		delete(hub.subs, sub)
		close(sub)
	}
	hub.mu.Unlock()
}

// handleEvents upgrades to a websocket and streams the event feed.
func (h *House) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: Websocket upgrade failed: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close websocket: %v", err)
		}
	}()

	sub := h.hub.subscribe()
	defer h.hub.unsubscribe(sub)

	for msg := range sub {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("INFO: Event subscriber disconnected: %v", err)
			return
		}
	}
}
