package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans live trip events (points, proximity hits, terminations) out to
// websocket clients, and across agent instances via redis pub/sub when a
// redis client is attached.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	TripID string
	Send   chan []byte
}

// Event is the envelope every hub message uses.
type Event struct {
	Type   string `json:"type"`
	TripID string `json:"trip_id"`
	Data   any    `json:"data,omitempty"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(tripID string) *Client {
	client := &Client{
		TripID: tripID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tripID] == nil {
		h.clients[tripID] = map[*Client]struct{}{}
	}
	h.clients[tripID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tripClients, ok := h.clients[client.TripID]; ok {
		delete(tripClients, client)
		if len(tripClients) == 0 {
			delete(h.clients, client.TripID)
		}
	}
	close(client.Send)
}

// Publish marshals an event and broadcasts it to the trip's subscribers.
func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("stream marshal error: %v", err)
		return
	}
	h.Broadcast(ev.TripID, payload)
}

// Broadcast sends a raw payload to the trip's subscribers. With redis
// attached the payload rides pub/sub and the pattern subscription fans it
// out on every instance, this one included; local delivery is the fallback
// when there is no redis or the publish fails.
func (h *Hub) Broadcast(tripID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(tripID), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error: %v", err)
	}
	h.deliver(tripID, payload)
}

func (h *Hub) deliver(tripID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[tripID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "trip:*:events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliver(tripIDFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func redisChannel(tripID string) string {
	return "trip:" + tripID + ":events"
}

func tripIDFromChannel(ch string) string {
	// trip:{id}:events
	const prefix = "trip:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
