/**
 * @description
 * Package audit fans out sign/verify events to connected WebSocket
 * subscribers over Redis Pub/Sub, modeled channel-for-channel on
 * backend/internal/websocket/hub.go and
 * backend/internal/services/market_stream_service.go, generalized
 * from market order-book updates to STIR/SHAKEN audit events.
 *
 * Key features:
 * - Multi-Instance Fanout: Publish writes to a Redis channel rather
 *   than broadcasting in-process, so every process instance's
 *   WebSocket clients see every audit event regardless of which
 *   instance handled the sign/verify call.
 * - Backpressure Handling: a client whose send buffer is full is
 *   dropped rather than blocking the broadcast loop for everyone else.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Pub/Sub channel.
 * - github.com/gorilla/websocket: client transport (client.go).
 */
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const channel = "shaken:audit"

// Event is one audited sign or verify outcome.
type Event struct {
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub maintains the set of connected audit-stream clients and
// broadcasts events published to the Redis channel to all of them.
type Hub struct {
	clients     map[*Client]bool
	Register    chan *Client
	Unregister  chan *Client
	redisClient *redis.Client
	logger      *slog.Logger
	ctx         context.Context
}

/**
 * @description
 * NewHub builds a Hub. Call Run in a goroutine once at startup.
 *
 * @param ctx Cancelled to shut the hub's event loop down.
 * @param logger A structured logger for connect/disconnect/error events.
 * @param redisClient The Redis client backing the Pub/Sub channel.
 * @returns A *Hub ready to register clients and have Run started.
 */
func NewHub(ctx context.Context, logger *slog.Logger, redisClient *redis.Client) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		Register:    make(chan *Client),
		Unregister:  make(chan *Client),
		redisClient: redisClient,
		logger:      logger,
		ctx:         ctx,
	}
}

/**
 * @description
 * Publish implements core.EventSink by publishing the event to Redis;
 * Run's subscriber loop picks it up and fans it out to clients. This
 * indirection lets multiple process instances share one audit stream.
 *
 * @param kind The event kind, e.g. "sign.succeeded" or "verify.succeeded".
 * @param detail Event-specific fields, e.g. caller_tn or public_key_url.
 * @returns Nothing; publish failures are logged, not returned, since
 * Core.Sign/Verify must not fail a request over a broken audit stream.
 */
func (h *Hub) Publish(ctx context.Context, kind string, detail map[string]any) {
	evt := Event{Kind: kind, Detail: detail, Timestamp: time.Now()}
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal audit event", "error", err, "kind", kind)
		return
	}
	if err := h.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		h.logger.Error("failed to publish audit event", "error", err, "kind", kind)
	}
}

// Run is the hub's event loop: client (un)registration plus the
// Redis subscription that feeds every connected client.
func (h *Hub) Run() {
	pubsub := h.redisClient.Subscribe(h.ctx, channel)
	defer pubsub.Close()
	messages := pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("audit hub shutting down")
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.logger.Info("audit client registered", "total_clients", len(h.clients))
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("audit client unregistered", "total_clients", len(h.clients))
			}
		case msg := <-messages:
			h.broadcast([]byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(message []byte) {
	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			h.logger.Warn("audit client send buffer full, dropping client")
			close(client.Send)
			delete(h.clients, client)
		}
	}
}
