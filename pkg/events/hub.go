package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TypeBidPlaced        = "bid_placed"
	TypeOutbid           = "outbid"
	TypeAuctionStarted   = "auction_started"
	TypeAuctionSettled   = "auction_settled"
	TypeAuctionCancelled = "auction_cancelled"
	TypeLoanIssued       = "loan_issued"
	TypeLoanRepaid       = "loan_repaid"
	TypeLoanLiquidated   = "loan_liquidated"
)

// Event is one entry of the live settlement feed. Amount semantics depend
// on Type (bid amount, repayment amount, seller proceeds).
type Event struct {
	Type    string    `json:"type"`
	AssetID int64     `json:"asset_id"`
	Actor   string    `json:"actor,omitempty"`
	Amount  int64     `json:"amount,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher is what the settlement services see. Publishing must never
// fail a settlement; implementations drop events they cannot deliver.
type Publisher interface {
	Publish(e Event)
}

// subscriber is a connected feed consumer
type subscriber struct {
	UUID string
	Conn *websocket.Conn
	Send chan Event    // Channel to push feed events to this subscriber
	Done chan struct{} // Signal to stop reading/writing
}

// Hub manages all active settlement-feed WebSocket connections
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber // subscriber uuid -> connection
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]*subscriber),
	}
}

// Subscribe registers a new feed connection, replacing any existing
// connection for the same uuid.
func (h *Hub) Subscribe(uuid string, conn *websocket.Conn) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.subs[uuid]; ok {
		close(existing.Done)
		existing.Conn.Close()
	}

	sub := &subscriber{
		UUID: uuid,
		Conn: conn,
		Send: make(chan Event, 32), // Buffered to absorb bursts of bids
		Done: make(chan struct{}),
	}

	h.subs[uuid] = sub
	return sub
}

// Unsubscribe removes a feed connection
func (h *Hub) Unsubscribe(uuid string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[uuid]; ok {
		close(sub.Done)
		delete(h.subs, uuid)
	}
}

// SubscriberCount reports the number of connected feed consumers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Publish fans the event out to every subscriber. Slow or disconnected
// subscribers are skipped; the settlement that produced the event has
// already committed.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.Send <- e:
		case <-sub.Done:
		default:
		}
	}
}

// NoopPublisher discards events; used where no feed is wired.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) {}
