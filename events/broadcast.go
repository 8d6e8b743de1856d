package events

import (
	"sync"
	"time"

	"storefront-backend/logger"
)

// StatusUpdate is what a polling client sees about an order.
type StatusUpdate struct {
	OrderID string    `json:"orderId"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
}

// Broadcaster keeps the latest status per order. Clients still poll over
// HTTP; nothing is pushed.
type Broadcaster struct {
	mu     sync.RWMutex
	latest map[string]StatusUpdate
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{latest: make(map[string]StatusUpdate)}
}

func (b *Broadcaster) Broadcast(orderID, status string) {
	u := StatusUpdate{OrderID: orderID, Status: status, At: time.Now().UTC()}
	b.mu.Lock()
	b.latest[orderID] = u
	b.mu.Unlock()
	logger.WithModule("broadcast").WithField("order_id", orderID).WithField("status", status).Debug("order status broadcast")
}

// Forget drops the order's entry.
func (b *Broadcaster) Forget(orderID string) {
	b.mu.Lock()
	delete(b.latest, orderID)
	b.mu.Unlock()
}

func (b *Broadcaster) Latest(orderID string) (StatusUpdate, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.latest[orderID]
	return u, ok
}
