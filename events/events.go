// Package events is a synchronous in-process domain event bus. Handlers run
// inside the publisher's transaction, so a handler error rolls back the
// write that raised the event.
package events

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, tx *gorm.DB, ev Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	b.handlers[name] = append(b.handlers[name], h)
	b.mu.Unlock()
}

// Publish runs every handler subscribed to ev.Name() in registration order and
// stops at the first error.
func (b *Bus) Publish(ctx context.Context, tx *gorm.DB, ev Event) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Name()]...)
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, tx, ev); err != nil {
			return fmt.Errorf("handle %s: %w", ev.Name(), err)
		}
	}
	return nil
}

const OrderStatusChangedName = "order.status_changed"

// OrderStatusChanged is raised whenever an order's status or paid flag changes.
type OrderStatusChanged struct {
	OrderID string
	From    string
	To      string
}

func (OrderStatusChanged) Name() string { return OrderStatusChangedName }
