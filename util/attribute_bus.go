// api/util/attribute_bus.go

package util

import (
	"context"
	"sync"

	"go.uber.org/zap"

	logger "github.com/dev-sgill/arbiter/api/logging"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

// AttributeBus distributes live attribute values to streaming voters. It
// keeps the last published value per attribute so a new subscription starts
// with the current state instead of waiting for the next update.
type AttributeBus struct {
	mu          sync.RWMutex
	current     map[string]pdpmodel.Value
	subscribers map[string][]chan pdpmodel.Value
}

func NewAttributeBus() *AttributeBus {
	return &AttributeBus{
		current:     make(map[string]pdpmodel.Value),
		subscribers: make(map[string][]chan pdpmodel.Value),
	}
}

// Publish updates an attribute and notifies every open subscription. A
// subscriber that cannot keep up loses the update; it will still see the
// attribute's latest state on the next one.
func (b *AttributeBus) Publish(name string, value pdpmodel.Value) {
	b.mu.Lock()
	b.current[name] = value
	subs := make([]chan pdpmodel.Value, len(b.subscribers[name]))
	copy(subs, b.subscribers[name])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- value:
		default:
			logger.Warn("Attribute subscriber is not keeping up, dropping update",
				zap.String("attribute", name))
		}
	}
}

// Current returns the last published value for an attribute.
func (b *AttributeBus) Current(name string) (pdpmodel.Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.current[name]
	return v, ok
}

// Observe opens a subscription for an attribute. The current value, when
// known, is delivered first. The returned channel is closed when ctx is
// cancelled.
func (b *AttributeBus) Observe(ctx context.Context, name string) <-chan pdpmodel.Value {
	updates := make(chan pdpmodel.Value, 16)

	b.mu.Lock()
	b.subscribers[name] = append(b.subscribers[name], updates)
	initial, hasInitial := b.current[name]
	b.mu.Unlock()

	out := make(chan pdpmodel.Value)
	go func() {
		defer close(out)
		defer b.unsubscribe(name, updates)

		if hasInitial {
			select {
			case out <- initial:
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case v := <-updates:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (b *AttributeBus) unsubscribe(name string, ch chan pdpmodel.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[name]
	for i, c := range subs {
		if c == ch {
			b.subscribers[name] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
