package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Handler consumes one emitted event. data is shared by reference with every
// other handler of the same event and must be treated as read-only.
type Handler func(data any)

// Subscription identifies one registration; pass it to Off to remove it
type Subscription struct {
	Event types.EventName
	id    uint64
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus is the local publish/subscribe registry between the transport and the
// feature adapters.
// ARCHITECTURAL DISCOVERY: delivery is synchronous on the emitting goroutine
// and a panicking handler never stops delivery to its siblings
type Bus struct {
	mu       sync.RWMutex
	handlers map[types.EventName][]registration
	seq      atomic.Uint64
	faults   atomic.Int64
	log      logger.Logger
}

// New creates an empty bus
func New(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{
		handlers: make(map[types.EventName][]registration),
		log:      log.With(zap.String("component", "bus")),
	}
}

// On registers handler for name. Handlers of one name run in registration order.
func (b *Bus) On(name types.EventName, handler Handler) Subscription {
	sub := b.newSubscription(name)
	b.register(sub, handler)
	return sub
}

// Once registers a handler that removes itself after its first invocation.
// The subscription exists before registration, so an Emit on another
// goroutine can never observe it unset.
func (b *Bus) Once(name types.EventName, handler Handler) Subscription {
	sub := b.newSubscription(name)
	var fired atomic.Bool
	b.register(sub, func(data any) {
		if !fired.CompareAndSwap(false, true) {
			return
		}
		b.Off(sub)
		handler(data)
	})
	return sub
}

func (b *Bus) newSubscription(name types.EventName) Subscription {
	return Subscription{Event: name, id: b.seq.Add(1)}
}

func (b *Bus) register(sub Subscription, handler Handler) {
	b.mu.Lock()
	b.handlers[sub.Event] = append(b.handlers[sub.Event], registration{id: sub.id, handler: handler})
	b.mu.Unlock()
}

// Off removes the registration identified by sub. Unknown subscriptions are ignored.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[sub.Event]
	for i, r := range regs {
		if r.id != sub.id {
			continue
		}
		// copy so a snapshot held by an in-flight Emit is never modified
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, sub.Event)
		} else {
			b.handlers[sub.Event] = next
		}
		return
	}
}

// Emit invokes every handler registered for name at the moment of the call.
// Handlers added or removed during delivery take effect on the next Emit.
func (b *Bus) Emit(name types.EventName, data any) {
	b.mu.RLock()
	regs := b.handlers[name]
	b.mu.RUnlock()

	for _, r := range regs {
		b.invoke(name, r, data)
	}
}

func (b *Bus) invoke(name types.EventName, r registration, data any) {
	defer func() {
		if rec := recover(); rec != nil {
			b.faults.Add(1)
			b.log.Error("event handler failed",
				zap.String("event", string(name)),
				zap.Uint64("subscription", r.id),
				zap.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	r.handler(data)
}

// HandlerCount returns how many handlers are registered for name
func (b *Bus) HandlerCount(name types.EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Faults returns how many handler invocations have panicked since creation
func (b *Bus) Faults() int64 {
	return b.faults.Load()
}

// Subscribe registers a typed handler. Events whose payload is not a *T are
// logged and skipped.
func Subscribe[T any](b *Bus, name types.EventName, fn func(*T)) Subscription {
	return b.On(name, func(data any) {
		payload, ok := data.(*T)
		if !ok {
			b.log.Warn("unexpected payload type",
				zap.String("event", string(name)),
				zap.String("type", fmt.Sprintf("%T", data)),
			)
			return
		}
		fn(payload)
	})
}
