package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

func newTestBus() *Bus { return New(logger.NewNop()) }

func TestBus_RegistrationOrder(t *testing.T) {
	b := newTestBus()
	var order []string

	b.On(types.EventChatMessage, func(any) { order = append(order, "h1") })
	b.On(types.EventChatMessage, func(any) { order = append(order, "h2") })
	b.On(types.EventChatMessage, func(any) { order = append(order, "h3") })

	b.Emit(types.EventChatMessage, nil)
	assert.Equal(t, []string{"h1", "h2", "h3"}, order)
}

func TestBus_ChatMessageSharedPayload(t *testing.T) {
	b := newTestBus()
	payload := &types.ChatMessage{RoomID: "r1", Message: "hi"}

	var order []string
	var seenA, seenB *types.ChatMessage
	b.On(types.EventChatMessage, func(data any) {
		order = append(order, "A")
		seenA = data.(*types.ChatMessage)
	})
	b.On(types.EventChatMessage, func(data any) {
		order = append(order, "B")
		seenB = data.(*types.ChatMessage)
	})

	b.Emit(types.EventChatMessage, payload)

	assert.Equal(t, []string{"A", "B"}, order)
	assert.Same(t, payload, seenA)
	assert.Same(t, payload, seenB)
}

func TestBus_HandlerPanicIsolated(t *testing.T) {
	tests := []struct {
		name        string
		handlers    int
		panicking   int
		wantInvoked int
	}{
		{"first panics", 3, 0, 2},
		{"middle panics", 3, 1, 2},
		{"last panics", 3, 2, 2},
		{"two handlers", 2, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBus()
			calls := make([]int, tt.handlers)
			for i := 0; i < tt.handlers; i++ {
				i := i
				b.On(types.EventNotification, func(any) {
					if i == tt.panicking {
						panic("adapter bug")
					}
					calls[i]++
				})
			}

			require.NotPanics(t, func() { b.Emit(types.EventNotification, &types.Notification{}) })

			invoked := 0
			for i, c := range calls {
				if i == tt.panicking {
					continue
				}
				assert.Equal(t, 1, c, "handler %d", i)
				invoked += c
			}
			assert.Equal(t, tt.wantInvoked, invoked)
			assert.EqualValues(t, 1, b.Faults())
		})
	}
}

func TestBus_OffRemovesOnlyThatHandler(t *testing.T) {
	b := newTestBus()
	var got []string

	subA := b.On(types.EventPong, func(any) { got = append(got, "a") })
	b.On(types.EventPong, func(any) { got = append(got, "b") })

	b.Off(subA)
	b.Off(subA) // second removal is a no-op
	b.Off(Subscription{Event: types.EventNotification, id: 999})

	b.Emit(types.EventPong, nil)
	assert.Equal(t, []string{"b"}, got)
	assert.Equal(t, 1, b.HandlerCount(types.EventPong))
}

func TestBus_MutationDuringDispatch(t *testing.T) {
	b := newTestBus()
	var got []string

	var subB Subscription
	b.On(types.EventSystemMessage, func(any) {
		got = append(got, "a")
		b.Off(subB)
		b.On(types.EventSystemMessage, func(any) { got = append(got, "late") })
	})
	subB = b.On(types.EventSystemMessage, func(any) { got = append(got, "b") })

	b.Emit(types.EventSystemMessage, nil)
	assert.Equal(t, []string{"a", "b"}, got, "snapshot taken at emit time")

	got = nil
	b.Emit(types.EventSystemMessage, nil)
	assert.Equal(t, []string{"a", "late"}, got)
}

func TestBus_EmitWithoutHandlers(t *testing.T) {
	b := newTestBus()
	assert.NotPanics(t, func() { b.Emit(types.EventName("nobody-listens"), 1) })
}

func TestBus_Once(t *testing.T) {
	b := newTestBus()
	count := 0
	b.Once(types.EventAuthenticated, func(any) { count++ })

	b.Emit(types.EventAuthenticated, nil)
	b.Emit(types.EventAuthenticated, nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, b.HandlerCount(types.EventAuthenticated))
}

// An Emit running on another goroutine while Once registers must still
// remove the registration after the first call.
func TestBus_OnceWithConcurrentEmit(t *testing.T) {
	for i := 0; i < 200; i++ {
		b := newTestBus()
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					b.Emit(types.EventPong, nil)
				}
			}
		}()

		var calls atomic.Int32
		b.Once(types.EventPong, func(any) { calls.Add(1) })
		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		close(stop)
		wg.Wait()

		require.Equal(t, int32(1), calls.Load(), "iteration %d", i)
		require.Equal(t, 0, b.HandlerCount(types.EventPong), "iteration %d", i)
	}
}

func TestSubscribe_Typed(t *testing.T) {
	b := newTestBus()
	var rooms []string
	Subscribe(b, types.EventJoinedRoom, func(p *types.JoinedRoom) {
		rooms = append(rooms, p.RoomID)
	})

	b.Emit(types.EventJoinedRoom, &types.JoinedRoom{RoomID: "r1"})
	b.Emit(types.EventJoinedRoom, "wrong type")

	assert.Equal(t, []string{"r1"}, rooms)
}
