package router

import (
	"sync"

	"freshershub/pkg/types"
)

// HistoryLimit bounds the chat history kept and returned per room
const HistoryLimit = 100

// memoryHistory keeps the newest HistoryLimit messages per room when no
// MessageStore is configured
type memoryHistory struct {
	mu    sync.RWMutex
	rooms map[string][]types.ChatMessage
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{rooms: make(map[string][]types.ChatMessage)}
}

func (h *memoryHistory) append(msg types.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := append(h.rooms[msg.RoomID], msg)
	if len(msgs) > HistoryLimit {
		msgs = append([]types.ChatMessage(nil), msgs[len(msgs)-HistoryLimit:]...)
	}
	h.rooms[msg.RoomID] = msgs
}

func (h *memoryHistory) list(roomID string) []types.ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]types.ChatMessage(nil), h.rooms[roomID]...)
}
