package realtime

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"freshershub/pkg/types"
)

// Rooms is the local membership set plus the joins still awaiting
// confirmation.
// ARCHITECTURAL DISCOVERY: members only grows through confirm; leave removes
// optimistically from both maps
type Rooms struct {
	mu      sync.RWMutex
	members map[string]string // roomID -> type, confirmed by the server
	pending map[string]string // roomID -> type, join sent but unconfirmed
}

func newRooms() *Rooms {
	return &Rooms{
		members: make(map[string]string),
		pending: make(map[string]string),
	}
}

func (r *Rooms) request(roomID, roomType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[roomID] = roomType
}

// confirm moves a pending join into the member set; unsolicited
// confirmations are rejected
func (r *Rooms) confirm(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomType, ok := r.pending[roomID]
	if !ok {
		return false
	}
	delete(r.pending, roomID)
	r.members[roomID] = roomType
	return true
}

func (r *Rooms) remove(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, roomID)
	delete(r.pending, roomID)
}

func (r *Rooms) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = make(map[string]string)
	r.pending = make(map[string]string)
}

func (r *Rooms) has(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[roomID]
	return ok
}

func (r *Rooms) isPending(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pending[roomID]
	return ok
}

// list returns confirmed room ids in sorted order
func (r *Rooms) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Join asks the server to add this session to a room. Membership only
// changes when the matching joined-room confirmation arrives. Joining a
// room already in the set re-sends the request.
func (s *Session) Join(roomID, roomType string) {
	if roomID == "" {
		return
	}
	if roomType == "" {
		roomType = types.RoomTypeGeneral
	}
	if !s.IsConnected() {
		s.log.Debug("join while disconnected dropped", zap.String("room", roomID))
		return
	}
	s.rooms.request(roomID, roomType)
	s.SendEvent(types.EventJoinRoom, &types.JoinRoomPayload{RoomID: roomID, RoomType: roomType}, roomID)
}

// Leave removes the room from the local set immediately and tells the
// server. Leaving a room not in the set only sends the request.
func (s *Session) Leave(roomID string) {
	if roomID == "" {
		return
	}
	s.rooms.remove(roomID)
	s.SendEvent(types.EventLeaveRoom, &types.LeaveRoomPayload{RoomID: roomID}, roomID)
}

// InRoom reports whether the server has confirmed membership of roomID
func (s *Session) InRoom(roomID string) bool { return s.rooms.has(roomID) }

// JoinPending reports whether a join for roomID awaits confirmation
func (s *Session) JoinPending(roomID string) bool { return s.rooms.isPending(roomID) }

// Rooms returns the confirmed membership set as a sorted slice
func (s *Session) Rooms() []string { return s.rooms.list() }
