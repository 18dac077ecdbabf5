package features

import (
	"sync"

	"freshershub/internal/bus"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Forum follows typing, comments and likes on watched posts
type Forum struct {
	adapter
	typing *typers

	mu       sync.RWMutex
	comments map[string][]types.NewComment // postID -> comments in arrival order
	likes    map[string]int
}

func NewForum(t Transport, log logger.Logger) *Forum {
	f := &Forum{
		adapter:  newAdapter(t, log),
		typing:   newTypers(),
		comments: make(map[string][]types.NewComment),
		likes:    make(map[string]int),
	}
	b := t.Bus()
	f.track(
		bus.Subscribe(b, types.EventUserTyping, func(e *types.TypingEvent) {
			if e.PostID != "" && !f.self(e.User) {
				f.typing.start(e.PostID, e.User)
			}
		}),
		bus.Subscribe(b, types.EventUserStopTyping, func(e *types.TypingEvent) {
			if e.PostID != "" {
				f.typing.stop(e.PostID, e.User)
			}
		}),
		bus.Subscribe(b, types.EventNewComment, func(c *types.NewComment) {
			if c.PostID == "" {
				return
			}
			f.mu.Lock()
			f.comments[c.PostID] = append(f.comments[c.PostID], *c)
			f.mu.Unlock()
			f.typing.stop(c.PostID, c.Author)
		}),
		bus.Subscribe(b, types.EventPostLiked, func(p *types.PostLiked) {
			f.mu.Lock()
			f.likes[p.PostID] = p.Likes
			f.mu.Unlock()
		}),
	)
	return f
}

// WatchPost joins the post's room so its events reach this session
func (f *Forum) WatchPost(postID string) {
	if postID != "" {
		f.t.Join(types.PostRoomID(postID), types.RoomTypeForumPost)
	}
}

func (f *Forum) UnwatchPost(postID string) {
	if postID == "" {
		return
	}
	f.t.Leave(types.PostRoomID(postID))
	f.mu.Lock()
	delete(f.comments, postID)
	delete(f.likes, postID)
	f.mu.Unlock()
}

func (f *Forum) StartTyping(postID string) {
	if postID != "" {
		f.t.SendEvent(types.EventForumTyping, &types.PostTypingPayload{PostID: postID}, types.PostRoomID(postID))
	}
}

func (f *Forum) StopTyping(postID string) {
	if postID != "" {
		f.t.SendEvent(types.EventForumStopTyping, &types.PostTypingPayload{PostID: postID}, types.PostRoomID(postID))
	}
}

// Typing returns the names of other users typing on postID
func (f *Forum) Typing(postID string) []string { return f.typing.names(postID) }

// Comments returns live comments received for postID
func (f *Forum) Comments(postID string) []types.NewComment {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]types.NewComment(nil), f.comments[postID]...)
}

// Likes returns the last like count announced for postID
func (f *Forum) Likes(postID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.likes[postID]
}
