package hub

import (
	"strings"

	"freshershub/pkg/types"
)

// checkAccess applies the join policy for a room type.
// forum-post rooms are post:<id>, course rooms are course:<id>; those
// prefixes cannot be joined under another type. Course rooms need the
// user to be enrolled unless they are staff.
func checkAccess(identity *types.Identity, roomID, roomType string) error {
	courseID, isCourse := strings.CutPrefix(roomID, "course:")
	_, isPost := strings.CutPrefix(roomID, "post:")

	switch roomType {
	case types.RoomTypeCourse:
		if !isCourse || courseID == "" {
			return ErrRoomTypeMismatch
		}
		if identity.Role == types.RoleStaff {
			return nil
		}
		for _, c := range identity.Courses {
			if c == courseID {
				return nil
			}
		}
		return ErrRoomAccessDenied
	case types.RoomTypeForumPost:
		if !isPost {
			return ErrRoomTypeMismatch
		}
		return nil
	default:
		if isCourse || isPost {
			return ErrRoomTypeMismatch
		}
		return nil
	}
}

// CanRead applies the join policy to a bare room id, taking the room type
// from its prefix. Used for reads outside the socket, like chat history.
func CanRead(identity *types.Identity, roomID string) error {
	roomType := types.RoomTypeGeneral
	switch {
	case strings.HasPrefix(roomID, "course:"):
		roomType = types.RoomTypeCourse
	case strings.HasPrefix(roomID, "post:"):
		roomType = types.RoomTypeForumPost
	}
	return checkAccess(identity, roomID, roomType)
}
