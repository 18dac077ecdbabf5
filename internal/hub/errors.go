package hub

import "errors"

var (
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrEventChannelFull  = errors.New("event channel is full")
	ErrUserNotConnected  = errors.New("user not connected")
	ErrRoomAccessDenied  = errors.New("room access denied")
	ErrRoomTypeMismatch  = errors.New("room id does not match room type")
)
