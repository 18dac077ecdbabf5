package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// FUNCTIONAL DISCOVERY: validator caches struct metadata, so one instance is shared
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a payload against its struct tags
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// IsValidRoomType reports whether roomType is accepted by join-room
func IsValidRoomType(roomType string) bool {
	switch roomType {
	case RoomTypeGeneral, RoomTypeChat, RoomTypeForumPost, RoomTypeCourse, RoomTypeWellness:
		return true
	default:
		return false
	}
}

// Bind decodes the envelope data into dst and validates it
func (e *Envelope) Bind(dst any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("%w: %s: missing data", ErrInvalidPayload, e.Event)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, e.Event, err)
	}
	return Validate(dst)
}
