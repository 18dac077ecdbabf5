package features

import "errors"

var (
	ErrEmptyRoom    = errors.New("features: room id is required")
	ErrNoHistoryAPI = errors.New("features: no history api configured")
)
