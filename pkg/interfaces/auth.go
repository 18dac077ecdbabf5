package interfaces

import (
	"context"

	"freshershub/pkg/types"
)

// CredentialStore is the persisted client storage holding the bearer token.
// Token returns ErrNotFound, or an empty string, when nobody is logged in.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Verifier resolves a bearer token to an Identity. Token issuance and format
// belong to the external auth service.
type Verifier interface {
	Verify(ctx context.Context, token string) (*types.Identity, error)
}

// MessageStore persists routed chat messages for history replay
type MessageStore interface {
	StoreMessage(ctx context.Context, msg *types.ChatMessage) error
	RoomHistory(ctx context.Context, roomID string, limit int) ([]types.ChatMessage, error)
}
