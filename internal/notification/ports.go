package notification

import (
	"context"

	"chronos/pkg/domain"
)

// Store persists per-user feeds and preferences. ListByUser returns newest
// first; Get and Update report CodeNotFound for unknown messages, as does
// GetPrefs for users who never saved preferences.
type Store interface {
	Insert(ctx context.Context, m Message) error
	Get(ctx context.Context, userID domain.UserID, id domain.MessageID) (*Message, error)
	Update(ctx context.Context, m Message) error
	Delete(ctx context.Context, userID domain.UserID, id domain.MessageID) error
	ListByUser(ctx context.Context, userID domain.UserID) ([]Message, error)
	DeleteArchived(ctx context.Context, userID domain.UserID) (int, error)

	GetPrefs(ctx context.Context, userID domain.UserID) (*Prefs, error)
	PutPrefs(ctx context.Context, p Prefs) error
}
