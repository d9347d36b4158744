package repositories

import (
	"context"

	"github.com/sorivoice/sori/domain/entities"
)

// ChatLogStore persists the append-only conversation log. Store failures
// are reported to the caller but are never fatal to the client.
type ChatLogStore interface {
	Append(ctx context.Context, msg entities.ChatMessage) error
	List(ctx context.Context, limit int) ([]entities.ChatMessage, error)
	Clear(ctx context.Context) error
	Close() error
}
