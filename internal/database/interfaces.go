package database

import (
	"context"

	"chat-backend/internal/models"
)

type UserRepository interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id int) (*models.User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
}

type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	// RecentRoomMessages returns up to limit messages for a room, newest
	// last, with expired messages filtered out.
	RecentRoomMessages(ctx context.Context, room string, limit int) ([]*models.Message, error)
}

// Store is the durable store the core depends on. Lookups that find no
// row return models.ErrUserNotFound.
type Store interface {
	UserRepository
	MessageRepository
	Close() error
}
