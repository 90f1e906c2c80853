// Package storage defines the persistence interfaces the resolver layer
// depends on. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"

	"github.com/leaderboard-api/internal/domain"
)

// PlayerStore persists player records. Implementations assign IDs and
// maintain createdAt/updatedAt on write. Missing records are reported with
// domain.ErrPlayerNotFound.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, name string, score int64) (*domain.Player, error)
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	GetPlayerByName(ctx context.Context, name string) (*domain.Player, error)
	// ListPlayers returns all players ordered by score descending.
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	UpdatePlayer(ctx context.Context, id, name string, score int64) (*domain.Player, error)
	// DeletePlayer removes the player and returns its prior record.
	DeletePlayer(ctx context.Context, id string) (*domain.Player, error)
}

// UserStore persists accounts. Missing records are reported with
// domain.ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Storage combines both entity collections
type Storage interface {
	PlayerStore
	UserStore
}
