// Package memory provides an in-memory storage implementation used by tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leaderboard-api/internal/domain"
	"github.com/leaderboard-api/internal/storage"
)

// Storage is a mutex-guarded in-memory implementation of storage.Storage
type Storage struct {
	mu      sync.RWMutex
	players map[string]domain.Player
	users   map[string]domain.User
}

var _ storage.Storage = (*Storage)(nil)

// New creates an empty in-memory storage
func New() *Storage {
	return &Storage{
		players: make(map[string]domain.Player),
		users:   make(map[string]domain.User),
	}
}

func (s *Storage) CreatePlayer(ctx context.Context, name string, score int64) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := domain.Player{
		ID:        uuid.New().String(),
		Name:      name,
		Score:     score,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.players[p.ID] = p
	return &p, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &p, nil
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players {
		if p.Name == name {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

func (s *Storage) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id, name string, score int64) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	p.Name = name
	p.Score = score
	p.UpdatedAt = time.Now().UTC()
	s.players[id] = p
	return &p, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	delete(s.players, id)
	return &p, nil
}

func (s *Storage) CreateUser(ctx context.Context, email, name, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	u := domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return &u, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}
