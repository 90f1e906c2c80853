package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leaderboard-api/internal/config"
	"github.com/leaderboard-api/internal/domain"
	"github.com/leaderboard-api/internal/storage"
)

// Repository provides PostgreSQL-based data access for players and users
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.Storage = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			score BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_score ON players(score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_players_name ON players(name)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreatePlayer inserts a new player record with a store-assigned ID
func (r *Repository) CreatePlayer(ctx context.Context, name string, score int64) (*domain.Player, error) {
	player := domain.Player{
		ID:    uuid.New().String(),
		Name:  name,
		Score: score,
	}

	query := `
		INSERT INTO players (id, name, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING created_at, updated_at
	`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query, player.ID, name, score, now).Scan(
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	return &player, nil
}

// GetPlayer retrieves a player by ID
func (r *Repository) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	query := `
		SELECT id, name, score, created_at, updated_at
		FROM players
		WHERE id = $1
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, query, id))
}

// GetPlayerByName retrieves a player by its name
func (r *Repository) GetPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	query := `
		SELECT id, name, score, created_at, updated_at
		FROM players
		WHERE name = $1
		LIMIT 1
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, query, name))
}

// ListPlayers retrieves all players ordered by score descending
func (r *Repository) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	query := `
		SELECT id, name, score, created_at, updated_at
		FROM players
		ORDER BY score DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var p domain.Player
		err := rows.Scan(&p.ID, &p.Name, &p.Score, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, p)
	}
	return players, nil
}

// UpdatePlayer rewrites a player's name and score
func (r *Repository) UpdatePlayer(ctx context.Context, id, name string, score int64) (*domain.Player, error) {
	query := `
		UPDATE players
		SET name = $2, score = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, name, score, created_at, updated_at
	`
	player, err := r.scanPlayer(r.pool.QueryRow(ctx, query, id, name, score, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	return player, nil
}

// DeletePlayer removes a player and returns its prior record
func (r *Repository) DeletePlayer(ctx context.Context, id string) (*domain.Player, error) {
	query := `
		DELETE FROM players
		WHERE id = $1
		RETURNING id, name, score, created_at, updated_at
	`
	return r.scanPlayer(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(&p.ID, &p.Name, &p.Score, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scanning player: %w", err)
	}
	return &p, nil
}

// CreateUser inserts a new account with a store-assigned ID
func (r *Repository) CreateUser(ctx context.Context, email, name, passwordHash string) (*domain.User, error) {
	user := domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query, user.ID, email, name, passwordHash, now).Scan(
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

// GetUser retrieves an account by ID
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves an account by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
		LIMIT 1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}
