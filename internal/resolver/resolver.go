// Package resolver implements the query, mutation, and subscription
// operations exposed by the transport layer. Each operation applies checks
// in a fixed order: authentication, then existence, then validation, then
// conflict. Change events are published only after a successful persistence
// write.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/leaderboard-api/internal/domain"
	"github.com/leaderboard-api/internal/event"
	"github.com/leaderboard-api/internal/session"
	"github.com/leaderboard-api/internal/storage"
	"github.com/leaderboard-api/internal/validate"
)

// bcryptCost matches the work factor the accounts were originally hashed with
const bcryptCost = 12

// Resolver orchestrates validation, authorization, persistence, and event
// publication for every operation.
type Resolver struct {
	store    storage.Storage
	sessions *session.Store
	bus      *event.Bus
	logger   *slog.Logger
}

// New creates a resolver. The event bus is passed in explicitly so tests can
// run with isolated instances.
func New(store storage.Storage, sessions *session.Store, bus *event.Bus, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
}

// Bus returns the event bus change events are published to
func (r *Resolver) Bus() *event.Bus {
	return r.bus
}

// Sessions returns the session store backing login state
func (r *Resolver) Sessions() *session.Store {
	return r.sessions
}

func authenticated(sess *session.Session) bool {
	return sess != nil && sess.IsLoggedIn
}

// internalErr logs the underlying failure and returns a generic 500
func (r *Resolver) internalErr(op string, err error) *domain.Error {
	r.logger.Error("operation failed", "operation", op, "error", err)
	return domain.NewInternal()
}

// GetAllPlayers returns every player ordered by score descending
func (r *Resolver) GetAllPlayers(ctx context.Context) ([]domain.Player, error) {
	players, err := r.store.ListPlayers(ctx)
	if err != nil {
		return nil, r.internalErr("getAllPlayers", err)
	}
	if players == nil {
		players = []domain.Player{}
	}
	return players, nil
}

// Session reports the caller's current identity. It never errors: any
// failure resolves to the logged-out placeholder.
func (r *Resolver) Session(ctx context.Context, sess *session.Session) domain.Identity {
	if !authenticated(sess) {
		return domain.Identity{}
	}
	user, err := r.store.GetUser(ctx, sess.UserID)
	if err != nil {
		r.logger.Warn("session user lookup failed", "user_id", sess.UserID, "error", err)
		return domain.Identity{}
	}
	return domain.Identity{
		IsLoggedIn: true,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
	}
}

// CreatePlayer validates and persists a new player, then publishes an
// upsert event. Requires an authenticated session.
func (r *Resolver) CreatePlayer(ctx context.Context, sess *session.Session, input domain.PlayerInput) (*domain.Player, error) {
	if !authenticated(sess) {
		return nil, domain.NewUnauthenticated()
	}

	var details []string
	if ok, msg := validate.Name(input.Name); !ok {
		details = append(details, msg)
	}
	if ok, msg := validate.Score(input.Score); !ok {
		details = append(details, msg)
	}
	if len(details) > 0 {
		return nil, domain.NewValidationFailed(details)
	}

	// Pre-check only; concurrent creates with the same name can race past it.
	_, err := r.store.GetPlayerByName(ctx, input.Name)
	switch {
	case err == nil:
		return nil, domain.NewConflict("Player already exists.", "Duplicate player name.")
	case !errors.Is(err, domain.ErrPlayerNotFound):
		return nil, r.internalErr("createPlayer", err)
	}

	player, err := r.store.CreatePlayer(ctx, input.Name, input.Score)
	if err != nil {
		return nil, r.internalErr("createPlayer", err)
	}

	r.bus.Publish(event.PlayerEvent{
		Topic:     event.TopicUpsertPlayer,
		Operation: event.OpCreate,
		Player:    *player,
	})
	return player, nil
}

// UpdatePlayer rewrites an existing player's name and score, then publishes
// an upsert event. Requires an authenticated session.
func (r *Resolver) UpdatePlayer(ctx context.Context, sess *session.Session, input domain.PlayerInput) (*domain.Player, error) {
	if !authenticated(sess) {
		return nil, domain.NewUnauthenticated()
	}

	if _, err := r.store.GetPlayer(ctx, input.PlayerID); err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, domain.NewNotFound("Player not found.")
		}
		return nil, r.internalErr("updatePlayer", err)
	}

	var details []string
	if ok, msg := validate.Name(input.Name); !ok {
		details = append(details, msg)
	}
	if ok, msg := validate.Score(input.Score); !ok {
		details = append(details, msg)
	}
	if len(details) > 0 {
		return nil, domain.NewValidationFailed(details)
	}

	player, err := r.store.UpdatePlayer(ctx, input.PlayerID, input.Name, input.Score)
	if err != nil {
		// The existence check above is a separate round-trip; a concurrent
		// delete can land in between.
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, domain.NewNotFound("Player not found.")
		}
		return nil, r.internalErr("updatePlayer", err)
	}

	r.bus.Publish(event.PlayerEvent{
		Topic:     event.TopicUpsertPlayer,
		Operation: event.OpUpdate,
		Player:    *player,
	})
	return player, nil
}

// DeletePlayer removes a player and returns its prior record, then
// publishes a delete event. Requires an authenticated session.
func (r *Resolver) DeletePlayer(ctx context.Context, sess *session.Session, playerID string) (*domain.Player, error) {
	if !authenticated(sess) {
		return nil, domain.NewUnauthenticated()
	}

	player, err := r.store.DeletePlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil, domain.NewNotFound("Player not found.")
		}
		return nil, r.internalErr("deletePlayer", err)
	}

	r.bus.Publish(event.PlayerEvent{
		Topic:     event.TopicDeletePlayer,
		Operation: event.OpDelete,
		Player:    *player,
	})
	return player, nil
}

// CreateUser registers a new account. Registration is open: no session is
// required.
func (r *Resolver) CreateUser(ctx context.Context, input domain.UserInput) (*domain.User, error) {
	var details []string
	if ok, msg := validate.Email(input.Email); !ok {
		details = append(details, msg)
	}
	if ok, msg := validate.Password(input.Password); !ok {
		details = append(details, msg)
	}
	if ok, msg := validate.Name(input.Name); !ok {
		details = append(details, msg)
	}
	if len(details) > 0 {
		return nil, domain.NewValidationFailed(details)
	}

	_, err := r.store.GetUserByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return nil, domain.NewConflict("User already exists.")
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, r.internalErr("createUser", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, r.internalErr("createUser", err)
	}

	user, err := r.store.CreateUser(ctx, input.Email, input.Name, string(hash))
	if err != nil {
		return nil, r.internalErr("createUser", err)
	}
	return user, nil
}

// Login verifies credentials and establishes a session. The caller is
// responsible for delivering the session token back to the client.
func (r *Resolver) Login(ctx context.Context, email, password string) (*session.Session, domain.Identity, error) {
	user, err := r.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.Identity{}, domain.NewNotFound("User not found.")
		}
		return nil, domain.Identity{}, r.internalErr("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Identity{}, &domain.Error{
			Kind:    domain.KindValidationFailed,
			Status:  422,
			Message: "Incorrect password.",
		}
	}

	sess, err := r.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, domain.Identity{}, r.internalErr("login", err)
	}

	identity := domain.Identity{
		IsLoggedIn: true,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
	}
	return sess, identity, nil
}

// Logout destroys the caller's session. Requires an authenticated session.
func (r *Resolver) Logout(ctx context.Context, sess *session.Session) (string, error) {
	if !authenticated(sess) {
		return "", domain.NewUnauthenticated()
	}
	if err := r.sessions.Destroy(ctx, sess.Token); err != nil {
		return "", r.internalErr("logout", err)
	}
	return "Logged out successfully.", nil
}

// IngestScore applies one score submission from the bulk ingestion channel.
// Submissions are trusted upserts keyed by player name: an unknown name
// creates the player, a known one replaces its score.
func (r *Resolver) IngestScore(ctx context.Context, sub domain.ScoreSubmission) error {
	var details []string
	if ok, msg := validate.Name(sub.Name); !ok {
		details = append(details, msg)
	}
	if ok, msg := validate.Score(sub.Score); !ok {
		details = append(details, msg)
	}
	if len(details) > 0 {
		return domain.NewValidationFailed(details)
	}

	existing, err := r.store.GetPlayerByName(ctx, sub.Name)
	if err != nil {
		if !errors.Is(err, domain.ErrPlayerNotFound) {
			return r.internalErr("ingestScore", err)
		}

		player, err := r.store.CreatePlayer(ctx, sub.Name, sub.Score)
		if err != nil {
			return r.internalErr("ingestScore", err)
		}
		r.bus.Publish(event.PlayerEvent{
			Topic:     event.TopicUpsertPlayer,
			Operation: event.OpCreate,
			Player:    *player,
		})
		return nil
	}

	player, err := r.store.UpdatePlayer(ctx, existing.ID, existing.Name, sub.Score)
	if err != nil {
		return r.internalErr("ingestScore", err)
	}
	r.bus.Publish(event.PlayerEvent{
		Topic:     event.TopicUpsertPlayer,
		Operation: event.OpUpdate,
		Player:    *player,
	})
	return nil
}

// IngestScoreBatch applies a batch of submissions, continuing past
// individual failures.
func (r *Resolver) IngestScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) error {
	for _, sub := range batch.Scores {
		if err := r.IngestScore(ctx, sub); err != nil {
			r.logger.Error("failed to ingest score",
				"name", sub.Name,
				"score", sub.Score,
				"error", err,
			)
		}
	}
	return nil
}
