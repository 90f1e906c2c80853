package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leaderboard-api/internal/config"
	"github.com/leaderboard-api/internal/storage"
	"github.com/leaderboard-api/internal/websocket"
)

// BroadcastWorker periodically pushes the full score-descending standings to
// every connected WebSocket client, so late joiners converge without
// replaying missed change events.
type BroadcastWorker struct {
	store   storage.PlayerStore
	hub     *websocket.Hub
	config  *config.BroadcastConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewBroadcastWorker creates a new broadcast worker
func NewBroadcastWorker(
	store storage.PlayerStore,
	hub *websocket.Hub,
	cfg *config.BroadcastConfig,
	logger *slog.Logger,
) *BroadcastWorker {
	return &BroadcastWorker{
		store:  store,
		hub:    hub,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background broadcast process
func (w *BroadcastWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("broadcast worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background broadcast process
func (w *BroadcastWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("broadcast worker stopped")
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *BroadcastWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single broadcast cycle (useful for manual triggers)
func (w *BroadcastWorker) RunOnce(ctx context.Context) {
	w.broadcastStandings(ctx)
}

// run is the main worker loop
func (w *BroadcastWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.broadcastStandings(ctx)
		}
	}
}

func (w *BroadcastWorker) broadcastStandings(ctx context.Context) {
	if w.hub.GetTotalConnections() == 0 {
		return
	}

	start := time.Now()
	players, err := w.store.ListPlayers(ctx)
	if err != nil {
		w.logger.Error("failed to list players for broadcast", "error", err)
		return
	}

	w.hub.BroadcastStandings(players)
	w.logger.Debug("standings broadcast",
		"players", len(players),
		"duration", time.Since(start),
	)
}
