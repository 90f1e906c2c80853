package domain

import "time"

// Player represents a ranked player record
type Player struct {
	ID        string    `json:"playerId"`
	Name      string    `json:"name"`
	Score     int64     `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlayerInput carries the fields of a player create or update request
type PlayerInput struct {
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name"`
	Score    int64  `json:"score"`
}

// ScoreSubmission is a score update arriving over the bulk ingestion channel.
// Submissions are upserts keyed by player name.
type ScoreSubmission struct {
	Name  string `json:"name"`
	Score int64  `json:"score"`
}

// BatchScoreSubmission represents multiple score submissions
type BatchScoreSubmission struct {
	Scores []ScoreSubmission `json:"scores"`
}
