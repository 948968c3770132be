package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventScoreSubmitted EventType = "score_submitted"
	EventScoreDeleted   EventType = "score_deleted"
)

// Event represents an immutable domain event.
type Event struct {
	Type   EventType `json:"type"`
	Time   time.Time `json:"time"`
	GameID GameID    `json:"gameId"`
	UserID UserID    `json:"userId"`
	Score  float64   `json:"score,omitempty"`
	Name   string    `json:"name,omitempty"`
}

func NewScoreSubmitted(game GameID, user UserID, props ScoreProps) Event {
	return Event{Type: EventScoreSubmitted, Time: time.Now().UTC(), GameID: game, UserID: user, Score: props.Score, Name: props.Name}
}

func NewScoreDeleted(game GameID, user UserID) Event {
	return Event{Type: EventScoreDeleted, Time: time.Now().UTC(), GameID: game, UserID: user}
}
