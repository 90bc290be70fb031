package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types for WebSocket and bus notifications
const (
	EventTournamentOpen     = "tournament_open"
	EventTournamentFinished = "tournament_finished"
	EventTournamentForced   = "tournament_forced"
	EventTournamentSwept    = "tournament_swept"
)

// Event represents a real-time lifecycle event for broadcast
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"event"`
	Room      string      `json:"room"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewEvent builds a broadcast event with a fresh ID
func NewEvent(eventType, room string, data interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Room:      room,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// TournamentOpenEvent is sent when a tournament is announced
type TournamentOpenEvent struct {
	Format string `json:"format"`
	Name   string `json:"name"`
}

// TournamentFinishedEvent is sent when a tournament completes normally
type TournamentFinishedEvent struct {
	Format  string  `json:"format"`
	Name    string  `json:"name"`
	Results Results `json:"results,omitempty"`
}

// TournamentClosedEvent is sent on forced end and sweep eviction
type TournamentClosedEvent struct {
	Format string    `json:"format"`
	Name   string    `json:"name"`
	Reason EndReason `json:"reason"`
}
