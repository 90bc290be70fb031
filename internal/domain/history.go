package domain

import "time"

// TournamentRecord is one row of tournament history
type TournamentRecord struct {
	ID         int64      `json:"id"`
	Room       string     `json:"room"`
	Format     string     `json:"format"`
	Name       string     `json:"name"`
	OpenedAt   time.Time  `json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	EndReason  *string    `json:"end_reason,omitempty"`
	Winner     *string    `json:"winner,omitempty"`
	RunnerUp   *string    `json:"runner_up,omitempty"`
	ThirdPlace *string    `json:"third_place,omitempty"`
}
