package domain

import "time"

// Tournament is a live tournament tracked for a single room.
// Records are immutable after creation; every lifecycle transition is
// a create followed by a delete, never an in-place update.
type Tournament struct {
	Room       string    `json:"room"`
	Format     string    `json:"format"`
	Name       string    `json:"name"`
	MessageRef string    `json:"-"` // sink handle for the open announcement
	StartedAt  time.Time `json:"started_at"`
}

// DisplayName returns the human-readable name, falling back to the
// format code when the create event carried no name.
func (t Tournament) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Format
}

// EndReason describes why a tournament left the registry
type EndReason string

const (
	EndReasonFinished EndReason = "end"      // normal completion
	EndReasonForced   EndReason = "forceend" // ended or expired by the server
	EndReasonSwept    EndReason = "swept"    // evicted by the stale sweeper
)

// Placement names for result summaries, in standings order
var PlacementLabels = [3]string{"Winner", "Runner-up", "Third place"}

// Results holds up to three placements from a tournament end event.
// Each placement is a list of player names (more than one for team
// tournaments).
type Results [][]string
