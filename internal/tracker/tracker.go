package tracker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ernie/tourney-tracker/internal/config"
	"github.com/ernie/tourney-tracker/internal/domain"
	"github.com/ernie/tourney-tracker/internal/feed"
	"github.com/ernie/tourney-tracker/internal/notify"
)

// History records tournament lifecycle transitions for later queries.
// The live registry is never rebuilt from it; it is an audit trail.
type History interface {
	TournamentOpened(ctx context.Context, t domain.Tournament) error
	TournamentClosed(ctx context.Context, t domain.Tournament, reason domain.EndReason, results domain.Results, closedAt time.Time) error
}

// Tracker consumes feed frames and reconciles the tournament registry
// against them: announce on create, summarize and retract on end,
// retract on forced end, and evict stale entries on a timer.
//
// One mutex serializes frame handling and sweep passes, so the room
// cursor and registry form a single consistent store: a frame is
// processed to completion, side effects included, before the next
// frame or sweep touches anything.
type Tracker struct {
	mu          sync.Mutex
	registry    *Registry
	currentRoom string // empty = unset, events are dropped

	notifier notify.Notifier
	history  History
	joinBase string

	sweepInterval time.Duration
	maxAge        time.Duration

	events chan domain.Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a tracker. history may be nil when no audit trail is
// wanted (tests).
func New(cfg config.TrackerConfig, joinBase string, notifier notify.Notifier, history History) *Tracker {
	return &Tracker{
		registry:      NewRegistry(),
		notifier:      notifier,
		history:       history,
		joinBase:      strings.TrimRight(joinBase, "/"),
		sweepInterval: cfg.SweepInterval,
		maxAge:        cfg.MaxAge,
		events:        make(chan domain.Event, 100),
		done:          make(chan struct{}),
	}
}

// Events returns the channel of lifecycle events for broadcasting
func (t *Tracker) Events() <-chan domain.Event {
	return t.events
}

// Start launches the stale-entry sweeper
func (t *Tracker) Start(ctx context.Context) {
	t.wg.Add(1)
	go t.sweepLoop(ctx)
}

// Stop stops the sweeper and waits for it to finish
func (t *Tracker) Stop() {
	close(t.done)
	t.wg.Wait()
}

// HandleFrame processes every line of one feed frame, in order, to
// completion. Lines with no room attribution and terminations with no
// matching entry are dropped without error.
func (t *Tracker) HandleFrame(ctx context.Context, frame string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, line := range feed.ParseFrame(frame) {
		switch line.Kind {
		case feed.LineRoomMarker:
			data := line.Data.(feed.RoomMarkerData)
			t.currentRoom = data.Room

		case feed.LineTournamentCreate:
			data := line.Data.(feed.CreateData)
			t.handleCreate(ctx, data)

		case feed.LineTournamentEnd:
			data := line.Data.(feed.EndData)
			t.handleEnd(ctx, data.Results)

		case feed.LineTournamentForceEnd:
			t.handleForceEnd(ctx)

		case feed.LineUnclassified:
			// Not a tournament line; ignore
		}
	}
}

// handleCreate runs the Idle -> Open transition. The open announcement
// is the one side effect whose failure blocks the registry insert: no
// record may exist without a retractable announcement behind it. A
// later create line for the same room retries naturally.
func (t *Tracker) handleCreate(ctx context.Context, data feed.CreateData) {
	room := t.currentRoom
	if room == "" {
		return
	}
	if t.registry.Find(room) != nil {
		// Duplicate create for a tracked tournament; dedup, no side effects
		return
	}

	rec := &domain.Tournament{
		Room:      room,
		Format:    data.Format,
		Name:      data.Name,
		StartedAt: time.Now(),
	}

	ref, err := t.notifier.AnnounceOpen(ctx, t.openText(rec))
	if err != nil {
		log.Printf("Error announcing tournament in %s: %v", room, err)
		return
	}
	rec.MessageRef = ref
	t.registry.TryCreate(room, rec)

	log.Printf("Tournament opened in %s: %s", room, rec.DisplayName())
	t.emitEvent(domain.NewEvent(domain.EventTournamentOpen, room, domain.TournamentOpenEvent{
		Format: rec.Format,
		Name:   rec.DisplayName(),
	}))
	t.recordOpened(ctx, *rec)
}

// handleEnd runs the Open -> Idle transition for a normal end. Both
// side effects are best-effort and independent; the entry is removed
// regardless of either outcome.
func (t *Tracker) handleEnd(ctx context.Context, results domain.Results) {
	room := t.currentRoom
	if room == "" {
		return
	}
	rec := t.registry.RemoveByRoom(room)
	if rec == nil {
		// Termination for a tournament we never tracked; no-op
		return
	}

	if err := t.notifier.AnnounceResult(ctx, t.endText(rec, results)); err != nil {
		log.Printf("Error announcing results for %s: %v", room, err)
	}
	t.retract(ctx, rec)

	log.Printf("Tournament finished in %s: %s", room, rec.DisplayName())
	t.emitEvent(domain.NewEvent(domain.EventTournamentFinished, room, domain.TournamentFinishedEvent{
		Format:  rec.Format,
		Name:    rec.DisplayName(),
		Results: results,
	}))
	t.recordClosed(ctx, *rec, domain.EndReasonFinished, results)
}

// handleForceEnd runs the Open -> Idle transition for a forced end or
// expiry. No results exist, so the only side effect is retracting the
// open announcement.
func (t *Tracker) handleForceEnd(ctx context.Context) {
	room := t.currentRoom
	if room == "" {
		return
	}
	rec := t.registry.RemoveByRoom(room)
	if rec == nil {
		return
	}

	t.retract(ctx, rec)

	log.Printf("Tournament force-ended in %s: %s", room, rec.DisplayName())
	t.emitEvent(domain.NewEvent(domain.EventTournamentForced, room, domain.TournamentClosedEvent{
		Format: rec.Format,
		Name:   rec.DisplayName(),
		Reason: domain.EndReasonForced,
	}))
	t.recordClosed(ctx, *rec, domain.EndReasonForced, nil)
}

// sweepLoop evicts stale entries on a fixed period. It is the safety
// net for termination events that never arrive: the registry must not
// grow without bound and announcements must not linger.
func (t *Tracker) sweepLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx, time.Now())
		}
	}
}

// Sweep evicts every entry whose age meets or exceeds the max-age
// threshold at the given instant. Running it twice in a row is a
// no-op the second time.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range t.registry.OlderThan(now, t.maxAge) {
		rec := t.registry.Find(key)
		if rec == nil {
			continue
		}
		t.registry.Remove(key)

		log.Printf("Forced cleanup of stale tournament in %s: %s (age %v)",
			rec.Room, rec.DisplayName(), now.Sub(rec.StartedAt).Round(time.Second))
		t.retract(ctx, rec)

		t.emitEvent(domain.NewEvent(domain.EventTournamentSwept, rec.Room, domain.TournamentClosedEvent{
			Format: rec.Format,
			Name:   rec.DisplayName(),
			Reason: domain.EndReasonSwept,
		}))
		t.recordClosed(ctx, *rec, domain.EndReasonSwept, nil)
	}
}

// Active returns a snapshot of all live tournaments
func (t *Tracker) Active() []domain.Tournament {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.All()
}

// CurrentRoom returns the room cursor value, empty when unset
func (t *Tracker) CurrentRoom() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentRoom
}

// ActiveSummary formats the live registry for the "list active
// tournaments" query
func (t *Tracker) ActiveSummary() string {
	active := t.Active()
	if len(active) == 0 {
		return "No active tournaments."
	}

	var b strings.Builder
	b.WriteString("Active tournaments:")
	for _, rec := range active {
		fmt.Fprintf(&b, "\n• %s (%s)", rec.DisplayName(), rec.Room)
	}
	return b.String()
}

// openText composes the open announcement with format, name, room,
// and join link
func (t *Tracker) openText(rec *domain.Tournament) string {
	text := fmt.Sprintf("A **%s** (%s) tournament just opened in %s!", rec.DisplayName(), rec.Format, rec.Room)
	if t.joinBase != "" {
		text += fmt.Sprintf(" Join: %s/%s", t.joinBase, rec.Room)
	}
	return text
}

// endText composes the result summary, or a generic finished message
// when no standings were decodable
func (t *Tracker) endText(rec *domain.Tournament, results domain.Results) string {
	if len(results) == 0 {
		return fmt.Sprintf("The **%s** tournament in %s has finished.", rec.DisplayName(), rec.Room)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The **%s** tournament in %s has finished!", rec.DisplayName(), rec.Room)
	for i, placement := range results {
		if i >= len(domain.PlacementLabels) || len(placement) == 0 {
			break
		}
		fmt.Fprintf(&b, "\n%s: %s", domain.PlacementLabels[i], strings.Join(placement, ", "))
	}
	return b.String()
}

// retract best-effort deletes the open announcement; failures never
// block registry cleanup
func (t *Tracker) retract(ctx context.Context, rec *domain.Tournament) {
	if rec.MessageRef == "" {
		return
	}
	if err := t.notifier.Retract(ctx, rec.MessageRef); err != nil {
		log.Printf("Error retracting announcement for %s: %v", rec.Room, err)
	}
}

// recordOpened writes the audit row for a new tournament
func (t *Tracker) recordOpened(ctx context.Context, rec domain.Tournament) {
	if t.history == nil {
		return
	}
	if err := t.history.TournamentOpened(ctx, rec); err != nil {
		log.Printf("Error recording tournament open for %s: %v", rec.Room, err)
	}
}

// recordClosed writes the audit row for a terminated tournament
func (t *Tracker) recordClosed(ctx context.Context, rec domain.Tournament, reason domain.EndReason, results domain.Results) {
	if t.history == nil {
		return
	}
	if err := t.history.TournamentClosed(ctx, rec, reason, results, time.Now()); err != nil {
		log.Printf("Error recording tournament close for %s: %v", rec.Room, err)
	}
}

// emitEvent pushes a lifecycle event, dropping it if broadcasting is
// backed up
func (t *Tracker) emitEvent(event domain.Event) {
	select {
	case t.events <- event:
	default:
		log.Printf("Event channel full, dropping %s event for %s", event.Type, event.Room)
	}
}
