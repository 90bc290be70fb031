package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/tourney-tracker/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTournamentHistoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	opened := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tourney := domain.Tournament{
		Room:       "ou",
		Format:     "gen9ou",
		Name:       "Gen9OU Cup",
		MessageRef: "msg-1",
		StartedAt:  opened,
	}
	require.NoError(t, store.TournamentOpened(ctx, tourney))

	results := domain.Results{{"Alice"}, {"Bob"}, {"Carol"}}
	closed := opened.Add(20 * time.Minute)
	require.NoError(t, store.TournamentClosed(ctx, tourney, domain.EndReasonFinished, results, closed))

	records, err := store.GetRecentTournaments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "ou", rec.Room)
	assert.Equal(t, "gen9ou", rec.Format)
	assert.Equal(t, "Gen9OU Cup", rec.Name)
	assert.Equal(t, opened, rec.OpenedAt.UTC())
	require.NotNil(t, rec.ClosedAt)
	assert.Equal(t, closed, rec.ClosedAt.UTC())
	require.NotNil(t, rec.EndReason)
	assert.Equal(t, "end", *rec.EndReason)
	require.NotNil(t, rec.Winner)
	assert.Equal(t, "Alice", *rec.Winner)
	require.NotNil(t, rec.RunnerUp)
	assert.Equal(t, "Bob", *rec.RunnerUp)
	require.NotNil(t, rec.ThirdPlace)
	assert.Equal(t, "Carol", *rec.ThirdPlace)
}

func TestTournamentClosedWithoutResults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tourney := domain.Tournament{Room: "ou", Format: "gen9ou", StartedAt: time.Now()}
	require.NoError(t, store.TournamentOpened(ctx, tourney))
	require.NoError(t, store.TournamentClosed(ctx, tourney, domain.EndReasonSwept, nil, time.Now()))

	records, err := store.GetRecentTournaments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].EndReason)
	assert.Equal(t, "swept", *records[0].EndReason)
	assert.Nil(t, records[0].Winner)
}

func TestTournamentClosedTeamPlacements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tourney := domain.Tournament{Room: "ou", Format: "gen9ou", StartedAt: time.Now()}
	require.NoError(t, store.TournamentOpened(ctx, tourney))

	results := domain.Results{{"Alice", "Dana"}, {"Bob", "Eve"}}
	require.NoError(t, store.TournamentClosed(ctx, tourney, domain.EndReasonFinished, results, time.Now()))

	records, err := store.GetRecentTournaments(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, records[0].Winner)
	assert.Equal(t, "Alice, Dana", *records[0].Winner)
	assert.Nil(t, records[0].ThirdPlace)
}

func TestTournamentClosedOnlyTouchesNewestOpenRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := domain.Tournament{Room: "ou", Format: "gen9ou", Name: "First", StartedAt: time.Now().Add(-time.Hour)}
	second := domain.Tournament{Room: "ou", Format: "gen9ou", Name: "Second", StartedAt: time.Now()}
	require.NoError(t, store.TournamentOpened(ctx, first))
	require.NoError(t, store.TournamentOpened(ctx, second))

	require.NoError(t, store.TournamentClosed(ctx, second, domain.EndReasonForced, nil, time.Now()))

	records, err := store.GetRecentTournaments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first
	assert.Equal(t, "Second", records[0].Name)
	assert.NotNil(t, records[0].ClosedAt)
	assert.Nil(t, records[1].ClosedAt)
}

func TestTournamentClosedWithNoOpenRowIsHarmless(t *testing.T) {
	store := newTestStore(t)
	tourney := domain.Tournament{Room: "ou", Format: "gen9ou"}
	assert.NoError(t, store.TournamentClosed(context.Background(), tourney, domain.EndReasonFinished, nil, time.Now()))
}

func TestGetTournamentsByRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.TournamentOpened(ctx, domain.Tournament{Room: "ou", Format: "gen9ou", StartedAt: time.Now()}))
	require.NoError(t, store.TournamentOpened(ctx, domain.Tournament{Room: "uu", Format: "gen9uu", StartedAt: time.Now()}))

	records, err := store.GetTournamentsByRoom(ctx, "ou", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ou", records[0].Room)
}

func TestRecentLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.TournamentOpened(ctx, domain.Tournament{Room: "ou", Format: "gen9ou", StartedAt: time.Now()}))
	}

	records, err := store.GetRecentTournaments(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestUserLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, "ernie", "hash", true))

	user, err := store.GetUserByUsername(ctx, "ernie")
	require.NoError(t, err)
	assert.Equal(t, "ernie", user.Username)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.True(t, user.IsAdmin)
	assert.Nil(t, user.LastLogin)

	require.NoError(t, store.UpdateUserLastLogin(ctx, user.ID))
	user, err = store.GetUserByUsername(ctx, "ernie")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLogin)

	// Duplicate usernames are rejected
	assert.Error(t, store.CreateUser(ctx, "ernie", "hash2", false))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, store.DeleteUser(ctx, "ernie"))
	assert.ErrorIs(t, store.DeleteUser(ctx, "ernie"), sql.ErrNoRows)
}
