package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/ernie/tourney-tracker/internal/domain"
	_ "modernc.org/sqlite"
)

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Tournament history ---

// TournamentOpened records a newly announced tournament
func (s *Store) TournamentOpened(ctx context.Context, t domain.Tournament) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tournaments (room, format, name, message_ref, opened_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.Room, t.Format, t.DisplayName(), t.MessageRef, formatTimestamp(t.StartedAt))
	return err
}

// TournamentClosed closes the most recent open history row for the
// tournament's room, recording the reason and any standings
func (s *Store) TournamentClosed(ctx context.Context, t domain.Tournament, reason domain.EndReason, results domain.Results, closedAt time.Time) error {
	winner, runnerUp, third := placementColumns(results)
	_, err := s.db.ExecContext(ctx, `
		UPDATE tournaments
		SET closed_at = ?, end_reason = ?, winner = ?, runner_up = ?, third_place = ?
		WHERE id = (
			SELECT id FROM tournaments
			WHERE room = ? AND closed_at IS NULL
			ORDER BY id DESC LIMIT 1
		)
	`, formatTimestamp(closedAt), string(reason), winner, runnerUp, third, t.Room)
	return err
}

// GetRecentTournaments returns the most recently opened tournaments
func (s *Store) GetRecentTournaments(ctx context.Context, limit int) ([]domain.TournamentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, format, name, opened_at, closed_at, end_reason, winner, runner_up, third_place
		FROM tournaments
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TournamentRecord
	for rows.Next() {
		rec, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetTournamentsByRoom returns history rows for one room
func (s *Store) GetTournamentsByRoom(ctx context.Context, room string, limit int) ([]domain.TournamentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, format, name, opened_at, closed_at, end_reason, winner, runner_up, third_place
		FROM tournaments
		WHERE room = ?
		ORDER BY id DESC
		LIMIT ?
	`, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TournamentRecord
	for rows.Next() {
		rec, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanTournament reads one history row
func scanTournament(rows *sql.Rows) (domain.TournamentRecord, error) {
	var rec domain.TournamentRecord
	var openedAt time.Time
	var closedAt sql.NullTime
	var endReason, winner, runnerUp, third sql.NullString
	if err := rows.Scan(&rec.ID, &rec.Room, &rec.Format, &rec.Name, &openedAt,
		&closedAt, &endReason, &winner, &runnerUp, &third); err != nil {
		return rec, err
	}
	rec.OpenedAt = openedAt
	if closedAt.Valid {
		rec.ClosedAt = &closedAt.Time
	}
	if endReason.Valid {
		rec.EndReason = &endReason.String
	}
	if winner.Valid {
		rec.Winner = &winner.String
	}
	if runnerUp.Valid {
		rec.RunnerUp = &runnerUp.String
	}
	if third.Valid {
		rec.ThirdPlace = &third.String
	}
	return rec, nil
}

// placementColumns flattens up to three placements into nullable
// columns; team placements join names with commas
func placementColumns(results domain.Results) (winner, runnerUp, third interface{}) {
	cols := [3]interface{}{nil, nil, nil}
	for i, placement := range results {
		if i >= 3 {
			break
		}
		if len(placement) > 0 {
			cols[i] = strings.Join(placement, ", ")
		}
	}
	return cols[0], cols[1], cols[2]
}

// --- User methods ---

// User represents an API user account
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	IsAdmin      bool       `json:"is_admin"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// CreateUser adds a new user
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES (?, ?, ?)
	`, username, passwordHash, isAdmin)
	return err
}

// GetUserByUsername returns a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

// DeleteUser removes a user by username
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUsers returns all users
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_admin, created_at, last_login
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &lastLogin); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			u.LastLogin = &lastLogin.Time
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserLastLogin stamps a successful login
func (s *Store) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = ? WHERE id = ?
	`, formatTimestamp(time.Now()), userID)
	return err
}
