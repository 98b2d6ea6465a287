package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// dateLayout is the storage format for event dates; it sorts lexically in calendar order.
const dateLayout = "2006-01-02"

// Repository defines the interface for database operations
type Repository interface {
	CreateTables(ctx context.Context) error
	CreateEvent(ctx context.Context, draft EventDraft) (int64, error)
	ListEventsByChat(ctx context.Context, chatID int64) ([]Event, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	AddApplicant(ctx context.Context, eventID int64, username string) error
	RemoveApplicant(ctx context.Context, eventID int64, username string) error
	ListApplicants(ctx context.Context, eventID int64) ([]string, error)
	IsApplicant(ctx context.Context, eventID int64, username string) (bool, error)
	ListApplications(ctx context.Context, chatID int64) ([]EventWithApplicants, error)
}

// SQLiteRepository implements the Repository interface
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLiteRepository
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateTables creates the events and applications tables and adds columns
// missing from databases created by older versions.
func (r *SQLiteRepository) CreateTables(ctx context.Context) error {
	eventTable := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL
	);`

	applicationTable := `CREATE TABLE IF NOT EXISTS event_applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL,
		username TEXT NOT NULL,
		UNIQUE(event_id, username)
	);`

	if _, err := r.db.ExecContext(ctx, eventTable); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, applicationTable); err != nil {
		return fmt.Errorf("create event_applications table: %w", err)
	}

	columns, err := r.eventColumns(ctx)
	if err != nil {
		return err
	}
	for _, column := range []string{"description", "location"} {
		if columns[column] {
			continue
		}
		if _, err := r.db.ExecContext(ctx, "ALTER TABLE events ADD COLUMN "+column+" TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("add column %s: %w", column, err)
		}
	}

	// rows written as dd.mm.yyyy would sort as text ahead of their month
	if _, err := r.db.ExecContext(ctx, `UPDATE events
		SET date = substr(date, 7, 4) || '-' || substr(date, 4, 2) || '-' || substr(date, 1, 2)
		WHERE date LIKE '__.__.____'`); err != nil {
		return fmt.Errorf("rewrite legacy dates: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) eventColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "PRAGMA table_info(events)")
	if err != nil {
		return nil, fmt.Errorf("read events schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

// CreateEvent inserts a new event and returns its id
func (r *SQLiteRepository) CreateEvent(ctx context.Context, draft EventDraft) (int64, error) {
	stmt, err := r.db.PrepareContext(ctx, "INSERT INTO events (chat_id, title, description, date, time, location) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	res, err := stmt.ExecContext(ctx, draft.ChatID, draft.Title, draft.Description, draft.Date.Format(dateLayout), draft.Time, draft.Location)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// ListEventsByChat returns the chat's events ordered by date and time
func (r *SQLiteRepository) ListEventsByChat(ctx context.Context, chatID int64) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, chat_id, title, COALESCE(description, ''), date, time, COALESCE(location, '') FROM events WHERE chat_id = ? ORDER BY date, time, id",
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent returns a single event or ErrEventNotFound
func (r *SQLiteRepository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, chat_id, title, COALESCE(description, ''), date, time, COALESCE(location, '') FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var ev Event
	var dateStr string
	if err := row.Scan(&ev.ID, &ev.ChatID, &ev.Title, &ev.Description, &dateStr, &ev.Time, &ev.Location); err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		// rows written by the first release use the display layout
		if date, err = time.Parse(displayDateLayout, dateStr); err != nil {
			return nil, fmt.Errorf("event %d has malformed date %q: %w", ev.ID, dateStr, err)
		}
	}
	ev.Date = date
	return &ev, nil
}

// DeleteEvent removes the event together with its applications
func (r *SQLiteRepository) DeleteEvent(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM event_applications WHERE event_id = ?", id); err != nil {
		return fmt.Errorf("delete applications: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return tx.Commit()
}

// AddApplicant records an application; applying twice is a no-op
func (r *SQLiteRepository) AddApplicant(ctx context.Context, eventID int64, username string) error {
	stmt, err := r.db.PrepareContext(ctx, "INSERT OR IGNORE INTO event_applications (event_id, username) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.ExecContext(ctx, eventID, username)
	return err
}

// RemoveApplicant deletes an application if present
func (r *SQLiteRepository) RemoveApplicant(ctx context.Context, eventID int64, username string) error {
	stmt, err := r.db.PrepareContext(ctx, "DELETE FROM event_applications WHERE event_id = ? AND username = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.ExecContext(ctx, eventID, username)
	return err
}

// ListApplicants returns the usernames applied to an event in lexical order
func (r *SQLiteRepository) ListApplicants(ctx context.Context, eventID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT username FROM event_applications WHERE event_id = ? ORDER BY username", eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// IsApplicant checks if a user applied to an event
func (r *SQLiteRepository) IsApplicant(ctx context.Context, eventID int64, username string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM event_applications WHERE event_id = ? AND username = ?", eventID, username).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListApplications returns every event of the chat together with its applicants
func (r *SQLiteRepository) ListApplications(ctx context.Context, chatID int64) ([]EventWithApplicants, error) {
	events, err := r.ListEventsByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	result := make([]EventWithApplicants, 0, len(events))
	for _, ev := range events {
		users, err := r.ListApplicants(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, EventWithApplicants{Event: ev, Applicants: users})
	}
	return result, nil
}
