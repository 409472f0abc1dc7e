// Package sqlite implements the reminder store on SQLite, the default
// backing database. Instants are stored as Unix nanoseconds so ordering
// and due comparisons are exact; context is stored as a JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/store"
)

type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (or creates) the SQLite database at path and ensures the
// reminders table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the due scan read while request handlers write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(querySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, clock: time.Now}, nil
}

// WithClock replaces the time source. For tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PingContext reports database reachability for health checks.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Put(ctx context.Context, r domain.Reminder) (domain.Reminder, error) {
	now := s.clock().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	contextJSON, err := marshalContext(r.Context)
	if err != nil {
		return domain.Reminder{}, err
	}

	_, err = s.db.ExecContext(ctx, queryInsert,
		r.ID,
		r.OwnerID,
		r.DestinationID,
		r.Title,
		r.Description,
		r.DueAt.UnixNano(),
		string(r.Priority),
		string(r.Status),
		contextJSON,
		r.Recurrence,
		nanosOrNull(r.NotifiedAt),
		r.Version,
		r.CreatedAt.UnixNano(),
		r.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.Reminder{}, store.ErrDuplicateKey
		}
		return domain.Reminder{}, err
	}
	return r, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Reminder, error) {
	return scanReminder(s.db.QueryRowContext(ctx, queryGet, id))
}

func (s *Store) Update(ctx context.Context, id string, m store.Mutator) (domain.Reminder, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Reminder{}, err
	}

	next, err := m(current)
	if err != nil {
		return domain.Reminder{}, err
	}

	next.ID = current.ID
	next.OwnerID = current.OwnerID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1

	now := s.clock().UTC()
	if now.Before(current.UpdatedAt) {
		now = current.UpdatedAt
	}
	next.UpdatedAt = now

	contextJSON, err := marshalContext(next.Context)
	if err != nil {
		return domain.Reminder{}, err
	}

	// The version guard in the WHERE clause rejects the write when a
	// concurrent writer got there first.
	result, err := s.db.ExecContext(ctx, queryUpdate,
		next.DestinationID,
		next.Title,
		next.Description,
		next.DueAt.UnixNano(),
		string(next.Priority),
		string(next.Status),
		contextJSON,
		next.Recurrence,
		nanosOrNull(next.NotifiedAt),
		next.Version,
		next.UpdatedAt.UnixNano(),
		id,
		current.Version,
	)
	if err != nil {
		return domain.Reminder{}, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Reminder{}, err
	}
	if affected == 0 {
		// Either the record vanished or another writer bumped the
		// version. Distinguish by checking existence.
		var one int
		err := s.db.QueryRowContext(ctx, queryExists, id).Scan(&one)
		if err == sql.ErrNoRows {
			return domain.Reminder{}, store.ErrNotFound
		}
		if err != nil {
			return domain.Reminder{}, err
		}
		return domain.Reminder{}, store.ErrConflict
	}

	return next, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, queryDelete, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, ownerID string, f store.ListFilter) ([]domain.Reminder, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var rows *sql.Rows
	var err error
	if f.Status != nil {
		rows, err = s.db.QueryContext(ctx, queryListByOwnerStatus, ownerID, string(*f.Status), limit, f.Offset)
	} else {
		rows, err = s.db.QueryContext(ctx, queryListByOwner, ownerID, limit, f.Offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (s *Store) ScanDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, queryScanDue, asOf.UnixNano(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (s *Store) ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, queryListDue, ownerID, asOf.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (s *Store) Search(ctx context.Context, ownerID, query string) ([]domain.Reminder, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, querySearch, ownerID, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (s *Store) Counts(ctx context.Context, ownerID string, asOf time.Time) (store.Counts, error) {
	var c store.Counts
	err := s.db.QueryRowContext(ctx, queryCounts, asOf.UnixNano(), ownerID).Scan(
		&c.Total, &c.Pending, &c.Completed, &c.Cancelled, &c.DueNow,
	)
	if err != nil {
		return store.Counts{}, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (domain.Reminder, error) {
	var r domain.Reminder
	var dueAt, createdAt, updatedAt int64
	var notifiedAt sql.NullInt64
	var priority, status, contextJSON string

	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.DestinationID,
		&r.Title,
		&r.Description,
		&dueAt,
		&priority,
		&status,
		&contextJSON,
		&r.Recurrence,
		&notifiedAt,
		&r.Version,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Reminder{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Reminder{}, err
	}

	r.DueAt = time.Unix(0, dueAt).UTC()
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	r.Priority = domain.Priority(priority)
	r.Status = domain.Status(status)
	if notifiedAt.Valid {
		t := time.Unix(0, notifiedAt.Int64).UTC()
		r.NotifiedAt = &t
	}
	if err := json.Unmarshal([]byte(contextJSON), &r.Context); err != nil {
		return domain.Reminder{}, fmt.Errorf("decode context for %s: %w", r.ID, err)
	}
	if len(r.Context) == 0 {
		r.Context = nil
	}

	return r, nil
}

func scanReminders(rows *sql.Rows) ([]domain.Reminder, error) {
	var out []domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalContext(c map[string]any) (string, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return string(b), nil
}

func nanosOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func isDuplicateKeyError(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	code := serr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

var _ store.Store = (*Store)(nil)
