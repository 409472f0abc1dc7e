// Package memory provides an in-memory Store used by tests and by
// deployments that do not need durability across restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/store"
)

// Store keeps records in a map guarded by a RWMutex. Updates use the
// record version as a compare-and-set marker: the mutator runs on a
// snapshot outside the lock, and the write is rejected with
// ErrConflict when another writer got there first.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.Reminder
	clock   func() time.Time
}

func New() *Store {
	return &Store{
		records: make(map[string]domain.Reminder),
		clock:   time.Now,
	}
}

// WithClock replaces the time source. For tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

func (s *Store) Put(ctx context.Context, r domain.Reminder) (domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.ID]; exists {
		return domain.Reminder{}, store.ErrDuplicateKey
	}

	now := s.clock().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	r.Context = r.CloneContext()

	s.records[r.ID] = r
	return r, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return domain.Reminder{}, store.ErrNotFound
	}
	r.Context = r.CloneContext()
	return r, nil
}

func (s *Store) Update(ctx context.Context, id string, m store.Mutator) (domain.Reminder, error) {
	s.mu.RLock()
	current, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Reminder{}, store.ErrNotFound
	}

	snapshot := current
	snapshot.Context = current.CloneContext()

	next, err := m(snapshot)
	if err != nil {
		return domain.Reminder{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	latest, ok := s.records[id]
	if !ok {
		return domain.Reminder{}, store.ErrNotFound
	}
	if latest.Version != current.Version {
		return domain.Reminder{}, store.ErrConflict
	}

	// Immutable fields are owned by the store, not the mutator.
	next.ID = latest.ID
	next.OwnerID = latest.OwnerID
	next.CreatedAt = latest.CreatedAt
	next.Version = latest.Version + 1

	now := s.clock().UTC()
	if now.Before(latest.UpdatedAt) {
		now = latest.UpdatedAt
	}
	next.UpdatedAt = now

	s.records[id] = next

	next.Context = next.CloneContext()
	return next, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Store) List(ctx context.Context, ownerID string, f store.ListFilter) ([]domain.Reminder, error) {
	s.mu.RLock()
	var out []domain.Reminder
	for _, r := range s.records {
		if r.OwnerID != ownerID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		r.Context = r.CloneContext()
		out = append(out, r)
	}
	s.mu.RUnlock()

	sortByDue(out)
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *Store) ScanDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Reminder, error) {
	s.mu.RLock()
	var out []domain.Reminder
	for _, r := range s.records {
		if !r.DueBy(asOf) || r.NotifiedAt != nil {
			continue
		}
		r.Context = r.CloneContext()
		out = append(out, r)
	}
	s.mu.RUnlock()

	sortByDue(out)
	return paginate(out, limit, 0), nil
}

func (s *Store) ListDue(ctx context.Context, ownerID string, asOf time.Time) ([]domain.Reminder, error) {
	s.mu.RLock()
	var out []domain.Reminder
	for _, r := range s.records {
		if r.OwnerID != ownerID || !r.DueBy(asOf) {
			continue
		}
		r.Context = r.CloneContext()
		out = append(out, r)
	}
	s.mu.RUnlock()

	sortByDue(out)
	return out, nil
}

func (s *Store) Search(ctx context.Context, ownerID, query string) ([]domain.Reminder, error) {
	q := strings.ToLower(query)

	s.mu.RLock()
	var out []domain.Reminder
	for _, r := range s.records {
		if r.OwnerID != ownerID {
			continue
		}
		if !strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) {
			continue
		}
		r.Context = r.CloneContext()
		out = append(out, r)
	}
	s.mu.RUnlock()

	sortByDue(out)
	return out, nil
}

func (s *Store) Counts(ctx context.Context, ownerID string, asOf time.Time) (store.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c store.Counts
	for _, r := range s.records {
		if r.OwnerID != ownerID {
			continue
		}
		c.Total++
		switch r.Status {
		case domain.StatusPending:
			c.Pending++
		case domain.StatusCompleted:
			c.Completed++
		case domain.StatusCancelled:
			c.Cancelled++
		}
		if r.DueBy(asOf) {
			c.DueNow++
		}
	}
	return c, nil
}

func (s *Store) Close() error { return nil }

// sortByDue orders by due time ascending, ties broken by id so the
// ordering is stable across calls.
func sortByDue(rs []domain.Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].DueAt.Equal(rs[j].DueAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].DueAt.Before(rs[j].DueAt)
	})
}

func paginate(rs []domain.Reminder, limit, offset int) []domain.Reminder {
	if offset > 0 {
		if offset >= len(rs) {
			return nil
		}
		rs = rs[offset:]
	}
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	return rs
}

var _ store.Store = (*Store)(nil)
