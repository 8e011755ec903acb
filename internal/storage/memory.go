package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dokzlo13/databuckets/internal/bucket"
)

var _ bucket.Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory backing store (not persisted).
// It is used when database.driver is "memory" and by tests.
type MemoryRepository struct {
	rows   map[int64]bucket.Record
	nextID int64
	mu     sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]bucket.Record)}
}

// FindOne returns the lowest-id row matching f.
func (m *MemoryRepository) FindOne(f bucket.Filter) (bucket.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := m.collect(f.Matches)
	if len(matches) == 0 {
		return bucket.Record{}, false, nil
	}
	return matches[0], true, nil
}

// Insert stores rec under a new id.
func (m *MemoryRepository) Insert(rec bucket.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	m.rows[rec.ID] = rec
	return rec.ID, nil
}

// Update replaces the row with rec.ID.
func (m *MemoryRepository) Update(rec bucket.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[rec.ID]; !ok {
		return fmt.Errorf("failed to update bucket %q: no row with id %d", rec.Key, rec.ID)
	}
	m.rows[rec.ID] = rec
	return nil
}

// Delete removes every row matching f.
func (m *MemoryRepository) Delete(f bucket.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteWhere(f.Matches), nil
}

// FindZone returns the live rows of a zone instance.
func (m *MemoryRepository) FindZone(zoneID, instanceID uint32, now int64) ([]bucket.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(func(r bucket.Record) bool {
		return r.ZoneID == zoneID && r.InstanceID == instanceID && live(r, now)
	}), nil
}

// FindOwners returns the live rows owned by any of ids.
func (m *MemoryRepository) FindOwners(kind bucket.OwnerKind, ids []uint32, now int64) ([]bucket.Record, error) {
	var owner func(bucket.Record) uint32
	switch kind {
	case bucket.OwnerCharacter:
		owner = func(r bucket.Record) uint32 { return r.CharacterID }
	case bucket.OwnerAccount:
		owner = func(r bucket.Record) uint32 { return r.AccountID }
	case bucket.OwnerBot:
		owner = func(r bucket.Record) uint32 { return r.BotID }
	default:
		return nil, fmt.Errorf("unsupported owner kind for bulk load: %s", kind)
	}

	wanted := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(func(r bucket.Record) bool {
		id := owner(r)
		return id != 0 && wanted[id] && live(r, now)
	}), nil
}

// DeleteExpired removes rows whose expiration has passed.
func (m *MemoryRepository) DeleteExpired(now int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.deleteWhere(func(r bucket.Record) bool {
		return r.Expires > 0 && r.Expires < now
	}), nil
}

// Len returns the number of stored rows.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// collect returns matching rows ordered by id. Callers hold the lock.
func (m *MemoryRepository) collect(pred func(bucket.Record) bool) []bucket.Record {
	var out []bucket.Record
	for _, r := range m.rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deleteWhere removes matching rows. Callers hold the write lock.
func (m *MemoryRepository) deleteWhere(pred func(bucket.Record) bool) int64 {
	var count int64
	for id, r := range m.rows {
		if pred(r) {
			delete(m.rows, id)
			count++
		}
	}
	return count
}

func live(r bucket.Record, now int64) bool {
	return r.Expires == 0 || r.Expires >= now
}
