package bucket

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// LoadZoneCache loads every live record scoped to the zone instance into the
// cache. Records already cached are skipped.
func (s *Store) LoadZoneCache(zoneID, instanceID uint32) {
	if !s.caching || zoneID == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.FindZone(zoneID, instanceID, s.now().Unix())
	s.metrics.query("find_zone", err)
	if err != nil {
		log.Error().Err(err).
			Uint32("zone_id", zoneID).
			Uint32("instance_id", instanceID).
			Msg("Failed to load zone buckets")
		return
	}

	loaded := s.warm(records)
	log.Info().
		Uint32("zone_id", zoneID).
		Uint32("instance_id", instanceID).
		Int("loaded", loaded).
		Int("cache_size", s.cache.Len()).
		Msg("Loaded zone buckets into cache")
}

// BulkLoadEntitiesToCache loads the live records of a batch of characters,
// accounts or bots. A single-id batch whose owner already has any cache entry
// is treated as warm and skipped.
//
// The single-id shortcut cannot tell an entity with no buckets from one that
// was never loaded, so such entities are queried again on every call.
func (s *Store) BulkLoadEntitiesToCache(kind OwnerKind, ids []uint32) {
	if !s.caching || len(ids) == 0 {
		return
	}

	switch kind {
	case OwnerCharacter, OwnerAccount, OwnerBot:
	default:
		log.Warn().Str("kind", kind.String()).Msg("Bulk bucket loading is not supported for owner kind")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 1 {
		owned := ownedBy(kind, ids[0], 0)
		warm := false
		for _, e := range s.cache.Snapshot() {
			if owned(e) {
				warm = true
				break
			}
		}
		if warm {
			return
		}
	}

	records, err := s.repo.FindOwners(kind, ids, s.now().Unix())
	s.metrics.query("find_owners", err)
	if err != nil {
		log.Error().Err(err).
			Str("kind", kind.String()).
			Int("ids", len(ids)).
			Msg("Failed to bulk load buckets")
		return
	}

	loaded := s.warm(records)
	log.Debug().
		Str("kind", kind.String()).
		Int("ids", len(ids)).
		Int("loaded", loaded).
		Msg("Bulk loaded buckets into cache")
}

// warm adds records to the cache, dropping miss entries they supersede.
func (s *Store) warm(records []Record) int {
	loaded := 0
	for _, r := range records {
		if s.cache.ExistsByID(r.ID) {
			continue
		}
		s.cache.RemoveMisses(Filter{Key: r.Key, Owner: r.Owner()})
		if s.cache.Add(r) {
			loaded++
		}
	}
	s.syncSize()
	return loaded
}

// ownedBy returns a predicate selecting cache entries of one owner.
// For OwnerZone, secondaryID is the instance id.
func ownedBy(kind OwnerKind, id, secondaryID uint32) func(Record) bool {
	return func(e Record) bool {
		switch kind {
		case OwnerCharacter:
			return e.CharacterID == id
		case OwnerAccount:
			return e.AccountID == id
		case OwnerNPC:
			return e.NPCID == id
		case OwnerBot:
			return e.BotID == id
		case OwnerZone:
			return e.ZoneID == id && e.InstanceID == secondaryID
		default:
			return false
		}
	}
}

// DeleteCachedBuckets drops the cache entries of one owner. The backing
// store is untouched. For OwnerZone, secondaryID is the instance id.
func (s *Store) DeleteCachedBuckets(kind OwnerKind, id, secondaryID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.cache.RemoveIf(ownedBy(kind, id, secondaryID))
	s.syncSize()

	log.Debug().
		Str("kind", kind.String()).
		Uint32("id", id).
		Uint32("secondary_id", secondaryID).
		Int("removed", removed).
		Msg("Dropped cached buckets")
}

// DeleteFromCache drops the cache entries of one owner. For OwnerZone every
// instance of the zone is dropped.
func (s *Store) DeleteFromCache(id uint32, kind OwnerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pred := ownedBy(kind, id, 0)
	if kind == OwnerZone {
		pred = func(e Record) bool { return e.ZoneID == id }
	}
	s.cache.RemoveIf(pred)
	s.syncSize()
}

// DeleteZoneFromCache drops the cache entries of a zone instance.
func (s *Store) DeleteZoneFromCache(zoneID, instanceID uint32) {
	s.DeleteCachedBuckets(OwnerZone, zoneID, instanceID)
}

// ClearCache drops the whole cache. Persisted data is unaffected.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.cache.Clear()
	s.syncSize()
	log.Info().Str("cache", s.cache.ID()).Int("removed", n).Msg("Cleared bucket cache")
}

// CleanupExpired deletes expired rows from the backing store and drops
// expired cache entries. Returns the number of rows deleted.
func (s *Store) CleanupExpired() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count, err := s.repo.DeleteExpired(now.Unix())
	s.metrics.query("delete_expired", err)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to cleanup expired buckets")
		return 0
	}

	dropped := s.cache.RemoveIf(func(e Record) bool { return e.Expired(now) })
	s.syncSize()
	s.metrics.expired.Add(float64(count))

	if count > 0 || dropped > 0 {
		log.Debug().
			Int64("rows", count).
			Int("cached", dropped).
			Msg("Cleaned up expired buckets")
	}
	return count
}

// StartCleanup starts a background goroutine that periodically runs CleanupExpired.
// Calling it again while that goroutine is running does nothing.
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.cleanupRunning() {
		return
	}

	s.cleanupStop = make(chan struct{})
	s.cleanupStopped = make(chan struct{})

	go func() {
		defer close(s.cleanupStopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				s.CleanupExpired()
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started bucket cleanup goroutine")
}

// cleanupRunning reports whether a cleanup goroutine was started and has not exited.
func (s *Store) cleanupRunning() bool {
	if s.cleanupStop == nil {
		return false
	}
	select {
	case <-s.cleanupStopped:
		return false
	default:
		return true
	}
}

// StopCleanup stops the background cleanup goroutine.
func (s *Store) StopCleanup() {
	if s.cleanupStop != nil {
		close(s.cleanupStop)
		<-s.cleanupStopped
		s.cleanupStop = nil
		log.Debug().Msg("Stopped bucket cleanup goroutine")
	}
}
