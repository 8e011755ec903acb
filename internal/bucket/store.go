package bucket

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// SetResult is the outcome of a write.
type SetResult int

const (
	// SetStored means the value was written to the backing store.
	SetStored SetResult = iota
	// SetRejected means the write would have replaced an object or array
	// value and was dropped. Stored data is unchanged.
	SetRejected
	// SetNotPersisted means the key was empty or the backing store refused the write.
	SetNotPersisted
)

func (r SetResult) String() string {
	switch r {
	case SetStored:
		return "stored"
	case SetRejected:
		return "rejected"
	case SetNotPersisted:
		return "not_persisted"
	default:
		return fmt.Sprintf("SetResult(%d)", int(r))
	}
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics registers the store metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.registerer = reg
	}
}

// WithCacheDisabled sends every read to the backing store.
func WithCacheDisabled() Option {
	return func(s *Store) {
		s.caching = false
	}
}

// Store is the bucket facade. It orchestrates the process cache and the
// backing store and never surfaces backing-store errors to callers: reads
// degrade to "not found", writes report SetNotPersisted.
//
// All operations are serialized; a Store is safe to share between goroutines.
type Store struct {
	repo       Repository
	cache      *Cache
	now        func() time.Time
	caching    bool
	registerer prometheus.Registerer
	metrics    *storeMetrics
	mu         sync.Mutex

	cleanupStop    chan struct{}
	cleanupStopped chan struct{}
}

// NewStore creates a store over repo. A nil cache gets a fresh one.
func NewStore(repo Repository, cache *Cache, opts ...Option) (*Store, error) {
	if cache == nil {
		cache = NewCache()
	}

	s := &Store{
		repo:    repo,
		cache:   cache,
		now:     time.Now,
		caching: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics, err := newStoreMetrics(s.registerer, cache.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to register bucket metrics: %w", err)
	}
	s.metrics = metrics

	log.Debug().
		Str("cache", cache.ID()).
		Bool("caching", s.caching).
		Msg("Created bucket store")

	return s, nil
}

// Cache returns the store's process cache.
func (s *Store) Cache() *Cache {
	return s.cache
}

// CanCache reports whether records behind k may be kept in the process cache.
func (s *Store) CanCache(k Key) bool {
	return s.canCache(k.Filter())
}

func (s *Store) canCache(f Filter) bool {
	return s.caching && f.Owner.Cacheable()
}

// Set writes an unscoped value. expires may be empty.
func (s *Store) Set(key, value, expires string) SetResult {
	return s.SetData(Key{Key: key, Value: value, Expires: expires})
}

// Get returns the unscoped value for key, or "" if absent.
func (s *Store) Get(key string) string {
	r, _ := s.GetData(Key{Key: key})
	return r.Value
}

// Delete removes an unscoped key.
func (s *Store) Delete(key string) bool {
	return s.DeleteData(Key{Key: key})
}

// SetData writes k.Value under k. Nested keys are merged into the JSON
// document stored under the top-level key and never carry an expiration.
func (s *Store) SetData(k Key) SetResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setData(k)
}

// GetData returns the record behind k. For nested keys the returned record's
// Value holds the extracted sub-value.
func (s *Store) GetData(k Key) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getData(k)
}

// GetDataExpires returns the absolute expiration of k as unix seconds,
// or "" if k does not exist.
func (s *Store) GetDataExpires(k Key) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.getData(k)
	if !ok {
		return ""
	}
	return strconv.FormatInt(r.Expires, 10)
}

// GetDataRemaining returns the seconds left before k expires, "0" if k does
// not exist or never expires.
func (s *Store) GetDataRemaining(k Key) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.getData(k)
	if !ok {
		return "0"
	}
	return remaining(r, s.now())
}

// DeleteData removes k. For nested keys only the addressed sub-path is
// removed; the record goes away once its document is empty.
func (s *Store) DeleteData(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteData(k)
}

func (s *Store) setData(k Key) SetResult {
	f := k.Filter()
	if !validKey(k, f, "set") {
		return SetNotPersisted
	}
	existing, found := s.lookup(f, false)

	rec := newRecord(f.Key, f.Owner)
	if found {
		rec.ID = existing.ID
	}

	if k.IsNested() {
		if k.Expires != "" {
			log.Warn().
				Str("key", k.Key).
				Str("expires", k.Expires).
				Msg("Expiration is not supported on nested bucket keys, ignoring")
		}

		base := "{}"
		if found {
			base = existing.Value
			if _, err := parseDocument(base); err != nil {
				log.Warn().
					Str("key", k.Key).
					Str("owner", f.Owner.String()).
					Msg("Existing bucket value is not a JSON object, starting a new document")
			}
		}

		doc, err := MergeNested(base, k.Path(), k.Value)
		if errors.Is(err, ErrStructuralOverwrite) {
			s.reject(k, f)
			return SetRejected
		}
		if err != nil {
			log.Error().Err(err).Str("key", k.Key).Msg("Failed to merge nested bucket value")
			return SetNotPersisted
		}
		rec.Value = doc
		rec.Expires = 0
	} else {
		if found && isDocument(existing.Value) {
			s.reject(k, f)
			return SetRejected
		}

		expires, err := ParseExpires(k.Expires, s.now())
		if err != nil {
			log.Warn().Err(err).Str("key", k.Key).Msg("Invalid bucket expiration, storing without expiration")
			expires = 0
		}
		rec.Value = k.Value
		rec.Expires = expires
	}

	if found {
		err := s.repo.Update(rec)
		s.metrics.query("update", err)
		if err != nil {
			log.Error().Err(err).
				Str("key", k.Key).
				Str("owner", f.Owner.String()).
				Msg("Failed to update bucket")
			return SetNotPersisted
		}
		if s.canCache(f) {
			s.cache.Replace(f, rec)
		}
		return SetStored
	}

	id, err := s.repo.Insert(rec)
	s.metrics.query("insert", err)
	if err != nil {
		log.Error().Err(err).
			Str("key", k.Key).
			Str("owner", f.Owner.String()).
			Msg("Failed to insert bucket")
		return SetNotPersisted
	}
	rec.ID = id

	if s.canCache(f) && !s.cache.ExistsByID(id) {
		// The miss entry would shadow the new record on the next scan.
		s.cache.RemoveMisses(f)
		s.cache.Add(rec)
		s.syncSize()
	}
	return SetStored
}

func (s *Store) reject(k Key, f Filter) {
	s.metrics.rejected.Inc()
	log.Warn().
		Str("key", k.Key).
		Str("owner", f.Owner.String()).
		Msg("Refusing to overwrite object or array bucket value")
}

func (s *Store) getData(k Key) (Record, bool) {
	f := k.Filter()
	if !validKey(k, f, "get") {
		return Record{}, false
	}
	r, ok := s.lookup(f, true)
	if !ok || !k.IsNested() {
		return r, ok
	}

	v, err := ExtractNested(r.Value, k.Path())
	if err != nil {
		if errors.Is(err, ErrMalformedDocument) {
			log.Debug().Str("key", k.Key).Msg("Bucket value is not a JSON document")
		}
		return Record{}, false
	}
	r.Value = v
	return r, true
}

// lookup returns the top-level record for f, evicting it if it has expired.
// recordMiss controls whether an absent key leaves a miss entry behind.
func (s *Store) lookup(f Filter, recordMiss bool) (Record, bool) {
	now := s.now()
	cacheable := s.canCache(f)

	if cacheable {
		if e, ok := s.cache.Lookup(f); ok {
			if e.IsMiss() {
				s.metrics.negative.Inc()
				return Record{}, false
			}
			if e.Expired(now) {
				s.evict(f)
				return Record{}, false
			}
			s.metrics.hits.Inc()
			return e, true
		}
	}

	s.metrics.misses.Inc()
	r, found, err := s.repo.FindOne(f)
	s.metrics.query("find", err)
	if err != nil {
		log.Warn().Err(err).
			Str("key", f.Key).
			Str("owner", f.Owner.String()).
			Msg("Failed to read bucket")
		return Record{}, false
	}

	if !found {
		if recordMiss && cacheable {
			s.cache.Add(newRecord(f.Key, f.Owner))
			s.syncSize()
		}
		return Record{}, false
	}

	if r.Expired(now) {
		s.evict(f)
		return Record{}, false
	}

	if cacheable && !s.cache.ExistsByID(r.ID) {
		s.cache.Add(r)
		s.syncSize()
	}
	return r, true
}

func (s *Store) evict(f Filter) {
	s.metrics.expired.Inc()
	log.Debug().
		Str("key", f.Key).
		Str("owner", f.Owner.String()).
		Msg("Evicting expired bucket")
	s.deleteRecord(f)
}

// deleteRecord removes the rows matching f, then their cache entries.
func (s *Store) deleteRecord(f Filter) int64 {
	n, err := s.repo.Delete(f)
	s.metrics.query("delete", err)
	if err != nil {
		log.Error().Err(err).
			Str("key", f.Key).
			Str("owner", f.Owner.String()).
			Msg("Failed to delete bucket")
		return 0
	}

	if s.canCache(f) {
		s.cache.RemoveIf(f.Matches)
		s.syncSize()
	}
	return n
}

func (s *Store) deleteData(k Key) bool {
	f := k.Filter()
	if !validKey(k, f, "delete") {
		return false
	}
	if !k.IsNested() {
		return s.deleteRecord(f) > 0
	}

	r, ok := s.lookup(f, true)
	if !ok {
		return false
	}

	doc, empty, err := DeleteNested(r.Value, k.Path())
	if err != nil {
		if errors.Is(err, ErrMalformedDocument) {
			log.Warn().Str("key", k.Key).Msg("Cannot delete nested key, bucket value is not a JSON document")
		}
		return false
	}

	if empty {
		s.deleteRecord(f)
		return true
	}

	r.Value = doc
	err = s.repo.Update(r)
	s.metrics.query("update", err)
	if err != nil {
		log.Error().Err(err).Str("key", k.Key).Msg("Failed to update bucket after nested delete")
		return false
	}
	if s.canCache(f) {
		s.cache.Replace(f, r)
	}
	return true
}

func (s *Store) syncSize() {
	s.metrics.size.Set(float64(s.cache.Len()))
}

// validKey rejects keys whose top-level segment is empty ("" or ".a").
func validKey(k Key, f Filter, op string) bool {
	if f.Key != "" {
		return true
	}
	log.Warn().
		Str("op", op).
		Str("key", k.Key).
		Str("owner", f.Owner.String()).
		Msg("Bucket key is empty, ignoring")
	return false
}
