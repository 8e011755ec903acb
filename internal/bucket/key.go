// Package bucket implements owner-scoped data buckets: durable string values
// attached to a character, account, npc, bot or zone instance, with optional
// expiration, nested JSON document keys and an in-process read/miss cache in
// front of a relational backing store.
package bucket

import (
	"strings"
	"time"
)

// Delimiter separates the segments of a nested key ("quest.progress").
const Delimiter = "."

// Key describes one bucket operation: the (possibly nested) key, the value
// for writes, an optional expiration, and at most one ownership scope.
type Key struct {
	Key     string
	Value   string
	Expires string // seconds from now ("3600") or a duration expression ("1h30m")

	CharacterID uint32
	AccountID   uint32
	NPCID       uint32
	BotID       uint32
	ZoneID      uint32
	InstanceID  uint32
}

// NewKey builds a key scoped to owner.
func NewKey(key string, owner Owner) Key {
	k := Key{Key: key}
	k.CharacterID, k.AccountID, k.NPCID, k.BotID, k.ZoneID, k.InstanceID = owner.fields()
	return k
}

// Owner resolves the ownership fields by precedence.
func (k Key) Owner() Owner {
	return resolveOwner(k.CharacterID, k.AccountID, k.NPCID, k.BotID, k.ZoneID, k.InstanceID)
}

// IsNested reports whether the key addresses a path inside a JSON document.
func (k Key) IsNested() bool {
	return strings.Contains(k.Key, Delimiter)
}

// TopLevel returns the first segment of the key, the only part that is persisted.
func (k Key) TopLevel() string {
	top, _, _ := strings.Cut(k.Key, Delimiter)
	return top
}

// Path returns the segments after the top-level key. Empty for plain keys.
func (k Key) Path() []string {
	_, rest, found := strings.Cut(k.Key, Delimiter)
	if !found {
		return nil
	}
	return strings.Split(rest, Delimiter)
}

// Filter returns the scoped predicate selecting the record behind this key.
func (k Key) Filter() Filter {
	return Filter{Key: k.TopLevel(), Owner: k.Owner()}
}

// Record is the unit of persistence and caching: one row of data_buckets.
// ID 0 marks either a record that was never persisted or, inside the cache,
// a miss entry recording that the scoped key is absent from the backing store.
type Record struct {
	ID      int64
	Key     string // top-level key only
	Value   string
	Expires int64 // unix seconds, 0 = never

	CharacterID uint32
	AccountID   uint32
	NPCID       uint32
	BotID       uint32
	ZoneID      uint32
	InstanceID  uint32
}

// newRecord returns a transient record for key scoped to owner.
func newRecord(key string, owner Owner) Record {
	r := Record{Key: key}
	r.CharacterID, r.AccountID, r.NPCID, r.BotID, r.ZoneID, r.InstanceID = owner.fields()
	return r
}

// Owner resolves the record's ownership fields.
func (r Record) Owner() Owner {
	return resolveOwner(r.CharacterID, r.AccountID, r.NPCID, r.BotID, r.ZoneID, r.InstanceID)
}

// IsMiss reports whether the record is a negative cache entry.
func (r Record) IsMiss() bool {
	return r.ID == 0
}

// Expired reports whether the record carries an expiration that has passed.
func (r Record) Expired(now time.Time) bool {
	return r.Expires > 0 && r.Expires < now.Unix()
}
