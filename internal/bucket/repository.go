package bucket

// Repository is the relational backing store behind a Store.
// Implementations live in internal/storage.
type Repository interface {
	// FindOne returns the record matching f. found is false when no row matches.
	FindOne(f Filter) (r Record, found bool, err error)

	// Insert persists r and returns its new id.
	Insert(r Record) (int64, error)

	// Update rewrites the row identified by r.ID.
	Update(r Record) error

	// Delete removes every row matching f and returns how many were removed.
	Delete(f Filter) (int64, error)

	// FindZone returns the live (non-expired at now) records scoped to a zone instance.
	FindZone(zoneID, instanceID uint32, now int64) ([]Record, error)

	// FindOwners returns the live records owned by any of ids.
	// kind must be OwnerCharacter, OwnerAccount or OwnerBot.
	FindOwners(kind OwnerKind, ids []uint32, now int64) ([]Record, error)

	// DeleteExpired removes rows whose expiration is set and older than now.
	DeleteExpired(now int64) (int64, error)
}
