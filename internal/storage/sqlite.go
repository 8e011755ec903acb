// Package storage provides the backing stores for data buckets.
package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dokzlo13/databuckets/internal/bucket"
)

const bucketColumns = `id, key_, value, expires, character_id, account_id, npc_id, bot_id, zone_id, instance_id`

var _ bucket.Repository = (*SQLiteRepository)(nil)

// SQLiteRepository stores buckets in the data_buckets table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database whose
// schema was created by db.Open.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// FindOne returns the lowest-id row matching f.
func (r *SQLiteRepository) FindOne(f bucket.Filter) (bucket.Record, bool, error) {
	where, args := f.Where()

	row := r.db.QueryRow(`SELECT `+bucketColumns+` FROM data_buckets WHERE `+where+` ORDER BY id LIMIT 1`, args...)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return bucket.Record{}, false, nil
	}
	if err != nil {
		return bucket.Record{}, false, fmt.Errorf("failed to get bucket: %w", err)
	}
	return rec, true, nil
}

// Insert adds rec and returns its id.
func (r *SQLiteRepository) Insert(rec bucket.Record) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO data_buckets (key_, value, expires, character_id, account_id, npc_id, bot_id, zone_id, instance_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Key, rec.Value, rec.Expires,
		rec.CharacterID, rec.AccountID, rec.NPCID, rec.BotID, rec.ZoneID, rec.InstanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bucket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read bucket id: %w", err)
	}
	return id, nil
}

// Update rewrites the row with rec.ID.
func (r *SQLiteRepository) Update(rec bucket.Record) error {
	if rec.ID == 0 {
		return fmt.Errorf("failed to update bucket %q: record has no id", rec.Key)
	}

	_, err := r.db.Exec(`
		UPDATE data_buckets SET
			key_ = ?, value = ?, expires = ?,
			character_id = ?, account_id = ?, npc_id = ?, bot_id = ?, zone_id = ?, instance_id = ?
		WHERE id = ?
	`, rec.Key, rec.Value, rec.Expires,
		rec.CharacterID, rec.AccountID, rec.NPCID, rec.BotID, rec.ZoneID, rec.InstanceID,
		rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update bucket: %w", err)
	}
	return nil
}

// Delete removes every row matching f.
func (r *SQLiteRepository) Delete(f bucket.Filter) (int64, error) {
	where, args := f.Where()

	result, err := r.db.Exec(`DELETE FROM data_buckets WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bucket: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}

// FindZone returns the live rows of a zone instance.
func (r *SQLiteRepository) FindZone(zoneID, instanceID uint32, now int64) ([]bucket.Record, error) {
	rows, err := r.db.Query(`
		SELECT `+bucketColumns+` FROM data_buckets
		WHERE zone_id = ? AND instance_id = ? AND (expires = 0 OR expires >= ?)
		ORDER BY id
	`, zoneID, instanceID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list zone buckets: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FindOwners returns the live rows owned by any of ids.
func (r *SQLiteRepository) FindOwners(kind bucket.OwnerKind, ids []uint32, now int64) ([]bucket.Record, error) {
	switch kind {
	case bucket.OwnerCharacter, bucket.OwnerAccount, bucket.OwnerBot:
	default:
		return nil, fmt.Errorf("unsupported owner kind for bulk load: %s", kind)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, now)

	rows, err := r.db.Query(`
		SELECT `+bucketColumns+` FROM data_buckets
		WHERE `+kind.Column()+` IN (`+placeholders+`) AND (expires = 0 OR expires >= ?)
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s buckets: %w", kind, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// DeleteExpired removes rows whose expiration has passed.
func (r *SQLiteRepository) DeleteExpired(now int64) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM data_buckets WHERE expires > 0 AND expires < ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired buckets: %w", err)
	}

	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (bucket.Record, error) {
	var rec bucket.Record
	err := s.Scan(
		&rec.ID, &rec.Key, &rec.Value, &rec.Expires,
		&rec.CharacterID, &rec.AccountID, &rec.NPCID, &rec.BotID, &rec.ZoneID, &rec.InstanceID,
	)
	return rec, err
}

func scanRecords(rows *sql.Rows) ([]bucket.Record, error) {
	var records []bucket.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
