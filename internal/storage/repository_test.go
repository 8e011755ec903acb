package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/databuckets/internal/bucket"
	"github.com/dokzlo13/databuckets/internal/db"
)

const now = int64(1_700_000_000)

func newSQLite(t *testing.T) bucket.Repository {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "buckets.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewSQLiteRepository(database.DB)
}

func newMemory(t *testing.T) bucket.Repository {
	return NewMemoryRepository()
}

// forEachRepository runs fn against every Repository implementation.
func forEachRepository(t *testing.T, fn func(t *testing.T, repo bucket.Repository)) {
	for name, open := range map[string]func(*testing.T) bucket.Repository{
		"sqlite": newSQLite,
		"memory": newMemory,
	} {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func record(key, value string, o bucket.Owner, expires int64) bucket.Record {
	k := bucket.NewKey(key, o)
	return bucket.Record{
		Key:         k.Key,
		Value:       value,
		Expires:     expires,
		CharacterID: k.CharacterID,
		AccountID:   k.AccountID,
		NPCID:       k.NPCID,
		BotID:       k.BotID,
		ZoneID:      k.ZoneID,
		InstanceID:  k.InstanceID,
	}
}

func insert(t *testing.T, repo bucket.Repository, r bucket.Record) bucket.Record {
	t.Helper()
	id, err := repo.Insert(r)
	require.NoError(t, err)
	require.NotZero(t, id)
	r.ID = id
	return r
}

func filter(key string, o bucket.Owner) bucket.Filter {
	return bucket.Filter{Key: key, Owner: o}
}

func keys(records []bucket.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key)
	}
	return out
}

func TestRepository_InsertFindUpdate(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		in := insert(t, repo, record("hp", "100", bucket.Character(1), now+60))

		got, found, err := repo.FindOne(filter("hp", bucket.Character(1)))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, in, got)

		in.Value = "90"
		in.Expires = 0
		require.NoError(t, repo.Update(in))

		got, _, err = repo.FindOne(filter("hp", bucket.Character(1)))
		require.NoError(t, err)
		assert.Equal(t, "90", got.Value)
		assert.Equal(t, int64(0), got.Expires)

		_, found, err = repo.FindOne(filter("mp", bucket.Character(1)))
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRepository_UpdateWithoutID(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		assert.Error(t, repo.Update(record("hp", "1", bucket.Global, 0)))
	})
}

func TestRepository_ScopeIsExact(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		insert(t, repo, record("x", "global", bucket.Global, 0))
		insert(t, repo, record("x", "char", bucket.Character(1), 0))
		insert(t, repo, record("x", "npc", bucket.NPC(1), 0))
		insert(t, repo, record("x", "zone", bucket.Zone(1, 0), 0))
		insert(t, repo, record("x", "instance", bucket.Zone(1, 3), 0))

		// A row with more than one owner column set is never matched by a single owner
		mixed := record("x", "mixed", bucket.Character(2), 0)
		mixed.AccountID = 2
		insert(t, repo, mixed)

		cases := []struct {
			owner bucket.Owner
			want  string
			found bool
		}{
			{bucket.Global, "global", true},
			{bucket.Character(1), "char", true},
			{bucket.NPC(1), "npc", true},
			{bucket.Zone(1, 0), "zone", true},
			{bucket.Zone(1, 3), "instance", true},
			{bucket.Account(1), "", false},
			{bucket.Character(2), "", false},
			{bucket.Account(2), "", false},
		}
		for _, tc := range cases {
			got, found, err := repo.FindOne(filter("x", tc.owner))
			require.NoError(t, err)
			assert.Equal(t, tc.found, found, tc.owner.String())
			assert.Equal(t, tc.want, got.Value, tc.owner.String())
		}
	})
}

func TestRepository_Delete(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		insert(t, repo, record("x", "1", bucket.Character(1), 0))
		insert(t, repo, record("x", "2", bucket.Character(2), 0))

		n, err := repo.Delete(filter("x", bucket.Character(1)))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.Delete(filter("x", bucket.Character(1)))
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		_, found, err := repo.FindOne(filter("x", bucket.Character(2)))
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestRepository_FindZone(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		insert(t, repo, record("a", "1", bucket.Zone(10, 0), 0))
		insert(t, repo, record("b", "2", bucket.Zone(10, 0), now))
		insert(t, repo, record("c", "3", bucket.Zone(10, 0), now-1))
		insert(t, repo, record("d", "4", bucket.Zone(10, 1), 0))
		insert(t, repo, record("e", "5", bucket.Zone(11, 0), 0))

		records, err := repo.FindZone(10, 0, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keys(records))

		records, err = repo.FindZone(10, 1, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, keys(records))
	})
}

func TestRepository_FindOwners(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		insert(t, repo, record("a", "1", bucket.Character(1), 0))
		insert(t, repo, record("b", "2", bucket.Character(2), now+10))
		insert(t, repo, record("c", "3", bucket.Character(3), 0))
		insert(t, repo, record("d", "4", bucket.Character(2), now-10))
		insert(t, repo, record("e", "5", bucket.Account(1), 0))
		insert(t, repo, record("f", "6", bucket.Bot(1), 0))

		records, err := repo.FindOwners(bucket.OwnerCharacter, []uint32{1, 2}, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keys(records))

		records, err = repo.FindOwners(bucket.OwnerAccount, []uint32{1}, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, keys(records))

		records, err = repo.FindOwners(bucket.OwnerBot, []uint32{1, 99}, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"f"}, keys(records))

		_, err = repo.FindOwners(bucket.OwnerNPC, []uint32{1}, now)
		assert.Error(t, err)
	})
}

func TestRepository_DeleteExpired(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo bucket.Repository) {
		insert(t, repo, record("forever", "1", bucket.Global, 0))
		insert(t, repo, record("boundary", "2", bucket.Global, now))
		insert(t, repo, record("past", "3", bucket.Character(1), now-1))
		insert(t, repo, record("past", "4", bucket.NPC(1), now-100))

		n, err := repo.DeleteExpired(now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		for _, key := range []string{"forever", "boundary"} {
			_, found, err := repo.FindOne(filter(key, bucket.Global))
			require.NoError(t, err)
			assert.True(t, found, key)
		}
	})
}

func TestSQLiteRepository_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buckets.sqlite")

	first, err := db.Open(path)
	require.NoError(t, err)
	_, err = NewSQLiteRepository(first.DB).Insert(record("motd", "hello", bucket.Global, 0))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := db.Open(path)
	require.NoError(t, err)
	defer second.Close()

	got, found, err := NewSQLiteRepository(second.DB).FindOne(filter("motd", bucket.Global))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello", got.Value)
}

func TestMemoryRepository_Len(t *testing.T) {
	repo := NewMemoryRepository()
	insert(t, repo, record("a", "1", bucket.Global, 0))
	insert(t, repo, record("b", "2", bucket.Global, 0))
	assert.Equal(t, 2, repo.Len())
}
