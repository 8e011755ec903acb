package bucket

import (
	"errors"
	"sort"
	"time"
)

var errBackend = errors.New("backend unavailable")

// fakeRepo is an in-memory Repository that counts calls per method and can
// be told to fail.
type fakeRepo struct {
	rows   map[int64]Record
	nextID int64
	calls  map[string]int

	failFind   bool
	failInsert bool
	failUpdate bool
	failDelete bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rows:  make(map[int64]Record),
		calls: make(map[string]int),
	}
}

// seed stores r directly, bypassing the call counters.
func (f *fakeRepo) seed(r Record) Record {
	f.nextID++
	r.ID = f.nextID
	f.rows[r.ID] = r
	return r
}

func (f *fakeRepo) sorted(pred func(Record) bool) []Record {
	var out []Record
	for _, r := range f.rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRepo) FindOne(flt Filter) (Record, bool, error) {
	f.calls["find"]++
	if f.failFind {
		return Record{}, false, errBackend
	}
	rows := f.sorted(flt.Matches)
	if len(rows) == 0 {
		return Record{}, false, nil
	}
	return rows[0], true, nil
}

func (f *fakeRepo) Insert(r Record) (int64, error) {
	f.calls["insert"]++
	if f.failInsert {
		return 0, errBackend
	}
	return f.seed(r).ID, nil
}

func (f *fakeRepo) Update(r Record) error {
	f.calls["update"]++
	if f.failUpdate {
		return errBackend
	}
	if _, ok := f.rows[r.ID]; !ok {
		return errors.New("no such row")
	}
	f.rows[r.ID] = r
	return nil
}

func (f *fakeRepo) Delete(flt Filter) (int64, error) {
	f.calls["delete"]++
	if f.failDelete {
		return 0, errBackend
	}
	var n int64
	for _, r := range f.sorted(flt.Matches) {
		delete(f.rows, r.ID)
		n++
	}
	return n, nil
}

func (f *fakeRepo) FindZone(zoneID, instanceID uint32, now int64) ([]Record, error) {
	f.calls["find_zone"]++
	if f.failFind {
		return nil, errBackend
	}
	return f.sorted(func(r Record) bool {
		return r.ZoneID == zoneID && r.InstanceID == instanceID && (r.Expires == 0 || r.Expires >= now)
	}), nil
}

func (f *fakeRepo) FindOwners(kind OwnerKind, ids []uint32, now int64) ([]Record, error) {
	f.calls["find_owners"]++
	if f.failFind {
		return nil, errBackend
	}
	wanted := make(map[uint32]bool)
	for _, id := range ids {
		wanted[id] = true
	}
	return f.sorted(func(r Record) bool {
		var id uint32
		switch kind {
		case OwnerCharacter:
			id = r.CharacterID
		case OwnerAccount:
			id = r.AccountID
		case OwnerBot:
			id = r.BotID
		}
		return id != 0 && wanted[id] && (r.Expires == 0 || r.Expires >= now)
	}), nil
}

func (f *fakeRepo) DeleteExpired(now int64) (int64, error) {
	f.calls["delete_expired"]++
	if f.failDelete {
		return 0, errBackend
	}
	var n int64
	for id, r := range f.rows {
		if r.Expires > 0 && r.Expires < now {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

// testClock is a manually advanced clock.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
