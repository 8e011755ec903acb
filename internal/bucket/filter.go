package bucket

import "strings"

// Filter selects exactly the record stored under Key for Owner.
type Filter struct {
	Key   string
	Owner Owner
}

// Where renders the filter as a SQL predicate with positional arguments.
// The owner's column carries the id and every other ownership column is
// constrained to zero, so a character-scoped row can never be matched by an
// account-scoped lookup that happens to share the numeric id. A zone scope
// constrains both zone_id and instance_id.
func (f Filter) Where() (string, []any) {
	clause, args := f.ownerWhere()
	return "key_ = ? AND " + clause, append([]any{f.Key}, args...)
}

// ownerWhere renders only the ownership part of the predicate.
func (f Filter) ownerWhere() (string, []any) {
	c, a, n, b, z, i := f.Owner.fields()
	cols := []struct {
		name string
		val  uint32
	}{
		{"character_id", c},
		{"account_id", a},
		{"npc_id", n},
		{"bot_id", b},
		{"zone_id", z},
		{"instance_id", i},
	}

	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, col.name+" = ?")
		args = append(args, col.val)
	}
	return strings.Join(parts, " AND "), args
}

// Matches is the in-memory equivalent of Where: key_ and all six ownership
// fields must be equal.
func (f Filter) Matches(r Record) bool {
	c, a, n, b, z, i := f.Owner.fields()
	return r.Key == f.Key &&
		r.CharacterID == c &&
		r.AccountID == a &&
		r.NPCID == n &&
		r.BotID == b &&
		r.ZoneID == z &&
		r.InstanceID == i
}
