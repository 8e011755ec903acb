package modules

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/databuckets/internal/bucket"
)

// BucketsModule provides the buckets module to Lua.
//
//	local buckets = require("buckets")
//	buckets.set("quest.progress", "3", { character_id = 42 })
//	buckets.get("quest", { character_id = 42 })  --> '{"progress":"3"}'
type BucketsModule struct {
	store *bucket.Store
}

// NewBucketsModule creates a new buckets module.
func NewBucketsModule(store *bucket.Store) *BucketsModule {
	return &BucketsModule{store: store}
}

// Loader is the module loader for Lua.
func (m *BucketsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "set", L.NewFunction(m.set))
	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "get_table", L.NewFunction(m.getTable))
	L.SetField(mod, "delete", L.NewFunction(m.delete))
	L.SetField(mod, "expires", L.NewFunction(m.expires))
	L.SetField(mod, "remaining", L.NewFunction(m.remaining))

	L.Push(mod)
	return 1
}

// checkKey builds a bucket key from the key argument and an optional
// options table at opts: { expires = ..., character_id = ..., account_id = ...,
// npc_id = ..., bot_id = ..., zone_id = ..., instance_id = ... }.
func checkKey(L *lua.LState, opts int) bucket.Key {
	key := strings.TrimSpace(L.CheckString(1))
	if key == "" {
		L.ArgError(1, "bucket key must not be empty")
	}

	k := bucket.Key{Key: key}
	tbl := L.OptTable(opts, nil)
	if tbl == nil {
		return k
	}

	if v := L.GetField(tbl, "expires"); v != lua.LNil {
		k.Expires = lua.LVAsString(v)
	}
	k.CharacterID = optID(L, tbl, "character_id")
	k.AccountID = optID(L, tbl, "account_id")
	k.NPCID = optID(L, tbl, "npc_id")
	k.BotID = optID(L, tbl, "bot_id")
	k.ZoneID = optID(L, tbl, "zone_id")
	k.InstanceID = optID(L, tbl, "instance_id")
	return k
}

func optID(L *lua.LState, tbl *lua.LTable, field string) uint32 {
	v := L.GetField(tbl, field)
	n, ok := v.(lua.LNumber)
	if !ok || n < 0 {
		return 0
	}
	return uint32(n)
}

// set(key, value, opts) -> bool, result
func (m *BucketsModule) set(L *lua.LState) int {
	k := checkKey(L, 3)
	k.Value = lua.LVAsString(L.CheckAny(2))

	result := m.store.SetData(k)
	if result != bucket.SetStored {
		log.Debug().
			Str("source", "lua").
			Str("key", k.Key).
			Str("result", result.String()).
			Msg("Bucket write not stored")
	}

	L.Push(lua.LBool(result == bucket.SetStored))
	L.Push(lua.LString(result.String()))
	return 2
}

// get(key, opts) -> string | nil
func (m *BucketsModule) get(L *lua.LState) int {
	k := checkKey(L, 2)

	r, ok := m.store.GetData(k)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	L.Push(lua.LString(r.Value))
	return 1
}

// get_table(key, opts) -> table | nil
// Decodes a JSON document value into a Lua table.
func (m *BucketsModule) getTable(L *lua.LState) int {
	k := checkKey(L, 2)

	r, ok := m.store.GetData(k)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	dec := json.NewDecoder(strings.NewReader(r.Value))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		log.Warn().Err(err).Str("key", k.Key).Msg("Bucket value is not JSON")
		L.Push(lua.LNil)
		return 1
	}

	L.Push(GoToLuaValue(L, doc))
	return 1
}

// delete(key, opts) -> bool
func (m *BucketsModule) delete(L *lua.LState) int {
	k := checkKey(L, 2)

	L.Push(lua.LBool(m.store.DeleteData(k)))
	return 1
}

// expires(key, opts) -> string
func (m *BucketsModule) expires(L *lua.LState) int {
	k := checkKey(L, 2)

	L.Push(lua.LString(m.store.GetDataExpires(k)))
	return 1
}

// remaining(key, opts) -> string
func (m *BucketsModule) remaining(L *lua.LState) int {
	k := checkKey(L, 2)

	L.Push(lua.LString(m.store.GetDataRemaining(k)))
	return 1
}
