package modules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	lua "github.com/yuin/gopher-lua"
)

func TestLuaToGo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	eval := func(src string) lua.LValue {
		if err := L.DoString("v = " + src); err != nil {
			t.Fatalf("eval %q: %v", src, err)
		}
		return L.GetGlobal("v")
	}

	assert.Equal(t, "x", LuaToGo(eval(`"x"`)))
	assert.Equal(t, float64(3), LuaToGo(eval(`3`)))
	assert.Equal(t, true, LuaToGo(eval(`true`)))
	assert.Nil(t, LuaToGo(eval(`nil`)))
	assert.Equal(t, []any{"a", "b"}, LuaToGo(eval(`{"a", "b"}`)))
	assert.Equal(t, map[string]any{"k": "v"}, LuaToGo(eval(`{k = "v"}`)))
	assert.Equal(t, map[string]any{"1": "a", "k": "v"}, LuaToGo(eval(`{"a", k = "v"}`)))
}

func TestGoToLuaValue(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	assert.Equal(t, lua.LNumber(12), GoToLuaValue(L, json.Number("12")))
	assert.Equal(t, lua.LString("x"), GoToLuaValue(L, "x"))
	assert.Equal(t, lua.LNil, GoToLuaValue(L, nil))

	tbl, ok := GoToLuaValue(L, map[string]any{"list": []any{"a"}}).(*lua.LTable)
	if assert.True(t, ok) {
		list, ok := tbl.RawGetString("list").(*lua.LTable)
		if assert.True(t, ok) {
			assert.Equal(t, lua.LString("a"), list.RawGetInt(1))
		}
	}
}
