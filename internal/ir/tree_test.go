package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneIsDeep(t *testing.T) {
	orig := Obj(
		O("where", Obj(O("id", IRInt(1)))),
		O("ids", Arr(IRInt(1), Obj(O("x", IRBool(true))))),
		O("undef", nil),
	)

	cp := Clone(orig).(IRObject)
	cp["where"].(IRObject)["deleted"] = IRBool(false)
	cp["ids"].(IRArray)[1].(IRObject)["x"] = IRBool(false)

	assert.NotContains(t, orig["where"].(IRObject), "deleted")
	assert.Equal(t, IRBool(true), orig["ids"].(IRArray)[1].(IRObject)["x"])
	_, present := cp["undef"]
	assert.True(t, present, "undefined keys survive cloning")
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b IRValue
		want bool
	}{
		{"nil vs nil", nil, nil, true},
		{"nil vs null", nil, IRNull{}, false},
		{"null vs null", IRNull{}, IRNull{}, true},
		{"int vs string", IRInt(1), IRString("1"), false},
		{"bool", IRBool(true), IRBool(true), true},
		{"arrays", Arr(IRInt(1), IRInt(2)), Arr(IRInt(1), IRInt(2)), true},
		{"array order", Arr(IRInt(1), IRInt(2)), Arr(IRInt(2), IRInt(1)), false},
		{"objects", Obj(O("a", IRInt(1))), Obj(O("a", IRInt(1))), true},
		{"object extra key", Obj(O("a", IRInt(1))), Obj(O("a", IRInt(1)), O("b", nil)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(IRNull{}))
	assert.False(t, Truthy(IRBool(false)))
	assert.False(t, Truthy(IRString("")))
	assert.False(t, Truthy(IRInt(0)))

	assert.True(t, Truthy(IRBool(true)))
	assert.True(t, Truthy(IRString("2024-01-01T00:00:00Z")))
	assert.True(t, Truthy(IRInt(1)))
	assert.True(t, Truthy(IRObject{}))
	assert.True(t, Truthy(IRArray{}))
}
