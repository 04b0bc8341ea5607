package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/testutil"
)

func TestBoolEncoder(t *testing.T) {
	assert.Equal(t, ir.IRBool(true), BoolEncoder(true))
	assert.Equal(t, ir.IRBool(false), BoolEncoder(false))
}

func TestTimestampEncoder(t *testing.T) {
	clock := testutil.NewSteppingClock(time.Second)
	enc := TimestampEncoder(clock)

	assert.Equal(t, ir.IRNull{}, enc(false))
	assert.Equal(t, int64(0), clock.Readings(), "not-deleted must not read the clock")

	assert.Equal(t, ir.IRString("2024-01-01T00:00:00Z"), enc(true))
	assert.Equal(t, ir.IRString("2024-01-01T00:00:01Z"), enc(true))
}

func TestEncoderByName(t *testing.T) {
	enc, err := EncoderByName("boolean", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(true), enc(true))

	enc, err = EncoderByName("timestamp", testutil.NewFixedClock())
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("2024-01-01T00:00:00Z"), enc(true))

	_, err = EncoderByName("epoch", nil)
	require.Error(t, err)
	assert.True(t, IsConfigError(err, ErrCodeUnknownEncoder))
}

func TestPolicy_IsDeleted(t *testing.T) {
	boolPolicy := Default()
	tsPolicy := Policy{Field: "deletedAt", Encode: TimestampEncoder(testutil.NewFixedClock())}

	tests := []struct {
		name   string
		policy Policy
		value  ir.IRValue
		want   bool
	}{
		{"bool true", boolPolicy, ir.IRBool(true), true},
		{"bool false", boolPolicy, ir.IRBool(false), false},
		{"bool absent", boolPolicy, nil, false},
		{"bool null", boolPolicy, ir.IRNull{}, false},
		{"timestamp set", tsPolicy, ir.IRString("2024-01-01T00:00:00Z"), true},
		{"timestamp null", tsPolicy, ir.IRNull{}, false},
		{"timestamp absent", tsPolicy, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.policy
			assert.Equal(t, tt.want, p.IsDeleted(tt.value))
		})
	}
}

func TestPolicy_DefaultExclude(t *testing.T) {
	p := Default()

	t.Run("adds marker to empty object", func(t *testing.T) {
		assert.Equal(t, ir.IRObject{"deleted": ir.IRBool(false)}, p.DefaultExclude(nil))
	})

	t.Run("keeps existing keys", func(t *testing.T) {
		got := p.DefaultExclude(ir.IRObject{"id": ir.IRInt(1)})
		assert.Equal(t, ir.IRObject{"id": ir.IRInt(1), "deleted": ir.IRBool(false)}, got)
	})

	t.Run("never overwrites explicit marker", func(t *testing.T) {
		got := p.DefaultExclude(ir.IRObject{"deleted": ir.IRBool(true)})
		assert.Equal(t, ir.IRObject{"deleted": ir.IRBool(true)}, got)

		got = p.DefaultExclude(ir.IRObject{"deleted": ir.Obj(ir.O("not", ir.IRBool(false)))})
		assert.Equal(t, ir.IRObject{"deleted": ir.Obj(ir.O("not", ir.IRBool(false)))}, got)
	})

	t.Run("undefined marker counts as absent", func(t *testing.T) {
		got := p.DefaultExclude(ir.IRObject{"deleted": nil})
		assert.Equal(t, ir.IRObject{"deleted": ir.IRBool(false)}, got)
	})

	t.Run("null marker counts as absent", func(t *testing.T) {
		got := p.DefaultExclude(ir.IRObject{"postId": ir.IRInt(1), "deleted": ir.IRNull{}})
		assert.Equal(t, ir.IRObject{"postId": ir.IRInt(1), "deleted": ir.IRBool(false)}, got)
		assert.False(t, p.HasMarker(ir.IRObject{"deleted": ir.IRNull{}}))
		assert.True(t, p.HasMarker(ir.IRObject{"deleted": ir.IRBool(false)}))
	})

	t.Run("is idempotent", func(t *testing.T) {
		once := p.DefaultExclude(ir.IRObject{"id": ir.IRInt(1)})
		twice := p.DefaultExclude(once.Clone())
		assert.True(t, ir.Equal(once, twice))
	})
}
