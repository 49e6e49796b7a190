package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/assetgraph/internal/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modeProbe struct {
	panicOn Mode
}

func (m modeProbe) Setup(ctx context.Context, pc *Context, in Inputs) (Outputs, error) {
	if m.panicOn == ModeSetup {
		panic("boom")
	}
	return Outputs{"mode": asset.Group{asset.NewRecord("setup", "")}}, nil
}

func (m modeProbe) Run(ctx context.Context, pc *Context, in Inputs) (Outputs, error) {
	if m.panicOn == ModeRun {
		panic(errors.New("kaboom"))
	}
	return Outputs{"mode": asset.Group{asset.NewRecord("run", "")}}, nil
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches on mode", func(t *testing.T) {
		out, err := Invoke(ctx, modeProbe{}, &Context{Mode: ModeSetup}, nil)
		require.NoError(t, err)
		assert.Equal(t, "setup", out["mode"][0].Path)

		out, err = Invoke(ctx, modeProbe{}, &Context{Mode: ModeRun}, nil)
		require.NoError(t, err)
		assert.Equal(t, "run", out["mode"][0].Path)
	})

	t.Run("recovers panics", func(t *testing.T) {
		out, err := Invoke(ctx, modeProbe{panicOn: ModeRun}, &Context{Mode: ModeRun}, nil)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrPanic)
		assert.ErrorContains(t, err, "kaboom")
	})
}

func TestInputs(t *testing.T) {
	a := asset.NewRecord("/a", "")
	b := asset.NewRecord("/b", "")
	in := Inputs{"z": {a}, "m": {b}, "nil": nil}

	assert.NotNil(t, in.Get("missing"))
	assert.NotNil(t, in.Get("nil"))
	assert.Equal(t, []string{"/b", "/a"}, in.All().Paths())
}

func TestPerPlatform(t *testing.T) {
	p := PerPlatform[string]{"default": "d", "iOS": "i"}

	v, ok := p.For("ios")
	require.True(t, ok)
	assert.Equal(t, "i", v)

	v, ok = p.For("android")
	require.True(t, ok)
	assert.Equal(t, "d", v)

	_, ok = PerPlatform[string]{"ios": "i"}.For("android")
	assert.False(t, ok)
}

func TestNodeError(t *testing.T) {
	err := &NodeError{NodeID: "id", Node: "Filter", Err: ErrInvalidConfig}
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, `node "Filter": invalid configuration`, err.Error())
}
