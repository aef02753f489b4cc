package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
)

type fakeFactory struct {
	err error
}

func (f fakeFactory) NewNoiseSuppression(context.Context, Params) (noisesuppression.NoiseSuppression, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &noisesuppression.Dummy{}, nil
}

func (f fakeFactory) NewSampleProcessor(context.Context, Params) (noisesuppression.SampleProcessor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &noisesuppression.Dummy{}, nil
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	Register("test-high", 1000, fakeFactory{})
	Register("test-low", -2000, fakeFactory{})
	names := Names()
	require.Contains(t, names, PassthroughName)
	assert.Equal(t, "test-high", names[0])
	assert.Equal(t, "test-low", names[len(names)-1])
	assert.Len(t, Factories(), len(names))

	assert.Panics(t, func() {
		Register("test-high", 1, fakeFactory{})
	})

	ns, err := New(ctx, PassthroughName, Params{Channels: 2, SampleRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, uint(8), ns.ChunkSize())

	sp, err := NewSampleProcessor(ctx, "test-low", Params{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, sp.ProcessSample(0.5, noisesuppression.Config{}))

	_, err = New(ctx, "no-such-backend", Params{})
	assert.Error(t, err)

	_, name, err := NewAuto(ctx, Params{Channels: 1, SampleRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, "test-high", name)
}

func TestNewFirst(t *testing.T) {
	ctx := context.Background()

	errA, errB := fmt.Errorf("a is broken"), fmt.Errorf("b is broken")
	_, _, err := newFirst(ctx, []factoryWithPriority{
		{Name: "a", Factory: fakeFactory{err: errA}},
		{Name: "b", Factory: fakeFactory{err: errB}},
	}, Params{})
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	_, name, err := newFirst(ctx, []factoryWithPriority{
		{Name: "a", Factory: fakeFactory{err: errA}},
		{Name: "b", Factory: fakeFactory{}},
	}, Params{})
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	_, _, err = newFirst(ctx, nil, Params{})
	assert.Error(t, err)
}
