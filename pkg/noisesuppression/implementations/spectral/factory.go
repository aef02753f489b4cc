package spectral

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/registry"
)

const (
	Name                = "spectral"
	ReverbReductionName = "spectral-dereverb"
)

// Factory creates engines with a fixed tuning.
type Factory struct {
	Params func() Params
}

var _ registry.Factory = (*Factory)(nil)

func geometry(params registry.Params) (int, int) {
	windowSize, hopSize := params.WindowSize, params.HopSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	if hopSize == 0 {
		hopSize = max(min(DefaultHopSize, windowSize/4), 1)
	}
	return windowSize, hopSize
}

func (f *Factory) NewNoiseSuppression(
	_ context.Context,
	params registry.Params,
) (noisesuppression.NoiseSuppression, error) {
	windowSize, hopSize := geometry(params)
	return NewSuppressor(
		params.Channels,
		params.SampleRate,
		windowSize, hopSize,
		f.Params(),
		params.Config,
		params.NewHint,
	)
}

func (f *Factory) NewSampleProcessor(
	_ context.Context,
	params registry.Params,
) (noisesuppression.SampleProcessor, error) {
	windowSize, hopSize := geometry(params)
	if windowSize < MinWindowSize || hopSize < 1 || hopSize > windowSize {
		return nil, fmt.Errorf("invalid geometry: window:%d hop:%d", windowSize, hopSize)
	}
	p := f.Params()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return NewWithParams(windowSize, hopSize, p), nil
}

func init() {
	registry.Register(Name, 100, &Factory{Params: DefaultParams})
	registry.Register(ReverbReductionName, 50, &Factory{Params: ReverbReductionParams})
}
