//go:build rnnoise
// +build rnnoise

package rnnoise

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/registry"
)

type factory struct{}

func checkSampleRate(params registry.Params) error {
	if params.SampleRate != 0 && params.SampleRate != SampleRate {
		return fmt.Errorf("rnnoise supports only %d Hz, got %d", SampleRate, params.SampleRate)
	}
	return nil
}

func (factory) NewNoiseSuppression(
	_ context.Context,
	params registry.Params,
) (noisesuppression.NoiseSuppression, error) {
	if err := checkSampleRate(params); err != nil {
		return nil, err
	}
	return New(params.Channels)
}

func (factory) NewSampleProcessor(
	_ context.Context,
	params registry.Params,
) (noisesuppression.SampleProcessor, error) {
	if err := checkSampleRate(params); err != nil {
		return nil, err
	}
	return NewProcessor(), nil
}

func init() {
	registry.Register(Name, 10, factory{})
}
