package registry

import (
	"context"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
)

// PassthroughName is the backend that leaves the audio untouched.
const PassthroughName = "passthrough"

type passthroughFactory struct{}

func (passthroughFactory) NewNoiseSuppression(_ context.Context, params Params) (noisesuppression.NoiseSuppression, error) {
	return noisesuppression.NewDummy(audio.EncodingPCM{
		PCMFormat:  pcm.NativeFloat32(),
		SampleRate: params.SampleRate,
	}, params.Channels), nil
}

func (passthroughFactory) NewSampleProcessor(context.Context, Params) (noisesuppression.SampleProcessor, error) {
	return &noisesuppression.Dummy{}, nil
}

func init() {
	Register(PassthroughName, -1000, passthroughFactory{})
}
