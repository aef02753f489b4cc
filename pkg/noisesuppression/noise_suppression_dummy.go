package noisesuppression

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

// Dummy passes the audio through untouched.
type Dummy struct {
	EncodingValue audio.Encoding
	ChannelsValue audio.Channel
}

var _ NoiseSuppression = (*Dummy)(nil)
var _ SampleProcessor = (*Dummy)(nil)

func NewDummy(
	encoding audio.Encoding,
	channels audio.Channel,
) *Dummy {
	return &Dummy{
		EncodingValue: encoding,
		ChannelsValue: channels,
	}
}

func (s *Dummy) Close() error {
	return nil
}

func (s *Dummy) Encoding(context.Context) (audio.Encoding, error) {
	return s.EncodingValue, nil
}

func (s *Dummy) Channels(context.Context) (audio.Channel, error) {
	return s.ChannelsValue, nil
}

// ChunkSize is one sample of every channel.
func (s *Dummy) ChunkSize() uint {
	if s.EncodingValue == nil {
		return 0
	}
	return s.EncodingValue.BytesPerSample() * uint(s.ChannelsValue)
}

func (*Dummy) SuppressNoise(_ context.Context, input []byte, outputVoice []byte) (float64, error) {
	if len(input) != len(outputVoice) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(outputVoice))
	}
	copy(outputVoice, input)
	return 1, nil
}

func (*Dummy) ProcessSample(x float64, _ Config) float64 {
	return x
}

func (*Dummy) Reset() {}

func (*Dummy) Latency() int {
	return 0
}
