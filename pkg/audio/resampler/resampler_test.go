package resampler

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
)

func TestResampler(t *testing.T) {
	t.Run("Identity_S16LE_Mono_44100", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatS16LE,
		}
		// S16 is 2 bytes per sample. 100 samples = 200 bytes.
		data := make([]byte, 200)
		for i := 0; i < 100; i++ {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(i*100))
		}
		reader := bytes.NewReader(data)
		r, err := NewResampler(inFmt, reader, inFmt)
		require.NoError(t, err)

		out := make([]byte, 200)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 200, n)
		assert.Equal(t, data, out)
	})

	t.Run("Conversion_U8_to_Float32LE_Mono", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatFloat32LE,
		}
		// 128 in U8 is approx 0.0 in Float32
		data := []byte{0, 128, 255}
		reader := bytes.NewReader(data)
		r, err := NewResampler(inFmt, reader, outFmt)
		require.NoError(t, err)

		out := make([]byte, 3*4)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 12, n)

		v0 := math.Float32frombits(binary.LittleEndian.Uint32(out[0:4]))
		v1 := math.Float32frombits(binary.LittleEndian.Uint32(out[4:8]))
		v2 := math.Float32frombits(binary.LittleEndian.Uint32(out[8:12]))

		assert.InDelta(t, -1.0, v0, 0.01)
		assert.InDelta(t, 0.0, v1, 0.01)
		assert.InDelta(t, 1.0, v2, 0.01)
	})

	t.Run("Resampling_44100_to_22050", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   1,
			SampleRate: 22050,
			PCMFormat:  audio.PCMFormatU8,
		}
		data := make([]byte, 100)
		for i := range data {
			data[i] = byte(i)
		}
		reader := bytes.NewReader(data)
		r, err := NewResampler(inFmt, reader, outFmt)
		require.NoError(t, err)

		out := make([]byte, 50)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 50, n)
		// Basic check: should take roughly every second sample
		assert.Equal(t, data[0], out[0])
		assert.Equal(t, data[2], out[1])
	})

	t.Run("Channels_Mono_to_Stereo", func(t *testing.T) {
		inFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   2,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatU8,
		}
		data := []byte{10, 20, 30}
		reader := bytes.NewReader(data)
		r, err := NewResampler(inFmt, reader, outFmt)
		require.NoError(t, err)

		out := make([]byte, 6)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 6, n)
		assert.Equal(t, []byte{10, 10, 20, 20, 30, 30}, out)
	})

	t.Run("Channels_Stereo_to_Mono", func(t *testing.T) {
		inFmt := Format{
			Channels:   2,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatU8,
		}
		outFmt := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  audio.PCMFormatU8,
		}
		data := []byte{100, 200, 50, 150}
		reader := bytes.NewReader(data)
		r, err := NewResampler(inFmt, reader, outFmt)
		require.NoError(t, err)

		out := make([]byte, 2)
		n, err := r.Read(out)
		assert.NoError(t, err)
		assert.Equal(t, 2, n)
		// (100+200)/2 = 150 -> approx (scaled back to U8)
		assert.Equal(t, byte(150), out[0])
		assert.Equal(t, byte(100), out[1]) // (50+150)/2 = 100
	})

	t.Run("OneByteReads_S16LE_Stereo_to_Float32LE", func(t *testing.T) {
		inFmt := Format{
			Channels:   2,
			SampleRate: 16000,
			PCMFormat:  audio.PCMFormatS16LE,
		}
		outFmt := Format{
			Channels:   2,
			SampleRate: 16000,
			PCMFormat:  audio.PCMFormatFloat32LE,
		}
		data := make([]byte, 4*64)
		for i := 0; i < 128; i++ {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(i*256-16384)))
		}
		r, err := NewResampler(inFmt, iotest.OneByteReader(bytes.NewReader(data)), outFmt)
		require.NoError(t, err)

		out, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Len(t, out, 128*4)
		for i := 0; i < 128; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
			require.Equal(t, float32(i*256-16384)/32768, v, "i:%d", i)
		}
	})

	t.Run("Upsampling_Stereo_keeps_channels", func(t *testing.T) {
		inFmt := Format{
			Channels:   2,
			SampleRate: 8000,
			PCMFormat:  audio.PCMFormatU8,
		}
		outFmt := inFmt
		outFmt.SampleRate = 16000
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{10, 20, 30, 40}), outFmt)
		require.NoError(t, err)

		out, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte{10, 20, 10, 20, 30, 40, 30, 40}, out)
	})

	t.Run("InvalidFormats", func(t *testing.T) {
		_, err := NewResampler(Format{Channels: 2, SampleRate: 8000, PCMFormat: audio.PCMFormatU8}, nil, Format{Channels: 3, SampleRate: 8000, PCMFormat: audio.PCMFormatU8})
		assert.Error(t, err)
		_, err = NewResampler(Format{Channels: 1, SampleRate: 8000}, nil, Format{Channels: 1, SampleRate: 8000, PCMFormat: audio.PCMFormatU8})
		assert.Error(t, err)
	})
}
