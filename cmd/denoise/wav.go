package main

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Track is a decoded WAV file with samples in [-1, 1].
type Track struct {
	SampleRate int
	Channels   int
	BitDepth   int
	// Samples are interleaved.
	Samples []float64
}

func (t *Track) Frames() int {
	return len(t.Samples) / t.Channels
}

// Channel returns a copy of the samples of one channel.
func (t *Track) Channel(ch int) []float64 {
	result := make([]float64, 0, t.Frames())
	for i := ch; i < len(t.Samples); i += t.Channels {
		result = append(result, t.Samples[i])
	}
	return result
}

func ReadWAV(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("'%s' is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("'%s' has no channels", path)
	}

	bitDepth := int(d.BitDepth)
	scale := math.Ldexp(1, bitDepth-1)
	track := &Track{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Samples:    make([]float64, len(buf.Data)),
	}
	for i, v := range buf.Data {
		track.Samples[i] = float64(v) / scale
	}
	// a partial trailing frame is dropped
	track.Samples = track.Samples[:track.Frames()*track.Channels]
	return track, nil
}

func WriteWAV(path string, track *Track) (_err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close '%s': %w", path, err)
		}
	}()

	scale := math.Ldexp(1, track.BitDepth-1)
	data := make([]int, len(track.Samples))
	for i, v := range track.Samples {
		data[i] = int(math.Round(min(max(v*scale, -scale), scale-1)))
	}
	e := wav.NewEncoder(f, track.SampleRate, track.BitDepth, track.Channels, 1)
	err = e.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: track.Channels,
			SampleRate:  track.SampleRate,
		},
		Data:           data,
		SourceBitDepth: track.BitDepth,
	})
	if err != nil {
		return fmt.Errorf("unable to encode '%s': %w", path, err)
	}
	if err := e.Close(); err != nil {
		return fmt.Errorf("unable to finalize '%s': %w", path, err)
	}
	return nil
}
