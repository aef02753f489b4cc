package noisesuppressionstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
)

// NoiseSuppressionStream is an io.Reader of the denoised version of the
// input stream. The output is delayed by the latency of the suppressor
// and has the same length as the input: the tail still inside the
// suppressor at EOF is dropped.
type NoiseSuppressionStream struct {
	noisesuppression.NoiseSuppression
	encoding           audio.Encoding
	channels           audio.Channel
	chunkSize          uint
	readSize           int
	inputBufferLocker  sync.Mutex
	inputBuffer        *circular.Buffer
	inputEOF           bool
	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	outputEOF          bool
	resultError        error
	readCtx            context.Context
	speechProbability  float64

	readProgressedCh                   chan struct{}
	noiseSuppressionInputProgressedCh  chan struct{}
	noiseSuppressionOutputProgressedCh chan struct{}
	outputProgressedCh                 chan struct{}
}

var _ io.Reader = (*NoiseSuppressionStream)(nil)

func NewNoiseSuppressionStream(
	ctx context.Context,
	input io.Reader,
	noiseSuppression noisesuppression.NoiseSuppression,
	inputBufferSize uint,
	outputBufferSize uint,
) (*NoiseSuppressionStream, error) {
	encoding, err := noiseSuppression.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding of the noise suppression: %w", err)
	}
	channels, err := noiseSuppression.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels of the noise suppression: %w", err)
	}
	if encoding == nil || channels == 0 {
		return nil, fmt.Errorf("the noise suppression has no encoding (%v) or no channels (%d)", encoding, channels)
	}

	chunkSize := noiseSuppression.ChunkSize()
	if chunkSize == 0 {
		chunkSize = encoding.BytesPerSample() * uint(channels)
	}
	if inputBufferSize < chunkSize || outputBufferSize < chunkSize {
		return nil, fmt.Errorf("the buffers (%d, %d) must fit at least one chunk of %d bytes", inputBufferSize, outputBufferSize, chunkSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &NoiseSuppressionStream{
		NoiseSuppression: noiseSuppression,
		encoding:         encoding,
		channels:         channels,
		chunkSize:        chunkSize,
		readSize:         int(min(inputBufferSize, 65536)),
		inputBuffer:      circular.NewBuffer(int(inputBufferSize)),
		outputBuffer:     circular.NewBuffer(int(outputBufferSize)),
		readCtx:          ctx,

		readProgressedCh:                   make(chan struct{}),
		noiseSuppressionInputProgressedCh:  make(chan struct{}),
		noiseSuppressionOutputProgressedCh: make(chan struct{}),
		outputProgressedCh:                 make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		err := s.readerLoop(ctx, input)
		s.inputBufferLocker.Lock()
		defer s.inputBufferLocker.Unlock()
		s.inputEOF = true
		s.notifyReadProgressed(ctx)
		if err != nil {
			cancelFunc()
			s.setError(fmt.Errorf("got an error from the reader loop: %w", err))
		}
	})
	observability.Go(ctx, func(ctx context.Context) {
		defer cancelFunc()
		err := s.noiseSuppressionLoop(ctx)
		if err != nil {
			s.setError(fmt.Errorf("got an error from the noise suppressor loop: %w", err))
		}
		s.outputBufferLocker.Lock()
		defer s.outputBufferLocker.Unlock()
		s.outputEOF = true
		s.notifyNoiseSuppressionOutputProgressed(ctx)
	})
	return s, nil
}

func (s *NoiseSuppressionStream) setError(err error) {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	if s.resultError == nil {
		s.resultError = err
	}
}

// SpeechProbability returns the speech probability reported for the last
// processed chunk.
func (s *NoiseSuppressionStream) SpeechProbability() float64 {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	return s.speechProbability
}

func (s *NoiseSuppressionStream) readerLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop %v", _err) }()

	readBuf := make([]byte, s.readSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Tracef(ctx, "readerLoop: Read()")
		n, err := input.Read(readBuf)
		logger.Tracef(ctx, "/readerLoop: Read(): %v %v", n, err)
		if n < 0 {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if n > 0 {
			if err := s.pushInput(ctx, readBuf[:n]); err != nil {
				return err
			}
		}
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("unable to read the input: %w", err)
		}
	}
}

func (s *NoiseSuppressionStream) pushInput(ctx context.Context, data []byte) error {
	s.inputBufferLocker.Lock()
	defer s.inputBufferLocker.Unlock()
	for len(data) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w, err := s.inputBuffer.Write(data)
		if w < 0 || w > len(data) {
			return fmt.Errorf("invalid written count: %d (of %d)", w, len(data))
		}
		data = data[w:]
		switch {
		case errors.Is(err, circular.ErrNoSpace):
			if w > 0 {
				s.notifyReadProgressed(ctx)
			}
			s.waitForNoiseSuppressionInputProgressed(ctx)
		case err != nil:
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
	}
	s.notifyReadProgressed(ctx)
	return nil
}

func (s *NoiseSuppressionStream) notifyReadProgressed(ctx context.Context) {
	logger.Tracef(ctx, "closing readProgressedCh")
	var oldCh chan struct{}
	oldCh, s.readProgressedCh = s.readProgressedCh, make(chan struct{})
	close(oldCh)
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionInputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForNoiseSuppressionInputProgressed")
	defer logger.Tracef(ctx, "/waitForNoiseSuppressionInputProgressed")

	ch := s.noiseSuppressionInputProgressedCh
	s.inputBufferLocker.Unlock()
	defer s.inputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForNoiseSuppressionInputProgressed: received an event")
	}
}

// readChunk fills buf from the input buffer and returns the amount of
// bytes received; it is short only at the end of the input.
func (s *NoiseSuppressionStream) readChunk(ctx context.Context, buf []byte) (int, error) {
	receivedCount := 0
	for {
		var (
			waitCh chan struct{}
			eof    bool
			n      int
		)
		if err := func() (err error) {
			s.inputBufferLocker.Lock()
			defer s.inputBufferLocker.Unlock()
			n, err = s.inputBuffer.Read(buf[receivedCount:])
			waitCh, eof = s.readProgressedCh, s.inputEOF
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("unable to read from the circular buffer: %w", err)
			}
			if n < 0 {
				return fmt.Errorf("received a negative count: %d", n)
			}
			receivedCount += n
			logger.Tracef(ctx, "closing noiseSuppressionInputProgressedCh")
			var oldCh chan struct{}
			oldCh, s.noiseSuppressionInputProgressedCh = s.noiseSuppressionInputProgressedCh, make(chan struct{})
			close(oldCh)
			return nil
		}(); err != nil {
			return receivedCount, err
		}
		if receivedCount >= len(buf) || (eof && n == 0) {
			return receivedCount, nil
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return receivedCount, ctx.Err()
		case <-waitCh:
			logger.Tracef(ctx, "noiseSuppressionLoop: received a read event")
		}
	}
}

func (s *NoiseSuppressionStream) noiseSuppressionLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "noiseSuppressionLoop")
	defer func() { logger.Tracef(ctx, "/noiseSuppressionLoop: %v", _err) }()

	logger.Debugf(ctx, "chunkSize: %d", s.chunkSize)
	inputBuf := make([]byte, s.chunkSize)
	outputBuf := make([]byte, s.chunkSize)
	for {
		receivedCount, err := s.readChunk(ctx, inputBuf)
		if err != nil {
			return err
		}
		if receivedCount == 0 {
			return nil
		}
		// the last chunk is padded with silence
		clear(inputBuf[receivedCount:])

		logger.Tracef(ctx, "s.NoiseSuppression.SuppressNoise")
		speechProb, err := s.NoiseSuppression.SuppressNoise(ctx, inputBuf, outputBuf)
		logger.Tracef(ctx, "/s.NoiseSuppression.SuppressNoise: %v %v", speechProb, err)
		if err != nil {
			return fmt.Errorf("unable to noise-suppress: %w", err)
		}

		if err := s.pushOutput(ctx, outputBuf[:receivedCount], speechProb); err != nil {
			return err
		}
		if receivedCount < len(inputBuf) {
			return nil
		}
	}
}

func (s *NoiseSuppressionStream) pushOutput(ctx context.Context, data []byte, speechProb float64) error {
	logger.Tracef(ctx, "s.outputBufferLocker.Lock()")
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	logger.Tracef(ctx, "/s.outputBufferLocker.Lock()")

	s.speechProbability = speechProb
	for len(data) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w, err := s.outputBuffer.Write(data)
		if w < 0 || w > len(data) {
			return fmt.Errorf("invalid written count: %d (of %d)", w, len(data))
		}
		data = data[w:]
		switch {
		case errors.Is(err, circular.ErrNoSpace):
			if w > 0 {
				s.notifyNoiseSuppressionOutputProgressed(ctx)
			}
			s.waitForOutput(ctx)
		case err != nil:
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
	}
	s.notifyNoiseSuppressionOutputProgressed(ctx)
	return nil
}

func (s *NoiseSuppressionStream) notifyNoiseSuppressionOutputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "closing noiseSuppressionOutputProgressedCh")
	var oldCh chan struct{}
	oldCh, s.noiseSuppressionOutputProgressedCh = s.noiseSuppressionOutputProgressedCh, make(chan struct{})
	close(oldCh)
}

func (s *NoiseSuppressionStream) waitForOutput(ctx context.Context) {
	logger.Tracef(ctx, "waitForOutput")
	defer logger.Tracef(ctx, "/waitForOutput")

	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForOutput: received an event")
	}
}

func (s *NoiseSuppressionStream) Read(pcm []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(pcm))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(pcm), _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()

	for {
		if s.resultError != nil {
			return 0, s.resultError
		}
		logger.Tracef(s.readCtx, "Read: s.outputBuffer.Read()")
		n, err := s.outputBuffer.Read(pcm)
		logger.Tracef(s.readCtx, "/Read: s.outputBuffer.Read(): %v %v", n, err)
		if n > 0 {
			var oldCh chan struct{}
			oldCh, s.outputProgressedCh = s.outputProgressedCh, make(chan struct{})
			close(oldCh)
		}
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, io.EOF) {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
		if s.outputEOF {
			return 0, io.EOF
		}
		if s.readCtx.Err() != nil {
			return 0, s.readCtx.Err()
		}
		s.waitForNoiseSuppressionOutputProgressed(s.readCtx)
	}
}

func (s *NoiseSuppressionStream) waitForNoiseSuppressionOutputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForNoiseSuppressionOutputProgressed")
	defer logger.Tracef(ctx, "/waitForNoiseSuppressionOutputProgressed")

	ch := s.noiseSuppressionOutputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForNoiseSuppressionOutputProgressed: received an event")
	}
}
