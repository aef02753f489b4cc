package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/audio/resampler"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	_ "github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/rnnoise"
	_ "github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/spectral"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/registry"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppressionstream"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	isS16Flag := pflag.Bool("s16", false, "the files are signed 16 bit little-endian instead of host-endian float32")
	channels := pflag.Uint("channels", 1, "")
	sampleRate := pflag.Uint("sample-rate", 48000, "the sample rate of the files")
	backendSampleRate := pflag.Uint("backend-sample-rate", 0, "resample to this rate for the backend, the files' rate if zero")
	backend := pflag.String("backend", "", "the noise suppression backend, the best available one if empty; one of: "+fmt.Sprint(registry.Names()))
	amount := pflag.Float64("amount", 1, "")
	sensitivity := pflag.Float64("sensitivity", 0.3, "")
	tone := pflag.Float64("tone", 0.5, "")
	windowSize := pflag.Int("window", 0, "the analysis window size in samples, the backend default if zero")
	hopSize := pflag.Int("hop", 0, "the hop size in samples, the backend default if zero")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input-file> <output-file>"))
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	if *backendSampleRate == 0 {
		*backendSampleRate = *sampleRate
	}
	cfg := noisesuppression.DefaultConfig(float64(*backendSampleRate))
	cfg.Amount = *amount
	cfg.Sensitivity = *sensitivity
	cfg.Tone = *tone
	params := registry.Params{
		Channels:   audio.Channel(*channels),
		SampleRate: audio.SampleRate(*backendSampleRate),
		WindowSize: *windowSize,
		HopSize:    *hopSize,
		Config:     cfg,
	}

	var ns noisesuppression.NoiseSuppression
	var err error
	if *backend == "" {
		var name string
		ns, name, err = registry.NewAuto(ctx, params)
		logger.Infof(ctx, "using backend '%s'", name)
	} else {
		ns, err = registry.New(ctx, *backend, params)
	}
	assertNoError(err)
	defer ns.Close()

	encoding, err := ns.Encoding(ctx)
	assertNoError(err)
	encPCM, ok := encoding.(audio.EncodingPCM)
	if !ok {
		panic(fmt.Errorf("unsupported encoding type: %T", encoding))
	}
	fileFormat := resampler.Format{
		Channels:   audio.Channel(*channels),
		SampleRate: audio.SampleRate(*sampleRate),
		PCMFormat:  pcm.NativeFloat32(),
	}
	if *isS16Flag {
		fileFormat.PCMFormat = audio.PCMFormatS16LE
	}
	backendFormat := resampler.Format{
		Channels:   audio.Channel(*channels),
		SampleRate: encPCM.SampleRate,
		PCMFormat:  encPCM.PCMFormat,
	}

	inputFile, err := os.Open(pflag.Arg(0))
	assertNoError(err)
	defer inputFile.Close()
	inputCounter := datacounter.NewReaderCounter(bufio.NewReader(inputFile))
	input, err := resampler.NewResampler(fileFormat, inputCounter, backendFormat)
	assertNoError(err)

	stream, err := noisesuppressionstream.NewNoiseSuppressionStream(ctx, input, ns, 1<<20, 1<<20)
	assertNoError(err)

	output, err := resampler.NewResampler(backendFormat, stream, fileFormat)
	assertNoError(err)

	outputFile, err := os.Create(pflag.Arg(1))
	assertNoError(err)
	outputCounter := datacounter.NewWriterCounter(outputFile)

	progressCtx, cancelProgress := context.WithCancel(ctx)
	observability.Go(progressCtx, func(ctx context.Context) {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "read: %d, written: %d, speech probability: %.2f", inputCounter.Count(), outputCounter.Count(), stream.SpeechProbability())
			}
		}
	})

	_, err = io.Copy(outputCounter, output)
	cancelProgress()
	assertNoError(err)
	assertNoError(outputFile.Close())
	logger.Infof(ctx, "read %d bytes, wrote %d bytes", inputCounter.Count(), outputCounter.Count())
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
