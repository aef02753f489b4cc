package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"slices"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/voicerestore/pkg/audio"
	"github.com/xaionaro-go/voicerestore/pkg/audio/pcm"
	"github.com/xaionaro-go/voicerestore/pkg/metrics"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression"
	_ "github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/rnnoise"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/implementations/spectral"
	"github.com/xaionaro-go/voicerestore/pkg/noisesuppression/registry"
	"github.com/xaionaro-go/voicerestore/pkg/profile"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence/implementations/envelope"
	"github.com/xaionaro-go/voicerestore/pkg/speechconfidence/implementations/fvad"
	"gopkg.in/yaml.v3"
)

const (
	hintEnvelope = "envelope"
	hintFVAD     = "fvad"
	hintNone     = "none"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML config file")
	backend := pflag.String("backend", "", "the noise suppression backend; one of: "+fmt.Sprint(registry.Names()))
	amount := pflag.Float64("amount", 0, "reduction amount, 0..1")
	sensitivity := pflag.Float64("sensitivity", 0, "detection sensitivity, 0..1")
	tone := pflag.Float64("tone", 0, "spectral tilt of the reduction, 0..1 (0.5 is neutral)")
	windowSize := pflag.Int("window", 0, "the analysis window size in samples")
	hopSize := pflag.Int("hop", 0, "the hop size in samples")
	hint := pflag.String("hint", "", "the speech confidence hint: envelope, fvad or none")
	report := pflag.Bool("report", false, "print the noise profile of the input and the output to stdout")
	metricsAddr := pflag.String("metrics-listen-addr", "", "an address to serve Prometheus metrics at /metrics")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	if pflag.NArg() != 2 {
		panic(fmt.Errorf("expected exactly two arguments: <input.wav> <output.wav>"))
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

	cfg, err := LoadConfig(*configPath)
	assertNoError(err)
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "amount":
			cfg.Amount = *amount
		case "sensitivity":
			cfg.Sensitivity = *sensitivity
		case "tone":
			cfg.Tone = *tone
		case "window":
			cfg.WindowSize = *windowSize
		case "hop":
			cfg.HopSize = *hopSize
		case "hint":
			cfg.Hint = *hint
		}
	})
	logger.Debugf(ctx, "config: %#+v", cfg)

	collector := metrics.New(cfg.Backend)
	if *metricsAddr != "" {
		assertNoError(collector.Register(prometheus.DefaultRegisterer))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*metricsAddr, mux)) })
	}

	track, err := ReadWAV(pflag.Arg(0))
	assertNoError(err)
	logger.Infof(ctx, "%s: %d Hz, %d channels, %d bits, %d frames", pflag.Arg(0), track.SampleRate, track.Channels, track.BitDepth, track.Frames())

	ns, err := newNoiseSuppression(ctx, cfg, track, collector)
	assertNoError(err)
	defer ns.Close()

	output, err := process(ctx, ns, track)
	assertNoError(err)

	if *report {
		assertNoError(printReport(track, output))
	}
	assertNoError(WriteWAV(pflag.Arg(1), output))
}

func newHintFactory(cfg Config) (func(audio.SampleRate) (speechconfidence.Estimator, error), error) {
	switch cfg.Hint {
	case hintEnvelope:
		return func(sampleRate audio.SampleRate) (speechconfidence.Estimator, error) {
			return envelope.New(float64(sampleRate))
		}, nil
	case hintFVAD:
		return func(sampleRate audio.SampleRate) (speechconfidence.Estimator, error) {
			return fvad.New(int(sampleRate), cfg.FVADMode)
		}, nil
	case hintNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown hint '%s'", cfg.Hint)
}

func newNoiseSuppression(
	ctx context.Context,
	cfg Config,
	track *Track,
	collector *metrics.Collector,
) (noisesuppression.NoiseSuppression, error) {
	newHint, err := newHintFactory(cfg)
	if err != nil {
		return nil, err
	}
	nsCfg := noisesuppression.DefaultConfig(float64(track.SampleRate))
	nsCfg.Amount = cfg.Amount
	nsCfg.Sensitivity = cfg.Sensitivity
	nsCfg.Tone = cfg.Tone

	switch cfg.Backend {
	case spectral.Name, spectral.ReverbReductionName:
		params, err := cfg.SpectralParams(cfg.Backend)
		if err != nil {
			return nil, err
		}
		windowSize, hopSize := cfg.WindowSize, cfg.HopSize
		if windowSize == 0 {
			windowSize = spectral.DefaultWindowSize
		}
		if hopSize == 0 {
			hopSize = max(min(spectral.DefaultHopSize, windowSize/4), 1)
		}
		s, err := spectral.NewSuppressor(
			audio.Channel(track.Channels),
			audio.SampleRate(track.SampleRate),
			windowSize, hopSize,
			params, nsCfg, newHint,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the '%s' backend: %w", cfg.Backend, err)
		}
		if collector != nil {
			s.Observer = collector
		}
		return s, nil
	}

	params := registry.Params{
		Channels:   audio.Channel(track.Channels),
		SampleRate: audio.SampleRate(track.SampleRate),
		WindowSize: cfg.WindowSize,
		HopSize:    cfg.HopSize,
		Config:     nsCfg,
		NewHint:    newHint,
	}
	if cfg.Backend == "" {
		ns, name, err := registry.NewAuto(ctx, params)
		logger.Infof(ctx, "using backend '%s'", name)
		return ns, err
	}
	return registry.New(ctx, cfg.Backend, params)
}

type latencyReporter interface {
	Latency() int
}

// process denoises the whole track and compensates the latency of the
// backend, so the output is aligned with the input.
func process(
	ctx context.Context,
	ns noisesuppression.NoiseSuppression,
	track *Track,
) (*Track, error) {
	encoding, err := ns.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding: %w", err)
	}
	encPCM, ok := encoding.(audio.EncodingPCM)
	if !ok {
		return nil, fmt.Errorf("unsupported encoding type: %T", encoding)
	}
	if encPCM.SampleRate != audio.SampleRate(track.SampleRate) {
		return nil, fmt.Errorf("the backend works at %d Hz, the input is %d Hz", encPCM.SampleRate, track.SampleRate)
	}

	latency := 0
	if r, ok := ns.(latencyReporter); ok {
		latency = r.Latency()
	}
	logger.Debugf(ctx, "latency: %d samples", latency)

	frameSize := int(encPCM.BytesPerSample()) * track.Channels
	chunkSize := max(int(ns.ChunkSize()), frameSize)
	samples := slices.Concat(track.Samples, make([]float64, latency*track.Channels))
	padding := (chunkSize - len(samples)*int(encPCM.BytesPerSample())%chunkSize) % chunkSize
	samples = append(samples, make([]float64, padding/int(encPCM.BytesPerSample()))...)

	input := make([]byte, len(samples)*int(encPCM.BytesPerSample()))
	if err := pcm.Encode(encPCM.PCMFormat, input, samples); err != nil {
		return nil, fmt.Errorf("unable to encode: %w", err)
	}
	output := make([]byte, len(input))
	var maxSpeechProb float64
	for pos := 0; pos < len(input); pos += chunkSize {
		speechProb, err := ns.SuppressNoise(ctx, input[pos:pos+chunkSize], output[pos:pos+chunkSize])
		if err != nil {
			return nil, fmt.Errorf("unable to suppress the noise: %w", err)
		}
		maxSpeechProb = max(maxSpeechProb, speechProb)
	}
	logger.Debugf(ctx, "the highest speech probability: %.3f", maxSpeechProb)
	if err := pcm.Decode(encPCM.PCMFormat, samples, output); err != nil {
		return nil, fmt.Errorf("unable to decode: %w", err)
	}

	result := *track
	skip := latency * track.Channels
	result.Samples = samples[skip : skip+len(track.Samples)]
	return &result, nil
}

type channelReport struct {
	Channel int             `yaml:"channel"`
	Before  profile.Profile `yaml:"before"`
	After   profile.Profile `yaml:"after"`
	Delta   profile.Delta   `yaml:"delta"`
}

func printReport(before, after *Track) error {
	var reports []channelReport
	for ch := 0; ch < before.Channels; ch++ {
		b := profile.Analyze(before.Channel(ch), float64(before.SampleRate))
		a := profile.Analyze(after.Channel(ch), float64(after.SampleRate))
		reports = append(reports, channelReport{
			Channel: ch,
			Before:  b,
			After:   a,
			Delta:   profile.Compare(b, a),
		})
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("unable to print the report: %w", err)
	}
	return nil
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
