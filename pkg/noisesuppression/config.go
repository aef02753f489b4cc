package noisesuppression

const (
	// MinSampleRate is the lowest sample rate the suppressors are tuned for.
	MinSampleRate = 8000
)

// Config is the per-sample runtime configuration.
type Config struct {
	// Amount is the suppression strength, 0 disables processing.
	Amount float64 `yaml:"amount"`

	// Sensitivity raises the spectral threshold, 0..1.
	Sensitivity float64 `yaml:"sensitivity"`

	// Tone tilts the threshold towards the low (0) or the high (1) end of
	// the band; 0.5 is neutral.
	Tone float64 `yaml:"tone"`

	SampleRate float64 `yaml:"sample_rate"`

	// SpeechConfidence is an external speech hint in [0, 1]; 0 means
	// confirmed silence and hardens the high band.
	SpeechConfidence float64 `yaml:"-"`
}

// DefaultConfig returns a moderate setting for the given sample rate.
func DefaultConfig(sampleRate float64) Config {
	return Config{
		Amount:      0.7,
		Sensitivity: 0.3,
		Tone:        0.5,
		SampleRate:  sampleRate,

		SpeechConfidence: 1,
	}
}

// Clamped returns the config with every field forced into its domain.
func (cfg Config) Clamped() Config {
	cfg.Amount = min(max(cfg.Amount, 0), 1)
	cfg.Sensitivity = min(max(cfg.Sensitivity, 0), 1)
	cfg.Tone = min(max(cfg.Tone, 0), 1)
	cfg.SampleRate = max(cfg.SampleRate, MinSampleRate)
	cfg.SpeechConfidence = min(max(cfg.SpeechConfidence, 0), 1)
	return cfg
}
