package spectral

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Params is the immutable tuning table of an Engine.
//
// Every instance owns its own copy, so the denoiser and the reverb-reduction
// flavors may differ without sharing process-wide state.
type Params struct {
	MagFloor   float64 `yaml:"mag_floor"`
	SNREpsilon float64 `yaml:"snr_epsilon"`
	OLAEpsilon float64 `yaml:"ola_epsilon"`
	BypassEps  float64 `yaml:"bypass_eps"`

	CoarseMinSize int `yaml:"coarse_min_size"`

	HumAmountThreshold float64   `yaml:"hum_amount_threshold"`
	HumFrequencies     []float64 `yaml:"hum_frequencies"`
	HumMainScale       float64   `yaml:"hum_main_scale"`
	HumSideScale       float64   `yaml:"hum_side_scale"`
	HumLowCutHz        float64   `yaml:"hum_low_cut_hz"`

	NoiseFloorInit      float64 `yaml:"noise_floor_init"`
	NoiseStartupThresh  float64 `yaml:"noise_startup_thresh"`
	NoiseStartupAttack  float64 `yaml:"noise_startup_attack"`
	NoiseStartupRelease float64 `yaml:"noise_startup_release"`
	NoiseStartupSeconds float64 `yaml:"noise_startup_seconds"`
	NoiseAttackBase     float64 `yaml:"noise_attack_base"`
	NoiseAttackMax      float64 `yaml:"noise_attack_max"`
	NoiseReleaseBase    float64 `yaml:"noise_release_base"`
	NoiseReleaseMax     float64 `yaml:"noise_release_max"`
	NoiseProtectBase    float64 `yaml:"noise_protect_base"`
	NoiseProtectRange   float64 `yaml:"noise_protect_range"`
	CoarseAttack        float64 `yaml:"coarse_attack"`
	CoarseRelease       float64 `yaml:"coarse_release"`

	ConfidenceChangeScale float64 `yaml:"confidence_change_scale"`
	ConfidenceSmoothing   float64 `yaml:"confidence_smoothing"`
	ConfidenceAmountMin   float64 `yaml:"confidence_amount_min"`

	PitchMinHz        float64 `yaml:"pitch_min_hz"`
	PitchMaxHz        float64 `yaml:"pitch_max_hz"`
	PitchMinLag       int     `yaml:"pitch_min_lag"`
	PreEmphasis       float64 `yaml:"pre_emphasis"`
	OctaveGuard       float64 `yaml:"octave_guard"`
	VoicedPeriodicity float64 `yaml:"voiced_periodicity"`
	VoicedF0MinHz     float64 `yaml:"voiced_f0_min_hz"`
	VoicedF0MaxHz     float64 `yaml:"voiced_f0_max_hz"`
	PeriodicityMin    float64 `yaml:"periodicity_min"`
	PeriodicityMax    float64 `yaml:"periodicity_max"`
	FlatnessMin       float64 `yaml:"flatness_min"`
	FlatnessMax       float64 `yaml:"flatness_max"`
	HFSplitFraction   float64 `yaml:"hf_split_fraction"`
	HFRatioMin        float64 `yaml:"hf_ratio_min"`
	HFRatioMax        float64 `yaml:"hf_ratio_max"`
	EnergyGateMin     float64 `yaml:"energy_gate_min"`
	EnergyGateMax     float64 `yaml:"energy_gate_max"`
	WeightVoiced      float64 `yaml:"weight_voiced"`
	WeightTonal       float64 `yaml:"weight_tonal"`
	WeightUnvoiced    float64 `yaml:"weight_unvoiced"`

	MaskerMaxPeaks  int     `yaml:"masker_max_peaks"`
	MaskerPeakMin   float64 `yaml:"masker_peak_min"`
	MaskerRadiusLow float64 `yaml:"masker_radius_low"`
	MaskerRadiusHi  float64 `yaml:"masker_radius_hi"`
	MaskerDecayLow  float64 `yaml:"masker_decay_low"`
	MaskerDecayHi   float64 `yaml:"masker_decay_hi"`
	MaskerSpanHz    float64 `yaml:"masker_span_hz"`

	DDAlpha             float64 `yaml:"dd_alpha"`
	XiMin               float64 `yaml:"xi_min"`
	ToneBiasDB          float64 `yaml:"tone_bias_db"`
	ToneSplit           float64 `yaml:"tone_split"`
	ToneScale           float64 `yaml:"tone_scale"`
	VoicedSpeechBase    float64 `yaml:"voiced_speech_base"`
	VoicedSpeechRange   float64 `yaml:"voiced_speech_range"`
	VoicedMidCenter     float64 `yaml:"voiced_mid_center"`
	VoicedMidWidth      float64 `yaml:"voiced_mid_width"`
	UnvoicedSpeechBase  float64 `yaml:"unvoiced_speech_base"`
	UnvoicedSpeechRange float64 `yaml:"unvoiced_speech_range"`
	UnvoicedHFMin       float64 `yaml:"unvoiced_hf_min"`
	UnvoicedHFMax       float64 `yaml:"unvoiced_hf_max"`
	ThreshSensScale     float64 `yaml:"thresh_sens_scale"`
	SpeechThreshScale   float64 `yaml:"speech_thresh_scale"`
	DepthPower          float64 `yaml:"depth_power"`
	CoherenceSpan       int     `yaml:"coherence_span"`
	CoherencePower      float64 `yaml:"coherence_power"`

	PsychoFloorBase     float64 `yaml:"psycho_floor_base"`
	PsychoFloorRange    float64 `yaml:"psycho_floor_range"`
	PsychoFloorMin      float64 `yaml:"psycho_floor_min"`
	PsychoFloorMax      float64 `yaml:"psycho_floor_max"`
	SpeechFloorBase     float64 `yaml:"speech_floor_base"`
	SpeechFloorRange    float64 `yaml:"speech_floor_range"`
	SpeechFloorMin      float64 `yaml:"speech_floor_min"`
	SpeechFloorMax      float64 `yaml:"speech_floor_max"`
	FloorScaleMin       float64 `yaml:"floor_scale_min"`
	SpeechFloorScaleMin float64 `yaml:"speech_floor_scale_min"`

	SilenceHintThreshold float64 `yaml:"silence_hint_threshold"`
	SilenceHFMinHz       float64 `yaml:"silence_hf_min_hz"`
	SilenceHFFloor       float64 `yaml:"silence_hf_floor"`

	TransientRise     float64 `yaml:"transient_rise"`
	TransientHops     int     `yaml:"transient_hops"`
	TransientFloor    float64 `yaml:"transient_floor"`
	TransientFraction float64 `yaml:"transient_fraction"`

	LowHarmonicMaxHz float64 `yaml:"low_harmonic_max_hz"`
	LowHarmonicFloor float64 `yaml:"low_harmonic_floor"`

	HarmonicF0MinHz    float64 `yaml:"harmonic_f0_min_hz"`
	HarmonicF0MaxHz    float64 `yaml:"harmonic_f0_max_hz"`
	HarmonicMaxHz      float64 `yaml:"harmonic_max_hz"`
	HarmonicMaxCount   int     `yaml:"harmonic_max_count"`
	HarmonicWidthLow   float64 `yaml:"harmonic_width_low"`
	HarmonicWidthHigh  float64 `yaml:"harmonic_width_high"`
	HarmonicMinGainLo  float64 `yaml:"harmonic_min_gain_lo"`
	HarmonicMinGainHi  float64 `yaml:"harmonic_min_gain_hi"`
	HarmonicStrongGain float64 `yaml:"harmonic_strong_gain"`
	HarmonicWeakGain   float64 `yaml:"harmonic_weak_gain"`
	HarmonicAllowScale float64 `yaml:"harmonic_allow_scale"`

	SmoothVoiced    float64 `yaml:"smooth_voiced"`
	SmoothUnvoiced  float64 `yaml:"smooth_unvoiced"`
	ReleaseLimitMin float64 `yaml:"release_limit_min"`
	ReleaseLimitMax float64 `yaml:"release_limit_max"`
}

// DefaultParams returns the tuning of the denoiser.
func DefaultParams() Params {
	return Params{
		MagFloor:   1e-9,
		SNREpsilon: 1e-10,
		OLAEpsilon: 1e-6,
		BypassEps:  1e-4,

		CoarseMinSize: 256,

		HumAmountThreshold: 0.05,
		HumFrequencies:     []float64{50, 60, 100, 120, 150, 180},
		HumMainScale:       0.1,
		HumSideScale:       0.5,
		HumLowCutHz:        25,

		NoiseFloorInit:      1e-5,
		NoiseStartupThresh:  1e-4,
		NoiseStartupAttack:  0.6,
		NoiseStartupRelease: 0.90,
		NoiseStartupSeconds: 1,
		NoiseAttackBase:     0.90,
		NoiseAttackMax:      0.98,
		NoiseReleaseBase:    0.9995,
		NoiseReleaseMax:     0.99995,
		NoiseProtectBase:    0.35,
		NoiseProtectRange:   0.55,
		CoarseAttack:        0.92,
		CoarseRelease:       0.999,

		ConfidenceChangeScale: 50,
		ConfidenceSmoothing:   0.05,
		ConfidenceAmountMin:   0.2,

		PitchMinHz:        50,
		PitchMaxHz:        450,
		PitchMinLag:       16,
		PreEmphasis:       0.5,
		OctaveGuard:       0.9,
		VoicedPeriodicity: 0.55,
		VoicedF0MinHz:     50,
		VoicedF0MaxHz:     450,
		PeriodicityMin:    0.35,
		PeriodicityMax:    0.80,
		FlatnessMin:       0.25,
		FlatnessMax:       0.85,
		HFSplitFraction:   0.25,
		HFRatioMin:        0.18,
		HFRatioMax:        0.45,
		EnergyGateMin:     0.003,
		EnergyGateMax:     0.02,
		WeightVoiced:      0.55,
		WeightTonal:       0.30,
		WeightUnvoiced:    0.35,

		MaskerMaxPeaks:  64,
		MaskerPeakMin:   1e-6,
		MaskerRadiusLow: 32,
		MaskerRadiusHi:  10,
		MaskerDecayLow:  10,
		MaskerDecayHi:   4,
		MaskerSpanHz:    10000,

		DDAlpha:             0.98,
		XiMin:               1e-3,
		ToneBiasDB:          6,
		ToneSplit:           0.5,
		ToneScale:           2,
		VoicedSpeechBase:    0.35,
		VoicedSpeechRange:   0.65,
		VoicedMidCenter:     0.22,
		VoicedMidWidth:      0.20,
		UnvoicedSpeechBase:  0.25,
		UnvoicedSpeechRange: 0.75,
		UnvoicedHFMin:       0.18,
		UnvoicedHFMax:       0.55,
		ThreshSensScale:     5,
		SpeechThreshScale:   1.25,
		DepthPower:          2,
		CoherenceSpan:       1,
		CoherencePower:      1,

		PsychoFloorBase:     0.25,
		PsychoFloorRange:    0.65,
		PsychoFloorMin:      0.10,
		PsychoFloorMax:      0.95,
		SpeechFloorBase:     0.30,
		SpeechFloorRange:    0.60,
		SpeechFloorMin:      0.15,
		SpeechFloorMax:      0.98,
		FloorScaleMin:       0.35,
		SpeechFloorScaleMin: 0.60,

		SilenceHintThreshold: 0.3,
		SilenceHFMinHz:       4000,
		SilenceHFFloor:       0.04,

		TransientRise:     2,
		TransientHops:     2,
		TransientFloor:    0.22,
		TransientFraction: 0.25,

		LowHarmonicMaxHz: 450,
		LowHarmonicFloor: 0.3,

		HarmonicF0MinHz:    50,
		HarmonicF0MaxHz:    450,
		HarmonicMaxHz:      8000,
		HarmonicMaxCount:   80,
		HarmonicWidthLow:   3,
		HarmonicWidthHigh:  1.5,
		HarmonicMinGainLo:  0.25,
		HarmonicMinGainHi:  0.98,
		HarmonicStrongGain: 0.35,
		HarmonicWeakGain:   0.55,
		HarmonicAllowScale: 0.65,

		SmoothVoiced:    0.55,
		SmoothUnvoiced:  0.75,
		ReleaseLimitMin: 0.85,
		ReleaseLimitMax: 0.92,
	}
}

// ReverbReductionParams returns the tuning of the reverb-reduction flavor,
// which only trusts a narrower voicing range.
func ReverbReductionParams() Params {
	p := DefaultParams()
	p.PitchMinHz = 70
	p.PitchMaxHz = 320
	p.VoicedF0MinHz = 70
	p.VoicedF0MaxHz = 320
	return p
}

// Validate reports every inconsistent field at once.
func (p Params) Validate() error {
	var result *multierror.Error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			result = multierror.Append(result, fmt.Errorf(format, args...))
		}
	}
	unit := func(name string, v float64) {
		check(v >= 0 && v <= 1, "%s must be within [0, 1], got %v", name, v)
	}
	positive := func(name string, v float64) {
		check(v > 0, "%s must be positive, got %v", name, v)
	}
	ordered := func(loName string, lo float64, hiName string, hi float64) {
		check(lo < hi, "%s (%v) must be less than %s (%v)", loName, lo, hiName, hi)
	}

	positive("MagFloor", p.MagFloor)
	positive("SNREpsilon", p.SNREpsilon)
	positive("OLAEpsilon", p.OLAEpsilon)
	positive("XiMin", p.XiMin)
	check(p.CoarseMinSize >= 2, "CoarseMinSize must be at least 2, got %d", p.CoarseMinSize)

	for _, v := range []struct {
		name  string
		value float64
	}{
		{"NoiseStartupAttack", p.NoiseStartupAttack},
		{"NoiseStartupRelease", p.NoiseStartupRelease},
		{"NoiseAttackBase", p.NoiseAttackBase},
		{"NoiseAttackMax", p.NoiseAttackMax},
		{"NoiseReleaseBase", p.NoiseReleaseBase},
		{"NoiseReleaseMax", p.NoiseReleaseMax},
		{"CoarseAttack", p.CoarseAttack},
		{"CoarseRelease", p.CoarseRelease},
		{"ConfidenceSmoothing", p.ConfidenceSmoothing},
		{"ConfidenceAmountMin", p.ConfidenceAmountMin},
		{"DDAlpha", p.DDAlpha},
		{"PreEmphasis", p.PreEmphasis},
		{"OctaveGuard", p.OctaveGuard},
		{"HFSplitFraction", p.HFSplitFraction},
		{"SmoothVoiced", p.SmoothVoiced},
		{"SmoothUnvoiced", p.SmoothUnvoiced},
		{"ReleaseLimitMin", p.ReleaseLimitMin},
		{"ReleaseLimitMax", p.ReleaseLimitMax},
		{"TransientFloor", p.TransientFloor},
		{"LowHarmonicFloor", p.LowHarmonicFloor},
		{"SilenceHFFloor", p.SilenceHFFloor},
		{"HarmonicMinGainLo", p.HarmonicMinGainLo},
		{"HarmonicMinGainHi", p.HarmonicMinGainHi},
	} {
		unit(v.name, v.value)
	}

	ordered("PitchMinHz", p.PitchMinHz, "PitchMaxHz", p.PitchMaxHz)
	ordered("VoicedF0MinHz", p.VoicedF0MinHz, "VoicedF0MaxHz", p.VoicedF0MaxHz)
	ordered("PeriodicityMin", p.PeriodicityMin, "PeriodicityMax", p.PeriodicityMax)
	ordered("FlatnessMin", p.FlatnessMin, "FlatnessMax", p.FlatnessMax)
	ordered("HFRatioMin", p.HFRatioMin, "HFRatioMax", p.HFRatioMax)
	ordered("EnergyGateMin", p.EnergyGateMin, "EnergyGateMax", p.EnergyGateMax)
	ordered("UnvoicedHFMin", p.UnvoicedHFMin, "UnvoicedHFMax", p.UnvoicedHFMax)
	ordered("PsychoFloorMin", p.PsychoFloorMin, "PsychoFloorMax", p.PsychoFloorMax)
	ordered("SpeechFloorMin", p.SpeechFloorMin, "SpeechFloorMax", p.SpeechFloorMax)
	ordered("HarmonicF0MinHz", p.HarmonicF0MinHz, "HarmonicF0MaxHz", p.HarmonicF0MaxHz)
	ordered("HarmonicMinGainLo", p.HarmonicMinGainLo, "HarmonicMinGainHi", p.HarmonicMinGainHi)

	check(p.MaskerMaxPeaks > 0, "MaskerMaxPeaks must be positive, got %d", p.MaskerMaxPeaks)
	positive("MaskerSpanHz", p.MaskerSpanHz)
	positive("HarmonicMaxHz", p.HarmonicMaxHz)
	check(p.HarmonicMaxCount > 0, "HarmonicMaxCount must be positive, got %d", p.HarmonicMaxCount)
	check(p.CoherenceSpan >= 0, "CoherenceSpan must not be negative, got %d", p.CoherenceSpan)
	check(p.NoiseStartupSeconds >= 0, "NoiseStartupSeconds must not be negative, got %v", p.NoiseStartupSeconds)
	check(p.TransientHops >= 0, "TransientHops must not be negative, got %d", p.TransientHops)
	check(p.PitchMinLag > 0, "PitchMinLag must be positive, got %d", p.PitchMinLag)

	return result.ErrorOrNil()
}
