package spectral

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.NoError(t, ReverbReductionParams().Validate())

	p := DefaultParams()
	p.DDAlpha = 1.5
	p.PitchMinHz = 500
	p.MaskerMaxPeaks = 0
	err := p.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
}

func TestReverbReductionParams(t *testing.T) {
	p := ReverbReductionParams()
	assert.Equal(t, 70.0, p.VoicedF0MinHz)
	assert.Equal(t, 320.0, p.VoicedF0MaxHz)
	assert.Equal(t, 50.0, DefaultParams().VoicedF0MinHz)
}

func TestParamsYAML(t *testing.T) {
	p := DefaultParams()
	err := yaml.Unmarshal([]byte("dd_alpha: 0.9\nhum_frequencies: [60, 120]\n"), &p)
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.DDAlpha)
	assert.Equal(t, []float64{60, 120}, p.HumFrequencies)
	assert.Equal(t, DefaultParams().XiMin, p.XiMin)
	require.NoError(t, p.Validate())
}
