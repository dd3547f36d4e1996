package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultParametersValidate(t *testing.T) {
	require.NoError(t, DefaultParameters().Validate())
}

func TestValidateRejectsFastFinalizeBelowNotarize(t *testing.T) {
	p := DefaultParameters()
	p.FinalizeFastThresholdBps = p.NotarizeThresholdBps - 1
	require.Error(t, p.Validate())
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Parameters)
	}{
		{"zero notarize", func(p *Parameters) { p.NotarizeThresholdBps = 0 }},
		{"negative skip", func(p *Parameters) { p.SkipThresholdBps = -1 }},
		{"over 10000 finalize", func(p *Parameters) { p.FinalizeThresholdBps = 10001 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParameters()
			tc.mutate(&p)
			require.Error(t, p.Validate())
		})
	}
}

func TestValidateRejectsNonPositiveTimers(t *testing.T) {
	p := DefaultParameters()
	p.SkipTimeout = 0
	require.Error(t, p.Validate())

	p = DefaultParameters()
	p.NotarizeTimeout = -time.Second
	require.Error(t, p.Validate())

	p = DefaultParameters()
	p.StandstillInterval = 0
	require.Error(t, p.Validate())
}

func TestValidateRejectsZeroRetentionHorizon(t *testing.T) {
	p := DefaultParameters()
	p.RetentionHorizon = 0
	require.Error(t, p.Validate())
}
