package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 1.0, cfg.Engine.ScaleBase, 0)
	assert.InDelta(t, 1e-3, cfg.Engine.PlaneTolerance, 0)
	assert.Equal(t, 3, cfg.Engine.MinRegionPixels)
	assert.Equal(t, r3.Vec{Z: 1}, cfg.PathPoint.Tangent)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"precision", func(c *Config) { c.Output.Precision = 40 }, "invalid output precision"},
		{"language", func(c *Config) { c.Output.Language = "!!" }, "invalid output language"},
		{"colour", func(c *Config) { c.Output.SeedColor = "red" }, "invalid output.seed_color"},
		{"scale base", func(c *Config) { c.Engine.ScaleBase = -1 }, "engine.scale_base"},
		{"reslice", func(c *Config) { c.Engine.ResliceSize = -2 }, "engine.reslice_size"},
		{"spacing", func(c *Config) { c.Slice.Spacing = 0 }, "invalid slice spacing"},
		{"spacing y", func(c *Config) { c.Slice.SpacingY = -1 }, "spacing_y"},
		{"min pixels", func(c *Config) { c.Engine.MinRegionPixels = -1 }, "min region pixels"},
		{"tangent", func(c *Config) { c.PathPoint.Tangent = r3.Vec{} }, "tangent"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"slice mb", func(c *Config) { c.Server.MaxSliceMB = 0 }, "max slice size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"limits", func(c *Config) { c.Server.SessionsPerMinute = -1 }, "invalid server limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.ScaleBase = 2.5
	cfg.Engine.ResliceSize = 40
	cfg.Engine.TimeStep = 7
	cfg.Slice.Spacing = 0.5
	cfg.Slice.SmoothSigma = 1.2
	cfg.PathPoint.Position = r3.Vec{X: 1, Y: 2, Z: 3}
	cfg.PathPoint.Angle = 0.25
	cfg.Output.OverlayScale = 3

	ec := cfg.ToEngineConfig()
	assert.InDelta(t, 2.5, ec.ScaleBase, 0)
	assert.InDelta(t, 40, ec.ResliceSize, 0)
	assert.Equal(t, 7, ec.TimeStep)

	so := cfg.ToSamplerOptions()
	assert.InDelta(t, 0.5, so.SpacingX, 0)
	assert.InDelta(t, 0.5, so.SpacingY, 0)
	assert.InDelta(t, 1.2, so.SmoothSigma, 0)

	cfg.Slice.SpacingY = 2
	assert.InDelta(t, 2, cfg.ToSamplerOptions().SpacingY, 0)

	pp := cfg.ToPathPoint()
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, pp.Position)
	assert.InDelta(t, 0.25, pp.Angle, 0)

	assert.Equal(t, 3, cfg.ToOverlayOptions().Scale)
}

func TestLanguageTag(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, language.English, cfg.LanguageTag())

	cfg.Output.Language = "de"
	assert.Equal(t, language.German, cfg.LanguageTag())

	cfg.Output.Language = "???"
	assert.Equal(t, language.English, cfg.LanguageTag())
}
