package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/overlay"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	engine := interactor.DefaultConfig()
	pp := slice.DefaultPathPoint()
	ov := overlay.DefaultOptions()

	return Config{
		LogLevel: "info",
		Verbose:  false,
		Engine: EngineConfig{
			ScaleBase:       engine.ScaleBase,
			ResliceSize:     0,
			PlaneTolerance:  engine.PlaneTolerance,
			MinRegionPixels: engine.MinRegionPixels,
			SimplifyEpsilon: 0,
			TimeStep:        0,
		},
		Slice: SliceConfig{
			Spacing:     1.0,
			SmoothSigma: 0,
			Invert:      false,
		},
		PathPoint: PathPointConfig{
			Position: pp.Position,
			Tangent:  pp.Tangent,
			Rotation: pp.Rotation,
		},
		Output: OutputConfig{
			Format:       "text",
			Precision:    3,
			Language:     "en",
			ContourColor: ov.ContourColor,
			SeedColor:    ov.SeedColor,
			OverlayScale: ov.Scale,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxSliceMB:      16,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.Precision < 0 || c.Output.Precision > 12 {
		return fmt.Errorf("invalid output precision: %d (must be between 0 and 12)", c.Output.Precision)
	}
	if c.Output.Language != "" {
		if _, err := language.Parse(c.Output.Language); err != nil {
			return fmt.Errorf("invalid output language %q: %w", c.Output.Language, err)
		}
	}
	for name, col := range map[string]string{"contour_color": c.Output.ContourColor, "seed_color": c.Output.SeedColor} {
		if _, err := overlay.ParseColor(col); err != nil {
			return fmt.Errorf("invalid output.%s: %w", name, err)
		}
	}

	if err := validateNonNegative(c.Engine.ScaleBase, "engine.scale_base"); err != nil {
		return err
	}
	if err := validateNonNegative(c.Engine.ResliceSize, "engine.reslice_size"); err != nil {
		return err
	}
	if err := validateNonNegative(c.Engine.PlaneTolerance, "engine.plane_tolerance"); err != nil {
		return err
	}
	if err := validateNonNegative(c.Engine.SimplifyEpsilon, "engine.simplify_epsilon"); err != nil {
		return err
	}
	if err := validateNonNegative(c.Slice.SmoothSigma, "slice.smooth_sigma"); err != nil {
		return err
	}
	if !(c.Slice.Spacing > 0) || math.IsInf(c.Slice.Spacing, 0) {
		return fmt.Errorf("invalid slice spacing: %g (must be positive)", c.Slice.Spacing)
	}
	if c.Slice.SpacingY < 0 {
		return fmt.Errorf("invalid slice spacing_y: %g (must not be negative)", c.Slice.SpacingY)
	}
	if c.Engine.MinRegionPixels < 0 {
		return fmt.Errorf("invalid min region pixels: %d (must not be negative)", c.Engine.MinRegionPixels)
	}
	if r3.Norm(c.PathPoint.Tangent) == 0 {
		return errors.New("invalid path point tangent: zero vector")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxSliceMB <= 0 {
		return fmt.Errorf("invalid max slice size: %d (must be positive)", c.Server.MaxSliceMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.SessionsPerMinute < 0 || c.Server.SessionsPerHour < 0 || c.Server.MaxSlicesPerDay < 0 || c.Server.MaxSliceMBPerDay < 0 {
		return errors.New("invalid server limits: must not be negative")
	}

	return nil
}

// ToEngineConfig converts the engine section for the interactor.
func (c *Config) ToEngineConfig() interactor.Config {
	return interactor.Config{
		ScaleBase:       c.Engine.ScaleBase,
		ResliceSize:     c.Engine.ResliceSize,
		PlaneTolerance:  c.Engine.PlaneTolerance,
		MinRegionPixels: c.Engine.MinRegionPixels,
		SimplifyEpsilon: c.Engine.SimplifyEpsilon,
		TimeStep:        c.Engine.TimeStep,
	}
}

// ToPathPoint converts the path point section.
func (c *Config) ToPathPoint() slice.PathPoint {
	return slice.PathPoint{
		ID:       c.PathPoint.ID,
		Position: c.PathPoint.Position,
		Tangent:  c.PathPoint.Tangent,
		Rotation: c.PathPoint.Rotation,
		Angle:    c.PathPoint.Angle,
	}
}

// ToSamplerOptions converts the slice section. A zero spacing_y follows spacing.
func (c *Config) ToSamplerOptions() slice.SamplerOptions {
	sy := c.Slice.SpacingY
	if sy <= 0 {
		sy = c.Slice.Spacing
	}
	return slice.SamplerOptions{
		SpacingX:    c.Slice.Spacing,
		SpacingY:    sy,
		SmoothSigma: c.Slice.SmoothSigma,
		Invert:      c.Slice.Invert,
	}
}

// ToOverlayOptions converts the overlay part of the output section.
func (c *Config) ToOverlayOptions() overlay.Options {
	return overlay.Options{
		ContourColor: c.Output.ContourColor,
		SeedColor:    c.Output.SeedColor,
		Scale:        c.Output.OverlayScale,
		Thickness:    1,
	}
}

// LanguageTag returns the tag used for text output, English when unset.
func (c *Config) LanguageTag() language.Tag {
	if tag, err := language.Parse(c.Output.Language); err == nil {
		return tag
	}
	return language.English
}

func validateNonNegative(value float64, name string) error {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("invalid %s: %g (must be a finite non-negative number)", name, value)
	}
	return nil
}
