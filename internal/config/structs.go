//nolint:lll
package config

import "gonum.org/v1/gonum/spatial/r3"

// Config represents the complete configuration for lumentrace.
// It covers every command (trace, replay, serve) and supports loading from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Engine parameters
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`

	// Slice sampling
	Slice SliceConfig `mapstructure:"slice" yaml:"slice" json:"slice"`

	// Path point the slice is cut at
	PathPoint PathPointConfig `mapstructure:"path_point" yaml:"path_point" json:"path_point"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// EngineConfig contains the drawing engine settings.
type EngineConfig struct {
	ScaleBase       float64 `mapstructure:"scale_base" yaml:"scale_base" json:"scale_base"`
	ResliceSize     float64 `mapstructure:"reslice_size" yaml:"reslice_size" json:"reslice_size"`
	PlaneTolerance  float64 `mapstructure:"plane_tolerance" yaml:"plane_tolerance" json:"plane_tolerance"`
	MinRegionPixels int     `mapstructure:"min_region_pixels" yaml:"min_region_pixels" json:"min_region_pixels"`
	SimplifyEpsilon float64 `mapstructure:"simplify_epsilon" yaml:"simplify_epsilon" json:"simplify_epsilon"`
	TimeStep        int     `mapstructure:"time_step" yaml:"time_step" json:"time_step"`
}

// SliceConfig contains slice sampling settings.
type SliceConfig struct {
	Spacing     float64 `mapstructure:"spacing" yaml:"spacing" json:"spacing"`
	SpacingY    float64 `mapstructure:"spacing_y" yaml:"spacing_y" json:"spacing_y"`
	SmoothSigma float64 `mapstructure:"smooth_sigma" yaml:"smooth_sigma" json:"smooth_sigma"`
	Invert      bool    `mapstructure:"invert" yaml:"invert" json:"invert"`
}

// PathPointConfig places the slice in world space.
type PathPointConfig struct {
	ID       int     `mapstructure:"id" yaml:"id" json:"id"`
	Position r3.Vec  `mapstructure:"position" yaml:"position" json:"position"`
	Tangent  r3.Vec  `mapstructure:"tangent" yaml:"tangent" json:"tangent"`
	Rotation r3.Vec  `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
	Angle    float64 `mapstructure:"angle" yaml:"angle" json:"angle"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	Precision    int    `mapstructure:"precision" yaml:"precision" json:"precision"`
	Language     string `mapstructure:"language" yaml:"language" json:"language"`
	ContourColor string `mapstructure:"contour_color" yaml:"contour_color" json:"contour_color"`
	SeedColor    string `mapstructure:"seed_color" yaml:"seed_color" json:"seed_color"`
	OverlayScale int    `mapstructure:"overlay_scale" yaml:"overlay_scale" json:"overlay_scale"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxSliceMB      int    `mapstructure:"max_slice_mb" yaml:"max_slice_mb" json:"max_slice_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Per-client limits, zero disables
	SessionsPerMinute int `mapstructure:"sessions_per_minute" yaml:"sessions_per_minute" json:"sessions_per_minute"`
	SessionsPerHour   int `mapstructure:"sessions_per_hour" yaml:"sessions_per_hour" json:"sessions_per_hour"`
	MaxSlicesPerDay   int `mapstructure:"max_slices_per_day" yaml:"max_slices_per_day" json:"max_slices_per_day"`
	MaxSliceMBPerDay  int `mapstructure:"max_slice_mb_per_day" yaml:"max_slice_mb_per_day" json:"max_slice_mb_per_day"`
}
