package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "lumentrace"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "LUMENTRACE"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over an explicit viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	config, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadWithoutValidation loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration without validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml") // Primary format, but viper supports multiple formats

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars still apply
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}

	config, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Engine defaults
	l.v.SetDefault("engine.scale_base", defaults.Engine.ScaleBase)
	l.v.SetDefault("engine.reslice_size", defaults.Engine.ResliceSize)
	l.v.SetDefault("engine.plane_tolerance", defaults.Engine.PlaneTolerance)
	l.v.SetDefault("engine.min_region_pixels", defaults.Engine.MinRegionPixels)
	l.v.SetDefault("engine.simplify_epsilon", defaults.Engine.SimplifyEpsilon)
	l.v.SetDefault("engine.time_step", defaults.Engine.TimeStep)

	// Slice defaults
	l.v.SetDefault("slice.spacing", defaults.Slice.Spacing)
	l.v.SetDefault("slice.spacing_y", defaults.Slice.SpacingY)
	l.v.SetDefault("slice.smooth_sigma", defaults.Slice.SmoothSigma)
	l.v.SetDefault("slice.invert", defaults.Slice.Invert)

	// Path point defaults, one key per component so env overrides resolve
	l.v.SetDefault("path_point.id", defaults.PathPoint.ID)
	setVecDefault(l.v, "path_point.position", defaults.PathPoint.Position.X, defaults.PathPoint.Position.Y, defaults.PathPoint.Position.Z)
	setVecDefault(l.v, "path_point.tangent", defaults.PathPoint.Tangent.X, defaults.PathPoint.Tangent.Y, defaults.PathPoint.Tangent.Z)
	setVecDefault(l.v, "path_point.rotation", defaults.PathPoint.Rotation.X, defaults.PathPoint.Rotation.Y, defaults.PathPoint.Rotation.Z)
	l.v.SetDefault("path_point.angle", defaults.PathPoint.Angle)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.precision", defaults.Output.Precision)
	l.v.SetDefault("output.language", defaults.Output.Language)
	l.v.SetDefault("output.contour_color", defaults.Output.ContourColor)
	l.v.SetDefault("output.seed_color", defaults.Output.SeedColor)
	l.v.SetDefault("output.overlay_scale", defaults.Output.OverlayScale)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_slice_mb", defaults.Server.MaxSliceMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.sessions_per_minute", defaults.Server.SessionsPerMinute)
	l.v.SetDefault("server.sessions_per_hour", defaults.Server.SessionsPerHour)
	l.v.SetDefault("server.max_slices_per_day", defaults.Server.MaxSlicesPerDay)
	l.v.SetDefault("server.max_slice_mb_per_day", defaults.Server.MaxSliceMBPerDay)
}

func setVecDefault(v *viper.Viper, key string, x, y, z float64) {
	v.SetDefault(key+".x", x)
	v.SetDefault(key+".y", y)
	v.SetDefault(key+".z", z)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}

// PrintConfigInfo writes information about configuration loading to w.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
