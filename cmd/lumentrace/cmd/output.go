package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/lumentrace/internal/config"
	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/spf13/cobra"
)

// addOutputFlags registers the flags shared by commands that print contours.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Int("precision", 3, "decimal places for coordinates (0..12)")
	cmd.Flags().String("overlay", "", "write a PNG overlay of the slice and contours to this path")
}

// addEngineFlags registers the engine and sampling overrides.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().Int("time-step", 0, "time step the contour is committed to")
	cmd.Flags().Float64("scale-base", 1, "threshold units per world unit of drag")
	cmd.Flags().Float64("reslice-size", 0, "side of the square window growth is limited to (0 = whole slice)")
	cmd.Flags().Float64("spacing", 1, "world units per pixel")
	cmd.Flags().Bool("invert", false, "invert intensities before contouring")
	cmd.Flags().Float64("smooth-sigma", 0, "gaussian blur sigma applied to the slice")
}

// applyOverrides copies changed flags onto cfg and validates the result.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("time-step") {
		cfg.Engine.TimeStep, _ = flags.GetInt("time-step")
	}
	if flags.Changed("scale-base") {
		cfg.Engine.ScaleBase, _ = flags.GetFloat64("scale-base")
	}
	if flags.Changed("reslice-size") {
		cfg.Engine.ResliceSize, _ = flags.GetFloat64("reslice-size")
	}
	if flags.Changed("spacing") {
		cfg.Slice.Spacing, _ = flags.GetFloat64("spacing")
	}
	if flags.Changed("invert") {
		cfg.Slice.Invert, _ = flags.GetBool("invert")
	}
	if flags.Changed("smooth-sigma") {
		cfg.Slice.SmoothSigma, _ = flags.GetFloat64("smooth-sigma")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		cfg.Output.File, _ = flags.GetString("output")
	}
	if flags.Changed("precision") {
		cfg.Output.Precision, _ = flags.GetInt("precision")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// renderContours formats contours per the output section.
func renderContours(cfg *config.Config, cs []*contour.Contour) (string, error) {
	switch strings.ToLower(cfg.Output.Format) {
	case "json":
		return contour.ToJSON(cs)
	case "csv":
		return contour.ToCSV(cs, cfg.Output.Precision)
	default:
		return contour.ToText(cs, cfg.Output.Precision, cfg.LanguageTag()), nil
	}
}

// writeContours prints contours to the configured file or stdout.
func writeContours(cmd *cobra.Command, cfg *config.Config, cs []*contour.Contour) error {
	out, err := renderContours(cfg, cs)
	if err != nil {
		return fmt.Errorf("failed to format contours: %w", err)
	}

	if cfg.Output.File != "" {
		if err := os.WriteFile(cfg.Output.File, []byte(out), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", cfg.Output.File)
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// parseFloats parses a comma separated list of numbers.
func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
