package cmd

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/lumentrace/internal/benchmark"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/utils"
	"github.com/spf13/cobra"
)

// benchCmd measures pointer event latency of drawing gestures.
var benchCmd = &cobra.Command{
	Use:   "bench [IMAGE]",
	Short: "Measure drawing latency per pointer event",
	Long: `Replay a press-drag-release gesture repeatedly and report per-event latency.
Without IMAGE a synthetic disc slice is used, once per --size value.

Examples:
  lumentrace bench
  lumentrace bench --size 128,512 --steps 40 --iterations 20
  lumentrace bench slice.png --seed 64,80 --max-drag 30`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := applyOverrides(cmd, cfg); err != nil {
			return err
		}

		iterations, _ := cmd.Flags().GetInt("iterations")
		steps, _ := cmd.Flags().GetInt("steps")
		maxDrag, _ := cmd.Flags().GetFloat64("max-drag")
		if iterations <= 0 || steps <= 0 {
			return fmt.Errorf("iterations and steps must be positive, got %d and %d", iterations, steps)
		}
		drags := benchmark.LinearDrags(maxDrag, steps)
		pp := cfg.ToPathPoint()
		engine := cfg.ToEngineConfig()

		suite := benchmark.NewSuite()
		if len(args) == 1 {
			img, _, err := utils.LoadImage(args[0])
			if err != nil {
				return fmt.Errorf("failed to load image: %w", err)
			}
			seedFlag, _ := cmd.Flags().GetString("seed")
			seed, err := parseFloats(seedFlag)
			if err != nil || len(seed) != 2 {
				return fmt.Errorf("invalid --seed %q: want X,Y", seedFlag)
			}
			g, err := benchmark.NewGesture(args[0], slice.NewPlanarSampler(img, cfg.ToSamplerOptions()), pp,
				image.Pt(int(seed[0]), int(seed[1])), drags, engine)
			if err != nil {
				return err
			}
			suite.Add(g)
		} else {
			sizeFlag, _ := cmd.Flags().GetString("size")
			sizes, err := parseFloats(sizeFlag)
			if err != nil || len(sizes) == 0 {
				return fmt.Errorf("invalid --size %q", sizeFlag)
			}
			for _, s := range sizes {
				n := int(s)
				if n < 3 {
					return fmt.Errorf("invalid --size %d: must be at least 3", n)
				}
				src := benchmark.Disc(n, n/4, 200, 20)
				g, err := benchmark.NewGesture(fmt.Sprintf("disc %dx%d", n, n),
					slice.NewPlanarSampler(src, cfg.ToSamplerOptions()), pp, image.Pt(n/2, n/2), drags, engine)
				if err != nil {
					return err
				}
				suite.Add(g)
			}
		}

		slog.Info("Running gesture benchmark", "iterations", iterations, "steps", steps, "max_drag", maxDrag)
		for _, r := range suite.RunAll(iterations) {
			if r.Error != nil {
				return r.Error
			}
		}
		return suite.WriteResults(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().Int("iterations", 10, "gesture repetitions per slice")
	benchCmd.Flags().Int("steps", 20, "drag events per gesture")
	benchCmd.Flags().Float64("max-drag", 150, "drag distance of the release in world units")
	benchCmd.Flags().String("size", "64,256", "comma separated synthetic slice sizes")
	benchCmd.Flags().String("seed", "", "seed pixel as X,Y when benchmarking IMAGE")
	addEngineFlags(benchCmd)
}
