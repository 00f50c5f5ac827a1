package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/lumentrace/internal/config"
	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/overlay"
	"github.com/MeKo-Tech/lumentrace/internal/replay"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/utils"
	"github.com/spf13/cobra"
)

// traceCmd contours one slice image from a seed and a series of drags.
var traceCmd = &cobra.Command{
	Use:   "trace IMAGE",
	Short: "Contour a slice image from a seed pixel and drag distances",
	Long: `Press at the seed pixel, drag along the slice x axis through each given
distance and release at the last one. The committed contour is printed in
world coordinates.

Examples:
  lumentrace trace slice.png --seed 64,80 --drag 12
  lumentrace trace slice.png --seed 64,80 --drag 4,8,12 --format json
  lumentrace trace slice.png --seed 64,80 --drag 12 --overlay out.png --save-script gesture.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}

	seedFlag, _ := cmd.Flags().GetString("seed")
	seed, err := parseFloats(seedFlag)
	if err != nil || len(seed) != 2 {
		return fmt.Errorf("invalid --seed %q: want X,Y", seedFlag)
	}
	dragFlag, _ := cmd.Flags().GetString("drag")
	drags, err := parseFloats(dragFlag)
	if err != nil {
		return fmt.Errorf("invalid --drag: %w", err)
	}
	if len(drags) == 0 {
		return errors.New("at least one --drag distance is required")
	}

	script := gestureScript(cfg, seed, drags)
	if path, _ := cmd.Flags().GetString("save-script"); path != "" {
		data, err := script.Marshal()
		if err != nil {
			return fmt.Errorf("failed to encode script: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("failed to write script: %w", err)
		}
		slog.Info("Saved gesture script", "path", path)
	}

	res, group, err := playScript(cmd.Context(), cfg, args[0], script)
	if err != nil {
		return err
	}
	if res.Committed() == 0 {
		reason := "no outcome"
		if len(res.Outcomes) > 0 {
			reason = res.Outcomes[len(res.Outcomes)-1].Reason
		}
		return fmt.Errorf("no contour committed: %s", reason)
	}

	contours := group.Snapshot()
	if err := writeOverlay(cmd, cfg, res, contours); err != nil {
		return err
	}
	return writeContours(cmd, cfg, contours)
}

// gestureScript builds a one-session script: down at the seed, a move per
// drag, up at the last drag.
func gestureScript(cfg *config.Config, seed, drags []float64) *replay.Script {
	events := make([]replay.Step, 0, len(drags)+1)
	events = append(events, replay.Step{Kind: interactor.PointerDown.String(), Pixel: []float64{seed[0], seed[1]}})
	for i := range drags {
		kind := interactor.PointerMove
		if i == len(drags)-1 {
			kind = interactor.PointerUp
		}
		d := drags[i]
		events = append(events, replay.Step{Kind: kind.String(), Drag: &d})
	}

	ts := cfg.Engine.TimeStep
	pp := cfg.ToPathPoint()
	return &replay.Script{
		PathPoint: &pp,
		Sessions:  []replay.Session{{Name: "trace", TimeStep: &ts, Events: events}},
	}
}

// playScript loads the image and replays the script against it.
func playScript(ctx context.Context, cfg *config.Config, imagePath string, script *replay.Script) (*replay.Result, *contour.Group, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	img, meta, err := utils.LoadImage(imagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load image: %w", err)
	}
	slog.Debug("Loaded slice image", "path", meta.Path, "format", meta.Format,
		"width", meta.Width, "height", meta.Height)

	group := contour.NewGroup()
	player := &replay.Player{
		Sampler: slice.NewPlanarSampler(img, cfg.ToSamplerOptions()),
		Engine:  cfg.ToEngineConfig(),
		Group:   group,
		Listener: interactor.ListenerFuncs{
			OnUpdate: func(e interactor.UpdateEvent) {
				slog.Debug("Contour updated", "time_step", e.TimeStep, "threshold", e.Threshold,
					"points", e.Contour.Len())
			},
			OnEnd: func(e interactor.EndEvent) {
				slog.Info("Contour committed", "time_step", e.TimeStep, "points", e.Contour.Len(),
					"threshold", e.Threshold)
			},
			OnAbort: func(e interactor.AbortEvent) {
				slog.Info("Drawing aborted", "time_step", e.TimeStep, "reason", e.Reason.Error())
			},
		},
	}

	res, err := player.Play(ctx, script)
	if err != nil {
		return nil, nil, fmt.Errorf("replay failed: %w", err)
	}
	return res, group, nil
}

func writeOverlay(cmd *cobra.Command, cfg *config.Config, res *replay.Result, contours []*contour.Contour) error {
	path, _ := cmd.Flags().GetString("overlay")
	if path == "" {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(path), ".png") {
		path += ".png"
	}
	img, err := overlay.Render(res.Slice, contours, res.Seed, cfg.ToOverlayOptions())
	if err != nil {
		return fmt.Errorf("failed to render overlay: %w", err)
	}
	if err := overlay.Save(path, img); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	slog.Info("Saved overlay", "path", path)
	return nil
}

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().String("seed", "", "seed pixel as X,Y")
	traceCmd.Flags().String("drag", "", "comma separated drag distances in world units")
	traceCmd.Flags().String("save-script", "", "write the generated gesture as a replay script")
	addEngineFlags(traceCmd)
	addOutputFlags(traceCmd)
}
