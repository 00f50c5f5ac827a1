package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/lumentrace/internal/replay"
	"github.com/spf13/cobra"
)

// replayCmd replays a recorded gesture script against a slice image.
var replayCmd = &cobra.Command{
	Use:   "replay IMAGE SCRIPT",
	Short: "Replay a gesture script against a slice image",
	Long: `Replay every drawing session of a YAML gesture script against the slice
cut from IMAGE. Each session may switch time step, scale base, reslice size or
path point. Committed contours are printed once all sessions have run.

Script example:
  sessions:
    - name: liver
      time_step: 2
      events:
        - {kind: down, pixel: [64, 80]}
        - {kind: move, drag: 6}
        - {kind: up, drag: 12}

Examples:
  lumentrace replay slice.png gesture.yaml
  lumentrace replay slice.png gesture.yaml --format csv --output contours.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}

	script, err := replay.Load(args[1])
	if err != nil {
		return err
	}
	if script.PathPoint == nil {
		pp := cfg.ToPathPoint()
		script.PathPoint = &pp
	}

	res, group, err := playScript(cmd.Context(), cfg, args[0], script)
	if err != nil {
		return err
	}
	slog.Info("Replay finished", "sessions", len(script.Sessions), "outcomes", len(res.Outcomes),
		"committed", res.Committed())

	if strings.ToLower(cfg.Output.Format) == "text" && cfg.Output.File == "" {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), formatOutcomes(res.Outcomes)); err != nil {
			return err
		}
	}

	contours := group.Snapshot()
	if err := writeOverlay(cmd, cfg, res, contours); err != nil {
		return err
	}
	return writeContours(cmd, cfg, contours)
}

// formatOutcomes lists how each session ended.
func formatOutcomes(outcomes []replay.Outcome) string {
	var sb strings.Builder
	for _, o := range outcomes {
		name := o.Name
		if name == "" {
			name = fmt.Sprintf("#%d", o.Session)
		}
		if o.Committed {
			fmt.Fprintf(&sb, "session %s: committed at time step %d, %d points, threshold %g, %d updates\n",
				name, o.TimeStep, o.Points, o.Threshold, o.Updates)
		} else {
			fmt.Fprintf(&sb, "session %s: aborted at time step %d: %s\n", name, o.TimeStep, o.Reason)
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(replayCmd)

	addEngineFlags(replayCmd)
	addOutputFlags(replayCmd)
}
