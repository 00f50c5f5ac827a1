package replay

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/interactor"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/MeKo-Tech/lumentrace/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionsYAML = `
sessions:
  - name: commit
    time_step: 2
    events:
      - {kind: down, pixel: [5, 5]}
      - {kind: move, drag: 200}
      - {kind: up, drag: 200}
  - name: cancel
    events:
      - {kind: down, pixel: [5, 5]}
      - {kind: move, drag: 200}
      - {kind: cancel}
  - name: stale
    time_step: 3
    events:
      - {kind: down, pixel: [5, 5]}
      - {kind: move, drag: 50}
      - {kind: move, drag: 200, reslice: true}
  - name: off plane
    events:
      - {kind: down, pixel: [5, 5], off_plane: true}
      - {kind: up, drag: 200}
  - name: left open
    events:
      - {kind: down, world: [0, 0, 0]}
      - {kind: move, drag: 200}
`

func spikeSampler() *slice.PlanarSampler {
	return slice.NewPlanarSampler(testutil.CenterSpike(11, 200).Gray(), slice.SamplerOptions{})
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sessionsYAML))
	require.NoError(t, err)
	require.Len(t, s.Sessions, 5)

	first := s.Sessions[0]
	assert.Equal(t, "commit", first.Name)
	require.NotNil(t, first.TimeStep)
	assert.Equal(t, 2, *first.TimeStep)
	require.Len(t, first.Events, 3)
	assert.Equal(t, []float64{5, 5}, first.Events[0].Pixel)
	require.NotNil(t, first.Events[1].Drag)
	assert.InDelta(t, 200, *first.Events[1].Drag, 0)
	assert.True(t, s.Sessions[2].Events[2].Reslice)
	assert.True(t, s.Sessions[3].Events[0].OffPlane)
}

func TestParse_PathPoint(t *testing.T) {
	s, err := Parse([]byte(`
path_point:
  position: {x: 1, y: 2, z: 3}
  tangent: {x: 0, y: 0, z: 1}
  rotation: {x: 1, y: 0, z: 0}
sessions:
  - events: [{kind: down, pixel: [0, 0]}]
`))
	require.NoError(t, err)
	require.NotNil(t, s.PathPoint)
	assert.InDelta(t, 3, s.PathPoint.Position.Z, 0)
	assert.InDelta(t, 1, s.PathPoint.Tangent.Z, 0)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "sessions: []", "no sessions"},
		{"unknown key", "sessions:\n  - events: [{kind: down, pixel: [0, 0], speed: 3}]", "speed"},
		{"bad kind", "sessions:\n  - events: [{kind: hover, pixel: [0, 0]}]", "unknown event kind"},
		{"no position", "sessions:\n  - events: [{kind: down}]", "exactly one"},
		{"two positions", "sessions:\n  - events: [{kind: move, pixel: [0, 0], drag: 3}]", "exactly one"},
		{"short pixel", "sessions:\n  - events: [{kind: down, pixel: [0]}]", "pixel needs 2"},
		{"short world", "sessions:\n  - events: [{kind: down, world: [0, 0]}]", "world needs 3"},
		{"cancel with position", "sessions:\n  - events: [{kind: cancel, drag: 1}]", "cancel takes no position"},
		{"negative scale", "sessions:\n  - scale_base: -1\n    events: []", "scale_base"},
		{"negative reslice", "sessions:\n  - reslice_size: -1\n    events: []", "reslice_size"},
		{"not yaml", "sessions: [", "parse script"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gesture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sessionsYAML), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Sessions, 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMarshal_ParsesBack(t *testing.T) {
	d := 12.5
	ts := 1
	s := &Script{Sessions: []Session{{
		TimeStep: &ts,
		Events: []Step{
			{Kind: "down", Pixel: []float64{3, 4}},
			{Kind: "up", Drag: &d},
		},
	}}}

	data, err := s.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestPlay(t *testing.T) {
	s, err := Parse([]byte(sessionsYAML))
	require.NoError(t, err)

	group := contour.NewGroup()
	var updates int
	p := &Player{
		Sampler: spikeSampler(),
		Engine:  interactor.DefaultConfig(),
		Group:   group,
		Listener: interactor.ListenerFuncs{
			OnUpdate: func(interactor.UpdateEvent) { updates++ },
		},
	}

	res, err := p.Play(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 4)

	commit := res.Outcomes[0]
	assert.True(t, commit.Committed)
	assert.Equal(t, "commit", commit.Name)
	assert.Equal(t, 2, commit.TimeStep)
	assert.Equal(t, 4, commit.Points)
	assert.Equal(t, 1, commit.Updates)
	assert.InDelta(t, 200, commit.Threshold, 0)

	assert.Equal(t, 1, res.Outcomes[1].Session)
	assert.False(t, res.Outcomes[1].Committed)
	assert.Contains(t, res.Outcomes[1].Reason, "cancelled")

	assert.Equal(t, 2, res.Outcomes[2].Session)
	assert.Equal(t, 3, res.Outcomes[2].TimeStep)
	assert.Contains(t, res.Outcomes[2].Reason, "stale")

	// the off-plane session never started; the open one is cancelled
	assert.Equal(t, 4, res.Outcomes[3].Session)
	assert.Contains(t, res.Outcomes[3].Reason, "cancelled")

	assert.Equal(t, 1, res.Committed())
	assert.Equal(t, 1, group.Len())
	_, ok := group.Contour(2)
	assert.True(t, ok)

	assert.Equal(t, 3, updates)
	require.NotNil(t, res.Seed)
	assert.Equal(t, image.Pt(5, 5), *res.Seed)
	require.NotNil(t, res.Slice)
	assert.True(t, res.Slice.Valid())
}

func TestPlay_SettingsCarryOver(t *testing.T) {
	s, err := Parse([]byte(`
sessions:
  - scale_base: 0.5
    time_step: 7
    events:
      - {kind: down, pixel: [5, 5]}
      - {kind: up, drag: 400}
  - events:
      - {kind: down, pixel: [5, 5]}
      - {kind: up, drag: 100}
`))
	require.NoError(t, err)

	group := contour.NewGroup()
	res, err := (&Player{Sampler: spikeSampler(), Engine: interactor.DefaultConfig(), Group: group}).Play(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.True(t, res.Outcomes[0].Committed)
	assert.InDelta(t, 200, res.Outcomes[0].Threshold, 0)

	// same time step and halved scale: 100 units only reach 50, seed alone
	assert.False(t, res.Outcomes[1].Committed)
	assert.Equal(t, 7, res.Outcomes[1].TimeStep)
	assert.Contains(t, res.Outcomes[1].Reason, "no contour")
	assert.Equal(t, []int{7}, group.TimeSteps())
}

func TestPlay_Errors(t *testing.T) {
	s, err := Parse([]byte(sessionsYAML))
	require.NoError(t, err)

	_, err = (&Player{}).Play(context.Background(), s)
	require.ErrorIs(t, err, ErrNoSampler)

	_, err = (&Player{Sampler: slice.NewPlanarSampler(nil, slice.SamplerOptions{})}).Play(context.Background(), s)
	require.ErrorIs(t, err, slice.ErrNoSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := (&Player{Sampler: spikeSampler(), Engine: interactor.DefaultConfig()}).Play(ctx, s)
	require.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, res.Outcomes)
}
